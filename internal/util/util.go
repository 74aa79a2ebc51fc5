// Package util provides string helpers for raw command arguments.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArgs trims whitespace and quotes from every argument and unescapes
// doubled quotes. The input slice is left untouched.
func CleanArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = FixEscapeQuotes(TrimQuotes(strings.TrimSpace(a)))
	}
	return out
}

// SplitArray splits a bracketed list such as "[1, 2.5, 3]" into its trimmed
// elements. Input without brackets is split as is. An empty list yields nil.
func SplitArray(s string) []string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		s = s[1 : len(s)-1]
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = TrimQuotes(strings.TrimSpace(p))
	}
	return parts
}
