package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pitlane/kart/internal/dispatcher"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return logEntry
}

func TestDispatcherLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	dl.Debug("test message", "key1", "value1", "key2", 42)

	logEntry := decodeLine(t, &buf)
	if logEntry["level"] != "debug" {
		t.Errorf("expected level 'debug', got %v", logEntry["level"])
	}
	if logEntry["message"] != "test message" {
		t.Errorf("expected message 'test message', got %v", logEntry["message"])
	}
	if logEntry["key1"] != "value1" {
		t.Errorf("expected key1='value1', got %v", logEntry["key1"])
	}
	if logEntry["key2"] != float64(42) { // JSON numbers are float64
		t.Errorf("expected key2=42, got %v", logEntry["key2"])
	}
	if logEntry["component"] != "dispatcher" {
		t.Errorf("expected component='dispatcher', got %v", logEntry["component"])
	}
}

func TestDispatcherLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("filtered")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info level, got %q", buf.String())
	}

	dl.Info("info message", "status", "ok")

	logEntry := decodeLine(t, &buf)
	if logEntry["level"] != "info" {
		t.Errorf("expected level 'info', got %v", logEntry["level"])
	}
	if logEntry["status"] != "ok" {
		t.Errorf("expected status='ok', got %v", logEntry["status"])
	}
}

func TestDispatcherLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("event failed", "command", ":STEER:", "error", errors.New("bad axis"))

	logEntry := decodeLine(t, &buf)
	if logEntry["level"] != "error" {
		t.Errorf("expected level 'error', got %v", logEntry["level"])
	}
	if logEntry["error"] != "bad axis" {
		t.Errorf("expected error='bad axis', got %v", logEntry["error"])
	}
	if logEntry["command"] != ":STEER:" {
		t.Errorf("expected command=':STEER:', got %v", logEntry["command"])
	}
}

func TestDispatcherLogger_OddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("odd", 7, "value", "dangling")

	logEntry := decodeLine(t, &buf)
	if _, ok := logEntry["value"]; ok {
		t.Error("pairs with non-string keys must be skipped")
	}
	if _, ok := logEntry["dangling"]; ok {
		t.Error("a trailing key without value must be skipped")
	}
}

func TestDispatcherLogger_ImplementsInterface(t *testing.T) {
	var _ dispatcher.Logger = NewDispatcherLogger(zerolog.Nop())
}
