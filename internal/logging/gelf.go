package logging

import (
	"fmt"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFWriter opens a UDP GELF writer to a Graylog input such as
// "localhost:12201". Every Write becomes one GELF message.
func NewGELFWriter(addr string, facility string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to graylog at %s: %w", addr, err)
	}
	if facility != "" {
		w.Facility = facility
	}
	return w, nil
}
