package memory

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/pitlane/kart/internal/storage/memory/export/v1"
	"github.com/pitlane/kart/pkg/core"
)

var gzipMagic = []byte{0x1f, 0x8b}

// ExportFileName builds the export file name for a run.
func ExportFileName(run core.GhostRun, compress bool) string {
	course := strings.ReplaceAll(run.CourseName, " ", "_")
	course = strings.ReplaceAll(course, ":", "_")
	course = strings.ReplaceAll(course, string(filepath.Separator), "_")
	if course == "" {
		course = "course"
	}
	id := run.ID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("%s_%s_%s.json", course, run.StartTime.UTC().Format("20060102_150405"), id)
	if compress {
		name += ".gz"
	}
	return name
}

// WriteExport encodes run in the v1 export format, gzipped when compress is
// set.
func WriteExport(w io.Writer, run core.GhostRun, compress bool) error {
	export := v1.FromRun(run)
	if !compress {
		return json.NewEncoder(w).Encode(export)
	}

	gzWriter := gzip.NewWriter(w)
	if err := json.NewEncoder(gzWriter).Encode(export); err != nil {
		_ = gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

// ReadExport decodes an export from r. Gzipped input is detected by its
// magic bytes.
func ReadExport(r io.Reader) (core.GhostRun, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if head, err := br.Peek(2); err == nil && bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return core.GhostRun{}, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	var export v1.Export
	if err := json.NewDecoder(src).Decode(&export); err != nil {
		return core.GhostRun{}, fmt.Errorf("decode export: %w", err)
	}
	return export.ToRun()
}

// ReadExportFile opens and decodes an export file.
func ReadExportFile(path string) (core.GhostRun, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.GhostRun{}, err
	}
	defer f.Close()

	run, err := ReadExport(f)
	if err != nil {
		return core.GhostRun{}, fmt.Errorf("%s: %w", path, err)
	}
	return run, nil
}

// exportJSON writes a run to the output directory and returns the path.
func (b *Backend) exportJSON(run core.GhostRun) (string, error) {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, ExportFileName(run, b.cfg.CompressOutput))
	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if err := WriteExport(f, run, b.cfg.CompressOutput); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close export: %w", err)
	}
	return outputPath, nil
}

func isExportFile(name string) bool {
	return strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.gz")
}
