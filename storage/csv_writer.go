package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// CSVWriter exports the merged catalog to a CSV file whose columns are
// "source", "property_id", then the canonical schema in table order.
type CSVWriter struct {
	path string
	file *os.File
}

// NewCSVWriter creates (or truncates) the CSV file at the given path.
// Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}
	return &CSVWriter{path: path, file: f}, nil
}

// WriteCatalog writes the header row and one row per merged record. A
// field missing from a record (never the case for merge output, but the
// writer does not assume it) renders as an empty cell.
func (c *CSVWriter) WriteCatalog(fields []string, records []map[string]any) error {
	w := csv.NewWriter(c.file)

	header := append([]string{"source", "property_id"}, fields...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for _, record := range records {
		row := make([]string, 0, len(header))
		for _, field := range header {
			row = append(row, cellValue(record[field]))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (c *CSVWriter) Close() error {
	return c.file.Close()
}

// cellValue flattens a resolved value into CSV text. Lists and nested
// objects (image arrays, coordinates) render as their fmt representation;
// exporters that need structure read merged.json instead.
func cellValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
