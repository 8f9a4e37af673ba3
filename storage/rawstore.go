package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sawadeeeen/mark-one/models"
)

// filename characters are replaced so source-assigned ids (which may hold
// slashes, spaces or room separators) always map to one flat file.
var filenameReplacer = strings.NewReplacer(
	" ", "_", "/", "_", "\\", "_", ":", "_",
	"*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

// SanitizeID converts a source-assigned property id into a safe filename
// stem.
func SanitizeID(id string) string {
	return filenameReplacer.Replace(strings.TrimSpace(id))
}

// RawStore writes one JSON file per property into a source's data
// directory. The merge stage later reads these files back across all
// sources.
type RawStore struct {
	dir string
}

// NewRawStore creates the source directory if needed.
func NewRawStore(dir string) (*RawStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("rawstore: create dir %q: %w", dir, err)
	}
	return &RawStore{dir: dir}, nil
}

// Path returns where the record for id lives (or would live).
func (s *RawStore) Path(id string) string {
	return filepath.Join(s.dir, SanitizeID(id)+".json")
}

// Write persists one raw property record and returns its file path.
// Multibyte field names stay readable on disk: 4-space indent, no HTML
// escaping, matching the historical file format.
func (s *RawStore) Write(id string, record models.PropertyRecord) (string, error) {
	path := s.Path(id)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("rawstore: create %q: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return "", fmt.Errorf("rawstore: write %q: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("rawstore: sync %q: %w", path, err)
	}
	return path, nil
}
