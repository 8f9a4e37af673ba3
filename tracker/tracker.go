// Package tracker maintains updated.json, the process-wide log of raw
// record files that changed in the most recent runs. Partner-format
// exporters read it to decide which properties to re-submit, so a lost
// entry means a silently stale partner catalog — every append is flushed
// and fsynced before Record returns.
package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sawadeeeen/mark-one/utils"
)

// Tracker appends absolute raw-file paths to a durable, deduplicated list.
// The list is only ever reset by external action, never by this package.
type Tracker struct {
	path   string
	logger *utils.Logger
}

// New creates a Tracker for the log at path.
func New(path string, logger *utils.Logger) *Tracker {
	return &Tracker{path: path, logger: logger}
}

// Path returns the log file location.
func (t *Tracker) Path() string { return t.path }

// Paths returns the current log contents. An absent or corrupt log reads
// as empty.
func (t *Tracker) Paths() ([]string, error) {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tracker: read %q: %w", t.path, err)
	}

	var paths []string
	if err := json.Unmarshal(data, &paths); err != nil {
		t.logger.Warn("updated-properties log %s is corrupt, treating as empty: %v", t.path, err)
		return nil, nil
	}
	return paths, nil
}

// Record appends path (made absolute) to the log unless already present,
// then writes the log back with an explicit flush and fsync.
func (t *Tracker) Record(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("tracker: absolute path for %q: %w", path, err)
	}

	paths, err := t.Paths()
	if err != nil {
		return err
	}
	for _, p := range paths {
		if p == abs {
			return nil
		}
	}
	paths = append(paths, abs)

	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("tracker: create log dir: %w", err)
	}

	f, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("tracker: create %q: %w", t.path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(paths); err != nil {
		return fmt.Errorf("tracker: write %q: %w", t.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("tracker: sync %q: %w", t.path, err)
	}
	return nil
}
