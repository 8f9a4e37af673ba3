package tracker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sawadeeeen/mark-one/utils"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "updated.json"), utils.NewLogger())
}

func TestRecordAndReadBack(t *testing.T) {
	tr := newTestTracker(t)

	if err := tr.Record("/data/src/1.json"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := tr.Record("/data/src/2.json"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	paths, err := tr.Paths()
	if err != nil {
		t.Fatalf("Paths: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths: got %v, want 2 entries", paths)
	}
	if paths[0] != "/data/src/1.json" || paths[1] != "/data/src/2.json" {
		t.Errorf("paths content: got %v", paths)
	}
}

func TestRecordDeduplicates(t *testing.T) {
	tr := newTestTracker(t)

	for i := 0; i < 3; i++ {
		if err := tr.Record("/data/src/1.json"); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	paths, err := tr.Paths()
	if err != nil {
		t.Fatalf("Paths: %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("paths: got %v, want 1 entry", paths)
	}
}

func TestRecordMakesPathsAbsolute(t *testing.T) {
	tr := newTestTracker(t)

	if err := tr.Record("relative/file.json"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	paths, err := tr.Paths()
	if err != nil {
		t.Fatalf("Paths: %v", err)
	}
	if len(paths) != 1 || !filepath.IsAbs(paths[0]) {
		t.Errorf("expected one absolute path, got %v", paths)
	}
}

func TestCorruptLogReadsAsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "updated.json")
	if err := os.WriteFile(path, []byte("[broken"), 0644); err != nil {
		t.Fatalf("write corrupt log: %v", err)
	}

	tr := New(path, utils.NewLogger())
	paths, err := tr.Paths()
	if err != nil {
		t.Fatalf("Paths should recover: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("expected empty list, got %v", paths)
	}

	// Recording over a corrupt log must still work.
	if err := tr.Record("/data/x.json"); err != nil {
		t.Fatalf("Record over corrupt log: %v", err)
	}
	paths, err = tr.Paths()
	if err != nil {
		t.Fatalf("Paths: %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("expected 1 entry after recovery, got %v", paths)
	}
}

func TestLogSurvivesNewInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "updated.json")

	if err := New(path, utils.NewLogger()).Record("/data/a.json"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := New(path, utils.NewLogger()).Record("/data/b.json"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	paths, err := New(path, utils.NewLogger()).Paths()
	if err != nil {
		t.Fatalf("Paths: %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("expected both entries across instances, got %v", paths)
	}
}
