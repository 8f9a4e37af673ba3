package merge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sawadeeeen/mark-one/history"
	"github.com/sawadeeeen/mark-one/utils"
)

func writeRaw(t *testing.T, dir, name string, v any) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func newTestEngine(t *testing.T, dataDir string) *Engine {
	t.Helper()
	resolver, err := NewResolver()
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return NewEngine(dataDir, resolver, utils.NewLogger())
}

func TestRunMergesAcrossSources(t *testing.T) {
	dataDir := t.TempDir()
	writeRaw(t, filepath.Join(dataDir, "src_a"), "1.json", map[string]any{
		"property_id": "1", "価格": "1000万円", "物件名": "Aマンション",
	})
	writeRaw(t, filepath.Join(dataDir, "src_b"), "2.json", map[string]any{
		"property_id": "2", "金額": "2000万円", "建物名": "Bハイツ",
	})

	result, err := newTestEngine(t, dataDir).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Merged != 2 || result.Skipped != 0 {
		t.Fatalf("result: got merged=%d skipped=%d, want 2/0", result.Merged, result.Skipped)
	}

	catalog, err := ReadCatalog(result.Path)
	if err != nil {
		t.Fatalf("ReadCatalog: %v", err)
	}
	if len(catalog) != 2 {
		t.Fatalf("catalog length: got %d, want 2", len(catalog))
	}

	// Sources walk in lexical order.
	if catalog[0]["source"] != "src_a" || catalog[1]["source"] != "src_b" {
		t.Errorf("source order: got %v, %v", catalog[0]["source"], catalog[1]["source"])
	}
	if catalog[0]["価格"] != "1000万円" {
		t.Errorf("direct field: got %v", catalog[0]["価格"])
	}
	// Alias-resolved fields.
	if catalog[1]["価格"] != "2000万円" {
		t.Errorf("価格 via 金額: got %v", catalog[1]["価格"])
	}
	if catalog[1]["物件名"] != "Bハイツ" {
		t.Errorf("物件名 via 建物名: got %v", catalog[1]["物件名"])
	}
}

func TestEveryCanonicalFieldPresent(t *testing.T) {
	dataDir := t.TempDir()
	writeRaw(t, filepath.Join(dataDir, "src"), "p.json", map[string]any{"property_id": "p"})

	engine := newTestEngine(t, dataDir)
	result, err := engine.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	catalog, err := ReadCatalog(result.Path)
	if err != nil {
		t.Fatalf("ReadCatalog: %v", err)
	}
	record := catalog[0]
	for _, field := range engine.resolver.Canonical() {
		v, ok := record[field]
		if !ok {
			t.Errorf("canonical field %q missing from merged record", field)
			continue
		}
		if v == nil {
			t.Errorf("canonical field %q is null", field)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	dataDir := t.TempDir()
	writeRaw(t, filepath.Join(dataDir, "src_a"), "1.json", map[string]any{"property_id": "1", "価格": "1000万円"})
	writeRaw(t, filepath.Join(dataDir, "src_a"), "2.json", map[string]any{"property_id": "2", "価格": "2000万円"})

	engine := newTestEngine(t, dataDir)

	result1, err := engine.Run()
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first, err := os.ReadFile(result1.Path)
	if err != nil {
		t.Fatalf("read first catalog: %v", err)
	}

	result2, err := engine.Run()
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	second, err := os.ReadFile(result2.Path)
	if err != nil {
		t.Fatalf("read second catalog: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("merge output differs across runs on unchanged input")
	}
}

func TestMalformedFilesAreSkipped(t *testing.T) {
	dataDir := t.TempDir()
	srcDir := filepath.Join(dataDir, "src")
	writeRaw(t, srcDir, "good.json", map[string]any{"property_id": "g"})
	if err := os.WriteFile(filepath.Join(srcDir, "bad.json"), []byte("{broken"), 0644); err != nil {
		t.Fatalf("write bad file: %v", err)
	}

	result, err := newTestEngine(t, dataDir).Run()
	if err != nil {
		t.Fatalf("Run must tolerate bad files: %v", err)
	}
	if result.Merged != 1 {
		t.Errorf("merged: got %d, want 1", result.Merged)
	}
	if result.Skipped != 1 {
		t.Errorf("skipped: got %d, want 1", result.Skipped)
	}
}

func TestHistoryFileIsNotMerged(t *testing.T) {
	dataDir := t.TempDir()
	srcDir := filepath.Join(dataDir, "src")
	writeRaw(t, srcDir, "p.json", map[string]any{"property_id": "p"})
	writeRaw(t, srcDir, history.FileName, map[string]any{"processed": []string{"p"}})

	result, err := newTestEngine(t, dataDir).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Merged != 1 {
		t.Errorf("merged: got %d, want 1 (history file must be excluded)", result.Merged)
	}
}

func TestEmptyDataDirProducesEmptyCatalog(t *testing.T) {
	dataDir := t.TempDir()

	result, err := newTestEngine(t, dataDir).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Merged != 0 {
		t.Errorf("merged: got %d, want 0", result.Merged)
	}

	catalog, err := ReadCatalog(result.Path)
	if err != nil {
		t.Fatalf("ReadCatalog: %v", err)
	}
	if len(catalog) != 0 {
		t.Errorf("catalog: got %d records, want 0", len(catalog))
	}
}
