package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sawadeeeen/mark-one/models"
	"github.com/sawadeeeen/mark-one/utils"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), utils.NewLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestLoadMissingFileIsEmptyState(t *testing.T) {
	store := newTestStore(t)

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(state.Active) != 0 || len(state.Deleted) != 0 || len(state.Updated) != 0 || len(state.Info) != 0 {
		t.Errorf("expected empty state, got %+v", state)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	state := NewState()
	state.Active["B"] = struct{}{}
	state.Active["A"] = struct{}{}
	state.Deleted["C"] = struct{}{}
	state.Updated["A"] = struct{}{}
	state.Info["A"] = models.ChangeMarkers{Changed: "2025/01/10", Updated: "2025/01/12"}

	if err := store.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, id := range []string{"A", "B"} {
		if _, ok := loaded.Active[id]; !ok {
			t.Errorf("active missing %q", id)
		}
	}
	if _, ok := loaded.Deleted["C"]; !ok {
		t.Errorf("deleted missing C")
	}
	if got := loaded.Info["A"]; got != state.Info["A"] {
		t.Errorf("markers for A: got %+v, want %+v", got, state.Info["A"])
	}
}

func TestSerializedListsAreSorted(t *testing.T) {
	store := newTestStore(t)

	state := NewState()
	for _, id := range []string{"z", "m", "a"} {
		state.Active[id] = struct{}{}
	}
	if err := store.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read history file: %v", err)
	}

	var file struct {
		Processed []string `json:"processed"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("parse history file: %v", err)
	}

	want := []string{"a", "m", "z"}
	if len(file.Processed) != len(want) {
		t.Fatalf("processed: got %v, want %v", file.Processed, want)
	}
	for i, id := range want {
		if file.Processed[i] != id {
			t.Errorf("processed[%d]: got %q, want %q", i, file.Processed[i], id)
		}
	}
}

func TestSaveIsDeterministic(t *testing.T) {
	store := newTestStore(t)

	state := NewState()
	for _, id := range []string{"p3", "p1", "p2"} {
		state.Active[id] = struct{}{}
		state.Updated[id] = struct{}{}
	}

	if err := store.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	first, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if err := store.Save(state); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	second, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read again: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("history file is not byte-stable across saves")
	}
}

func TestCorruptFileRecoversToEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, utils.NewLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load should recover, got error: %v", err)
	}
	if len(state.Active) != 0 || len(state.Deleted) != 0 {
		t.Errorf("expected empty state after corrupt load, got %+v", state)
	}
}

func TestLoadAcceptsActiveKeyFallback(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, utils.NewLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	raw := `{"active": ["X", "Y"], "deleted": [], "updated": [], "property_info": {}}`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(raw), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := state.Active["X"]; !ok {
		t.Errorf("expected X loaded from the active fallback key")
	}
	if _, ok := state.Active["Y"]; !ok {
		t.Errorf("expected Y loaded from the active fallback key")
	}
}

func TestLoadToleratesMissingKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, utils.NewLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(`{"processed": ["A"]}`), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := state.Active["A"]; !ok {
		t.Errorf("expected A in active")
	}
	if state.Deleted == nil || state.Updated == nil || state.Info == nil {
		t.Errorf("expected all sets initialized, got %+v", state)
	}
}
