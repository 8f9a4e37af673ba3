// Package history persists the per-source property lifecycle state:
// which ids have been processed, which have disappeared, which changed,
// and the last-seen change markers used to detect silent updates.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sawadeeeen/mark-one/models"
	"github.com/sawadeeeen/mark-one/utils"
)

// FileName is the durable history file inside each source's data directory.
const FileName = "property_history.json"

// State is one source's property lifecycle state. Active and Deleted are
// disjoint at rest; movement between them happens atomically per
// reconciliation mutation.
type State struct {
	Active  map[string]struct{}
	Deleted map[string]struct{}
	Updated map[string]struct{}
	Info    map[string]models.ChangeMarkers
}

// NewState returns an empty, fully initialized state.
func NewState() *State {
	return &State{
		Active:  make(map[string]struct{}),
		Deleted: make(map[string]struct{}),
		Updated: make(map[string]struct{}),
		Info:    make(map[string]models.ChangeMarkers),
	}
}

// stateFile is the on-disk shape. Sets are stored as sorted lists so the
// file round-trips deterministically. "processed" is the historical key for
// the active set; "active" is accepted as a fallback on load.
type stateFile struct {
	Processed []string                        `json:"processed"`
	Active    []string                        `json:"active,omitempty"`
	Deleted   []string                        `json:"deleted"`
	Updated   []string                        `json:"updated"`
	Info      map[string]models.ChangeMarkers `json:"property_info"`
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// MarshalJSON serializes the state with sorted id lists.
func (s *State) MarshalJSON() ([]byte, error) {
	info := s.Info
	if info == nil {
		info = map[string]models.ChangeMarkers{}
	}
	return json.Marshal(stateFile{
		Processed: sortedKeys(s.Active),
		Deleted:   sortedKeys(s.Deleted),
		Updated:   sortedKeys(s.Updated),
		Info:      info,
	})
}

// UnmarshalJSON loads the state, tolerating missing keys in files written
// by older runs.
func (s *State) UnmarshalJSON(data []byte) error {
	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	ids := f.Processed
	if len(ids) == 0 {
		ids = f.Active
	}
	s.Active = toSet(ids)
	s.Deleted = toSet(f.Deleted)
	s.Updated = toSet(f.Updated)
	s.Info = f.Info
	if s.Info == nil {
		s.Info = make(map[string]models.ChangeMarkers)
	}
	return nil
}

// Store loads and saves one source's State at a fixed path.
type Store struct {
	path   string
	logger *utils.Logger
}

// NewStore creates a Store for the history file inside dataDir, creating
// the directory if needed.
func NewStore(dataDir string, logger *utils.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("history: create data dir %q: %w", dataDir, err)
	}
	return &Store{path: filepath.Join(dataDir, FileName), logger: logger}, nil
}

// Path returns the history file location.
func (st *Store) Path() string { return st.path }

// Load reads the durable state. A missing file yields an empty state. A
// corrupt file also yields an empty state, with a warning: all properties
// will be treated as new on this pass, including previously deleted ones.
func (st *Store) Load() (*State, error) {
	data, err := os.ReadFile(st.path)
	if os.IsNotExist(err) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: read %q: %w", st.path, err)
	}

	state := NewState()
	if err := json.Unmarshal(data, state); err != nil {
		st.logger.Warn("history file %s is corrupt, starting from an empty state: %v", st.path, err)
		return NewState(), nil
	}
	return state, nil
}

// Save overwrites the durable state. The write goes to a temp file in the
// same directory, is flushed and fsynced, then renamed over the target so a
// crash never leaves a truncated history file. A save failure must abort
// the current pass: proceeding would let the in-memory state silently
// diverge from disk.
func (st *Store) Save(state *State) error {
	data, err := json.MarshalIndent(state, "", "    ")
	if err != nil {
		return fmt.Errorf("history: marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(st.path), FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("history: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("history: write %q: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("history: sync %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: close %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, st.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: rename over %q: %w", st.path, err)
	}
	return nil
}
