// Package reconcile classifies each property observed during a scraping
// pass against the source's persistent history: brand new, silently
// updated, unchanged (safe to skip re-extraction), or — after the pass —
// disappeared from the source and therefore deleted.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/sawadeeeen/mark-one/history"
	"github.com/sawadeeeen/mark-one/models"
	"github.com/sawadeeeen/mark-one/utils"
)

// Class is the per-property classification returned by Observe.
type Class int

const (
	// ClassNew: never seen before, or previously deleted and now back.
	ClassNew Class = iota
	// ClassUpdated: known id whose change markers moved since last pass.
	ClassUpdated
	// ClassUnchanged: known id with matching markers. The caller should
	// skip re-extraction; full-page extraction is the expensive step this
	// short-circuit exists to avoid.
	ClassUnchanged
)

func (c Class) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassUpdated:
		return "updated"
	case ClassUnchanged:
		return "unchanged"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Options tunes a pass.
type Options struct {
	// TrackMarkers enables change-marker comparison. Sources that expose
	// no durable "last changed" field must leave this false: then only ids
	// explicitly in the processed set short-circuit, and everything else
	// is re-extracted as new. That is the conservative default for sources
	// where a silent edit cannot be detected cheaply.
	TrackMarkers bool
}

// Outcome summarizes one completed pass. Each slice is sorted.
type Outcome struct {
	New       []string
	Updated   []string
	Unchanged []string
	Deleted   []string
}

// Counts copies the outcome sizes into a ScrapeResult.
func (o Outcome) Counts(r *models.ScrapeResult) {
	r.New = len(o.New)
	r.Updated = len(o.Updated)
	r.Unchanged = len(o.Unchanged)
	r.Deleted = len(o.Deleted)
}

// Engine runs one source's reconciliation pass. It is single-use: create
// at pass start, call Observe once per property seen on the site, then
// Finish to sweep deletions.
//
// Every state mutation is written through to the history file before the
// method returns, so a crash mid-pass loses at most the in-flight
// property.
type Engine struct {
	store  *history.Store
	state  *history.State
	logger *utils.Logger
	opts   Options

	seen      map[string]struct{}
	new       []string
	updated   []string
	unchanged []string
	finished  bool
}

// New loads the source's history and returns an Engine for one pass.
func New(store *history.Store, logger *utils.Logger, opts Options) (*Engine, error) {
	state, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:  store,
		state:  state,
		logger: logger,
		opts:   opts,
		seen:   make(map[string]struct{}),
	}, nil
}

// Observe classifies one property-id seen in the current pass and persists
// any resulting history mutation. markers may be zero for sources that
// expose none.
func (e *Engine) Observe(id string, markers models.ChangeMarkers) (Class, error) {
	if e.finished {
		return ClassUnchanged, fmt.Errorf("reconcile: Observe after Finish for %q", id)
	}
	if id == "" {
		return ClassUnchanged, fmt.Errorf("reconcile: empty property id")
	}
	e.seen[id] = struct{}{}

	if _, active := e.state.Active[id]; !active {
		// Never seen, or resurrected from the deleted set.
		if _, wasDeleted := e.state.Deleted[id]; wasDeleted {
			e.logger.Info("property %s was deleted but is listed again, restoring", id)
			delete(e.state.Deleted, id)
		}
		e.state.Active[id] = struct{}{}
		e.state.Updated[id] = struct{}{}
		if e.opts.TrackMarkers {
			e.setMarkers(id, markers)
		}
		if err := e.store.Save(e.state); err != nil {
			return ClassNew, err
		}
		e.new = append(e.new, id)
		return ClassNew, nil
	}

	if e.opts.TrackMarkers && e.state.Info[id] != markers {
		e.setMarkers(id, markers)
		e.state.Updated[id] = struct{}{}
		if err := e.store.Save(e.state); err != nil {
			return ClassUpdated, err
		}
		e.updated = append(e.updated, id)
		return ClassUpdated, nil
	}

	e.unchanged = append(e.unchanged, id)
	return ClassUnchanged, nil
}

// setMarkers records the markers for id. A zero marker set is stored as
// absence: a missing entry reads back as the zero value, so comparison is
// unaffected and the history file carries no empty entries.
func (e *Engine) setMarkers(id string, markers models.ChangeMarkers) {
	if markers.IsZero() {
		delete(e.state.Info, id)
		return
	}
	e.state.Info[id] = markers
}

// Finish sweeps the deletion side: every active id not observed during
// this pass moves to the deleted set and loses its change markers. Each
// mutation is persisted before the next.
func (e *Engine) Finish() (Outcome, error) {
	if e.finished {
		return Outcome{}, fmt.Errorf("reconcile: Finish called twice")
	}
	e.finished = true

	var deleted []string
	for _, id := range activeIDs(e.state) {
		if _, ok := e.seen[id]; ok {
			continue
		}
		e.logger.Info("property %s no longer listed, marking deleted", id)
		delete(e.state.Active, id)
		e.state.Deleted[id] = struct{}{}
		delete(e.state.Info, id)
		if err := e.store.Save(e.state); err != nil {
			return Outcome{}, err
		}
		deleted = append(deleted, id)
	}

	out := Outcome{
		New:       sorted(e.new),
		Updated:   sorted(e.updated),
		Unchanged: sorted(e.unchanged),
		Deleted:   sorted(deleted),
	}
	return out, nil
}

func activeIDs(s *history.State) []string {
	ids := make([]string, 0, len(s.Active))
	for id := range s.Active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
