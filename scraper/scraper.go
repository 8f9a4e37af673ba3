// Package scraper defines the partner-site scraper contract and the
// registry that resolves configured source names into implementations at
// startup.
package scraper

import (
	"context"
	"fmt"
	"sort"

	"github.com/sawadeeeen/mark-one/config"
	"github.com/sawadeeeen/mark-one/models"
	"github.com/sawadeeeen/mark-one/tracker"
	"github.com/sawadeeeen/mark-one/utils"
)

// Scraper is one partner site's scraping-and-reconciliation pass. Scrape
// runs to completion and never panics across this boundary; failures come
// back in the result's status.
type Scraper interface {
	Name() string
	Scrape(ctx context.Context) models.ScrapeResult
}

// Deps is what every scraper implementation gets to work with.
type Deps struct {
	Config  *config.Config
	Logger  *utils.Logger
	Tracker *tracker.Tracker
}

// Factory builds a scraper for its source.
type Factory func(deps Deps) (Scraper, error)

var factories = map[string]Factory{}

// Register adds a source factory. Implementations register themselves from
// init; duplicate names panic early, at program start.
func Register(name string, f Factory) {
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("scraper: duplicate registration for %q", name))
	}
	factories[name] = f
}

// Known returns the registered source names, sorted.
func Known() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve turns the configured source list into a fixed run table. Unknown
// names are an error: a typo in SOURCES should fail at startup, not skip a
// partner silently.
func Resolve(sources []string, deps Deps) ([]Scraper, error) {
	out := make([]Scraper, 0, len(sources))
	for _, name := range sources {
		factory, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("scraper: unknown source %q (known: %v)", name, Known())
		}
		s, err := factory(deps)
		if err != nil {
			return nil, fmt.Errorf("scraper: build %q: %w", name, err)
		}
		out = append(out, s)
	}
	return out, nil
}
