package merge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sawadeeeen/mark-one/history"
	"github.com/sawadeeeen/mark-one/models"
	"github.com/sawadeeeen/mark-one/utils"
)

// MergedFileName is the aggregate catalog artifact inside the data
// directory.
const MergedFileName = "merged.json"

// Result reports one merge run.
type Result struct {
	Merged  int    // records written to the catalog
	Skipped int    // unparseable raw files skipped
	Path    string // catalog location
}

// Engine rebuilds the merged catalog from scratch out of every source's
// raw record files. It only reads the raw files; the scrapers own them.
type Engine struct {
	dataDir  string
	resolver *Resolver
	logger   *utils.Logger
}

// NewEngine creates a merge engine over dataDir, whose subdirectories are
// the per-source raw record directories.
func NewEngine(dataDir string, resolver *Resolver, logger *utils.Logger) *Engine {
	return &Engine{dataDir: dataDir, resolver: resolver, logger: logger}
}

// Run scans all sources, normalizes every parseable raw record against the
// canonical schema, and fully replaces the merged catalog. Malformed raw
// files are skipped and counted — eight independent sources produce files
// of inconsistent validity, and one bad file must not abort the merge.
// Discovery order is lexical, so repeated runs over unchanged raw data
// produce identical output.
func (e *Engine) Run() (*Result, error) {
	sources, err := e.sourceDirs()
	if err != nil {
		return nil, err
	}

	catalog := make([]map[string]any, 0)
	result := &Result{Path: filepath.Join(e.dataDir, MergedFileName)}

	for _, source := range sources {
		files, err := rawFiles(filepath.Join(e.dataDir, source))
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			record, err := readRecord(file)
			if err != nil {
				e.logger.Warn("skipping unparseable raw file %s: %v", file, err)
				result.Skipped++
				continue
			}
			catalog = append(catalog, e.normalize(source, record))
			result.Merged++
		}
	}

	if err := e.writeCatalog(result.Path, catalog); err != nil {
		return nil, err
	}

	e.logger.Info("merged %d records from %d sources into %s (%d skipped)",
		result.Merged, len(sources), result.Path, result.Skipped)
	return result, nil
}

// normalize produces one catalog record: every canonical field resolved
// (empty string when unresolvable) plus the source name and recovered id.
func (e *Engine) normalize(source string, record models.PropertyRecord) map[string]any {
	out := make(map[string]any, len(e.resolver.order)+2)
	for _, field := range e.resolver.Canonical() {
		out[field] = e.resolver.Resolve(record, field)
	}
	out["source"] = source
	out["property_id"] = record.ID()
	return out
}

func (e *Engine) sourceDirs() ([]string, error) {
	entries, err := os.ReadDir(e.dataDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("merge: read data dir %q: %w", e.dataDir, err)
	}

	var sources []string
	for _, entry := range entries {
		if entry.IsDir() {
			sources = append(sources, entry.Name())
		}
	}
	sort.Strings(sources)
	return sources, nil
}

// rawFiles lists a source's raw record files, excluding its history file.
func rawFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("merge: read source dir %q: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == history.FileName || filepath.Ext(name) != ".json" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func readRecord(path string) (models.PropertyRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record models.PropertyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return record, nil
}

// writeCatalog fully replaces the catalog artifact via temp-and-rename so
// a crash never leaves a truncated merged.json behind.
func (e *Engine) writeCatalog(path string, catalog []map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("merge: create catalog dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), MergedFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("merge: create temp catalog: %w", err)
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(catalog); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("merge: encode catalog: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("merge: sync catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("merge: close catalog: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("merge: rename catalog: %w", err)
	}
	return nil
}

// ReadCatalog loads a previously written merged catalog, for the export
// sinks and the summary report.
func ReadCatalog(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("merge: read catalog %q: %w", path, err)
	}
	var catalog []map[string]any
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("merge: parse catalog %q: %w", path, err)
	}
	return catalog, nil
}
