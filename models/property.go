package models

import "strings"

// idKeys are the raw-record keys a source may store its identifier under,
// in lookup order. Every partner site assigns its own ids; none are global.
var idKeys = []string{"property_id", "物件ID", "管理番号", "物件番号"}

// PropertyRecord is one scraped property: a flat or nested mapping of field
// name to value, exactly as the source scraper extracted it. Field names are
// source-specific; the merge stage normalizes them against the canonical
// schema.
type PropertyRecord map[string]any

// ID recovers the source-assigned property identifier, or "" if the record
// carries none.
func (r PropertyRecord) ID() string {
	for _, k := range idKeys {
		if v, ok := r[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ChangeMarkers holds the source-provided "last changed" / "last updated"
// timestamps used to detect silent edits without re-extracting the full
// record. The JSON keys match the durable history-file format.
type ChangeMarkers struct {
	Changed string `json:"変更年月日,omitempty"`
	Updated string `json:"更新年月日,omitempty"`
}

// IsZero reports whether the source exposed no markers for this record.
func (m ChangeMarkers) IsZero() bool {
	return m.Changed == "" && m.Updated == ""
}
