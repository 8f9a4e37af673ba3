// Package merge normalizes raw per-source property records against the
// canonical ~80-field schema and concatenates them into the single merged
// catalog consumed by the export stage.
package merge

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/sawadeeeen/mark-one/models"
)

//go:embed alias_table.yaml
var aliasTableYAML []byte

// Resolver maps canonical field names to the source-specific spellings
// that may carry their values. It is immutable after construction and
// resolution is pure: same record, same field, same answer.
type Resolver struct {
	order   []string
	aliases map[string][]string
}

// NewResolver loads the embedded alias table.
func NewResolver() (*Resolver, error) {
	return LoadResolver(aliasTableYAML)
}

// LoadResolver parses an alias table. The YAML mapping order becomes the
// canonical schema order, so decoding goes through yaml.MapSlice rather
// than a plain map.
func LoadResolver(data []byte) (*Resolver, error) {
	var doc yaml.MapSlice
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("merge: parse alias table: %w", err)
	}

	r := &Resolver{aliases: make(map[string][]string, len(doc))}
	for _, item := range doc {
		canonical, ok := item.Key.(string)
		if !ok {
			return nil, fmt.Errorf("merge: non-string canonical field %v", item.Key)
		}
		if _, dup := r.aliases[canonical]; dup {
			return nil, fmt.Errorf("merge: duplicate canonical field %q", canonical)
		}

		var aliases []string
		if item.Value != nil {
			raw, ok := item.Value.([]interface{})
			if !ok {
				return nil, fmt.Errorf("merge: aliases for %q are not a list", canonical)
			}
			for _, a := range raw {
				s, ok := a.(string)
				if !ok {
					return nil, fmt.Errorf("merge: non-string alias %v for %q", a, canonical)
				}
				aliases = append(aliases, s)
			}
		}

		r.order = append(r.order, canonical)
		r.aliases[canonical] = aliases
	}
	return r, nil
}

// Canonical returns the schema's field names in table order.
func (r *Resolver) Canonical() []string {
	return append([]string(nil), r.order...)
}

// present reports whether a raw value counts for resolution. JSON null and
// the empty string are both treated as absent.
func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}

// Resolve returns the value for a canonical field from a raw record.
// Precedence: the canonical name itself, then its aliases in table order,
// then — treating the requested field as an alias of some other canonical
// field — that field's name and remaining aliases. Unresolvable fields
// yield "" rather than nil, so every canonical field is always populated.
func (r *Resolver) Resolve(record models.PropertyRecord, field string) any {
	if v, ok := record[field]; ok && present(v) {
		return v
	}

	for _, alias := range r.aliases[field] {
		if v, ok := record[alias]; ok && present(v) {
			return v
		}
	}

	// Reverse direction: the requested field may itself be listed as an
	// alias of another canonical field (価格/販売価格 style synonyms).
	for _, canonical := range r.order {
		if canonical == field || !contains(r.aliases[canonical], field) {
			continue
		}
		if v, ok := record[canonical]; ok && present(v) {
			return v
		}
		for _, alias := range r.aliases[canonical] {
			if alias == field {
				continue
			}
			if v, ok := record[alias]; ok && present(v) {
				return v
			}
		}
	}

	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
