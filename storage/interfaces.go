package storage

// CatalogWriter is the interface any merged-catalog export sink must
// satisfy. Records arrive already normalized: every canonical field is
// present, plus "source" and "property_id".
type CatalogWriter interface {
	WriteCatalog(fields []string, records []map[string]any) error
	Close() error
}
