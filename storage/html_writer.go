package storage

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

var htmlTemplate = template.Must(template.New("catalog").Parse(`<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<title>物件一覧</title>
<style>
body { font-family: sans-serif; margin: 1em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; font-size: 12px; }
th { background: #f0f0f0; position: sticky; top: 0; }
tr:nth-child(even) { background: #fafafa; }
</style>
</head>
<body>
<h1>物件一覧 ({{len .Rows}}件)</h1>
<table>
<tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
</body>
</html>
`))

// HTMLWriter exports the merged catalog as a single static HTML table.
type HTMLWriter struct {
	path string
}

// NewHTMLWriter prepares an HTML export to the given path.
func NewHTMLWriter(path string) (*HTMLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("html: create output dir: %w", err)
	}
	return &HTMLWriter{path: path}, nil
}

// WriteCatalog renders the full table, replacing any previous file.
func (h *HTMLWriter) WriteCatalog(fields []string, records []map[string]any) error {
	header := append([]string{"source", "property_id"}, fields...)

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, 0, len(header))
		for _, field := range header {
			row = append(row, cellValue(record[field]))
		}
		rows = append(rows, row)
	}

	f, err := os.Create(h.path)
	if err != nil {
		return fmt.Errorf("html: create file %q: %w", h.path, err)
	}
	defer f.Close()

	data := struct {
		Header []string
		Rows   [][]string
	}{Header: header, Rows: rows}

	if err := htmlTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("html: render catalog: %w", err)
	}
	return nil
}

// Close is a no-op; the file is closed per write.
func (h *HTMLWriter) Close() error { return nil }
