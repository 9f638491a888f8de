// Package docexport renders a parsed schema as human-readable
// documentation: JSON for tooling, Markdown for humans. Each export
// carries a uuid-derived document id so a regenerated doc can be
// diffed against a previous run by id rather than by content.
package docexport

import (
	"encoding/json"
	"io"
	"strconv"
	"text/template"

	"github.com/google/uuid"

	"github.com/Arsievert/cfgpack"
)

// Document is the JSON-friendly projection of a schema, mirroring the
// json-tag convention the core's own structs would use if they needed
// one.
type Document struct {
	ID      string           `json:"id"`
	MapName string           `json:"map_name"`
	Version uint32           `json:"version"`
	Entries []DocumentEntry  `json:"entries"`
}

// DocumentEntry is one schema field in a Document.
type DocumentEntry struct {
	ID         uint16 `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	HasDefault bool   `json:"has_default"`
	Default    string `json:"default,omitempty"`
}

func newDocument(s *cfgpack.Schema) Document {
	doc := Document{
		ID:      uuid.New().String(),
		MapName: s.MapName,
		Version: s.Version,
		Entries: make([]DocumentEntry, len(s.Entries)),
	}
	for i, e := range s.Entries {
		doc.Entries[i] = DocumentEntry{
			ID:         e.ID,
			Name:       e.Name,
			Type:       e.Type.String(),
			HasDefault: e.HasDefault,
			Default:    formatDefault(e),
		}
	}
	return doc
}

func formatDefault(e cfgpack.Entry) string {
	if !e.HasDefault {
		return ""
	}
	if e.Type.IsString() {
		return string(e.DefaultStr)
	}
	switch {
	case e.Type.IsUnsigned():
		return uintToString(e.Default.Uint)
	case e.Type.IsSigned():
		return intToString(e.Default.Int)
	case e.Type.IsFloat():
		return floatToString(e)
	default:
		return ""
	}
}

// JSON marshals s into an indented JSON document.
func JSON(s *cfgpack.Schema) ([]byte, error) {
	return json.MarshalIndent(newDocument(s), "", "  ")
}

const markdownTemplate = `# {{.MapName}} (version {{.Version}})

document id: {{.ID}}

| id | name | type | has_default | default |
|---|---|---|---|---|
{{- range .Entries}}
| {{.ID}} | {{.Name}} | {{.Type}} | {{.HasDefault}} | {{.Default}} |
{{- end}}
`

var tmpl = template.Must(template.New("schema").Parse(markdownTemplate))

// Markdown renders s as a Markdown table into w.
func Markdown(s *cfgpack.Schema, w io.Writer) error {
	return tmpl.Execute(w, newDocument(s))
}

func uintToString(v uint64) string { return strconv.FormatUint(v, 10) }
func intToString(v int64) string   { return strconv.FormatInt(v, 10) }

func floatToString(e cfgpack.Entry) string {
	if e.Type == cfgpack.TF32 {
		return strconv.FormatFloat(float64(e.Default.F32), 'g', -1, 32)
	}
	return strconv.FormatFloat(e.Default.F64, 'g', -1, 64)
}
