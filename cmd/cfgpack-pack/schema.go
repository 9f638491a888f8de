package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Arsievert/cfgpack"
)

// jsonSchema is the JSON-friendly schema source format packaccepts as
// an alternative to the text grammar. It is translated into a text
// schema document and handed to cfgpack.ParseText, rather than
// duplicating the text grammar's validation logic here.
type jsonSchema struct {
	MapName string           `json:"map_name"`
	Version uint32           `json:"version"`
	Entries []jsonSchemaEntry `json:"entries"`
}

type jsonSchemaEntry struct {
	ID      uint16  `json:"id"`
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Default *string `json:"default,omitempty"`
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func jsonToTextSchema(data []byte) ([]byte, error) {
	var doc jsonSchema
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode JSON schema: %v", cfgpack.ErrParse, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", doc.MapName, doc.Version)
	for _, e := range doc.Entries {
		def := "NIL"
		if e.Default != nil {
			if isQuotedType(e.Type) {
				def = fmt.Sprintf("%q", *e.Default)
			} else {
				def = *e.Default
			}
		}
		fmt.Fprintf(&b, "%d %s %s %s\n", e.ID, e.Name, e.Type, def)
	}
	return []byte(b.String()), nil
}

func isQuotedType(typeTok string) bool {
	return typeTok == "str" || typeTok == "fstr"
}

// parseSchemaFile auto-detects JSON vs. text schema input by sniffing
// the first non-whitespace byte of data.
func parseSchemaFile(data []byte) (*cfgpack.Schema, []cfgpack.V, []byte, error) {
	if looksLikeJSON(data) {
		text, err := jsonToTextSchema(data)
		if err != nil {
			return nil, nil, nil, err
		}
		data = text
	}

	sizing, err := cfgpack.MeasureText(data, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	values := make([]cfgpack.V, sizing.EntryCount)
	strPool := make([]byte, sizing.StrPoolSize)
	schema, err := cfgpack.ParseText(data, values, strPool, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return schema, values, strPool, nil
}
