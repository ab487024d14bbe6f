package model

import (
	"errors"
	"fmt"

	"github.com/mitchellh/copystructure"
	"github.com/mitchellh/mapstructure"
)

// ErrMissingName is returned when a canonical tool document has no name key.
var ErrMissingName = errors.New("canonical tool has no name field")

// ToolFromMap decodes a generic JSON-compatible map into a CanonicalTool,
// applying defaults for absent fields.
func ToolFromMap(m map[string]any) (CanonicalTool, error) {
	if _, ok := m["name"]; !ok {
		return CanonicalTool{}, ErrMissingName
	}

	rest := make(map[string]any, len(m))
	for k, v := range m {
		rest[k] = v
	}

	var security *ToolSecurity
	if raw, ok := rest["security"]; ok {
		delete(rest, "security")
		if raw != nil {
			s := DefaultSecurity()
			if err := decodeInto(raw, &s); err != nil {
				return CanonicalTool{}, fmt.Errorf("ToolFromMap: security: %w", err)
			}
			security = &s
		}
	}

	tool := NewTool("")
	if err := decodeInto(rest, &tool); err != nil {
		return CanonicalTool{}, fmt.Errorf("ToolFromMap: %w", err)
	}
	if _, err := ParseFormat(string(tool.SourceFormat)); err != nil {
		return CanonicalTool{}, fmt.Errorf("ToolFromMap: %w", err)
	}
	tool.Security = security
	tool.fillNilMaps()
	return tool, nil
}

func decodeInto(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// CloneDocument returns a deep copy of a JSON-compatible document.
// A nil document clones to an empty map.
func CloneDocument(doc map[string]any) (map[string]any, error) {
	if doc == nil {
		return map[string]any{}, nil
	}
	c, err := copystructure.Copy(doc)
	if err != nil {
		return nil, fmt.Errorf("CloneDocument: %w", err)
	}
	return c.(map[string]any), nil
}
