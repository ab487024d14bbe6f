// Package loader reads tool definition documents from JSON or YAML files and
// narrows them with jq queries.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/itchyny/gojq"
	"sigs.k8s.io/yaml"
)

// ErrNotObject is returned when a document, or a query result, is not a JSON object.
var ErrNotObject = errors.New("tool definition must be a JSON object")

// IsYAML reports whether path has a YAML extension.
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ReadFile decodes a JSON or YAML file, chosen by extension, into generic values.
func ReadFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ReadFile: %w", err)
	}
	v, err := Decode(data, IsYAML(path))
	if err != nil {
		return nil, fmt.Errorf("ReadFile: %s: %w", path, err)
	}
	return v, nil
}

// Decode parses JSON, or YAML when yamlInput is set. YAML is converted to
// JSON first so both yield the same value types.
func Decode(data []byte, yamlInput bool) (any, error) {
	if yamlInput {
		converted, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		data = converted
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return v, nil
}

// Select runs a jq query over v and returns every result.
func Select(v any, query string) ([]any, error) {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("invalid jq query: %w", err)
	}

	var results []any
	iter := parsed.Run(v)
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := r.(error); isErr {
			return nil, fmt.Errorf("jq error: %w", err)
		}
		results = append(results, r)
	}
	return results, nil
}

// Object asserts that v is a JSON object.
func Object(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w, got %T", ErrNotObject, v)
	}
	return m, nil
}

// LoadTool reads one tool definition from path. With a non-empty query the
// first query result is used.
func LoadTool(path, query string) (map[string]any, error) {
	v, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if query != "" {
		results, err := Select(v, query)
		if err != nil {
			return nil, fmt.Errorf("LoadTool: %w", err)
		}
		if len(results) == 0 {
			return nil, fmt.Errorf("LoadTool: query %q matched nothing", query)
		}
		v = results[0]
	}
	m, err := Object(v)
	if err != nil {
		return nil, fmt.Errorf("LoadTool: %w", err)
	}
	return m, nil
}

// LoadTools reads every tool definition selected by query from path. An
// array document yields its elements; an object yields itself.
func LoadTools(path, query string) ([]map[string]any, error) {
	v, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	results := []any{v}
	if query != "" {
		if results, err = Select(v, query); err != nil {
			return nil, fmt.Errorf("LoadTools: %w", err)
		}
	}

	var docs []map[string]any
	for _, r := range results {
		items := []any{r}
		if arr, ok := r.([]any); ok {
			items = arr
		}
		for _, item := range items {
			m, err := Object(item)
			if err != nil {
				return nil, fmt.Errorf("LoadTools: %w", err)
			}
			docs = append(docs, m)
		}
	}
	return docs, nil
}
