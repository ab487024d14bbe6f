package canon

import (
	"fmt"

	"github.com/triage-ai/toolcanon/internal/model"
)

// rawInputKeys are tried in order for the input schema of an unrecognized document.
var rawInputKeys = []string{"parameters", "input_schema", "inputSchema", "schema"}

// rawCanonicalize extracts what it can from a document no parser handled.
// It cannot fail: wrong-typed candidates are skipped. Capabilities are left
// at their defaults and source_format is always raw.
func rawCanonicalize(doc map[string]any) model.CanonicalTool {
	name := firstText(doc["name"], doc["title"])
	if name == "" {
		if fn, ok := doc["function"].(map[string]any); ok {
			name = firstText(fn["name"])
		}
	}

	tool := model.NewTool(name)
	tool.Description = firstText(doc["description"])
	for _, k := range rawInputKeys {
		if m, ok := doc[k].(map[string]any); ok && len(m) > 0 {
			tool.Inputs = m
			break
		}
	}
	tool.OriginalDefinition = doc
	return tool
}

// firstText renders the first truthy value as text.
func firstText(values ...any) string {
	for _, v := range values {
		if !truthy(v) {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}
