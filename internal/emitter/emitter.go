// Package emitter renders a CanonicalTool into the wire shape of a target
// tool-calling convention. Every emitter is total: it cannot fail and always
// returns a fresh JSON-compatible document.
package emitter

import (
	"errors"
	"fmt"

	"github.com/triage-ai/toolcanon/internal/model"
)

// Target is an emission format.
type Target string

const (
	TargetOpenAI     Target = "openai"
	TargetAnthropic  Target = "anthropic"
	TargetMCP        Target = "mcp"
	TargetJSONSchema Target = "json-schema"
)

// Targets lists every emission target.
var Targets = []Target{TargetOpenAI, TargetAnthropic, TargetMCP, TargetJSONSchema}

// JSONSchemaDialect is the $schema URI stamped on json-schema output.
const JSONSchemaDialect = "https://json-schema.org/draft/2019-09/schema"

var ErrUnknownTarget = errors.New("unknown emit target")

// ParseTarget maps a target tag to its Target.
func ParseTarget(s string) (Target, error) {
	for _, t := range Targets {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
}

// Emit dispatches to the emitter for target.
func Emit(target Target, tool model.CanonicalTool) (map[string]any, error) {
	switch target {
	case TargetOpenAI:
		return OpenAI(tool), nil
	case TargetAnthropic:
		return Anthropic(tool), nil
	case TargetMCP:
		return MCP(tool), nil
	case TargetJSONSchema:
		return JSONSchema(tool), nil
	}
	return nil, fmt.Errorf("Emit: %w: %q", ErrUnknownTarget, target)
}

// OpenAI emits {"type":"function","function":{name, description, parameters}}.
func OpenAI(tool model.CanonicalTool) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"parameters":  NormalizedInputSchema(tool),
		},
	}
}

// Anthropic emits {name, description, input_schema}.
func Anthropic(tool model.CanonicalTool) map[string]any {
	return map[string]any{
		"name":         tool.Name,
		"description":  tool.Description,
		"input_schema": NormalizedInputSchema(tool),
	}
}

// MCP emits {name, description, inputSchema}. The snake_case key is never written.
func MCP(tool model.CanonicalTool) map[string]any {
	return map[string]any{
		"name":        tool.Name,
		"description": tool.Description,
		"inputSchema": NormalizedInputSchema(tool),
	}
}

// JSONSchema emits the tool's inputs as a standalone schema document with
// title, description and the x-* extension keys. Inputs are not given a
// forced type; the overlay keys replace same-named input keys.
func JSONSchema(tool model.CanonicalTool) map[string]any {
	doc := inputsOrEmpty(tool)
	doc["$schema"] = JSONSchemaDialect
	doc["title"] = tool.Name
	doc["description"] = tool.Description

	if len(tool.Outputs) > 0 {
		doc["x-outputs"] = tool.Outputs
	}

	c := tool.Capabilities
	doc["x-capabilities"] = map[string]any{
		"action":        c.Action,
		"domain":        c.Domain,
		"side_effects":  c.SideEffects,
		"idempotent":    c.Idempotent,
		"cost_estimate": c.CostEstimate,
	}

	if s := tool.Security; s != nil {
		perms := make([]any, 0, len(s.RequiredPermissions))
		for _, p := range s.RequiredPermissions {
			perms = append(perms, p)
		}
		doc["x-security"] = map[string]any{
			"required_permissions": perms,
			"data_classification":  s.DataClassification,
			"pii_handling":         s.PIIHandling,
		}
	}
	return doc
}

// NormalizedInputSchema returns a shallow copy of the tool's inputs, or an
// empty object schema, with "type":"object" added when no type key exists.
func NormalizedInputSchema(tool model.CanonicalTool) map[string]any {
	schema := inputsOrEmpty(tool)
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	return schema
}

func inputsOrEmpty(tool model.CanonicalTool) map[string]any {
	if len(tool.Inputs) == 0 {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	out := make(map[string]any, len(tool.Inputs)+1)
	for k, v := range tool.Inputs {
		out[k] = v
	}
	return out
}
