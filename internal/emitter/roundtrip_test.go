package emitter

import (
	"reflect"
	"sort"
	"testing"

	"github.com/triage-ai/toolcanon/internal/canon"
	"github.com/triage-ai/toolcanon/internal/model"
)

func roundtripInputs() map[string]map[string]any {
	schema := func() map[string]any {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":  map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer"},
			},
			"required": []any{"path"},
		}
	}
	return map[string]map[string]any{
		"openai-wrapped": {
			"type":     "function",
			"function": map[string]any{"name": "read_file", "description": "Read a file", "parameters": schema()},
		},
		"openai-legacy": {"name": "read_file", "description": "Read a file", "parameters": schema()},
		"anthropic":     {"name": "read_file", "description": "Read a file", "input_schema": schema()},
		"mcp":           {"name": "read_file", "description": "Read a file", "inputSchema": schema()},
		"langchain":     {"name": "read_file", "description": "Read a file", "args_schema": schema()},
	}
}

func nameOf(target Target, doc map[string]any) any {
	if target == TargetOpenAI {
		return doc["function"].(map[string]any)["name"]
	}
	if target == TargetJSONSchema {
		return doc["title"]
	}
	return doc["name"]
}

func TestRoundtrip_EveryTargetCarriesName(t *testing.T) {
	c := canon.NewCanonicalizer(nil)
	for label, doc := range roundtripInputs() {
		result := c.Canonicalize(doc)
		for _, target := range Targets {
			out, err := Emit(target, result.Tool)
			if err != nil {
				t.Fatalf("%s -> %s: %v", label, target, err)
			}
			if got := nameOf(target, out); got != "read_file" {
				t.Fatalf("%s -> %s: name = %v", label, target, got)
			}
		}
	}
}

func propertyKeys(schema map[string]any) []string {
	props, _ := schema["properties"].(map[string]any)
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestRoundtrip_OwnFormatPreservesShape(t *testing.T) {
	own := map[model.Format]Target{
		model.FormatOpenAI:    TargetOpenAI,
		model.FormatAnthropic: TargetAnthropic,
		model.FormatMCP:       TargetMCP,
	}
	c := canon.NewCanonicalizer(nil)
	for label, doc := range roundtripInputs() {
		first := c.Canonicalize(doc).Tool
		target, ok := own[first.SourceFormat]
		if !ok {
			continue
		}
		emitted, err := Emit(target, first)
		if err != nil {
			t.Fatal(err)
		}
		second := c.Canonicalize(emitted).Tool

		if second.Name != first.Name || second.Description != first.Description {
			t.Fatalf("%s: name/description changed: %q/%q", label, second.Name, second.Description)
		}
		if second.SourceFormat != first.SourceFormat {
			t.Fatalf("%s: format changed from %s to %s", label, first.SourceFormat, second.SourceFormat)
		}
		if !reflect.DeepEqual(propertyKeys(first.Inputs), propertyKeys(second.Inputs)) {
			t.Fatalf("%s: property keys changed: %v -> %v", label, propertyKeys(first.Inputs), propertyKeys(second.Inputs))
		}
	}
}

func TestRoundtrip_CrossFormat(t *testing.T) {
	c := canon.NewCanonicalizer(nil)
	tool := c.Canonicalize(roundtripInputs()["langchain"]).Tool

	mcp := MCP(tool)
	back := c.Canonicalize(mcp)
	if back.SourceFormatDetected != model.FormatMCP {
		t.Fatalf("expected mcp, got %s", back.SourceFormatDetected)
	}
	if !reflect.DeepEqual(propertyKeys(back.Tool.Inputs), []string{"limit", "path"}) {
		t.Fatalf("unexpected keys %v", propertyKeys(back.Tool.Inputs))
	}

	// An Anthropic document also satisfies the MCP predicate but detects as anthropic.
	anth := Anthropic(tool)
	if got := canon.NewFormatDetector().Detect(anth); got != model.FormatAnthropic {
		t.Fatalf("expected anthropic, got %s", got)
	}
}
