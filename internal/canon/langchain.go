package canon

import (
	"fmt"
	"sort"

	"github.com/triage-ai/toolcanon/internal/model"
)

// LangChainParser handles the shapes LangChain tools serialize to:
//
//	{"name", "description", "args_schema": {...}}   BaseTool
//	{"name", "description", "schema": {...}}        StructuredTool
//	{"title", "description", "properties": {...}}   tool.schema() output
type LangChainParser struct{}

func (LangChainParser) Format() model.Format { return model.FormatLangChain }

func (LangChainParser) sealed() {}

func (LangChainParser) CanParse(doc map[string]any) bool {
	return has(doc, "args_schema") ||
		has(doc, "schema") ||
		(has(doc, "name") && has(doc, "description") && has(doc, "properties"))
}

func (LangChainParser) Parse(doc map[string]any) (model.CanonicalTool, error) {
	nameKey := "name"
	if !has(doc, nameKey) {
		nameKey = "title"
	}
	name, err := stringField(doc, nameKey)
	if err != nil {
		return model.CanonicalTool{}, err
	}
	description, err := stringField(doc, "description")
	if err != nil {
		return model.CanonicalTool{}, err
	}

	inputs, err := langChainInputs(doc)
	if err != nil {
		return model.CanonicalTool{}, err
	}
	return newParsedTool(model.FormatLangChain, name, description, inputs, doc), nil
}

func langChainInputs(doc map[string]any) (map[string]any, error) {
	switch {
	case has(doc, "args_schema"):
		return schemaFrom(doc, "args_schema")
	case has(doc, "schema"):
		return schemaFrom(doc, "schema")
	case has(doc, "parameters"):
		return objectField(doc, "parameters")
	case has(doc, "properties"):
		return map[string]any{
			"type":       "object",
			"properties": doc["properties"],
			"required":   valueOr(doc, "required", []any{}),
		}, nil
	}
	return map[string]any{}, nil
}

func schemaFrom(doc map[string]any, key string) (map[string]any, error) {
	schema, err := objectField(doc, key)
	if err != nil {
		return nil, err
	}
	return normalizeLangChainSchema(schema)
}

// normalizeLangChainSchema turns a JSON-schema or Pydantic-v2 field map into
// an object schema. Anything else passes through unchanged.
func normalizeLangChainSchema(schema map[string]any) (map[string]any, error) {
	if schema["type"] == "object" || has(schema, "properties") {
		return map[string]any{
			"type":       "object",
			"properties": valueOr(schema, "properties", map[string]any{}),
			"required":   valueOr(schema, "required", []any{}),
		}, nil
	}

	if has(schema, "model_fields") {
		fields, err := objectField(schema, "model_fields")
		if err != nil {
			return nil, err
		}

		names := make([]string, 0, len(fields))
		for n := range fields {
			names = append(names, n)
		}
		sort.Strings(names)

		properties := make(map[string]any, len(fields))
		required := make([]any, 0, len(fields))
		for _, n := range names {
			info, ok := fields[n].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("model field %q must be an object, got %s", n, jsonType(fields[n]))
			}
			// Field types are not inferred; string is the placeholder.
			properties[n] = map[string]any{"type": "string"}
			isRequired, present := info["is_required"]
			if !present || truthy(isRequired) {
				required = append(required, n)
			}
		}
		return map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		}, nil
	}

	return schema, nil
}
