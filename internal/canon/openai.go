package canon

import (
	"fmt"

	"github.com/triage-ai/toolcanon/internal/model"
)

// OpenAIParser handles OpenAI function-calling definitions, both the wrapped
// {"type":"function","function":{...}} shape and the legacy top-level
// {"name":...,"parameters":{...}} shape.
type OpenAIParser struct{}

func (OpenAIParser) Format() model.Format { return model.FormatOpenAI }

func (OpenAIParser) sealed() {}

func (OpenAIParser) CanParse(doc map[string]any) bool {
	if isWrappedOpenAI(doc) {
		return true
	}
	return has(doc, "name") && has(doc, "parameters")
}

func (OpenAIParser) Parse(doc map[string]any) (model.CanonicalTool, error) {
	fn := doc
	if isWrappedOpenAI(doc) {
		m, ok := doc["function"].(map[string]any)
		if !ok {
			return model.CanonicalTool{}, fmt.Errorf("field \"function\" must be an object, got %s", jsonType(doc["function"]))
		}
		fn = m
	}

	name, err := stringField(fn, "name")
	if err != nil {
		return model.CanonicalTool{}, err
	}
	description, err := stringField(fn, "description")
	if err != nil {
		return model.CanonicalTool{}, err
	}
	parameters, err := objectField(fn, "parameters")
	if err != nil {
		return model.CanonicalTool{}, err
	}

	return newParsedTool(model.FormatOpenAI, name, description, parameters, doc), nil
}

func isWrappedOpenAI(doc map[string]any) bool {
	return doc["type"] == "function" && has(doc, "function")
}
