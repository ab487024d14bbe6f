package canon

import "github.com/triage-ai/toolcanon/internal/model"

// AnthropicParser handles {"name":...,"description":...,"input_schema":{...}}.
type AnthropicParser struct{}

func (AnthropicParser) Format() model.Format { return model.FormatAnthropic }

func (AnthropicParser) sealed() {}

func (AnthropicParser) CanParse(doc map[string]any) bool {
	return has(doc, "input_schema") && has(doc, "name")
}

func (AnthropicParser) Parse(doc map[string]any) (model.CanonicalTool, error) {
	name, err := stringField(doc, "name")
	if err != nil {
		return model.CanonicalTool{}, err
	}
	description, err := stringField(doc, "description")
	if err != nil {
		return model.CanonicalTool{}, err
	}
	inputs, err := objectField(doc, "input_schema")
	if err != nil {
		return model.CanonicalTool{}, err
	}
	return newParsedTool(model.FormatAnthropic, name, description, inputs, doc), nil
}
