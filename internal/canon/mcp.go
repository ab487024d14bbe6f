package canon

import "github.com/triage-ai/toolcanon/internal/model"

// MCPParser handles Model Context Protocol tools. The camelCase inputSchema
// key is preferred; input_schema is read only when inputSchema is absent.
type MCPParser struct{}

func (MCPParser) Format() model.Format { return model.FormatMCP }

func (MCPParser) sealed() {}

func (MCPParser) CanParse(doc map[string]any) bool {
	return (has(doc, "inputSchema") || has(doc, "input_schema")) && has(doc, "name")
}

func (MCPParser) Parse(doc map[string]any) (model.CanonicalTool, error) {
	name, err := stringField(doc, "name")
	if err != nil {
		return model.CanonicalTool{}, err
	}
	description, err := stringField(doc, "description")
	if err != nil {
		return model.CanonicalTool{}, err
	}

	key := "inputSchema"
	if !has(doc, key) {
		key = "input_schema"
	}
	inputs, err := objectField(doc, key)
	if err != nil {
		return model.CanonicalTool{}, err
	}
	return newParsedTool(model.FormatMCP, name, description, inputs, doc), nil
}
