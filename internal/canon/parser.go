package canon

import "github.com/triage-ai/toolcanon/internal/model"

// Parser is one of the four fixed format strategies. The set is closed:
// the unexported method keeps implementations inside this package.
type Parser interface {
	// Format returns the format this parser produces.
	Format() model.Format

	// CanParse is a cheap shape test on top-level keys. It never fails.
	CanParse(doc map[string]any) bool

	// Parse builds a CanonicalTool. Missing fields degrade to empty values;
	// present fields of the wrong type are reported as an error.
	Parse(doc map[string]any) (model.CanonicalTool, error)

	sealed()
}

// parsers returns the strategies in detection priority order.
func parsers() []Parser {
	return []Parser{
		OpenAIParser{},
		AnthropicParser{},
		MCPParser{},
		LangChainParser{},
	}
}

// ParserFor returns the parser producing f, or nil for raw and unknown formats.
func ParserFor(f model.Format) Parser {
	for _, p := range parsers() {
		if p.Format() == f {
			return p
		}
	}
	return nil
}

// newParsedTool assembles the fields every parser shares.
func newParsedTool(f model.Format, name, description string, inputs, doc map[string]any) model.CanonicalTool {
	tool := model.NewTool(name)
	tool.Description = description
	tool.Capabilities = InferCapabilities(name, description)
	if inputs != nil {
		tool.Inputs = inputs
	}
	tool.SourceFormat = f
	if doc != nil {
		tool.OriginalDefinition = doc
	}
	return tool
}
