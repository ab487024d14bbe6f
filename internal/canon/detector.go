package canon

import "github.com/triage-ai/toolcanon/internal/model"

// RawConfidence is the fixed plausibility of the raw format for any document.
const RawConfidence = 0.1

// FormatDetector resolves the source format of a tool definition document.
type FormatDetector struct {
	parsers []Parser
}

// NewFormatDetector returns a detector holding the parsers in their fixed
// priority order: openai, anthropic, mcp, langchain.
func NewFormatDetector() *FormatDetector {
	return &FormatDetector{parsers: parsers()}
}

// Detect returns the format of the first parser whose CanParse accepts doc,
// or raw when none does. A document with both input_schema and name
// satisfies Anthropic and MCP alike and resolves to anthropic because it is
// checked first.
func (d *FormatDetector) Detect(doc map[string]any) model.Format {
	for _, p := range d.parsers {
		if p.CanParse(doc) {
			return p.Format()
		}
	}
	return model.FormatRaw
}

// Confidence scores every format independently of Detect's priority order.
// All five formats are always present.
func (d *FormatDetector) Confidence(doc map[string]any) map[model.Format]float64 {
	scores := make(map[model.Format]float64, len(model.Formats))

	openai := 0.0
	if isWrappedOpenAI(doc) {
		openai = 1.0
	} else if has(doc, "parameters") && has(doc, "name") {
		openai = 0.7
	}
	scores[model.FormatOpenAI] = openai

	anthropic := 0.0
	if has(doc, "input_schema") && has(doc, "name") {
		anthropic = 1.0
	}
	scores[model.FormatAnthropic] = anthropic

	mcp := 0.0
	if has(doc, "inputSchema") && has(doc, "name") {
		mcp = 1.0
	}
	scores[model.FormatMCP] = mcp

	langchain := 0.0
	if has(doc, "args_schema") || has(doc, "schema") {
		langchain = 0.9
	} else if has(doc, "properties") && has(doc, "name") {
		langchain = 0.6
	}
	scores[model.FormatLangChain] = langchain

	scores[model.FormatRaw] = RawConfidence
	return scores
}
