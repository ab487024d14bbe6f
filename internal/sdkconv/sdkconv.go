// Package sdkconv converts canonical tools into the request types of the
// OpenAI and Anthropic Go SDKs.
package sdkconv

import (
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"github.com/triage-ai/toolcanon/internal/emitter"
	"github.com/triage-ai/toolcanon/internal/model"
)

// Provider names an SDK whose tool list request type Export renders.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

var ErrUnknownProvider = errors.New("unknown provider")

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderOpenAI, ProviderAnthropic:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q (expected openai or anthropic)", ErrUnknownProvider, s)
}

// Export converts tools to the provider's SDK tool list. The result is
// always a non-nil slice so it serializes as a JSON array.
func Export(p Provider, tools []model.CanonicalTool) (any, error) {
	switch p {
	case ProviderOpenAI:
		if out := OpenAITools(tools); out != nil {
			return out, nil
		}
		return []openai.Tool{}, nil
	case ProviderAnthropic:
		return AnthropicTools(tools), nil
	}
	return nil, fmt.Errorf("Export: %w: %q", ErrUnknownProvider, p)
}

// OpenAITool converts tool to an OpenAI function tool.
func OpenAITool(tool model.CanonicalTool) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  emitter.NormalizedInputSchema(tool),
		},
	}
}

// OpenAITools converts a tool list, returning nil for an empty list.
func OpenAITools(tools []model.CanonicalTool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = OpenAITool(t)
	}
	return result
}

// AnthropicTool converts tool to an Anthropic custom tool. The schema type is
// always "object"; keys other than properties and required travel as extra fields.
func AnthropicTool(tool model.CanonicalTool) anthropic.ToolUnionParam {
	schema := emitter.NormalizedInputSchema(tool)

	param := anthropic.ToolInputSchemaParam{
		Properties: schema["properties"],
		Required:   requiredNames(schema["required"]),
	}
	extra := make(map[string]any)
	for k, v := range schema {
		switch k {
		case "type", "properties", "required":
			continue
		}
		extra[k] = v
	}
	if len(extra) > 0 {
		param.ExtraFields = extra
	}

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: param,
		},
	}
}

// AnthropicTools converts a tool list.
func AnthropicTools(tools []model.CanonicalTool) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, AnthropicTool(t))
	}
	return result
}

func requiredNames(v any) []string {
	switch r := v.(type) {
	case []string:
		return append([]string(nil), r...)
	case []any:
		names := make([]string, 0, len(r))
		for _, n := range r {
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
		return names
	}
	return nil
}
