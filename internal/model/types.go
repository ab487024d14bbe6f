package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Format identifies the convention a tool definition document is written in.
type Format string

const (
	FormatOpenAI    Format = "openai"
	FormatAnthropic Format = "anthropic"
	FormatMCP       Format = "mcp"
	FormatLangChain Format = "langchain"
	FormatRaw       Format = "raw"
)

// Formats lists every Format in detection priority order, raw last.
var Formats = []Format{FormatOpenAI, FormatAnthropic, FormatMCP, FormatLangChain, FormatRaw}

// ErrUnknownFormat is returned by ParseFormat for tags outside the closed enumeration.
var ErrUnknownFormat = errors.New("unknown source format")

// ParseFormat maps a lowercase tag to its Format.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Valid reports whether f is one of Formats.
func (f Format) Valid() bool {
	_, err := ParseFormat(string(f))
	return err == nil
}

func (f Format) String() string {
	return string(f)
}

const (
	DefaultVersion            = "1.0.0"
	DefaultCostEstimate       = "unknown"
	DefaultDataClassification = "public"
	DefaultPIIHandling        = "none"
)

// ToolCapability is descriptive metadata inferred from a tool's name and description.
type ToolCapability struct {
	Action       string `json:"action" mapstructure:"action"`
	Domain       string `json:"domain" mapstructure:"domain"`
	SideEffects  bool   `json:"side_effects" mapstructure:"side_effects"`
	Idempotent   bool   `json:"idempotent" mapstructure:"idempotent"`
	CostEstimate string `json:"cost_estimate" mapstructure:"cost_estimate"`
}

// DefaultCapability returns the capability record used when nothing was inferred.
func DefaultCapability() ToolCapability {
	return ToolCapability{
		Idempotent:   true,
		CostEstimate: DefaultCostEstimate,
	}
}

// ToolSecurity carries data-handling metadata. Parsers never populate it.
type ToolSecurity struct {
	RequiredPermissions []string `json:"required_permissions" mapstructure:"required_permissions"`
	DataClassification  string   `json:"data_classification" mapstructure:"data_classification"`
	PIIHandling         string   `json:"pii_handling" mapstructure:"pii_handling"`
}

// DefaultSecurity returns a security record with default classification and PII handling.
func DefaultSecurity() ToolSecurity {
	return ToolSecurity{
		RequiredPermissions: []string{},
		DataClassification:  DefaultDataClassification,
		PIIHandling:         DefaultPIIHandling,
	}
}

func (s *ToolSecurity) UnmarshalJSON(data []byte) error {
	type plain ToolSecurity
	p := plain(DefaultSecurity())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = ToolSecurity(p)
	return nil
}

// CanonicalTool is the canonical intermediate representation every supported
// format is normalized to and emitted from.
//
// OriginalDefinition is either empty or a copy of exactly the document the
// producing parser was given; it is never mutated afterward.
type CanonicalTool struct {
	Name               string         `json:"name" mapstructure:"name"`
	Version            string         `json:"version" mapstructure:"version"`
	Description        string         `json:"description" mapstructure:"description"`
	Capabilities       ToolCapability `json:"capabilities" mapstructure:"capabilities"`
	Inputs             map[string]any `json:"inputs" mapstructure:"inputs"`
	Outputs            map[string]any `json:"outputs" mapstructure:"outputs"`
	Security           *ToolSecurity  `json:"security" mapstructure:"security"`
	SourceFormat       Format         `json:"source_format" mapstructure:"source_format"`
	OriginalDefinition map[string]any `json:"original_definition" mapstructure:"original_definition"`
}

// NewTool returns a tool with every default applied.
func NewTool(name string) CanonicalTool {
	return CanonicalTool{
		Name:               name,
		Version:            DefaultVersion,
		Capabilities:       DefaultCapability(),
		Inputs:             map[string]any{},
		Outputs:            map[string]any{},
		SourceFormat:       FormatRaw,
		OriginalDefinition: map[string]any{},
	}
}

// UnmarshalJSON applies the defaults of NewTool to absent fields.
func (t *CanonicalTool) UnmarshalJSON(data []byte) error {
	type plain CanonicalTool
	p := plain(NewTool(""))
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = CanonicalTool(p)
	t.fillNilMaps()
	return nil
}

// fillNilMaps replaces explicit nulls so callers can range and index freely.
func (t *CanonicalTool) fillNilMaps() {
	if t.Inputs == nil {
		t.Inputs = map[string]any{}
	}
	if t.Outputs == nil {
		t.Outputs = map[string]any{}
	}
	if t.OriginalDefinition == nil {
		t.OriginalDefinition = map[string]any{}
	}
	if t.Security != nil && t.Security.RequiredPermissions == nil {
		t.Security.RequiredPermissions = []string{}
	}
}

// CanonicalizationResult is the outcome of one canonicalization call.
//
// SourceFormatDetected is the format the canonicalizer resolved, which can
// differ from Tool.SourceFormat when a parser failed and raw extraction ran.
type CanonicalizationResult struct {
	Tool                 CanonicalTool `json:"tool"`
	Warnings             []string      `json:"warnings"`
	SourceFormatDetected Format        `json:"source_format_detected"`
}
