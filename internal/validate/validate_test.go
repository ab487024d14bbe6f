package validate

import (
	"testing"

	"github.com/triage-ai/toolcanon/internal/emitter"
	"github.com/triage-ai/toolcanon/internal/model"
)

func weatherTool() model.CanonicalTool {
	tool := model.NewTool("get_weather")
	tool.Inputs = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
			"days": map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []any{"city"},
	}
	return tool
}

func TestArguments_Valid(t *testing.T) {
	result, err := Arguments(weatherTool(), []byte(`{"city":"Paris","days":3}`))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, got %s", result.Detail)
	}
}

func TestArguments_MissingRequired(t *testing.T) {
	result, err := Arguments(weatherTool(), []byte(`{"days":3}`))
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Fatal("expected missing city to fail")
	}
	if result.Detail == "" {
		t.Fatal("expected a detail message")
	}
}

func TestArguments_WrongType(t *testing.T) {
	result, err := Arguments(weatherTool(), []byte(`{"city":"Paris","days":0.5}`))
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Fatal("expected non-integer days to fail")
	}
}

func TestArguments_EmptyInputsAcceptObjects(t *testing.T) {
	tool := model.NewTool("noop")
	result, err := Arguments(tool, []byte(`{"anything":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, got %s", result.Detail)
	}

	result, err = Arguments(tool, []byte(`[1,2]`))
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Fatal("normalized schema requires an object")
	}
}

func TestArguments_BadJSON(t *testing.T) {
	if _, err := Arguments(weatherTool(), []byte(`{"city":`)); err == nil {
		t.Fatal("expected error for malformed arguments")
	}
}

func TestArguments_BadSchema(t *testing.T) {
	tool := model.NewTool("broken")
	tool.Inputs = map[string]any{"type": 12.0}
	if _, err := Arguments(tool, []byte(`{}`)); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestCompile_EmittedJSONSchema(t *testing.T) {
	tool := weatherTool()
	tool.Description = "Get the weather"
	tool.Security = &model.ToolSecurity{RequiredPermissions: []string{"net"}, DataClassification: "internal", PIIHandling: "none"}
	tool.Outputs = map[string]any{"type": "string"}

	sch, err := Compile(emitter.JSONSchema(tool))
	if err != nil {
		t.Fatalf("emitted json-schema did not compile: %v", err)
	}
	if err := sch.Validate(map[string]any{"city": "Oslo"}); err != nil {
		t.Fatalf("expected valid instance: %v", err)
	}
}
