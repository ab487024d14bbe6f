// Package validate checks tool call arguments against a canonical tool's
// input schema.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/triage-ai/toolcanon/internal/emitter"
	"github.com/triage-ai/toolcanon/internal/model"
)

const resourceURL = "schema.json"

// Result is the outcome of validating one set of arguments.
type Result struct {
	Valid  bool   `json:"valid"`
	Detail string `json:"detail,omitempty"`
}

// Compile compiles a JSON-compatible schema document.
func Compile(schema map[string]any) (*jsonschema.Schema, error) {
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("Compile: %w", err)
	}
	schemaObj, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return nil, fmt.Errorf("Compile: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceURL, schemaObj); err != nil {
		return nil, fmt.Errorf("Compile: %w", err)
	}
	sch, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("Compile: %w", err)
	}
	return sch, nil
}

// Arguments validates argsJSON against the tool's normalized input schema.
// An error is returned when the schema does not compile or argsJSON is not
// JSON; schema violations are reported in the Result.
func Arguments(tool model.CanonicalTool, argsJSON []byte) (Result, error) {
	sch, err := Compile(emitter.NormalizedInputSchema(tool))
	if err != nil {
		return Result{}, fmt.Errorf("Arguments: %w", err)
	}

	args, err := jsonschema.UnmarshalJSON(bytes.NewReader(argsJSON))
	if err != nil {
		return Result{}, fmt.Errorf("Arguments: arguments are not valid JSON: %w", err)
	}

	if err := sch.Validate(args); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return Result{Valid: false, Detail: verr.Error()}, nil
		}
		return Result{}, fmt.Errorf("Arguments: %w", err)
	}
	return Result{Valid: true}, nil
}
