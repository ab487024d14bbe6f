package canon

import (
	"testing"

	"github.com/triage-ai/toolcanon/internal/model"
)

func TestInferCapabilities(t *testing.T) {
	tests := []struct {
		name        string
		tool        string
		description string
		action      string
		domain      string
		sideEffects bool
	}{
		{"search web", "search_web", "Search the web", "search", "web", false},
		{"read file", "read_file", "Read a file", "read", "filesystem", false},
		{"write file", "write_file", "Write content to a file", "write", "filesystem", true},
		{"send email", "send_email", "Send an email", "write", "email", true},
		{"read verb overrides write", "delete_and_list", "", "list", "general", true},
		{"sql query", "run_sql", "Run SQL query", "query", "database", false},
		{"http", "http_call", "", "read", "web", false},
		{"no keywords", "mystery", "", "read", "general", false},
		{"substring match", "mount", "Mount a filesystem", "read", "filesystem", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := InferCapabilities(tt.tool, tt.description)
			if c.Action != tt.action {
				t.Errorf("action = %q, want %q", c.Action, tt.action)
			}
			if c.Domain != tt.domain {
				t.Errorf("domain = %q, want %q", c.Domain, tt.domain)
			}
			if c.SideEffects != tt.sideEffects {
				t.Errorf("side_effects = %v, want %v", c.SideEffects, tt.sideEffects)
			}
			if c.Idempotent != !tt.sideEffects {
				t.Errorf("idempotent = %v, want %v", c.Idempotent, !tt.sideEffects)
			}
			if c.CostEstimate != model.DefaultCostEstimate {
				t.Errorf("cost_estimate = %q, want %q", c.CostEstimate, model.DefaultCostEstimate)
			}
		})
	}
}

func TestInferCapabilities_CaseInsensitive(t *testing.T) {
	c := InferCapabilities("FETCH_URL", "Fetch a WEB page")
	if c.Action != "fetch" {
		t.Fatalf("expected fetch, got %s", c.Action)
	}
	if c.Domain != "web" {
		t.Fatalf("expected web, got %s", c.Domain)
	}
}

func TestInferCapabilities_FirstReadVerbWins(t *testing.T) {
	// Both "get" and "list" appear; "get" comes first in the verb order.
	c := InferCapabilities("list_and_get", "")
	if c.Action != "get" {
		t.Fatalf("expected get, got %s", c.Action)
	}
}
