package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/triage-ai/toolcanon/internal/model"
)

// StoredTool is the persisted form of a CanonicalTool.
// Loaded from the stored_tools table.
type StoredTool struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	SourceFormat  string    `json:"source_format"`
	CanonicalJSON string    `json:"canonical_json"`
	Capabilities  []string  `json:"capabilities"`
	SecurityTags  []string  `json:"security_tags"`
	PIITags       []string  `json:"pii_tags"`
	CreatedAt     time.Time `json:"created_at"`
}

// Tags are caller-supplied tags merged after the derived ones.
type Tags struct {
	Capabilities []string
	Security     []string
	PII          []string
}

// Repository persists StoredTool rows.
type Repository interface {
	// Put inserts or replaces a row by ID.
	Put(ctx context.Context, t *StoredTool) error

	// Get returns nil if no row has the ID.
	Get(ctx context.Context, id string) (*StoredTool, error)

	// Delete reports whether a row existed.
	Delete(ctx context.Context, id string) (bool, error)

	// List returns rows in insertion order.
	List(ctx context.Context, limit, offset int) ([]*StoredTool, error)

	Count(ctx context.Context) (int, error)

	ListBySourceFormat(ctx context.Context, sourceFormat string) ([]*StoredTool, error)

	Close() error
}

// FromCanonicalTool builds a StoredTool with a fresh ID and derived tags.
func FromCanonicalTool(tool model.CanonicalTool, extra Tags) (*StoredTool, error) {
	data, err := json.Marshal(tool)
	if err != nil {
		return nil, fmt.Errorf("FromCanonicalTool: %w", err)
	}

	capabilities := append(CapabilityTags(tool), extra.Capabilities...)
	security := append(SecurityTags(tool), extra.Security...)
	pii := append(PIITags(tool), extra.PII...)

	return &StoredTool{
		ID:            uuid.NewString(),
		Name:          tool.Name,
		SourceFormat:  string(tool.SourceFormat),
		CanonicalJSON: string(data),
		Capabilities:  capabilities,
		SecurityTags:  security,
		PIITags:       pii,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Tool decodes CanonicalJSON back into a CanonicalTool.
func (s *StoredTool) Tool() (model.CanonicalTool, error) {
	var tool model.CanonicalTool
	if err := json.Unmarshal([]byte(s.CanonicalJSON), &tool); err != nil {
		return model.CanonicalTool{}, fmt.Errorf("StoredTool.Tool: %w", err)
	}
	return tool, nil
}

func (s *StoredTool) clone() *StoredTool {
	cp := *s
	cp.Capabilities = slices.Clone(s.Capabilities)
	cp.SecurityTags = slices.Clone(s.SecurityTags)
	cp.PIITags = slices.Clone(s.PIITags)
	return &cp
}

// CapabilityTags returns the non-empty action and domain, then
// "side_effects" when the tool has side effects.
func CapabilityTags(tool model.CanonicalTool) []string {
	tags := []string{}
	if tool.Capabilities.Action != "" {
		tags = append(tags, tool.Capabilities.Action)
	}
	if tool.Capabilities.Domain != "" {
		tags = append(tags, tool.Capabilities.Domain)
	}
	if tool.Capabilities.SideEffects {
		tags = append(tags, "side_effects")
	}
	return tags
}

// SecurityTags returns the required permissions followed by the data
// classification unless it is public or empty.
func SecurityTags(tool model.CanonicalTool) []string {
	tags := []string{}
	if tool.Security == nil {
		return tags
	}
	tags = append(tags, tool.Security.RequiredPermissions...)
	if c := tool.Security.DataClassification; c != model.DefaultDataClassification && c != "" {
		tags = append(tags, c)
	}
	return tags
}

// PIITags returns the PII handling mode unless it is none or empty.
func PIITags(tool model.CanonicalTool) []string {
	tags := []string{}
	if tool.Security == nil {
		return tags
	}
	if p := tool.Security.PIIHandling; p != model.DefaultPIIHandling && p != "" {
		tags = append(tags, p)
	}
	return tags
}

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
