package api

import (
	"encoding/json"
	"time"

	"github.com/triage-ai/toolcanon/internal/model"
	"github.com/triage-ai/toolcanon/internal/storage"
	"github.com/triage-ai/toolcanon/internal/store"
)

// --- Canonicalization ---

// CanonicalizeReq is the JSON body for POST /v1/canonicalize.
type CanonicalizeReq struct {
	ToolDef      map[string]any `json:"tool_def"`
	SourceFormat string         `json:"source_format,omitempty"`
	Store        bool           `json:"store,omitempty"`
}

// CanonicalizeResp is a CanonicalizationResult plus the stored ID when persisted.
type CanonicalizeResp struct {
	Tool                 model.CanonicalTool `json:"tool"`
	Warnings             []string            `json:"warnings"`
	SourceFormatDetected model.Format        `json:"source_format_detected"`
	StoredID             string              `json:"stored_id,omitempty"`
}

// DetectReq is the JSON body for POST /v1/detect.
type DetectReq struct {
	ToolDef map[string]any `json:"tool_def"`
}

// DetectResp holds the detected format and per-format confidence.
type DetectResp struct {
	Format     model.Format             `json:"format"`
	Confidence map[model.Format]float64 `json:"confidence"`
}

// --- Tool store ---

// CreateToolResp is returned by POST /v1/tools.
type CreateToolResp struct {
	ID string `json:"id"`
}

// ToolResp is a stored tool with its decoded canonical form.
type ToolResp struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	SourceFormat string              `json:"source_format"`
	Capabilities []string            `json:"capabilities"`
	SecurityTags []string            `json:"security_tags"`
	PIITags      []string            `json:"pii_tags"`
	CreatedAt    time.Time           `json:"created_at"`
	Tool         model.CanonicalTool `json:"tool"`
}

// ToolListResp is returned by GET /v1/tools.
type ToolListResp struct {
	Tools []ToolResp `json:"tools"`
	Total int        `json:"total"`
}

// DeleteToolResp is returned by DELETE /v1/tools/{id}.
type DeleteToolResp struct {
	Deleted bool `json:"deleted"`
}

// RegisterToolReq is the JSON body for POST /v1/tools/register.
type RegisterToolReq struct {
	ToolDef map[string]any `json:"tool_def"`
	Source  string         `json:"source,omitempty"`
}

// RegisterToolResp reports how many hub subscribers received tool.registered.
type RegisterToolResp struct {
	Delivered int `json:"delivered"`
}

// --- Events ---

// EventResp is one canonicalization event from the warehouse.
type EventResp struct {
	EventID        string          `json:"event_id"`
	Timestamp      time.Time       `json:"timestamp"`
	ToolName       string          `json:"tool_name"`
	DetectedFormat string          `json:"detected_format"`
	ToolFormat     string          `json:"tool_format"`
	WarningCount   int32           `json:"warning_count"`
	Warnings       []string        `json:"warnings"`
	CanonicalJSON  json.RawMessage `json:"canonical"`
	Source         string          `json:"source"`
}

// EventListResp is returned by GET /v1/events.
type EventListResp struct {
	Events   []EventResp `json:"events"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// EventStatsResp is returned by GET /v1/events/stats.
type EventStatsResp struct {
	Days int `json:"days"`
	storage.EventStats
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}

func toolToResp(t *store.StoredTool) (ToolResp, error) {
	tool, err := t.Tool()
	if err != nil {
		return ToolResp{}, err
	}
	return ToolResp{
		ID:           t.ID,
		Name:         t.Name,
		SourceFormat: t.SourceFormat,
		Capabilities: t.Capabilities,
		SecurityTags: t.SecurityTags,
		PIITags:      t.PIITags,
		CreatedAt:    t.CreatedAt,
		Tool:         tool,
	}, nil
}

func eventToResp(e *storage.CanonicalizedEvent) EventResp {
	canonical := json.RawMessage(e.CanonicalJSON)
	if !json.Valid(canonical) {
		canonical = json.RawMessage("null")
	}
	warnings := e.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return EventResp{
		EventID:        e.EventID,
		Timestamp:      e.Timestamp,
		ToolName:       e.ToolName,
		DetectedFormat: e.DetectedFormat,
		ToolFormat:     e.ToolFormat,
		WarningCount:   e.WarningCount,
		Warnings:       warnings,
		CanonicalJSON:  canonical,
		Source:         e.Source,
	}
}
