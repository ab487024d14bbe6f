package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/triage-ai/toolcanon/internal/model"
)

// EventWriter is the interface for writing canonicalization events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *CanonicalizedEvent)
	Close()
}

// CanonicalizedEvent represents one canonicalization to be persisted.
type CanonicalizedEvent struct {
	EventID        string
	Timestamp      time.Time
	ToolName       string
	DetectedFormat string // format the canonicalizer resolved
	ToolFormat     string // format of the produced tool; raw after a parser failure
	WarningCount   int32
	Warnings       []string
	CanonicalJSON  string
	Source         string // "http", "grpc", "bus", "cli"
}

// NewCanonicalizedEvent builds an event for result with a fresh ID.
// canonicalJSON is the serialized tool.
func NewCanonicalizedEvent(result model.CanonicalizationResult, canonicalJSON, source string) *CanonicalizedEvent {
	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return &CanonicalizedEvent{
		EventID:        uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		ToolName:       result.Tool.Name,
		DetectedFormat: string(result.SourceFormatDetected),
		ToolFormat:     string(result.Tool.SourceFormat),
		WarningCount:   int32(len(warnings)),
		Warnings:       warnings,
		CanonicalJSON:  canonicalJSON,
		Source:         source,
	}
}
