// Package service wraps the canonicalizer in a start/stop lifecycle and
// announces every canonicalization on an event bus and an event sink.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/triage-ai/toolcanon/internal/canon"
	"github.com/triage-ai/toolcanon/internal/events"
	"github.com/triage-ai/toolcanon/internal/model"
	"github.com/triage-ai/toolcanon/internal/storage"
	"go.uber.org/zap"
)

const (
	TopicCanonicalized  = "tool.canonicalized"
	TopicFormatDetected = "tool.format_detected"

	DefaultName = "toolcanon"
)

var ErrNotRunning = errors.New("canonicalizer service is not running")

// State is the lifecycle state of a Service.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Status is a point-in-time view of a Service.
type Status struct {
	Name         string     `json:"name"`
	State        State      `json:"state"`
	RequestCount int64      `json:"request_count"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
}

// Config configures a Service.
type Config struct {
	Name   string
	Bus    *events.Bus         // nil creates a private bus
	Writer storage.EventWriter // optional durable sink
	Logger *zap.Logger
}

// Service is the lifecycle-managed canonicalizer.
type Service struct {
	name   string
	bus    *events.Bus
	writer storage.EventWriter
	logger *zap.Logger

	mu        sync.RWMutex
	canon     *canon.Canonicalizer // nil while stopped
	startedAt time.Time
	requests  atomic.Int64
}

// New creates a stopped Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}
	bus := cfg.Bus
	if bus == nil {
		bus = events.NewBus(logger)
	}
	return &Service{
		name:   name,
		bus:    bus,
		writer: cfg.Writer,
		logger: logger,
	}
}

// Start makes the service accept requests. Starting a running service is a no-op.
func (s *Service) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.canon != nil {
		return nil
	}
	s.canon = canon.NewCanonicalizer(s.logger)
	s.startedAt = time.Now().UTC()
	s.logger.Info("canonicalizer service started", zap.String("name", s.name))
	return nil
}

// Stop releases the canonicalizer. Stopping a stopped service is a no-op.
func (s *Service) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.canon == nil {
		return nil
	}
	s.canon = nil
	s.startedAt = time.Time{}
	s.logger.Info("canonicalizer service stopped", zap.String("name", s.name))
	return nil
}

// Healthy reports whether the service is running.
func (s *Service) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canon != nil
}

func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Name:         s.name,
		State:        StateStopped,
		RequestCount: s.requests.Load(),
	}
	if s.canon != nil {
		st.State = StateRunning
		started := s.startedAt
		st.StartedAt = &started
	}
	return st
}

// Bus returns the bus the service publishes on.
func (s *Service) Bus() *events.Bus {
	return s.bus
}

func (s *Service) canonicalizer() (*canon.Canonicalizer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.canon == nil {
		return nil, ErrNotRunning
	}
	return s.canon, nil
}

// Canonicalize auto-detects the format of doc and normalizes it.
func (s *Service) Canonicalize(ctx context.Context, doc map[string]any) (model.CanonicalizationResult, error) {
	c, err := s.canonicalizer()
	if err != nil {
		return model.CanonicalizationResult{}, err
	}
	s.requests.Add(1)
	result := c.Canonicalize(doc)
	s.announce(ctx, result)
	return result, nil
}

// CanonicalizeAs normalizes doc as format f.
func (s *Service) CanonicalizeAs(ctx context.Context, doc map[string]any, f model.Format) (model.CanonicalizationResult, error) {
	c, err := s.canonicalizer()
	if err != nil {
		return model.CanonicalizationResult{}, err
	}
	s.requests.Add(1)
	result := c.CanonicalizeAs(doc, f)
	s.announce(ctx, result)
	return result, nil
}

// DetectFormat resolves the format of doc without canonicalizing it.
func (s *Service) DetectFormat(ctx context.Context, doc map[string]any) (model.Format, error) {
	c, err := s.canonicalizer()
	if err != nil {
		return "", err
	}
	f := c.Detector().Detect(doc)
	s.bus.Publish(ctx, TopicFormatDetected, s.name, map[string]any{
		"source_format": string(f),
	})
	return f, nil
}

// Confidence scores doc against every format.
func (s *Service) Confidence(_ context.Context, doc map[string]any) (map[model.Format]float64, error) {
	c, err := s.canonicalizer()
	if err != nil {
		return nil, err
	}
	return c.Detector().Confidence(doc), nil
}

func (s *Service) announce(ctx context.Context, result model.CanonicalizationResult) {
	s.bus.Publish(ctx, TopicCanonicalized, s.name, map[string]any{
		"tool_name":     result.Tool.Name,
		"source_format": string(result.SourceFormatDetected),
		"warning_count": len(result.Warnings),
		"result":        result,
	})

	if s.writer == nil {
		return
	}
	data, err := json.Marshal(result.Tool)
	if err != nil {
		s.logger.Warn("canonical tool not serializable, event skipped",
			zap.String("tool_name", result.Tool.Name),
			zap.Error(err),
		)
		return
	}
	s.writer.Write(storage.NewCanonicalizedEvent(result, string(data), sourceFrom(ctx)))
}

type sourceKey struct{}

// WithSource tags ctx with the transport a request arrived on ("http", "grpc", ...).
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "api"
}
