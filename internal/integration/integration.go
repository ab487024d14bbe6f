// Package integration connects the canonicalizer to a shared hub: it
// registers the service descriptor and canonicalizes tools announced on the
// hub's bus.
package integration

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/triage-ai/toolcanon/internal/canon"
	"github.com/triage-ai/toolcanon/internal/emitter"
	"github.com/triage-ai/toolcanon/internal/events"
	"github.com/triage-ai/toolcanon/internal/model"
	"github.com/triage-ai/toolcanon/internal/service"
	"go.uber.org/zap"
)

const (
	ServiceName    = "toolcanon"
	ServiceVersion = "0.1.0"

	TopicRegistered    = "tool.registered"
	TopicCanonicalized = service.TopicCanonicalized

	serviceDescription = "Normalize tool definitions from any supported format " +
		"(OpenAI, Anthropic, MCP, LangChain) to the canonical tool IR " +
		"with semantic metadata."
)

var serviceCapabilities = []string{
	"tool_canonicalization",
	"format_detection",
	"semantic_metadata",
	"pii_detection",
	"security_tagging",
}

// ServiceInfo describes a service registered with a Hub.
type ServiceInfo struct {
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	Description      string   `json:"description"`
	Capabilities     []string `json:"capabilities"`
	SupportedFormats []string `json:"supported_formats"`
	OutputFormats    []string `json:"output_formats"`
	Status           string   `json:"status"`
}

// Info returns the toolcanon service descriptor.
func Info() ServiceInfo {
	supported := make([]string, 0, len(model.Formats))
	for _, f := range model.Formats {
		supported = append(supported, string(f))
	}
	outputs := make([]string, 0, len(emitter.Targets))
	for _, t := range emitter.Targets {
		outputs = append(outputs, string(t))
	}
	return ServiceInfo{
		Name:             ServiceName,
		Version:          ServiceVersion,
		Description:      serviceDescription,
		Capabilities:     append([]string(nil), serviceCapabilities...),
		SupportedFormats: supported,
		OutputFormats:    outputs,
		Status:           "healthy",
	}
}

// Hub is a shared bus plus a directory of registered services.
type Hub struct {
	Events *events.Bus

	mu       sync.RWMutex
	services map[string]ServiceInfo
}

func NewHub(bus *events.Bus) *Hub {
	return &Hub{Events: bus, services: make(map[string]ServiceInfo)}
}

func (h *Hub) Register(info ServiceInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.services[info.Name] = info
}

func (h *Hub) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.services, name)
}

// Service returns the registered descriptor for name, or nil.
func (h *Hub) Service(name string) *ServiceInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	info, ok := h.services[name]
	if !ok {
		return nil
	}
	return &info
}

// Integration canonicalizes tools announced as tool.registered on the hub
// and republishes them as tool.canonicalized.
type Integration struct {
	hub      *Hub
	svc      *service.Service // optional
	fallback *canon.Canonicalizer
	logger   *zap.Logger

	mu    sync.Mutex
	subID events.SubscriptionID
	setUp bool
}

// New creates an integration. svc may be nil, in which case a plain
// Canonicalizer handles every event.
func New(hub *Hub, svc *service.Service, logger *zap.Logger) *Integration {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Integration{
		hub:      hub,
		svc:      svc,
		fallback: canon.NewCanonicalizer(logger),
		logger:   logger,
	}
}

// Setup registers the descriptor and subscribes to tool.registered. Idempotent.
func (i *Integration) Setup() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.setUp {
		return
	}

	i.hub.Register(Info())
	i.subID = i.hub.Events.Subscribe(TopicRegistered, ServiceName, i.onToolRegistered)
	i.setUp = true
	i.logger.Info("integration set up",
		zap.String("service", ServiceName),
		zap.String("version", ServiceVersion),
		zap.Uint64("subscription_id", uint64(i.subID)),
	)
}

// Teardown unsubscribes and unregisters. Safe to call without Setup.
func (i *Integration) Teardown() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.setUp {
		return
	}

	i.hub.Events.Unsubscribe(i.subID)
	i.hub.Unregister(ServiceName)
	i.subID = 0
	i.setUp = false
	i.logger.Info("integration torn down", zap.String("service", ServiceName))
}

// IsSetUp reports whether Setup has run without a later Teardown.
func (i *Integration) IsSetUp() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.setUp
}

// PublishCanonicalized announces result on the hub and returns the number of handlers reached.
func (i *Integration) PublishCanonicalized(ctx context.Context, result model.CanonicalizationResult) int {
	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return i.hub.Events.Publish(ctx, TopicCanonicalized, ServiceName, map[string]any{
		"tool_name":      result.Tool.Name,
		"source_format":  string(result.SourceFormatDetected),
		"warning_count":  len(warnings),
		"warnings":       warnings,
		"canonical_tool": toJSONMap(result.Tool),
	})
}

func (i *Integration) onToolRegistered(ctx context.Context, e events.Event) {
	toolDef, ok := e.Data["tool_def"].(map[string]any)
	if !ok {
		i.logger.Warn("tool.registered event without an object tool_def, skipping",
			zap.String("source", e.Source),
		)
		return
	}

	result, err := i.canonicalize(ctx, toolDef)
	if err != nil {
		i.logger.Error("failed to canonicalize registered tool",
			zap.String("source", e.Source),
			zap.Error(err),
		)
		return
	}

	i.PublishCanonicalized(ctx, result)
	i.logger.Info("canonicalized registered tool",
		zap.String("tool_name", result.Tool.Name),
		zap.String("source_format", string(result.SourceFormatDetected)),
		zap.Int("warning_count", len(result.Warnings)),
	)
}

func (i *Integration) canonicalize(ctx context.Context, doc map[string]any) (model.CanonicalizationResult, error) {
	if i.svc != nil && i.svc.Healthy() {
		return i.svc.Canonicalize(service.WithSource(ctx, "bus"), doc)
	}
	return i.fallback.Canonicalize(doc), nil
}

// toJSONMap renders v the way it serializes to JSON.
func toJSONMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}
