package api

import (
	"net/http"

	"github.com/triage-ai/toolcanon/internal/integration"
	"github.com/triage-ai/toolcanon/internal/service"
	"github.com/triage-ai/toolcanon/internal/store"
	"go.uber.org/zap"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Service *service.Service
	Store   *store.ToolStore
	Events  EventReader      // nil when no event warehouse is configured
	Hub     *integration.Hub // target of POST /v1/tools/register; nil disables it
	Logger  *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	// Stateless canonicalization
	mux.HandleFunc("POST /v1/canonicalize", deps.handleCanonicalize)
	mux.HandleFunc("POST /v1/detect", deps.handleDetect)
	mux.HandleFunc("POST /v1/emit/{target}", deps.handleEmit)

	// Tool store
	mux.HandleFunc("POST /v1/tools", deps.handleCreateTool)
	mux.HandleFunc("POST /v1/tools/register", deps.handleRegisterTool)
	mux.HandleFunc("GET /v1/tools", deps.handleListTools)
	mux.HandleFunc("GET /v1/tools/export/{provider}", deps.handleExportTools)
	mux.HandleFunc("GET /v1/tools/{tool_id}", deps.handleGetTool)
	mux.HandleFunc("DELETE /v1/tools/{tool_id}", deps.handleDeleteTool)
	mux.HandleFunc("GET /v1/tools/{tool_id}/emit/{target}", deps.handleEmitStored)
	mux.HandleFunc("POST /v1/tools/{tool_id}/validate", deps.handleValidate)

	// Event warehouse
	mux.HandleFunc("GET /v1/events", deps.handleListEvents)
	mux.HandleFunc("GET /v1/events/stats", deps.handleEventStats)
	mux.HandleFunc("GET /v1/events/{event_id}", deps.handleGetEvent)

	mux.HandleFunc("GET /v1/info", deps.handleInfo)
	mux.HandleFunc("GET /healthz", deps.handleHealth)

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
