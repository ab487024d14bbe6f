package api

import (
	"net/http"

	"github.com/triage-ai/toolcanon/internal/integration"
	"go.uber.org/zap"
)

// handleRegisterTool announces a tool definition on the hub as
// tool.registered. Subscribers, the canonicalizer integration among them,
// handle it before the response is written.
func (d *Dependencies) handleRegisterTool(w http.ResponseWriter, r *http.Request) {
	if d.Hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Event hub not configured"})
		return
	}
	var req RegisterToolReq
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.ToolDef == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "tool_def must be a JSON object"})
		return
	}
	source := req.Source
	if source == "" {
		source = "http"
	}

	n := d.Hub.Events.Publish(r.Context(), integration.TopicRegistered, source, map[string]any{
		"tool_def": req.ToolDef,
	})
	d.Logger.Debug("published tool.registered",
		zap.String("source", source),
		zap.Int("delivered", n),
	)
	writeJSON(w, http.StatusAccepted, RegisterToolResp{Delivered: n})
}
