package api

import (
	"errors"
	"net/http"

	"github.com/triage-ai/toolcanon/internal/emitter"
	"github.com/triage-ai/toolcanon/internal/integration"
	"github.com/triage-ai/toolcanon/internal/model"
	"github.com/triage-ai/toolcanon/internal/service"
	"github.com/triage-ai/toolcanon/internal/store"
	"go.uber.org/zap"
)

func (d *Dependencies) handleCanonicalize(w http.ResponseWriter, r *http.Request) {
	var req CanonicalizeReq
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.ToolDef == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "tool_def must be a JSON object"})
		return
	}

	ctx := service.WithSource(r.Context(), "http")
	var (
		result model.CanonicalizationResult
		err    error
	)
	if req.SourceFormat != "" {
		f, perr := model.ParseFormat(req.SourceFormat)
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: perr.Error()})
			return
		}
		result, err = d.Service.CanonicalizeAs(ctx, req.ToolDef, f)
	} else {
		result, err = d.Service.Canonicalize(ctx, req.ToolDef)
	}
	if err != nil {
		d.writeServiceError(w, err)
		return
	}

	resp := CanonicalizeResp{
		Tool:                 result.Tool,
		Warnings:             result.Warnings,
		SourceFormatDetected: result.SourceFormatDetected,
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}

	if req.Store {
		if d.Store == nil {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Tool store not configured"})
			return
		}
		id, err := d.Store.Save(r.Context(), result.Tool, store.Tags{})
		if err != nil {
			d.Logger.Error("failed to store canonical tool", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to store tool"})
			return
		}
		resp.StoredID = id
	}

	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req DetectReq
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.ToolDef == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "tool_def must be a JSON object"})
		return
	}

	ctx := service.WithSource(r.Context(), "http")
	f, err := d.Service.DetectFormat(ctx, req.ToolDef)
	if err != nil {
		d.writeServiceError(w, err)
		return
	}
	scores, err := d.Service.Confidence(ctx, req.ToolDef)
	if err != nil {
		d.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DetectResp{Format: f, Confidence: scores})
}

func (d *Dependencies) handleEmit(w http.ResponseWriter, r *http.Request) {
	target, err := emitter.ParseTarget(r.PathValue("target"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}
	tool, ok := d.readTool(w, r)
	if !ok {
		return
	}
	out, err := emitter.Emit(target, tool)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (d *Dependencies) handleInfo(w http.ResponseWriter, _ *http.Request) {
	info := integration.Info()
	if !d.Service.Healthy() {
		info.Status = string(service.StateStopped)
	}
	writeJSON(w, http.StatusOK, info)
}

func (d *Dependencies) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !d.Service.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readTool decodes a CanonicalTool body with defaults applied. It writes the
// error response itself and reports whether decoding succeeded.
func (d *Dependencies) readTool(w http.ResponseWriter, r *http.Request) (model.CanonicalTool, bool) {
	var body map[string]any
	if err := readJSON(w, r, &body); err != nil || body == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return model.CanonicalTool{}, false
	}
	tool, err := model.ToolFromMap(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return model.CanonicalTool{}, false
	}
	return tool, true
}

func (d *Dependencies) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrNotRunning) {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: err.Error()})
		return
	}
	d.Logger.Error("canonicalizer service error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Internal error"})
}
