package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/triage-ai/toolcanon/internal/emitter"
	"github.com/triage-ai/toolcanon/internal/model"
	"github.com/triage-ai/toolcanon/internal/sdkconv"
	"github.com/triage-ai/toolcanon/internal/store"
	"github.com/triage-ai/toolcanon/internal/validate"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (d *Dependencies) handleCreateTool(w http.ResponseWriter, r *http.Request) {
	if !d.requireStore(w) {
		return
	}
	tool, ok := d.readTool(w, r)
	if !ok {
		return
	}
	id, err := d.Store.Save(r.Context(), tool, store.Tags{})
	if err != nil {
		d.Logger.Error("failed to store tool", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to store tool"})
		return
	}
	writeJSON(w, http.StatusCreated, CreateToolResp{ID: id})
}

func (d *Dependencies) handleListTools(w http.ResponseWriter, r *http.Request) {
	if !d.requireStore(w) {
		return
	}
	q := r.URL.Query()
	limit := queryInt(q, "limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(q, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	var sourceFormat model.Format
	if v := q.Get("source_format"); v != "" {
		f, err := model.ParseFormat(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
			return
		}
		sourceFormat = f
	}

	filters := d.listFilters(q.Get("capability"), q.Get("security_tag"), q.Get("pii_tag"), q.Get("name"), sourceFormat)

	var (
		tools []*store.StoredTool
		total int
		err   error
	)
	if len(filters) == 0 {
		if tools, err = d.Store.All(r.Context(), limit, offset); err == nil {
			total, err = d.Store.Count(r.Context())
		}
	} else {
		var matched []*store.StoredTool
		if matched, err = intersect(r.Context(), filters); err == nil {
			total = len(matched)
			tools = page(matched, limit, offset)
		}
	}
	if err != nil {
		d.Logger.Error("failed to list tools", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list tools"})
		return
	}

	resp := ToolListResp{Tools: make([]ToolResp, 0, len(tools)), Total: total}
	for _, t := range tools {
		tr, err := toolToResp(t)
		if err != nil {
			d.Logger.Error("stored tool has corrupt canonical json",
				zap.String("tool_id", t.ID),
				zap.Error(err),
			)
			continue
		}
		resp.Tools = append(resp.Tools, tr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetTool(w http.ResponseWriter, r *http.Request) {
	t, ok := d.loadTool(w, r)
	if !ok {
		return
	}
	resp, err := toolToResp(t)
	if err != nil {
		d.Logger.Error("stored tool has corrupt canonical json", zap.String("tool_id", t.ID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to decode tool"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleDeleteTool(w http.ResponseWriter, r *http.Request) {
	if !d.requireStore(w) {
		return
	}
	deleted, err := d.Store.Delete(r.Context(), r.PathValue("tool_id"))
	if err != nil {
		d.Logger.Error("failed to delete tool", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to delete tool"})
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Tool not found."})
		return
	}
	writeJSON(w, http.StatusOK, DeleteToolResp{Deleted: true})
}

func (d *Dependencies) handleEmitStored(w http.ResponseWriter, r *http.Request) {
	target, err := emitter.ParseTarget(r.PathValue("target"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}
	tool, ok := d.loadCanonicalTool(w, r)
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

// handleExportTools renders the stored tools, optionally filtered like
// GET /v1/tools, as an OpenAI or Anthropic SDK tool list.
func (d *Dependencies) handleExportTools(w http.ResponseWriter, r *http.Request) {
	provider, err := sdkconv.ParseProvider(r.PathValue("provider"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}
	if !d.requireStore(w) {
		return
	}
	q := r.URL.Query()
	var sourceFormat model.Format
	if v := q.Get("source_format"); v != "" {
		if sourceFormat, err = model.ParseFormat(v); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
			return
		}
	}

	var stored []*store.StoredTool
	if filters := d.listFilters(q.Get("capability"), q.Get("security_tag"), q.Get("pii_tag"), q.Get("name"), sourceFormat); len(filters) > 0 {
		stored, err = intersect(r.Context(), filters)
	} else {
		stored, err = d.Store.All(r.Context(), 0, 0)
	}
	if err != nil {
		d.Logger.Error("failed to load tools for export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list tools"})
		return
	}

	tools := make([]model.CanonicalTool, 0, len(stored))
	for _, t := range stored {
		tool, err := t.Tool()
		if err != nil {
			d.Logger.Error("stored tool has corrupt canonical json",
				zap.String("tool_id", t.ID),
				zap.Error(err),
			)
			continue
		}
		tools = append(tools, tool)
	}
	out, err := sdkconv.Export(provider, tools)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (d *Dependencies) handleValidate(w http.ResponseWriter, r *http.Request) {
	tool, ok := d.loadCanonicalTool(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Failed to read body"})
		return
	}
	result, err := validate.Arguments(tool, body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (d *Dependencies) requireStore(w http.ResponseWriter) bool {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Tool store not configured"})
		return false
	}
	return true
}

// loadTool fetches the stored tool named by the tool_id path value, writing
// a 404 when it does not exist.
func (d *Dependencies) loadTool(w http.ResponseWriter, r *http.Request) (*store.StoredTool, bool) {
	if !d.requireStore(w) {
		return nil, false
	}
	t, err := d.Store.Get(r.Context(), r.PathValue("tool_id"))
	if err != nil {
		d.Logger.Error("failed to get tool", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get tool"})
		return nil, false
	}
	if t == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Tool not found."})
		return nil, false
	}
	return t, true
}

func (d *Dependencies) loadCanonicalTool(w http.ResponseWriter, r *http.Request) (model.CanonicalTool, bool) {
	t, ok := d.loadTool(w, r)
	if !ok {
		return model.CanonicalTool{}, false
	}
	tool, err := t.Tool()
	if err != nil {
		d.Logger.Error("stored tool has corrupt canonical json", zap.String("tool_id", t.ID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to decode tool"})
		return model.CanonicalTool{}, false
	}
	return tool, true
}

type toolQuery func(ctx context.Context) ([]*store.StoredTool, error)

func (d *Dependencies) listFilters(capability, securityTag, piiTag, name string, f model.Format) []toolQuery {
	var filters []toolQuery
	if capability != "" {
		filters = append(filters, func(ctx context.Context) ([]*store.StoredTool, error) {
			return d.Store.FindByCapability(ctx, capability)
		})
	}
	if securityTag != "" {
		filters = append(filters, func(ctx context.Context) ([]*store.StoredTool, error) {
			return d.Store.FindBySecurityTag(ctx, securityTag)
		})
	}
	if piiTag != "" {
		filters = append(filters, func(ctx context.Context) ([]*store.StoredTool, error) {
			return d.Store.FindByPIITag(ctx, piiTag)
		})
	}
	if name != "" {
		filters = append(filters, func(ctx context.Context) ([]*store.StoredTool, error) {
			return d.Store.SearchByName(ctx, name)
		})
	}
	if f != "" {
		filters = append(filters, func(ctx context.Context) ([]*store.StoredTool, error) {
			return d.Store.FindBySourceFormat(ctx, f)
		})
	}
	return filters
}

// intersect runs every filter and keeps the tools all of them returned, in
// the order of the first.
func intersect(ctx context.Context, filters []toolQuery) ([]*store.StoredTool, error) {
	result, err := filters[0](ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range filters[1:] {
		next, err := f(ctx)
		if err != nil {
			return nil, err
		}
		ids := make(map[string]struct{}, len(next))
		for _, t := range next {
			ids[t.ID] = struct{}{}
		}
		kept := result[:0]
		for _, t := range result {
			if _, ok := ids[t.ID]; ok {
				kept = append(kept, t)
			}
		}
		result = kept
	}
	return result, nil
}

func page(tools []*store.StoredTool, limit, offset int) []*store.StoredTool {
	if offset >= len(tools) {
		return nil
	}
	end := offset + limit
	if end > len(tools) {
		end = len(tools)
	}
	return tools[offset:end]
}

func queryInt(q interface{ Get(string) string }, key string, defaultVal int) int {
	v := q.Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
