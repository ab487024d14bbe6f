package api

import (
	"context"
	"net/http"
	"time"

	"github.com/triage-ai/toolcanon/internal/model"
	"github.com/triage-ai/toolcanon/internal/storage"
	"go.uber.org/zap"
)

// EventReader is the read side of the canonicalization event warehouse.
type EventReader interface {
	ListEvents(ctx context.Context, params storage.ListEventsParams) ([]storage.CanonicalizedEvent, int, error)
	GetEvent(ctx context.Context, eventID string) (*storage.CanonicalizedEvent, error)
	GetStats(ctx context.Context, days int) (*storage.EventStats, error)
}

const (
	defaultEventPageSize = 50
	maxEventPageSize     = 200
	defaultStatsDays     = 7
	maxStatsDays         = 90
)

func (d *Dependencies) requireEvents(w http.ResponseWriter) bool {
	if d.Events == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Event warehouse not configured"})
		return false
	}
	return true
}

func (d *Dependencies) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if !d.requireEvents(w) {
		return
	}
	q := r.URL.Query()
	params := storage.ListEventsParams{
		Page:     queryInt(q, "page", 1),
		PageSize: queryInt(q, "page_size", defaultEventPageSize),
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > maxEventPageSize {
		params.PageSize = defaultEventPageSize
	}

	if v := q.Get("tool_name"); v != "" {
		params.ToolName = &v
	}
	if v := q.Get("detected_format"); v != "" {
		if _, err := model.ParseFormat(v); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
			return
		}
		params.DetectedFormat = &v
	}
	if v := q.Get("source"); v != "" {
		params.Source = &v
	}
	switch q.Get("with_warnings") {
	case "true":
		b := true
		params.WithWarnings = &b
	case "false":
		b := false
		params.WithWarnings = &b
	}
	for key, dst := range map[string]**time.Time{"start_time": &params.StartTime, "end_time": &params.EndTime} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid " + key + ": expected RFC3339"})
			return
		}
		*dst = &t
	}

	events, total, err := d.Events.ListEvents(r.Context(), params)
	if err != nil {
		d.Logger.Error("failed to list events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list events"})
		return
	}

	resp := EventListResp{
		Events:   make([]EventResp, 0, len(events)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for i := range events {
		resp.Events = append(resp.Events, eventToResp(&events[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if !d.requireEvents(w) {
		return
	}
	e, err := d.Events.GetEvent(r.Context(), r.PathValue("event_id"))
	if err != nil {
		d.Logger.Error("failed to get event", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get event"})
		return
	}
	if e == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Event not found"})
		return
	}
	writeJSON(w, http.StatusOK, eventToResp(e))
}

func (d *Dependencies) handleEventStats(w http.ResponseWriter, r *http.Request) {
	if !d.requireEvents(w) {
		return
	}
	days := queryInt(r.URL.Query(), "days", defaultStatsDays)
	if days < 1 || days > maxStatsDays {
		days = defaultStatsDays
	}
	stats, err := d.Events.GetStats(r.Context(), days)
	if err != nil {
		d.Logger.Error("failed to get event stats", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get event stats"})
		return
	}
	writeJSON(w, http.StatusOK, EventStatsResp{Days: days, EventStats: *stats})
}
