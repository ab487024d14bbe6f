package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/triage-ai/toolcanon/internal/service"
	"github.com/triage-ai/toolcanon/internal/storage"
	"go.uber.org/zap"
)

type fakeEvents struct {
	events    []storage.CanonicalizedEvent
	lastQuery storage.ListEventsParams
	lastDays  int
	err       error
}

func (f *fakeEvents) ListEvents(_ context.Context, p storage.ListEventsParams) ([]storage.CanonicalizedEvent, int, error) {
	f.lastQuery = p
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.events, len(f.events), nil
}

func (f *fakeEvents) GetEvent(_ context.Context, id string) (*storage.CanonicalizedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.events {
		if f.events[i].EventID == id {
			return &f.events[i], nil
		}
	}
	return nil, nil
}

func (f *fakeEvents) GetStats(_ context.Context, days int) (*storage.EventStats, error) {
	f.lastDays = days
	if f.err != nil {
		return nil, f.err
	}
	return &storage.EventStats{
		Total:    len(f.events),
		ByFormat: []storage.FormatCount{{Format: "openai", Count: len(f.events)}},
		BySource: []storage.SourceCount{},
	}, nil
}

func newEventsServer(t *testing.T, reader EventReader) *httptest.Server {
	t.Helper()
	deps := &Dependencies{
		Service: service.New(service.Config{Logger: zap.NewNop()}),
		Events:  reader,
		Logger:  zap.NewNop(),
	}
	srv := httptest.NewServer(NewRouter(deps))
	t.Cleanup(srv.Close)
	return srv
}

func sampleEvents() []storage.CanonicalizedEvent {
	return []storage.CanonicalizedEvent{{
		EventID:        "evt-1",
		Timestamp:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ToolName:       "get_weather",
		DetectedFormat: "openai",
		ToolFormat:     "openai",
		CanonicalJSON:  `{"name":"get_weather"}`,
		Source:         "http",
	}}
}

func TestEvents_NotConfigured(t *testing.T) {
	srv := newEventsServer(t, nil)
	for _, path := range []string{"/v1/events", "/v1/events/stats", "/v1/events/evt-1"} {
		resp, _ := do(t, srv, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", path, resp.StatusCode)
		}
	}
}

func TestListEvents(t *testing.T) {
	fake := &fakeEvents{events: sampleEvents()}
	srv := newEventsServer(t, fake)

	resp, body := do(t, srv, http.MethodGet,
		"/v1/events?tool_name=get_weather&detected_format=openai&with_warnings=false&page=2&page_size=1000&start_time=2026-01-01T00:00:00Z", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", resp.StatusCode, body)
	}
	if body["total"] != float64(1) || body["page"] != float64(2) || body["page_size"] != float64(defaultEventPageSize) {
		t.Fatalf("unexpected pagination %v", body)
	}
	events := body["events"].([]any)
	first := events[0].(map[string]any)
	if first["event_id"] != "evt-1" || first["canonical"].(map[string]any)["name"] != "get_weather" {
		t.Fatalf("unexpected event %v", first)
	}
	if w, ok := first["warnings"].([]any); !ok || len(w) != 0 {
		t.Fatalf("expected empty warnings array, got %v", first["warnings"])
	}

	q := fake.lastQuery
	if q.ToolName == nil || *q.ToolName != "get_weather" || q.DetectedFormat == nil || *q.DetectedFormat != "openai" {
		t.Fatalf("filters not forwarded: %+v", q)
	}
	if q.WithWarnings == nil || *q.WithWarnings || q.StartTime == nil || q.EndTime != nil || q.Source != nil {
		t.Fatalf("unexpected filters %+v", q)
	}
}

func TestListEvents_BadRequest(t *testing.T) {
	srv := newEventsServer(t, &fakeEvents{})
	for _, path := range []string{"/v1/events?detected_format=toml", "/v1/events?end_time=yesterday"} {
		resp, _ := do(t, srv, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, resp.StatusCode)
		}
	}
}

func TestGetEvent(t *testing.T) {
	srv := newEventsServer(t, &fakeEvents{events: sampleEvents()})

	resp, body := do(t, srv, http.MethodGet, "/v1/events/evt-1", nil)
	if resp.StatusCode != http.StatusOK || body["tool_name"] != "get_weather" {
		t.Fatalf("unexpected %d %v", resp.StatusCode, body)
	}
	resp, _ = do(t, srv, http.MethodGet, "/v1/events/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestEventStats(t *testing.T) {
	fake := &fakeEvents{events: sampleEvents()}
	srv := newEventsServer(t, fake)

	resp, body := do(t, srv, http.MethodGet, "/v1/events/stats?days=500", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["days"] != float64(defaultStatsDays) || fake.lastDays != defaultStatsDays || body["total"] != float64(1) {
		t.Fatalf("unexpected stats %v", body)
	}
	byFormat := body["by_format"].([]any)
	if byFormat[0].(map[string]any)["format"] != "openai" {
		t.Fatalf("unexpected by_format %v", byFormat)
	}
}

func TestEvents_ReaderError(t *testing.T) {
	srv := newEventsServer(t, &fakeEvents{err: errors.New("clickhouse down")})
	for _, path := range []string{"/v1/events", "/v1/events/stats", "/v1/events/evt-1"} {
		resp, body := do(t, srv, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", path, resp.StatusCode)
		}
		if body["detail"] == "clickhouse down" {
			t.Fatalf("%s: internal error leaked", path)
		}
	}
}
