package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plandeck/nudge/internal/adapter"
	"github.com/plandeck/nudge/internal/dispatch"
	"github.com/plandeck/nudge/internal/event"
	"github.com/plandeck/nudge/internal/service"
	"github.com/plandeck/nudge/internal/storage"
)

type stubAdapter struct {
	name       string
	configured bool
	result     adapter.Result
	delivered  []*event.Notification
}

func (s *stubAdapter) Name() string       { return s.name }
func (s *stubAdapter) IsConfigured() bool { return s.configured }

func (s *stubAdapter) Deliver(_ context.Context, ev *event.Notification) adapter.Result {
	s.delivered = append(s.delivered, ev)
	r := s.result
	r.Adapter = s.name
	return r
}

type stubTaskStore struct {
	completed []string
	failWith  error
}

func (s *stubTaskStore) CompleteTask(_ context.Context, taskID string) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.completed = append(s.completed, taskID)
	return nil
}

func (s *stubTaskStore) AppendProgress(context.Context, string, string) error { return nil }

type stubEmitter struct {
	events []string
}

func (s *stubEmitter) EmitEvent(_ context.Context, eventName string, _ any) bool {
	s.events = append(s.events, eventName)
	return true
}

type stubDeliveryStore struct {
	entries []storage.DeliveryEntry
}

func (s *stubDeliveryStore) RecordDelivery(_ context.Context, e storage.DeliveryEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubDeliveryStore) ListDeliveries(_ context.Context, limit int) ([]storage.DeliveryEntry, error) {
	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	return s.entries[:limit], nil
}

func (s *stubDeliveryStore) ListFailed(context.Context, time.Time, int, int) ([]storage.DeliveryEntry, error) {
	return nil, nil
}

func (s *stubDeliveryStore) MarkRetried(context.Context, int64, bool, string, int) error {
	return nil
}

type testServer struct {
	router   *chi.Mux
	registry *adapter.Registry
	store    *stubTaskStore
	emitter  *stubEmitter
	log      *stubDeliveryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(new(bytes.Buffer), nil))

	ts := &testServer{
		registry: adapter.NewRegistry(),
		store:    &stubTaskStore{},
		emitter:  &stubEmitter{},
		log:      &stubDeliveryStore{},
	}

	callbackSvc := service.NewAgentCallbackService(ts.store, ts.emitter, logger)
	dispatcher := dispatch.New(ts.registry, nil, nil, logger)
	srv := New(callbackSvc, dispatcher, ts.registry, ts.log, logger)

	ts.router = chi.NewRouter()
	ts.router.Route("/api", func(r chi.Router) {
		srv.Mount(r)
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func TestAgentCallback_Completed(t *testing.T) {
	ts := newTestServer(t)

	body := `{
		"sessionId": "sess-1",
		"status": "completed",
		"result": {"summary": "Refactored the auth module"},
		"metadata": {"taskId": "t1", "adapter": "claude", "userId": "u1", "planId": "p1"}
	}`
	rec := ts.do(t, http.MethodPost, "/api/agent-callback", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"t1"}, ts.store.completed)
	require.Len(t, ts.emitter.events, 1)
	assert.Equal(t, "agent:response:received", ts.emitter.events[0])
}

func TestAgentCallback_MissingSessionID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/agent-callback", `{"status":"completed"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.store.completed)
}

func TestAgentCallback_InvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/agent-callback", "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, errInvalidJSONBody, resp["error"])
}

func TestListAdapters(t *testing.T) {
	ts := newTestServer(t)
	ts.registry.Register(&stubAdapter{name: "console", configured: true})
	ts.registry.Register(&stubAdapter{name: "webhook", configured: false})

	rec := ts.do(t, http.MethodGet, "/api/adapters", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var statuses []adapterStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, adapterStatus{Name: "console", Configured: true}, statuses[0])
	assert.Equal(t, adapterStatus{Name: "webhook", Configured: false}, statuses[1])
}

func TestTestNotification_FansOutToAllAdapters(t *testing.T) {
	ts := newTestServer(t)
	ok := &stubAdapter{name: "console", configured: true, result: adapter.Result{Success: true}}
	bad := &stubAdapter{name: "webhook", configured: true, result: adapter.Result{Success: false, Reason: "webhook returned status 500", StatusCode: 500}}
	ts.registry.Register(ok)
	ts.registry.Register(bad)

	rec := ts.do(t, http.MethodPost, "/api/notifications/test", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var results []adapter.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, 500, results[1].StatusCode)

	require.Len(t, ok.delivered, 1)
	assert.Equal(t, event.TypeStatusChanged, ok.delivered[0].EventType)
	assert.NotEmpty(t, ok.delivered[0].CorrelationID)
}

func TestListDeliveries(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, ts.log.RecordDelivery(context.Background(), storage.DeliveryEntry{
			ID: int64(i + 1), Adapter: "console", EventType: event.TypeTaskCompleted, Success: true,
		}))
	}

	rec := ts.do(t, http.MethodGet, "/api/deliveries?limit=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []storage.DeliveryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)
}

func TestListDeliveries_NoStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(new(bytes.Buffer), nil))
	registry := adapter.NewRegistry()
	callbackSvc := service.NewAgentCallbackService(&stubTaskStore{}, &stubEmitter{}, logger)
	srv := New(callbackSvc, dispatch.New(registry, nil, nil, logger), registry, nil, logger)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) { srv.Mount(r) })

	req := httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
