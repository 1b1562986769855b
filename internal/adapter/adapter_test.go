package adapter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plandeck/nudge/internal/config"
	"github.com/plandeck/nudge/internal/event"
)

func staticSettings(s config.AdapterSettings) config.SettingsLoader {
	return func() (*config.AdapterSettings, error) {
		copied := s
		return &copied, nil
	}
}

func sampleEvent() *event.Notification {
	return &event.Notification{
		EventType:     event.TypeTaskBlocked,
		CorrelationID: "corr-1",
		UserID:        "u1",
		Plan:          event.PlanRef{ID: "p1", Title: "Auth Revamp"},
		Task:          &event.TaskRef{ID: "n1", Title: "Fix login bug", Status: "blocked"},
		Actor:         event.Actor{Name: "jordan", Type: event.ActorHuman},
		Message:       "Task 'Fix login bug' status: not_started → blocked",
	}
}

// --- console ---

func TestConsole_AlwaysSucceeds(t *testing.T) {
	c := NewConsole(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.True(t, c.IsConfigured())

	res := c.Deliver(context.Background(), sampleEvent())
	assert.True(t, res.Success)
	assert.Equal(t, "console", res.Adapter)
}

// --- webhook ---

func TestWebhook_PostsCanonicalEnvelope(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(staticSettings(config.AdapterSettings{WebhookURL: srv.URL}))
	w.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }

	res := w.Deliver(context.Background(), sampleEvent())
	require.True(t, res.Success, "reason: %s", res.Reason)

	assert.Equal(t, "task.blocked", got["event"])
	assert.Equal(t, "corr-1", got["correlationId"])
	assert.Equal(t, "p1", got["planId"])
	assert.Equal(t, "n1", got["nodeId"])
	assert.Equal(t, "Task 'Fix login bug' status: not_started → blocked", got["message"])
	assert.Equal(t, "2026-08-30T12:00:00Z", got["timestamp"])
}

func TestWebhook_Non2xxIsFailureWithStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(staticSettings(config.AdapterSettings{WebhookURL: srv.URL}))
	res := w.Deliver(context.Background(), sampleEvent())

	assert.False(t, res.Success)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.NotEmpty(t, res.Reason)
}

func TestWebhook_MissingConfigIsFailureNotPanic(t *testing.T) {
	w := NewWebhook(staticSettings(config.AdapterSettings{}))
	assert.False(t, w.IsConfigured())

	res := w.Deliver(context.Background(), sampleEvent())
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "not configured")
}

func TestWebhook_MalformedURL(t *testing.T) {
	w := NewWebhook(staticSettings(config.AdapterSettings{WebhookURL: "::not a url::"}))
	res := w.Deliver(context.Background(), sampleEvent())
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "malformed")
}

func TestWebhook_SendsBearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(staticSettings(config.AdapterSettings{WebhookURL: srv.URL, WebhookToken: "s3cret"}))
	res := w.Deliver(context.Background(), sampleEvent())

	require.True(t, res.Success)
	assert.Equal(t, "Bearer s3cret", auth)
}

// --- telegram ---

func TestTelegram_SendsMessage(t *testing.T) {
	var path string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	orig := telegramAPIBase
	telegramAPIBase = srv.URL
	defer func() { telegramAPIBase = orig }()

	tg := NewTelegram(staticSettings(config.AdapterSettings{
		TelegramBotToken: "bot-token",
		TelegramChatID:   "4242",
	}))
	res := tg.Deliver(context.Background(), sampleEvent())

	require.True(t, res.Success, "reason: %s", res.Reason)
	assert.Equal(t, "/botbot-token/sendMessage", path)
	assert.Equal(t, "4242", body["chat_id"])
	assert.Contains(t, body["text"], "Fix login bug")
}

func TestTelegram_APIErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	orig := telegramAPIBase
	telegramAPIBase = srv.URL
	defer func() { telegramAPIBase = orig }()

	tg := NewTelegram(staticSettings(config.AdapterSettings{
		TelegramBotToken: "bot-token",
		TelegramChatID:   "4242",
	}))
	res := tg.Deliver(context.Background(), sampleEvent())

	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "chat not found")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestTelegram_MissingConfig(t *testing.T) {
	tg := NewTelegram(staticSettings(config.AdapterSettings{}))
	assert.False(t, tg.IsConfigured())

	res := tg.Deliver(context.Background(), sampleEvent())
	assert.False(t, res.Success)
}

// --- email ---

func TestEmail_MissingConfig(t *testing.T) {
	e := NewEmail(staticSettings(config.AdapterSettings{}))
	assert.False(t, e.IsConfigured())

	res := e.Deliver(context.Background(), sampleEvent())
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "not configured")
}

func TestEmail_IsConfigured(t *testing.T) {
	e := NewEmail(staticSettings(config.AdapterSettings{
		SMTPHost: "smtp.example.com",
		SMTPFrom: "nudge@example.com",
		SMTPTo:   "owner@example.com",
	}))
	assert.True(t, e.IsConfigured())
}

// --- agentcall ---

func TestAgentCall_PostsEventWithToken(t *testing.T) {
	var auth string
	var got event.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	a := NewAgentCall(staticSettings(config.AdapterSettings{
		AgentCallbackURL:   srv.URL,
		AgentCallbackToken: "callback-token",
	}))
	res := a.Deliver(context.Background(), sampleEvent())

	require.True(t, res.Success, "reason: %s", res.Reason)
	assert.Equal(t, "Bearer callback-token", auth)
	assert.Equal(t, event.TypeTaskBlocked, got.EventType)
}

func TestAgentCall_MissingToken(t *testing.T) {
	a := NewAgentCall(staticSettings(config.AdapterSettings{AgentCallbackURL: "https://runtime.example.com"}))
	assert.False(t, a.IsConfigured())

	res := a.Deliver(context.Background(), sampleEvent())
	assert.False(t, res.Success)
}

// --- registry ---

func TestRegistry_RegistrationOrderAndRemoval(t *testing.T) {
	r := NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c := NewConsole(logger)
	w := NewWebhook(staticSettings(config.AdapterSettings{}))
	h1 := r.Register(c)
	r.Register(w)

	adapters := r.Adapters()
	require.Len(t, adapters, 2)
	assert.Equal(t, "console", adapters[0].Name())
	assert.Equal(t, "webhook", adapters[1].Name())

	h1.Remove()
	h1.Remove() // second removal is a no-op

	adapters = r.Adapters()
	require.Len(t, adapters, 1)
	assert.Equal(t, "webhook", adapters[0].Name())
}
