package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/plandeck/nudge/internal/config"
	"github.com/plandeck/nudge/internal/event"
)

// telegramAPIBase is overridable in tests.
var telegramAPIBase = "https://api.telegram.org"

// telegramResponse is the Bot API response envelope.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Telegram delivers notifications as Bot API messages to a configured chat.
type Telegram struct {
	settings config.SettingsLoader
	client   *http.Client
}

// NewTelegram creates a Telegram adapter. Settings are re-read per delivery.
func NewTelegram(settings config.SettingsLoader) *Telegram {
	return &Telegram{
		settings: settings,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) IsConfigured() bool {
	s, err := t.settings()
	return err == nil && s.TelegramBotToken != "" && s.TelegramChatID != ""
}

func (t *Telegram) Deliver(ctx context.Context, ev *event.Notification) Result {
	s, err := t.settings()
	if err != nil {
		return failure(t.Name(), fmt.Sprintf("loading settings: %v", err))
	}
	if s.TelegramBotToken == "" || s.TelegramChatID == "" {
		return failure(t.Name(), "telegram bot token or chat id not configured")
	}

	text := fmt.Sprintf("%s\n\nPlan: %s", ev.Message, ev.Plan.Title)
	payload := map[string]any{
		"chat_id": s.TelegramChatID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(t.Name(), fmt.Sprintf("encoding message: %v", err))
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, s.TelegramBotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(t.Name(), fmt.Sprintf("creating request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return failure(t.Name(), fmt.Sprintf("calling Telegram: %v", err))
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(t.Name(), fmt.Sprintf("reading response: %v", err))
	}

	var tgResp telegramResponse
	if err := json.Unmarshal(respBody, &tgResp); err != nil {
		r := failure(t.Name(), fmt.Sprintf("parsing response: %v", err))
		r.StatusCode = resp.StatusCode
		return r
	}
	if !tgResp.OK {
		r := failure(t.Name(), fmt.Sprintf("telegram API error: %s", tgResp.Description))
		r.StatusCode = resp.StatusCode
		return r
	}
	return success(t.Name())
}
