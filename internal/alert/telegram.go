// Package alert provides alert sinks and the delivery dispatcher.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opensource-access/kestrel/internal/domain"
)

// TelegramSink delivers alerts to a supervisor chat through the Telegram
// bot API. Safe for concurrent use: it holds only an http.Client.
type TelegramSink struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSink creates a Telegram sink. apiBase overrides the bot API
// host for tests; empty means api.telegram.org.
func NewTelegramSink(token, chatID, apiBase string) (*TelegramSink, error) {
	if token == "" || chatID == "" {
		return nil, fmt.Errorf("telegram token and chat id are required")
	}
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &TelegramSink{
		apiBase: apiBase,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Notify sends one alert message. Failure is returned for the caller to
// log; delivery is never retried per identity.
func (s *TelegramSink) Notify(ctx context.Context, alert domain.Alert) error {
	text := alert.Message
	if text == "" {
		text = fmt.Sprintf("unauthorized access attempt: credential %s at %s",
			alert.CredentialID, alert.Timestamp)
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: s.chatID, Text: text})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}
