// Package notification delivers alert text to Telegram.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"symmio/internal/config"
)

const telegramAPI = "https://api.telegram.org"

type telegramSendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// TelegramSender posts sendMessage calls with a bounded retry count; a
// message that still fails after the retries is dropped, the caller logs it.
type TelegramSender struct {
	cfg     config.TelegramConfig
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewTelegramSender(cfg config.TelegramConfig, logger *zap.Logger) *TelegramSender {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramSender{
		cfg:     cfg,
		baseURL: telegramAPI,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// WithBaseURL redirects API calls. For tests.
func (s *TelegramSender) WithBaseURL(baseURL string) *TelegramSender {
	s.baseURL = baseURL
	return s
}

// Notify sends one plain-text message, retrying transient failures up to the
// configured count with a short backoff.
func (s *TelegramSender) Notify(ctx context.Context, text string) error {
	if !s.cfg.Enabled {
		return nil
	}
	if s.cfg.BotToken == "" || s.cfg.ChatID == "" {
		return fmt.Errorf("missing bot_token/chat_id")
	}
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		if lastErr = s.send(ctx, text); lastErr == nil {
			return nil
		}
		s.logger.Warn("telegram send failed",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}
	return fmt.Errorf("telegram send after %d attempts: %w", s.cfg.MaxRetries, lastErr)
}

func (s *TelegramSender) send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, url.PathEscape(s.cfg.BotToken))
	body, err := json.Marshal(telegramSendMessageRequest{ChatID: s.cfg.ChatID, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram http %d", resp.StatusCode)
	}
	return nil
}
