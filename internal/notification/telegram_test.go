package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"symmio/internal/config"
)

func TestNotifySendsMessage(t *testing.T) {
	var got telegramSendMessageRequest
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewTelegramSender(config.TelegramConfig{
		Enabled:  true,
		BotToken: "token-1",
		ChatID:   "42",
	}, nil).WithBaseURL(server.URL)

	if err := sender.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if path != "/bottoken-1/sendMessage" {
		t.Fatalf("path = %s", path)
	}
	if got.ChatID != "42" || got.Text != "hello" {
		t.Fatalf("request = %+v", got)
	}
}

func TestNotifyBoundedRetries(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := NewTelegramSender(config.TelegramConfig{
		Enabled:    true,
		BotToken:   "t",
		ChatID:     "1",
		MaxRetries: 2,
	}, nil).WithBaseURL(server.URL)

	if err := sender.Notify(context.Background(), "x"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestNotifyDisabledIsNoop(t *testing.T) {
	sender := NewTelegramSender(config.TelegramConfig{Enabled: false}, nil)
	if err := sender.Notify(context.Background(), "x"); err != nil {
		t.Fatalf("disabled sender must not error: %v", err)
	}
}
