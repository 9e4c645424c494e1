package telegram

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"

	"github.com/quietloop/remora/pkg/message"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestWebhookReceiver_DeliversUpdate(t *testing.T) {
	t.Parallel()
	var got message.InboundMessage
	inbox := func(msg message.InboundMessage) error {
		got = msg
		return nil
	}
	w := NewWebhookReceiver(inbox, discardLogger(), "remora_bot", "channel.telegram", "", nil)

	body, _ := json.Marshal(textUpdate("ping"))
	if err := w.HandleWebhook(context.Background(), "telegram", body, http.Header{}); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if got.TextContent() != "ping" {
		t.Errorf("delivered text = %q", got.TextContent())
	}
}

func TestWebhookReceiver_SecretValidation(t *testing.T) {
	t.Parallel()
	inbox := func(message.InboundMessage) error {
		t.Error("inbox must not be reached with a bad secret")
		return nil
	}
	w := NewWebhookReceiver(inbox, discardLogger(), "remora_bot", "channel.telegram", "s3cret", nil)

	body, _ := json.Marshal(textUpdate("ping"))
	headers := http.Header{}
	headers.Set("X-Telegram-Bot-Api-Secret-Token", "wrong")

	if err := w.HandleWebhook(context.Background(), "telegram", body, headers); err == nil {
		t.Error("expected error for invalid secret token")
	}
}

func TestWebhookReceiver_BadJSON(t *testing.T) {
	t.Parallel()
	inbox := func(message.InboundMessage) error { return nil }
	w := NewWebhookReceiver(inbox, discardLogger(), "remora_bot", "channel.telegram", "", nil)

	if err := w.HandleWebhook(context.Background(), "telegram", []byte("{"), http.Header{}); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := Config{Token: "12345:abc-DEF"}
	valid.defaults()
	if err := valid.validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	bad := Config{Token: "not-a-token"}
	bad.defaults()
	if err := bad.validate(); err == nil {
		t.Error("malformed token accepted")
	}

	badTimeout := Config{Token: "12345:abc", PollingTimeout: 99}
	badTimeout.defaults()
	if err := badTimeout.validate(); err == nil {
		t.Error("out-of-range polling_timeout accepted")
	}
}
