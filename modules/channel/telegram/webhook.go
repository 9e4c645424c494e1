package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/quietloop/remora/pkg/message"
)

// WebhookReceiver processes incoming Telegram webhook payloads.
// It implements gateway.WebhookHandler.
type WebhookReceiver struct {
	inbox       func(message.InboundMessage) error
	logger      *slog.Logger
	botUsername string
	channelName string
	secret      string
	fetch       mediaFetcher
}

// NewWebhookReceiver creates a new WebhookReceiver.
func NewWebhookReceiver(inbox func(message.InboundMessage) error, logger *slog.Logger, botUsername, channelName, secret string, fetch mediaFetcher) *WebhookReceiver {
	return &WebhookReceiver{
		inbox:       inbox,
		logger:      logger,
		botUsername: botUsername,
		channelName: channelName,
		secret:      secret,
		fetch:       fetch,
	}
}

// HandleWebhook processes a webhook payload from the gateway dispatcher.
// It validates the Telegram-specific secret token header, parses the
// update, and pushes the message to the inbox.
func (w *WebhookReceiver) HandleWebhook(ctx context.Context, _ string, body []byte, headers http.Header) error {
	if w.secret != "" {
		token := headers.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(w.secret), []byte(token)) != 1 {
			return errors.New("telegram: invalid webhook secret token")
		}
	}

	var update Update
	if err := json.Unmarshal(body, &update); err != nil {
		return errors.New("telegram: invalid update JSON: " + err.Error())
	}

	msg, err := convertInbound(ctx, &update, w.botUsername, w.channelName, w.fetch)
	if err != nil {
		w.logger.Debug("skipping webhook update", "update_id", update.UpdateID, "reason", err)
		return nil
	}

	return w.inbox(msg)
}
