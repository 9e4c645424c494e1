package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/quietloop/remora/internal/channel"
	"github.com/quietloop/remora/internal/core"
	"github.com/quietloop/remora/internal/gateway"
	"github.com/quietloop/remora/pkg/message"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Telegram{})
}

// Compile-time interface guards.
var (
	_ channel.Channel         = (*Telegram)(nil)
	_ channel.TypingChannel   = (*Telegram)(nil)
	_ channel.ReactionChannel = (*Telegram)(nil)
	_ channel.AdminChecker    = (*Telegram)(nil)
	_ core.Configurable       = (*Telegram)(nil)
	_ core.Provisioner        = (*Telegram)(nil)
	_ core.Validator          = (*Telegram)(nil)
	_ core.Starter            = (*Telegram)(nil)
	_ core.Stopper            = (*Telegram)(nil)
)

// Telegram implements the Telegram Bot API channel for remora.
type Telegram struct {
	config  Config
	client  *Client
	logger  *slog.Logger
	inbox   func(message.InboundMessage) error
	botUser *User
	appCtx  *core.AppContext

	// Set during Start() depending on mode.
	poller          *Poller
	webhookReceiver *WebhookReceiver
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.telegram",
		New: func() core.Module { return &Telegram{} },
	}
}

// Configure implements core.Configurable.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.appCtx = ctx
	t.logger = ctx.Logger
	t.client = NewClient(t.config.Token, t.config.APIURL)
	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	if t.config.Token == "" {
		return errors.New("telegram: token is required")
	}
	switch t.config.Mode {
	case "polling", "webhook":
	default:
		return fmt.Errorf("telegram: invalid mode %q (must be \"polling\" or \"webhook\")", t.config.Mode)
	}
	if t.config.Mode == "webhook" && t.config.WebhookURL == "" {
		return errors.New("telegram: webhook_url is required when mode is \"webhook\"")
	}
	return t.config.validate()
}

// Start implements core.Starter. It validates the bot token, then starts
// either polling or webhook mode.
func (t *Telegram) Start() error {
	if t.inbox == nil {
		return errors.New("telegram: inbox not set, call SetInbox before Start")
	}

	user, err := t.client.GetMe(context.Background())
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.botUser = user
	t.logger.Info("telegram bot authenticated",
		"id", user.ID,
		"username", user.Username,
	)

	channelName := string(t.ModuleInfo().ID)

	switch t.config.Mode {
	case "polling":
		t.poller = NewPoller(
			t.client, t.inbox, t.logger,
			user.Username, channelName, t.config, t.fetcher(),
		)
		t.poller.Start()
		t.logger.Info("telegram polling started",
			"timeout", t.config.PollingTimeout,
		)

	case "webhook":
		if t.config.WebhookSecret == "" {
			t.logger.Warn("telegram webhook running without secret_token; " +
				"set webhook_secret for production deployments")
		}
		t.webhookReceiver = NewWebhookReceiver(
			t.inbox, t.logger,
			user.Username, channelName, t.config.WebhookSecret, t.fetcher(),
		)

		if err := t.registerWebhook(); err != nil {
			return err
		}

		if err := t.client.SetWebhook(context.Background(), SetWebhookRequest{
			URL:            t.config.WebhookURL,
			SecretToken:    t.config.WebhookSecret,
			AllowedUpdates: t.config.AllowedUpdates,
		}); err != nil {
			return fmt.Errorf("telegram: setWebhook failed: %w", err)
		}
		t.logger.Info("telegram webhook configured",
			"url", t.config.WebhookURL,
		)
	}

	return nil
}

// fetcher returns the media downloader when downloads are enabled.
func (t *Telegram) fetcher() mediaFetcher {
	if !t.config.DownloadMedia {
		return nil
	}
	return func(ctx context.Context, fileID string) ([]byte, error) {
		return t.client.DownloadFile(ctx, fileID, t.config.MaxMediaBytes)
	}
}

// registerWebhook resolves the admin gateway's webhook dispatcher from the
// service registry and registers the WebhookReceiver as a handler.
func (t *Telegram) registerWebhook() error {
	svc, ok := t.appCtx.Service(gateway.DispatcherService)
	if !ok {
		return errors.New("telegram: gateway.webhook_dispatcher service not found (is the gateway module loaded?)")
	}

	dispatcher, ok := svc.(*gateway.WebhookDispatcher)
	if !ok {
		return errors.New("telegram: gateway.webhook_dispatcher is not a *gateway.WebhookDispatcher")
	}

	// Empty HMAC secret: Telegram authenticates with its own
	// X-Telegram-Bot-Api-Secret-Token header, validated inside
	// WebhookReceiver.HandleWebhook.
	dispatcher.Register("telegram", t.webhookReceiver, "")
	return nil
}

// Stop implements core.Stopper.
func (t *Telegram) Stop(ctx context.Context) error {
	t.logger.Info("telegram channel stopping")

	switch t.config.Mode {
	case "polling":
		if t.poller != nil {
			t.poller.Stop()
		}
	case "webhook":
		if err := t.client.DeleteWebhook(ctx); err != nil {
			t.logger.Warn("telegram: failed to delete webhook on shutdown", "error", err)
		}
	}

	return nil
}

// Send implements channel.Channel.
func (t *Telegram) Send(ctx context.Context, msg message.OutboundMessage) error {
	return t.sendOutbound(ctx, msg)
}

// SetInbox implements channel.Channel.
func (t *Telegram) SetInbox(fn func(msg message.InboundMessage) error) {
	t.inbox = fn
}

// BotIdentity implements channel.Channel. Zero value before Start.
func (t *Telegram) BotIdentity() message.Sender {
	if t.botUser == nil {
		return message.Sender{}
	}
	return convertSender(t.botUser)
}

// SendTyping implements channel.TypingChannel.
func (t *Telegram) SendTyping(ctx context.Context, chat message.Chat) error {
	chatID, err := strconv.ParseInt(chat.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat ID %q: %w", chat.ID, err)
	}
	return t.client.SendChatAction(ctx, chatID, "typing")
}

// SendReaction implements channel.ReactionChannel.
func (t *Telegram) SendReaction(ctx context.Context, chat message.Chat, messageID, emoji string) error {
	chatID, err := strconv.ParseInt(chat.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat ID %q: %w", chat.ID, err)
	}
	msgID, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("telegram: invalid message ID %q: %w", messageID, err)
	}
	return t.client.SetMessageReaction(ctx, chatID, msgID, emoji)
}

// Credentials exposes the bot token for log redaction.
func (t *Telegram) Credentials() []string {
	if t.config.Token == "" {
		return nil
	}
	return []string{t.config.Token}
}

// IsChatAdmin implements channel.AdminChecker.
func (t *Telegram) IsChatAdmin(ctx context.Context, chat message.Chat, senderID string) (bool, error) {
	chatID, err := strconv.ParseInt(chat.ID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("telegram: invalid chat ID %q: %w", chat.ID, err)
	}
	userID, err := strconv.ParseInt(senderID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("telegram: invalid sender ID %q: %w", senderID, err)
	}

	member, err := t.client.GetChatMember(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	return member.Status == "administrator" || member.Status == "creator", nil
}
