// Package relay implements the conversation core: it keeps a bounded
// transcript per chat, decides which inbound messages warrant a reply,
// assembles prompts, calls the generative service with liveness signaling,
// and delivers replies with degraded fallbacks.
package relay

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quietloop/remora/internal/channel"
	"github.com/quietloop/remora/internal/config"
	"github.com/quietloop/remora/internal/core"
	"github.com/quietloop/remora/internal/genai"
	"github.com/quietloop/remora/internal/prompt"
	"github.com/quietloop/remora/internal/transcript"
	"github.com/quietloop/remora/pkg/message"
)

const (
	defaultInboxSize = 256

	// fallbackEmoji is the degraded-success reaction sent when both
	// delivery attempts of a reply are rejected.
	fallbackEmoji = "👀"
)

// Interface guards.
var (
	_ core.Module   = (*Relay)(nil)
	_ core.Starter  = (*Relay)(nil)
	_ core.Stopper  = (*Relay)(nil)
	_ core.Reloader = (*Relay)(nil)
)

// Config assembles a Relay from its collaborators. Store, Generator and
// Dispatcher are required; the rest have working defaults.
type Config struct {
	Relay      config.RelayConfig
	Store      transcript.Store
	Prompts    *prompt.Manager
	Generator  genai.Generator
	Dispatcher *channel.Dispatcher
	Bans       *BanList
	Events     *EventHub
	Logger     *slog.Logger

	// SnapshotFn persists the transcript store and ban list. Called every
	// Relay.SnapshotEvery processed events, from the cron schedule, and on
	// shutdown. Nil disables periodic persistence.
	SnapshotFn func(context.Context) error

	// InboxSize bounds the inbound queue. Zero uses the default.
	InboxSize int
}

/// Relay is the orchestrator. It owns all conversation state: the transcript
// store, the ban list, and the usage counters. Inbound messages flow
// through a bounded inbox into a worker pool; a per-conversation lane lock
// keeps each chat strictly ordered while different chats run concurrently.
type Relay struct {
	cfg        config.RelayConfig
	store      transcript.Store
	prompts    *prompt.Manager
	generator  genai.Generator
	gateway    *Gateway
	dispatcher *channel.Dispatcher
	bans       *BanList
	events     *EventHub
	logger     *slog.Logger
	operators  map[string]struct{}
	snapshotFn func(context.Context) error

	inbox    chan envelope
	inboxMu  sync.RWMutex
	lanes    *laneLock
	pool     *workerPool
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopped  atomic.Bool

	processed  atomic.Uint64
	snapshotMu sync.Mutex

	started time.Time

	usageMu sync.Mutex
	usage   genai.TokenUsage
}

// New builds a Relay from cfg.
func New(cfg Config) (*Relay, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("relay: no transcript store configured")
	}
	if cfg.Generator == nil {
		return nil, ErrNoGenerator
	}
	if cfg.Dispatcher == nil {
		return nil, ErrNoDispatcher
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Bans == nil {
		cfg.Bans = NewBanList()
	}
	if cfg.Events == nil {
		cfg.Events = NewEventHub()
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxSize
	}
	rc := cfg.Relay.WithDefaults()

	if cfg.Prompts == nil {
		mgr, err := prompt.NewManager(rc.PromptPath)
		if err != nil {
			return nil, err
		}
		cfg.Prompts = mgr
	}

	gw, err := NewGateway(cfg.Generator, rc.TypingInterval, cfg.Logger)
	if err != nil {
		return nil, err
	}

	operators := make(map[string]struct{}, len(rc.Operators))
	for _, id := range rc.Operators {
		operators[id] = struct{}{}
	}

	return &Relay{
		cfg:        rc,
		store:      cfg.Store,
		prompts:    cfg.Prompts,
		generator:  cfg.Generator,
		gateway:    gw,
		dispatcher: cfg.Dispatcher,
		bans:       cfg.Bans,
		events:     cfg.Events,
		logger:     cfg.Logger,
		operators:  operators,
		snapshotFn: cfg.SnapshotFn,
		inbox:      make(chan envelope, cfg.InboxSize),
		lanes:      newLaneLock(),
		pool:       newWorkerPool(rc.Workers),
	}, nil
}

// ModuleInfo implements core.Module.
func (r *Relay) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID: "relay",
		New: func() core.Module {
			return &Relay{}
		},
	}
}

// Bans exposes the ban list for wiring-time persistence.
func (r *Relay) Bans() *BanList { return r.bans }

// Events exposes the event hub for the admin gateway.
func (r *Relay) Events() *EventHub { return r.events }

// Start launches the worker pool.
func (r *Relay) Start() error {
	ctx, cancel := context.WithCancel(context.Background())

	r.inboxMu.Lock()
	if r.stopped.Load() {
		r.inboxMu.Unlock()
		cancel()
		return ErrRelayStopped
	}
	r.cancel = cancel
	r.started = time.Now()
	r.inboxMu.Unlock()

	r.pool.Start(ctx, r.inbox, r.process)
	r.logger.Info("relay: started",
		"workers", r.cfg.Workers,
		"memory_limit", r.cfg.MemoryLimit,
		"model", r.generator.ModelName(),
	)
	return nil
}

// Stop drains the workers and writes a final snapshot.
func (r *Relay) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		r.logger.Info("relay: stopping")

		r.inboxMu.Lock()
		r.stopped.Store(true)
		close(r.inbox)
		cancel := r.cancel
		r.inboxMu.Unlock()

		if cancel != nil {
			cancel()
		}
		r.pool.Wait()

		if err := r.Snapshot(ctx); err != nil {
			r.logger.Error("relay: final snapshot failed", "error", err)
		}
		r.logger.Info("relay: stopped")
	})
	return nil
}

// Reload implements core.Reloader by hot-swapping the prompt template.
func (r *Relay) Reload(_ *core.AppContext) error {
	return r.ReloadPrompts()
}

// ReloadPrompts re-reads the prompt template. The running template stays in
// place when the new one fails to parse.
func (r *Relay) ReloadPrompts() error {
	if err := r.prompts.Reload(); err != nil {
		return err
	}
	r.events.Publish(Event{Type: EventReload})
	r.logger.Info("relay: prompt template reloaded")
	return nil
}

// Submit enqueues an inbound message. It is the inbox callback handed to
// every channel, and never blocks: a full inbox drops the message.
func (r *Relay) Submit(msg message.InboundMessage) error {
	r.inboxMu.RLock()
	defer r.inboxMu.RUnlock()

	if r.stopped.Load() {
		return ErrRelayStopped
	}

	env := envelope{Message: msg, Key: laneKeyFor(msg)}
	select {
	case r.inbox <- env:
		return nil
	default:
		metricDroppedTotal.Inc()
		r.logger.Warn("relay: inbox full, message dropped",
			"channel", msg.Channel,
			"chat_id", msg.Chat.ID,
		)
		return ErrInboxFull
	}
}

// process handles one inbound message end to end under its lane lock.
func (r *Relay) process(ctx context.Context, env envelope) {
	r.lanes.Acquire(env.Key)
	defer r.lanes.Release(env.Key)

	msg := env.Message
	metricMessagesTotal.WithLabelValues(msg.Channel).Inc()
	r.events.Publish(Event{Type: EventMessage, Channel: msg.Channel, ChatID: msg.Chat.ID})

	if msg.Sender.IsBot {
		return
	}

	if msg.IsCommand() {
		r.handleCommand(ctx, msg)
		return
	}

	chatID := chatKey(msg.Chat.ID)
	entry := r.buildEntry(msg)

	if err := r.store.Append(chatID, entry); err != nil {
		r.logger.Error("relay: transcript append failed", "chat_id", msg.Chat.ID, "error", err)
		return
	}
	r.countProcessed(ctx)

	if !entry.Addressed || r.bans.Banned(msg.Sender.ID) {
		return
	}

	r.reply(ctx, msg, entry, chatID)
}

// buildEntry converts an inbound message into a transcript entry,
// resolving the addressing decision against the channel's own identity.
func (r *Relay) buildEntry(msg message.InboundMessage) transcript.Entry {
	entry := transcript.Entry{
		SenderID:      msg.Sender.ID,
		DisplayName:   msg.Sender.DisplayName,
		Username:      msg.Sender.Username,
		Text:          msg.TextContent(),
		HasAttachment: msg.HasMedia(),
		Timestamp:     msg.Timestamp,
	}
	if entry.DisplayName == "" {
		entry.DisplayName = msg.Sender.Username
	}
	if msg.ReplyTo != nil {
		entry.HasQuote = true
		entry.Quote = msg.ReplyTo.Text
	}
	entry.Addressed = r.isAddressed(msg)
	return entry
}

// isAddressed reports whether the message is directed at the agent: it
// mentions the agent's handle, replies to one of the agent's messages, or
// arrives in a direct chat.
func (r *Relay) isAddressed(msg message.InboundMessage) bool {
	if msg.IsDirectMessage() {
		return true
	}

	bot := r.botIdentity(msg.Channel)

	if msg.ReplyTo != nil && bot.ID != "" && msg.ReplyTo.Sender.ID == bot.ID {
		return true
	}
	if !msg.Mentions.IsEmpty() && msg.Mentions.IsMentioned {
		return true
	}
	if bot.Username != "" {
		text := strings.ToLower(msg.TextContent())
		if strings.Contains(text, "@"+strings.ToLower(bot.Username)) {
			return true
		}
	}
	return false
}

func (r *Relay) botIdentity(channelName string) message.Sender {
	ch, ok := r.dispatcher.Get(channelName)
	if !ok {
		return message.Sender{}
	}
	return ch.BotIdentity()
}

// reply builds the prompt, calls the gateway, records the outcome, and
// delivers the reply text.
func (r *Relay) reply(ctx context.Context, msg message.InboundMessage, entry transcript.Entry, chatID int64) {
	entries, err := r.store.Entries(chatID)
	if err != nil {
		r.logger.Error("relay: transcript read failed", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	lines := FormatTranscript(entries, r.cfg.QuoteMaxLength)
	lastLine := FormatEntry(entry, r.cfg.QuoteMaxLength)

	chatKind := "group chat"
	if msg.IsDirectMessage() {
		chatKind = "direct chat"
	}

	image, mime := msg.FirstImage()
	bot := r.botIdentity(msg.Channel)

	promptText, err := prompt.Build(r.prompts.Current(), lines, lastLine, chatKind, bot.Username, len(image) > 0)
	if err != nil {
		r.logger.Error("relay: prompt build failed", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	outcome := r.gateway.Respond(ctx, genai.Request{
		Prompt:   promptText,
		Image:    image,
		MIMEType: mime,
	}, r.typingFn(msg))

	if outcome.Record {
		if err := r.store.Append(chatID, outcome.Entry); err != nil {
			r.logger.Error("relay: transcript append failed", "chat_id", msg.Chat.ID, "error", err)
		}
		r.countProcessed(ctx)
	}
	r.addUsage(outcome.Usage)

	if outcome.Text == "" {
		return
	}

	r.events.Publish(Event{Type: EventReply, Channel: msg.Channel, ChatID: msg.Chat.ID})
	r.deliver(ctx, msg, outcome.Text)
}

// typingFn returns the liveness closure for the message's channel, or nil
// when the channel cannot signal typing.
func (r *Relay) typingFn(msg message.InboundMessage) func(context.Context) {
	ch, ok := r.dispatcher.Get(msg.Channel)
	if !ok {
		return nil
	}
	tc, ok := ch.(channel.TypingChannel)
	if !ok {
		return nil
	}
	return func(ctx context.Context) {
		if err := tc.SendTyping(ctx, msg.Chat); err != nil && ctx.Err() == nil {
			r.logger.Debug("relay: typing signal failed", "chat_id", msg.Chat.ID, "error", err)
		}
	}
}

// deliver sends the reply, retrying once without formatting hints, then
// degrading to a reaction on the triggering message.
func (r *Relay) deliver(ctx context.Context, msg message.InboundMessage, text string) {
	out := message.NewTextMessage(msg.Chat, text)
	out.Channel = msg.Channel
	out.ReplyToID = msg.ID
	out.Hints = &message.OutboundHints{ParseMode: "Markdown"}

	err := r.dispatcher.Send(ctx, out)
	if err == nil {
		return
	}
	r.logger.Warn("relay: delivery rejected, retrying plain", "chat_id", msg.Chat.ID, "error", err)

	out.Hints = nil
	if err := r.dispatcher.Send(ctx, out); err == nil {
		return
	}

	ch, ok := r.dispatcher.Get(msg.Channel)
	if !ok {
		return
	}
	if rc, ok := ch.(channel.ReactionChannel); ok {
		if err := rc.SendReaction(ctx, msg.Chat, msg.ID, fallbackEmoji); err != nil {
			r.logger.Error("relay: reaction fallback failed", "chat_id", msg.Chat.ID, "error", err)
		}
	}
}

// countProcessed bumps the processed-event counter and triggers an async
// snapshot every SnapshotEvery events.
func (r *Relay) countProcessed(ctx context.Context) {
	n := r.processed.Add(1)
	if r.snapshotFn == nil || n%uint64(r.cfg.SnapshotEvery) != 0 {
		return
	}
	go func() {
		if err := r.Snapshot(ctx); err != nil {
			r.logger.Error("relay: periodic snapshot failed", "error", err)
		}
	}()
}

// Snapshot persists the transcript store and ban list. Concurrent calls
// coalesce: when a write is already in flight the call is a no-op, keeping
// persistence off the inbound processing path.
func (r *Relay) Snapshot(ctx context.Context) error {
	if r.snapshotFn == nil {
		return nil
	}
	if !r.snapshotMu.TryLock() {
		return nil
	}
	defer r.snapshotMu.Unlock()

	if err := r.snapshotFn(ctx); err != nil {
		metricSnapshotsTotal.WithLabelValues("error").Inc()
		return err
	}
	metricSnapshotsTotal.WithLabelValues("ok").Inc()
	r.events.Publish(Event{Type: EventSnapshot})
	r.lanes.MarkStale()
	return nil
}

// Status is a point-in-time summary for the admin surface.
type Status struct {
	Uptime    time.Duration    `json:"-"`
	UptimeSec float64          `json:"uptime_seconds"`
	Model     string           `json:"model"`
	Chats     int              `json:"chats"`
	Banned    int              `json:"banned"`
	Usage     genai.TokenUsage `json:"usage"`
}

// Status reports current relay state.
func (r *Relay) Status() Status {
	chats, err := r.store.Chats()
	if err != nil {
		r.logger.Error("relay: chat listing failed", "error", err)
	}

	r.usageMu.Lock()
	usage := r.usage
	r.usageMu.Unlock()

	uptime := time.Duration(0)
	if !r.started.IsZero() {
		uptime = time.Since(r.started)
	}
	return Status{
		Uptime:    uptime,
		UptimeSec: uptime.Seconds(),
		Model:     r.generator.ModelName(),
		Chats:     len(chats),
		Banned:    len(r.bans.IDs()),
		Usage:     usage,
	}
}

func (r *Relay) addUsage(u genai.TokenUsage) {
	if u.TotalTokens == 0 && u.PromptTokens == 0 && u.CompletionTokens == 0 {
		return
	}
	r.usageMu.Lock()
	r.usage.PromptTokens += u.PromptTokens
	r.usage.CompletionTokens += u.CompletionTokens
	r.usage.TotalTokens += u.TotalTokens
	r.usageMu.Unlock()
}

// chatKey maps a platform chat ID to the transcript store's integer key.
// Numeric IDs (the common case) map directly; anything else hashes.
func chatKey(id string) int64 {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	h := fnv.New64a()
	h.Write([]byte(id))
	return int64(h.Sum64())
}
