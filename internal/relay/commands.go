package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quietloop/remora/internal/channel"
	"github.com/quietloop/remora/pkg/message"
)

// User-facing command responses.
const (
	replyGreeting     = "Hello! Write to me here or mention me in a group and I'll answer."
	replyNotPermitted = "You are not allowed to do that."
	replyMemoryEmpty  = "Nothing to forget here."
	replyReloadOK     = "Prompt template reloaded."
	replyUsageSend    = "Usage: /send <chat_id> <text>"
	replyUsageBan     = "Usage: /ban <sender_id>"
	replyUsageUnban   = "Usage: /unban <sender_id>"
	replyUsageCast    = "Usage: /broadcast <text>"
)

// handleCommand parses and dispatches a slash command. Unknown commands are
// ignored silently: on shared platforms most slash input belongs to other
// bots.
func (r *Relay) handleCommand(ctx context.Context, msg message.InboundMessage) {
	name, args := splitCommand(msg.TextContent())

	result := "ok"
	switch name {
	case "start":
		r.cmdStart(ctx, msg)
	case "reset":
		result = r.cmdReset(ctx, msg, false)
	case "resetsoft":
		result = r.cmdReset(ctx, msg, true)
	case "status":
		r.cmdStatus(ctx, msg)
	case "broadcast":
		result = r.cmdBroadcast(ctx, msg, args)
	case "send":
		result = r.cmdSend(ctx, msg, args)
	case "reload":
		result = r.cmdReload(ctx, msg)
	case "ban":
		result = r.cmdBanToggle(ctx, msg, args, true)
	case "unban":
		result = r.cmdBanToggle(ctx, msg, args, false)
	default:
		return
	}

	metricCommandsTotal.WithLabelValues(name, result).Inc()
	r.events.Publish(Event{
		Type:    EventCommand,
		Channel: msg.Channel,
		ChatID:  msg.Chat.ID,
		Detail:  name,
	})
}

// splitCommand extracts the command name and the remaining argument text.
// A platform suffix after "@" (e.g. "/reset@some_bot") is stripped.
func splitCommand(text string) (name, args string) {
	text = strings.TrimPrefix(text, "/")
	name, args, _ = strings.Cut(text, " ")
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), strings.TrimSpace(args)
}

// Gate checks. Operator identity comes from configuration; chat-admin
// identity from the platform, when the channel can answer it. A direct
// chat is always its own admin surface.

func (r *Relay) isOperator(senderID string) bool {
	_, ok := r.operators[senderID]
	return ok
}

func (r *Relay) isChatAdmin(ctx context.Context, msg message.InboundMessage) bool {
	if msg.IsDirectMessage() {
		return true
	}
	ch, ok := r.dispatcher.Get(msg.Channel)
	if !ok {
		return false
	}
	ac, ok := ch.(channel.AdminChecker)
	if !ok {
		return false
	}
	admin, err := ac.IsChatAdmin(ctx, msg.Chat, msg.Sender.ID)
	if err != nil {
		r.logger.Warn("relay: admin lookup failed", "chat_id", msg.Chat.ID, "error", err)
		return false
	}
	return admin
}

func (r *Relay) cmdStart(ctx context.Context, msg message.InboundMessage) {
	if !msg.IsDirectMessage() {
		return
	}
	r.send(ctx, msg, replyGreeting)
}

func (r *Relay) cmdReset(ctx context.Context, msg message.InboundMessage, partial bool) string {
	if !r.isChatAdmin(ctx, msg) {
		r.send(ctx, msg, replyNotPermitted)
		return "denied"
	}

	removed, existed, err := r.store.Reset(chatKey(msg.Chat.ID), partial)
	if err != nil {
		r.logger.Error("relay: reset failed", "chat_id", msg.Chat.ID, "error", err)
		return "error"
	}
	switch {
	case !existed:
		r.send(ctx, msg, replyMemoryEmpty)
	case partial:
		r.send(ctx, msg, fmt.Sprintf("Forgot my own replies here (%d removed).", removed))
	default:
		r.send(ctx, msg, fmt.Sprintf("Memory wiped (%d entries removed).", removed))
	}
	return "ok"
}

func (r *Relay) cmdStatus(ctx context.Context, msg message.InboundMessage) {
	st := r.Status()
	size, err := r.store.Len(chatKey(msg.Chat.ID))
	if err != nil {
		r.logger.Error("relay: transcript size failed", "chat_id", msg.Chat.ID, "error", err)
	}

	r.send(ctx, msg, fmt.Sprintf(
		"Model: %s\nUptime: %s\nChats remembered: %d\nThis chat: %d/%d entries\nBanned senders: %d\nTokens used: %d (prompt %d, completion %d)",
		st.Model,
		st.Uptime.Truncate(time.Second),
		st.Chats,
		size, r.cfg.MemoryLimit,
		st.Banned,
		st.Usage.TotalTokens, st.Usage.PromptTokens, st.Usage.CompletionTokens,
	))
}

func (r *Relay) cmdBroadcast(ctx context.Context, msg message.InboundMessage, text string) string {
	if !r.isOperator(msg.Sender.ID) || !msg.IsDirectMessage() {
		r.send(ctx, msg, replyNotPermitted)
		return "denied"
	}
	if text == "" {
		r.send(ctx, msg, replyUsageCast)
		return "usage"
	}

	chats, err := r.store.Chats()
	if err != nil {
		r.logger.Error("relay: chat listing failed", "error", err)
		return "error"
	}

	sent := 0
	for _, id := range chats {
		out := message.NewTextMessage(message.Chat{ID: fmt.Sprintf("%d", id)}, text)
		out.Channel = msg.Channel
		if err := r.dispatcher.Send(ctx, out); err != nil {
			r.logger.Warn("relay: broadcast delivery failed", "chat_id", id, "error", err)
			continue
		}
		sent++
	}
	r.send(ctx, msg, fmt.Sprintf("Broadcast delivered to %d of %d chats.", sent, len(chats)))
	return "ok"
}

func (r *Relay) cmdSend(ctx context.Context, msg message.InboundMessage, args string) string {
	if !r.isOperator(msg.Sender.ID) || !msg.IsDirectMessage() {
		r.send(ctx, msg, replyNotPermitted)
		return "denied"
	}

	target, text, _ := strings.Cut(args, " ")
	text = strings.TrimSpace(text)
	if target == "" || text == "" {
		r.send(ctx, msg, replyUsageSend)
		return "usage"
	}

	out := message.NewTextMessage(message.Chat{ID: target}, text)
	out.Channel = msg.Channel
	if err := r.dispatcher.Send(ctx, out); err != nil {
		r.logger.Warn("relay: direct send failed", "target", target, "error", err)
		r.send(ctx, msg, fmt.Sprintf("Could not deliver to %s.", target))
		return "error"
	}
	r.send(ctx, msg, fmt.Sprintf("Delivered to %s.", target))
	return "ok"
}

func (r *Relay) cmdReload(ctx context.Context, msg message.InboundMessage) string {
	if !r.isOperator(msg.Sender.ID) {
		r.send(ctx, msg, replyNotPermitted)
		return "denied"
	}
	if err := r.ReloadPrompts(); err != nil {
		r.logger.Error("relay: reload failed", "error", err)
		r.send(ctx, msg, "Reload failed: the running template is unchanged.")
		return "error"
	}
	r.send(ctx, msg, replyReloadOK)
	return "ok"
}

func (r *Relay) cmdBanToggle(ctx context.Context, msg message.InboundMessage, args string, ban bool) string {
	if !r.isOperator(msg.Sender.ID) && !r.isChatAdmin(ctx, msg) {
		r.send(ctx, msg, replyNotPermitted)
		return "denied"
	}

	id := strings.TrimSpace(args)
	if id == "" {
		if ban {
			r.send(ctx, msg, replyUsageBan)
		} else {
			r.send(ctx, msg, replyUsageUnban)
		}
		return "usage"
	}

	if ban {
		if r.bans.Ban(id) {
			r.send(ctx, msg, fmt.Sprintf("Sender %s is now ignored.", id))
		} else {
			r.send(ctx, msg, fmt.Sprintf("Sender %s was already ignored.", id))
		}
	} else {
		if r.bans.Unban(id) {
			r.send(ctx, msg, fmt.Sprintf("Sender %s can trigger replies again.", id))
		} else {
			r.send(ctx, msg, fmt.Sprintf("Sender %s was not ignored.", id))
		}
	}
	return "ok"
}

// send delivers a plain command response into the triggering chat.
func (r *Relay) send(ctx context.Context, msg message.InboundMessage, text string) {
	out := message.NewTextMessage(msg.Chat, text)
	out.Channel = msg.Channel
	out.ReplyToID = msg.ID
	if err := r.dispatcher.Send(ctx, out); err != nil {
		r.logger.Warn("relay: command response failed", "chat_id", msg.Chat.ID, "error", err)
	}
}
