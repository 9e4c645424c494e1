// Package channel defines the bridge between messaging platforms and the
// relay. It provides the Channel interface, typing indicators, reaction
// fallback, chat-administrator lookup, message chunking, and outbound
// dispatch.
package channel

import (
	"context"

	"github.com/quietloop/remora/internal/core"
	"github.com/quietloop/remora/pkg/message"
)

// Channel is the bridge between a messaging platform and the relay.
// Every concrete channel (Telegram, etc.) must implement this interface.
//
// A channel receives messages from its platform and pushes them to the
// relay via the inbox callback. It also receives outbound messages from
// the relay via Send().
//
// Channels may optionally implement TypingChannel, ReactionChannel, or
// AdminChecker for richer interactions.
type Channel interface {
	core.Module

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg message.OutboundMessage) error

	// SetInbox gives the channel a function to push inbound messages to
	// the relay. The wiring layer calls this before Start().
	SetInbox(fn func(msg message.InboundMessage) error)

	// BotIdentity returns the channel's own identity on the platform,
	// available after Start(). The relay uses it for self-mention and
	// reply-to-self detection.
	BotIdentity() message.Sender
}

// TypingChannel is implemented by channels that can show typing indicators
// while a reply is being generated. SendTyping is best-effort and
// fire-and-forget; errors are advisory.
type TypingChannel interface {
	Channel

	SendTyping(ctx context.Context, chat message.Chat) error
}

// ReactionChannel is implemented by channels that can attach an emoji
// reaction to a message, used as a degraded-success signal when text
// delivery is rejected.
type ReactionChannel interface {
	Channel

	SendReaction(ctx context.Context, chat message.Chat, messageID, emoji string) error
}

// AdminChecker is implemented by channels that can report whether a sender
// administers a chat. The relay gates destructive commands on it.
type AdminChecker interface {
	IsChatAdmin(ctx context.Context, chat message.Chat, senderID string) (bool, error)
}
