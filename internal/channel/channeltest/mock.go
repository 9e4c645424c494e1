// Package channeltest provides a scriptable in-memory channel for tests.
package channeltest

import (
	"context"
	"sync"

	"github.com/quietloop/remora/internal/channel"
	"github.com/quietloop/remora/internal/core"
	"github.com/quietloop/remora/pkg/message"
)

// Compile-time interface guards.
var (
	_ channel.Channel         = (*Mock)(nil)
	_ channel.TypingChannel   = (*Mock)(nil)
	_ channel.ReactionChannel = (*Mock)(nil)
	_ channel.AdminChecker    = (*Mock)(nil)
)

// Mock is a test double implementing every optional channel interface.
// The zero value is usable; configure behaviour via the public fields
// before handing it to the code under test.
type Mock struct {
	mu sync.Mutex

	// Identity is returned by BotIdentity.
	Identity message.Sender

	// SendErr, when non-nil, is returned by Send. SendErrOnce makes only
	// the first Send fail, so delivery-retry paths can be exercised.
	SendErr     error
	SendErrOnce bool

	// Admins is the set of sender IDs IsChatAdmin reports true for.
	Admins map[string]bool

	sent      []message.OutboundMessage
	typing    int
	reactions []string
	inbox     func(message.InboundMessage) error
}

// ModuleInfo implements core.Module.
func (m *Mock) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.mock",
		New: func() core.Module { return &Mock{} },
	}
}

// Send records the outbound message, honouring SendErr.
func (m *Mock) Send(_ context.Context, msg message.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendErr != nil {
		err := m.SendErr
		if m.SendErrOnce {
			m.SendErr = nil
		}
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// SetInbox implements channel.Channel.
func (m *Mock) SetInbox(fn func(msg message.InboundMessage) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = fn
}

// BotIdentity implements channel.Channel.
func (m *Mock) BotIdentity() message.Sender {
	return m.Identity
}

// SendTyping implements channel.TypingChannel.
func (m *Mock) SendTyping(context.Context, message.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing++
	return nil
}

// SendReaction implements channel.ReactionChannel.
func (m *Mock) SendReaction(_ context.Context, _ message.Chat, messageID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions = append(m.reactions, messageID+":"+emoji)
	return nil
}

// IsChatAdmin implements channel.AdminChecker.
func (m *Mock) IsChatAdmin(_ context.Context, _ message.Chat, senderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Admins[senderID], nil
}

// Deliver pushes an inbound message through the registered inbox, as the
// platform would.
func (m *Mock) Deliver(msg message.InboundMessage) error {
	m.mu.Lock()
	inbox := m.inbox
	m.mu.Unlock()

	if inbox == nil {
		return channel.ErrNoInbox
	}
	return inbox(msg)
}

// Sent returns a copy of all recorded outbound messages.
func (m *Mock) Sent() []message.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]message.OutboundMessage, len(m.sent))
	copy(cp, m.sent)
	return cp
}

// TypingCount returns how many typing indicators were sent.
func (m *Mock) TypingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.typing
}

// Reactions returns a copy of recorded "messageID:emoji" reaction pairs.
func (m *Mock) Reactions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(m.reactions))
	copy(cp, m.reactions)
	return cp
}
