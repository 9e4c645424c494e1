package relay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quietloop/remora/internal/channel"
	"github.com/quietloop/remora/internal/channel/channeltest"
	"github.com/quietloop/remora/internal/config"
	"github.com/quietloop/remora/internal/genai"
	"github.com/quietloop/remora/internal/transcript"
	"github.com/quietloop/remora/pkg/message"
)

func newTestRelay(t *testing.T, gen *fakeGen, mock *channeltest.Mock) *Relay {
	t.Helper()

	d := channel.NewDispatcher()
	if err := d.Register("mock", mock); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r, err := New(Config{
		Relay: config.RelayConfig{
			MemoryLimit:    10,
			SnapshotEvery:  1000,
			TypingInterval: time.Minute,
			Workers:        2,
			Operators:      []string{"op-1"},
		},
		Store:      transcript.NewMemoryStore(10),
		Generator:  gen,
		Dispatcher: d,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		_ = r.Stop(context.Background())
	})
	return r
}

func inbound(id, chatID string, kind message.ChatType, sender message.Sender, text string) message.InboundMessage {
	return message.InboundMessage{
		ID:        id,
		Timestamp: time.Now(),
		Channel:   "mock",
		Sender:    sender,
		Chat:      message.Chat{ID: chatID, Type: kind},
		Blocks:    []message.ContentBlock{message.NewTextBlock(text)},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var alice = message.Sender{ID: "u-alice", Username: "alice", DisplayName: "Alice"}

func TestRelay_DirectMessageGetsReply(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{resp: fakeReply("Hi Alice!")}
	mock := &channeltest.Mock{Identity: message.Sender{ID: "bot-1", Username: "remora_bot", IsBot: true}}
	r := newTestRelay(t, gen, mock)

	if err := r.Submit(inbound("m-1", "100", message.ChatDM, alice, "hello")); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, "reply delivery", func() bool { return len(mock.Sent()) == 1 })

	sent := mock.Sent()[0]
	if sent.TextContent() != "Hi Alice!" {
		t.Errorf("reply text = %q", sent.TextContent())
	}
	if sent.ReplyToID != "m-1" {
		t.Errorf("ReplyToID = %q, want m-1", sent.ReplyToID)
	}

	entries, _ := r.store.Entries(100)
	if len(entries) != 2 {
		t.Fatalf("transcript has %d entries, want 2", len(entries))
	}
	if entries[0].FromAgent || !entries[1].FromAgent {
		t.Errorf("entry authorship wrong: %+v", entries)
	}
	if !entries[0].Addressed {
		t.Error("direct message entry should be addressed")
	}
}

func TestRelay_UnaddressedGroupMessageRecordedOnly(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{resp: fakeReply("should not fire")}
	mock := &channeltest.Mock{Identity: message.Sender{ID: "bot-1", Username: "remora_bot", IsBot: true}}
	r := newTestRelay(t, gen, mock)

	_ = r.Submit(inbound("m-1", "200", message.ChatGroup, alice, "just chatting"))

	waitFor(t, "transcript append", func() bool {
		n, _ := r.store.Len(200)
		return n == 1
	})
	time.Sleep(50 * time.Millisecond)

	if len(mock.Sent()) != 0 {
		t.Errorf("unexpected reply: %+v", mock.Sent())
	}
	gen.mu.Lock()
	calls := gen.calls
	gen.mu.Unlock()
	if calls != 0 {
		t.Errorf("generator called %d times, want 0", calls)
	}
}

func TestRelay_MentionTriggersReply(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{resp: fakeReply("you called?")}
	mock := &channeltest.Mock{Identity: message.Sender{ID: "bot-1", Username: "remora_bot", IsBot: true}}
	r := newTestRelay(t, gen, mock)

	msg := inbound("m-1", "300", message.ChatGroup, alice, "hey @remora_bot what's up")
	_ = r.Submit(msg)

	waitFor(t, "reply delivery", func() bool { return len(mock.Sent()) == 1 })
	if got := mock.Sent()[0].TextContent(); got != "you called?" {
		t.Errorf("reply = %q", got)
	}
}

func TestRelay_ReplyToAgentTriggersReply(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{resp: fakeReply("glad you asked")}
	mock := &channeltest.Mock{Identity: message.Sender{ID: "bot-1", Username: "remora_bot", IsBot: true}}
	r := newTestRelay(t, gen, mock)

	msg := inbound("m-2", "300", message.ChatGroup, alice, "what did you mean?")
	msg.ReplyTo = &message.ReplyContext{
		ID:     "m-1",
		Sender: message.Sender{ID: "bot-1", Username: "remora_bot", IsBot: true},
		Text:   "an earlier agent reply",
	}
	_ = r.Submit(msg)

	waitFor(t, "reply delivery", func() bool { return len(mock.Sent()) == 1 })

	entries, _ := r.store.Entries(300)
	if !entries[0].HasQuote || entries[0].Quote != "an earlier agent reply" {
		t.Errorf("quote not captured: %+v", entries[0])
	}
}

func TestRelay_BannedSenderNeverTriggers(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{resp: fakeReply("nope")}
	mock := &channeltest.Mock{Identity: message.Sender{ID: "bot-1", Username: "remora_bot", IsBot: true}}
	r := newTestRelay(t, gen, mock)
	r.Bans().Ban(alice.ID)

	_ = r.Submit(inbound("m-1", "400", message.ChatDM, alice, "talk to me"))

	waitFor(t, "transcript append", func() bool {
		n, _ := r.store.Len(400)
		return n == 1
	})
	time.Sleep(50 * time.Millisecond)

	if len(mock.Sent()) != 0 {
		t.Errorf("banned sender got a reply: %+v", mock.Sent())
	}
}

func TestRelay_CommandsAreNotRecorded(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{resp: fakeReply("unused")}
	mock := &channeltest.Mock{Identity: message.Sender{ID: "bot-1", Username: "remora_bot", IsBot: true}}
	r := newTestRelay(t, gen, mock)

	_ = r.Submit(inbound("m-1", "500", message.ChatDM, alice, "/status"))

	waitFor(t, "status response", func() bool { return len(mock.Sent()) == 1 })

	if got := mock.Sent()[0].TextContent(); !strings.Contains(got, "fake-model") {
		t.Errorf("status response = %q", got)
	}
	if n, _ := r.store.Len(500); n != 0 {
		t.Errorf("command was recorded in the transcript: %d entries", n)
	}
}

func TestRelay_ResetGate(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{}
	mock := &channeltest.Mock{
		Identity: message.Sender{ID: "bot-1", Username: "remora_bot", IsBot: true},
		Admins:   map[string]bool{"u-admin": true},
	}
	r := newTestRelay(t, gen, mock)

	_ = r.store.Append(600, transcript.Entry{SenderID: alice.ID, Text: "old history"})

	// Non-admin in a group is refused and the history survives.
	_ = r.Submit(inbound("m-1", "600", message.ChatGroup, alice, "/reset"))
	waitFor(t, "refusal", func() bool { return len(mock.Sent()) == 1 })
	if got := mock.Sent()[0].TextContent(); got != replyNotPermitted {
		t.Errorf("refusal = %q", got)
	}
	if n, _ := r.store.Len(600); n != 1 {
		t.Error("history was wiped by a non-admin")
	}

	// A chat admin may wipe.
	admin := message.Sender{ID: "u-admin", Username: "root", DisplayName: "Root"}
	_ = r.Submit(inbound("m-2", "600", message.ChatGroup, admin, "/reset"))
	waitFor(t, "wipe confirmation", func() bool { return len(mock.Sent()) == 2 })
	if n, _ := r.store.Len(600); n != 0 {
		t.Error("history survived an admin /reset")
	}
}

func TestRelay_OperatorSendGate(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{}
	mock := &channeltest.Mock{Identity: message.Sender{ID: "bot-1", Username: "remora_bot", IsBot: true}}
	r := newTestRelay(t, gen, mock)

	// Not an operator.
	_ = r.Submit(inbound("m-1", "700", message.ChatDM, alice, "/send 900 hello there"))
	waitFor(t, "refusal", func() bool { return len(mock.Sent()) == 1 })
	if got := mock.Sent()[0].TextContent(); got != replyNotPermitted {
		t.Errorf("refusal = %q", got)
	}

	// Operator in a direct chat.
	op := message.Sender{ID: "op-1", Username: "op", DisplayName: "Op"}
	_ = r.Submit(inbound("m-2", "701", message.ChatDM, op, "/send 900 hello there"))
	waitFor(t, "relayed send", func() bool { return len(mock.Sent()) == 3 })

	var target message.OutboundMessage
	for _, m := range mock.Sent() {
		if m.Chat.ID == "900" {
			target = m
		}
	}
	if target.TextContent() != "hello there" {
		t.Errorf("direct send text = %q", target.TextContent())
	}
}

func TestRelay_DeliveryFallsBackToReaction(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{resp: fakeReply("unsendable")}
	mock := &channeltest.Mock{
		Identity: message.Sender{ID: "bot-1", Username: "remora_bot", IsBot: true},
		SendErr:  errors.New("rejected"),
	}
	r := newTestRelay(t, gen, mock)

	_ = r.Submit(inbound("m-1", "800", message.ChatDM, alice, "hi"))

	waitFor(t, "reaction fallback", func() bool { return len(mock.Reactions()) == 1 })
	if got := mock.Reactions()[0]; got != "m-1:"+fallbackEmoji {
		t.Errorf("reaction = %q", got)
	}
}

func TestRelay_RetryPlainAfterRejectedFormatting(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{resp: fakeReply("second try works")}
	mock := &channeltest.Mock{
		Identity:    message.Sender{ID: "bot-1", Username: "remora_bot", IsBot: true},
		SendErr:     errors.New("bad formatting"),
		SendErrOnce: true,
	}
	r := newTestRelay(t, gen, mock)

	_ = r.Submit(inbound("m-1", "801", message.ChatDM, alice, "hi"))

	waitFor(t, "plain retry delivery", func() bool { return len(mock.Sent()) == 1 })
	sent := mock.Sent()[0]
	if sent.Hints != nil {
		t.Errorf("retry still carries formatting hints: %+v", sent.Hints)
	}
	if len(mock.Reactions()) != 0 {
		t.Errorf("reaction fired despite successful retry: %v", mock.Reactions())
	}
}

func TestRelay_SubmitAfterStop(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{}
	mock := &channeltest.Mock{}
	r := newTestRelay(t, gen, mock)

	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	err := r.Submit(inbound("m-1", "900", message.ChatDM, alice, "hi"))
	if !errors.Is(err, ErrRelayStopped) {
		t.Errorf("Submit after Stop = %v, want ErrRelayStopped", err)
	}
}

// fakeReply wraps text with the terminator the normalizer strips.
func fakeReply(text string) genai.Response {
	return genai.Response{Text: text + "§"}
}
