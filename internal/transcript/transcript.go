// Package transcript provides the bounded per-conversation memory the relay
// feeds into prompt construction, with in-memory and pluggable persistent
// implementations.
package transcript

import (
	"errors"
	"io"
	"time"
)

// Entry is one historical event in a conversation: an inbound message or a
// prior agent reply. Formatting into a prompt line is deferred to prompt
// construction time, so resets and analytics operate on exact fields rather
// than string-prefix heuristics.
type Entry struct {
	SenderID      string
	DisplayName   string
	Username      string
	Text          string
	Quote         string // raw text of the replied-to message, untruncated
	HasQuote      bool
	Addressed     bool // the entry was directed at the agent
	FromAgent     bool // the agent authored this entry
	HasAttachment bool
	Timestamp     time.Time
}

// Store maps a conversation ID to its ordered, size-bounded entry sequence.
// Implementations must be safe for concurrent use, and appends to different
// conversations must not serialize behind each other's I/O.
type Store interface {
	// Append adds an entry to the conversation's sequence, evicting from
	// the front when the configured bound would be exceeded. The sequence
	// is created on first use.
	Append(chatID int64, e Entry) error

	// Entries returns a copy of the conversation's entries in
	// chronological order.
	Entries(chatID int64) ([]Entry, error)

	// Len returns the entry count for a conversation.
	Len(chatID int64) (int, error)

	// Reset clears the conversation's history. With partial set, only
	// agent-authored entries are removed and the rest keep their order.
	// existed reports whether the conversation had any history at all,
	// so callers can distinguish "cleared" from "already empty".
	Reset(chatID int64, partial bool) (removed int, existed bool, err error)

	// Chats returns the IDs of all conversations with history.
	Chats() ([]int64, error)
}

// Snapshotter is implemented by stores whose full state can be serialized
// to and restored from a byte stream. The file-backed persistence layer in
// this package works against this interface.
type Snapshotter interface {
	Snapshot(w io.Writer) error
	Restore(r io.Reader) error
}

// ErrCorruptSnapshot indicates a snapshot stream could not be decoded.
// Startup treats it as absence of a snapshot.
var ErrCorruptSnapshot = errors.New("transcript: corrupt snapshot")
