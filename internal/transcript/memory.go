package transcript

import (
	"encoding/gob"
	"fmt"
	"io"
	"sync"
)

// MemoryStore is a thread-safe, in-memory Store bounded per conversation.
type MemoryStore struct {
	mu    sync.RWMutex
	chats map[int64][]Entry
	limit int
}

// Compile-time interface checks.
var (
	_ Store       = (*MemoryStore)(nil)
	_ Snapshotter = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store. Each conversation keeps at most
// limit entries; limit must be positive.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		panic("transcript: limit must be positive")
	}
	return &MemoryStore{
		chats: make(map[int64][]Entry),
		limit: limit,
	}
}

// Append adds an entry, evicting the oldest entries when the bound would be
// exceeded.
func (s *MemoryStore) Append(chatID int64, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.chats[chatID], e)
	if over := len(entries) - s.limit; over > 0 {
		entries = entries[over:]
	}
	s.chats[chatID] = entries
	return nil
}

// Entries returns a copy of the conversation's entries in chronological order.
func (s *MemoryStore) Entries(chatID int64) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.chats[chatID]
	if !ok {
		return nil, nil
	}
	result := make([]Entry, len(entries))
	copy(result, entries)
	return result, nil
}

// Len returns the entry count for a conversation.
func (s *MemoryStore) Len(chatID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats[chatID]), nil
}

// Reset clears a conversation's history, or only its agent-authored entries
// when partial is set.
func (s *MemoryStore) Reset(chatID int64, partial bool) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.chats[chatID]
	if !ok || len(entries) == 0 {
		return 0, false, nil
	}

	if !partial {
		delete(s.chats, chatID)
		return len(entries), true, nil
	}

	kept := entries[:0:0]
	for _, e := range entries {
		if !e.FromAgent {
			kept = append(kept, e)
		}
	}
	removed := len(entries) - len(kept)
	if len(kept) == 0 {
		delete(s.chats, chatID)
	} else {
		s.chats[chatID] = kept
	}
	return removed, true, nil
}

// Chats returns the IDs of all conversations with history.
func (s *MemoryStore) Chats() ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.chats))
	for id := range s.chats {
		ids = append(ids, id)
	}
	return ids, nil
}

// snapshotState is the gob wire form of the store.
type snapshotState struct {
	Limit int
	Chats map[int64][]Entry
}

// Snapshot serializes the full mapping. The in-memory state is copied under
// the read lock; encoding happens against the copy so slow writers do not
// block appends.
func (s *MemoryStore) Snapshot(w io.Writer) error {
	s.mu.RLock()
	state := snapshotState{
		Limit: s.limit,
		Chats: make(map[int64][]Entry, len(s.chats)),
	}
	for id, entries := range s.chats {
		cp := make([]Entry, len(entries))
		copy(cp, entries)
		state.Chats[id] = cp
	}
	s.mu.RUnlock()

	if err := gob.NewEncoder(w).Encode(state); err != nil {
		return fmt.Errorf("transcript: encode snapshot: %w", err)
	}
	return nil
}

// Restore replaces the store's contents with the decoded snapshot. Restored
// conversations are re-bounded against the store's own limit, so a snapshot
// written under a larger limit is trimmed on load.
func (s *MemoryStore) Restore(r io.Reader) error {
	var state snapshotState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.chats = make(map[int64][]Entry, len(state.Chats))
	for id, entries := range state.Chats {
		if over := len(entries) - s.limit; over > 0 {
			entries = entries[over:]
		}
		s.chats[id] = entries
	}
	return nil
}
