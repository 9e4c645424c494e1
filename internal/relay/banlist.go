package relay

import (
	"encoding/gob"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/quietloop/remora/internal/transcript"
)

// Compile-time guard: BanList persists through the same snapshot machinery
// as the transcript store.
var _ transcript.Snapshotter = (*BanList)(nil)

// BanList is the set of sender IDs whose messages never trigger a reply.
// Mutations happen only through admin-gated commands; the set is persisted
// alongside the transcript snapshot.
type BanList struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewBanList creates an empty ban list.
func NewBanList() *BanList {
	return &BanList{ids: make(map[string]struct{})}
}

// Ban adds a sender ID. It reports whether the ID was newly added.
func (b *BanList) Ban(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.ids[id]; ok {
		return false
	}
	b.ids[id] = struct{}{}
	return true
}

// Unban removes a sender ID. It reports whether the ID was present.
func (b *BanList) Unban(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.ids[id]; !ok {
		return false
	}
	delete(b.ids, id)
	return true
}

// Banned reports whether the sender ID is on the list.
func (b *BanList) Banned(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.ids[id]
	return ok
}

// IDs returns the banned sender IDs in sorted order.
func (b *BanList) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.ids))
	for id := range b.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot serializes the set with gob.
func (b *BanList) Snapshot(w io.Writer) error {
	ids := b.IDs()
	if err := gob.NewEncoder(w).Encode(ids); err != nil {
		return fmt.Errorf("relay: encode ban list: %w", err)
	}
	return nil
}

// Restore replaces the set with the decoded contents of r.
func (b *BanList) Restore(r io.Reader) error {
	var ids []string
	if err := gob.NewDecoder(r).Decode(&ids); err != nil {
		return fmt.Errorf("%w: %v", transcript.ErrCorruptSnapshot, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		b.ids[id] = struct{}{}
	}
	return nil
}
