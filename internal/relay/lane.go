package relay

import (
	"sync"

	"github.com/quietloop/remora/pkg/message"
)

// laneKey identifies one conversation across all channels.
type laneKey struct {
	Channel string
	ChatID  string
}

// laneKeyFor derives the lane key for an inbound message.
func laneKeyFor(msg message.InboundMessage) laneKey {
	return laneKey{Channel: msg.Channel, ChatID: msg.Chat.ID}
}

// laneLock serializes processing per conversation while letting different
// conversations run concurrently. A global mutex guards the lane map and is
// held only to look up or create a per-conversation mutex; the per-lane
// mutex is then taken outside it.
type laneLock struct {
	mu    sync.Mutex
	lanes map[laneKey]*lane
}

// lane holds per-conversation synchronization state. refs counts goroutines
// holding or waiting on the lane; stale marks it for removal once refs
// drops to zero.
type lane struct {
	mu    sync.Mutex
	refs  int
	stale bool
}

func newLaneLock() *laneLock {
	return &laneLock{lanes: make(map[laneKey]*lane)}
}

// Acquire locks the conversation's lane, creating it on first use.
// Every Acquire must be paired with a Release of the same key.
func (l *laneLock) Acquire(key laneKey) {
	l.mu.Lock()
	ln, ok := l.lanes[key]
	if !ok {
		ln = &lane{}
		l.lanes[key] = ln
	}
	ln.refs++
	ln.stale = false
	l.mu.Unlock()

	ln.mu.Lock()
}

// Release unlocks the conversation's lane and drops stale entries whose
// last holder just left.
func (l *laneLock) Release(key laneKey) {
	l.mu.Lock()
	ln, ok := l.lanes[key]
	if !ok {
		l.mu.Unlock()
		return
	}
	ln.refs--
	if ln.refs == 0 && ln.stale {
		delete(l.lanes, key)
	}
	l.mu.Unlock()

	ln.mu.Unlock()
}

// MarkStale flags every idle lane for cleanup. Lanes touched again before
// their last holder leaves are kept. Called periodically so the map does
// not grow without bound.
func (l *laneLock) MarkStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, ln := range l.lanes {
		if ln.refs == 0 {
			if ln.stale {
				delete(l.lanes, key)
				continue
			}
			ln.stale = true
		}
	}
}
