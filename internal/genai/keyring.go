package genai

import "sync/atomic"

// KeyRing rotates through a pool of API credentials round-robin so load is
// spread across keys and no single key exhausts its quota. Next is safe for
// concurrent use: an atomically incremented counter produces a well-defined
// rotation sequence even under overlapping calls.
type KeyRing struct {
	keys    []string
	counter atomic.Uint64
}

// NewKeyRing creates a ring over the given keys.
// Returns ErrNoCredentials when keys is empty.
func NewKeyRing(keys []string) (*KeyRing, error) {
	if len(keys) == 0 {
		return nil, ErrNoCredentials
	}
	cp := make([]string, len(keys))
	copy(cp, keys)
	return &KeyRing{keys: cp}, nil
}

// Next returns the credential at the current cursor and advances it,
// wrapping modulo the pool size.
func (r *KeyRing) Next() string {
	n := r.counter.Add(1) - 1
	return r.keys[n%uint64(len(r.keys))]
}

// Size returns the number of credentials in the ring.
func (r *KeyRing) Size() int {
	return len(r.keys)
}

// Keys returns a copy of the pool, for registration with the log redactor.
func (r *KeyRing) Keys() []string {
	cp := make([]string, len(r.keys))
	copy(cp, r.keys)
	return cp
}
