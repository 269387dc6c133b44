// Package unlock tracks time-boxed exemptions from blocking.
package unlock

import (
	"sort"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// Registry maps a target key to the expiry of its temporary unlock.
// It is shared by the foreground monitor and the website endpoint.
type Registry struct {
	mu      sync.Mutex
	clock   domain.Clock
	entries map[string]domain.TemporaryUnlock
}

// NewRegistry creates an empty registry.
func NewRegistry(clock domain.Clock) *Registry {
	return &Registry{
		clock:   clock,
		entries: make(map[string]domain.TemporaryUnlock),
	}
}

// Grant inserts or overwrites the unlock for key, expiring d from now.
// A non-positive d yields an entry that is already inactive.
func (r *Registry) Grant(key string, d time.Duration, metadata map[string]string) domain.TemporaryUnlock {
	u := domain.TemporaryUnlock{
		Key:      key,
		Expiry:   r.clock.Now().Add(d),
		Metadata: metadata,
	}
	r.mu.Lock()
	r.entries[key] = u
	r.mu.Unlock()
	return u
}

// IsActive reports whether key has an unexpired unlock. It never evicts.
func (r *Registry) IsActive(key string) bool {
	r.mu.Lock()
	u, ok := r.entries[key]
	r.mu.Unlock()
	if !ok || u.Expiry.IsZero() {
		return false
	}
	return r.clock.Now().Before(u.Expiry)
}

// Remaining returns the time left on key's unlock, or zero.
func (r *Registry) Remaining(key string) time.Duration {
	r.mu.Lock()
	u, ok := r.entries[key]
	r.mu.Unlock()
	if !ok || u.Expiry.IsZero() {
		return 0
	}
	if left := u.Expiry.Sub(r.clock.Now()); left > 0 {
		return left
	}
	return 0
}

// Revoke removes the unlock for key.
func (r *Registry) Revoke(key string) {
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
}

// Sweep removes entries whose expiry has passed and returns how many were
// removed. Entries without an expiry count as expired.
func (r *Registry) Sweep() int {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for k, u := range r.entries {
		if u.Expiry.IsZero() || now.After(u.Expiry) {
			delete(r.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns all entries ordered by key.
func (r *Registry) Snapshot() []domain.TemporaryUnlock {
	r.mu.Lock()
	out := make([]domain.TemporaryUnlock, 0, len(r.entries))
	for _, u := range r.entries {
		out = append(out, u)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.entries = make(map[string]domain.TemporaryUnlock)
	r.mu.Unlock()
}

// put stores u verbatim. Test hook for malformed entries.
func (r *Registry) put(u domain.TemporaryUnlock) {
	r.mu.Lock()
	r.entries[u.Key] = u
	r.mu.Unlock()
}
