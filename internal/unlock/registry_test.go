package unlock

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/app_lock/internal/clock"
	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

func newTestRegistry() (*Registry, *clock.Fake) {
	fc := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return NewRegistry(fc), fc
}

func TestRegistry_GrantThenExpire(t *testing.T) {
	durations := []time.Duration{time.Millisecond, time.Second, time.Minute, 24 * time.Hour}
	for _, d := range durations {
		t.Run(d.String(), func(t *testing.T) {
			r, fc := newTestRegistry()
			r.Grant("notepad-42", d, nil)
			assert.True(t, r.IsActive("notepad-42"))

			fc.Advance(d - time.Nanosecond)
			assert.True(t, r.IsActive("notepad-42"))

			fc.Advance(time.Nanosecond)
			assert.False(t, r.IsActive("notepad-42"), "active iff now < expiry")
		})
	}
}

func TestRegistry_NonPositiveDurationIsInactive(t *testing.T) {
	r, _ := newTestRegistry()
	r.Grant("a", 0, nil)
	r.Grant("b", -time.Minute, nil)
	assert.False(t, r.IsActive("a"))
	assert.False(t, r.IsActive("b"))
}

func TestRegistry_MissingKey(t *testing.T) {
	r, _ := newTestRegistry()
	assert.False(t, r.IsActive("nope"))
	assert.Zero(t, r.Remaining("nope"))
	r.Revoke("nope")
	assert.Zero(t, r.Sweep())
}

func TestRegistry_IsActiveDoesNotEvict(t *testing.T) {
	r, fc := newTestRegistry()
	r.Grant("k", time.Second, nil)
	fc.Advance(2 * time.Second)
	assert.False(t, r.IsActive("k"))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_GrantOverwrites(t *testing.T) {
	r, fc := newTestRegistry()
	r.Grant("k", time.Second, nil)
	r.Grant("k", time.Hour, map[string]string{"source": "chrome"})
	fc.Advance(time.Minute)
	assert.True(t, r.IsActive("k"))
	assert.Equal(t, 59*time.Minute, r.Remaining("k"))
	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "chrome", snap[0].Metadata["source"])
}

func TestRegistry_Sweep(t *testing.T) {
	r, fc := newTestRegistry()
	r.Grant("short", time.Second, nil)
	r.Grant("long", time.Hour, nil)
	r.Grant("edge", 2*time.Second, nil)
	r.put(domain.TemporaryUnlock{Key: "broken"})

	fc.Advance(2 * time.Second)
	removed := r.Sweep()
	assert.Equal(t, 2, removed, "short and the entry without expiry go; edge is not yet past expiry")
	assert.Equal(t, 2, r.Len())
	assert.False(t, r.IsActive("edge"))
	assert.True(t, r.IsActive("long"))

	assert.Zero(t, r.Sweep(), "sweep is idempotent")
	assert.True(t, r.IsActive("long"), "sweep never removes unexpired entries")

	fc.Advance(time.Nanosecond)
	assert.Equal(t, 1, r.Sweep())
	keys := []string{}
	for _, u := range r.Snapshot() {
		keys = append(keys, u.Key)
	}
	assert.Equal(t, []string{"long"}, keys)
}

func TestRegistry_KeysAreIndependent(t *testing.T) {
	r, _ := newTestRegistry()
	r.Grant("notepad-42", time.Minute, nil)
	r.Grant(domain.WebsiteKey("example.com"), time.Minute, nil)
	assert.True(t, r.IsActive("notepad-42"))
	assert.False(t, r.IsActive("notepad-43"))
	assert.True(t, r.IsActive("website:example.com"))

	r.Clear()
	assert.Zero(t, r.Len())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r, fc := newTestRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("app-%d-%d", i, j)
				r.Grant(key, time.Minute, nil)
				_ = r.IsActive(key)
				_ = r.Sweep()
				fc.Advance(time.Millisecond)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 800, r.Len())
}
