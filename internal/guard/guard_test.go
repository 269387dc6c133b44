package guard

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/clock"
	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/settings"
)

// mockEventLog implements domain.EventLog for testing
type mockEventLog struct {
	mu     sync.Mutex
	events []domain.SecurityEvent
}

func (m *mockEventLog) Append(e domain.SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockEventLog) Recent(limit int) ([]domain.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events, nil
}

func (m *mockEventLog) count(t domain.SecurityEventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	guard  *Guard
	store  *settings.Store
	clock  *clock.Fake
	events *mockEventLog
}

func newFixture(t *testing.T, onboard bool) *fixture {
	t.Helper()
	store := settings.New(settings.NewMemoryKV())
	if onboard {
		require.NoError(t, store.Onboard("12345", "master-pw", time.Minute))
	}
	fc := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	events := &mockEventLog{}
	return &fixture{
		guard:  New(store, fc, events, zap.NewNop()),
		store:  store,
		clock:  fc,
		events: events,
	}
}

func (f *fixture) failN(t *testing.T, n int) VerifyResult {
	t.Helper()
	var res VerifyResult
	for i := 0; i < n; i++ {
		var err error
		res, err = f.guard.Verify("00000")
		require.NoError(t, err)
		require.False(t, res.Success)
	}
	return res
}

func TestGuard_VerifyCorrectPINResetsCounter(t *testing.T) {
	f := newFixture(t, true)
	f.failN(t, 3)

	res, err := f.guard.Verify("12345")
	require.NoError(t, err)
	assert.True(t, res.Success)

	st, err := f.guard.Status()
	require.NoError(t, err)
	assert.Zero(t, st.PinAttempts)
}

func TestGuard_RemainingCountsDown(t *testing.T) {
	tests := []struct {
		failures      int
		wantRemaining int
	}{
		{1, 9},
		{5, 5},
		{9, 1},
	}
	for _, tt := range tests {
		f := newFixture(t, true)
		res := f.failN(t, tt.failures)
		assert.Equal(t, tt.wantRemaining, res.Remaining)
		assert.False(t, res.LockdownTriggered)
		assert.False(t, f.guard.InLockdown())
	}
}

func TestGuard_TenthFailureTriggersLockdown(t *testing.T) {
	f := newFixture(t, true)
	var hookCalls atomic.Int32
	f.guard.OnLockdown(func() { hookCalls.Add(1) })

	res := f.failN(t, 9)
	assert.Equal(t, 1, res.Remaining)

	res, err := f.guard.Verify("99999")
	require.NoError(t, err)
	assert.True(t, res.LockdownTriggered)
	assert.Equal(t, int32(1), hookCalls.Load())
	assert.True(t, f.guard.InLockdown())

	st, err := f.guard.Status()
	require.NoError(t, err)
	assert.Equal(t, MaxAttempts, st.PinAttempts)
	require.NotNil(t, st.LastLockdownTime)
	assert.True(t, f.clock.Now().Equal(*st.LastLockdownTime))

	for _, pin := range []string{"12345", "00000", ""} {
		_, err := f.guard.Verify(pin)
		assert.ErrorIs(t, err, domain.ErrLockdown, "pin %q", pin)
	}
	assert.Equal(t, int32(1), hookCalls.Load())
	assert.Equal(t, 1, f.events.count(domain.EventLockdownActivated))
	assert.Equal(t, 9, f.events.count(domain.EventPINFailed))
}

func TestGuard_NotConfiguredFailsClosed(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.guard.Verify("12345")
	assert.ErrorIs(t, err, domain.ErrPINNotConfigured)

	ok, err := f.guard.VerifyMaster("anything")
	assert.ErrorIs(t, err, domain.ErrMasterNotConfigured)
	assert.False(t, ok)

	st, err := f.guard.Status()
	require.NoError(t, err)
	assert.Zero(t, st.PinAttempts, "unconfigured checks are not counted")
}

func TestGuard_RecoverRequiresMaster(t *testing.T) {
	f := newFixture(t, true)
	f.failN(t, MaxAttempts)
	require.True(t, f.guard.InLockdown())

	assert.ErrorIs(t, f.guard.Recover(""), domain.ErrMasterNotVerified)

	ok, err := f.guard.VerifyMaster("wrong-password")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, f.guard.Recover(""), domain.ErrMasterNotVerified)
	assert.True(t, f.guard.InLockdown(), "VerifyMaster does not clear lockdown")
}

func TestGuard_RecoverWithNewPIN(t *testing.T) {
	f := newFixture(t, true)
	var recovered atomic.Int32
	f.guard.OnRecover(func() { recovered.Add(1) })
	f.failN(t, MaxAttempts)

	ok, err := f.guard.VerifyMaster("master-pw")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, f.guard.InLockdown())

	assert.ErrorIs(t, f.guard.Recover("12"), domain.ErrInvalidPIN)
	assert.True(t, f.guard.InLockdown(), "invalid new PIN leaves lockdown intact")

	require.NoError(t, f.guard.Recover("54321"))
	assert.False(t, f.guard.InLockdown())
	assert.Equal(t, int32(1), recovered.Load())

	st, err := f.guard.Status()
	require.NoError(t, err)
	assert.Zero(t, st.PinAttempts)

	res, err := f.guard.Verify("54321")
	require.NoError(t, err)
	assert.True(t, res.Success)

	assert.ErrorIs(t, f.guard.Recover(""), domain.ErrNotInLockdown)
}

func TestGuard_MasterVerificationExpires(t *testing.T) {
	f := newFixture(t, true)
	f.failN(t, MaxAttempts)

	ok, err := f.guard.VerifyMaster("master-pw")
	require.NoError(t, err)
	require.True(t, ok)

	f.clock.Advance(MasterVerificationTTL + time.Second)
	assert.ErrorIs(t, f.guard.Recover(""), domain.ErrMasterNotVerified)
}

func TestGuard_MasterVerificationIsSingleUse(t *testing.T) {
	f := newFixture(t, true)
	f.failN(t, MaxAttempts)
	_, err := f.guard.VerifyMaster("master-pw")
	require.NoError(t, err)
	require.NoError(t, f.guard.Recover(""))

	f.failN(t, MaxAttempts)
	assert.ErrorIs(t, f.guard.Recover(""), domain.ErrMasterNotVerified)
}

func TestGuard_ConcurrentFailuresShareCounter(t *testing.T) {
	f := newFixture(t, true)
	var triggered atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < MaxAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.guard.Verify("00000")
			if err == nil && res.LockdownTriggered {
				triggered.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), triggered.Load())
	assert.True(t, f.guard.InLockdown())
}
