package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/clock"
	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/guard"
	"github.com/eliteGoblin/focusd/app_lock/internal/monitor"
	"github.com/eliteGoblin/focusd/app_lock/internal/schedule"
	"github.com/eliteGoblin/focusd/app_lock/internal/settings"
	"github.com/eliteGoblin/focusd/app_lock/internal/unlock"
)

// mockForeground implements domain.ForegroundProvider for testing
type mockForeground struct {
	fp *domain.ForegroundProcess
}

func (m *mockForeground) Foreground(ctx context.Context) (*domain.ForegroundProcess, error) {
	return m.fp, nil
}

// nopPresenter implements domain.Presenter for testing
type nopPresenter struct{}

func (nopPresenter) ShowBlock(domain.LockTarget) {}
func (nopPresenter) HideBlock()                  {}
func (nopPresenter) ShowLockdown()               {}
func (nopPresenter) HideLockdown()               {}

// mockProcessInspector implements domain.ProcessInspector for testing
type mockProcessInspector struct {
	apps []string
}

func (m *mockProcessInspector) NameByPID(ctx context.Context, pid int) (string, error) {
	return "", nil
}

func (m *mockProcessInspector) RunningApps(ctx context.Context) ([]string, error) {
	return m.apps, nil
}

func (m *mockProcessInspector) IsRunning(pid int) bool { return false }

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
	if limit > len(m.events) {
		limit = len(m.events)
	}
	return m.events[:limit], nil
}

type fixture struct {
	ctrl   *Controller
	store  *settings.Store
	mon    *monitor.Service
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
	g := guard.New(store, fc, events, zap.NewNop())
	reg := unlock.NewRegistry(fc)
	cfg := monitor.DefaultConfig()
	cfg.PollInterval = time.Hour
	mon := monitor.New(cfg, store, reg, g, &mockForeground{}, nopPresenter{}, fc, events, zap.NewNop())
	t.Cleanup(mon.Shutdown)
	checker := schedule.NewChecker(store, mon, fc, zap.NewNop())
	procs := &mockProcessInspector{apps: []string{"firefox", "steam"}}
	ctrl := NewController(store, g, mon, reg, checker, procs, events, fc, zap.NewNop())
	return &fixture{ctrl: ctrl, store: store, mon: mon, clock: fc, events: events}
}

func TestController_ShouldBlock(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.ctrl.SetBlockedWebsites([]string{"example.com"})
	require.NoError(t, err)

	d, err := f.ctrl.ShouldBlock("example.com", "chrome")
	require.NoError(t, err)
	assert.False(t, d.Block)
	assert.Equal(t, ReasonMonitoringDisabled, d.Reason, "never blocked while monitoring is off")

	require.NoError(t, f.ctrl.StartMonitoring())
	d, err = f.ctrl.ShouldBlock("https://www.example.com/watch", "chrome")
	require.NoError(t, err)
	assert.True(t, d.Block)
	assert.Equal(t, ReasonBlocked, d.Reason)
	assert.Equal(t, "example.com", d.Site)

	u, dur, err := f.ctrl.UnlockWebsite("example.com", "chrome")
	require.NoError(t, err)
	assert.Equal(t, "website:example.com", u.Key)
	assert.Equal(t, time.Minute, dur)

	d, err = f.ctrl.ShouldBlock("example.com", "chrome")
	require.NoError(t, err)
	assert.False(t, d.Block)
	assert.Equal(t, ReasonTemporarilyUnlocked, d.Reason)

	f.clock.Advance(time.Minute)
	d, err = f.ctrl.ShouldBlock("example.com", "chrome")
	require.NoError(t, err)
	assert.Equal(t, ReasonBlocked, d.Reason)

	_, err = f.ctrl.ShouldBlock("   ", "chrome")
	assert.ErrorIs(t, err, domain.ErrInvalidSite)
}

func TestController_UnlockWebsiteRequiresDuration(t *testing.T) {
	f := newFixture(t, false)
	_, _, err := f.ctrl.UnlockWebsite("example.com", "chrome")
	assert.ErrorIs(t, err, domain.ErrUnlockDurationNotConfigured)
}

func TestController_WebsiteAndDesktopShareCounter(t *testing.T) {
	f := newFixture(t, true)

	for i := 0; i < 5; i++ {
		res, err := f.ctrl.VerifyWebsitePIN("00000", "example.com", "chrome-extension")
		require.NoError(t, err)
		require.False(t, res.Success)
	}
	for i := 0; i < 4; i++ {
		_, err := f.ctrl.VerifyPIN("11111")
		require.NoError(t, err)
	}
	status, err := f.ctrl.SecurityStatus()
	require.NoError(t, err)
	assert.Equal(t, 9, status.PinAttempts)
	assert.Equal(t, 1, status.RemainingAttempts)

	res, err := f.ctrl.VerifyWebsitePIN("00000", "example.com", "chrome-extension")
	require.NoError(t, err)
	assert.True(t, res.LockdownTriggered)

	_, err = f.ctrl.VerifyPIN("12345")
	assert.ErrorIs(t, err, domain.ErrLockdown)
	status, err = f.ctrl.SecurityStatus()
	require.NoError(t, err)
	assert.True(t, status.IsInLockdown)
	assert.Zero(t, status.RemainingAttempts)
}

func TestController_StopMonitoringRequiresPIN(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.ctrl.StartMonitoring())

	res, err := f.ctrl.StopMonitoring("99999")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, f.ctrl.IsMonitoring())

	res, err = f.ctrl.StopMonitoring("12345")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, f.ctrl.IsMonitoring())
}

func TestController_LockdownRecoveryFlow(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.ctrl.StartMonitoring())
	for i := 0; i < guard.MaxAttempts; i++ {
		_, err := f.ctrl.VerifyPIN("00000")
		require.NoError(t, err)
	}
	assert.False(t, f.ctrl.IsMonitoring())
	assert.ErrorIs(t, f.ctrl.StartMonitoring(), domain.ErrLockdown)

	assert.ErrorIs(t, f.ctrl.Recover("54321"), domain.ErrMasterNotVerified)
	ok, err := f.ctrl.VerifyMasterPassword("master-pw")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, f.ctrl.Recover("54321"))

	require.NoError(t, f.ctrl.StartMonitoring())
	res, err := f.ctrl.VerifyPIN("54321")
	require.NoError(t, err)
	assert.True(t, res.Success)

	events, err := f.ctrl.Events(100)
	require.NoError(t, err)
	var types []domain.SecurityEventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, domain.EventLockdownActivated)
	assert.Contains(t, types, domain.EventLockdownRecovered)
}

func TestController_Settings(t *testing.T) {
	f := newFixture(t, true)

	apps, err := f.ctrl.SetLockedApps([]domain.AppRef{{Name: "Steam"}, {Name: "steam"}})
	require.NoError(t, err)
	assert.Len(t, apps, 1)

	restart := false
	ms := int64(5000)
	v, err := f.ctrl.UpdateSettings(settings.Patch{AutoRestartMonitoring: &restart, UnlockDurationMs: &ms})
	require.NoError(t, err)
	assert.False(t, v.AutoRestartMonitoring)
	assert.Equal(t, ms, v.UnlockDurationMs)
	assert.Equal(t, []domain.AppRef{{Name: "Steam"}}, v.LockedApps)

	bad := int64(-1)
	_, err = f.ctrl.UpdateSettings(settings.Patch{UnlockDurationMs: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
}

func TestController_ScheduleStatus(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.store.SetSchedule(domain.ScheduleConfig{
		Enabled: true, StartTime: "09:00", EndTime: "17:00", Days: []int{3},
	}))
	status, err := f.ctrl.ScheduleStatus()
	require.NoError(t, err)
	assert.True(t, status.IsScheduledTime)
	assert.False(t, status.AutoStarted)
	assert.False(t, status.IsMonitoring)
}

func TestController_RunningApps(t *testing.T) {
	f := newFixture(t, true)
	apps, err := f.ctrl.RunningApps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"firefox", "steam"}, apps)
}

func TestController_BlocklistNeverNil(t *testing.T) {
	f := newFixture(t, true)
	sites, err := f.ctrl.Blocklist()
	require.NoError(t, err)
	assert.NotNil(t, sites)
	assert.Empty(t, sites)
}
