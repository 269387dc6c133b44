// Package usecase wires the lock components into the operations exposed to the
// presentation layer and the browser extension.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/guard"
	"github.com/eliteGoblin/focusd/app_lock/internal/metrics"
	"github.com/eliteGoblin/focusd/app_lock/internal/monitor"
	"github.com/eliteGoblin/focusd/app_lock/internal/schedule"
	"github.com/eliteGoblin/focusd/app_lock/internal/settings"
	"github.com/eliteGoblin/focusd/app_lock/internal/unlock"
)

// Controller is the single entry point for desktop and website operations.
type Controller struct {
	store    *settings.Store
	guard    *guard.Guard
	monitor  *monitor.Service
	unlocks  *unlock.Registry
	schedule *schedule.Checker
	procs    domain.ProcessInspector
	events   domain.EventLog
	clock    domain.Clock
	logger   *zap.Logger
}

// NewController creates a Controller. procs and events may be nil.
func NewController(
	store *settings.Store,
	g *guard.Guard,
	mon *monitor.Service,
	unlocks *unlock.Registry,
	checker *schedule.Checker,
	procs domain.ProcessInspector,
	events domain.EventLog,
	clock domain.Clock,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		store:    store,
		guard:    g,
		monitor:  mon,
		unlocks:  unlocks,
		schedule: checker,
		procs:    procs,
		events:   events,
		clock:    clock,
		logger:   logger,
	}
}

// SecurityStatus is the view returned by getSecurityStatus.
type SecurityStatus struct {
	IsInLockdown         bool       `json:"isInLockdown"`
	PinAttempts          int        `json:"pinAttempts"`
	RemainingAttempts    int        `json:"remainingAttempts"`
	LastLockdownTime     *time.Time `json:"lastLockdownTime"`
	IsOnboardingComplete bool       `json:"isOnboardingComplete"`
}

// --- monitoring ---

// StartMonitoring starts the foreground monitor.
func (c *Controller) StartMonitoring() error {
	return c.monitor.Start()
}

// StopMonitoring verifies pin and stops monitoring on success. A wrong PIN
// counts toward lockdown like any other attempt.
func (c *Controller) StopMonitoring(pin string) (guard.VerifyResult, error) {
	res, err := c.guard.Verify(pin)
	if err != nil || !res.Success {
		return res, err
	}
	c.monitor.Stop()
	return res, nil
}

// IsMonitoring reports whether the foreground monitor runs.
func (c *Controller) IsMonitoring() bool {
	return c.monitor.IsRunning()
}

// --- PIN and lockdown ---

// VerifyPIN checks pin through the shared guard.
func (c *Controller) VerifyPIN(pin string) (guard.VerifyResult, error) {
	return c.guard.Verify(pin)
}

// VerifyMasterPassword checks the master password.
func (c *Controller) VerifyMasterPassword(password string) (bool, error) {
	return c.guard.VerifyMaster(password)
}

// Recover leaves lockdown, optionally replacing the PIN.
func (c *Controller) Recover(newPIN string) error {
	return c.guard.Recover(newPIN)
}

// SecurityStatus returns the lockdown state and attempt counter.
func (c *Controller) SecurityStatus() (SecurityStatus, error) {
	st, err := c.guard.Status()
	if err != nil {
		return SecurityStatus{}, err
	}
	done, err := c.store.OnboardingComplete()
	if err != nil {
		return SecurityStatus{}, err
	}
	remaining := guard.MaxAttempts - st.PinAttempts
	if st.IsInLockdown || remaining < 0 {
		remaining = 0
	}
	return SecurityStatus{
		IsInLockdown:         st.IsInLockdown,
		PinAttempts:          st.PinAttempts,
		RemainingAttempts:    remaining,
		LastLockdownTime:     st.LastLockdownTime,
		IsOnboardingComplete: done,
	}, nil
}

// Onboard configures PIN, master password and unlock duration together.
func (c *Controller) Onboard(pin, master string, unlock time.Duration) error {
	if err := c.store.Onboard(pin, master, unlock); err != nil {
		return err
	}
	c.logger.Info("onboarding completed", zap.Duration("unlock_duration", unlock))
	return nil
}

// --- desktop targets ---

// UnlockCurrentTarget grants a temporary unlock for the blocked app.
func (c *Controller) UnlockCurrentTarget(name string) (domain.TemporaryUnlock, error) {
	return c.monitor.UnlockCurrentTarget(name)
}

// CloseBlock dismisses the block challenge without unlocking.
func (c *Controller) CloseBlock() {
	c.monitor.CloseBlock()
}

// DebugInfo returns the monitoring state snapshot.
func (c *Controller) DebugInfo() monitor.DebugInfo {
	return c.monitor.DebugInfo()
}

// ActiveWindow returns the current foreground process, or nil.
func (c *Controller) ActiveWindow(ctx context.Context) (*domain.ForegroundProcess, error) {
	return c.monitor.ActiveWindow(ctx)
}

// RunningApps lists running user applications.
func (c *Controller) RunningApps(ctx context.Context) ([]string, error) {
	if c.procs == nil {
		return nil, errors.New("process inspection unavailable")
	}
	return c.procs.RunningApps(ctx)
}

// --- schedule and settings ---

// ScheduleStatus returns the schedule view.
func (c *Controller) ScheduleStatus() (schedule.Status, error) {
	return c.schedule.Status()
}

// SetLockedApps replaces the locked application list.
func (c *Controller) SetLockedApps(apps []domain.AppRef) ([]domain.AppRef, error) {
	stored, err := c.store.SetLockedApps(apps)
	if err != nil {
		return nil, fmt.Errorf("failed to save locked apps: %w", err)
	}
	c.logger.Info("locked apps updated", zap.Int("count", len(stored)))
	return stored, nil
}

// SetBlockedWebsites replaces the blocked website list.
func (c *Controller) SetBlockedWebsites(sites []string) ([]string, error) {
	stored, err := c.store.SetBlockedWebsites(sites)
	if err != nil {
		return nil, fmt.Errorf("failed to save blocked websites: %w", err)
	}
	c.logger.Info("blocked websites updated", zap.Int("count", len(stored)))
	return stored, nil
}

// Settings returns the settings view.
func (c *Controller) Settings() (settings.View, error) {
	return c.store.View()
}

// UpdateSettings applies a partial update and returns the new view.
func (c *Controller) UpdateSettings(p settings.Patch) (settings.View, error) {
	if err := c.store.Apply(p); err != nil {
		return settings.View{}, err
	}
	return c.store.View()
}

// Events returns up to limit recent security events.
func (c *Controller) Events(limit int) ([]domain.SecurityEvent, error) {
	if c.events == nil {
		return nil, nil
	}
	return c.events.Recent(limit)
}

func (c *Controller) record(t domain.SecurityEventType, target, detail string) {
	if c.events == nil {
		return
	}
	ev := domain.SecurityEvent{Type: t, Target: target, Detail: detail, CreatedAt: c.clock.Now()}
	if err := c.events.Append(ev); err != nil {
		c.logger.Warn("failed to record security event", zap.String("type", string(t)), zap.Error(err))
	}
}

func (c *Controller) countBlock(kind domain.TargetKind) {
	metrics.BlocksShown.WithLabelValues(string(kind)).Inc()
}
