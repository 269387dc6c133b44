// Package continuity preserves the "monitoring was on" intent across restarts.
package continuity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/settings"
)

// DefaultSettleDelay is how long Resume waits after startup before restarting monitoring.
const DefaultSettleDelay = 3 * time.Second

// Monitor is the part of the monitoring service the tracker restarts.
type Monitor interface {
	Start() error
	IsRunning() bool
}

// LockdownChecker reports the security lockdown state.
type LockdownChecker interface {
	InLockdown() bool
}

// Tracker writes the session heartbeat and decides whether monitoring resumes on startup.
type Tracker struct {
	store       *settings.Store
	lockdown    LockdownChecker
	monitor     Monitor
	clock       domain.Clock
	logger      *zap.Logger
	settleDelay time.Duration
}

// New creates a tracker using DefaultSettleDelay.
func New(store *settings.Store, lockdown LockdownChecker, monitor Monitor, clock domain.Clock, logger *zap.Logger) *Tracker {
	return &Tracker{
		store:       store,
		lockdown:    lockdown,
		monitor:     monitor,
		clock:       clock,
		logger:      logger,
		settleDelay: DefaultSettleDelay,
	}
}

// WithSettleDelay overrides the startup settle delay.
func (t *Tracker) WithSettleDelay(d time.Duration) *Tracker {
	t.settleDelay = d
	return t
}

// Heartbeat persists the monitoring intent and the session timestamp.
func (t *Tracker) Heartbeat(monitoring bool) {
	if err := t.store.SetWasMonitoringEnabled(monitoring); err != nil {
		t.logger.Warn("failed to persist monitoring state", zap.Error(err))
		return
	}
	if err := t.store.SetLastAppSession(t.clock.Now()); err != nil {
		t.logger.Warn("failed to persist session heartbeat", zap.Error(err))
	}
}

// RecordShutdown persists the heartbeat plus lastShutdownTime at graceful shutdown.
func (t *Tracker) RecordShutdown() error {
	monitoring := t.monitor.IsRunning()
	now := t.clock.Now()
	if err := t.store.SetWasMonitoringEnabled(monitoring); err != nil {
		return fmt.Errorf("failed to record monitoring state: %w", err)
	}
	if err := t.store.SetLastAppSession(now); err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	if err := t.store.SetLastShutdownTime(now); err != nil {
		return fmt.Errorf("failed to record shutdown time: %w", err)
	}
	t.logger.Info("shutdown recorded", zap.Bool("was_monitoring", monitoring))
	return nil
}

// ShouldAutoRestart is true iff auto-restart is enabled, monitoring was
// enabled and the system is not in lockdown. Whether the last shutdown was
// graceful is deliberately not considered.
func (t *Tracker) ShouldAutoRestart() (bool, error) {
	snap, err := t.store.Continuity()
	if err != nil {
		return false, fmt.Errorf("failed to load continuity snapshot: %w", err)
	}
	if !snap.AutoRestartMonitoring || !snap.WasMonitoringEnabled {
		return false, nil
	}
	return !t.lockdown.InLockdown(), nil
}

// Resume restarts monitoring after the settle delay when ShouldAutoRestart
// holds, then clears wasMonitoringEnabled. It reports whether monitoring was
// started.
func (t *Tracker) Resume(ctx context.Context) (bool, error) {
	ok, err := t.ShouldAutoRestart()
	if err != nil || !ok {
		return false, err
	}
	snap, _ := t.store.Continuity()
	t.logger.Info("monitoring was enabled before restart, resuming",
		zap.Time("last_session", snap.LastAppSession),
		zap.Bool("graceful", snap.LastShutdownTime != nil && !snap.LastShutdownTime.Before(snap.LastAppSession)),
		zap.Duration("settle_delay", t.settleDelay))

	if t.settleDelay > 0 {
		timer := time.NewTimer(t.settleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	// lockdown may have been entered during the delay
	if t.lockdown.InLockdown() {
		return false, nil
	}
	if t.monitor.IsRunning() {
		return false, nil
	}
	if err := t.monitor.Start(); err != nil {
		return false, fmt.Errorf("failed to resume monitoring: %w", err)
	}
	if err := t.store.SetWasMonitoringEnabled(false); err != nil {
		t.logger.Warn("failed to clear monitoring intent", zap.Error(err))
	}
	t.logger.Info("monitoring resumed after restart")
	return true, nil
}
