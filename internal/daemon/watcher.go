// Package daemon runs the lock daemon: the HTTP endpoint, the periodic
// schedule and lockdown checks, and crash-restart continuity.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ScheduleChecker applies the configured schedule to monitoring.
type ScheduleChecker interface {
	Check()
}

// LockdownEnforcer keeps monitoring stopped and the lockdown screen up while
// the system is in lockdown.
type LockdownEnforcer interface {
	EnforceLockdown() bool
}

// UnlockSweeper purges expired temporary unlocks.
type UnlockSweeper interface {
	Sweep() int
}

// WatcherConfig holds watcher intervals.
type WatcherConfig struct {
	ScheduleInterval time.Duration // How often the schedule is evaluated (default 60s)
	LockdownInterval time.Duration // How often the lockdown state is re-asserted (default 30s)
	SweepInterval    time.Duration // How often expired unlocks are purged (default 60s)
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		ScheduleInterval: 60 * time.Second,
		LockdownInterval: 30 * time.Second,
		SweepInterval:    60 * time.Second,
	}
}

// Watcher runs the daemon-wide periodic checks that live outside a
// monitoring session.
type Watcher struct {
	config   WatcherConfig
	schedule ScheduleChecker
	lockdown LockdownEnforcer
	unlocks  UnlockSweeper
	logger   *zap.Logger
}

// NewWatcher creates a watcher.
func NewWatcher(config WatcherConfig, schedule ScheduleChecker, lockdown LockdownEnforcer, unlocks UnlockSweeper, logger *zap.Logger) *Watcher {
	return &Watcher{
		config:   config,
		schedule: schedule,
		lockdown: lockdown,
		unlocks:  unlocks,
		logger:   logger,
	}
}

// Run checks lockdown and the schedule once, then on their intervals until
// ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watcher started",
		zap.Duration("schedule_interval", w.config.ScheduleInterval),
		zap.Duration("lockdown_interval", w.config.LockdownInterval),
		zap.Duration("sweep_interval", w.config.SweepInterval))

	w.ensureLockdownState()
	w.schedule.Check()

	scheduleTicker := time.NewTicker(w.config.ScheduleInterval)
	lockdownTicker := time.NewTicker(w.config.LockdownInterval)
	sweepTicker := time.NewTicker(w.config.SweepInterval)
	defer func() {
		scheduleTicker.Stop()
		lockdownTicker.Stop()
		sweepTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping")
			return nil

		case <-scheduleTicker.C:
			w.schedule.Check()

		case <-lockdownTicker.C:
			w.ensureLockdownState()

		case <-sweepTicker.C:
			w.unlocks.Sweep()
		}
	}
}

func (w *Watcher) ensureLockdownState() {
	if w.lockdown.EnforceLockdown() {
		w.logger.Debug("lockdown active, monitoring held")
	}
}
