package schedule

import (
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/settings"
)

// Monitor is the part of the foreground monitor the checker drives.
type Monitor interface {
	Start() error
	Stop()
	IsRunning() bool
	// SessionID identifies the current monitoring run; it changes on every start.
	SessionID() uint64
}

// Status is the schedule view returned by getScheduleStatus.
type Status struct {
	domain.ScheduleConfig
	IsScheduledTime bool `json:"isScheduledTime"`
	AutoStarted     bool `json:"autoStarted"`
	IsMonitoring    bool `json:"isMonitoring"`
}

// Checker flips monitoring on at the start of the window when auto-start is
// enabled, and off at its end only for sessions it started itself.
type Checker struct {
	mu          sync.Mutex
	store       *settings.Store
	monitor     Monitor
	clock       domain.Clock
	logger      *zap.Logger
	lastActive  bool
	autoStarted bool
	autoSession uint64
}

// NewChecker creates a checker. The first Check treats the previous state as inactive.
func NewChecker(store *settings.Store, monitor Monitor, clock domain.Clock, logger *zap.Logger) *Checker {
	return &Checker{
		store:   store,
		monitor: monitor,
		clock:   clock,
		logger:  logger,
	}
}

// Check evaluates the schedule once.
func (c *Checker) Check() {
	cfg, err := c.store.Schedule()
	if err != nil {
		c.logger.Warn("failed to load schedule", zap.Error(err))
		return
	}
	should := IsScheduledNow(cfg, c.clock.Now())

	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.lastActive
	c.lastActive = should

	switch {
	case should && !prev:
		if !cfg.AutoStart || c.monitor.IsRunning() {
			return
		}
		if err := c.monitor.Start(); err != nil {
			c.logger.Warn("scheduled auto-start refused", zap.Error(err))
			return
		}
		c.autoStarted = true
		c.autoSession = c.monitor.SessionID()
		c.logger.Info("monitoring auto-started by schedule",
			zap.String("start", cfg.StartTime), zap.String("end", cfg.EndTime))

	case !should && prev:
		if !c.autoStarted {
			return
		}
		c.autoStarted = false
		if !c.monitor.IsRunning() || c.monitor.SessionID() != c.autoSession {
			c.logger.Debug("scheduled session already replaced, not stopping")
			return
		}
		c.monitor.Stop()
		c.logger.Info("monitoring auto-stopped by schedule")
	}
}

// Status reports the schedule and whether the current session was auto-started.
func (c *Checker) Status() (Status, error) {
	cfg, err := c.store.Schedule()
	if err != nil {
		return Status{}, err
	}
	c.mu.Lock()
	auto := c.autoStarted && c.monitor.IsRunning() && c.monitor.SessionID() == c.autoSession
	c.mu.Unlock()
	return Status{
		ScheduleConfig:  cfg,
		IsScheduledTime: IsScheduledNow(cfg, c.clock.Now()),
		AutoStarted:     auto,
		IsMonitoring:    c.monitor.IsRunning(),
	}, nil
}
