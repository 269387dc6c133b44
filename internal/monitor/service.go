package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/clock"
	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/guard"
	"github.com/eliteGoblin/focusd/app_lock/internal/metrics"
	"github.com/eliteGoblin/focusd/app_lock/internal/settings"
	"github.com/eliteGoblin/focusd/app_lock/internal/unlock"
)

var errQueryOutstanding = errors.New("previous foreground query still outstanding")

// Heartbeater receives the session heartbeat on every poll tick.
type Heartbeater interface {
	Heartbeat(monitoring bool)
}

// Service owns the monitoring state: whether monitoring runs, the current
// locked target and the periodic tasks. One Service exists per process and is
// shared by the poll loop, the HTTP endpoint and the presentation layer.
type Service struct {
	cfg       Config
	store     *settings.Store
	unlocks   *unlock.Registry
	guard     *guard.Guard
	fg        domain.ForegroundProvider
	presenter domain.Presenter
	clock     domain.Clock
	events    domain.EventLog
	logger    *zap.Logger

	mu         sync.Mutex
	running    bool
	generation uint64
	session    uint64
	tasks      *clock.TaskGroup
	current    *domain.LockTarget
	blockShown bool
	lastSeen   *domain.ForegroundProcess
	heartbeat  Heartbeater

	querying atomic.Bool
}

// New creates a stopped monitoring service and subscribes it to lockdown.
// events may be nil.
func New(
	cfg Config,
	store *settings.Store,
	unlocks *unlock.Registry,
	g *guard.Guard,
	fg domain.ForegroundProvider,
	presenter domain.Presenter,
	clk domain.Clock,
	events domain.EventLog,
	logger *zap.Logger,
) *Service {
	s := &Service{
		cfg:       cfg,
		store:     store,
		unlocks:   unlocks,
		guard:     g,
		fg:        fg,
		presenter: presenter,
		clock:     clk,
		events:    events,
		logger:    logger,
	}
	g.OnLockdown(s.enterLockdown)
	return s
}

// SetHeartbeat attaches the continuity heartbeat.
func (s *Service) SetHeartbeat(h Heartbeater) {
	s.mu.Lock()
	s.heartbeat = h
	s.mu.Unlock()
}

// Start begins monitoring. It refuses with domain.ErrLockdown during lockdown
// and with a not-configured error when the PIN or unlock duration is unset.
// Starting an already running service is a no-op.
func (s *Service) Start() error {
	if s.guard.InLockdown() {
		s.logger.Warn("cannot start monitoring, system is in security lockdown")
		return domain.ErrLockdown
	}
	if _, err := s.store.PIN(); err != nil {
		s.logger.Warn("cannot start monitoring, settings not configured", zap.Error(err))
		return err
	}
	if _, err := s.store.UnlockDuration(); err != nil {
		s.logger.Warn("cannot start monitoring, settings not configured", zap.Error(err))
		return err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.generation++
	s.session++
	s.current = nil
	s.blockShown = false
	s.tasks = clock.NewTaskGroup(context.Background(), s.logger)
	s.tasks.Every("foreground-poll", s.cfg.PollInterval, s.tick)
	session := s.session
	s.mu.Unlock()

	metrics.MonitoringActive.Set(1)
	s.logger.Info("monitoring started", zap.Uint64("session", session))
	s.record(domain.EventMonitoringStarted, "", "")
	return nil
}

// Stop halts monitoring and persists wasMonitoringEnabled=false. It always
// succeeds; when it returns no poll tick is running or will apply results.
func (s *Service) Stop() {
	if !s.halt() {
		return
	}
	if err := s.store.SetWasMonitoringEnabled(false); err != nil {
		s.logger.Warn("failed to persist monitoring state", zap.Error(err))
	}
	s.logger.Info("monitoring stopped")
	s.record(domain.EventMonitoringStopped, "", "")
}

// Shutdown halts monitoring without touching the persisted intent, so the
// continuity snapshot written at shutdown survives.
func (s *Service) Shutdown() {
	if s.halt() {
		s.logger.Info("monitoring halted for shutdown")
	}
}

func (s *Service) halt() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	s.running = false
	s.generation++
	tasks := s.tasks
	s.tasks = nil
	hadBlock := s.blockShown
	s.current = nil
	s.blockShown = false
	s.mu.Unlock()

	tasks.Stop()
	if hadBlock {
		s.presenter.HideBlock()
	}
	metrics.MonitoringActive.Set(0)
	return true
}

// IsRunning reports whether monitoring is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SessionID identifies the current (or last) monitoring run.
func (s *Service) SessionID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// CurrentTarget returns the target whose block is being tracked, if any.
func (s *Service) CurrentTarget() (domain.LockTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.LockTarget{}, false
	}
	return *s.current, true
}

// Sweep purges expired temporary unlocks and returns how many were removed.
// The daemon calls it on a fixed cadence whether or not monitoring runs.
func (s *Service) Sweep() int {
	removed := s.unlocks.Sweep()
	metrics.ActiveUnlocks.Set(float64(s.unlocks.Len()))
	if removed > 0 {
		s.logger.Debug("expired unlocks removed", zap.Int("count", removed))
	}
	return removed
}

// tick is one poll of the foreground process.
func (s *Service) tick(ctx context.Context) {
	s.mu.Lock()
	running, gen, hb := s.running, s.generation, s.heartbeat
	s.mu.Unlock()
	if !running {
		return
	}

	s.Sweep()
	if hb != nil {
		hb.Heartbeat(true)
	}

	fp, err := s.queryForeground(ctx)
	if err != nil {
		metrics.ForegroundQueryErrors.Inc()
		s.logger.Debug("foreground query failed, skipping tick", zap.Error(err))
		return
	}
	if fp == nil || strings.TrimSpace(fp.Name) == "" {
		return
	}
	s.evaluate(gen, fp)
}

// queryForeground bounds the OS query by QueryTimeout. A query that ignores
// its context keeps the querying flag set and later ticks are skipped until
// it returns.
func (s *Service) queryForeground(ctx context.Context) (*domain.ForegroundProcess, error) {
	if !s.querying.CompareAndSwap(false, true) {
		return nil, errQueryOutstanding
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	type result struct {
		fp  *domain.ForegroundProcess
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer s.querying.Store(false)
		fp, err := s.fg.Foreground(ctx)
		ch <- result{fp, err}
	}()

	select {
	case r := <-ch:
		return r.fp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) evaluate(gen uint64, fp *domain.ForegroundProcess) {
	name := domain.NormalizeAppName(fp.Name)
	key := domain.ProcessKey(name, fp.PID, s.clock.Now())

	apps, err := s.store.LockedApps()
	if err != nil {
		s.logger.Warn("failed to load locked apps", zap.Error(err))
		return
	}
	locked := s.isLocked(apps, name)

	s.mu.Lock()
	if !s.running || s.generation != gen {
		s.mu.Unlock()
		return
	}
	seen := *fp
	s.lastSeen = &seen

	if !locked {
		hide := false
		if s.current != nil && s.current.Name == name {
			hide = s.blockShown
			s.current = nil
			s.blockShown = false
		}
		s.mu.Unlock()
		if hide {
			s.presenter.HideBlock()
		}
		return
	}

	if s.unlocks.IsActive(key) || s.unlocks.IsActive(s.baseName(name)) {
		s.mu.Unlock()
		return
	}
	if s.current != nil && s.current.Key() == key && s.blockShown {
		s.mu.Unlock()
		return
	}
	target := domain.AppTarget(name, fp.PID, key)
	s.current = &target
	s.blockShown = true
	s.mu.Unlock()

	s.logger.Info("locked app detected", zap.String("app", name), zap.Int("pid", fp.PID), zap.String("process_key", key))
	s.presenter.ShowBlock(target)
	metrics.BlocksShown.WithLabelValues(string(domain.KindApp)).Inc()
	s.record(domain.EventBlockShown, key, "")
}

// isLocked matches name against the list, tolerating the executable suffix on either side.
func (s *Service) isLocked(apps []domain.AppRef, name string) bool {
	for _, a := range apps {
		if s.sameApp(domain.NormalizeAppName(a.Name), name) {
			return true
		}
	}
	return false
}

func (s *Service) sameApp(a, b string) bool {
	if a == b {
		return a != ""
	}
	suffix := strings.ToLower(s.cfg.ExecutableSuffix)
	if suffix == "" {
		return false
	}
	a, b = strings.TrimSuffix(a, suffix), strings.TrimSuffix(b, suffix)
	return a != "" && a == b
}

// baseName strips the executable suffix so name-only unlock keys match
// either spelling of the app.
func (s *Service) baseName(name string) string {
	suffix := strings.ToLower(s.cfg.ExecutableSuffix)
	if base := strings.TrimSuffix(name, suffix); suffix != "" && base != "" {
		return base
	}
	return name
}

// UnlockCurrentTarget grants a temporary unlock for the tracked target when
// name refers to it (or name is empty). Otherwise it falls back to a
// name-only key, which unlocks every instance of that app.
func (s *Service) UnlockCurrentTarget(name string) (domain.TemporaryUnlock, error) {
	d, err := s.store.UnlockDuration()
	if err != nil {
		return domain.TemporaryUnlock{}, err
	}
	norm := domain.NormalizeAppName(name)

	s.mu.Lock()
	var target domain.LockTarget
	switch {
	case s.current != nil && (norm == "" || s.sameApp(s.current.Name, norm)):
		target = *s.current
	case norm != "":
		base := s.baseName(norm)
		target = domain.AppTarget(base, 0, base)
	default:
		s.mu.Unlock()
		return domain.TemporaryUnlock{}, domain.ErrNoLockedTarget
	}
	hadBlock := s.blockShown
	s.current = nil
	s.blockShown = false
	s.mu.Unlock()

	u := s.unlocks.Grant(target.Key(), d, map[string]string{"kind": string(domain.KindApp), "name": target.Name})
	if hadBlock {
		s.presenter.HideBlock()
	}
	metrics.UnlocksGranted.WithLabelValues(string(domain.KindApp)).Inc()
	s.logger.Info("temporary unlock granted",
		zap.String("key", target.Key()), zap.Duration("duration", d), zap.Bool("name_only", target.PID == 0))
	s.record(domain.EventUnlockGranted, target.Key(), d.String())
	return u, nil
}

// CloseBlock tears down the block presentation without unlocking. The next
// poll re-presents it while the locked app stays in front.
func (s *Service) CloseBlock() {
	s.mu.Lock()
	hadBlock := s.blockShown
	s.current = nil
	s.blockShown = false
	s.mu.Unlock()
	if hadBlock {
		s.presenter.HideBlock()
	}
}

// ActiveWindow queries the foreground process now, bounded by QueryTimeout.
func (s *Service) ActiveWindow(ctx context.Context) (*domain.ForegroundProcess, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()
	return s.fg.Foreground(ctx)
}

// EnforceLockdown stops monitoring and presents the lockdown screen when the
// system is in lockdown. It reports whether lockdown is active.
func (s *Service) EnforceLockdown() bool {
	if !s.guard.InLockdown() {
		return false
	}
	if s.IsRunning() {
		s.logger.Warn("monitoring running during lockdown, stopping")
		s.Stop()
	}
	s.presenter.ShowLockdown()
	return true
}

func (s *Service) enterLockdown() {
	s.Stop()
	s.presenter.HideBlock()
	s.presenter.ShowLockdown()
}

func (s *Service) record(t domain.SecurityEventType, target, detail string) {
	if s.events == nil {
		return
	}
	ev := domain.SecurityEvent{Type: t, Target: target, Detail: detail, CreatedAt: s.clock.Now()}
	if err := s.events.Append(ev); err != nil {
		s.logger.Warn("failed to record security event", zap.String("type", string(t)), zap.Error(err))
	}
}
