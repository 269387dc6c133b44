package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/app_lock/internal/clock"
	"github.com/eliteGoblin/focusd/app_lock/internal/config"
	"github.com/eliteGoblin/focusd/app_lock/internal/continuity"
	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/guard"
	"github.com/eliteGoblin/focusd/app_lock/internal/infra"
	"github.com/eliteGoblin/focusd/app_lock/internal/monitor"
	"github.com/eliteGoblin/focusd/app_lock/internal/schedule"
	"github.com/eliteGoblin/focusd/app_lock/internal/settings"
	"github.com/eliteGoblin/focusd/app_lock/internal/unlock"
	"github.com/eliteGoblin/focusd/app_lock/internal/usecase"
	"github.com/eliteGoblin/focusd/app_lock/internal/web"
)

// Deps are the OS and persistence collaborators of the daemon.
type Deps struct {
	KV         domain.KVStore
	Events     domain.EventLog // may be nil
	Foreground domain.ForegroundProvider
	Processes  domain.ProcessInspector
	Runtime    domain.RuntimeRegistry // may be nil
	Clock      domain.Clock
}

// App is one running lock daemon.
type App struct {
	cfg     config.Config
	version string
	deps    Deps
	logger  *zap.Logger

	store     *settings.Store
	guard     *guard.Guard
	monitor   *monitor.Service
	checker   *schedule.Checker
	tracker   *continuity.Tracker
	presenter *infra.ChallengePresenter
	ctrl      *usecase.Controller
	server    *web.Server
	watcher   *Watcher

	closers []func()
}

// New wires the daemon components over deps.
func New(cfg config.Config, version string, deps Deps, logger *zap.Logger) *App {
	store := settings.New(deps.KV)
	g := guard.New(store, deps.Clock, deps.Events, logger.Named("guard"))
	unlocks := unlock.NewRegistry(deps.Clock)
	presenter := infra.NewChallengePresenter(deps.Clock, logger.Named("presenter"))
	g.OnRecover(presenter.HideLockdown)

	mon := monitor.New(cfg.Monitor(), store, unlocks, g, deps.Foreground, presenter, deps.Clock, deps.Events, logger.Named("monitor"))
	checker := schedule.NewChecker(store, mon, deps.Clock, logger.Named("schedule"))
	tracker := continuity.New(store, g, mon, deps.Clock, logger.Named("continuity")).WithSettleDelay(cfg.SettleDelay)
	mon.SetHeartbeat(tracker)

	ctrl := usecase.NewController(store, g, mon, unlocks, checker, deps.Processes, deps.Events, deps.Clock, logger.Named("controller"))
	server := web.NewServer(cfg.Web(version), ctrl, presenter, deps.Clock, logger.Named("web"))
	watcher := NewWatcher(WatcherConfig{
		ScheduleInterval: cfg.ScheduleInterval,
		LockdownInterval: cfg.LockdownInterval,
		SweepInterval:    cfg.SweepInterval,
	}, checker, mon, mon, logger.Named("watcher"))

	return &App{
		cfg:       cfg,
		version:   version,
		deps:      deps,
		logger:    logger,
		store:     store,
		guard:     g,
		monitor:   mon,
		checker:   checker,
		tracker:   tracker,
		presenter: presenter,
		ctrl:      ctrl,
		server:    server,
		watcher:   watcher,
	}
}

// Open creates a daemon backed by the encrypted store in cfg.DataDir, the X11
// foreground provider and the runtime file. Call Close when done.
func Open(cfg config.Config, version string, logger *zap.Logger) (*App, error) {
	paths := cfg.Paths()
	db, err := infra.OpenStore(paths.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings store: %w", err)
	}

	clk := clock.Real{}
	procs := infra.NewProcessInspector(cfg.ExecutableSuffix)
	fg := infra.NewX11Foreground(procs, clk, logger.Named("x11"))

	app := New(cfg, version, Deps{
		KV:         db,
		Events:     db,
		Foreground: fg,
		Processes:  procs,
		Runtime:    infra.NewRuntimeFile(paths.RuntimePath, procs),
		Clock:      clk,
	}, logger)
	app.closers = append(app.closers, fg.Close, func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close settings store", zap.Error(err))
		}
	})
	return app, nil
}

// Controller exposes the operations of the running daemon.
func (a *App) Controller() *usecase.Controller {
	return a.ctrl
}

// Challenge returns what the presentation layer currently shows.
func (a *App) Challenge() domain.ChallengeState {
	return a.presenter.Challenge()
}

// Addr returns the HTTP endpoint address.
func (a *App) Addr() string {
	return a.server.Addr()
}

// Run serves the daemon until ctx is canceled. Lockdown is re-asserted and the
// schedule evaluated immediately; monitoring resumes when the previous
// session left it enabled. On return the shutdown is recorded for the next start.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("daemon starting",
		zap.String("version", a.version),
		zap.Int("pid", os.Getpid()),
		zap.String("data_dir", a.cfg.DataDir))

	if err := a.server.Start(); err != nil {
		a.logger.Warn("website block endpoint unavailable", zap.Error(err))
	}
	a.register()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(gctx)
	})
	g.Go(func() error {
		return a.watcher.Run(gctx)
	})
	g.Go(func() error {
		if _, err := a.tracker.Resume(gctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("failed to resume monitoring", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	a.shutdown()
	return err
}

func (a *App) register() {
	if a.deps.Runtime == nil {
		return
	}
	info := domain.RuntimeInfo{
		PID:        os.Getpid(),
		StartedAt:  a.deps.Clock.Now(),
		AppVersion: a.version,
	}
	if a.server.Listening() {
		info.Addr = a.server.Addr()
	}
	if err := a.deps.Runtime.Register(info); err != nil {
		a.logger.Warn("failed to register runtime file", zap.String("path", a.deps.Runtime.Path()), zap.Error(err))
	}
}

func (a *App) shutdown() {
	if err := a.tracker.RecordShutdown(); err != nil {
		a.logger.Warn("failed to record shutdown", zap.Error(err))
	}
	a.monitor.Shutdown()

	if a.deps.Runtime != nil {
		if err := a.deps.Runtime.Clear(); err != nil {
			a.logger.Warn("failed to clear runtime file", zap.Error(err))
		}
	}
	a.logger.Info("daemon stopped")
}

// Close releases the collaborators opened by Open.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
