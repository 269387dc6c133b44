//go:build integration

package integration

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/clock"
	"github.com/eliteGoblin/focusd/app_lock/internal/config"
	"github.com/eliteGoblin/focusd/app_lock/internal/daemon"
	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/infra"
	"github.com/eliteGoblin/focusd/app_lock/internal/settings"
	"github.com/eliteGoblin/focusd/app_lock/internal/usecase"
	"github.com/eliteGoblin/focusd/app_lock/internal/web"
)

const testPIN = "12345"

// scriptedForeground reports whatever process the test puts in front.
type scriptedForeground struct {
	mu sync.Mutex
	fp *domain.ForegroundProcess
}

func (s *scriptedForeground) Foreground(ctx context.Context) (*domain.ForegroundProcess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fp == nil {
		return nil, nil
	}
	cp := *s.fp
	return &cp, nil
}

func (s *scriptedForeground) focus(name string, pid int) {
	s.mu.Lock()
	s.fp = &domain.ForegroundProcess{Name: name, PID: pid}
	s.mu.Unlock()
}

// running is one daemon over the encrypted store in dataDir.
type running struct {
	app    *daemon.App
	db     *infra.EncryptedStore
	client *web.Client
	cancel context.CancelFunc
	done   chan error
}

func (r *running) stop() {
	r.client.Close()
	r.cancel()
	Eventually(r.done, 5*time.Second).Should(Receive(BeNil()))
	Expect(r.db.Close()).To(Succeed())
}

func testConfig(dataDir string) config.Config {
	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.Port = 0
	cfg.PollInterval = 10 * time.Millisecond
	cfg.SweepInterval = 50 * time.Millisecond
	cfg.ScheduleInterval = time.Hour
	cfg.LockdownInterval = 20 * time.Millisecond
	cfg.SettleDelay = 0
	cfg.ExecutableSuffix = ".exe"
	Expect(cfg.Validate()).To(Succeed())
	return cfg
}

func startDaemon(cfg config.Config, fg domain.ForegroundProvider, clk domain.Clock) *running {
	db, err := infra.OpenStore(cfg.DataDir)
	Expect(err).NotTo(HaveOccurred())

	procs := infra.NewProcessInspector(cfg.ExecutableSuffix)
	app := daemon.New(cfg, "integration", daemon.Deps{
		KV:         db,
		Events:     db,
		Foreground: fg,
		Processes:  procs,
		Runtime:    infra.NewRuntimeFile(cfg.Paths().RuntimePath, procs),
		Clock:      clk,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	rt := infra.NewRuntimeFile(cfg.Paths().RuntimePath, procs)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	info, err := daemon.WaitForRuntime(waitCtx, rt, 0, 10*time.Millisecond)
	Expect(err).NotTo(HaveOccurred())
	Expect(info.Addr).NotTo(BeEmpty())

	return &running{app: app, db: db, client: web.NewClient(info.Addr), cancel: cancel, done: done}
}

func onboard(dataDir string, unlock time.Duration, mutate func(s *settings.Store)) {
	db, err := infra.OpenStore(dataDir)
	Expect(err).NotTo(HaveOccurred())
	defer db.Close()
	s := settings.New(db)
	Expect(s.Onboard(testPIN, "master-pw", unlock)).To(Succeed())
	if mutate != nil {
		mutate(s)
	}
}

func statusOf(err error) int {
	var apiErr *web.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

var _ = Describe("Lock daemon", func() {
	var (
		dataDir string
		cfg     config.Config
		fg      *scriptedForeground
		clk     *clock.Fake
		d       *running
		ctx     context.Context
	)

	BeforeEach(func() {
		dataDir = GinkgoT().TempDir()
		cfg = testConfig(dataDir)
		fg = &scriptedForeground{}
		clk = clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local))
		ctx = context.Background()
	})

	AfterEach(func() {
		if d != nil {
			d.stop()
			d = nil
		}
	})

	Describe("locked application", func() {
		BeforeEach(func() {
			onboard(dataDir, time.Minute, func(s *settings.Store) {
				_, err := s.SetLockedApps([]domain.AppRef{{Name: "Notepad"}})
				Expect(err).NotTo(HaveOccurred())
			})
			d = startDaemon(cfg, fg, clk)
			Expect(d.client.StartMonitoring(ctx)).To(Succeed())
		})

		It("blocks, unlocks for the configured duration, then blocks again", func() {
			fg.focus("notepad.exe", 42)
			Eventually(func() domain.ChallengeKind { return d.app.Challenge().Kind }).
				Should(Equal(domain.ChallengeBlock))
			Expect(d.app.Challenge().Key).To(ContainSubstring("42"))

			Expect(d.client.VerifyPIN(ctx, testPIN)).To(Succeed())
			res, err := d.client.Unlock(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Key).To(ContainSubstring("42"))
			Expect(d.app.Challenge().Kind).To(Equal(domain.ChallengeNone))

			Consistently(func() domain.ChallengeKind { return d.app.Challenge().Kind }, 100*time.Millisecond).
				Should(Equal(domain.ChallengeNone))

			clk.Advance(time.Minute + time.Second)
			Eventually(func() domain.ChallengeKind { return d.app.Challenge().Kind }).
				Should(Equal(domain.ChallengeBlock))
		})

		It("does not carry an unlock over to a new instance", func() {
			fg.focus("notepad.exe", 42)
			Eventually(func() domain.ChallengeKind { return d.app.Challenge().Kind }).
				Should(Equal(domain.ChallengeBlock))
			_, err := d.client.Unlock(ctx, "")
			Expect(err).NotTo(HaveOccurred())

			fg.focus("notepad.exe", 43)
			Eventually(func() string { return d.app.Challenge().Key }).Should(ContainSubstring("43"))
		})

		It("writes the block to the encrypted event log", func() {
			fg.focus("notepad.exe", 42)
			Eventually(func() ([]domain.SecurityEvent, error) { return d.client.Events(ctx, 10) }).
				Should(ContainElement(HaveField("Type", domain.EventBlockShown)))
		})
	})

	Describe("blocked website", func() {
		BeforeEach(func() {
			onboard(dataDir, time.Minute, func(s *settings.Store) {
				_, err := s.SetBlockedWebsites([]string{"https://www.example.com/page"})
				Expect(err).NotTo(HaveOccurred())
			})
			d = startDaemon(cfg, fg, clk)
		})

		It("is not blocked while monitoring is off", func() {
			dec, err := d.app.Controller().ShouldBlock("example.com", "extension")
			Expect(err).NotTo(HaveOccurred())
			Expect(dec.Block).To(BeFalse())
			Expect(dec.Reason).To(Equal(usecase.ReasonMonitoringDisabled))
		})

		It("is blocked while monitoring and passes after a website unlock", func() {
			Expect(d.client.StartMonitoring(ctx)).To(Succeed())
			dec, err := d.app.Controller().ShouldBlock("example.com", "extension")
			Expect(err).NotTo(HaveOccurred())
			Expect(dec.Reason).To(Equal(usecase.ReasonBlocked))

			_, _, err = d.app.Controller().UnlockWebsite("example.com", "extension")
			Expect(err).NotTo(HaveOccurred())
			dec, err = d.app.Controller().ShouldBlock("www.example.com", "extension")
			Expect(err).NotTo(HaveOccurred())
			Expect(dec.Reason).To(Equal(usecase.ReasonTemporarilyUnlocked))
		})
	})

	Describe("security lockdown", func() {
		BeforeEach(func() {
			onboard(dataDir, time.Minute, nil)
			d = startDaemon(cfg, fg, clk)
			Expect(d.client.StartMonitoring(ctx)).To(Succeed())
		})

		It("locks after ten wrong PINs and survives a restart until recovered", func() {
			for i := 0; i < 9; i++ {
				Expect(statusOf(d.client.VerifyPIN(ctx, "00000"))).To(Equal(http.StatusUnauthorized))
			}
			sec, err := d.client.Security(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sec.RemainingAttempts).To(Equal(1))
			Expect(sec.IsInLockdown).To(BeFalse())

			Expect(statusOf(d.client.VerifyPIN(ctx, "00000"))).To(Equal(http.StatusLocked))
			Expect(statusOf(d.client.VerifyPIN(ctx, testPIN))).To(Equal(http.StatusLocked))
			Expect(d.app.Controller().IsMonitoring()).To(BeFalse())
			Expect(d.app.Challenge().Kind).To(Equal(domain.ChallengeLockdown))

			d.stop()
			d = startDaemon(cfg, fg, clk)
			Eventually(func() domain.ChallengeKind { return d.app.Challenge().Kind }).
				Should(Equal(domain.ChallengeLockdown))
			Expect(statusOf(d.client.StartMonitoring(ctx))).To(Equal(http.StatusLocked))

			Expect(statusOf(d.client.Recover(ctx, ""))).To(Equal(http.StatusForbidden))
			Expect(d.client.VerifyMaster(ctx, "master-pw")).To(Succeed())
			Expect(d.client.Recover(ctx, "54321")).To(Succeed())
			Expect(d.client.VerifyPIN(ctx, "54321")).To(Succeed())
			Expect(d.client.StartMonitoring(ctx)).To(Succeed())
		})
	})

	Describe("restart continuity", func() {
		It("resumes monitoring after a graceful restart", func() {
			onboard(dataDir, time.Minute, nil)
			d = startDaemon(cfg, fg, clk)
			Expect(d.client.StartMonitoring(ctx)).To(Succeed())
			Eventually(d.app.Controller().IsMonitoring).Should(BeTrue())

			d.stop()
			d = startDaemon(cfg, fg, clk)
			Eventually(d.app.Controller().IsMonitoring).Should(BeTrue())
		})

		It("resumes monitoring after a crash without a shutdown record", func() {
			onboard(dataDir, time.Minute, func(s *settings.Store) {
				Expect(s.SetWasMonitoringEnabled(true)).To(Succeed())
				Expect(s.SetLastAppSession(time.Now().Add(-time.Minute))).To(Succeed())
			})
			d = startDaemon(cfg, fg, clk)
			Eventually(d.app.Controller().IsMonitoring).Should(BeTrue())
		})

		It("stays stopped when auto-restart is disabled", func() {
			onboard(dataDir, time.Minute, func(s *settings.Store) {
				Expect(s.SetWasMonitoringEnabled(true)).To(Succeed())
				Expect(s.SetAutoRestartMonitoring(false)).To(Succeed())
			})
			d = startDaemon(cfg, fg, clk)
			Consistently(d.app.Controller().IsMonitoring, 100*time.Millisecond).Should(BeFalse())
		})
	})
})
