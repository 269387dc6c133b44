package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/config"
	"github.com/eliteGoblin/focusd/app_lock/internal/daemon"
	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/infra"
	"github.com/eliteGoblin/focusd/app_lock/internal/web"
)

var runCmd = &cobra.Command{
	Use:   daemon.RunCommand,
	Short: "Run the daemon in the foreground",
	Long: `Runs the lock daemon in the foreground: the local HTTP endpoint used by the
browser extension and the control commands, the schedule and lockdown checks,
and the foreground monitor when monitoring is on. Stops on SIGINT/SIGTERM.`,
	RunE: runDaemon,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon, monitoring and security status",
	RunE:  runStatus,
}

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Manage the systemd unit that starts the daemon at login",
}

var autostartInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and enable the systemd unit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		m := infra.NewAutostartManager(cfg.Paths())
		if m.IsInstalled() && !m.NeedsUpdate(execPath) {
			fmt.Printf("Autostart already installed: %s\n", m.Path())
			return nil
		}
		if err := m.Install(execPath); err != nil {
			return err
		}
		fmt.Printf("Installed %s (%s)\n", m.Path(), cfg.Paths().Mode)
		return nil
	},
}

var autostartRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Disable and remove the systemd unit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m := infra.NewAutostartManager(cfg.Paths())
		if err := m.Uninstall(); err != nil {
			return err
		}
		fmt.Println("Autostart removed")
		return nil
	},
}

func init() {
	autostartCmd.AddCommand(autostartInstallCmd, autostartRemoveCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(autostartCmd)
}

func runtimeFile(cfg config.Config) *infra.RuntimeFile {
	return infra.NewRuntimeFile(cfg.Paths().RuntimePath, infra.NewProcessInspector(cfg.ExecutableSuffix))
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if live, _ := runtimeFile(cfg).Live(); live != nil && live.PID != os.Getpid() {
		return fmt.Errorf("applock is already running (pid %d)", live.PID)
	}

	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	app, err := daemon.Open(cfg, Version, logger)
	if err != nil {
		logger.Error("failed to open daemon", zap.Error(err))
		return err
	}
	defer app.Close()

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt := runtimeFile(cfg)
	if live, _ := rt.Live(); live != nil {
		fmt.Printf("applock is already running (pid %d, %s)\n", live.PID, live.Addr)
		return nil
	}

	// Forward the flags the user set so the child resolves the same config.
	var childArgs []string
	if cfgFile != "" {
		childArgs = append(childArgs, "--config", cfgFile)
	}
	for _, name := range []string{"data-dir", "host", "port", "log-level"} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			childArgs = append(childArgs, "--"+name, f.Value.String())
		}
	}

	pid, err := daemon.StartDaemon("", childArgs...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	info, err := daemon.WaitForRuntime(ctx, rt, pid, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("daemon started (pid %d) but did not come up; see %s: %w", pid, cfg.Paths().LogPath, err)
	}

	if jsonOutput {
		return printJSON(info)
	}
	addr := info.Addr
	if addr == "" {
		addr = "unavailable (port in use?)"
	}
	printKV("applock started", [][2]any{
		{"PID", info.PID},
		{"Endpoint", addr},
		{"Data dir", cfg.DataDir},
		{"Log", cfg.Paths().LogPath},
	})
	return nil
}

type statusReport struct {
	Running  bool                   `json:"running"`
	Runtime  *domain.RuntimeInfo    `json:"runtime,omitempty"`
	Status   *web.StatusResponse    `json:"status,omitempty"`
	Security *securityReport        `json:"security,omitempty"`
	Schedule *domain.ScheduleConfig `json:"schedule,omitempty"`
}

type securityReport struct {
	InLockdown        bool       `json:"isInLockdown"`
	RemainingAttempts int        `json:"remainingAttempts"`
	LastLockdownTime  *time.Time `json:"lastLockdownTime"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	report := statusReport{}
	report.Runtime, _ = runtimeFile(cfg).Live()
	report.Running = report.Runtime != nil

	if report.Running && report.Runtime.Addr != "" {
		client := web.NewClient(report.Runtime.Addr)
		defer client.Close()
		ctx := cmd.Context()
		if st, err := client.Status(ctx); err == nil {
			report.Status = &st
		}
		if sec, err := client.Security(ctx); err == nil {
			report.Security = &securityReport{
				InLockdown:        sec.IsInLockdown,
				RemainingAttempts: sec.RemainingAttempts,
				LastLockdownTime:  sec.LastLockdownTime,
			}
		}
		if sch, err := client.Schedule(ctx); err == nil {
			report.Schedule = &sch.ScheduleConfig
		}
	}

	if jsonOutput {
		return printJSON(report)
	}
	if !report.Running {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'applock start' to start the daemon.")
		return nil
	}

	rows := [][2]any{
		{"Status", "RUNNING"},
		{"PID", report.Runtime.PID},
		{"Started", formatTime(&report.Runtime.StartedAt)},
		{"Endpoint", report.Runtime.Addr},
	}
	if report.Status != nil {
		rows = append(rows, [2]any{"Monitoring", yesNo(report.Status.Monitoring)})
	}
	if report.Security != nil {
		rows = append(rows,
			[2]any{"Lockdown", yesNo(report.Security.InLockdown)},
			[2]any{"PIN attempts left", report.Security.RemainingAttempts},
			[2]any{"Last lockdown", formatTime(report.Security.LastLockdownTime)})
	}
	if report.Schedule != nil && report.Schedule.Enabled {
		rows = append(rows, [2]any{"Schedule", fmt.Sprintf("%s-%s %s (auto-start %s)",
			report.Schedule.StartTime, report.Schedule.EndTime, formatDays(report.Schedule.Days), yesNo(report.Schedule.AutoStart))})
	}
	printKV("applock", rows)
	return nil
}
