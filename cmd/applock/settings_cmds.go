package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/infra"
	"github.com/eliteGoblin/focusd/app_lock/internal/policy"
	"github.com/eliteGoblin/focusd/app_lock/internal/settings"
)

// withStore opens the encrypted settings store of the configured data dir.
func withStore(fn func(s *settings.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := infra.OpenStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(settings.New(db))
}

var (
	setupPIN      string
	setupMaster   string
	setupDuration time.Duration
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Set the PIN, master password and unlock duration",
	Long: `Completes onboarding: stores the 5-digit PIN, the master password used to
recover from lockdown, and how long a correct PIN unlocks a target. Resets the
failed-attempt counter and any lockdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *settings.Store) error {
			if err := s.Onboard(setupPIN, setupMaster, setupDuration); err != nil {
				return err
			}
			fmt.Printf("Setup complete. Unlock duration: %s\n", setupDuration)
			return nil
		})
	},
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage locked applications",
}

var appsPath string

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List locked applications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *settings.Store) error {
			apps, err := s.LockedApps()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(apps)
			}
			tw := newTable("Name", "Path")
			for _, a := range apps {
				tw.AppendRow([]any{a.Name, a.Path})
			}
			tw.Render()
			return nil
		})
	},
}

var appsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Lock an application by process name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *settings.Store) error {
			apps, err := s.LockedApps()
			if err != nil {
				return err
			}
			apps, err = s.SetLockedApps(append(apps, domain.AppRef{Name: args[0], Path: appsPath}))
			if err != nil {
				return err
			}
			fmt.Printf("Locked %s (%d apps locked)\n", args[0], len(apps))
			return nil
		})
	},
}

var appsRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Unlock an application permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *settings.Store) error {
			apps, err := s.LockedApps()
			if err != nil {
				return err
			}
			target := domain.NormalizeAppName(args[0])
			kept := apps[:0]
			for _, a := range apps {
				if domain.NormalizeAppName(a.Name) != target {
					kept = append(kept, a)
				}
			}
			if len(kept) == len(apps) {
				return fmt.Errorf("%s is not locked", args[0])
			}
			if _, err := s.SetLockedApps(kept); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", args[0])
			return nil
		})
	},
}

var appsRunningCmd = &cobra.Command{
	Use:   "running",
	Short: "List running applications that can be locked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		names, err := infra.NewProcessInspector(cfg.ExecutableSuffix).RunningApps(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(names)
		}
		tw := newTable("Application")
		for _, n := range names {
			tw.AppendRow([]any{n})
		}
		tw.Render()
		return nil
	},
}

var appsPresetCmd = &cobra.Command{
	Use:   "preset [id]",
	Short: "List built-in app presets, or lock every process of one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := policy.NewRegistry()
		if len(args) == 0 {
			if jsonOutput {
				return printJSON(registry.List())
			}
			tw := newTable("ID", "Name", "Processes")
			for _, p := range registry.GetAll() {
				tw.AppendRow([]any{p.ID(), p.Name(), strings.Join(p.ProcessPatterns(), ", ")})
			}
			tw.Render()
			return nil
		}

		p, err := registry.Get(args[0])
		if err != nil {
			return err
		}
		return withStore(func(s *settings.Store) error {
			apps, err := s.LockedApps()
			if err != nil {
				return err
			}
			apps, err = s.SetLockedApps(policy.Apply(apps, p))
			if err != nil {
				return err
			}
			fmt.Printf("Locked %s (%d apps locked)\n", p.Name(), len(apps))
			return nil
		})
	},
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Manage blocked websites",
}

var sitesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blocked websites",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *settings.Store) error {
			sites, err := s.BlockedWebsites()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(sites)
			}
			tw := newTable("Site")
			for _, site := range sites {
				tw.AppendRow([]any{site})
			}
			tw.Render()
			return nil
		})
	},
}

var sitesAddCmd = &cobra.Command{
	Use:   "add <site>...",
	Short: "Block websites (scheme, path and www. are stripped)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *settings.Store) error {
			sites, err := s.BlockedWebsites()
			if err != nil {
				return err
			}
			sites, err = s.SetBlockedWebsites(append(sites, args...))
			if err != nil {
				return err
			}
			fmt.Printf("%d sites blocked\n", len(sites))
			return nil
		})
	},
}

var sitesRemoveCmd = &cobra.Command{
	Use:   "remove <site>",
	Short: "Unblock a website",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *settings.Store) error {
			sites, err := s.BlockedWebsites()
			if err != nil {
				return err
			}
			target := domain.NormalizeSite(args[0])
			var kept []string
			for _, site := range sites {
				if site != target {
					kept = append(kept, site)
				}
			}
			if len(kept) == len(sites) {
				return fmt.Errorf("%s is not blocked", target)
			}
			if _, err := s.SetBlockedWebsites(kept); err != nil {
				return err
			}
			fmt.Printf("Unblocked %s\n", target)
			return nil
		})
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show or change the monitoring schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *settings.Store) error {
			sch, err := s.Schedule()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(sch)
			}
			printKV("Schedule", [][2]any{
				{"Enabled", yesNo(sch.Enabled)},
				{"Window", sch.StartTime + "-" + sch.EndTime},
				{"Days", formatDays(sch.Days)},
				{"Auto-start", yesNo(sch.AutoStart)},
			})
			return nil
		})
	},
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the schedule; unset flags keep their value",
	Example: `  applock schedule set --enabled --start 09:00 --end 17:00 --days 1,2,3,4,5 --auto-start
  applock schedule set --start 22:00 --end 06:00   # overnight window`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *settings.Store) error {
			sch, err := s.Schedule()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("enabled") {
				sch.Enabled, _ = flags.GetBool("enabled")
			}
			if flags.Changed("auto-start") {
				sch.AutoStart, _ = flags.GetBool("auto-start")
			}
			if flags.Changed("start") {
				sch.StartTime, _ = flags.GetString("start")
			}
			if flags.Changed("end") {
				sch.EndTime, _ = flags.GetString("end")
			}
			if flags.Changed("days") {
				raw, _ := flags.GetString("days")
				if sch.Days, err = parseDays(raw); err != nil {
					return err
				}
			}
			if err := s.SetSchedule(sch); err != nil {
				return err
			}
			fmt.Println("Schedule updated")
			return nil
		})
	},
}

// parseDays parses a comma-separated list of weekday numbers (0 = Sunday).
func parseDays(raw string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid day %q: %w", part, err)
		}
		days = append(days, d)
	}
	return days, nil
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show, export or import settings (secrets are never exported)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *settings.Store) error {
			v, err := s.View()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(v)
			}
			printKV("Settings", [][2]any{
				{"PIN configured", yesNo(v.PINConfigured)},
				{"Master password configured", yesNo(v.MasterPasswordConfigured)},
				{"Unlock duration", time.Duration(v.UnlockDurationMs) * time.Millisecond},
				{"Locked apps", len(v.LockedApps)},
				{"Blocked sites", len(v.BlockedWebsites)},
				{"Schedule enabled", yesNo(v.Schedule.Enabled)},
				{"Auto-restart monitoring", yesNo(v.AutoRestartMonitoring)},
			})
			return nil
		})
	},
}

var settingsFile string

var settingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write settings as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *settings.Store) error {
			v, err := s.View()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(v)
			if err != nil {
				return fmt.Errorf("failed to encode settings: %w", err)
			}
			if settingsFile == "" {
				_, err = os.Stdout.Write(out)
				return err
			}
			return os.WriteFile(settingsFile, out, 0600)
		})
	},
}

var settingsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Apply settings from YAML (stdin when --file is not set)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw []byte
		var err error
		if settingsFile == "" {
			raw, err = io.ReadAll(os.Stdin)
		} else {
			raw, err = os.ReadFile(settingsFile)
		}
		if err != nil {
			return fmt.Errorf("failed to read settings: %w", err)
		}
		var v settings.View
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("failed to decode settings: %w", err)
		}
		return withStore(func(s *settings.Store) error {
			if err := s.Apply(settings.PatchFromView(v)); err != nil {
				return err
			}
			fmt.Println("Settings imported")
			return nil
		})
	},
}

func init() {
	setupCmd.Flags().StringVar(&setupPIN, "pin", "", "5-digit PIN")
	setupCmd.Flags().StringVar(&setupMaster, "master", "", "master password (at least 6 characters, differs from the PIN)")
	setupCmd.Flags().DurationVar(&setupDuration, "unlock-duration", 5*time.Minute, "how long a correct PIN unlocks a target")
	_ = setupCmd.MarkFlagRequired("pin")
	_ = setupCmd.MarkFlagRequired("master")

	appsAddCmd.Flags().StringVar(&appsPath, "path", "", "executable path, informational")
	appsCmd.AddCommand(appsListCmd, appsAddCmd, appsRemoveCmd, appsRunningCmd, appsPresetCmd)

	sitesCmd.AddCommand(sitesListCmd, sitesAddCmd, sitesRemoveCmd)

	scheduleSetCmd.Flags().Bool("enabled", false, "enable the schedule")
	scheduleSetCmd.Flags().Bool("auto-start", false, "start monitoring when the window opens")
	scheduleSetCmd.Flags().String("start", "", "window start, HH:MM")
	scheduleSetCmd.Flags().String("end", "", "window end, HH:MM")
	scheduleSetCmd.Flags().String("days", "", "comma-separated weekdays, 0 = Sunday")
	scheduleCmd.AddCommand(scheduleSetCmd)

	settingsExportCmd.Flags().StringVar(&settingsFile, "file", "", "output file (default stdout)")
	settingsImportCmd.Flags().StringVar(&settingsFile, "file", "", "input file (default stdin)")
	settingsCmd.AddCommand(settingsExportCmd, settingsImportCmd)

	rootCmd.AddCommand(setupCmd, appsCmd, sitesCmd, scheduleCmd, settingsCmd)
}
