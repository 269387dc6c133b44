package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/app_lock/internal/web"
)

// withClient connects to the running daemon, falling back to the configured
// address when no runtime file is registered.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *web.Client) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := cfg.Addr()
	if live, _ := runtimeFile(cfg).Live(); live != nil && live.Addr != "" {
		addr = live.Addr
	}
	client := web.NewClient(addr)
	defer client.Close()

	err = fn(cmd.Context(), client)
	var apiErr *web.APIError
	if errors.As(err, &apiErr) {
		return errors.New(apiErr.Message)
	}
	return err
}

var monitoringCmd = &cobra.Command{
	Use:   "monitoring",
	Short: "Start or stop foreground monitoring",
}

var monitoringStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start monitoring",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *web.Client) error {
			if err := c.StartMonitoring(ctx); err != nil {
				return err
			}
			fmt.Println("Monitoring started")
			return nil
		})
	},
}

var monitoringStopCmd = &cobra.Command{
	Use:   "stop <pin>",
	Short: "Stop monitoring (requires the PIN)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *web.Client) error {
			if err := c.StopMonitoring(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println("Monitoring stopped")
			return nil
		})
	},
}

var verifyPINCmd = &cobra.Command{
	Use:   "verify-pin <pin>",
	Short: "Check a PIN; failures count toward lockdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *web.Client) error {
			if err := c.VerifyPIN(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println("PIN correct")
			return nil
		})
	},
}

var masterCmd = &cobra.Command{
	Use:   "master <password>",
	Short: "Verify the master password to allow lockdown recovery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *web.Client) error {
			if err := c.VerifyMaster(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println("Master password verified; run 'applock recover' to leave lockdown")
			return nil
		})
	},
}

var recoverNewPIN string

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Leave lockdown after 'applock master', optionally setting a new PIN",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *web.Client) error {
			if err := c.Recover(ctx, recoverNewPIN); err != nil {
				return err
			}
			fmt.Println("Lockdown cleared")
			return nil
		})
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock [name]",
	Short: "Temporarily unlock the currently blocked app",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		return withClient(cmd, func(ctx context.Context, c *web.Client) error {
			res, err := c.Unlock(ctx, name)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(res)
			}
			fmt.Printf("Unlocked %s until %s\n", res.Key, time.UnixMilli(res.Expiry).Local().Format(time.Kitchen))
			return nil
		})
	},
}

var closeBlockCmd = &cobra.Command{
	Use:   "close-block",
	Short: "Dismiss the block screen without unlocking",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *web.Client) error {
			return c.CloseBlock(ctx)
		})
	},
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Show monitor internals and temporary unlocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *web.Client) error {
			info, err := c.Debug(ctx)
			if err != nil {
				return err
			}
			challenge, err := c.Challenge(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(map[string]any{"debug": info, "challenge": challenge})
			}

			target := "-"
			if info.CurrentLockedTarget != nil {
				target = info.CurrentLockedTarget.Key
			}
			last := "-"
			if info.LastForeground != nil {
				last = *info.LastForeground
			}
			printKV("Monitor", [][2]any{
				{"Monitoring", yesNo(info.IsMonitoring)},
				{"Session", info.SessionID},
				{"Locked target", target},
				{"Block shown", yesNo(info.HasBlockPresentation)},
				{"Challenge", challenge.Kind},
				{"Last foreground", last},
				{"Tasks", fmt.Sprint(info.Tasks)},
			})

			tw := newTable("Unlock key", "Expiry", "Remaining", "Active")
			for _, u := range info.TemporaryUnlocks {
				tw.AppendRow([]any{u.Key, u.Expiry.Local().Format(time.RFC3339),
					(time.Duration(u.RemainingMs) * time.Millisecond).Round(time.Second), yesNo(u.Active)})
			}
			tw.Render()
			return nil
		})
	},
}

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent security events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *web.Client) error {
			events, err := c.Events(ctx, eventsLimit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(events)
			}
			tw := newTable("Time", "Type", "Target", "Detail")
			for _, ev := range events {
				tw.AppendRow([]any{ev.CreatedAt.Local().Format(time.RFC3339), ev.Type, ev.Target, ev.Detail})
			}
			tw.Render()
			return nil
		})
	},
}

func init() {
	monitoringCmd.AddCommand(monitoringStartCmd, monitoringStopCmd)
	recoverCmd.Flags().StringVar(&recoverNewPIN, "new-pin", "", "replace the PIN while recovering")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "number of events")

	rootCmd.AddCommand(monitoringCmd, verifyPINCmd, masterCmd, recoverCmd, unlockCmd, closeBlockCmd, debugCmd, eventsCmd)
}
