// Package main is the CLI entry point for applock.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/app_lock/internal/config"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "applock",
	Short: "App and website lock - PIN-gates distracting apps and sites",
	Long: `applock watches the focused desktop application and the sites a companion
browser extension visits. Blocked targets are gated behind a PIN; too many
wrong PINs put the system into a lockdown that only the master password clears.`,
	Version:      Version,
	SilenceUsage: true,
}

var (
	cfgFile    string
	jsonOutput bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.String("data-dir", "", "data directory (default ~/.applock, /var/lib/applock as root)")
	flags.String("host", "", "daemon listen host")
	flags.Int("port", 0, "daemon listen port")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&jsonOutput, "json", false, "machine-readable output")

	bindFlag(config.KeyDataDir, "data-dir")
	bindFlag(config.KeyHost, "host")
	bindFlag(config.KeyPort, "port")
	bindFlag(config.KeyLogLevel, "log-level")

	rootCmd.AddCommand(versionCmd)
}

// bindFlag binds a persistent flag to a config key. Unset flags leave the
// lower layers in charge.
func bindFlag(key, flag string) {
	_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
}

func loadConfig() (config.Config, error) {
	return config.Load(viper.GetViper(), cfgFile)
}

// createLogger builds the daemon logger writing to the data dir log file.
func createLogger(cfg config.Config) *zap.Logger {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		level = zap.NewAtomicLevel()
	}

	logPath := cfg.Paths().LogPath
	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.OutputPaths = []string{logPath}
	zc.ErrorOutputPaths = []string{logPath}
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if err := os.MkdirAll(cfg.DataDir, 0700); err == nil {
		if logger, err := zc.Build(); err == nil {
			return logger
		}
	}
	// Fallback to stderr if file logging fails
	logger, _ := zap.NewProduction()
	return logger
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			_ = printJSON(map[string]string{"version": Version, "commit": Commit, "build_time": BuildTime})
			return
		}
		fmt.Printf("applock %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
	},
}
