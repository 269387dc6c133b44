// Package config loads the daemon runtime configuration from defaults, an
// optional YAML file, APPLOCK_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/app_lock/internal/continuity"
	"github.com/eliteGoblin/focusd/app_lock/internal/infra"
	"github.com/eliteGoblin/focusd/app_lock/internal/monitor"
	"github.com/eliteGoblin/focusd/app_lock/internal/web"
)

// EnvPrefix prefixes every environment override, e.g. APPLOCK_PORT.
const EnvPrefix = "APPLOCK"

// Config keys, shared by the YAML file, environment and flag bindings.
const (
	KeyHost             = "host"
	KeyPort             = "port"
	KeyDataDir          = "data_dir"
	KeyLogLevel         = "log_level"
	KeyPollInterval     = "poll_interval"
	KeySweepInterval    = "sweep_interval"
	KeyScheduleInterval = "schedule_interval"
	KeyLockdownInterval = "lockdown_interval"
	KeyQueryTimeout     = "query_timeout"
	KeySettleDelay      = "settle_delay"
	KeyExecutableSuffix = "executable_suffix"
	KeyPINRateLimit     = "pin_rate_limit"
	KeyAllowedOrigins   = "allowed_origins"
)

// Config holds daemon runtime configuration.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`

	PollInterval     time.Duration `mapstructure:"poll_interval"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	ScheduleInterval time.Duration `mapstructure:"schedule_interval"`
	LockdownInterval time.Duration `mapstructure:"lockdown_interval"`
	QueryTimeout     time.Duration `mapstructure:"query_timeout"`
	SettleDelay      time.Duration `mapstructure:"settle_delay"`

	ExecutableSuffix string `mapstructure:"executable_suffix"`
	PINRateLimit     int    `mapstructure:"pin_rate_limit"`

	// AllowedOrigins lists browser origins accepted by the extension routes.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Default returns the built-in configuration.
func Default() Config {
	mon := monitor.DefaultConfig()
	webCfg := web.DefaultConfig()
	return Config{
		Host:             webCfg.Host,
		Port:             webCfg.Port,
		DataDir:          infra.DetectPaths().DataDir,
		LogLevel:         "info",
		PollInterval:     mon.PollInterval,
		SweepInterval:    60 * time.Second,
		ScheduleInterval: 60 * time.Second,
		LockdownInterval: 30 * time.Second,
		QueryTimeout:     mon.QueryTimeout,
		SettleDelay:      continuity.DefaultSettleDelay,
		ExecutableSuffix: mon.ExecutableSuffix,
		PINRateLimit:     webCfg.PINRateLimit,
		AllowedOrigins:   webCfg.AllowedOrigins,
	}
}

// SetDefaults registers Default() on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyHost, d.Host)
	v.SetDefault(KeyPort, d.Port)
	v.SetDefault(KeyDataDir, d.DataDir)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyPollInterval, d.PollInterval)
	v.SetDefault(KeySweepInterval, d.SweepInterval)
	v.SetDefault(KeyScheduleInterval, d.ScheduleInterval)
	v.SetDefault(KeyLockdownInterval, d.LockdownInterval)
	v.SetDefault(KeyQueryTimeout, d.QueryTimeout)
	v.SetDefault(KeySettleDelay, d.SettleDelay)
	v.SetDefault(KeyExecutableSuffix, d.ExecutableSuffix)
	v.SetDefault(KeyPINRateLimit, d.PINRateLimit)
	v.SetDefault(KeyAllowedOrigins, d.AllowedOrigins)
}

// Load reads configuration into a Config. file may be empty. Flags must be
// bound on v by the caller before Load.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate range-checks every field.
func (c Config) Validate() error {
	var errs []error
	if net.ParseIP(c.Host) == nil && c.Host != "localhost" {
		errs = append(errs, fmt.Errorf("host %q is not an IP address", c.Host))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must be set"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{KeyPollInterval, c.PollInterval},
		{KeySweepInterval, c.SweepInterval},
		{KeyScheduleInterval, c.ScheduleInterval},
		{KeyLockdownInterval, c.LockdownInterval},
		{KeyQueryTimeout, c.QueryTimeout},
	} {
		if d.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.v))
		}
	}
	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeySettleDelay))
	}
	if c.PINRateLimit <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyPINRateLimit))
	}
	for _, o := range c.AllowedOrigins {
		if !strings.Contains(o, "://") {
			errs = append(errs, fmt.Errorf("%s: %q is not an origin", KeyAllowedOrigins, o))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Paths returns the on-disk locations under DataDir.
func (c Config) Paths() infra.Paths {
	return infra.PathsFor(infra.DetectPaths().Mode, c.DataDir)
}

// Monitor returns the foreground monitor settings.
func (c Config) Monitor() monitor.Config {
	return monitor.Config{
		PollInterval:     c.PollInterval,
		QueryTimeout:     c.QueryTimeout,
		ExecutableSuffix: c.ExecutableSuffix,
	}
}

// Web returns the HTTP server settings.
func (c Config) Web(version string) web.Config {
	w := web.DefaultConfig()
	w.Host = c.Host
	w.Port = c.Port
	w.Version = version
	w.PINRateLimit = c.PINRateLimit
	w.AllowedOrigins = c.AllowedOrigins
	return w
}
