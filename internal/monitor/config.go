// Package monitor implements the foreground monitoring service: the poll loop
// that matches the focused process against the locked-app list and decides
// when to present a block challenge.
package monitor

import (
	"runtime"
	"time"
)

// Config holds monitoring service configuration.
type Config struct {
	PollInterval time.Duration // How often to query the foreground process (default 1s)
	QueryTimeout time.Duration // Upper bound on one foreground query (default 1.5s)

	// ExecutableSuffix is stripped from both sides when matching locked app
	// names, so "notepad" and "notepad.exe" match each other.
	ExecutableSuffix string
}

// DefaultConfig returns default monitoring configuration.
func DefaultConfig() Config {
	cfg := Config{
		PollInterval: time.Second,
		QueryTimeout: 1500 * time.Millisecond,
	}
	if runtime.GOOS == "windows" {
		cfg.ExecutableSuffix = ".exe"
	}
	return cfg
}
