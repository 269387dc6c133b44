package domain

import (
	"context"
	"time"
)

// Clock supplies the current time. Tests inject a controllable clock.
type Clock interface {
	Now() time.Time
}

// KVStore is the persisted key/value configuration store.
// Implementation: SQLCipher encrypted SQLite database.
type KVStore interface {
	// Get returns the raw value for key; ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)

	// Set inserts or replaces the value for key.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// EventLog records security-relevant events.
type EventLog interface {
	// Append stores an event. ID and CreatedAt are filled in when empty.
	Append(event SecurityEvent) error

	// Recent returns up to limit events, newest first.
	Recent(limit int) ([]SecurityEvent, error)
}

// ForegroundProvider reports the process owning the focused window.
// Implementation: X11 _NET_ACTIVE_WINDOW + gopsutil.
type ForegroundProvider interface {
	// Foreground returns nil, nil when no foreground window is available.
	Foreground(ctx context.Context) (*ForegroundProcess, error)
}

// ProcessInspector answers questions about OS processes.
// Implementation: uses gopsutil for cross-platform support.
type ProcessInspector interface {
	// NameByPID returns the executable name of pid.
	NameByPID(ctx context.Context, pid int) (string, error)

	// RunningApps returns de-duplicated user application names.
	RunningApps(ctx context.Context) ([]string, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool
}

// Presenter is the presentation layer that draws block and lockdown screens.
type Presenter interface {
	// ShowBlock presents the PIN challenge for target.
	ShowBlock(target LockTarget)

	// HideBlock tears down any block challenge.
	HideBlock()

	// ShowLockdown presents the master-password recovery screen.
	ShowLockdown()

	// HideLockdown tears down the lockdown screen.
	HideLockdown()
}

// KeyProvider retrieves the encryption key for the settings database.
// Phase 1: FileKeyProvider reads from a local file.
type KeyProvider interface {
	// GetKey returns the 32-byte encryption key.
	GetKey() ([]byte, error)

	// StoreKey persists the encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been stored.
	KeyExists() bool
}

// RuntimeRegistry lets CLI invocations discover the running daemon.
type RuntimeRegistry interface {
	// Register records the running daemon.
	Register(info RuntimeInfo) error

	// Get returns the registered daemon, or nil when none is registered.
	Get() (*RuntimeInfo, error)

	// Clear removes the registration.
	Clear() error

	// Path returns the registry file path.
	Path() string
}
