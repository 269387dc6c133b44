package domain

import "errors"

var (
	// ErrLockdown is returned by operations refused while the security lockdown is active.
	ErrLockdown = errors.New("system is in security lockdown, use master password to recover")

	// ErrPINNotConfigured is returned when no PIN has been set up.
	ErrPINNotConfigured = errors.New("PIN not configured, please complete onboarding")

	// ErrMasterNotConfigured is returned when no master password has been set up.
	ErrMasterNotConfigured = errors.New("master password not configured")

	// ErrUnlockDurationNotConfigured is returned when the unlock duration is unset.
	ErrUnlockDurationNotConfigured = errors.New("unlock duration not configured")

	ErrMasterNotVerified = errors.New("master password has not been verified")
	ErrNotInLockdown     = errors.New("system is not in security lockdown")
	ErrIncorrectPIN      = errors.New("incorrect PIN")
	ErrIncorrectMaster   = errors.New("incorrect master password")

	ErrInvalidPIN            = errors.New("PIN must be exactly 5 digits")
	ErrInvalidMasterPassword = errors.New("master password must be at least 6 characters and differ from the PIN")
	ErrInvalidDuration       = errors.New("unlock duration must be positive")
	ErrInvalidSchedule       = errors.New("invalid schedule")
	ErrInvalidSite           = errors.New("invalid site")
	ErrNoLockedTarget        = errors.New("no locked target to unlock")
)
