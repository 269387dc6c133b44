// Package settings provides typed, validated access to persisted configuration.
package settings

// Persisted configuration keys.
const (
	KeyPIN                   = "pin"
	KeyMasterPassword        = "masterPassword"
	KeyUnlockDuration        = "unlockDuration"
	KeyLockedApps            = "lockedApps"
	KeyBlockedWebsites       = "blockedWebsites"
	KeyPinAttempts           = "pinAttempts"
	KeyIsInSecurityLockdown  = "isInSecurityLockdown"
	KeyLastLockdownTime      = "lastLockdownTime"
	KeyScheduleEnabled       = "scheduledMonitoringEnabled"
	KeyScheduleStartTime     = "scheduleStartTime"
	KeyScheduleEndTime       = "scheduleEndTime"
	KeyScheduleDays          = "scheduleDays"
	KeyAutoStartScheduled    = "autoStartScheduledMonitoring"
	KeyAutoRestartMonitoring = "autoRestartMonitoring"
	KeyWasMonitoringEnabled  = "wasMonitoringEnabled"
	KeyLastAppSession        = "lastAppSession"
	KeyLastShutdownTime      = "lastShutdownTime"
	KeyOnboardingComplete    = "isOnboardingComplete"
)

// Defaults for keys that have one. Secrets and the unlock duration have none
// and fail closed when unset.
const (
	DefaultScheduleStart = "09:00"
	DefaultScheduleEnd   = "17:00"
)

// DefaultScheduleDays is Monday through Friday.
var DefaultScheduleDays = []int{1, 2, 3, 4, 5}
