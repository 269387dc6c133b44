// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// TargetKind discriminates the LockTarget variants.
type TargetKind string

const (
	KindApp     TargetKind = "app"
	KindWebsite TargetKind = "website"
)

// WebsiteKeyPrefix prefixes website keys in the temporary-unlock registry.
const WebsiteKeyPrefix = "website:"

// LockTarget is something that can be blocked: an application instance or a website.
type LockTarget struct {
	Kind TargetKind `json:"kind"`
	Name string     `json:"name"`          // normalized app name or hostname
	PID  int        `json:"pid,omitempty"` // app only, 0 when unknown
	key  string
}

// AppTarget builds an App target tracked under the given process key.
func AppTarget(name string, pid int, processKey string) LockTarget {
	return LockTarget{Kind: KindApp, Name: name, PID: pid, key: processKey}
}

// WebsiteTarget builds a Website target for an already normalized hostname.
func WebsiteTarget(host string) LockTarget {
	return LockTarget{Kind: KindWebsite, Name: host, key: WebsiteKey(host)}
}

// Key returns the identity under which unlocks and block presentations are tracked.
func (t LockTarget) Key() string {
	if t.key != "" {
		return t.key
	}
	if t.Kind == KindWebsite {
		return WebsiteKey(t.Name)
	}
	return t.Name
}

// IsZero reports whether t is the empty target.
func (t LockTarget) IsZero() bool {
	return t.Kind == "" && t.Name == ""
}

// WebsiteKey returns the unlock registry key for a website.
func WebsiteKey(site string) string {
	return WebsiteKeyPrefix + site
}

// ProcessKey returns name-pid, or name-<unix ms> when the pid is unknown.
// Two unidentified instances observed in the same millisecond collide.
func ProcessKey(name string, pid int, now time.Time) string {
	if pid > 0 {
		return name + "-" + strconv.Itoa(pid)
	}
	return name + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// NormalizeAppName lowercases and trims an application name.
func NormalizeAppName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeSite reduces a URL or hostname to a bare lowercase host without
// scheme, path, port or leading "www.".
func NormalizeSite(site string) string {
	s := strings.ToLower(strings.TrimSpace(site))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimSuffix(s, ".")
}

// AppRef is an entry of the locked application list.
type AppRef struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ForegroundProcess is one observation of the focused desktop process.
type ForegroundProcess struct {
	Name       string
	PID        int
	ObservedAt time.Time
}

// TemporaryUnlock is a time-boxed exemption from blocking for one key.
type TemporaryUnlock struct {
	Key      string            `json:"key"`
	Expiry   time.Time         `json:"expiry"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SecurityState is the persisted PIN attempt and lockdown state.
type SecurityState struct {
	PinAttempts      int        `json:"pinAttempts"`
	IsInLockdown     bool       `json:"isInLockdown"`
	LastLockdownTime *time.Time `json:"lastLockdownTime"`
}

// ScheduleConfig is the weekly window during which monitoring auto-activates.
// Days uses time.Weekday numbering (0 = Sunday).
type ScheduleConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	StartTime string `json:"startTime" yaml:"startTime"`
	EndTime   string `json:"endTime" yaml:"endTime"`
	Days      []int  `json:"days" yaml:"days"`
	AutoStart bool   `json:"autoStart" yaml:"autoStart"`
}

// ContinuitySnapshot is the persisted intent used to resume monitoring after a restart.
type ContinuitySnapshot struct {
	WasMonitoringEnabled  bool       `json:"wasMonitoringEnabled"`
	LastAppSession        time.Time  `json:"lastAppSession"`
	LastShutdownTime      *time.Time `json:"lastShutdownTime"`
	AutoRestartMonitoring bool       `json:"autoRestartMonitoring"`
}

// SecurityEventType names an entry of the security event log.
type SecurityEventType string

const (
	EventPINFailed         SecurityEventType = "pin_failed"
	EventLockdownActivated SecurityEventType = "lockdown_activated"
	EventLockdownRecovered SecurityEventType = "lockdown_recovered"
	EventMasterFailed      SecurityEventType = "master_failed"
	EventBlockShown        SecurityEventType = "block_shown"
	EventUnlockGranted     SecurityEventType = "unlock_granted"
	EventMonitoringStarted SecurityEventType = "monitoring_started"
	EventMonitoringStopped SecurityEventType = "monitoring_stopped"
)

// SecurityEvent is one row of the security event log.
type SecurityEvent struct {
	ID        string            `json:"id"`
	Type      SecurityEventType `json:"type"`
	Target    string            `json:"target,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// RuntimeInfo describes the running daemon for CLI discovery.
type RuntimeInfo struct {
	PID        int       `json:"pid"`
	Addr       string    `json:"addr"`
	StartedAt  time.Time `json:"started_at"`
	AppVersion string    `json:"app_version,omitempty"`
}

// ChallengeKind names what the presentation layer currently shows.
type ChallengeKind string

const (
	ChallengeNone     ChallengeKind = "none"
	ChallengeBlock    ChallengeKind = "block"
	ChallengeLockdown ChallengeKind = "lockdown"
)

// ChallengeState is the presentation currently requested from the UI.
type ChallengeState struct {
	Kind       ChallengeKind `json:"kind"`
	TargetKind TargetKind    `json:"targetKind,omitempty"`
	Name       string        `json:"name,omitempty"`
	Key        string        `json:"processKey,omitempty"`
	Since      time.Time     `json:"since"`
}
