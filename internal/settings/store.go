package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// Store reads and writes typed settings on top of a domain.KVStore.
// Values are JSON encoded; timestamps are unix milliseconds.
type Store struct {
	kv domain.KVStore
}

// New creates a Store over kv.
func New(kv domain.KVStore) *Store {
	return &Store{kv: kv}
}

func (s *Store) get(key string, dst any) (bool, error) {
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.kv.Set(key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) getBool(key string, def bool) (bool, error) {
	v := def
	if _, err := s.get(key, &v); err != nil {
		return def, err
	}
	return v, nil
}

func (s *Store) getTime(key string) (*time.Time, error) {
	var ms *int64
	if _, err := s.get(key, &ms); err != nil {
		return nil, err
	}
	if ms == nil {
		return nil, nil
	}
	t := time.UnixMilli(*ms)
	return &t, nil
}

func (s *Store) setTime(key string, t *time.Time) error {
	if t == nil {
		return s.set(key, nil)
	}
	return s.set(key, t.UnixMilli())
}

// --- secrets ---

// PIN returns the configured PIN or domain.ErrPINNotConfigured.
func (s *Store) PIN() (string, error) {
	var pin string
	ok, err := s.get(KeyPIN, &pin)
	if err != nil {
		return "", err
	}
	if !ok || pin == "" {
		return "", domain.ErrPINNotConfigured
	}
	return pin, nil
}

// SetPIN validates and stores a new PIN.
func (s *Store) SetPIN(pin string) error {
	if err := ValidatePIN(pin); err != nil {
		return err
	}
	if master, err := s.MasterPassword(); err == nil && master == pin {
		return domain.ErrInvalidMasterPassword
	}
	return s.set(KeyPIN, pin)
}

// MasterPassword returns the configured master password or domain.ErrMasterNotConfigured.
func (s *Store) MasterPassword() (string, error) {
	var pw string
	ok, err := s.get(KeyMasterPassword, &pw)
	if err != nil {
		return "", err
	}
	if !ok || pw == "" {
		return "", domain.ErrMasterNotConfigured
	}
	return pw, nil
}

// SetMasterPassword validates and stores the master password.
func (s *Store) SetMasterPassword(password string) error {
	pin, err := s.PIN()
	if err != nil && !errors.Is(err, domain.ErrPINNotConfigured) {
		return err
	}
	if err := ValidateMasterPassword(password, pin); err != nil {
		return err
	}
	return s.set(KeyMasterPassword, password)
}

// Onboard stores the PIN, master password and unlock duration together and
// resets the security state.
func (s *Store) Onboard(pin, master string, unlock time.Duration) error {
	if err := ValidatePIN(pin); err != nil {
		return err
	}
	if err := ValidateMasterPassword(master, pin); err != nil {
		return err
	}
	if unlock <= 0 {
		return domain.ErrInvalidDuration
	}
	if err := s.set(KeyPIN, pin); err != nil {
		return err
	}
	if err := s.set(KeyMasterPassword, master); err != nil {
		return err
	}
	if err := s.SetUnlockDuration(unlock); err != nil {
		return err
	}
	if err := s.SaveSecurityState(domain.SecurityState{}); err != nil {
		return err
	}
	return s.set(KeyOnboardingComplete, true)
}

// OnboardingComplete reports whether onboarding has finished.
func (s *Store) OnboardingComplete() (bool, error) {
	return s.getBool(KeyOnboardingComplete, false)
}

// --- durations and lists ---

// UnlockDuration returns the configured unlock duration or
// domain.ErrUnlockDurationNotConfigured.
func (s *Store) UnlockDuration() (time.Duration, error) {
	var ms int64
	ok, err := s.get(KeyUnlockDuration, &ms)
	if err != nil {
		return 0, err
	}
	if !ok || ms <= 0 {
		return 0, domain.ErrUnlockDurationNotConfigured
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// SetUnlockDuration stores a positive unlock duration.
func (s *Store) SetUnlockDuration(d time.Duration) error {
	if d <= 0 {
		return domain.ErrInvalidDuration
	}
	return s.set(KeyUnlockDuration, d.Milliseconds())
}

// LockedApps returns the locked application list, empty when none is stored.
func (s *Store) LockedApps() ([]domain.AppRef, error) {
	apps := []domain.AppRef{}
	if _, err := s.get(KeyLockedApps, &apps); err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []domain.AppRef{}
	}
	return apps, nil
}

// SetLockedApps stores apps, dropping blank and case-insensitive duplicate names.
func (s *Store) SetLockedApps(apps []domain.AppRef) ([]domain.AppRef, error) {
	seen := make(map[string]bool, len(apps))
	out := make([]domain.AppRef, 0, len(apps))
	for _, a := range apps {
		a.Name = strings.TrimSpace(a.Name)
		key := domain.NormalizeAppName(a.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out, s.set(KeyLockedApps, out)
}

// BlockedWebsites returns the blocked hostnames, empty when none are stored.
func (s *Store) BlockedWebsites() ([]string, error) {
	sites := []string{}
	if _, err := s.get(KeyBlockedWebsites, &sites); err != nil {
		return nil, err
	}
	if sites == nil {
		sites = []string{}
	}
	return sites, nil
}

// SetBlockedWebsites normalizes, de-duplicates and stores sites.
func (s *Store) SetBlockedWebsites(sites []string) ([]string, error) {
	seen := make(map[string]bool, len(sites))
	out := make([]string, 0, len(sites))
	for _, raw := range sites {
		site := domain.NormalizeSite(raw)
		if site == "" || seen[site] {
			continue
		}
		seen[site] = true
		out = append(out, site)
	}
	sort.Strings(out)
	return out, s.set(KeyBlockedWebsites, out)
}

// --- security state ---

// SecurityState returns the persisted attempt counter and lockdown flag.
func (s *Store) SecurityState() (domain.SecurityState, error) {
	var st domain.SecurityState
	if _, err := s.get(KeyPinAttempts, &st.PinAttempts); err != nil {
		return st, err
	}
	lockdown, err := s.getBool(KeyIsInSecurityLockdown, false)
	if err != nil {
		return st, err
	}
	st.IsInLockdown = lockdown
	if st.LastLockdownTime, err = s.getTime(KeyLastLockdownTime); err != nil {
		return st, err
	}
	return st, nil
}

// SaveSecurityState persists st.
func (s *Store) SaveSecurityState(st domain.SecurityState) error {
	if err := s.set(KeyPinAttempts, st.PinAttempts); err != nil {
		return err
	}
	if err := s.set(KeyIsInSecurityLockdown, st.IsInLockdown); err != nil {
		return err
	}
	return s.setTime(KeyLastLockdownTime, st.LastLockdownTime)
}

// InLockdown reports whether the security lockdown is active. Read errors
// are reported as lockdown so callers fail closed.
func (s *Store) InLockdown() bool {
	v, err := s.getBool(KeyIsInSecurityLockdown, false)
	return err != nil || v
}

// --- schedule ---

// Schedule returns the schedule configuration with defaults applied.
func (s *Store) Schedule() (domain.ScheduleConfig, error) {
	cfg := domain.ScheduleConfig{
		StartTime: DefaultScheduleStart,
		EndTime:   DefaultScheduleEnd,
		Days:      append([]int(nil), DefaultScheduleDays...),
	}
	var err error
	if cfg.Enabled, err = s.getBool(KeyScheduleEnabled, false); err != nil {
		return cfg, err
	}
	if _, err = s.get(KeyScheduleStartTime, &cfg.StartTime); err != nil {
		return cfg, err
	}
	if _, err = s.get(KeyScheduleEndTime, &cfg.EndTime); err != nil {
		return cfg, err
	}
	if _, err = s.get(KeyScheduleDays, &cfg.Days); err != nil {
		return cfg, err
	}
	if cfg.AutoStart, err = s.getBool(KeyAutoStartScheduled, false); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SetSchedule validates and stores cfg.
func (s *Store) SetSchedule(cfg domain.ScheduleConfig) error {
	if err := ValidateSchedule(cfg); err != nil {
		return err
	}
	days := append([]int(nil), cfg.Days...)
	sort.Ints(days)
	for _, kv := range []struct {
		key string
		v   any
	}{
		{KeyScheduleEnabled, cfg.Enabled},
		{KeyScheduleStartTime, strings.TrimSpace(cfg.StartTime)},
		{KeyScheduleEndTime, strings.TrimSpace(cfg.EndTime)},
		{KeyScheduleDays, days},
		{KeyAutoStartScheduled, cfg.AutoStart},
	} {
		if err := s.set(kv.key, kv.v); err != nil {
			return err
		}
	}
	return nil
}

// --- continuity ---

// Continuity returns the persisted continuity snapshot.
// autoRestartMonitoring defaults to true.
func (s *Store) Continuity() (domain.ContinuitySnapshot, error) {
	var snap domain.ContinuitySnapshot
	var err error
	if snap.WasMonitoringEnabled, err = s.getBool(KeyWasMonitoringEnabled, false); err != nil {
		return snap, err
	}
	if snap.AutoRestartMonitoring, err = s.getBool(KeyAutoRestartMonitoring, true); err != nil {
		return snap, err
	}
	session, err := s.getTime(KeyLastAppSession)
	if err != nil {
		return snap, err
	}
	if session != nil {
		snap.LastAppSession = *session
	}
	if snap.LastShutdownTime, err = s.getTime(KeyLastShutdownTime); err != nil {
		return snap, err
	}
	return snap, nil
}

// SetWasMonitoringEnabled persists the monitoring intent.
func (s *Store) SetWasMonitoringEnabled(v bool) error {
	return s.set(KeyWasMonitoringEnabled, v)
}

// SetLastAppSession persists the session heartbeat.
func (s *Store) SetLastAppSession(t time.Time) error {
	return s.setTime(KeyLastAppSession, &t)
}

// SetLastShutdownTime persists the graceful shutdown timestamp.
func (s *Store) SetLastShutdownTime(t time.Time) error {
	return s.setTime(KeyLastShutdownTime, &t)
}

// SetAutoRestartMonitoring toggles resume-after-restart.
func (s *Store) SetAutoRestartMonitoring(v bool) error {
	return s.set(KeyAutoRestartMonitoring, v)
}
