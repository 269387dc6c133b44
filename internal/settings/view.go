package settings

import (
	"errors"
	"time"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// View is the user-facing settings snapshot. Secrets are reported only as
// configured or not.
type View struct {
	PINConfigured            bool                  `json:"pinConfigured" yaml:"-"`
	MasterPasswordConfigured bool                  `json:"masterPasswordConfigured" yaml:"-"`
	OnboardingComplete       bool                  `json:"onboardingComplete" yaml:"-"`
	UnlockDurationMs         int64                 `json:"unlockDuration" yaml:"unlockDuration"`
	LockedApps               []domain.AppRef       `json:"lockedApps" yaml:"lockedApps"`
	BlockedWebsites          []string              `json:"blockedWebsites" yaml:"blockedWebsites"`
	Schedule                 domain.ScheduleConfig `json:"schedule" yaml:"schedule"`
	AutoRestartMonitoring    bool                  `json:"autoRestartMonitoring" yaml:"autoRestartMonitoring"`
}

// Patch is a partial settings update; nil fields are left unchanged.
type Patch struct {
	UnlockDurationMs      *int64                 `json:"unlockDuration,omitempty" yaml:"unlockDuration,omitempty"`
	LockedApps            *[]domain.AppRef       `json:"lockedApps,omitempty" yaml:"lockedApps,omitempty"`
	BlockedWebsites       *[]string              `json:"blockedWebsites,omitempty" yaml:"blockedWebsites,omitempty"`
	Schedule              *domain.ScheduleConfig `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	AutoRestartMonitoring *bool                  `json:"autoRestartMonitoring,omitempty" yaml:"autoRestartMonitoring,omitempty"`
}

// View returns the current settings.
func (s *Store) View() (View, error) {
	var v View
	var err error

	_, err = s.PIN()
	if err != nil && !errors.Is(err, domain.ErrPINNotConfigured) {
		return v, err
	}
	v.PINConfigured = err == nil

	_, err = s.MasterPassword()
	if err != nil && !errors.Is(err, domain.ErrMasterNotConfigured) {
		return v, err
	}
	v.MasterPasswordConfigured = err == nil

	if v.OnboardingComplete, err = s.OnboardingComplete(); err != nil {
		return v, err
	}
	d, err := s.UnlockDuration()
	if err != nil && !errors.Is(err, domain.ErrUnlockDurationNotConfigured) {
		return v, err
	}
	v.UnlockDurationMs = d.Milliseconds()

	if v.LockedApps, err = s.LockedApps(); err != nil {
		return v, err
	}
	if v.BlockedWebsites, err = s.BlockedWebsites(); err != nil {
		return v, err
	}
	if v.Schedule, err = s.Schedule(); err != nil {
		return v, err
	}
	cont, err := s.Continuity()
	if err != nil {
		return v, err
	}
	v.AutoRestartMonitoring = cont.AutoRestartMonitoring
	return v, nil
}

// Apply validates every present field of p before writing any of them.
func (s *Store) Apply(p Patch) error {
	if p.UnlockDurationMs != nil && *p.UnlockDurationMs <= 0 {
		return domain.ErrInvalidDuration
	}
	if p.Schedule != nil {
		if err := ValidateSchedule(*p.Schedule); err != nil {
			return err
		}
	}

	if p.UnlockDurationMs != nil {
		if err := s.SetUnlockDuration(time.Duration(*p.UnlockDurationMs) * time.Millisecond); err != nil {
			return err
		}
	}
	if p.LockedApps != nil {
		if _, err := s.SetLockedApps(*p.LockedApps); err != nil {
			return err
		}
	}
	if p.BlockedWebsites != nil {
		if _, err := s.SetBlockedWebsites(*p.BlockedWebsites); err != nil {
			return err
		}
	}
	if p.Schedule != nil {
		if err := s.SetSchedule(*p.Schedule); err != nil {
			return err
		}
	}
	if p.AutoRestartMonitoring != nil {
		if err := s.SetAutoRestartMonitoring(*p.AutoRestartMonitoring); err != nil {
			return err
		}
	}
	return nil
}

// PatchFromView converts an exported view back into a full patch. Only
// non-secret fields are carried.
func PatchFromView(v View) Patch {
	p := Patch{
		LockedApps:            &v.LockedApps,
		BlockedWebsites:       &v.BlockedWebsites,
		Schedule:              &v.Schedule,
		AutoRestartMonitoring: &v.AutoRestartMonitoring,
	}
	if v.UnlockDurationMs > 0 {
		p.UnlockDurationMs = &v.UnlockDurationMs
	}
	return p
}
