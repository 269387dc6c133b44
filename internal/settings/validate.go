package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// PINLength is the exact number of digits of a PIN.
const PINLength = 5

// MinMasterPasswordLength is the minimum master password length.
const MinMasterPasswordLength = 6

// ValidatePIN checks that pin is exactly five ASCII digits.
func ValidatePIN(pin string) error {
	if len(pin) != PINLength {
		return domain.ErrInvalidPIN
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return domain.ErrInvalidPIN
		}
	}
	return nil
}

// ValidateMasterPassword checks length and that the password differs from pin.
func ValidateMasterPassword(password, pin string) error {
	if len(password) < MinMasterPasswordLength {
		return domain.ErrInvalidMasterPassword
	}
	if pin != "" && password == pin {
		return domain.ErrInvalidMasterPassword
	}
	return nil
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: time %q is not HH:MM", domain.ErrInvalidSchedule, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: hour in %q", domain.ErrInvalidSchedule, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: minute in %q", domain.ErrInvalidSchedule, s)
	}
	return h*60 + m, nil
}

// ValidateSchedule checks the time format and weekday range of cfg.
func ValidateSchedule(cfg domain.ScheduleConfig) error {
	if _, err := ParseClock(cfg.StartTime); err != nil {
		return err
	}
	if _, err := ParseClock(cfg.EndTime); err != nil {
		return err
	}
	for _, d := range cfg.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: day %d out of range 0..6", domain.ErrInvalidSchedule, d)
		}
	}
	return nil
}
