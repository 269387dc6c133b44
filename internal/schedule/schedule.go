// Package schedule evaluates the weekly monitoring window and switches
// monitoring on and off at its boundaries.
package schedule

import (
	"slices"
	"time"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/settings"
)

// IsScheduledNow reports whether now falls inside cfg's window. The window is
// [start, end) in now's location; when start > end it wraps past midnight.
// Unparseable times never match.
func IsScheduledNow(cfg domain.ScheduleConfig, now time.Time) bool {
	if !cfg.Enabled {
		return false
	}
	if !slices.Contains(cfg.Days, int(now.Weekday())) {
		return false
	}
	start, err := settings.ParseClock(cfg.StartTime)
	if err != nil {
		return false
	}
	end, err := settings.ParseClock(cfg.EndTime)
	if err != nil {
		return false
	}
	current := now.Hour()*60 + now.Minute()
	if start > end {
		return current >= start || current < end
	}
	return current >= start && current < end
}
