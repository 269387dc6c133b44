package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// 2024-05-01 is a Wednesday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, 5, day, hour, minute, 0, 0, time.UTC)
}

func TestIsScheduledNow_Weekdays(t *testing.T) {
	cfg := domain.ScheduleConfig{Enabled: true, StartTime: "09:00", EndTime: "17:00", Days: []int{1, 2, 3, 4, 5}}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"wednesday noon", at(1, 12, 0), true},
		{"saturday noon", at(4, 12, 0), false},
		{"wednesday evening", at(1, 18, 0), false},
		{"start is inclusive", at(1, 9, 0), true},
		{"end is exclusive", at(1, 17, 0), false},
		{"last minute", at(1, 16, 59), true},
		{"before start", at(1, 8, 59), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsScheduledNow(cfg, tt.now))
		})
	}
}

func TestIsScheduledNow_Overnight(t *testing.T) {
	cfg := domain.ScheduleConfig{Enabled: true, StartTime: "22:00", EndTime: "06:00", Days: []int{0, 1, 2, 3, 4, 5, 6}}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"late evening", at(1, 23, 30), true},
		{"early morning", at(2, 2, 0), true},
		{"midday", at(1, 12, 0), false},
		{"start", at(1, 22, 0), true},
		{"end", at(2, 6, 0), false},
		{"midnight", at(2, 0, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsScheduledNow(cfg, tt.now))
		})
	}
}

func TestIsScheduledNow_Guards(t *testing.T) {
	base := domain.ScheduleConfig{Enabled: true, StartTime: "09:00", EndTime: "17:00", Days: []int{3}}
	noon := at(1, 12, 0)

	assert.True(t, IsScheduledNow(base, noon))

	disabled := base
	disabled.Enabled = false
	assert.False(t, IsScheduledNow(disabled, noon))

	noDays := base
	noDays.Days = nil
	assert.False(t, IsScheduledNow(noDays, noon))

	broken := base
	broken.StartTime = "9am"
	assert.False(t, IsScheduledNow(broken, noon))

	empty := base
	empty.StartTime, empty.EndTime = "10:00", "10:00"
	assert.False(t, IsScheduledNow(empty, at(1, 10, 0)), "equal start and end is an empty window")
}
