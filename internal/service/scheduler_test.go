package service

import (
	"testing"

	"github.com/craftops/fleet/internal/models"
)

func singleDaySchedule(weekday int, start, end string) models.WeeklySchedule {
	week := models.DefaultWeeklySchedule()
	week[weekday] = models.DaySchedule{Enabled: true, StartTime: start, EndTime: end}
	return week
}

func TestDesiredRunningWindowBounds(t *testing.T) {
	week := singleDaySchedule(1, "20:00", "23:00")

	cases := []struct {
		name   string
		minute int
		want   bool
	}{
		{"before window", 19*60 + 59, false},
		{"at start", 20 * 60, true},
		{"inside window", 21 * 60, true},
		{"last minute", 22*60 + 59, true},
		{"at end", 23 * 60, false},
		{"after window", 23*60 + 30, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DesiredRunning(week, 1, tc.minute); got != tc.want {
				t.Errorf("DesiredRunning(minute=%d) = %v, want %v", tc.minute, got, tc.want)
			}
		})
	}
}

func TestDesiredRunningDisabledDay(t *testing.T) {
	week := models.DefaultWeeklySchedule()
	if DesiredRunning(week, 3, 12*60) {
		t.Error("disabled day should never be running")
	}
}

func TestDesiredRunningOtherWeekday(t *testing.T) {
	week := singleDaySchedule(5, "10:00", "12:00")
	if DesiredRunning(week, 4, 11*60) {
		t.Error("window on Friday must not match Thursday")
	}
}

func TestDesiredRunningEndOfDay(t *testing.T) {
	week := singleDaySchedule(6, "00:00", "24:00")

	if !DesiredRunning(week, 6, 0) {
		t.Error("full-day window should match midnight")
	}
	if !DesiredRunning(week, 6, 23*60+59) {
		t.Error("full-day window should match the last minute of the day")
	}
}

// A window whose end precedes its start does not wrap past midnight; it
// never matches at all.
func TestDesiredRunningInvertedWindowNeverMatches(t *testing.T) {
	week := singleDaySchedule(2, "22:00", "02:00")

	for _, minute := range []int{0, 1 * 60, 12 * 60, 22 * 60, 23 * 60} {
		if DesiredRunning(week, 2, minute) {
			t.Errorf("inverted window matched at minute %d", minute)
		}
	}
}

func TestParseClockMinute(t *testing.T) {
	cases := []struct {
		clock   string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 9*60 + 30, false},
		{"23:59", 23*60 + 59, false},
		{"24:00", endOfDayMinute, false},
		{"24:01", 0, true},
		{"25:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"12", 0, true},
	}
	for _, tc := range cases {
		got, err := parseClockMinute(tc.clock)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseClockMinute(%q) expected error, got %d", tc.clock, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseClockMinute(%q) unexpected error: %v", tc.clock, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseClockMinute(%q) = %d, want %d", tc.clock, got, tc.want)
		}
	}
}
