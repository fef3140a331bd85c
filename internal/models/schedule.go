package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DaySchedule is the on-window for one weekday. Times are "HH:MM" 24-hour
// strings; EndTime may be "24:00" to mean end of day. An EndTime numerically
// below StartTime does not wrap past midnight, such a window is never
// satisfied.
type DaySchedule struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// WeeklySchedule maps weekday (0=Sunday..6=Saturday) to its DaySchedule.
// A valid schedule carries exactly one entry per weekday.
type WeeklySchedule map[int]DaySchedule

// DefaultWeeklySchedule returns a schedule with every day disabled
func DefaultWeeklySchedule() WeeklySchedule {
	week := make(WeeklySchedule, 7)
	for d := 0; d < 7; d++ {
		week[d] = DaySchedule{Enabled: false, StartTime: "00:00", EndTime: "24:00"}
	}
	return week
}

// Validate checks the one-entry-per-weekday invariant
func (w WeeklySchedule) Validate() error {
	for d := 0; d < 7; d++ {
		if _, ok := w[d]; !ok {
			return fmt.Errorf("weekly schedule missing weekday %d", d)
		}
	}
	if len(w) != 7 {
		return fmt.Errorf("weekly schedule has %d entries, want 7", len(w))
	}
	return nil
}

// ServerSchedule is the persisted weekly on/off schedule for a server
type ServerSchedule struct {
	gorm.Model
	ServerID string         `gorm:"uniqueIndex;not null;size:64"`
	Enabled  bool           `gorm:"default:false"`
	Timezone string         `gorm:"default:UTC"` // IANA zone name
	Days     datatypes.JSON `gorm:"type:json"`
}

// Weekly decodes the Days column
func (s *ServerSchedule) Weekly() (WeeklySchedule, error) {
	if len(s.Days) == 0 {
		return DefaultWeeklySchedule(), nil
	}
	var week WeeklySchedule
	if err := json.Unmarshal(s.Days, &week); err != nil {
		return nil, fmt.Errorf("failed to decode weekly schedule: %w", err)
	}
	return week, nil
}

// SetWeekly encodes the Days column
func (s *ServerSchedule) SetWeekly(week WeeklySchedule) error {
	if err := week.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(week)
	if err != nil {
		return fmt.Errorf("failed to encode weekly schedule: %w", err)
	}
	s.Days = datatypes.JSON(data)
	return nil
}
