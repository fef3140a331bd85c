package models

import "testing"

func TestWeeklyScheduleValidate(t *testing.T) {
	week := DefaultWeeklySchedule()
	if err := week.Validate(); err != nil {
		t.Fatalf("default schedule should validate: %v", err)
	}

	delete(week, 3)
	if err := week.Validate(); err == nil {
		t.Error("schedule missing a weekday must not validate")
	}

	week = DefaultWeeklySchedule()
	week[7] = DaySchedule{Enabled: true, StartTime: "08:00", EndTime: "20:00"}
	if err := week.Validate(); err == nil {
		t.Error("schedule with an extra weekday must not validate")
	}
}

func TestServerScheduleWeeklyRoundTrip(t *testing.T) {
	sched := &ServerSchedule{ServerID: "srv-1"}

	week, err := sched.Weekly()
	if err != nil {
		t.Fatalf("Weekly on empty Days: %v", err)
	}
	for d := 0; d < 7; d++ {
		if week[d].Enabled {
			t.Errorf("weekday %d enabled in default schedule", d)
		}
	}

	week[5] = DaySchedule{Enabled: true, StartTime: "14:00", EndTime: "22:30"}
	if err := sched.SetWeekly(week); err != nil {
		t.Fatalf("SetWeekly: %v", err)
	}

	got, err := sched.Weekly()
	if err != nil {
		t.Fatalf("Weekly after SetWeekly: %v", err)
	}
	if got[5] != week[5] {
		t.Errorf("friday window = %+v, want %+v", got[5], week[5])
	}

	delete(week, 0)
	if err := sched.SetWeekly(week); err == nil {
		t.Error("SetWeekly must reject an invalid schedule")
	}
}
