package service

import (
	"testing"
	"time"
)

func TestBuildDailySpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "09:00", want: "0 0 9 * * *"},
		{in: "19:30", want: "0 30 19 * * *"},
		{in: "0:05", want: "0 5 0 * * *"},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := buildDailySpec(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("buildDailySpec(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("buildDailySpec(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestScheduleDailyUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	s := NewSchedulerService(loc, newTestEnv(t).log)
	id, err := s.ScheduleDaily("09:15", func() {})
	if err != nil {
		t.Fatalf("ScheduleDaily: %v", err)
	}
	s.Start()
	defer s.Stop()

	next := s.Next(id).In(loc)
	if next.Hour() != 9 || next.Minute() != 15 {
		t.Fatalf("next run at %s, want 09:15 in UTC+3", next)
	}
}

func TestScheduleIntervalRejectsNonPositive(t *testing.T) {
	s := NewSchedulerService(time.UTC, newTestEnv(t).log)
	if _, err := s.ScheduleInterval(0, func() {}); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestRegisterEngineJobs(t *testing.T) {
	env := newTestEnv(t)
	eng := env.engine(DefaultEngineConfig(), time.Now())
	s := NewSchedulerService(time.UTC, env.log)

	good := JobSchedule{
		CheckInReminderTime: "09:00",
		DeadlineInterval:    30 * time.Minute,
		EncouragementTime:   "19:00",
		InactivityTime:      "03:00",
	}
	if err := s.RegisterEngineJobs(eng, good); err != nil {
		t.Fatalf("RegisterEngineJobs: %v", err)
	}

	bad := good
	bad.EncouragementTime = "7pm"
	if err := NewSchedulerService(time.UTC, env.log).RegisterEngineJobs(eng, bad); err == nil {
		t.Fatal("expected error for malformed time")
	}
}
