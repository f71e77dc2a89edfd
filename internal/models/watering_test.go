package models

import (
	"testing"
	"time"
)

func TestModeCommand(t *testing.T) {
	if got := ModeWater.Command(); got != "LED1_ON" {
		t.Errorf("ModeWater command = %q, want LED1_ON", got)
	}
	if got := ModeWaterAndFertilizer.Command(); got != "LED2_ON" {
		t.Errorf("ModeWaterAndFertilizer command = %q, want LED2_ON", got)
	}
}

func TestScheduleEntryValidate(t *testing.T) {
	valid := ScheduleEntry{
		Time:     "08:00",
		Duration: 10,
		Days:     []string{"Mon", "Fri"},
		Mode:     ModeWater,
		Active:   true,
	}

	testCases := []struct {
		name    string
		mutate  func(*ScheduleEntry)
		wantErr bool
	}{
		{"valid entry", func(*ScheduleEntry) {}, false},
		{"min duration", func(s *ScheduleEntry) { s.Duration = 1 }, false},
		{"max duration", func(s *ScheduleEntry) { s.Duration = 120 }, false},
		{"empty days", func(s *ScheduleEntry) { s.Days = nil }, true},
		{"unknown day", func(s *ScheduleEntry) { s.Days = []string{"Funday"} }, true},
		{"zero duration", func(s *ScheduleEntry) { s.Duration = 0 }, true},
		{"negative duration", func(s *ScheduleEntry) { s.Duration = -5 }, true},
		{"over max duration", func(s *ScheduleEntry) { s.Duration = 121 }, true},
		{"bad time format", func(s *ScheduleEntry) { s.Time = "8am" }, true},
		{"bad mode", func(s *ScheduleEntry) { s.Mode = "sprinkle" }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entry := valid
			entry.Days = append([]string(nil), valid.Days...)
			tc.mutate(&entry)
			err := entry.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestStartSeconds(t *testing.T) {
	entry := ScheduleEntry{Time: "08:30"}
	got, err := entry.StartSeconds()
	if err != nil {
		t.Fatalf("StartSeconds failed: %v", err)
	}
	if want := 8*3600 + 30*60; got != want {
		t.Errorf("StartSeconds = %d, want %d", got, want)
	}
}

func TestMatchesDay(t *testing.T) {
	entry := ScheduleEntry{Days: []string{"Mon", "Sun"}}
	if !entry.MatchesDay(time.Monday) {
		t.Error("Expected Monday to match")
	}
	if !entry.MatchesDay(time.Sunday) {
		t.Error("Expected Sunday to match")
	}
	if entry.MatchesDay(time.Tuesday) {
		t.Error("Tuesday should not match")
	}
}
