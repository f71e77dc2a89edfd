package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// WateringMode selects which valves a session opens.
type WateringMode string

const (
	ModeWater              WateringMode = "water"
	ModeWaterAndFertilizer WateringMode = "water_fertilizer"
)

// Command returns the wire command that begins watering in this mode.
func (m WateringMode) Command() string {
	if m == ModeWaterAndFertilizer {
		return "LED2_ON"
	}
	return "LED1_ON"
}

// Label returns the display name used in exports and notifications.
func (m WateringMode) Label() string {
	if m == ModeWaterAndFertilizer {
		return "Water + Fertilizer"
	}
	return "Water Only"
}

func (m WateringMode) Valid() bool {
	return m == ModeWater || m == ModeWaterAndFertilizer
}

// Trigger records what initiated a watering session.
type Trigger string

const (
	TriggerManual       Trigger = "manual"
	TriggerAutoSchedule Trigger = "auto_schedule"
)

// HistoryStatus is the lifecycle stage a history row records.
type HistoryStatus string

const (
	StatusStarted   HistoryStatus = "started"
	StatusCompleted HistoryStatus = "completed"
	StatusStopped   HistoryStatus = "stopped"
)

// Weekday abbreviations as stored in schedule entries ("Mon".."Sun").
var weekdayNames = map[string]bool{
	"Mon": true, "Tue": true, "Wed": true, "Thu": true,
	"Fri": true, "Sat": true, "Sun": true,
}

const (
	MinScheduleDuration = 1   // minutes
	MaxScheduleDuration = 120 // minutes
)

// ScheduleEntry is one recurring watering rule.
type ScheduleEntry struct {
	Time        string       `json:"time"`     // "HH:mm"
	Duration    int          `json:"duration"` // minutes
	Days        []string     `json:"days"`     // "Mon".."Sun"
	Mode        WateringMode `json:"mode"`
	Repeat      bool         `json:"repeat"` // repeat every week
	Active      bool         `json:"active"`
	LastFiredAt *time.Time   `json:"lastFiredAt,omitempty"`
}

// ValidationError reports a schedule entry rejected at creation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid schedule %s: %s", e.Field, e.Reason)
}

// Validate checks the entry's invariants. Invalid entries are never stored.
func (s *ScheduleEntry) Validate() error {
	if _, err := s.StartSeconds(); err != nil {
		return &ValidationError{Field: "time", Reason: err.Error()}
	}
	if s.Duration < MinScheduleDuration || s.Duration > MaxScheduleDuration {
		return &ValidationError{Field: "duration", Reason: fmt.Sprintf("must be %d-%d minutes", MinScheduleDuration, MaxScheduleDuration)}
	}
	if len(s.Days) == 0 {
		return &ValidationError{Field: "days", Reason: "at least one day required"}
	}
	for _, d := range s.Days {
		if !weekdayNames[d] {
			return &ValidationError{Field: "days", Reason: fmt.Sprintf("unknown day %q", d)}
		}
	}
	if !s.Mode.Valid() {
		return &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", s.Mode)}
	}
	return nil
}

// StartSeconds returns the entry's start time as seconds past midnight.
func (s *ScheduleEntry) StartSeconds() (int, error) {
	t, err := time.Parse("15:04", s.Time)
	if err != nil {
		return 0, fmt.Errorf("start time must be HH:mm: %w", err)
	}
	return t.Hour()*3600 + t.Minute()*60, nil
}

// MatchesDay reports whether the entry is scheduled for the given weekday.
func (s *ScheduleEntry) MatchesDay(day time.Weekday) bool {
	name := day.String()[:3]
	for _, d := range s.Days {
		if d == name {
			return true
		}
	}
	return false
}

// HistoryEntry is one row of the watering history.
type HistoryEntry struct {
	gorm.Model
	Timestamp time.Time     `gorm:"not null"`
	Mode      WateringMode  `gorm:"type:varchar(20);not null"`
	Duration  int           `gorm:"not null"` // minutes
	Trigger   Trigger       `gorm:"type:varchar(20);not null"`
	Status    HistoryStatus `gorm:"type:varchar(20);not null"`
	Notes     string
}

func (HistoryEntry) TableName() string {
	return "watering_history"
}
