// Package history keeps the append-only record of watering runs and the
// aggregate statistics derived from it.
package history

import (
	"sync"
	"time"

	"github.com/prite36/irrigation-control/internal/models"
)

// Filter selects a calendar slice of the log.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterToday     Filter = "today"
	FilterThisWeek  Filter = "week"
	FilterThisMonth Filter = "month"
)

// ParseFilter maps a query value to a Filter, defaulting to FilterAll.
func ParseFilter(s string) Filter {
	switch Filter(s) {
	case FilterToday, FilterThisWeek, FilterThisMonth:
		return Filter(s)
	}
	return FilterAll
}

// Statistics summarizes a slice of the log. Water volume is duration times
// the configured flow rate.
type Statistics struct {
	TotalSessions        int     `json:"totalSessions"`
	TotalDurationMinutes int     `json:"totalDurationMinutes"`
	TotalWaterLiters     float64 `json:"totalWaterLiters"`
	AvgDurationMinutes   float64 `json:"avgDurationMinutes"`
}

// Log is the in-memory watering history. Entries are append-only; nothing is
// ever removed except through Clear.
type Log struct {
	mu      sync.Mutex
	entries []models.HistoryEntry
	now     func() time.Time
}

// NewLog creates an empty log. now may be nil for wall time.
func NewLog(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{now: now}
}

// Add appends one entry.
func (l *Log) Add(entry models.HistoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// AmendLastNotes rewrites the newest entry's notes. The schedule engine uses
// this immediately after an auto-trigger to attribute the run to its entry.
func (l *Log) AmendLastNotes(notes string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.entries); n > 0 {
		l.entries[n-1].Notes = notes
	}
}

// Entries returns the filtered slice in original insertion order.
func (l *Log) Entries(f Filter) []models.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if f == FilterAll {
		return append([]models.HistoryEntry(nil), l.entries...)
	}
	now := l.now()
	var out []models.HistoryEntry
	for _, e := range l.entries {
		if matches(f, e.Timestamp, now) {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the total number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear removes every entry. This is the only way entries leave the log.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Statistics computes aggregates over the filtered slice. An empty slice
// yields all zeros.
func (l *Log) Statistics(f Filter, flowRateLPerMin float64) Statistics {
	entries := l.Entries(f)
	var s Statistics
	s.TotalSessions = len(entries)
	for _, e := range entries {
		s.TotalDurationMinutes += e.Duration
	}
	s.TotalWaterLiters = float64(s.TotalDurationMinutes) * flowRateLPerMin
	if s.TotalSessions > 0 {
		s.AvgDurationMinutes = float64(s.TotalDurationMinutes) / float64(s.TotalSessions)
	}
	return s
}

// matches implements the calendar boundaries: today is the current date,
// the week starts Monday 00:00, the month is the current calendar month.
func matches(f Filter, ts, now time.Time) bool {
	switch f {
	case FilterToday:
		y1, m1, d1 := ts.Date()
		y2, m2, d2 := now.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case FilterThisWeek:
		offset := (int(now.Weekday()) + 6) % 7 // days since Monday
		weekStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
			AddDate(0, 0, -offset)
		return !ts.Before(weekStart)
	case FilterThisMonth:
		return ts.Year() == now.Year() && ts.Month() == now.Month()
	}
	return true
}
