// Package engine evaluates the watering schedules once per second and starts
// automatic sessions when an entry's time-of-week window matches.
package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prite36/irrigation-control/internal/models"
	"github.com/prite36/irrigation-control/internal/session"
)

const (
	// matchWindowSeconds is how long after its start time an entry still
	// matches, so a tick delayed by jitter cannot miss the minute.
	matchWindowSeconds = 60
	// fireCooldown prevents the same entry from re-firing inside its own
	// match window. The cooldown is per entry: two distinct entries may fire
	// independently of each other.
	fireCooldown = 120 * time.Second

	secondsPerDay = 86400
)

// FiredHandler is informed after an entry successfully started a session.
// It runs outside the engine lock, so it may call back into the engine.
type FiredHandler func(index int, entry models.ScheduleEntry)

// Engine holds the schedule entries and decides, once per tick, whether any
// of them should trigger an automatic watering session.
type Engine struct {
	mu          sync.Mutex
	entries     []models.ScheduleEntry
	autoEnabled bool
	now         func() time.Time
	session     *session.Manager
	onFired     FiredHandler
}

// New creates an engine with auto mode enabled. now may be nil for wall time.
func New(sess *session.Manager, now func() time.Time, onFired FiredHandler) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{autoEnabled: true, now: now, session: sess, onFired: onFired}
}

// SetAutoEnabled toggles the global auto-mode gate.
func (e *Engine) SetAutoEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoEnabled = enabled
}

func (e *Engine) AutoEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoEnabled
}

// Add validates and appends a schedule entry. Invalid entries are rejected,
// never stored.
func (e *Engine) Add(entry models.ScheduleEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

// Replace swaps in a full schedule list, e.g. one loaded from settings.
// Every entry must validate or the existing list is left untouched.
func (e *Engine) Replace(entries []models.ScheduleEntry) error {
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append([]models.ScheduleEntry(nil), entries...)
	return nil
}

// Entries returns a copy of the schedule list in evaluation order.
func (e *Engine) Entries() []models.ScheduleEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.ScheduleEntry(nil), e.entries...)
}

// Toggle flips the active flag of the entry at index.
func (e *Engine) Toggle(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.entries) {
		return fmt.Errorf("no schedule at index %d", index)
	}
	e.entries[index].Active = !e.entries[index].Active
	return nil
}

// Deactivate clears the active flag of the entry at index. The service uses
// this for one-shot entries after they fire.
func (e *Engine) Deactivate(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.entries) {
		return fmt.Errorf("no schedule at index %d", index)
	}
	e.entries[index].Active = false
	return nil
}

// Remove deletes the entry at index.
func (e *Engine) Remove(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.entries) {
		return fmt.Errorf("no schedule at index %d", index)
	}
	e.entries = append(e.entries[:index], e.entries[index+1:]...)
	return nil
}

// Clear deletes all entries.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = nil
}

// Evaluate is the once-per-second tick. Entries are checked in list order;
// an entry fires when auto mode is on, its weekday and one-minute window
// match, its own cooldown has elapsed, and no session is running. An entry
// blocked only by a running session is not marked as fired and stays
// eligible for its next window.
func (e *Engine) Evaluate() {
	now := e.now()
	nowSec := now.Hour()*3600 + now.Minute()*60 + now.Second()
	day := now.Weekday()

	e.mu.Lock()
	if !e.autoEnabled {
		e.mu.Unlock()
		return
	}
	firedIndex := -1
	var firedEntry models.ScheduleEntry
	for i := range e.entries {
		entry := &e.entries[i]
		if !entry.Active || !entry.MatchesDay(day) {
			continue
		}
		startSec, err := entry.StartSeconds()
		if err != nil {
			continue
		}
		since := ((nowSec-startSec)%secondsPerDay + secondsPerDay) % secondsPerDay
		if since >= matchWindowSeconds {
			continue
		}
		if entry.LastFiredAt != nil && now.Sub(*entry.LastFiredAt) < fireCooldown {
			continue
		}
		if e.session.Running() {
			continue
		}
		err = e.session.Start(entry.Mode, entry.Duration, models.TriggerAutoSchedule)
		if errors.Is(err, session.ErrAlreadyRunning) {
			continue
		}
		if err != nil {
			log.Printf("Auto start for schedule %s failed: %v", entry.Time, err)
			continue
		}
		fired := now
		entry.LastFiredAt = &fired
		firedIndex = i
		firedEntry = *entry
	}
	e.mu.Unlock()

	if firedIndex >= 0 && e.onFired != nil {
		e.onFired(firedIndex, firedEntry)
	}
}
