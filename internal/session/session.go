// Package session implements the state machine for one watering run, manual
// or automatic. Exactly one session may be running at a time; the Manager is
// that system-wide owner.
package session

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/prite36/irrigation-control/internal/device"
	"github.com/prite36/irrigation-control/internal/models"
)

// State is the lifecycle stage of the current session.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
)

// ErrAlreadyRunning is returned by Start while a session is running. The
// running session is unaffected by the failed attempt.
var ErrAlreadyRunning = errors.New("a watering session is already running")

const stopCommand = "STOP"

// EventType distinguishes transition events from periodic progress updates.
type EventType string

const (
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventStopped   EventType = "stopped"
)

// Event is delivered to the Manager's observer on every transition and on
// every progress tick while running.
type Event struct {
	Type             EventType
	Mode             models.WateringMode
	Trigger          models.Trigger
	RequestedMinutes int
	Elapsed          time.Duration
	Progress         int // 0..100
	At               time.Time
}

// Snapshot is the externally visible session state for status queries.
type Snapshot struct {
	State            State               `json:"state"`
	Mode             models.WateringMode `json:"mode,omitempty"`
	RequestedMinutes int                 `json:"requestedMinutes,omitempty"`
	ElapsedSeconds   int                 `json:"elapsedSeconds"`
	RemainingSeconds int                 `json:"remainingSeconds"`
	Progress         int                 `json:"progress"`
}

// Manager owns the single watering session. The active device link is set by
// whoever owns the connection lifecycle; Start refuses to run without one.
type Manager struct {
	mu     sync.Mutex
	link   device.Link
	now    func() time.Time
	notify func(Event)

	state            State
	mode             models.WateringMode
	trigger          models.Trigger
	requestedMinutes int
	requested        time.Duration
	startedAt        time.Time
	finalElapsed     time.Duration
}

// NewManager creates an idle manager. notify may be nil; now defaults to
// time.Now and exists as a parameter so tests can drive simulated time.
func NewManager(now func() time.Time, notify func(Event)) *Manager {
	if now == nil {
		now = time.Now
	}
	if notify == nil {
		notify = func(Event) {}
	}
	return &Manager{state: StateIdle, now: now, notify: notify}
}

// SetLink installs (or clears, with nil) the active device link.
func (m *Manager) SetLink(link device.Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.link = link
}

// Running reports whether a session is currently active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateRunning
}

// Start begins a watering run. Duration validation against the configured
// maximum is the caller's responsibility; Start only enforces connectivity
// and exclusivity.
func (m *Manager) Start(mode models.WateringMode, durationMinutes int, trigger models.Trigger) error {
	m.mu.Lock()
	if m.state == StateRunning {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	link := m.link
	if link == nil || !link.Connected() {
		m.mu.Unlock()
		return device.ErrNotConnected
	}
	if err := link.Send(mode.Command()); err != nil {
		m.mu.Unlock()
		return err
	}

	m.state = StateRunning
	m.mode = mode
	m.trigger = trigger
	m.requestedMinutes = durationMinutes
	m.requested = time.Duration(durationMinutes) * time.Minute
	m.startedAt = m.now()
	m.finalElapsed = 0
	ev := Event{
		Type:             EventStarted,
		Mode:             mode,
		Trigger:          trigger,
		RequestedMinutes: durationMinutes,
		At:               m.startedAt,
	}
	m.mu.Unlock()

	m.notify(ev)
	return nil
}

// Tick advances progress while running. Call it on the fast periodic timer;
// it is a no-op in any other state. When progress reaches 100 the session
// stops itself and transitions to Completed.
func (m *Manager) Tick() {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return
	}
	elapsed := m.now().Sub(m.startedAt)
	progress := progressPercent(elapsed, m.requested)
	if progress >= 100 {
		ev := m.finishLocked(StateCompleted, EventCompleted, elapsed)
		m.mu.Unlock()
		m.notify(ev)
		return
	}
	ev := Event{
		Type:             EventProgress,
		Mode:             m.mode,
		Trigger:          m.trigger,
		RequestedMinutes: m.requestedMinutes,
		Elapsed:          elapsed,
		Progress:         progress,
		At:               m.now(),
	}
	m.mu.Unlock()
	m.notify(ev)
}

// Stop ends the session, if one is running, and reports the resulting state.
// Calling Stop in a terminal or idle state is a no-op.
func (m *Manager) Stop() State {
	m.mu.Lock()
	if m.state != StateRunning {
		st := m.state
		m.mu.Unlock()
		return st
	}
	elapsed := m.now().Sub(m.startedAt)
	ev := m.finishLocked(StateStopped, EventStopped, elapsed)
	m.mu.Unlock()
	m.notify(ev)
	return StateStopped
}

// finishLocked sends STOP and records the terminal state. A failed send is
// logged, not surfaced: the local state transitions regardless, so a dead
// link can never leave the session stuck in Running.
func (m *Manager) finishLocked(terminal State, evType EventType, elapsed time.Duration) Event {
	if m.link != nil {
		if err := m.link.Send(stopCommand); err != nil {
			log.Printf("Session stop: send failed: %v", err)
		}
	}
	m.state = terminal
	m.finalElapsed = elapsed
	return Event{
		Type:             evType,
		Mode:             m.mode,
		Trigger:          m.trigger,
		RequestedMinutes: m.requestedMinutes,
		Elapsed:          elapsed,
		Progress:         progressPercent(elapsed, m.requested),
		At:               m.now(),
	}
}

// Snapshot returns the current state for status queries.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{State: m.state}
	switch m.state {
	case StateRunning:
		elapsed := m.now().Sub(m.startedAt)
		s.Mode = m.mode
		s.RequestedMinutes = m.requestedMinutes
		s.ElapsedSeconds = int(elapsed.Seconds())
		remaining := m.requested - elapsed
		if remaining < 0 {
			remaining = 0
		}
		s.RemainingSeconds = int(remaining.Seconds())
		s.Progress = progressPercent(elapsed, m.requested)
	case StateCompleted, StateStopped:
		s.Mode = m.mode
		s.RequestedMinutes = m.requestedMinutes
		s.ElapsedSeconds = int(m.finalElapsed.Seconds())
		s.Progress = progressPercent(m.finalElapsed, m.requested)
	}
	return s
}

func progressPercent(elapsed, requested time.Duration) int {
	if requested <= 0 {
		return 100
	}
	p := int(elapsed * 100 / requested)
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}
