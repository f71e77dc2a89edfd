package device

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedLink replays a fixed sequence of ReceiveLine outcomes.
type scriptedLink struct {
	mu     sync.Mutex
	script []scriptStep
	pos    int
	closed bool
	reads  int
}

type scriptStep struct {
	line string
	err  error
}

func (l *scriptedLink) Kind() Kind        { return KindNetwork }
func (l *scriptedLink) Describe() string  { return "scripted" }
func (l *scriptedLink) Send(string) error { return nil }

func (l *scriptedLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

func (l *scriptedLink) ReceiveLine() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.pos >= len(l.script) {
		return "", nil
	}
	step := l.script[l.pos]
	l.pos++
	return step.line, step.err
}

func (l *scriptedLink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *scriptedLink) readCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

func collectLines(t *testing.T, m *Monitor, want int) []string {
	t.Helper()
	var lines []string
	timeout := time.After(3 * time.Second)
	for len(lines) < want {
		select {
		case line := <-m.Lines():
			lines = append(lines, line)
		case <-timeout:
			t.Fatalf("Timed out waiting for lines, got %v", lines)
		}
	}
	return lines
}

func TestMonitorForwardsNonEmptyLines(t *testing.T) {
	link := &scriptedLink{script: []scriptStep{
		{line: "READY"},
		{line: ""}, // idle poll, must not be forwarded
		{line: "PUMP_ON"},
	}}
	m := NewMonitor(link)
	m.interval = time.Millisecond
	m.Start()
	defer m.Stop()

	lines := collectLines(t, m, 2)
	if lines[0] != "READY" || lines[1] != "PUMP_ON" {
		t.Errorf("Unexpected lines: %v", lines)
	}
}

func TestMonitorSurvivesReadErrors(t *testing.T) {
	link := &scriptedLink{script: []scriptStep{
		{err: &LinkError{Op: "read", Err: errors.New("transient")}},
		{err: errors.New("decode failure")},
		{line: "RECOVERED"},
	}}
	m := NewMonitor(link)
	m.interval = time.Millisecond
	m.Start()
	defer m.Stop()

	lines := collectLines(t, m, 1)
	if lines[0] != "RECOVERED" {
		t.Errorf("Expected the line after the errors, got %v", lines)
	}
}

func TestMonitorStopJoins(t *testing.T) {
	link := &scriptedLink{}
	m := NewMonitor(link)
	m.interval = time.Millisecond
	m.Start()

	time.Sleep(20 * time.Millisecond)
	m.Stop()
	// After Stop returns the reader has exited; no further polls may happen.
	count := link.readCount()
	time.Sleep(20 * time.Millisecond)
	if got := link.readCount(); got != count {
		t.Errorf("Monitor kept reading after Stop: %d -> %d", count, got)
	}

	// Stop is safe to call again.
	m.Stop()
}
