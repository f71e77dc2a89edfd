package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/prite36/irrigation-control/internal/device"
	"github.com/prite36/irrigation-control/internal/models"
	"github.com/prite36/irrigation-control/internal/session"
)

type fakeLink struct {
	mu        sync.Mutex
	sent      []string
	connected bool
}

func (l *fakeLink) Kind() device.Kind { return device.KindNetwork }
func (l *fakeLink) Describe() string  { return "fake" }

func (l *fakeLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *fakeLink) Send(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, line)
	return nil
}

func (l *fakeLink) ReceiveLine() (string, error) { return "", nil }
func (l *fakeLink) Disconnect() error            { l.connected = false; return nil }

func (l *fakeLink) starts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, cmd := range l.sent {
		if cmd == "LED1_ON" || cmd == "LED2_ON" {
			n++
		}
	}
	return n
}

type harness struct {
	engine *Engine
	sess   *session.Manager
	link   *fakeLink
	now    time.Time
	fired  []int
}

// monday8 is a Monday at 08:00:00.
var monday8 = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

func newHarness() *harness {
	h := &harness{link: &fakeLink{connected: true}, now: monday8}
	h.sess = session.NewManager(func() time.Time { return h.now }, nil)
	h.sess.SetLink(h.link)
	h.engine = New(h.sess, func() time.Time { return h.now }, func(i int, _ models.ScheduleEntry) {
		h.fired = append(h.fired, i)
	})
	return h
}

func entryAt(timeOfDay string, days ...string) models.ScheduleEntry {
	return models.ScheduleEntry{
		Time:     timeOfDay,
		Duration: 10,
		Days:     days,
		Mode:     models.ModeWater,
		Repeat:   true,
		Active:   true,
	}
}

func TestFiresOnceInsideMinuteWindow(t *testing.T) {
	h := newHarness()
	if err := h.engine.Add(entryAt("08:00", "Mon")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	h.now = monday8.Add(-time.Second) // 07:59:59
	h.engine.Evaluate()
	if h.sess.Running() {
		t.Fatal("Fired before the schedule window opened")
	}

	h.now = monday8 // 08:00:00
	h.engine.Evaluate()
	if !h.sess.Running() {
		t.Fatal("Expected fire at 08:00:00")
	}
	if len(h.fired) != 1 || h.fired[0] != 0 {
		t.Errorf("Expected fired callback for entry 0, got %v", h.fired)
	}

	// Session stops early; the entry's own cooldown must still hold for the
	// remainder of the window.
	h.now = monday8.Add(10 * time.Second)
	h.sess.Stop()
	h.now = monday8.Add(30 * time.Second)
	h.engine.Evaluate()
	h.now = monday8.Add(59 * time.Second)
	h.engine.Evaluate()
	if got := h.link.starts(); got != 1 {
		t.Errorf("Expected exactly one start within the window, got %d", got)
	}
}

func TestWindowClosesAtSixtySeconds(t *testing.T) {
	h := newHarness()
	if err := h.engine.Add(entryAt("08:00", "Mon")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	h.now = monday8.Add(60 * time.Second)
	h.engine.Evaluate()
	if h.sess.Running() {
		t.Error("Fired at 08:01:00, outside the one-minute window")
	}

	h.now = monday8.Add(59 * time.Second)
	h.engine.Evaluate()
	if !h.sess.Running() {
		t.Error("Expected fire at 08:00:59, inside the window")
	}
}

func TestSkipsWrongDayAndInactive(t *testing.T) {
	h := newHarness()
	if err := h.engine.Add(entryAt("08:00", "Tue")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	inactive := entryAt("08:00", "Mon")
	inactive.Active = false
	if err := h.engine.Add(inactive); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	h.engine.Evaluate()
	if h.sess.Running() {
		t.Error("Fired for a wrong-day or inactive entry")
	}
}

func TestAutoModeGate(t *testing.T) {
	h := newHarness()
	if err := h.engine.Add(entryAt("08:00", "Mon")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	h.engine.SetAutoEnabled(false)
	h.engine.Evaluate()
	if h.sess.Running() {
		t.Error("Fired with auto mode disabled")
	}

	h.engine.SetAutoEnabled(true)
	h.engine.Evaluate()
	if !h.sess.Running() {
		t.Error("Expected fire after re-enabling auto mode")
	}
}

func TestRunningSessionBlocksWithoutMarkingFired(t *testing.T) {
	h := newHarness()
	if err := h.sess.Start(models.ModeWater, 10, models.TriggerManual); err != nil {
		t.Fatalf("Manual start failed: %v", err)
	}
	if err := h.engine.Add(entryAt("08:00", "Mon")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	h.engine.Evaluate()
	entries := h.engine.Entries()
	if entries[0].LastFiredAt != nil {
		t.Error("Blocked entry must not be marked as fired")
	}
	if got := h.link.starts(); got != 1 {
		t.Errorf("Expected only the manual start, got %d starts", got)
	}
}

func TestTwoEntriesSameWindowOnlyOneStarts(t *testing.T) {
	h := newHarness()
	if err := h.engine.Add(entryAt("08:00", "Mon")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	second := entryAt("08:00", "Mon")
	second.Mode = models.ModeWaterAndFertilizer
	if err := h.engine.Add(second); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	h.engine.Evaluate()
	if got := h.link.starts(); got != 1 {
		t.Fatalf("Expected exactly one session start, got %d", got)
	}
	entries := h.engine.Entries()
	if entries[0].LastFiredAt == nil {
		t.Error("First entry should be marked as fired")
	}
	if entries[1].LastFiredAt != nil {
		t.Error("Second entry was blocked by exclusivity and must stay eligible")
	}
	if len(h.fired) != 1 || h.fired[0] != 0 {
		t.Errorf("Expected only entry 0 in fired callbacks, got %v", h.fired)
	}
}

func TestDisconnectedLinkLeavesEntryEligible(t *testing.T) {
	h := newHarness()
	h.link.connected = false
	if err := h.engine.Add(entryAt("08:00", "Mon")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	h.engine.Evaluate()
	if got := h.engine.Entries()[0].LastFiredAt; got != nil {
		t.Error("Entry must not be marked fired when the start failed")
	}
}

func TestAddRejectsInvalidEntries(t *testing.T) {
	h := newHarness()
	testCases := []struct {
		name  string
		entry models.ScheduleEntry
	}{
		{"empty days", models.ScheduleEntry{Time: "08:00", Duration: 10, Mode: models.ModeWater}},
		{"bad time", models.ScheduleEntry{Time: "8 o'clock", Duration: 10, Days: []string{"Mon"}, Mode: models.ModeWater}},
		{"zero duration", models.ScheduleEntry{Time: "08:00", Duration: 0, Days: []string{"Mon"}, Mode: models.ModeWater}},
		{"over max duration", models.ScheduleEntry{Time: "08:00", Duration: 121, Days: []string{"Mon"}, Mode: models.ModeWater}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := h.engine.Add(tc.entry); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
	if got := len(h.engine.Entries()); got != 0 {
		t.Errorf("Invalid entries were stored: %d", got)
	}
}

func TestMutations(t *testing.T) {
	h := newHarness()
	if err := h.engine.Add(entryAt("08:00", "Mon")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := h.engine.Add(entryAt("18:30", "Fri", "Sun")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := h.engine.Toggle(0); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if h.engine.Entries()[0].Active {
		t.Error("Toggle did not deactivate entry 0")
	}
	if err := h.engine.Remove(0); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	entries := h.engine.Entries()
	if len(entries) != 1 || entries[0].Time != "18:30" {
		t.Errorf("Unexpected entries after remove: %+v", entries)
	}
	if err := h.engine.Toggle(5); err == nil {
		t.Error("Expected error for out-of-range index")
	}
	h.engine.Clear()
	if len(h.engine.Entries()) != 0 {
		t.Error("Clear left entries behind")
	}
}
