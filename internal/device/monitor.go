package device

import (
	"log"
	"sync"
	"time"
)

// monitorPollInterval is how often the monitor attempts a read.
const monitorPollInterval = 100 * time.Millisecond

// Monitor continuously polls a Link for incoming lines and forwards each
// non-empty line on its Lines channel. Read faults are logged and polling
// continues; the monitor only exits when Stop is called. Stop joins the
// reader goroutine, so after Stop returns it is safe to close the Link.
type Monitor struct {
	link     Link
	interval time.Duration
	lines    chan string
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewMonitor creates a monitor for the given link. Start must be called
// before any lines are delivered.
func NewMonitor(link Link) *Monitor {
	return &Monitor{
		link:     link,
		interval: monitorPollInterval,
		lines:    make(chan string, 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Lines delivers the decoded device output, one line per message. The
// channel is closed once the monitor has stopped.
func (m *Monitor) Lines() <-chan string { return m.lines }

// Start launches the reader goroutine.
func (m *Monitor) Start() {
	go m.run()
}

func (m *Monitor) run() {
	defer close(m.done)
	defer close(m.lines)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			line, err := m.link.ReceiveLine()
			if err != nil {
				log.Printf("Monitor read error: %v", err)
				continue
			}
			if line == "" {
				continue
			}
			select {
			case m.lines <- line:
			case <-m.stop:
				return
			}
		}
	}
}

// Stop signals the reader to exit and waits for it. Safe to call more than
// once; latency is bounded by one poll interval.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}
