package engine

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/prite36/irrigation-control/internal/session"
)

const (
	// scheduleTickInterval drives schedule evaluation (second granularity is
	// the precision this system promises).
	scheduleTickInterval = 1 * time.Second
	// progressTickInterval drives session progress updates.
	progressTickInterval = 100 * time.Millisecond

	dailySummaryAt = "20:00"
)

// Runner drives the periodic ticks through gocron: the 1 Hz schedule
// evaluation, the 10 Hz session progress tick, and an optional daily summary
// job. Stop halts all jobs.
type Runner struct {
	scheduler *gocron.Scheduler
}

// NewRunner wires the periodic jobs. dailySummary may be nil to skip the
// summary job.
func NewRunner(eng *Engine, sess *session.Manager, dailySummary func()) (*Runner, error) {
	s := gocron.NewScheduler(time.Local)

	if _, err := s.Every(scheduleTickInterval).Do(eng.Evaluate); err != nil {
		return nil, err
	}
	if _, err := s.Every(progressTickInterval).Do(sess.Tick); err != nil {
		return nil, err
	}
	if dailySummary != nil {
		if _, err := s.Every(1).Day().At(dailySummaryAt).Do(dailySummary); err != nil {
			return nil, err
		}
	}
	return &Runner{scheduler: s}, nil
}

// Start begins job execution in the background.
func (r *Runner) Start() {
	r.scheduler.StartAsync()
}

// Stop halts the scheduler and waits for running jobs to return.
func (r *Runner) Stop() {
	log.Println("Stopping tick runner...")
	r.scheduler.Stop()
}
