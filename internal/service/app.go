// Package service composes the control core: it owns the device link
// lifecycle, observes session transitions, and fans events out to history,
// telemetry, and notifications.
package service

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/prite36/irrigation-control/internal/config"
	"github.com/prite36/irrigation-control/internal/device"
	"github.com/prite36/irrigation-control/internal/engine"
	"github.com/prite36/irrigation-control/internal/history"
	"github.com/prite36/irrigation-control/internal/models"
	"github.com/prite36/irrigation-control/internal/mqtt"
	"github.com/prite36/irrigation-control/internal/session"
	"github.com/prite36/irrigation-control/internal/slack"
)

// ErrDurationTooLong rejects start requests above the configured maximum.
type ErrDurationTooLong struct {
	Requested int
	Max       int
}

func (e *ErrDurationTooLong) Error() string {
	return fmt.Sprintf("duration %d min exceeds the configured maximum of %d min", e.Requested, e.Max)
}

// historyPreloadLimit caps how much persisted history is loaded at startup.
const historyPreloadLimit = 500

// App wires the control core together and owns its lifecycle.
type App struct {
	cfg *config.Config

	mu       sync.Mutex
	settings config.Settings
	link     device.Link
	monitor  *device.Monitor

	Session *session.Manager
	Engine  *engine.Engine
	History *history.Log

	runner    *engine.Runner
	store     *history.Store
	publisher *mqtt.Publisher
	notifier  *slack.Client
}

// NewApp builds the application from configuration. Database, MQTT and Slack
// are each optional: when unconfigured the app runs without them.
func NewApp(cfg *config.Config) (*App, error) {
	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		settings: settings,
		History:  history.NewLog(nil),
	}
	a.Session = session.NewManager(nil, a.onSessionEvent)
	a.Engine = engine.New(a.Session, nil, a.onScheduleFired)
	if err := a.Engine.Replace(settings.Schedules); err != nil {
		log.Printf("Discarding saved schedules: %v", err)
	}

	if cfg.Database.Host != "" {
		db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		store, err := history.NewStore(db)
		if err != nil {
			return nil, err
		}
		a.store = store

		// Seed the in-memory log with the persisted record, oldest first,
		// so filters and statistics span restarts.
		if persisted, err := store.Recent(historyPreloadLimit); err != nil {
			log.Printf("Loading persisted history: %v", err)
		} else {
			for i := len(persisted) - 1; i >= 0; i-- {
				a.History.Add(persisted[i])
			}
		}
	} else {
		log.Println("Database not configured. History will not be persisted.")
	}

	publisher, err := mqtt.NewPublisher(
		cfg.MQTT.Broker,
		cfg.MQTT.ClientID,
		cfg.MQTT.Username,
		cfg.MQTT.Password,
	)
	if err != nil {
		return nil, err
	}
	a.publisher = publisher
	a.notifier = slack.NewClient(cfg.Slack.BotToken, cfg.Slack.ChannelID)

	runner, err := engine.NewRunner(a.Engine, a.Session, a.dailySummary)
	if err != nil {
		return nil, err
	}
	a.runner = runner
	return a, nil
}

// Run starts the periodic ticks and blocks until an interrupt arrives.
func (a *App) Run() {
	a.runner.Start()
	log.Println("Irrigation control started. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	a.Stop()
}

// Stop shuts everything down in dependency order: ticks, session, link.
func (a *App) Stop() {
	log.Println("Shutting down...")

	a.runner.Stop()
	if a.Session.Running() {
		a.Session.Stop()
	}
	if err := a.Disconnect(); err != nil {
		log.Printf("Disconnect on shutdown: %v", err)
	}
	if err := a.SaveSettings(); err != nil {
		log.Printf("Saving settings on shutdown: %v", err)
	}
	a.publisher.Close()

	log.Println("Irrigation control stopped")
}

// ConnectSerial opens the serial link and starts monitoring it.
func (a *App) ConnectSerial(port string, baud int) error {
	link, err := device.DialSerial(port, baud)
	if err != nil {
		return err
	}
	a.adoptLink(link)
	return nil
}

// ConnectNetwork dials the device over TCP. The dial itself runs on its own
// goroutine with the transport's 5 s ceiling; this call waits for the
// outcome, so run it off the control line (HTTP handlers already are).
func (a *App) ConnectNetwork(host string, port int) error {
	res := <-device.DialNetworkAsync(host, port)
	if res.Err != nil {
		return res.Err
	}
	a.adoptLink(res.Link)
	return nil
}

func (a *App) adoptLink(link device.Link) {
	// Replacing a live link tears the old one down first.
	if err := a.Disconnect(); err != nil {
		log.Printf("Disconnecting previous link: %v", err)
	}

	a.mu.Lock()
	a.link = link
	a.monitor = device.NewMonitor(link)
	monitor := a.monitor
	a.mu.Unlock()

	a.Session.SetLink(link)
	monitor.Start()
	go a.consumeDeviceLines(monitor)
	log.Printf("Connected: %s", link.Describe())
}

// consumeDeviceLines forwards monitor output to the log and telemetry until
// the monitor's channel is exhausted.
func (a *App) consumeDeviceLines(m *device.Monitor) {
	for line := range m.Lines() {
		log.Printf("Received: %s", line)
		a.publisher.PublishDeviceLine(line)
	}
}

// Disconnect stops the monitor, waits for it to exit, then closes the link.
// Safe to call when never connected.
func (a *App) Disconnect() error {
	a.mu.Lock()
	link := a.link
	monitor := a.monitor
	a.link = nil
	a.monitor = nil
	a.mu.Unlock()

	if link == nil {
		return nil
	}
	if a.Session.Running() {
		a.Session.Stop()
	}
	a.Session.SetLink(nil)
	if monitor != nil {
		monitor.Stop()
	}
	err := link.Disconnect()
	log.Println("Disconnected")
	return err
}

// Connected reports whether a live link is installed.
func (a *App) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.link != nil && a.link.Connected()
}

// LinkDescription names the active link for status displays.
func (a *App) LinkDescription() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.link == nil {
		return ""
	}
	return a.link.Describe()
}

// StartWatering begins a manual session after enforcing the duration ceiling.
func (a *App) StartWatering(mode models.WateringMode, durationMinutes int) error {
	if !mode.Valid() {
		return &models.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
	maxDuration := a.Settings().MaxDuration
	if durationMinutes <= 0 {
		return &models.ValidationError{Field: "duration", Reason: "must be positive"}
	}
	if durationMinutes > maxDuration {
		return &ErrDurationTooLong{Requested: durationMinutes, Max: maxDuration}
	}
	err := a.Session.Start(mode, durationMinutes, models.TriggerManual)
	if err != nil {
		a.handleLinkFault(err)
	}
	return err
}

// StopWatering ends the running session, if any.
func (a *App) StopWatering() session.State {
	return a.Session.Stop()
}

// TestSequence briefly pulses the water valve, then the fertilizer valve.
// It refuses to run during a session.
func (a *App) TestSequence() error {
	if a.Session.Running() {
		return session.ErrAlreadyRunning
	}
	a.mu.Lock()
	link := a.link
	a.mu.Unlock()
	if link == nil || !link.Connected() {
		return device.ErrNotConnected
	}

	log.Println("Testing water valve...")
	steps := []struct {
		command string
		pause   time.Duration
	}{
		{models.ModeWater.Command(), 2 * time.Second},
		{"STOP", 1 * time.Second},
		{models.ModeWaterAndFertilizer.Command(), 2 * time.Second},
		{"STOP", 0},
	}
	for _, step := range steps {
		if err := link.Send(step.command); err != nil {
			a.handleLinkFault(err)
			return err
		}
		time.Sleep(step.pause)
	}
	log.Println("Test complete")
	return nil
}

// handleLinkFault implements auto-stop on disconnect: a write failure on an
// assumed-open link tears the connection down when the setting is enabled.
func (a *App) handleLinkFault(err error) {
	var linkErr *device.LinkError
	if !errors.As(err, &linkErr) {
		return
	}
	log.Printf("Link fault: %v", err)
	if a.Settings().AutoStopOnDisconnect {
		go func() {
			if derr := a.Disconnect(); derr != nil {
				log.Printf("Auto-disconnect: %v", derr)
			}
		}()
	}
}

// Settings returns a copy of the current settings.
func (a *App) Settings() config.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// UpdateSettings replaces the preference fields and persists them. The
// schedule list is managed through the engine, not through this call.
func (a *App) UpdateSettings(s config.Settings) error {
	a.mu.Lock()
	s.Schedules = nil
	a.settings = s
	a.mu.Unlock()
	return a.SaveSettings()
}

// SaveSettings snapshots the engine's schedules into the settings document
// and writes it.
func (a *App) SaveSettings() error {
	a.mu.Lock()
	s := a.settings
	a.mu.Unlock()
	s.Schedules = a.Engine.Entries()
	return config.SaveSettings(a.cfg.SettingsPath, s)
}

// onSessionEvent observes session transitions. History rows are written
// here, per the contract that the session itself never touches storage.
func (a *App) onSessionEvent(ev session.Event) {
	switch ev.Type {
	case session.EventStarted:
		a.appendHistory(models.HistoryEntry{
			Timestamp: ev.At,
			Mode:      ev.Mode,
			Trigger:   ev.Trigger,
			Duration:  ev.RequestedMinutes,
			Status:    models.StatusStarted,
			Notes:     string(ev.Trigger),
		})
		log.Printf("Started %s for %d minutes", ev.Mode.Label(), ev.RequestedMinutes)
		a.notifier.NotifySession("started", ev.Mode.Label(), ev.RequestedMinutes, string(ev.Trigger))
	case session.EventCompleted, session.EventStopped:
		status := models.StatusCompleted
		verb := "completed"
		if ev.Type == session.EventStopped {
			status = models.StatusStopped
			verb = "stopped"
		}
		elapsedMinutes := int(ev.Elapsed / time.Minute)
		a.appendHistory(models.HistoryEntry{
			Timestamp: ev.At,
			Mode:      ev.Mode,
			Trigger:   ev.Trigger,
			Duration:  elapsedMinutes,
			Status:    status,
			Notes:     string(ev.Trigger),
		})
		log.Printf("Watering %s after %d minutes", verb, elapsedMinutes)
		a.notifier.NotifySession(verb, ev.Mode.Label(), elapsedMinutes, string(ev.Trigger))
	case session.EventProgress:
		return
	}

	a.publisher.PublishSessionState(mqtt.SessionStateMessage{
		State:    string(ev.Type),
		Mode:     string(ev.Mode),
		Trigger:  string(ev.Trigger),
		Progress: ev.Progress,
		At:       ev.At.Format(time.RFC3339),
	})
}

func (a *App) appendHistory(entry models.HistoryEntry) {
	a.History.Add(entry)
	if a.store != nil {
		if err := a.store.Save(&entry); err != nil {
			log.Printf("Persisting history entry: %v", err)
		}
	}
}

// ClearHistory empties the in-memory log and the persisted mirror.
func (a *App) ClearHistory() {
	a.History.Clear()
	if a.store != nil {
		if err := a.store.Clear(); err != nil {
			log.Printf("Clearing persisted history: %v", err)
		}
	}
}

// onScheduleFired annotates the newest history row with the schedule that
// triggered it and deactivates one-shot entries.
func (a *App) onScheduleFired(index int, entry models.ScheduleEntry) {
	log.Printf("Auto schedule triggered: %s", entry.Time)
	a.History.AmendLastNotes(fmt.Sprintf("Auto Schedule: %s", entry.Time))
	if !entry.Repeat {
		if err := a.Engine.Deactivate(index); err != nil {
			log.Printf("Deactivating one-shot schedule: %v", err)
		}
	}
	if err := a.SaveSettings(); err != nil {
		log.Printf("Saving schedules after auto fire: %v", err)
	}
}

// dailySummary posts the day's statistics to Slack.
func (a *App) dailySummary() {
	stats := a.History.Statistics(history.FilterToday, a.Settings().FlowRate)
	if stats.TotalSessions == 0 {
		return
	}
	a.notifier.NotifyDailySummary(stats.TotalSessions, stats.TotalWaterLiters, stats.AvgDurationMinutes)
}
