package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prite36/irrigation-control/internal/config"
	"github.com/prite36/irrigation-control/internal/device"
	"github.com/prite36/irrigation-control/internal/history"
	"github.com/prite36/irrigation-control/internal/models"
	"github.com/prite36/irrigation-control/internal/service"
	"github.com/prite36/irrigation-control/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the core's error taxonomy onto HTTP statuses: validation
// failures are 400, violated preconditions 409, unreachable transports 502.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var validationErr *models.ValidationError
	var tooLong *service.ErrDurationTooLong
	var connErr *device.ConnectionError
	switch {
	case errors.As(err, &validationErr), errors.As(err, &tooLong):
		status = http.StatusBadRequest
	case errors.Is(err, device.ErrNotConnected), errors.Is(err, session.ErrAlreadyRunning):
		status = http.StatusConflict
	case errors.As(err, &connErr):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// ConnectRequest selects and parameterizes a transport.
type ConnectRequest struct {
	Kind       string `json:"kind"` // "serial" or "network"
	SerialPort string `json:"serialPort,omitempty"`
	Baud       int    `json:"baud,omitempty"`
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
}

// ConnectHandler opens the device link.
func ConnectHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		var req ConnectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Error parsing request body", http.StatusBadRequest)
			return
		}

		var err error
		switch req.Kind {
		case "serial":
			baud := req.Baud
			if baud == 0 {
				baud = 9600
			}
			log.Printf("[INFO] Connect request: serial %s@%d", req.SerialPort, baud)
			err = app.ConnectSerial(req.SerialPort, baud)
		case "network":
			port := req.Port
			if port == 0 {
				port = 80
			}
			log.Printf("[INFO] Connect request: network %s:%d", req.Host, port)
			err = app.ConnectNetwork(req.Host, port)
		default:
			http.Error(w, fmt.Sprintf("unknown link kind %q", req.Kind), http.StatusBadRequest)
			return
		}
		if err != nil {
			log.Printf("[ERROR] Connect failed: %v", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"link": app.LinkDescription()})
	}
}

// DisconnectHandler tears the link down. Idempotent.
func DisconnectHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		if err := app.Disconnect(); err != nil {
			log.Printf("[ERROR] Disconnect: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}
}

// PortsHandler lists serial ports for the connection dialog.
func PortsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ports, err := device.ListPorts()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"ports": ports})
	}
}

// StartWateringRequest begins a manual session.
type StartWateringRequest struct {
	Mode     models.WateringMode `json:"mode"`
	Duration int                 `json:"duration"` // minutes
}

func StartWateringHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		var req StartWateringRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Error parsing request body", http.StatusBadRequest)
			return
		}
		if req.Duration == 0 {
			req.Duration = app.Settings().DefaultDuration
		}
		if err := app.StartWatering(req.Mode, req.Duration); err != nil {
			log.Printf("[ERROR] Start watering: %v", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, app.Session.Snapshot())
	}
}

func StopWateringHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		state := app.StopWatering()
		writeJSON(w, http.StatusOK, map[string]string{"state": string(state)})
	}
}

// TestSequenceHandler pulses each valve briefly. The sequence takes a few
// seconds, so it runs detached and the request is acknowledged immediately.
func TestSequenceHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		log.Println("[INFO] Received API request to run the valve test sequence.")
		go func() {
			if err := app.TestSequence(); err != nil {
				log.Printf("[ERROR] Test sequence failed: %v", err)
			}
		}()
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintln(w, "Valve test sequence accepted.")
	}
}

func SessionHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, app.Session.Snapshot())
	}
}

// SchedulesHandler lists (GET) or adds (POST) schedule entries.
func SchedulesHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, app.Engine.Entries())
		case http.MethodPost:
			var entry models.ScheduleEntry
			if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
				http.Error(w, "Error parsing request body", http.StatusBadRequest)
				return
			}
			entry.Active = true
			entry.LastFiredAt = nil
			if err := app.Engine.Add(entry); err != nil {
				writeError(w, err)
				return
			}
			if err := app.SaveSettings(); err != nil {
				log.Printf("[ERROR] Saving schedules: %v", err)
			}
			log.Printf("[INFO] Added schedule: %s on %v", entry.Time, entry.Days)
			writeJSON(w, http.StatusCreated, app.Engine.Entries())
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

type scheduleIndexRequest struct {
	Index int `json:"index"`
}

func scheduleMutationHandler(app *service.App, mutate func(int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		var req scheduleIndexRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Error parsing request body", http.StatusBadRequest)
			return
		}
		if err := mutate(req.Index); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := app.SaveSettings(); err != nil {
			log.Printf("[ERROR] Saving schedules: %v", err)
		}
		writeJSON(w, http.StatusOK, app.Engine.Entries())
	}
}

func ScheduleToggleHandler(app *service.App) http.HandlerFunc {
	return scheduleMutationHandler(app, app.Engine.Toggle)
}

func ScheduleDeleteHandler(app *service.App) http.HandlerFunc {
	return scheduleMutationHandler(app, app.Engine.Remove)
}

func ScheduleClearHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		app.Engine.Clear()
		if err := app.SaveSettings(); err != nil {
			log.Printf("[ERROR] Saving schedules: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}
}

type autoModeRequest struct {
	Enabled bool `json:"enabled"`
}

func AutoModeHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		var req autoModeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Error parsing request body", http.StatusBadRequest)
			return
		}
		app.Engine.SetAutoEnabled(req.Enabled)
		log.Printf("[INFO] Auto mode enabled=%v", req.Enabled)
		w.WriteHeader(http.StatusOK)
	}
}

func HistoryHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := history.ParseFilter(r.URL.Query().Get("filter"))
		writeJSON(w, http.StatusOK, app.History.Entries(f))
	}
}

func HistoryExportHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := app.History.Entries(history.FilterAll)
		filename := fmt.Sprintf("irrigation_history_%s.csv", time.Now().Format("20060102"))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		if err := history.WriteCSV(w, entries); err != nil {
			log.Printf("[ERROR] CSV export: %v", err)
		}
	}
}

func HistoryClearHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		app.ClearHistory()
		w.WriteHeader(http.StatusOK)
	}
}

func StatisticsHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := history.ParseFilter(r.URL.Query().Get("filter"))
		stats := app.History.Statistics(f, app.Settings().FlowRate)
		writeJSON(w, http.StatusOK, stats)
	}
}

// SettingsHandler returns (GET) or replaces (PUT) the user preferences.
func SettingsHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, app.Settings())
		case http.MethodPut:
			var s config.Settings
			if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
				http.Error(w, "Error parsing request body", http.StatusBadRequest)
				return
			}
			if err := app.UpdateSettings(s); err != nil {
				writeError(w, err)
				return
			}
			log.Println("[INFO] Settings saved")
			writeJSON(w, http.StatusOK, app.Settings())
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
