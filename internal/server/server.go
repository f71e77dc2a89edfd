package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/rs/cors"

	"github.com/prite36/irrigation-control/internal/config"
	"github.com/prite36/irrigation-control/internal/service"
)

type StatusResponse struct {
	Environment string `json:"environment"`
	Status      string `json:"status"`
	Connected   bool   `json:"connected"`
	Link        string `json:"link,omitempty"`
	AutoMode    bool   `json:"autoMode"`
}

// New creates the HTTP control surface: the presentation layer talks to the
// core exclusively through these endpoints.
func New(cfg *config.Config, app *service.App) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "OK")
	})

	mux.HandleFunc("/api/v1/connect", ConnectHandler(app))
	mux.HandleFunc("/api/v1/disconnect", DisconnectHandler(app))
	mux.HandleFunc("/api/v1/ports", PortsHandler())

	mux.HandleFunc("/api/v1/watering/start", StartWateringHandler(app))
	mux.HandleFunc("/api/v1/watering/stop", StopWateringHandler(app))
	mux.HandleFunc("/api/v1/watering/test", TestSequenceHandler(app))
	mux.HandleFunc("/api/v1/session", SessionHandler(app))

	mux.HandleFunc("/api/v1/schedules", SchedulesHandler(app))
	mux.HandleFunc("/api/v1/schedules/toggle", ScheduleToggleHandler(app))
	mux.HandleFunc("/api/v1/schedules/delete", ScheduleDeleteHandler(app))
	mux.HandleFunc("/api/v1/schedules/clear", ScheduleClearHandler(app))
	mux.HandleFunc("/api/v1/auto", AutoModeHandler(app))

	mux.HandleFunc("/api/v1/history", HistoryHandler(app))
	mux.HandleFunc("/api/v1/history/export", HistoryExportHandler(app))
	mux.HandleFunc("/api/v1/history/clear", HistoryClearHandler(app))
	mux.HandleFunc("/api/v1/statistics", StatisticsHandler(app))

	mux.HandleFunc("/api/v1/settings", SettingsHandler(app))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		env := os.Getenv("APP_ENV")
		if env == "" {
			env = "development"
		}

		response := StatusResponse{
			Environment: env,
			Status:      "ok",
			Connected:   app.Connected(),
			Link:        app.LinkDescription(),
			AutoMode:    app.Engine.AutoEnabled(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	})

	addr := cfg.Server.Addr
	log.Printf("API Server configured to listen on %s", addr)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
	})
	handler := c.Handler(mux)

	return &http.Server{
		Addr:    addr,
		Handler: handler,
	}
}
