package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prite36/irrigation-control/internal/config"
	"github.com/prite36/irrigation-control/internal/server"
	"github.com/prite36/irrigation-control/internal/service"
)

func main() {
	log.Println("Starting application...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := service.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Connect at startup when a device target is configured. A failure is
	// surfaced but not fatal: the operator can reconnect through the API.
	switch {
	case cfg.Device.Kind == "serial" && cfg.Device.SerialPort != "":
		if err := app.ConnectSerial(cfg.Device.SerialPort, cfg.Device.SerialBaud); err != nil {
			log.Printf("Initial serial connect failed: %v", err)
		}
	case cfg.Device.Kind == "network" && cfg.Device.Host != "":
		if err := app.ConnectNetwork(cfg.Device.Host, cfg.Device.Port); err != nil {
			log.Printf("Initial network connect failed: %v", err)
		}
	}

	srv := server.New(cfg, app)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	// Blocks until SIGINT/SIGTERM, then shuts the core down.
	app.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("API server shutdown: %v", err)
	}

	log.Println("Application shutting down.")
}
