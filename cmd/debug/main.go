// Debug utility: connects to the configured device, runs the valve test
// sequence once, and exits. Useful for verifying wiring without the API.
package main

import (
	"log"

	"github.com/prite36/irrigation-control/internal/config"
	"github.com/prite36/irrigation-control/internal/device"
	"github.com/prite36/irrigation-control/internal/service"
)

func main() {
	log.Println("Starting debug run...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ports, err := device.ListPorts()
	if err != nil {
		log.Printf("Listing serial ports failed: %v", err)
	} else {
		log.Printf("Serial ports found: %v", ports)
	}

	app, err := service.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	switch cfg.Device.Kind {
	case "serial":
		err = app.ConnectSerial(cfg.Device.SerialPort, cfg.Device.SerialBaud)
	case "network":
		err = app.ConnectNetwork(cfg.Device.Host, cfg.Device.Port)
	default:
		log.Fatalf("Unknown device kind %q", cfg.Device.Kind)
	}
	if err != nil {
		log.Fatalf("Failed to connect to device: %v", err)
	}

	log.Println("Executing valve test sequence...")
	if err := app.TestSequence(); err != nil {
		log.Printf("Test sequence failed: %v", err)
	}

	if err := app.Disconnect(); err != nil {
		log.Printf("Disconnect: %v", err)
	}
	log.Println("Debug run finished.")
}
