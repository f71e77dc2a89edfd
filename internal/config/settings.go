package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prite36/irrigation-control/internal/models"
)

// Settings are the user-adjustable preferences plus the schedule list,
// persisted together as one JSON document.
type Settings struct {
	FlowRate             float64                `json:"flowRate"` // liters per minute
	DefaultDuration      int                    `json:"defaultDuration"`
	MaxDuration          int                    `json:"maxDuration"`
	SoundAlert           bool                   `json:"soundAlert"`
	AutoStopOnDisconnect bool                   `json:"autoStop"`
	Schedules            []models.ScheduleEntry `json:"schedules"`
}

// DefaultSettings matches the factory defaults of the control panel.
func DefaultSettings() Settings {
	return Settings{
		FlowRate:             1,
		DefaultDuration:      10,
		MaxDuration:          60,
		SoundAlert:           true,
		AutoStopOnDisconnect: true,
	}
}

// LoadSettings reads the settings document. A missing file is not an error:
// defaults are returned so first launch works without setup.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}
	s := DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes the settings document.
func SaveSettings(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings %s: %w", path, err)
	}
	return nil
}
