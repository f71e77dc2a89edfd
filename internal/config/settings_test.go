package config

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/prite36/irrigation-control/internal/models"
)

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Missing settings file should yield defaults, got error: %v", err)
	}
	if !reflect.DeepEqual(s, DefaultSettings()) {
		t.Errorf("Expected defaults, got %+v", s)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	original := Settings{
		FlowRate:             2.5,
		DefaultDuration:      15,
		MaxDuration:          90,
		SoundAlert:           false,
		AutoStopOnDisconnect: true,
		Schedules: []models.ScheduleEntry{
			{Time: "08:00", Duration: 10, Days: []string{"Mon", "Wed"}, Mode: models.ModeWater, Repeat: true, Active: true},
			{Time: "18:30", Duration: 45, Days: []string{"Sun"}, Mode: models.ModeWaterAndFertilizer, Repeat: false, Active: false},
		},
	}

	if err := SaveSettings(path, original); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	reloaded, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}

	if !reflect.DeepEqual(reloaded, original) {
		t.Errorf("Round trip changed the settings.\n got: %+v\nwant: %+v", reloaded, original)
	}
}
