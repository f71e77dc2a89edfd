package history

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/prite36/irrigation-control/internal/models"
)

// Store mirrors history entries into Postgres so the record survives
// restarts. The in-memory Log stays authoritative for in-process filters and
// statistics; the store is best-effort and callers log its failures.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the schema and returns a store bound to db.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&models.HistoryEntry{}); err != nil {
		return nil, fmt.Errorf("migrate watering history: %w", err)
	}
	return &Store{db: db}, nil
}

// Save persists one entry.
func (s *Store) Save(entry *models.HistoryEntry) error {
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("save history entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := s.db.Order("timestamp desc").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("load history entries: %w", err)
	}
	return entries, nil
}

// Clear deletes every persisted entry, matching the in-memory bulk clear.
func (s *Store) Clear() error {
	if err := s.db.Where("1 = 1").Delete(&models.HistoryEntry{}).Error; err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
