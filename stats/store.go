package stats

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// CachedResponse is one upstream payload persisted locally.
type CachedResponse struct {
	Endpoint  string `gorm:"primaryKey"`
	Body      []byte `gorm:"not null"`
	FetchedAt time.Time
}

// Store is the sqlite-backed response cache.
type Store struct {
	db *gorm.DB
}

// OpenStore opens (or creates) the cache database. Use ":memory:" in tests.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("stats store path required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open stats store: %w", err)
	}
	if err := db.AutoMigrate(&CachedResponse{}); err != nil {
		return nil, fmt.Errorf("migrate stats store: %w", err)
	}
	return &Store{db: db}, nil
}

// Save upserts the payload for an endpoint.
func (s *Store) Save(endpoint string, body []byte, fetchedAt time.Time) error {
	row := CachedResponse{Endpoint: endpoint, Body: body, FetchedAt: fetchedAt}
	return s.db.Save(&row).Error
}

// Load returns the cached payload for an endpoint, if any.
func (s *Store) Load(endpoint string) (*CachedResponse, error) {
	var row CachedResponse
	err := s.db.First(&row, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
