// Package localcache is the device-local favorites cache: one table keyed
// by recipe id, each row holding an opaque serialized snapshot.
//
// # Layers
//
//	Backend   key/blob primitives (Upsert, Delete, SelectAll)
//	├── Store   gorm + sqlite, the persistent table
//	└── Memory  in-process map, used when the database fails
//	Cache     typed FavoriteRecipe access on top of a Backend, with
//	          fallback to Memory on storage errors
package localcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned by Get when no row exists for the key.
var ErrNotFound = errors.New("localcache: entry not found")

// Record is one row of the favorites table.
type Record struct {
	ID        string    `gorm:"primaryKey;size:128"`
	Data      string    `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (Record) TableName() string {
	return "favorites"
}

// Backend is the key/blob contract of the embedded store.
type Backend interface {
	Upsert(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) ([]byte, error)
	SelectAll(ctx context.Context) ([]Record, error)
}

// Store is the sqlite-backed Backend.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite file at path and migrates the
// favorites table.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_journal=WAL&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}
	return NewStore(db)
}

// NewStore wraps an existing connection and migrates the favorites table.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate local cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Upsert inserts or overwrites the blob stored under key.
func (s *Store) Upsert(ctx context.Context, key string, blob []byte) error {
	rec := Record{ID: key, Data: string(blob), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&rec).Error
}

// Delete removes the row for key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("id = ?", key).Delete(&Record{}).Error
}

// Get returns the blob stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("id = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(rec.Data), nil
}

// SelectAll returns every row ordered by key.
func (s *Store) SelectAll(ctx context.Context) ([]Record, error) {
	var recs []Record
	err := s.db.WithContext(ctx).Order("id ASC").Find(&recs).Error
	return recs, err
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
