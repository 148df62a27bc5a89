// Package history keeps a local record of every notification the agent has
// seen, so the list survives restarts and can be inspected offline. The
// server stays authoritative: polling and realtime events upsert into this
// store, never the other way around.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fustanlabs/fustan-sync/internal/client"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is one notification as persisted locally.
type Record struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"index"`
	Type      string `gorm:"index"`
	Title     string
	Message   string
	IsRead    bool
	ActionURL string
	CreatedAt time.Time
	SeenAt    time.Time `gorm:"autoUpdateTime"`
}

// Store persists notification records in a local SQLite database.
type Store struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewStore opens (creating if needed) the history database at path.
func NewStore(logger *zap.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate history database: %w", err)
	}

	return &Store{
		logger: logger.Named("history"),
		db:     db,
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Upsert writes the given notifications for userID, overwriting existing
// records with the same ID. The server copy always wins.
func (s *Store) Upsert(ctx context.Context, userID int64, notifications []client.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	records := make([]Record, 0, len(notifications))
	for _, n := range notifications {
		records = append(records, Record{
			ID:        n.ID,
			UserID:    userID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			IsRead:    n.IsRead,
			ActionURL: n.ActionURL,
			CreatedAt: n.CreatedAt,
		})
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&records).Error
}

// MarkRead flips a single record to read. Missing records are not an error;
// the poll that follows will insert the authoritative copy.
func (s *Store) MarkRead(ctx context.Context, userID, id int64) error {
	return s.db.WithContext(ctx).
		Model(&Record{}).
		Where("user_id = ? AND id = ?", userID, id).
		Update("is_read", true).Error
}

// MarkAllRead flips every record for userID to read.
func (s *Store) MarkAllRead(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).
		Model(&Record{}).
		Where("user_id = ?", userID).
		Update("is_read", true).Error
}

// List returns the newest records for userID, most recent first.
func (s *Store) List(ctx context.Context, userID int64, limit int) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// UnreadTally counts the unread records for userID.
func (s *Store) UnreadTally(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
