// Package history persists operation outcomes to a local sqlite file
// so the panel can show what past batches, scans, and deletes did.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Operation is one recorded operation outcome.
type Operation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID string    `gorm:"index" json:"account_id"`
	Kind      string    `gorm:"index" json:"kind"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the sqlite-backed operation log.
type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.AutoMigrate(&Operation{}); err != nil {
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	return &Store{db: db}, nil
}

// Record stores one operation outcome. The summary is kept as JSON.
func (s *Store) Record(ctx context.Context, accountID, kind string, summary any) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	op := &Operation{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Summary:   string(payload),
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(op).Error; err != nil {
		return fmt.Errorf("record operation: %w", err)
	}
	return nil
}

// Recent returns the newest operations for an account, newest first.
func (s *Store) Recent(ctx context.Context, accountID string, limit int) ([]Operation, error) {
	if limit <= 0 {
		limit = 50
	}
	var ops []Operation
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&ops).Error
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return ops, nil
}
