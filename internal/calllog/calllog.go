/* SPDX-License-Identifier: MPL-2.0 */

// Package calllog keeps a local record of placed calls so history
// works offline.
package calllog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/securedash/dialer-go-sdk/calling"
)

// Entry is one recorded call attempt.
type Entry struct {
	ID              uint   `gorm:"primarykey"`
	CallID          string `gorm:"index"`
	PhoneNumber     string
	ContactName     string
	CloseReason     string
	DurationSeconds int
	StartedAt       time.Time
	CreatedAt       time.Time
}

// Store wraps the sqlite call log.
type Store struct {
	db *gorm.DB
}

// Open opens or creates the call log at path and runs migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create call log directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open call log: %w", err)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate call log: %w", err)
	}

	return &Store{db: db}, nil
}

// Record appends the outcome of a finished session.
func (s *Store) Record(final calling.CallSession, startedAt time.Time, contactName string) error {
	entry := Entry{
		CallID:          final.SessionID,
		PhoneNumber:     final.Target,
		ContactName:     contactName,
		CloseReason:     string(final.CloseReason),
		DurationSeconds: final.ElapsedSeconds,
		StartedAt:       startedAt,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record call: %w", err)
	}
	return nil
}

// Recent returns the latest limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []Entry
	if err := s.db.Order("started_at desc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to read call log: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
