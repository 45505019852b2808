// Package journal keeps an append-only record of read invocations in SQLite.
package journal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/atinylittleshell/pageread/internal/readtool"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Journal records every read in a SQLite database.
type Journal struct {
	db            *gorm.DB
	schemaVersion string
	logger        *zap.Logger
}

// Entry is one recorded read.
type Entry struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`

	Path         string `gorm:"index"`
	ResolvedPath string `gorm:"index"`
	StartOffset  int
	LineLimit    int
	// Kind is the failure kind, empty for a successful read.
	Kind        string
	TruncatedBy string
	OutputLines int
	TotalLines  int
	NextOffset  int
	DurationMs  int64
}

const (
	journalSchemaVersion = 1
)

// Open opens or creates the journal database at dbFilePath, migrating the schema when
// the version marker next to it is missing or stale.
func Open(dbFilePath string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dbFileExists := true
	if _, err := os.Stat(dbFilePath); errors.Is(err, os.ErrNotExist) {
		dbFileExists = false
	} else if err != nil {
		return nil, fmt.Errorf("error checking journal db: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dbFilePath), 0755); err != nil {
		return nil, fmt.Errorf("error creating journal directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbFilePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening journal db: %w", err)
	}

	// SQLite allows one writer; serialize instead of failing with "database is locked".
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	j := &Journal{
		db:            db,
		schemaVersion: filepath.Join(filepath.Dir(dbFilePath), "journal_schema_version"),
		logger:        logger,
	}

	if j.needsMigration(dbFileExists) {
		logger.Info("migrating journal schema", zap.String("path", dbFilePath))
		if err := db.AutoMigrate(&Entry{}); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("error auto-migrating journal schema: %w", err)
		}
		if err := j.writeSchemaVersion(journalSchemaVersion); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("error writing journal schema version: %w", err)
		}
	}

	return j, nil
}

func (j *Journal) needsMigration(dbFileExists bool) bool {
	if !dbFileExists {
		return true
	}

	versionMatches, err := j.schemaVersionMatches()
	if err != nil || !versionMatches {
		return true
	}

	// The marker can outlive the table if the database was edited by hand.
	return !j.db.Migrator().HasTable(&Entry{})
}

func (j *Journal) writeSchemaVersion(version int) error {
	return os.WriteFile(j.schemaVersion, []byte(strconv.Itoa(version)), 0644)
}

func (j *Journal) schemaVersionMatches() (bool, error) {
	data, err := os.ReadFile(j.schemaVersion)
	if err != nil {
		return false, err
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, err
	}
	if version != journalSchemaVersion {
		return false, fmt.Errorf("journal schema version mismatch: got %d, want %d", version, journalSchemaVersion)
	}
	return true, nil
}

// Record appends event. It satisfies readtool.Recorder.
func (j *Journal) Record(ctx context.Context, event readtool.Event) error {
	entry := Entry{
		Path:         event.Path,
		ResolvedPath: event.ResolvedPath,
		StartOffset:  event.Offset,
		LineLimit:    event.Limit,
		Kind:         string(event.Kind),
		TruncatedBy:  string(event.TruncatedBy),
		OutputLines:  event.OutputLines,
		TotalLines:   event.TotalLines,
		NextOffset:   event.NextOffset,
		DurationMs:   event.Duration.Milliseconds(),
	}

	return j.db.WithContext(ctx).Create(&entry).Error
}

// Recent returns the last limit entries, oldest first. limit <= 0 returns every entry.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	return j.recent(j.db, limit)
}

// ForPath returns the last limit entries for path, oldest first. path matches either
// the path as requested or the resolved absolute path.
func (j *Journal) ForPath(path string, limit int) ([]Entry, error) {
	return j.recent(j.db.Where("path = ? OR resolved_path = ?", path, path), limit)
}

func (j *Journal) recent(db *gorm.DB, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	var entries []Entry
	result := db.Order("created_at desc").Order("id desc").Limit(limit).Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	slices.Reverse(entries)
	return entries, nil
}

// Reset deletes every entry.
func (j *Journal) Reset() error {
	return j.db.Exec("DELETE FROM entries").Error
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Succeeded reports whether the recorded read returned content.
func (e Entry) Succeeded() bool {
	return e.Kind == ""
}

// Duration returns the recorded wall time of the read.
func (e Entry) Duration() time.Duration {
	return time.Duration(e.DurationMs) * time.Millisecond
}
