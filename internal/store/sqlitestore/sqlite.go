// Package sqlitestore is the default Store backend: gorm over SQLite via
// glebarez/sqlite (pure-Go, no cgo), using AutoMigrate, a pooled *sql.DB,
// CreateInBatches, and a transactional cascade delete.
package sqlitestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/himanishpuri/audiofp/internal/fperrors"
	"github.com/himanishpuri/audiofp/internal/store"
)

// recordingRow and fingerprintRow are the gorm-mapped tables.
type recordingRow struct {
	ID              uint32 `gorm:"primaryKey;autoIncrement"`
	Title           string
	Artist          string
	Album           *string
	DurationSeconds *float64
	SourceRef       string
	CreatedAt       time.Time
}

type fingerprintRow struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Hash        uint64 `gorm:"index:idx_hash"`
	RecordingID uint32 `gorm:"index:idx_recording_time,priority:1"`
	TimeOffset  float64 `gorm:"index:idx_recording_time,priority:2"`
}

type queryRow struct {
	ID                    uint64 `gorm:"primaryKey;autoIncrement"`
	AudioDuration         float64
	IdentifiedRecordingID *uint32
	Confidence            *float64
	ProcessingTimeMs      float64
	CreatedAt             time.Time
}

// Store implements store.Store over SQLite.
type Store struct {
	db *gorm.DB
}

// Open creates (or opens) a SQLite database at dbPath and runs migrations.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&recordingRow{}, &fingerprintRow{}, &queryRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) RegisterRecording(ctx context.Context, rec store.Recording) (uint32, error) {
	row := recordingRow{
		Title:           rec.Title,
		Artist:          rec.Artist,
		Album:           rec.Album,
		DurationSeconds: rec.DurationSeconds,
		SourceRef:       rec.SourceRef,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("creating recording: %w", err)
	}
	return row.ID, nil
}

// Ingest writes fingerprints in batches of at most store.BatchInsertSize,
// never holding the full list in one transaction.
func (s *Store) Ingest(ctx context.Context, recordingID uint32, fingerprints []store.Fingerprint) error {
	for _, chunk := range store.ChunkFingerprints(fingerprints, store.BatchInsertSize) {
		rows := make([]fingerprintRow, len(chunk))
		for i, fp := range chunk {
			rows[i] = fingerprintRow{Hash: fp.Hash, RecordingID: recordingID, TimeOffset: fp.TimeOffset}
		}
		if err := s.db.WithContext(ctx).CreateInBatches(rows, store.BatchInsertSize).Error; err != nil {
			return fmt.Errorf("batch insert fingerprints: %w", err)
		}
	}
	return nil
}

// Lookup probes hashes in chunks of at most store.LookupChunkSize and
// concatenates results. The idx_hash index keeps each chunk's scan
// proportional to matched rows, not table size.
func (s *Store) Lookup(ctx context.Context, hashes []uint64) ([]store.Posting, error) {
	var out []store.Posting
	for _, chunk := range store.ChunkHashes(hashes, store.LookupChunkSize) {
		var rows []fingerprintRow
		if err := s.db.WithContext(ctx).Where("hash IN ?", chunk).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("querying fingerprints: %w", err)
		}
		for _, r := range rows {
			out = append(out, store.Posting{
				RecordingID:      r.RecordingID,
				StoredTimeOffset: r.TimeOffset,
				Hash:             r.Hash,
			})
		}
	}
	return out, nil
}

// DeleteRecording cascades fingerprints and the recording row inside one
// transaction so a reader never sees a partially-deleted recording.
func (s *Store) DeleteRecording(ctx context.Context, recordingID uint32) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recording_id = ?", recordingID).Delete(&fingerprintRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", recordingID).Delete(&recordingRow{}).Error
	})
}

func (s *Store) GetRecording(ctx context.Context, recordingID uint32) (*store.Recording, error) {
	var row recordingRow
	if err := s.db.WithContext(ctx).First(&row, recordingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("recording %d: %w", recordingID, fperrors.ErrRecordingNotFound)
		}
		return nil, err
	}
	return toRecording(row), nil
}

func (s *Store) ListRecordings(ctx context.Context) ([]store.Recording, error) {
	var rows []recordingRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]store.Recording, len(rows))
	for i, r := range rows {
		out[i] = *toRecording(r)
	}
	return out, nil
}

func (s *Store) FingerprintCount(ctx context.Context, recordingID uint32) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&fingerprintRow{}).Where("recording_id = ?", recordingID).Count(&count).Error
	return count, err
}

func (s *Store) RecordQuery(ctx context.Context, q store.QueryLog) error {
	row := queryRow{
		AudioDuration:         q.AudioDuration,
		IdentifiedRecordingID: q.IdentifiedRecordingID,
		Confidence:            q.Confidence,
		ProcessingTimeMs:      q.ProcessingTimeMs,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats

	if err := s.db.WithContext(ctx).Model(&recordingRow{}).Count(&stats.RecordingCount).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&fingerprintRow{}).Count(&stats.FingerprintCount).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&queryRow{}).Count(&stats.QueryCount).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&queryRow{}).Where("identified_recording_id IS NOT NULL").
		Count(&stats.SuccessfulQueryCount).Error; err != nil {
		return stats, err
	}

	var avg float64
	row := s.db.WithContext(ctx).Model(&queryRow{}).Select("AVG(processing_time_ms)").Row()
	if row != nil {
		_ = row.Scan(&avg)
	}
	stats.AverageProcessingTimeMs = avg

	return stats, nil
}

func toRecording(r recordingRow) *store.Recording {
	return &store.Recording{
		ID:              r.ID,
		Title:           r.Title,
		Artist:          r.Artist,
		Album:           r.Album,
		DurationSeconds: r.DurationSeconds,
		SourceRef:       r.SourceRef,
	}
}

