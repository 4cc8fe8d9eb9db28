package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/colonyops/refine/internal/data/db"
	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	busyRetries = 3
	busyWait    = 50 * time.Millisecond
)

// IsBusyError returns true if the error is a SQLITE_BUSY error.
func IsBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_BUSY
	}
	return false
}

// IsCorruptionError returns true if the error indicates database corruption.
func IsCorruptionError(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "database disk image is malformed") ||
		strings.Contains(msg, "file is not a database")
}

// IsNotFoundError returns true if the error is a "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// retryBusy runs fn again while it fails with SQLITE_BUSY, backing off
// between attempts. Other errors are returned immediately.
func retryBusy(ctx context.Context, fn func() error) error {
	wait := busyWait
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !IsBusyError(err) || attempt == busyRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
}

// RecoverFromCorruption moves a corrupted database and its WAL and SHM
// companions aside as <name>.corrupt.<timestamp> so a fresh database can be
// created. Missing files are ignored.
func RecoverFromCorruption(dataDir string, now time.Time) (string, error) {
	dbPath := filepath.Join(dataDir, db.FileName)
	backupPath := fmt.Sprintf("%s.corrupt.%s", dbPath, now.Format("20060102-150405"))

	// The WAL and SHM files must not outlive the database they belong to,
	// or SQLite replays them into the new file.
	for _, suffix := range []string{"", "-wal", "-shm"} {
		err := os.Rename(dbPath+suffix, backupPath+suffix)
		if err == nil || os.IsNotExist(err) {
			continue
		}
		if suffix == "" {
			return "", fmt.Errorf("failed to backup corrupted database: %w", err)
		}
		if rmErr := os.Remove(dbPath + suffix); rmErr != nil && !os.IsNotExist(rmErr) {
			return "", fmt.Errorf("failed to backup or remove %s file: %w", strings.TrimPrefix(suffix, "-"), err)
		}
	}

	return backupPath, nil
}

// Open opens the database in dataDir. A corrupted database is moved aside
// once and a new one is created in its place; the session history it held
// is then only available from the backup file.
func Open(dataDir string, opts db.OpenOptions, log zerolog.Logger) (*db.DB, error) {
	database, err := db.Open(dataDir, opts)
	if err == nil || !IsCorruptionError(err) {
		return database, err
	}

	backup, recErr := RecoverFromCorruption(dataDir, time.Now())
	if recErr != nil {
		return nil, errors.Join(err, recErr)
	}
	log.Warn().Err(err).Str("backup", backup).Msg("database corrupted, starting with a fresh one")

	return db.Open(dataDir, opts)
}
