package db

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var embedded embed.FS

// ErrSchemaDrift is returned when an applied migration no longer matches the
// embedded SQL it was recorded from.
var ErrSchemaDrift = errors.New("schema drift")

// Migration is one schema step. Checksum covers the up SQL and is recorded
// when the step is applied.
type Migration struct {
	Version  int
	Name     string
	Up       string
	Down     string
	Checksum string
}

var migrationFile = regexp.MustCompile(`^(\d{4})_([a-z0-9_]+)\.(up|down)\.sql$`)

// readMigrations parses NNNN_name.{up,down}.sql files from the migrations
// directory of fsys. Every version needs both halves.
func readMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		m := migrationFile.FindStringSubmatch(entry.Name())
		if m == nil {
			return nil, fmt.Errorf("migration %q: expected NNNN_name.up.sql or NNNN_name.down.sql", entry.Name())
		}
		version, _ := strconv.Atoi(m[1])
		if version == 0 {
			return nil, fmt.Errorf("migration %q: version must be positive", entry.Name())
		}

		body, err := fs.ReadFile(fsys, "migrations/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: m[2]}
			byVersion[version] = mig
		}
		if mig.Name != m[2] {
			return nil, fmt.Errorf("migration %04d: names %q and %q disagree", version, mig.Name, m[2])
		}

		half := &mig.Up
		if m[3] == "down" {
			half = &mig.Down
		}
		if *half != "" {
			return nil, fmt.Errorf("migration %04d: duplicate %s file", version, m[3])
		}
		*half = string(body)
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.Up == "" || mig.Down == "" {
			return nil, fmt.Errorf("migration %04d: needs both up and down files", mig.Version)
		}
		sum := sha256.Sum256([]byte(mig.Up))
		mig.Checksum = hex.EncodeToString(sum[:])
		migrations = append(migrations, *mig)
	}

	slices.SortFunc(migrations, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}

type appliedMigration struct {
	name     string
	checksum string
}

// migrateUp applies pending migrations in order. Applied migrations whose
// checksum differs from the embedded SQL fail with ErrSchemaDrift.
func migrateUp(ctx context.Context, conn *sql.DB) error {
	migrations, err := readMigrations(embedded)
	if err != nil {
		return err
	}

	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if rec, ok := applied[m.Version]; ok {
			if rec.checksum != m.Checksum {
				return fmt.Errorf("%w: migration %04d (%s) changed after it was applied", ErrSchemaDrift, m.Version, rec.name)
			}
			continue
		}

		log.Debug().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")
		err := inTx(ctx, conn, m.Up,
			"INSERT INTO schema_migrations (version, name, checksum, applied_at) VALUES (?, ?, ?, ?)",
			m.Version, m.Name, m.Checksum, time.Now().UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("migration %04d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// MigrateDown reverts the newest n applied migrations.
func MigrateDown(ctx context.Context, conn *sql.DB, n int) error {
	if n <= 0 {
		return fmt.Errorf("n must be positive, got %d", n)
	}

	migrations, err := readMigrations(embedded)
	if err != nil {
		return err
	}

	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return err
	}

	var revert []Migration
	for _, m := range slices.Backward(migrations) {
		if _, ok := applied[m.Version]; ok {
			revert = append(revert, m)
		}
	}
	if n > len(revert) {
		return fmt.Errorf("cannot revert %d migrations, %d applied", n, len(revert))
	}

	for _, m := range revert[:n] {
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("reverting migration")
		if err := inTx(ctx, conn, m.Down, "DELETE FROM schema_migrations WHERE version = ?", m.Version); err != nil {
			return fmt.Errorf("revert migration %04d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := db.conn.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

func appliedMigrations(ctx context.Context, conn *sql.DB) (map[int]appliedMigration, error) {
	_, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			checksum   TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := conn.QueryContext(ctx, "SELECT version, name, checksum FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]appliedMigration)
	for rows.Next() {
		var (
			v   int
			rec appliedMigration
		)
		if err := rows.Scan(&v, &rec.name, &rec.checksum); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[v] = rec
	}
	return applied, rows.Err()
}

// inTx runs script and one bookkeeping statement atomically.
func inTx(ctx context.Context, conn *sql.DB, script, stmt string, args ...any) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("execute script: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}
