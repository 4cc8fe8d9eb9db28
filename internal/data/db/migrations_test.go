package db

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(t.TempDir(), DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestOpen_AppliesEmbeddedMigrations(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	migrations, err := readMigrations(embedded)
	require.NoError(t, err)

	v, err := database.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, v)

	for _, table := range []string{"sessions", "versions"} {
		_, err := database.Conn().ExecContext(ctx, "SELECT 1 FROM "+table+" LIMIT 0")
		require.NoError(t, err, "table %s", table)
	}

	require.NoError(t, migrateUp(ctx, database.Conn()), "second run is a no-op")
}

func TestMigrateUp_DetectsDrift(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	_, err := database.Conn().ExecContext(ctx, "UPDATE schema_migrations SET checksum = 'edited' WHERE version = 1")
	require.NoError(t, err)

	err = migrateUp(ctx, database.Conn())
	require.ErrorIs(t, err, ErrSchemaDrift)
}

func TestMigrateDown(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	conn := database.Conn()

	_, err := conn.ExecContext(ctx, `
		INSERT INTO sessions (id, name, slug, language, state, current_version, created_at, updated_at)
		VALUES ('s1', 'Physics', 'physics', 'cpp', 'active', 1, 1, 1)
	`)
	require.NoError(t, err)

	require.NoError(t, MigrateDown(ctx, conn, 1))

	_, err = conn.ExecContext(ctx, "SELECT 1 FROM versions LIMIT 0")
	require.Error(t, err, "versions is dropped")

	var count int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count))
	assert.Equal(t, 1, count)

	v, err := database.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, migrateUp(ctx, conn), "reverted step applies again")
}

func TestMigrateDown_Bounds(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	require.Error(t, MigrateDown(ctx, database.Conn(), 0))
	require.Error(t, MigrateDown(ctx, database.Conn(), -1))
	require.Error(t, MigrateDown(ctx, database.Conn(), 3))
}

func TestReadMigrations(t *testing.T) {
	file := func(s string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(s)} }

	tests := []struct {
		name    string
		files   fstest.MapFS
		want    []int
		wantErr string
	}{
		{
			name: "sorted by version",
			files: fstest.MapFS{
				"migrations/0002_versions.up.sql":   file("CREATE TABLE b (x);"),
				"migrations/0002_versions.down.sql": file("DROP TABLE b;"),
				"migrations/0001_sessions.up.sql":   file("CREATE TABLE a (x);"),
				"migrations/0001_sessions.down.sql": file("DROP TABLE a;"),
			},
			want: []int{1, 2},
		},
		{
			name: "missing down",
			files: fstest.MapFS{
				"migrations/0001_sessions.up.sql": file("CREATE TABLE a (x);"),
			},
			wantErr: "needs both up and down",
		},
		{
			name: "bad name",
			files: fstest.MapFS{
				"migrations/1_sessions.up.sql": file("CREATE TABLE a (x);"),
			},
			wantErr: "expected NNNN_name",
		},
		{
			name: "zero version",
			files: fstest.MapFS{
				"migrations/0000_init.up.sql": file("CREATE TABLE a (x);"),
			},
			wantErr: "must be positive",
		},
		{
			name: "names disagree",
			files: fstest.MapFS{
				"migrations/0001_sessions.up.sql": file("CREATE TABLE a (x);"),
				"migrations/0001_other.down.sql":  file("DROP TABLE a;"),
			},
			wantErr: "disagree",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readMigrations(tt.files)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			versions := make([]int, len(got))
			for i, m := range got {
				versions[i] = m.Version
				assert.Len(t, m.Checksum, 64)
			}
			assert.Equal(t, tt.want, versions)
		})
	}
}
