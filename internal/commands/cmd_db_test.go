package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/colonyops/refine/internal/data/db"
	"github.com/colonyops/refine/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func TestDBCmd(t *testing.T) {
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		root := &cli.Command{Name: "refine", Writer: &out}
		root = NewDBCmd(&Flags{}, &engine.App{DB: database}).Register(root)
		require.NoError(t, root.Run(context.Background(), append([]string{"refine", "db"}, args...)))
		return out.String()
	}

	assert.Equal(t, "Schema version 2\n", run("version"))
	assert.Contains(t, run("revert"), "schema version 1")
	assert.Equal(t, "Schema version 1\n", run("version"))

	_, err = database.Conn().ExecContext(context.Background(), "SELECT 1 FROM versions LIMIT 0")
	require.Error(t, err, "versions table is reverted")
}
