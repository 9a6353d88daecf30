package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"cardcheck/db/migrator"
	"cardcheck/db/schema"
	"cardcheck/log"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestRegistry(t *testing.T) {
	registry := Registry()
	require.Equal(t, len(All()), registry.Len())
	require.Equal(t, makeIsCommanderNullable.Version, registry.Latest())
	for _, m := range registry.All() {
		require.True(t, m.Reversible(), m.String())
	}
}

func TestAllApplyAndRevertOnSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cardcheck.db")
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_txlock=immediate", path))
	require.NoError(t, err)
	defer db.Close()
	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	runner := migrator.NewRunner(
		Registry(), migrator.NewSQLDriver(ctx, conn, schema.SQLite{}), migrator.Options{Logger: log.New(io.Discard)},
	)
	applied, err := runner.ApplyPending(ctx, "")
	require.NoError(t, err)
	require.Len(t, applied, len(All()))
	require.NoError(t, runner.EnsureLatest(ctx))

	_, err = conn.ExecContext(ctx, `insert into "Card" ("Id", "Name", "SetCode", "IsCommander", "CreatedAt") values (1, 'Atraxa', 'ONE', null, '2024-11-12 00:00:00')`)
	require.NoError(t, err)

	reverted, err := runner.RevertTo(ctx, "")
	require.NoError(t, err)
	require.Len(t, reverted, len(All()))

	applied, err = runner.ApplyPending(ctx, "")
	require.NoError(t, err)
	require.Len(t, applied, len(All()))
}
