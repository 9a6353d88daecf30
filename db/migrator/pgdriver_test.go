//go:build testing

package migrator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"cardcheck/config"
	"cardcheck/db/pgw"
	"cardcheck/db/schema"
	"cardcheck/log"
	"cardcheck/oops"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/stretchr/testify/require"
)

// openPgDriver connects to the test database and points the session at a fresh schema that is dropped after the
// test.
func openPgDriver(t *testing.T, pool *pgw.Pool, schemaName string) *PgDriver {
	t.Helper()
	conn, err := pool.AcquireBackground()
	oops.RequireNoError(t, err)
	t.Cleanup(conn.Release)
	_, err = conn.Exec(fmt.Sprintf(`set search_path to "%s"`, schemaName))
	oops.RequireNoError(t, err)
	return NewPgDriver(conn, config.Cfg.DB.DBName)
}

func openPgPool(t *testing.T) (*pgw.Pool, string) {
	t.Helper()
	ctx := context.Background()
	pool, err := pgw.NewPool(ctx, config.Cfg.DB.DSN())
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	t.Cleanup(pool.Close)
	conn, err := pool.AcquireBackground()
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	defer conn.Release()

	schemaName := "cardcheck_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = conn.Exec(fmt.Sprintf(`create schema "%s"`, schemaName))
	oops.RequireNoError(t, err)
	t.Cleanup(func() {
		conn, err := pool.AcquireBackground()
		if err != nil {
			return
		}
		defer conn.Release()
		_, _ = conn.Exec(fmt.Sprintf(`drop schema "%s" cascade`, schemaName))
	})
	return pool, schemaName
}

func TestPgApplyAndRevert(t *testing.T) {
	pool, schemaName := openPgPool(t)
	driver := openPgDriver(t, pool, schemaName)
	runner := newTestRunner(t, driver, Options{}, createCards, addManaValue, makeIsCommanderNullable)
	ctx := context.Background()

	applied, err := runner.ApplyPending(ctx, "")
	oops.RequireNoError(t, err)
	require.Len(t, applied, 3)

	_, err = driver.Exec(`insert into "Card" ("Id", "Name", "IsCommander") values (1, 'Sol Ring', null)`)
	oops.RequireNoError(t, err)

	reverted, err := runner.RevertTo(ctx, createCards.Version)
	oops.RequireNoError(t, err)
	require.Equal(t, []string{makeIsCommanderNullable.Version, addManaValue.Version}, reverted)

	var isCommander bool
	err = driver.conn.QueryRow(`select "IsCommander" from "Card" where "Id" = 1`).Scan(&isCommander)
	oops.RequireNoError(t, err)
	require.False(t, isCommander)
}

func TestPgFailureRollsBackRecord(t *testing.T) {
	pool, schemaName := openPgPool(t)
	driver := openPgDriver(t, pool, schemaName)
	failing := Migration{
		Version: "20241110090000",
		Name:    "AddManaValueAndDropLegacyPrices",
		Up: []schema.Change{
			schema.AddColumn{Table: "Card", Column: schema.Column{Name: "ManaValue", Type: schema.Integer, Nullable: true}},
			schema.DropTable{Table: "LegacyPrice"},
		},
		Down: []schema.Change{},
	}
	runner := newTestRunner(t, driver, Options{}, createCards, failing)

	applied, err := runner.ApplyPending(context.Background(), "")
	require.ErrorIs(t, err, ErrSchemaChangeFailed)
	require.Equal(t, []string{createCards.Version}, applied)
	require.Equal(t, []string{createCards.Version}, appliedVersions(t, runner))

	migErr, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, pgHint(pgerrcode.UndefinedTable), migErr.Hint)

	var columnCount int
	err = driver.conn.QueryRow(`
		select count(*) from information_schema.columns
		where table_schema = current_schema() and table_name = 'Card' and column_name = 'ManaValue'
	`).Scan(&columnCount)
	oops.RequireNoError(t, err)
	require.Equal(t, 0, columnCount)
}

func TestPgRunnerBusy(t *testing.T) {
	pool, schemaName := openPgPool(t)
	holder := openPgDriver(t, pool, schemaName)
	gotLock, err := holder.TryLock(DefaultLedgerTable)
	oops.RequireNoError(t, err)
	require.True(t, gotLock)

	runner := newTestRunner(
		t, openPgDriver(t, pool, schemaName),
		Options{LockTimeout: 50 * time.Millisecond, LockPollInterval: 10 * time.Millisecond, Logger: log.New(io.Discard)},
		createCards,
	)
	_, err = runner.ApplyPending(context.Background(), "")
	require.ErrorIs(t, err, ErrRunnerBusy)

	oops.RequireNoError(t, holder.Unlock(DefaultLedgerTable))
	applied, err := runner.ApplyPending(context.Background(), "")
	oops.RequireNoError(t, err)
	require.Equal(t, []string{createCards.Version}, applied)
}
