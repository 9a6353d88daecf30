package schema

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	_ = r.Rows.Close()
}

type sqlQuerier struct {
	db *sql.DB
}

func (q sqlQuerier) Query(query string, args ...any) (Rows, error) {
	rows, err := q.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func execAll(t *testing.T, db *sql.DB, statements []string) {
	t.Helper()
	for _, statement := range statements {
		_, err := db.Exec(statement)
		require.NoError(t, err, statement)
	}
}

func TestSQLiteRebuildRoundTrip(t *testing.T) {
	db := openSQLite(t)
	d := SQLite{}
	q := sqlQuerier{db}

	statements, err := d.Statements(q, cardTable)
	require.NoError(t, err)
	execAll(t, db, statements)
	statements, err = d.Statements(q, CreateIndex{Table: "Card", Name: "index_card_on_name", Columns: []string{"Name"}})
	require.NoError(t, err)
	execAll(t, db, statements)

	_, err = db.Exec(`insert into "Card" ("Id", "Name", "SetCode", "IsCommander") values (1, 'Atraxa', 'ONE', 1)`)
	require.NoError(t, err)
	_, err = db.Exec(`insert into "Card" ("Id", "Name", "SetCode", "IsCommander") values (2, 'Sol Ring', 'C21', null)`)
	require.Error(t, err)

	statements, err = d.Statements(q, makeIsCommanderNullable)
	require.NoError(t, err)
	require.Len(t, statements, 5)
	execAll(t, db, statements)

	_, err = db.Exec(`insert into "Card" ("Id", "Name", "SetCode", "IsCommander") values (2, 'Sol Ring', 'C21', null)`)
	require.NoError(t, err)

	statements, err = d.Statements(q, makeIsCommanderNotNull)
	require.NoError(t, err)
	execAll(t, db, statements)

	var isCommander bool
	err = db.QueryRow(`select "IsCommander" from "Card" where "Id" = 2`).Scan(&isCommander)
	require.NoError(t, err)
	require.False(t, isCommander)
	err = db.QueryRow(`select "IsCommander" from "Card" where "Id" = 1`).Scan(&isCommander)
	require.NoError(t, err)
	require.True(t, isCommander)

	_, err = db.Exec(`insert into "Card" ("Id", "Name", "SetCode", "IsCommander") values (3, 'Mox', 'LEA', null)`)
	require.Error(t, err)

	var indexCount int
	err = db.QueryRow(
		`select count(*) from sqlite_master where type = 'index' and name = 'index_card_on_name' and tbl_name = 'Card'`,
	).Scan(&indexCount)
	require.NoError(t, err)
	require.Equal(t, 1, indexCount)

	var leftovers int
	err = db.QueryRow(`select count(*) from sqlite_master where name like '%__cardcheck_rebuild'`).Scan(&leftovers)
	require.NoError(t, err)
	require.Equal(t, 0, leftovers)
}

func TestSQLiteRebuildMissingColumn(t *testing.T) {
	db := openSQLite(t)
	d := SQLite{}
	q := sqlQuerier{db}

	_, err := d.Statements(q, makeIsCommanderNullable)
	require.ErrorContains(t, err, "does not exist")

	statements, err := d.Statements(q, CreateTable{
		Table: "Card", Columns: []Column{{Name: "Id", Type: BigInt, PrimaryKey: true}},
	})
	require.NoError(t, err)
	execAll(t, db, statements)

	_, err = d.Statements(q, makeIsCommanderNullable)
	require.ErrorContains(t, err, "column Card.IsCommander does not exist")
}

func TestSQLiteAlterNeedsQuerier(t *testing.T) {
	_, err := SQLite{}.Statements(nil, makeIsCommanderNullable)
	require.Error(t, err)
}
