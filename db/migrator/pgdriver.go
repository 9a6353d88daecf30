package migrator

import (
	"errors"
	"hash/crc32"

	"cardcheck/db/pgw"
	"cardcheck/db/schema"
	"cardcheck/oops"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgDriver runs migrations over a single pgx connection. Advisory locks are session scoped, so the connection
// must stay acquired for the whole run.
type PgDriver struct {
	pgExecer
	conn   *pgw.Conn
	dbName string
}

var _ Driver = (*PgDriver)(nil)

func NewPgDriver(conn *pgw.Conn, dbName string) *PgDriver {
	return &PgDriver{
		pgExecer: pgExecer{conn},
		conn:     conn,
		dbName:   dbName,
	}
}

func (d *PgDriver) Dialect() schema.Dialect {
	return schema.Postgres{}
}

func (d *PgDriver) Begin() (Tx, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return nil, err
	}
	return &pgTx{
		pgExecer: pgExecer{tx},
		tx:       tx,
	}, nil
}

func (d *PgDriver) lockId(name string) int64 {
	dbNameHash := crc32.ChecksumIEEE([]byte(d.dbName + "/" + name))
	const migratorSalt = 2053462845
	return migratorSalt * int64(dbNameHash)
}

func (d *PgDriver) TryLock(name string) (bool, error) {
	lockRow := d.conn.QueryRow("select pg_try_advisory_lock($1)", d.lockId(name))
	var gotLock bool
	if err := lockRow.Scan(&gotLock); err != nil {
		return false, err
	}
	return gotLock, nil
}

func (d *PgDriver) Unlock(name string) error {
	row := d.conn.QueryRow("select pg_advisory_unlock($1)", d.lockId(name))
	var unlocked bool
	if err := row.Scan(&unlocked); err != nil {
		return err
	}
	if !unlocked {
		return oops.New("Failed to release advisory lock")
	}
	return nil
}

func (d *PgDriver) Hint(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	return pgHint(pgErr.Code)
}

func pgHint(code string) string {
	switch code {
	case pgerrcode.NotNullViolation:
		return "existing rows hold nulls, give the change a default to back-fill them"
	case pgerrcode.DuplicateColumn, pgerrcode.DuplicateTable, pgerrcode.DuplicateObject:
		return "the object already exists, the schema is ahead of the ledger"
	case pgerrcode.UndefinedColumn, pgerrcode.UndefinedTable, pgerrcode.UndefinedObject:
		return "the object does not exist, the schema is behind the ledger"
	case pgerrcode.InvalidTextRepresentation, pgerrcode.DatatypeMismatch, pgerrcode.CannotCoerce:
		return "existing values can't be converted to the new type"
	case pgerrcode.LockNotAvailable:
		return "another session holds a lock on the table"
	default:
		return ""
	}
}

type pgExecer struct {
	q pgw.Queryable
}

func (e pgExecer) Exec(sql string, args ...any) (int64, error) {
	tag, err := e.q.Exec(sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (e pgExecer) Query(sql string, args ...any) (schema.Rows, error) {
	rows, err := e.q.Query(sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type pgTx struct {
	pgExecer
	tx *pgw.Tx
}

func (t *pgTx) Commit() error {
	return t.tx.Commit()
}

func (t *pgTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return oops.Wrapf(err, "rollback error")
	}
	return nil
}
