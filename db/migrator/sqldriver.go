package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cardcheck/db/schema"
	"cardcheck/oops"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLDriver runs migrations over a single database/sql connection. MySQL locks with GET_LOCK, other engines
// with a row in a "<name>_lock" table. A lock row left behind by a crashed process is removed with BreakLock.
type SQLDriver struct {
	sqlExecer
	conn    *sql.Conn
	dialect schema.Dialect
	owner   string
}

var _ Driver = (*SQLDriver)(nil)

// NewSQLDriver wraps conn. Statements are not cancelled with ctx, only its values are kept.
func NewSQLDriver(ctx context.Context, conn *sql.Conn, dialect schema.Dialect) *SQLDriver {
	ctx = context.WithoutCancel(ctx)
	return &SQLDriver{
		sqlExecer: sqlExecer{ctx: ctx, q: conn},
		conn:      conn,
		dialect:   dialect,
		owner:     uuid.NewString(),
	}
}

func (d *SQLDriver) Dialect() schema.Dialect {
	return d.dialect
}

func (d *SQLDriver) Begin() (Tx, error) {
	tx, err := d.conn.BeginTx(d.ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{
		sqlExecer: sqlExecer{ctx: d.ctx, q: tx},
		tx:        tx,
	}, nil
}

func (d *SQLDriver) TryLock(name string) (bool, error) {
	if _, ok := d.dialect.(schema.MySQL); ok {
		var gotLock sql.NullInt64
		err := d.conn.QueryRowContext(d.ctx, "select get_lock(?, 0)", mysqlLockName(name)).Scan(&gotLock)
		if err != nil {
			return false, err
		}
		return gotLock.Valid && gotLock.Int64 == 1, nil
	}

	if err := d.ensureLockTable(name); err != nil {
		if isBusy(err) {
			return false, nil
		}
		return false, err
	}
	lockTable := d.dialect.Quote(name + "_lock")

	// Polling stays read-only while someone else holds the lock, a write here could deadlock with the holder's
	// transaction on sqlite.
	held, err := d.queryCount(fmt.Sprintf("select count(*) from %s where id = 1", lockTable))
	if err != nil {
		if isBusy(err) {
			return false, nil
		}
		return false, err
	}
	if held > 0 {
		return false, nil
	}

	affected, err := d.Exec(fmt.Sprintf(
		"insert into %s (id, owner, acquired_at) select 1, %s, %s where not exists (select 1 from %s where id = 1)",
		lockTable, d.dialect.Placeholder(1), d.dialect.Placeholder(2), lockTable,
	), d.owner, time.Now().UTC())
	if err != nil {
		if isBusy(err) || isConstraintViolation(err) {
			return false, nil
		}
		return false, err
	}
	return affected == 1, nil
}

func (d *SQLDriver) queryCount(query string, args ...any) (int64, error) {
	var count int64
	if err := d.conn.QueryRowContext(d.ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (d *SQLDriver) ensureLockTable(name string) error {
	exists, err := d.queryCount(d.dialect.TableExistsQuery(), name+"_lock")
	if err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}
	statements, err := d.dialect.Statements(d, schema.CreateTable{
		Table: name + "_lock",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Integer, PrimaryKey: true},
			{Name: "owner", Type: schema.Varchar(64)},
			{Name: "acquired_at", Type: schema.Timestamp},
		},
		IfNotExists: true,
	})
	if err != nil {
		return err
	}
	for _, statement := range statements {
		if _, err := d.Exec(statement); err != nil {
			return err
		}
	}
	return nil
}

func (d *SQLDriver) Unlock(name string) error {
	if _, ok := d.dialect.(schema.MySQL); ok {
		var released sql.NullInt64
		err := d.conn.QueryRowContext(d.ctx, "select release_lock(?)", mysqlLockName(name)).Scan(&released)
		if err != nil {
			return err
		}
		if !released.Valid || released.Int64 != 1 {
			return oops.New("Failed to release named lock")
		}
		return nil
	}

	affected, err := d.Exec(fmt.Sprintf(
		"delete from %s where id = 1 and owner = %s", d.dialect.Quote(name+"_lock"), d.dialect.Placeholder(1),
	), d.owner)
	if err != nil {
		return err
	}
	if affected != 1 {
		return oops.Newf("Failed to release lock row, got %d rows", affected)
	}
	return nil
}

var _ LockBreaker = (*SQLDriver)(nil)

// BreakLock deletes the lock row regardless of its owner. MySQL named locks die with their session and are never
// broken.
func (d *SQLDriver) BreakLock(name string) (bool, error) {
	if _, ok := d.dialect.(schema.MySQL); ok {
		return false, nil
	}
	exists, err := d.queryCount(d.dialect.TableExistsQuery(), name+"_lock")
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}
	affected, err := d.Exec(fmt.Sprintf("delete from %s where id = 1", d.dialect.Quote(name+"_lock")))
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// mysql lock names are limited to 64 characters
func mysqlLockName(name string) string {
	lockName := "cardcheck:" + name
	if len(lockName) > 64 {
		lockName = lockName[:64]
	}
	return lockName
}

func (d *SQLDriver) Hint(err error) string {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1138, 1263:
			return "existing rows hold nulls, give the change a default to back-fill them"
		case 1050, 1060, 1061:
			return "the object already exists, the schema is ahead of the ledger"
		case 1054, 1091, 1146:
			return "the object does not exist, the schema is behind the ledger"
		case 1292, 1366:
			return "existing values can't be converted to the new type"
		default:
			return ""
		}
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return "existing rows hold nulls, give the change a default to back-fill them"
		case sqliteErr.Code()&0xff == sqlite3.SQLITE_BUSY:
			return "the database is locked by another connection"
		case strings.Contains(sqliteErr.Error(), "duplicate column name"),
			strings.Contains(sqliteErr.Error(), "already exists"):
			return "the object already exists, the schema is ahead of the ledger"
		case strings.Contains(sqliteErr.Error(), "no such"):
			return "the object does not exist, the schema is behind the ledger"
		}
	}
	return ""
}

func isBusy(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

type sqlQueryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqlExecer struct {
	ctx context.Context
	q   sqlQueryable
}

func (e sqlExecer) Exec(query string, args ...any) (int64, error) {
	result, err := e.q.ExecContext(e.ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (e sqlExecer) Query(query string, args ...any) (schema.Rows, error) {
	rows, err := e.q.QueryContext(e.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	_ = r.Rows.Close()
}

type sqlTx struct {
	sqlExecer
	tx *sql.Tx
}

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return oops.Wrapf(err, "rollback error")
	}
	return nil
}
