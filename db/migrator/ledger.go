package migrator

import (
	"fmt"
	"time"

	"cardcheck/db/schema"
	"cardcheck/oops"
)

// LedgerEntry is a row of the ledger table. AppliedAt is nil while a record is being applied or reverted on an
// engine without transactional DDL.
type LedgerEntry struct {
	Version   string
	AppliedAt *time.Time
}

func (e LedgerEntry) InFlight() bool {
	return e.AppliedAt == nil
}

type ledger struct {
	dialect schema.Dialect
	table   string
}

func newLedger(dialect schema.Dialect, table string) ledger {
	return ledger{
		dialect: dialect,
		table:   table,
	}
}

func (l ledger) definition() schema.CreateTable {
	return schema.CreateTable{
		Table: l.table,
		Columns: []schema.Column{
			{Name: "version", Type: schema.Varchar(64), PrimaryKey: true},
			{Name: "applied_at", Type: schema.Timestamp, Nullable: true},
		},
		IfNotExists: true,
	}
}

func (l ledger) exists(q Execer) (bool, error) {
	rows, err := q.Query(l.dialect.TableExistsQuery(), l.table)
	if err != nil {
		return false, oops.Wrap(err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return false, oops.Wrap(err)
		}
	}
	if err := rows.Err(); err != nil {
		return false, oops.Wrap(err)
	}
	return count > 0, nil
}

func (l ledger) ensure(q Execer) error {
	statements, err := l.dialect.Statements(q, l.definition())
	if err != nil {
		return oops.Wrap(err)
	}
	for _, statement := range statements {
		if _, err := q.Exec(statement); err != nil {
			return oops.Wrapf(err, "create ledger table %s", l.table)
		}
	}
	return nil
}

// read returns the ledger ordered by version, or nothing if the table doesn't exist yet.
func (l ledger) read(q Execer) ([]LedgerEntry, error) {
	exists, err := l.exists(q)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	rows, err := q.Query(fmt.Sprintf(
		"select version, applied_at from %s order by version asc", l.dialect.Quote(l.table),
	))
	if err != nil {
		return nil, oops.Wrap(err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var version string
		var appliedAtRaw any
		if err := rows.Scan(&version, &appliedAtRaw); err != nil {
			return nil, oops.Wrap(err)
		}
		appliedAt, err := parseAppliedAt(appliedAtRaw)
		if err != nil {
			return nil, oops.Wrapf(err, "ledger version %s", version)
		}
		entries = append(entries, LedgerEntry{
			Version:   version,
			AppliedAt: appliedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Wrap(err)
	}
	return entries, nil
}

func (l ledger) insert(q Execer, version string, appliedAt *time.Time) error {
	var appliedAtArg any
	if appliedAt != nil {
		appliedAtArg = *appliedAt
	}
	_, err := q.Exec(fmt.Sprintf(
		"insert into %s (version, applied_at) values (%s, %s)",
		l.dialect.Quote(l.table), l.dialect.Placeholder(1), l.dialect.Placeholder(2),
	), version, appliedAtArg)
	return oops.Wrap(err)
}

func (l ledger) markApplied(q Execer, version string, appliedAt time.Time) error {
	affected, err := q.Exec(fmt.Sprintf(
		"update %s set applied_at = %s where version = %s",
		l.dialect.Quote(l.table), l.dialect.Placeholder(1), l.dialect.Placeholder(2),
	), appliedAt, version)
	if err != nil {
		return oops.Wrap(err)
	}
	if affected != 1 {
		return oops.Newf("Expected to update a single ledger row, got %d", affected)
	}
	return nil
}

// appliedAt returns the timestamp of an applied version, an error if the ledger doesn't have it.
func (l ledger) appliedAt(q Execer, version string) (*time.Time, error) {
	rows, err := q.Query(fmt.Sprintf(
		"select applied_at from %s where version = %s", l.dialect.Quote(l.table), l.dialect.Placeholder(1),
	), version)
	if err != nil {
		return nil, oops.Wrap(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, oops.Wrap(err)
		}
		return nil, oops.Newf("Ledger has no row for version %s", version)
	}
	var appliedAtRaw any
	if err := rows.Scan(&appliedAtRaw); err != nil {
		return nil, oops.Wrap(err)
	}
	appliedAt, err := parseAppliedAt(appliedAtRaw)
	if err != nil {
		return nil, oops.Wrapf(err, "ledger version %s", version)
	}
	if appliedAt == nil {
		return nil, oops.Newf("Ledger row for version %s is in flight", version)
	}
	return appliedAt, nil
}

func (l ledger) markInFlight(q Execer, version string) error {
	affected, err := q.Exec(fmt.Sprintf(
		"update %s set applied_at = null where version = %s",
		l.dialect.Quote(l.table), l.dialect.Placeholder(1),
	), version)
	if err != nil {
		return oops.Wrap(err)
	}
	if affected != 1 {
		return oops.Newf("Expected to update a single ledger row, got %d", affected)
	}
	return nil
}

func (l ledger) remove(q Execer, version string) error {
	affected, err := q.Exec(fmt.Sprintf(
		"delete from %s where version = %s", l.dialect.Quote(l.table), l.dialect.Placeholder(1),
	), version)
	if err != nil {
		return oops.Wrap(err)
	}
	if affected != 1 {
		return oops.Newf("Expected to delete a single ledger row, got %d", affected)
	}
	return nil
}

var appliedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func parseAppliedAt(raw any) (*time.Time, error) {
	var text string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &v, nil
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return nil, fmt.Errorf("unexpected applied_at of type %T", raw)
	}

	for _, layout := range appliedAtLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("can't parse applied_at %q", text)
}
