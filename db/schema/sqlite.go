package schema

import (
	"fmt"
	"strings"
)

type SQLite struct{}

var _ Dialect = SQLite{}

const rebuildSuffix = "__cardcheck_rebuild"

func (SQLite) Name() string {
	return "sqlite"
}

func (SQLite) TransactionalDDL() bool {
	return true
}

func (SQLite) Quote(ident string) string {
	return quoteWith(ident, `"`)
}

func (SQLite) Placeholder(int) string {
	return "?"
}

func (SQLite) Literal(value any) (string, error) {
	return literal(value, "1", "0")
}

func (SQLite) ColumnType(t Type) string {
	switch t.Kind {
	case KindBoolean:
		return "BOOLEAN"
	case KindInteger, KindBigInt:
		return "INTEGER"
	case KindDouble:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindVarchar:
		return fmt.Sprintf("VARCHAR(%d)", t.Length)
	case KindTimestamp:
		return "TIMESTAMP"
	default:
		return t.String()
	}
}

func (SQLite) TableExistsQuery() string {
	return `select count(*) from sqlite_master where type = 'table' and name = ?`
}

func (d SQLite) Statements(q Querier, c Change) ([]string, error) {
	c = normalize(c)
	if err := c.validate(); err != nil {
		return nil, err
	}
	statements, ok, err := commonStatements(d, c)
	if ok {
		return statements, err
	}

	switch c := c.(type) {
	case AlterColumn:
		return d.rebuildStatements(q, c)
	case DropIndex:
		return []string{fmt.Sprintf("DROP INDEX %s", d.Quote(c.Name))}, nil
	default:
		return nil, unsupportedChange(d, c)
	}
}

type sqliteColumn struct {
	name      string
	typ       string
	notNull   bool
	dfltValue *string
	pk        int64
}

// rebuildStatements alters a column the only way sqlite allows: create a new table with the altered definition,
// copy the rows, drop the old table and rename the new one into place. Indexes are recreated from their stored
// sql. Foreign keys, checks and triggers declared on the table are not carried over.
func (d SQLite) rebuildStatements(q Querier, c AlterColumn) ([]string, error) {
	if q == nil {
		return nil, fmt.Errorf("sqlite: altering %s.%s needs a connection to inspect the table", c.Table, c.Column)
	}

	columns, err := d.tableColumns(q, c.Table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("sqlite: table %s does not exist", c.Table)
	}
	indexSqls, err := d.indexSqls(q, c.Table)
	if err != nil {
		return nil, err
	}

	found := false
	var defs, pk, names, selects []string
	for _, column := range columns {
		quoted := d.Quote(column.name)
		names = append(names, quoted)
		if column.pk > 0 {
			pk = append(pk, quoted)
		}

		typ := column.typ
		notNull := column.notNull
		selectExpr := quoted
		if column.name == c.Column {
			found = true
			typ = d.ColumnType(c.NewType)
			notNull = !c.NewNullable
			if c.backfills() {
				lit, err := d.Literal(c.Default)
				if err != nil {
					return nil, fmt.Errorf("default of %s.%s: %w", c.Table, c.Column, err)
				}
				selectExpr = fmt.Sprintf("COALESCE(%s, %s)", quoted, lit)
			}
		}
		selects = append(selects, selectExpr)

		var b strings.Builder
		b.WriteString(quoted)
		if typ != "" {
			fmt.Fprintf(&b, " %s", typ)
		}
		if notNull {
			b.WriteString(" NOT NULL")
		}
		if column.dfltValue != nil {
			fmt.Fprintf(&b, " DEFAULT %s", *column.dfltValue)
		}
		defs = append(defs, b.String())
	}
	if !found {
		return nil, fmt.Errorf("sqlite: column %s.%s does not exist", c.Table, c.Column)
	}
	if len(pk) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}

	table := d.Quote(c.Table)
	rebuilt := d.Quote(c.Table + rebuildSuffix)
	statements := []string{
		fmt.Sprintf("CREATE TABLE %s (%s)", rebuilt, strings.Join(defs, ", ")),
		fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM %s",
			rebuilt, strings.Join(names, ", "), strings.Join(selects, ", "), table,
		),
		fmt.Sprintf("DROP TABLE %s", table),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", rebuilt, table),
	}
	statements = append(statements, indexSqls...)
	return statements, nil
}

func (d SQLite) tableColumns(q Querier, table string) ([]sqliteColumn, error) {
	rows, err := q.Query(`select name, type, "notnull", dflt_value, pk from pragma_table_info(?) order by cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []sqliteColumn
	for rows.Next() {
		var column sqliteColumn
		var notNull int64
		var dflt any
		if err := rows.Scan(&column.name, &column.typ, &notNull, &dflt, &column.pk); err != nil {
			return nil, err
		}
		column.notNull = notNull != 0
		switch v := dflt.(type) {
		case string:
			column.dfltValue = &v
		case []byte:
			s := string(v)
			column.dfltValue = &s
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return columns, nil
}

func (d SQLite) indexSqls(q Querier, table string) ([]string, error) {
	rows, err := q.Query(
		`select sql from sqlite_master where type = 'index' and tbl_name = ? and sql is not null order by name`,
		table,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sqls []string
	for rows.Next() {
		var sql string
		if err := rows.Scan(&sql); err != nil {
			return nil, err
		}
		sqls = append(sqls, sql)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sqls, nil
}
