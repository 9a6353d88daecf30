package schema

import (
	"fmt"
)

// MySQL commits implicitly around every DDL statement, so a record's changes and its ledger row can't be made
// atomic.
type MySQL struct{}

var _ Dialect = MySQL{}

func (MySQL) Name() string {
	return "mysql"
}

func (MySQL) TransactionalDDL() bool {
	return false
}

func (MySQL) Quote(ident string) string {
	return quoteWith(ident, "`")
}

func (MySQL) Placeholder(int) string {
	return "?"
}

func (MySQL) Literal(value any) (string, error) {
	return literal(value, "TRUE", "FALSE")
}

func (MySQL) ColumnType(t Type) string {
	switch t.Kind {
	case KindBoolean:
		return "BOOLEAN"
	case KindInteger:
		return "INT"
	case KindBigInt:
		return "BIGINT"
	case KindDouble:
		return "DOUBLE"
	case KindText:
		return "TEXT"
	case KindVarchar:
		return fmt.Sprintf("VARCHAR(%d)", t.Length)
	case KindTimestamp:
		return "DATETIME(6)"
	default:
		return t.String()
	}
}

func (MySQL) TableExistsQuery() string {
	return `
		select count(*) from information_schema.tables
		where table_schema = database() and table_name = ?
	`
}

func (d MySQL) Statements(_ Querier, c Change) ([]string, error) {
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
		if c.backfills() {
			backfill, err := backfillStatement(d, c)
			if err != nil {
				return nil, err
			}
			statements = append(statements, backfill)
		}
		// MODIFY COLUMN restates the whole column, an existing column default is dropped
		nullability := "NULL"
		if !c.NewNullable {
			nullability = "NOT NULL"
		}
		statements = append(statements, fmt.Sprintf(
			"ALTER TABLE %s MODIFY COLUMN %s %s %s",
			d.Quote(c.Table), d.Quote(c.Column), d.ColumnType(c.NewType), nullability,
		))
		return statements, nil
	case DropIndex:
		return []string{fmt.Sprintf("DROP INDEX %s ON %s", d.Quote(c.Name), d.Quote(c.Table))}, nil
	default:
		return nil, unsupportedChange(d, c)
	}
}
