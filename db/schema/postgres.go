package schema

import (
	"fmt"
	"strconv"
)

type Postgres struct{}

var _ Dialect = Postgres{}

func (Postgres) Name() string {
	return "postgres"
}

func (Postgres) TransactionalDDL() bool {
	return true
}

func (Postgres) Quote(ident string) string {
	return quoteWith(ident, `"`)
}

func (Postgres) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (Postgres) Literal(value any) (string, error) {
	return literal(value, "true", "false")
}

func (Postgres) ColumnType(t Type) string {
	switch t.Kind {
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindBigInt:
		return "bigint"
	case KindDouble:
		return "double precision"
	case KindText:
		return "text"
	case KindVarchar:
		return fmt.Sprintf("varchar(%d)", t.Length)
	case KindTimestamp:
		return "timestamp without time zone"
	default:
		return t.String()
	}
}

func (Postgres) TableExistsQuery() string {
	return `
		select count(*) from information_schema.tables
		where table_schema = current_schema() and table_name = $1
	`
}

func (d Postgres) Statements(_ Querier, c Change) ([]string, error) {
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
		table := d.Quote(c.Table)
		column := d.Quote(c.Column)
		if c.TypeChanged() {
			statements = append(statements, fmt.Sprintf(
				"ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
				table, column, d.ColumnType(c.NewType), column, d.ColumnType(c.NewType),
			))
		}
		if c.backfills() {
			backfill, err := backfillStatement(d, c)
			if err != nil {
				return nil, err
			}
			statements = append(statements, backfill)
		}
		if c.Narrows() {
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", table, column))
		} else if c.Widens() {
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", table, column))
		}
		return statements, nil
	case DropIndex:
		return []string{fmt.Sprintf("DROP INDEX %s", d.Quote(c.Name))}, nil
	default:
		return nil, unsupportedChange(d, c)
	}
}
