package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Querier is what a dialect may need to inspect the current schema while planning a change.
type Querier interface {
	Query(sql string, args ...any) (Rows, error)
}

type Dialect interface {
	Name() string
	// TransactionalDDL reports whether DDL statements roll back with the surrounding transaction.
	TransactionalDDL() bool
	Quote(ident string) string
	// Placeholder is the bind parameter for the n-th argument, starting at 1.
	Placeholder(n int) string
	Literal(value any) (string, error)
	ColumnType(t Type) string
	// TableExistsQuery takes the table name as its only argument and returns a count.
	TableExistsQuery() string
	Statements(q Querier, c Change) ([]string, error)
}

func quoteWith(ident string, quote string) string {
	return quote + strings.ReplaceAll(ident, quote, quote+quote) + quote
}

func literal(value any, trueText, falseText string) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if v {
			return trueText, nil
		}
		return falseText, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case time.Time:
		return "'" + v.UTC().Format("2006-01-02 15:04:05.999999") + "'", nil
	default:
		return "", fmt.Errorf("unsupported literal of type %T", value)
	}
}

func columnDefinition(d Dialect, column Column) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", d.Quote(column.Name), d.ColumnType(column.Type))
	if !column.Nullable {
		b.WriteString(" NOT NULL")
	}
	if column.Default != nil {
		lit, err := d.Literal(column.Default)
		if err != nil {
			return "", fmt.Errorf("default of %s: %w", column.Name, err)
		}
		fmt.Fprintf(&b, " DEFAULT %s", lit)
	}
	return b.String(), nil
}

func quoteAll(d Dialect, idents []string) string {
	quoted := make([]string, len(idents))
	for i, ident := range idents {
		quoted[i] = d.Quote(ident)
	}
	return strings.Join(quoted, ", ")
}

func createTableStatement(d Dialect, c CreateTable) (string, error) {
	var defs []string
	for _, column := range c.Columns {
		def, err := columnDefinition(d, column)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}
	if pk := c.primaryKey(); len(pk) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", quoteAll(d, pk)))
	}

	ifNotExists := ""
	if c.IfNotExists {
		ifNotExists = "IF NOT EXISTS "
	}
	return fmt.Sprintf("CREATE TABLE %s%s (%s)", ifNotExists, d.Quote(c.Table), strings.Join(defs, ", ")), nil
}

func createIndexStatement(d Dialect, c CreateIndex) string {
	unique := ""
	if c.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf(
		"CREATE %sINDEX %s ON %s (%s)", unique, d.Quote(c.Name), d.Quote(c.Table), quoteAll(d, c.Columns),
	)
}

func backfillStatement(d Dialect, c AlterColumn) (string, error) {
	lit, err := d.Literal(c.Default)
	if err != nil {
		return "", fmt.Errorf("default of %s.%s: %w", c.Table, c.Column, err)
	}
	return fmt.Sprintf(
		"UPDATE %s SET %s = %s WHERE %s IS NULL", d.Quote(c.Table), d.Quote(c.Column), lit, d.Quote(c.Column),
	), nil
}

// commonStatements handles the changes that every dialect spells the same way, modulo quoting. ok is false for
// changes the dialect has to handle itself.
func commonStatements(d Dialect, c Change) (statements []string, ok bool, err error) {
	switch c := c.(type) {
	case CreateTable:
		statement, err := createTableStatement(d, c)
		if err != nil {
			return nil, true, err
		}
		return []string{statement}, true, nil
	case DropTable:
		return []string{fmt.Sprintf("DROP TABLE %s", d.Quote(c.Table))}, true, nil
	case AddColumn:
		def, err := columnDefinition(d, c.Column)
		if err != nil {
			return nil, true, err
		}
		return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.Quote(c.Table), def)}, true, nil
	case DropColumn:
		return []string{
			fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.Quote(c.Table), d.Quote(c.Column)),
		}, true, nil
	case CreateIndex:
		return []string{createIndexStatement(d, c)}, true, nil
	default:
		return nil, false, nil
	}
}

func unsupportedChange(d Dialect, c Change) error {
	return fmt.Errorf("%s: unsupported change %T", d.Name(), c)
}
