package schema

import (
	"fmt"
	"strings"
)

// Change is one declarative schema operation. The set of implementations is closed, dialects translate each of
// them into DDL.
type Change interface {
	Describe() string
	validate() error
}

type CreateTable struct {
	Table       string
	Columns     []Column
	IfNotExists bool
}

type DropTable struct {
	Table string
}

type AddColumn struct {
	Table  string
	Column Column
}

type DropColumn struct {
	Table  string
	Column string
}

// AlterColumn changes the type and/or nullability of a column. Old* fields describe the column before the
// change. Default is only used when narrowing a nullable column to non-nullable: existing nulls are set to it
// before the constraint is added.
type AlterColumn struct {
	Table       string
	Column      string
	OldType     Type
	OldNullable bool
	NewType     Type
	NewNullable bool
	Default     any
}

type CreateIndex struct {
	Table   string
	Name    string
	Columns []string
	Unique  bool
}

type DropIndex struct {
	Table string
	Name  string
}

func Validate(c Change) error {
	if c == nil {
		return fmt.Errorf("nil change")
	}
	return normalize(c).validate()
}

func (c CreateTable) Describe() string {
	return fmt.Sprintf("create table %s", c.Table)
}

func (c CreateTable) validate() error {
	if c.Table == "" {
		return fmt.Errorf("create table: table name is empty")
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("create table %s: no columns", c.Table)
	}
	seen := make(map[string]bool)
	for _, column := range c.Columns {
		if err := column.validate(); err != nil {
			return fmt.Errorf("create table %s: %w", c.Table, err)
		}
		if seen[column.Name] {
			return fmt.Errorf("create table %s: duplicate column %s", c.Table, column.Name)
		}
		seen[column.Name] = true
	}
	return nil
}

func (c CreateTable) primaryKey() []string {
	var names []string
	for _, column := range c.Columns {
		if column.PrimaryKey {
			names = append(names, column.Name)
		}
	}
	return names
}

func (c DropTable) Describe() string {
	return fmt.Sprintf("drop table %s", c.Table)
}

func (c DropTable) validate() error {
	if c.Table == "" {
		return fmt.Errorf("drop table: table name is empty")
	}
	return nil
}

func (c AddColumn) Describe() string {
	return fmt.Sprintf("add column %s.%s", c.Table, c.Column.Name)
}

func (c AddColumn) validate() error {
	if c.Table == "" {
		return fmt.Errorf("add column: table name is empty")
	}
	if err := c.Column.validate(); err != nil {
		return fmt.Errorf("add column to %s: %w", c.Table, err)
	}
	if c.Column.PrimaryKey {
		return fmt.Errorf("add column %s.%s: can't add a primary key column", c.Table, c.Column.Name)
	}
	return nil
}

func (c DropColumn) Describe() string {
	return fmt.Sprintf("drop column %s.%s", c.Table, c.Column)
}

func (c DropColumn) validate() error {
	if c.Table == "" || c.Column == "" {
		return fmt.Errorf("drop column: table and column names are required")
	}
	return nil
}

func (c AlterColumn) Describe() string {
	return fmt.Sprintf(
		"alter column %s.%s from %s to %s",
		c.Table, c.Column, describeType(c.OldType, c.OldNullable), describeType(c.NewType, c.NewNullable),
	)
}

func describeType(t Type, nullable bool) string {
	if nullable {
		return t.String() + " null"
	}
	return t.String() + " not null"
}

func (c AlterColumn) validate() error {
	if c.Table == "" || c.Column == "" {
		return fmt.Errorf("alter column: table and column names are required")
	}
	if err := c.OldType.validate(); err != nil {
		return fmt.Errorf("alter column %s.%s: old type: %w", c.Table, c.Column, err)
	}
	if err := c.NewType.validate(); err != nil {
		return fmt.Errorf("alter column %s.%s: new type: %w", c.Table, c.Column, err)
	}
	if !c.TypeChanged() && c.OldNullable == c.NewNullable {
		return fmt.Errorf("alter column %s.%s: nothing changes", c.Table, c.Column)
	}
	return nil
}

func (c AlterColumn) TypeChanged() bool {
	return c.OldType != c.NewType
}

// Narrows reports whether the column goes from nullable to non-nullable.
func (c AlterColumn) Narrows() bool {
	return c.OldNullable && !c.NewNullable
}

func (c AlterColumn) Widens() bool {
	return !c.OldNullable && c.NewNullable
}

// backfills reports whether existing nulls need to be replaced with Default before NOT NULL is set.
func (c AlterColumn) backfills() bool {
	return c.Narrows() && c.Default != nil
}

func (c CreateIndex) Describe() string {
	return fmt.Sprintf("create index %s on %s (%s)", c.Name, c.Table, strings.Join(c.Columns, ", "))
}

func (c CreateIndex) validate() error {
	if c.Table == "" || c.Name == "" {
		return fmt.Errorf("create index: table and index names are required")
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("create index %s: no columns", c.Name)
	}
	return nil
}

func (c DropIndex) Describe() string {
	return fmt.Sprintf("drop index %s", c.Name)
}

func (c DropIndex) validate() error {
	if c.Table == "" || c.Name == "" {
		return fmt.Errorf("drop index: table and index names are required")
	}
	return nil
}

func normalize(c Change) Change {
	switch c := c.(type) {
	case *CreateTable:
		return *c
	case *DropTable:
		return *c
	case *AddColumn:
		return *c
	case *DropColumn:
		return *c
	case *AlterColumn:
		return *c
	case *CreateIndex:
		return *c
	case *DropIndex:
		return *c
	default:
		return c
	}
}
