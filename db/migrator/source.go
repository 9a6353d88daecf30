package migrator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"cardcheck/db/schema"
	"cardcheck/oops"

	"gopkg.in/yaml.v3"
)

var migrationFileRegex = regexp.MustCompile(`^(\d{14})_([A-Za-z_][A-Za-z0-9_]*)\.ya?ml$`)

// LoadDir reads migrations from files named <version>_<Name>.yaml in dir. Other files are ignored, a yaml file
// with a malformed name is an error.
func LoadDir(dir string) ([]Migration, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, oops.Wrap(err)
	}

	var names []string
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			continue
		}
		ext := filepath.Ext(dirEntry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, dirEntry.Name())
	}
	sort.Strings(names)

	var migrations []Migration
	for _, name := range names {
		match := migrationFileRegex.FindStringSubmatch(name)
		if match == nil {
			return nil, oops.Newf("migration file name must look like <version>_<Name>.yaml: %s", name)
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, oops.Wrap(err)
		}
		m, err := ParseMigration(match[1], match[2], data)
		if err != nil {
			return nil, oops.Wrapf(err, "%s", name)
		}
		migrations = append(migrations, m)
	}
	return migrations, nil
}

type migrationFile struct {
	Up   []changeNode  `yaml:"up"`
	Down *[]changeNode `yaml:"down"`
}

type changeNode struct {
	CreateTable *createTableNode `yaml:"create_table"`
	DropTable   *tableNode       `yaml:"drop_table"`
	AddColumn   *addColumnNode   `yaml:"add_column"`
	DropColumn  *columnRefNode   `yaml:"drop_column"`
	AlterColumn *alterColumnNode `yaml:"alter_column"`
	CreateIndex *indexNode       `yaml:"create_index"`
	DropIndex   *indexNode       `yaml:"drop_index"`
}

type tableNode struct {
	Table string `yaml:"table"`
}

type columnNode struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Nullable   bool   `yaml:"nullable"`
	Default    any    `yaml:"default"`
	PrimaryKey bool   `yaml:"primary_key"`
}

type createTableNode struct {
	Table   string       `yaml:"table"`
	Columns []columnNode `yaml:"columns"`
}

type addColumnNode struct {
	Table  string     `yaml:"table"`
	Column columnNode `yaml:"column"`
}

type columnRefNode struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

type alterColumnNode struct {
	Table       string `yaml:"table"`
	Column      string `yaml:"column"`
	OldType     string `yaml:"old_type"`
	OldNullable bool   `yaml:"old_nullable"`
	NewType     string `yaml:"new_type"`
	NewNullable bool   `yaml:"new_nullable"`
	Default     any    `yaml:"default"`
}

type indexNode struct {
	Table   string   `yaml:"table"`
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique"`
}

// ParseMigration decodes a yaml migration body. Each item of up and down is a map with a single key naming the
// change kind. A missing down leaves the migration irreversible.
func ParseMigration(version, name string, data []byte) (Migration, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var file migrationFile
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return Migration{}, oops.Wrapf(err, "YAML deserialization error")
	}

	m := Migration{
		Version: version,
		Name:    name,
	}
	for i, node := range file.Up {
		change, err := node.toChange()
		if err != nil {
			return Migration{}, oops.Wrapf(err, "up[%d]", i)
		}
		m.Up = append(m.Up, change)
	}
	if file.Down != nil {
		m.Down = []schema.Change{}
		for i, node := range *file.Down {
			change, err := node.toChange()
			if err != nil {
				return Migration{}, oops.Wrapf(err, "down[%d]", i)
			}
			m.Down = append(m.Down, change)
		}
	}
	return m, nil
}

func (n changeNode) toChange() (schema.Change, error) {
	var changes []schema.Change
	var err error
	if n.CreateTable != nil {
		var columns []schema.Column
		for _, columnNode := range n.CreateTable.Columns {
			column, columnErr := columnNode.toColumn()
			if columnErr != nil {
				err = columnErr
			}
			columns = append(columns, column)
		}
		changes = append(changes, schema.CreateTable{Table: n.CreateTable.Table, Columns: columns})
	}
	if n.DropTable != nil {
		changes = append(changes, schema.DropTable{Table: n.DropTable.Table})
	}
	if n.AddColumn != nil {
		column, columnErr := n.AddColumn.Column.toColumn()
		if columnErr != nil {
			err = columnErr
		}
		changes = append(changes, schema.AddColumn{Table: n.AddColumn.Table, Column: column})
	}
	if n.DropColumn != nil {
		changes = append(changes, schema.DropColumn{Table: n.DropColumn.Table, Column: n.DropColumn.Column})
	}
	if n.AlterColumn != nil {
		change, alterErr := n.AlterColumn.toChange()
		if alterErr != nil {
			err = alterErr
		}
		changes = append(changes, change)
	}
	if n.CreateIndex != nil {
		changes = append(changes, schema.CreateIndex{
			Table:   n.CreateIndex.Table,
			Name:    n.CreateIndex.Name,
			Columns: n.CreateIndex.Columns,
			Unique:  n.CreateIndex.Unique,
		})
	}
	if n.DropIndex != nil {
		changes = append(changes, schema.DropIndex{Table: n.DropIndex.Table, Name: n.DropIndex.Name})
	}

	if err != nil {
		return nil, err
	}
	if len(changes) != 1 {
		return nil, fmt.Errorf("expected exactly one change kind per item, got %d", len(changes))
	}
	return changes[0], nil
}

func (n columnNode) toColumn() (schema.Column, error) {
	typ, err := schema.ParseType(n.Type)
	if err != nil {
		return schema.Column{}, fmt.Errorf("column %s: %w", n.Name, err)
	}
	return schema.Column{
		Name:       n.Name,
		Type:       typ,
		Nullable:   n.Nullable,
		Default:    n.Default,
		PrimaryKey: n.PrimaryKey,
	}, nil
}

func (n alterColumnNode) toChange() (schema.Change, error) {
	oldType, err := schema.ParseType(n.OldType)
	if err != nil {
		return nil, fmt.Errorf("old_type: %w", err)
	}
	newType := oldType
	if n.NewType != "" {
		newType, err = schema.ParseType(n.NewType)
		if err != nil {
			return nil, fmt.Errorf("new_type: %w", err)
		}
	}
	return schema.AlterColumn{
		Table:       n.Table,
		Column:      n.Column,
		OldType:     oldType,
		OldNullable: n.OldNullable,
		NewType:     newType,
		NewNullable: n.NewNullable,
		Default:     n.Default,
	}, nil
}
