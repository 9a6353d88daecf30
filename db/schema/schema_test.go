package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var cardTable = CreateTable{
	Table: "Card",
	Columns: []Column{
		{Name: "Id", Type: BigInt, PrimaryKey: true},
		{Name: "Name", Type: Text},
		{Name: "SetCode", Type: Varchar(16)},
		{Name: "IsCommander", Type: Boolean, Default: false},
	},
}

var makeIsCommanderNullable = AlterColumn{
	Table:       "Card",
	Column:      "IsCommander",
	OldType:     Boolean,
	OldNullable: false,
	NewType:     Boolean,
	NewNullable: true,
}

var makeIsCommanderNotNull = AlterColumn{
	Table:       "Card",
	Column:      "IsCommander",
	OldType:     Boolean,
	OldNullable: true,
	NewType:     Boolean,
	NewNullable: false,
	Default:     false,
}

func TestPostgresStatements(t *testing.T) {
	type test struct {
		description string
		change      Change
		expected    []string
	}

	tests := []test{
		{
			description: "create table",
			change:      cardTable,
			expected: []string{
				`CREATE TABLE "Card" ("Id" bigint NOT NULL, "Name" text NOT NULL, "SetCode" varchar(16) NOT NULL, ` +
					`"IsCommander" boolean NOT NULL DEFAULT false, PRIMARY KEY ("Id"))`,
			},
		},
		{
			description: "create table if not exists",
			change: CreateTable{
				Table:       "schema_migrations",
				Columns:     []Column{{Name: "version", Type: Varchar(64), PrimaryKey: true}},
				IfNotExists: true,
			},
			expected: []string{
				`CREATE TABLE IF NOT EXISTS "schema_migrations" ("version" varchar(64) NOT NULL, PRIMARY KEY ("version"))`,
			},
		},
		{
			description: "drop table",
			change:      DropTable{Table: "Card"},
			expected:    []string{`DROP TABLE "Card"`},
		},
		{
			description: "add nullable column",
			change:      AddColumn{Table: "Card", Column: Column{Name: "ManaValue", Type: Integer, Nullable: true}},
			expected:    []string{`ALTER TABLE "Card" ADD COLUMN "ManaValue" integer`},
		},
		{
			description: "drop column",
			change:      DropColumn{Table: "Card", Column: "ManaValue"},
			expected:    []string{`ALTER TABLE "Card" DROP COLUMN "ManaValue"`},
		},
		{
			description: "widen nullability",
			change:      makeIsCommanderNullable,
			expected:    []string{`ALTER TABLE "Card" ALTER COLUMN "IsCommander" DROP NOT NULL`},
		},
		{
			description: "narrow nullability with default backfills first",
			change:      makeIsCommanderNotNull,
			expected: []string{
				`UPDATE "Card" SET "IsCommander" = false WHERE "IsCommander" IS NULL`,
				`ALTER TABLE "Card" ALTER COLUMN "IsCommander" SET NOT NULL`,
			},
		},
		{
			description: "narrow nullability without default",
			change: AlterColumn{
				Table: "Card", Column: "Name", OldType: Text, OldNullable: true, NewType: Text,
			},
			expected: []string{`ALTER TABLE "Card" ALTER COLUMN "Name" SET NOT NULL`},
		},
		{
			description: "change type only",
			change: AlterColumn{
				Table: "Card", Column: "SetCode", OldType: Varchar(16), NewType: Text,
			},
			expected: []string{`ALTER TABLE "Card" ALTER COLUMN "SetCode" TYPE text USING "SetCode"::text`},
		},
		{
			description: "unique index",
			change:      CreateIndex{Table: "Card", Name: "index_card_on_name_and_set", Columns: []string{"Name", "SetCode"}, Unique: true},
			expected:    []string{`CREATE UNIQUE INDEX "index_card_on_name_and_set" ON "Card" ("Name", "SetCode")`},
		},
		{
			description: "drop index",
			change:      DropIndex{Table: "Card", Name: "index_card_on_name_and_set"},
			expected:    []string{`DROP INDEX "index_card_on_name_and_set"`},
		},
		{
			description: "pointer change",
			change:      &DropTable{Table: "Deck"},
			expected:    []string{`DROP TABLE "Deck"`},
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			statements, err := Postgres{}.Statements(nil, tc.change)
			require.NoError(t, err)
			require.Equal(t, tc.expected, statements)
		})
	}
}

func TestMySQLStatements(t *testing.T) {
	type test struct {
		description string
		change      Change
		expected    []string
	}

	tests := []test{
		{
			description: "create table",
			change:      cardTable,
			expected: []string{
				"CREATE TABLE `Card` (`Id` BIGINT NOT NULL, `Name` TEXT NOT NULL, `SetCode` VARCHAR(16) NOT NULL, " +
					"`IsCommander` BOOLEAN NOT NULL DEFAULT FALSE, PRIMARY KEY (`Id`))",
			},
		},
		{
			description: "widen nullability",
			change:      makeIsCommanderNullable,
			expected:    []string{"ALTER TABLE `Card` MODIFY COLUMN `IsCommander` BOOLEAN NULL"},
		},
		{
			description: "narrow nullability with default",
			change:      makeIsCommanderNotNull,
			expected: []string{
				"UPDATE `Card` SET `IsCommander` = FALSE WHERE `IsCommander` IS NULL",
				"ALTER TABLE `Card` MODIFY COLUMN `IsCommander` BOOLEAN NOT NULL",
			},
		},
		{
			description: "drop index names the table",
			change:      DropIndex{Table: "Card", Name: "index_card_on_name"},
			expected:    []string{"DROP INDEX `index_card_on_name` ON `Card`"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			statements, err := MySQL{}.Statements(nil, tc.change)
			require.NoError(t, err)
			require.Equal(t, tc.expected, statements)
		})
	}
}

func TestValidate(t *testing.T) {
	type test struct {
		description string
		change      Change
	}

	tests := []test{
		{"nil change", nil},
		{"create table without columns", CreateTable{Table: "Card"}},
		{"create table with duplicate columns", CreateTable{
			Table: "Card", Columns: []Column{{Name: "Id", Type: BigInt}, {Name: "Id", Type: Text}},
		}},
		{"nullable primary key", CreateTable{
			Table: "Card", Columns: []Column{{Name: "Id", Type: BigInt, Nullable: true, PrimaryKey: true}},
		}},
		{"column without type", AddColumn{Table: "Card", Column: Column{Name: "ManaValue"}}},
		{"zero length varchar", AddColumn{Table: "Card", Column: Column{Name: "SetCode", Type: Varchar(0)}}},
		{"alter column that changes nothing", AlterColumn{
			Table: "Card", Column: "IsCommander", OldType: Boolean, NewType: Boolean,
		}},
		{"index without columns", CreateIndex{Table: "Card", Name: "index_card"}},
		{"drop index without table", DropIndex{Name: "index_card"}},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			require.Error(t, Validate(tc.change))
		})
	}

	require.NoError(t, Validate(cardTable))
	require.NoError(t, Validate(&makeIsCommanderNotNull))
}

func TestParseType(t *testing.T) {
	type test struct {
		input    string
		expected Type
	}

	tests := []test{
		{"boolean", Boolean},
		{"BOOL", Boolean},
		{"int", Integer},
		{"bigint", BigInt},
		{"double", Double},
		{"text", Text},
		{"timestamp", Timestamp},
		{"varchar(64)", Varchar(64)},
		{"VARCHAR( 16 )", Varchar(16)},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			parsed, err := ParseType(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.expected, parsed)
		})
	}

	_, err := ParseType("varchar(0)")
	require.Error(t, err)
	_, err = ParseType("jsonb")
	require.Error(t, err)
}

func TestLiteral(t *testing.T) {
	lit, err := Postgres{}.Literal("O'Brien")
	require.NoError(t, err)
	require.Equal(t, "'O''Brien'", lit)

	lit, err = SQLite{}.Literal(true)
	require.NoError(t, err)
	require.Equal(t, "1", lit)

	lit, err = Postgres{}.Literal(time.Date(2024, 11, 12, 18, 45, 12, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "'2024-11-12 18:45:12'", lit)

	lit, err = MySQL{}.Literal(int64(7))
	require.NoError(t, err)
	require.Equal(t, "7", lit)

	_, err = Postgres{}.Literal([]int{1})
	require.Error(t, err)
}

func TestQuoteEscapes(t *testing.T) {
	require.Equal(t, `"we""ird"`, Postgres{}.Quote(`we"ird`))
	require.Equal(t, "`we``ird`", MySQL{}.Quote("we`ird"))
}
