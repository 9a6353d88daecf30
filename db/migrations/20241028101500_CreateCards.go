package migrations

import (
	"cardcheck/db/migrator"
	"cardcheck/db/schema"
)

var createCards = migrator.Migration{
	Version: "20241028101500",
	Name:    "CreateCards",
	Up: []schema.Change{
		schema.CreateTable{
			Table: "Card",
			Columns: []schema.Column{
				{Name: "Id", Type: schema.BigInt, PrimaryKey: true},
				{Name: "Name", Type: schema.Text},
				{Name: "SetCode", Type: schema.Varchar(16)},
				{Name: "IsCommander", Type: schema.Boolean},
				{Name: "CreatedAt", Type: schema.Timestamp},
			},
		},
		schema.CreateIndex{Table: "Card", Name: "index_card_on_name", Columns: []string{"Name"}},
	},
	Down: []schema.Change{
		schema.DropTable{Table: "Card"},
	},
}
