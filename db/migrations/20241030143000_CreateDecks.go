package migrations

import (
	"cardcheck/db/migrator"
	"cardcheck/db/schema"
)

var createDecks = migrator.Migration{
	Version: "20241030143000",
	Name:    "CreateDecks",
	Up: []schema.Change{
		schema.CreateTable{
			Table: "Deck",
			Columns: []schema.Column{
				{Name: "Id", Type: schema.BigInt, PrimaryKey: true},
				{Name: "Name", Type: schema.Text},
				{Name: "Format", Type: schema.Varchar(32), Default: "commander"},
				{Name: "CreatedAt", Type: schema.Timestamp},
			},
		},
		schema.CreateTable{
			Table: "DeckCard",
			Columns: []schema.Column{
				{Name: "DeckId", Type: schema.BigInt, PrimaryKey: true},
				{Name: "CardId", Type: schema.BigInt, PrimaryKey: true},
				{Name: "Quantity", Type: schema.Integer, Default: 1},
			},
		},
		schema.CreateIndex{Table: "DeckCard", Name: "index_deck_card_on_card_id", Columns: []string{"CardId"}},
	},
	Down: []schema.Change{
		schema.DropTable{Table: "DeckCard"},
		schema.DropTable{Table: "Deck"},
	},
}
