package migrations

import (
	"cardcheck/db/migrator"
	"cardcheck/db/schema"
)

var addCardManaValue = migrator.Migration{
	Version: "20241105120000",
	Name:    "AddCardManaValue",
	Up: []schema.Change{
		schema.AddColumn{
			Table:  "Card",
			Column: schema.Column{Name: "ManaValue", Type: schema.Integer, Nullable: true},
		},
	},
	Down: []schema.Change{
		schema.DropColumn{Table: "Card", Column: "ManaValue"},
	},
}
