package migrations

import (
	"cardcheck/db/migrator"
	"cardcheck/db/schema"
)

// Unknown until the oracle data is synced. Reverting turns unknown back into false.
var makeIsCommanderNullable = migrator.Migration{
	Version: "20241112184512",
	Name:    "MakeIsCommanderNullable",
	Up: []schema.Change{
		schema.AlterColumn{
			Table:       "Card",
			Column:      "IsCommander",
			OldType:     schema.Boolean,
			OldNullable: false,
			NewType:     schema.Boolean,
			NewNullable: true,
		},
	},
	Down: []schema.Change{
		schema.AlterColumn{
			Table:       "Card",
			Column:      "IsCommander",
			OldType:     schema.Boolean,
			OldNullable: true,
			NewType:     schema.Boolean,
			NewNullable: false,
			Default:     false,
		},
	},
}
