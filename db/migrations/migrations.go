package migrations

import (
	"cardcheck/db/migrator"
)

// All lists every migration of the app. New ones go at the end, db generate-migration prints the line to add.
func All() []migrator.Migration {
	return []migrator.Migration{
		createCards,
		createDecks,
		addCardManaValue,
		makeIsCommanderNullable,
	}
}

func Registry() *migrator.Registry {
	return migrator.MustNewRegistry(All()...)
}
