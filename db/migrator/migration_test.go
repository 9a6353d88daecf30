package migrator

import (
	"testing"

	"cardcheck/db/schema"

	"github.com/stretchr/testify/require"
)

func TestNewRegistryOrders(t *testing.T) {
	registry, err := NewRegistry(makeIsCommanderNullable, createCards, addManaValue)
	require.NoError(t, err)

	var versions []string
	for _, m := range registry.All() {
		versions = append(versions, m.Version)
	}
	require.Equal(t, []string{createCards.Version, addManaValue.Version, makeIsCommanderNullable.Version}, versions)
	require.Equal(t, 3, registry.Len())
	require.Equal(t, makeIsCommanderNullable.Version, registry.Latest())

	m, ok := registry.Lookup(addManaValue.Version)
	require.True(t, ok)
	require.Equal(t, "20241105120000_AddCardManaValue", m.String())
	_, ok = registry.Lookup("20000101000000")
	require.False(t, ok)

	empty, err := NewRegistry()
	require.NoError(t, err)
	require.Equal(t, "", empty.Latest())
}

func TestNewRegistryDuplicateVersion(t *testing.T) {
	duplicate := addManaValue
	duplicate.Name = "AddCardPrice"

	_, err := NewRegistry(createCards, addManaValue, duplicate)
	require.ErrorIs(t, err, ErrDuplicateVersionToken)
	migErr, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, addManaValue.Version, migErr.Version)
	require.Equal(t, "AddCardPrice", migErr.Name)
	require.Panics(t, func() {
		MustNewRegistry(addManaValue, duplicate)
	})
}

func TestNewRegistryInvalid(t *testing.T) {
	tests := []struct {
		description string
		migration   Migration
	}{
		{
			description: "short version",
			migration:   Migration{Version: "2024102810", Name: "CreateCards", Up: createCards.Up},
		},
		{
			description: "version is not a timestamp",
			migration:   Migration{Version: "20241328101500", Name: "CreateCards", Up: createCards.Up},
		},
		{
			description: "name is not an identifier",
			migration:   Migration{Version: createCards.Version, Name: "create cards", Up: createCards.Up},
		},
		{
			description: "no up changes",
			migration:   Migration{Version: createCards.Version, Name: "CreateCards"},
		},
		{
			description: "invalid down change",
			migration: Migration{
				Version: createCards.Version, Name: "CreateCards", Up: createCards.Up,
				Down: []schema.Change{schema.DropTable{}},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			_, err := NewRegistry(tc.migration)
			require.Error(t, err)
		})
	}
}

func TestReversible(t *testing.T) {
	require.True(t, createCards.Reversible())
	require.True(t, dropMissingTable.Reversible())
	require.False(t, Migration{Version: createCards.Version, Name: "CreateCards", Up: createCards.Up}.Reversible())
}
