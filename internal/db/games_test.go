package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchGames(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, g := range []*Game{
		{ID: 1, Name: "Portal"},
		{ID: 2, Name: "Portal 2"},
		{ID: 3, Name: "Half-Life"},
		{ID: 4, Name: "portal knights"},
		{ID: 5},
	} {
		commitGame(t, db, g)
	}

	tests := []struct {
		name     string
		query    string
		offset   int
		limit    int
		expected []int
	}{
		{"substring match", "Portal", 0, 10, []int{1, 2}},
		{"case sensitive", "portal", 0, 10, []int{4}},
		{"offset", "Portal", 1, 10, []int{2}},
		{"limit", "Portal", 0, 1, []int{1}},
		{"no match", "Zelda", 0, 10, nil},
		{"past the end", "Portal", 5, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			games, err := db.SearchGames(ctx, tt.query, tt.offset, tt.limit)
			require.NoError(t, err)

			var ids []int
			for _, g := range games {
				ids = append(ids, g.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestSearchGames_SharesReferences(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	commitGame(t, db, &Game{ID: 1, Name: "Doom", Genres: []*Reference{{ID: 2, Name: "Shooter"}}})
	commitGame(t, db, &Game{ID: 2, Name: "Doom II", Genres: []*Reference{{ID: 2, Name: "Shooter"}}})

	games, err := db.SearchGames(ctx, "Doom", 0, 10)
	require.NoError(t, err)
	require.Len(t, games, 2)
	require.Len(t, games[0].Genres, 1)
	require.Len(t, games[1].Genres, 1)
	assert.Same(t, games[0].Genres[0], games[1].Genres[0])
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	commitGame(t, db, &Game{
		ID:         1,
		Name:       "Doom",
		Genres:     []*Reference{{ID: 2, Name: "Shooter"}},
		Platforms:  []*Reference{{ID: 4, Name: "PC"}, {ID: 1, Name: "Xbox One"}},
		Developers: []*Reference{{ID: 9, Name: "id Software"}},
	})

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Games)
	assert.Equal(t, 1, stats.References[CategoryGenre])
	assert.Equal(t, 2, stats.References[CategoryPlatform])
	assert.Equal(t, 1, stats.References[CategoryDeveloper])
	assert.Equal(t, 0, stats.References[CategoryPublisher])
}

func TestGetReference_UnknownCategory(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetReference(context.Background(), Category("studio"), 1)
	assert.Error(t, err)
}
