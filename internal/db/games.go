package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Category is one of the four kinds of shared reference data attached to a game.
type Category string

const (
	CategoryGenre     Category = "genre"
	CategoryPlatform  Category = "platform"
	CategoryDeveloper Category = "developer"
	CategoryPublisher Category = "publisher"
)

// Categories lists every reference category in the order games are resolved.
var Categories = []Category{CategoryGenre, CategoryPlatform, CategoryDeveloper, CategoryPublisher}

func (c Category) table() string {
	return string(c) + "s"
}

func (c Category) joinTable() string {
	return "game_" + string(c) + "s"
}

func (c Category) joinColumn() string {
	return string(c) + "_id"
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryGenre, CategoryPlatform, CategoryDeveloper, CategoryPublisher:
		return true
	}
	return false
}

// Reference is a genre, platform, developer or publisher row. Its ID is the
// upstream-assigned id and is unique within its category.
type Reference struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Game is a cached upstream game with its reference collections.
type Game struct {
	ID                   int          `json:"id"`
	Name                 string       `json:"name"`
	Description          string       `json:"description,omitempty"`
	AverageRating        *float64     `json:"average_rating,omitempty"`
	Metacritic           *int         `json:"metacritic,omitempty"`
	Released             *time.Time   `json:"released,omitempty"`
	BackgroundImageURL   string       `json:"background_image_url,omitempty"`
	LocalBackgroundImage string       `json:"local_background_image,omitempty"`
	Genres               []*Reference `json:"genres"`
	Platforms            []*Reference `json:"platforms"`
	Developers           []*Reference `json:"developers"`
	Publishers           []*Reference `json:"publishers"`
}

// References returns the game's collection for a category.
func (g *Game) References(c Category) []*Reference {
	switch c {
	case CategoryGenre:
		return g.Genres
	case CategoryPlatform:
		return g.Platforms
	case CategoryDeveloper:
		return g.Developers
	case CategoryPublisher:
		return g.Publishers
	}
	return nil
}

// SetReferences replaces the game's collection for a category.
func (g *Game) SetReferences(c Category, refs []*Reference) {
	switch c {
	case CategoryGenre:
		g.Genres = refs
	case CategoryPlatform:
		g.Platforms = refs
	case CategoryDeveloper:
		g.Developers = refs
	case CategoryPublisher:
		g.Publishers = refs
	}
}

// releasedLayout is how release dates are stored.
const releasedLayout = "2006-01-02"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const gameColumns = `id, name, description, average_rating, metacritic, released, background_image_url, local_background_image`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*Game, error) {
	var (
		g                                  Game
		name, desc, released, url, imgPath sql.NullString
		rating                             sql.NullFloat64
		metacritic                         sql.NullInt64
	)
	if err := row.Scan(&g.ID, &name, &desc, &rating, &metacritic, &released, &url, &imgPath); err != nil {
		return nil, err
	}
	g.Name = name.String
	g.Description = desc.String
	g.BackgroundImageURL = url.String
	g.LocalBackgroundImage = imgPath.String
	if rating.Valid {
		v := rating.Float64
		g.AverageRating = &v
	}
	if metacritic.Valid {
		v := int(metacritic.Int64)
		g.Metacritic = &v
	}
	if released.Valid && released.String != "" {
		t, err := time.Parse(releasedLayout, released.String)
		if err != nil {
			return nil, fmt.Errorf("invalid released date %q for game %d: %w", released.String, g.ID, err)
		}
		g.Released = &t
	}
	g.Genres = []*Reference{}
	g.Platforms = []*Reference{}
	g.Developers = []*Reference{}
	g.Publishers = []*Reference{}
	return &g, nil
}

// GetGame returns the game with the given id and all four reference
// collections, or nil if it is not cached.
func (db *DB) GetGame(ctx context.Context, id int) (*Game, error) {
	return getGame(ctx, db.conn, id)
}

func getGame(ctx context.Context, q querier, id int) (*Game, error) {
	row := q.QueryRowContext(ctx, "SELECT "+gameColumns+" FROM games WHERE id = ?", id)
	g, err := scanGame(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get game %d: %w", id, err)
	}
	if err := loadReferences(ctx, q, []*Game{g}); err != nil {
		return nil, err
	}
	return g, nil
}

// SearchGames returns cached games whose name contains query (case-sensitive),
// ordered by id, skipping offset rows and returning at most limit rows.
func (db *DB) SearchGames(ctx context.Context, query string, offset, limit int) ([]*Game, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+gameColumns+`
		FROM games
		WHERE name IS NOT NULL AND instr(name, ?) > 0
		ORDER BY id
		LIMIT ? OFFSET ?
	`, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search games: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var games []*Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search games: %w", err)
	}

	if err := loadReferences(ctx, db.conn, games); err != nil {
		return nil, err
	}
	return games, nil
}

// loadReferences fills the four collections of each game. A reference shared
// by several games in the batch is loaded once and shared by pointer.
func loadReferences(ctx context.Context, q querier, games []*Game) error {
	if len(games) == 0 {
		return nil
	}

	byID := make(map[int]*Game, len(games))
	args := make([]any, 0, len(games))
	for _, g := range games {
		byID[g.ID] = g
		args = append(args, g.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(games)), ",")

	for _, c := range Categories {
		query := fmt.Sprintf(`
			SELECT j.game_id, r.id, r.name
			FROM %[1]s j
			JOIN %[2]s r ON r.id = j.%[3]s
			WHERE j.game_id IN (%[4]s)
			ORDER BY j.game_id, j.rowid
		`, c.joinTable(), c.table(), c.joinColumn(), placeholders)

		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to load %ss: %w", c, err)
		}

		shared := make(map[int]*Reference)
		for rows.Next() {
			var (
				gameID, refID int
				name          sql.NullString
			)
			if err := rows.Scan(&gameID, &refID, &name); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan %s: %w", c, err)
			}
			ref, ok := shared[refID]
			if !ok {
				ref = &Reference{ID: refID, Name: name.String}
				shared[refID] = ref
			}
			g := byID[gameID]
			g.SetReferences(c, append(g.References(c), ref))
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return fmt.Errorf("failed to load %ss: %w", c, err)
		}
	}
	return nil
}

// GetReference returns the committed reference row for a category and id, or
// nil if none exists.
func (db *DB) GetReference(ctx context.Context, c Category, id int) (*Reference, error) {
	return getReference(ctx, db.conn, c, id)
}

func getReference(ctx context.Context, q querier, c Category, id int) (*Reference, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown reference category %q", c)
	}
	var name sql.NullString
	err := q.QueryRowContext(ctx, "SELECT name FROM "+c.table()+" WHERE id = ?", id).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s %d: %w", c, id, err)
	}
	return &Reference{ID: id, Name: name.String}, nil
}

// CountReferences returns how many rows a category holds.
func (db *DB) CountReferences(ctx context.Context, c Category) (int, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("unknown reference category %q", c)
	}
	var n int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %ss: %w", c, err)
	}
	return n, nil
}

// Stats summarizes the size of the catalog.
type Stats struct {
	Games      int              `json:"games"`
	References map[Category]int `json:"references"`
}

// GetStats counts games and every reference category.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	s := &Stats{References: make(map[Category]int, len(Categories))}
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM games").Scan(&s.Games); err != nil {
		return nil, fmt.Errorf("failed to count games: %w", err)
	}
	for _, c := range Categories {
		n, err := db.CountReferences(ctx, c)
		if err != nil {
			return nil, err
		}
		s.References[c] = n
	}
	return s, nil
}
