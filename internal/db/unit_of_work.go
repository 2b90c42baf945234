package db

import (
	"context"
	"fmt"
	"time"
)

// UnitOfWork stages a game and the reference rows it needs, then writes them
// in a single transaction on Commit. Staged references are visible to later
// lookups in the same unit of work immediately.
//
// A UnitOfWork is not safe for concurrent use.
type UnitOfWork struct {
	db *DB

	// staged holds every reference this unit of work has handed out, whether
	// loaded from storage or newly created, keyed by category then id.
	staged map[Category]map[int]*Reference
	// created lists the staged references that still need inserting, in
	// staging order.
	created map[Category][]*Reference
	games   []*Game
	done    bool
}

// CommitResult describes what a commit wrote.
type CommitResult struct {
	// Created counts reference rows inserted per category.
	Created map[Category]int
	// Conflicts counts staged references that another writer had already
	// inserted; they were re-read instead.
	Conflicts int
}

// Begin starts a new unit of work. Nothing touches the database until Commit.
func (db *DB) Begin() *UnitOfWork {
	u := &UnitOfWork{
		db:      db,
		staged:  make(map[Category]map[int]*Reference, len(Categories)),
		created: make(map[Category][]*Reference, len(Categories)),
	}
	for _, c := range Categories {
		u.staged[c] = make(map[int]*Reference)
	}
	return u
}

// FindGame looks up a committed game by id, including its references.
func (u *UnitOfWork) FindGame(ctx context.Context, id int) (*Game, error) {
	for _, g := range u.games {
		if g.ID == id {
			return g, nil
		}
	}
	return u.db.GetGame(ctx, id)
}

// Staged returns the reference already staged in this unit of work, if any.
func (u *UnitOfWork) Staged(c Category, id int) *Reference {
	return u.staged[c][id]
}

// FindReference returns the reference for a category and id, checking the
// staged set before committed storage. A reference loaded from storage is
// staged so later lookups return the same pointer.
func (u *UnitOfWork) FindReference(ctx context.Context, c Category, id int) (*Reference, error) {
	if u.done {
		return nil, ErrUnitOfWorkDone
	}
	if ref := u.Staged(c, id); ref != nil {
		return ref, nil
	}
	ref, err := u.db.GetReference(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if ref != nil {
		u.staged[c][id] = ref
	}
	return ref, nil
}

// AddReference stages a new reference to be inserted on Commit. Adding an id
// that is already staged returns the staged reference unchanged.
func (u *UnitOfWork) AddReference(c Category, ref *Reference) (*Reference, error) {
	if u.done {
		return nil, ErrUnitOfWorkDone
	}
	if !c.Valid() {
		return nil, fmt.Errorf("unknown reference category %q", c)
	}
	if existing := u.Staged(c, ref.ID); existing != nil {
		return existing, nil
	}
	u.staged[c][ref.ID] = ref
	u.created[c] = append(u.created[c], ref)
	return ref, nil
}

// AddGame stages a game insert together with its reference associations.
func (u *UnitOfWork) AddGame(g *Game) error {
	if u.done {
		return ErrUnitOfWorkDone
	}
	u.games = append(u.games, g)
	return nil
}

// Rollback discards everything staged. It is safe to call after Commit.
func (u *UnitOfWork) Rollback() {
	u.done = true
	u.games = nil
	u.created = nil
}

// Commit writes the staged references, games and join rows atomically.
//
// A new reference whose insert hits the primary key was committed by a
// concurrent writer after staging; it is re-read inside the transaction and
// the staged pointer adopts the stored name. A game insert that hits the
// primary key rolls the whole transaction back and returns ErrGameExists.
func (u *UnitOfWork) Commit(ctx context.Context) (*CommitResult, error) {
	if u.done {
		return nil, ErrUnitOfWorkDone
	}
	u.done = true

	tx, err := u.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result := &CommitResult{Created: make(map[Category]int, len(Categories))}

	for _, c := range Categories {
		for _, ref := range u.created[c] {
			_, err := tx.ExecContext(ctx, "INSERT INTO "+c.table()+" (id, name) VALUES (?, ?)", ref.ID, nullString(ref.Name))
			if err == nil {
				result.Created[c]++
				continue
			}
			if !IsUniqueViolation(err) {
				return nil, fmt.Errorf("failed to insert %s %d: %w", c, ref.ID, err)
			}
			stored, err := getReference(ctx, tx, c, ref.ID)
			if err != nil {
				return nil, err
			}
			if stored == nil {
				return nil, fmt.Errorf("failed to re-read conflicting %s %d", c, ref.ID)
			}
			ref.Name = stored.Name
			result.Conflicts++
		}
	}

	for _, g := range u.games {
		if err := insertGame(ctx, tx, g); err != nil {
			if IsUniqueViolation(err) {
				return nil, fmt.Errorf("game %d: %w", g.ID, ErrGameExists)
			}
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

func insertGame(ctx context.Context, q querier, g *Game) error {
	var released any
	if g.Released != nil {
		released = g.Released.Format(releasedLayout)
	}
	var metacritic any
	if g.Metacritic != nil {
		metacritic = *g.Metacritic
	}
	var rating any
	if g.AverageRating != nil {
		rating = *g.AverageRating
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO games (id, name, description, average_rating, metacritic, released,
			background_image_url, local_background_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, nullString(g.Name), nullString(g.Description), rating, metacritic, released,
		nullString(g.BackgroundImageURL), nullString(g.LocalBackgroundImage), time.Now().UTC())
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to insert game %d: %w", g.ID, err)
	}

	for _, c := range Categories {
		seen := make(map[int]bool)
		for _, ref := range g.References(c) {
			if seen[ref.ID] {
				continue
			}
			seen[ref.ID] = true
			query := fmt.Sprintf("INSERT INTO %s (game_id, %s) VALUES (?, ?)", c.joinTable(), c.joinColumn())
			if _, err := q.ExecContext(ctx, query, g.ID, ref.ID); err != nil {
				return fmt.Errorf("failed to link %s %d to game %d: %w", c, ref.ID, g.ID, err)
			}
		}
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
