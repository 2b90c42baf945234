package db

import (
	"errors"
	"strings"
)

// ErrGameExists is returned by Commit when another writer committed a game
// with the same id after this unit of work was staged.
var ErrGameExists = errors.New("game already exists")

// ErrUnitOfWorkDone is returned when a committed or rolled back unit of work
// is used again.
var ErrUnitOfWorkDone = errors.New("unit of work already finished")

// IsUniqueViolation reports whether err is a SQLite uniqueness or primary key
// violation. Both supported drivers surface the engine's message text.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
