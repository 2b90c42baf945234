package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, requires cgo
)

// busyTimeoutMS is how long a writer waits on a locked database before failing.
const busyTimeoutMS = 5000

// DB wraps a SQLite database connection holding the game catalog.
type DB struct {
	conn   *sql.DB
	path   string
	driver string
}

// Open opens or creates a SQLite database at the given path using the
// default pure-Go driver.
func Open(ctx context.Context, path string) (*DB, error) {
	return OpenWithDriver(ctx, DriverModernc, path)
}

// OpenWithDriver opens or creates a SQLite database with an explicit driver.
func OpenWithDriver(ctx context.Context, driver, path string) (*DB, error) {
	if driver == "" {
		driver = DriverModernc
	}
	dsn, err := buildDSN(driver, path)
	if err != nil {
		return nil, err
	}

	conn, err := otelsql.Open(driver, dsn,
		otelsql.WithAttributes(attribute.String("db.system", "sqlite")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{conn: conn, path: path, driver: driver}
	if err := db.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// buildDSN applies per-connection pragmas in each driver's own DSN syntax so
// every pooled connection gets them, not only the first one.
func buildDSN(driver, path string) (string, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		path = "file:" + path
	}

	switch driver {
	case DriverModernc:
		return fmt.Sprintf("%s%s_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
			path, sep, busyTimeoutMS), nil
	case DriverMattn:
		return fmt.Sprintf("%s%s_foreign_keys=on&_busy_timeout=%d&_journal_mode=WAL",
			path, sep, busyTimeoutMS), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path the DB was opened with.
func (db *DB) Path() string {
	return db.path
}

// migrate runs database migrations up to the current schema version.
func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err := db.conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version < 1 {
		if err := db.migrateV1(ctx); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := db.migrateV2(ctx); err != nil {
			return err
		}
	}

	return nil
}

// migrateV1 creates the games table and the four reference categories with
// their join tables. Every identity column is the upstream id, so the
// primary keys double as the uniqueness constraints concurrent writers race on.
func (db *DB) migrateV1(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY,
			name TEXT,
			description TEXT,
			average_rating REAL,
			metacritic INTEGER,
			released TEXT,
			local_background_image TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_games_name ON games(name);

		CREATE TABLE IF NOT EXISTS genres (
			id INTEGER PRIMARY KEY,
			name TEXT
		);

		CREATE TABLE IF NOT EXISTS platforms (
			id INTEGER PRIMARY KEY,
			name TEXT
		);

		CREATE TABLE IF NOT EXISTS developers (
			id INTEGER PRIMARY KEY,
			name TEXT
		);

		CREATE TABLE IF NOT EXISTS publishers (
			id INTEGER PRIMARY KEY,
			name TEXT
		);

		CREATE TABLE IF NOT EXISTS game_genres (
			game_id INTEGER NOT NULL,
			genre_id INTEGER NOT NULL,
			PRIMARY KEY(game_id, genre_id),
			FOREIGN KEY(game_id) REFERENCES games(id) ON DELETE CASCADE,
			FOREIGN KEY(genre_id) REFERENCES genres(id)
		);

		CREATE TABLE IF NOT EXISTS game_platforms (
			game_id INTEGER NOT NULL,
			platform_id INTEGER NOT NULL,
			PRIMARY KEY(game_id, platform_id),
			FOREIGN KEY(game_id) REFERENCES games(id) ON DELETE CASCADE,
			FOREIGN KEY(platform_id) REFERENCES platforms(id)
		);

		CREATE TABLE IF NOT EXISTS game_developers (
			game_id INTEGER NOT NULL,
			developer_id INTEGER NOT NULL,
			PRIMARY KEY(game_id, developer_id),
			FOREIGN KEY(game_id) REFERENCES games(id) ON DELETE CASCADE,
			FOREIGN KEY(developer_id) REFERENCES developers(id)
		);

		CREATE TABLE IF NOT EXISTS game_publishers (
			game_id INTEGER NOT NULL,
			publisher_id INTEGER NOT NULL,
			PRIMARY KEY(game_id, publisher_id),
			FOREIGN KEY(game_id) REFERENCES games(id) ON DELETE CASCADE,
			FOREIGN KEY(publisher_id) REFERENCES publishers(id)
		);

		CREATE INDEX IF NOT EXISTS idx_game_genres_genre_id ON game_genres(genre_id);
		CREATE INDEX IF NOT EXISTS idx_game_platforms_platform_id ON game_platforms(platform_id);
		CREATE INDEX IF NOT EXISTS idx_game_developers_developer_id ON game_developers(developer_id);
		CREATE INDEX IF NOT EXISTS idx_game_publishers_publisher_id ON game_publishers(publisher_id);

		INSERT INTO schema_version (version) VALUES (1);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute v1 migration: %w", err)
	}

	return nil
}

// migrateV2 records where each cached game's cover came from.
func (db *DB) migrateV2(ctx context.Context) error {
	schema := `
		ALTER TABLE games ADD COLUMN background_image_url TEXT;

		INSERT INTO schema_version (version) VALUES (2);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute v2 migration: %w", err)
	}

	return nil
}
