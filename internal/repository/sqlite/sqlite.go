// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database that lives inside the Go binary as a single file.
// No separate database server to install or manage, which suits a single-server
// paste service. Tests use ":memory:" for a throwaway database.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes cross-compilation
// painful. modernc.org/sqlite is a pure Go translation of SQLite.
//
// CONCURRENCY:
// The pool is limited to ONE open connection. Every statement therefore runs
// serialized, which gives us:
//   - atomic create: the UNIQUE index on slug decides the single winner
//   - lost-update-free counters: "views = views + 1" runs as one statement
//   - a working ":memory:" database (each new connection would otherwise get
//     its own empty in-memory database)
//
// The cost is that a long query blocks writers, which is fine for rows this small.
package sqlite

import (
	"database/sql"
	"fmt"

	// BLANK IMPORT:
	// The sqlite package's init() registers a database/sql driver named "sqlite".
	// After this import, sql.Open("sqlite", ...) knows how to talk to SQLite.
	_ "modernc.org/sqlite"
)

// busyTimeoutMillis bounds how long a statement waits on a locked database
// file (for example another process running cloakadmin) before failing.
const busyTimeoutMillis = 5000

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/cloak.db"  → file-based database (persistent)
//   - ":memory:"       → in-memory database (great for tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection, kept alive forever. See the package doc for why.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	// Ping forces the first real connection so a bad path fails here and not
	// on the first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets the admin CLI read the file while the server writes to it.
	// For ":memory:" SQLite silently keeps journal_mode=memory.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
//
// ALWAYS DEFER CLOSE:
//
//	db, err := sqlite.New("data/cloak.db")
//	if err != nil { ... }
//	defer db.Close()
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to run
// on every start.
//
// SCHEMA NOTES:
//   - seq is the rowid alias. It only ever grows, so it records insertion order
//     and breaks created_at ties in ListRecent.
//   - slug is stored normalized (trimmed, lowercased). The UNIQUE constraint on
//     it is what makes "two concurrent creates, one winner" hold.
//   - created_at and last_accessed are unix nanoseconds. Integers sort and
//     compare correctly without depending on the driver's time formatting.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snippets (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			id            TEXT    NOT NULL UNIQUE,
			slug          TEXT    NOT NULL UNIQUE,
			content_fake  TEXT    NOT NULL,
			content_real  TEXT    NOT NULL,
			secret_key    TEXT    NOT NULL,
			views         INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL,
			last_accessed INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating snippets table: %w", err)
	}

	return nil
}
