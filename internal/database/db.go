package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion tags the on-disk layout via PRAGMA user_version so a
// future format change can migrate or refuse old files instead of
// silently misreading them.
const schemaVersion = 1

type DB struct {
	conn *sql.DB
}

type Config struct {
	Path string
}

func NewDB(config Config) (*DB, error) {
	conn, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; without this the
	// pool would hand out fresh empty databases.
	if config.Path == ":memory:" || strings.Contains(config.Path, "mode=memory") {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	var version int
	if err := db.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}

	switch {
	case version == schemaVersion:
		return nil
	case version > schemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		original_name TEXT NOT NULL,
		stored_name TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		modified_at DATETIME NOT NULL,
		upload_time DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analysis_cache (
		video_key TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		duration_seconds REAL NOT NULL,
		analysis TEXT NOT NULL,
		cached_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cache_expires ON analysis_cache(expires_at);
	CREATE INDEX IF NOT EXISTS idx_cache_file ON analysis_cache(file_name, file_size);
	`

	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	_, err := db.conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
