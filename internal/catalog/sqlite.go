// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go driver
)

// Config defines SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 8,
	}
}

// openDB opens a pool where every connection carries the WAL and busy_timeout
// pragmas. modernc.org/sqlite applies _pragma DSN parameters per connection.
func openDB(dbPath string, cfg Config) (*sql.DB, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = DefaultConfig().BusyTimeout
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultConfig().MaxOpenConns
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS movies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	original_title TEXT NOT NULL DEFAULT '',
	overview TEXT NOT NULL DEFAULT '',
	release_date TEXT NOT NULL DEFAULT '',
	genre_ids TEXT NOT NULL DEFAULT '',
	original_language TEXT NOT NULL DEFAULT 'vi',
	vote_average REAL NOT NULL DEFAULT 0,
	vote_count INTEGER NOT NULL DEFAULT 0,
	runtime INTEGER NOT NULL DEFAULT 0,
	poster_path TEXT,
	backdrop_path TEXT,
	video_path TEXT,
	tag TEXT NOT NULL DEFAULT 'trending',
	cast_json TEXT NOT NULL DEFAULT '[]',
	duration INTEGER,
	quality TEXT,
	file_size INTEGER,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_movies_created_at ON movies(created_at);
CREATE INDEX IF NOT EXISTS idx_movies_tag ON movies(tag);

CREATE TABLE IF NOT EXISTS shows (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	genre TEXT NOT NULL DEFAULT '',
	year INTEGER,
	show_poster TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS show_episodes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	show_id INTEGER NOT NULL REFERENCES shows(id) ON DELETE CASCADE,
	title TEXT NOT NULL DEFAULT '',
	episode_number INTEGER NOT NULL DEFAULT 0,
	thumbnail_url TEXT,
	video_path TEXT,
	duration INTEGER,
	quality TEXT,
	file_size INTEGER,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_show_episodes_show ON show_episodes(show_id, episode_number);
`
