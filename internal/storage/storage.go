// Package storage persists the local "already voted" marks, the terminal
// equivalent of the browser's local storage: a string key/value table in a
// SQLite file under the data dir.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"caspview/internal/votes"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// FileName is the SQLite file inside the data dir.
const FileName = "marks.db"

type Storage struct {
	db *sql.DB
}

// Open opens (or creates) the store at path
func Open(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// One writer at a time keeps SQLite from reporting SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// OpenDir opens the store file inside dir
func OpenDir(dir string) (*Storage, error) {
	return Open(filepath.Join(dir, FileName))
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// Get returns the value for key and whether it exists
func (s *Storage) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key. An existing key keeps its first value.
func (s *Storage) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO kv (key, value) VALUES (?, ?)`, key, value)
	return err
}

// Keys lists the keys starting with prefix, sorted
func (s *Storage) Keys(prefix string) ([]string, error) {
	// Keys compare bytewise, so every match sorts in one run starting at prefix
	rows, err := s.db.Query(`SELECT key FROM kv WHERE key >= ? ORDER BY key`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		if !strings.HasPrefix(k, prefix) {
			break
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// LoadMarks returns every vote mark stored under prefix. Keys that do not
// parse are ignored.
func (s *Storage) LoadMarks(prefix string) ([]votes.Key, error) {
	keys, err := s.Keys(prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load vote marks: %w", err)
	}

	marks := make([]votes.Key, 0, len(keys))
	for _, k := range keys {
		if mark, ok := votes.ParseMarkKey(prefix, k); ok {
			marks = append(marks, mark)
		}
	}
	return marks, nil
}

// HasMark reports whether a vote mark exists for k
func (s *Storage) HasMark(prefix string, k votes.Key) (bool, error) {
	_, ok, err := s.Get(votes.MarkKey(prefix, k))
	return ok, err
}

// SaveMark records that this client voted for k at the given time
func (s *Storage) SaveMark(prefix string, k votes.Key, at time.Time) error {
	if strings.TrimSpace(prefix) == "" {
		return errors.New("storage prefix must not be empty")
	}
	return s.Set(votes.MarkKey(prefix, k), at.UTC().Format(time.RFC3339))
}
