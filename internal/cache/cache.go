// Package cache is a compiled-program cache backed by modernc.org/sqlite,
// keyed by a SHA-256 digest of the source text. It mirrors the
// open/PRAGMA/create-table-if-needed shape of the teacher repo's sqlite
// persistence layer.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	_ "modernc.org/sqlite"
)

// Cache wraps a single-table sqlite database mapping source hash to
// serialized .pvm bytes.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: opening %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: setting busy timeout: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		hash TEXT PRIMARY KEY,
		pvm BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: creating table: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Key returns the cache key for a source file's bytes.
func Key(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached .pvm bytes for key, and whether a hit occurred.
// A cache-open or query failure is surfaced; callers should treat any error
// here as a fall-through to a full compile, never a hard failure.
func (c *Cache) Lookup(key string) ([]byte, bool, error) {
	var pvm []byte
	err := c.db.QueryRow(`SELECT pvm FROM programs WHERE hash = ?`, key).Scan(&pvm)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: lookup: %w", err)
	}
	return pvm, true, nil
}

// Store records the compiled bytes for key, stamped with createdAt (unix
// seconds, supplied by the caller since this package never reads the
// system clock itself).
func (c *Cache) Store(key string, pvm []byte, createdAt int64) error {
	_, err := c.db.Exec(
		`INSERT INTO programs (hash, pvm, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET pvm = excluded.pvm, created_at = excluded.created_at`,
		key, pvm, createdAt,
	)
	if err != nil {
		return fmt.Errorf("cache: store: %w", err)
	}
	return nil
}
