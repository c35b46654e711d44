// Package lookupcache memoizes resolved window titles in SQLite so a track
// that comes round again does not need another search request.
package lookupcache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/emmaly/nowplaying/musicstate"
)

// DefaultTTL is how long a resolved title stays usable.
const DefaultTTL = 7 * 24 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS lookups (
	title TEXT PRIMARY KEY,
	track_id TEXT NOT NULL,
	name TEXT NOT NULL,
	artist TEXT NOT NULL,
	album TEXT NOT NULL,
	album_id TEXT NOT NULL,
	popularity INTEGER NOT NULL,
	artwork_urls TEXT NOT NULL,
	fetched_at INTEGER NOT NULL
);
`

// Cache stores one selected track per window title.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens (creating if needed) the cache database at path.
func Open(path string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open lookup cache: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init lookup cache schema: %w", err)
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) isExpired(fetchedAt int64) bool {
	return fetchedAt < c.now().Add(-c.ttl).Unix()
}

// Get returns the cached track for title. A miss or an expired entry returns
// nil with no error.
func (c *Cache) Get(title string) (*musicstate.TrackCandidate, error) {
	var (
		track     musicstate.TrackCandidate
		urls      string
		fetchedAt int64
	)

	err := c.db.QueryRow(`
		SELECT track_id, name, artist, album, album_id, popularity, artwork_urls, fetched_at
		FROM lookups
		WHERE title = ?
	`, title).Scan(
		&track.TrackID, &track.Name, &track.Artist, &track.Album, &track.AlbumID,
		&track.Popularity, &urls, &fetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query lookup cache: %w", err)
	}

	if c.isExpired(fetchedAt) {
		return nil, nil
	}

	if err := json.Unmarshal([]byte(urls), &track.ArtworkURLs); err != nil {
		return nil, fmt.Errorf("decode artwork urls: %w", err)
	}

	return &track, nil
}

// Put stores the track selected for title, replacing any earlier entry.
func (c *Cache) Put(title string, track musicstate.TrackCandidate) error {
	urls, err := json.Marshal(track.ArtworkURLs)
	if err != nil {
		return fmt.Errorf("encode artwork urls: %w", err)
	}

	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO lookups
			(title, track_id, name, artist, album, album_id, popularity, artwork_urls, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, title, track.TrackID, track.Name, track.Artist, track.Album, track.AlbumID,
		track.Popularity, string(urls), c.now().Unix())
	if err != nil {
		return fmt.Errorf("store lookup: %w", err)
	}
	return nil
}

// Prune deletes expired entries and returns how many were removed.
func (c *Cache) Prune() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM lookups WHERE fetched_at < ?`, c.now().Add(-c.ttl).Unix())
	if err != nil {
		return 0, fmt.Errorf("prune lookup cache: %w", err)
	}
	return res.RowsAffected()
}
