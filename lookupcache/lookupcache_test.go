package lookupcache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmaly/nowplaying/musicstate"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(":memory:", time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

var sample = musicstate.TrackCandidate{
	TrackID:     "t1",
	Name:        "Song Y",
	Artist:      "Artist X",
	Album:       "Album Z",
	AlbumID:     "abc",
	Popularity:  42,
	ArtworkURLs: []string{"https://i/large", "https://i/medium", "https://i/tiny"},
}

func TestCache_Miss(t *testing.T) {
	c := openTestCache(t)

	got, err := c.Get("Artist X - Song Y")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_PutAndGet(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Put("Artist X - Song Y", sample))

	got, err := c.Get("Artist X - Song Y")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sample, *got)
}

func TestCache_PutOverwrites(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Put("title", sample))
	updated := sample
	updated.Popularity = 90
	require.NoError(t, c.Put("title", updated))

	got, err := c.Get("title")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 90, got.Popularity)
}

func TestCache_Expiry(t *testing.T) {
	c := openTestCache(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Put("title", sample))

	now = now.Add(30 * time.Minute)
	got, err := c.Get("title")
	require.NoError(t, err)
	assert.NotNil(t, got)

	now = now.Add(time.Hour)
	got, err = c.Get("title")
	require.NoError(t, err)
	assert.Nil(t, got)

	removed, err := c.Prune()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lookups.db")

	c, err := Open(path, 0)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, DefaultTTL, c.ttl)
	assert.FileExists(t, path)
}
