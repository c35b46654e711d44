package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmaly/nowplaying/spotify"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(nil)
	require.NoError(t, err)

	assert.True(t, cfg.ServerEnabled())
	assert.True(t, cfg.ArtworkEnabled())
	assert.False(t, cfg.HasLookupCache())
	assert.Equal(t, "localhost:52846", cfg.Addr())

	sp := cfg.GetSpotifyConfig()
	assert.Equal(t, spotify.DefaultTokenURL, sp.TokenURL)
	assert.Equal(t, spotify.DefaultAPIBase, sp.APIBase)
	assert.Equal(t, 5*time.Second, sp.MinRefresh)
	assert.Equal(t, 10*time.Second, sp.Timeout)

	pl := cfg.GetPlayerConfig()
	assert.Equal(t, []string{"Spotify.exe"}, pl.ProcessNames)
	assert.Equal(t, time.Second, pl.PollInterval)
	assert.Equal(t, "spotify", pl.MPRISName)

	art := cfg.GetArtworkConfig()
	assert.Equal(t, "large", art.Size)
	assert.True(t, *art.Keep)
	assert.Equal(t, 10*time.Second, art.Timeout)
	assert.NotEmpty(t, art.Dir)
	assert.NotEmpty(t, art.CurrentPath)

	assert.Equal(t, 7*24*time.Hour, cfg.GetLookupCacheConfig().TTL)
	assert.Equal(t, "No track playing", cfg.GetMessages().NoTrackPlaying)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
debug = true

[server]
enabled = false
host = "0.0.0.0"
port = 8080

[player]
source = "WebScrobbler"
poll_interval = "2s"

[spotify]
min_refresh = "30s"
api_base = "http://localhost:9999/"

[artwork]
keep = false
size = "small"
dir = "/tmp/art"
max_dimension = 300

[lookup_cache]
enabled = true
ttl = "1h"

[messages]
not_running = "Spotify est fermé"
`)

	cfg, err := load([]string{path})
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.False(t, cfg.ServerEnabled())
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())

	pl := cfg.GetPlayerConfig()
	assert.Equal(t, "webscrobbler", pl.Source)
	assert.Equal(t, 2*time.Second, pl.PollInterval)

	sp := cfg.GetSpotifyConfig()
	assert.Equal(t, 30*time.Second, sp.MinRefresh)
	assert.Equal(t, "http://localhost:9999", sp.APIBase)

	art := cfg.GetArtworkConfig()
	assert.False(t, *art.Keep)
	assert.Equal(t, "tiny", art.Size)
	assert.Equal(t, "/tmp/art", art.Dir)
	assert.Equal(t, uint(300), art.MaxDimension)

	assert.True(t, cfg.HasLookupCache())
	assert.Equal(t, time.Hour, cfg.GetLookupCacheConfig().TTL)
	assert.Equal(t, "Spotify est fermé", cfg.GetMessages().NotRunning)
}

func TestLoad_LaterFileWins(t *testing.T) {
	first := writeConfig(t, "[server]\nport = 1111\nhost = \"first\"\n")
	second := writeConfig(t, "[server]\nport = 2222\n")

	cfg, err := load([]string{first, filepath.Join(t.TempDir(), "missing.toml"), second})
	require.NoError(t, err)

	assert.Equal(t, "first:2222", cfg.Addr())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("NOWPLAYING_SERVER__PORT", "9000")
	t.Setenv("NOWPLAYING_ARTWORK__ENABLED", "false")
	t.Setenv("NOWPLAYING_SPOTIFY__MIN_REFRESH", "1m")
	t.Setenv("NOWPLAYING_PLAYER__PROCESS_NAMES", "Spotify.exe, TIDAL.exe")
	t.Setenv("NOWPLAYING_LOOKUP_CACHE__ENABLED", "true")
	t.Setenv("NOWPLAYING_PLAYER__TITLE_PATTERN", ` - `)

	path := writeConfig(t, "[server]\nport = 1111\n")
	cfg, err := load([]string{path})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.GetServerConfig().Port)
	assert.False(t, cfg.ArtworkEnabled())
	assert.Equal(t, time.Minute, cfg.GetSpotifyConfig().MinRefresh)
	assert.Equal(t, []string{"Spotify.exe", "TIDAL.exe"}, cfg.GetPlayerConfig().ProcessNames)
	assert.True(t, cfg.HasLookupCache())

	re, err := cfg.GetPlayerConfig().TitleRegexp()
	require.NoError(t, err)
	assert.True(t, re.MatchString("Artist X - Song Y"))
	assert.False(t, re.MatchString("Spotify Premium"))
}

func TestPlayerConfig_TitleRegexp(t *testing.T) {
	re, err := PlayerConfig{}.TitleRegexp()
	require.NoError(t, err)
	assert.Nil(t, re)

	_, err = PlayerConfig{TitlePattern: "("}.TitleRegexp()
	assert.ErrorContains(t, err, "player.title_pattern")
}

func TestLoad_LegacyPort(t *testing.T) {
	t.Setenv("MUSICSTATE_PORT", "4242")

	cfg, err := load(nil)
	require.NoError(t, err)
	assert.Equal(t, 4242, cfg.GetServerConfig().Port)

	t.Setenv("MUSICSTATE_PORT", "nope")
	_, err = load(nil)
	assert.Error(t, err)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeConfig(t, "[server\nport = ")

	_, err := load([]string{path})
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("Could not get home dir: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"tilde expands to home", "~/art", filepath.Join(home, "art")},
		{"absolute path unchanged", "/var/cache/art", "/var/cache/art"},
		{"relative path unchanged", "art/current.jpg", "art/current.jpg"},
		{"empty string unchanged", "", ""},
		{"tilde only", "~", home},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandPath(tt.input))
		})
	}
}

func TestGetConfigPaths(t *testing.T) {
	paths := getConfigPaths()

	require.NotEmpty(t, paths)
	assert.Equal(t, "config.toml", paths[len(paths)-1])
	assert.Equal(t, "config.toml", filepath.Base(paths[0]))
}
