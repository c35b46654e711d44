// Package config loads layered TOML and environment configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/emmaly/nowplaying/artwork"
	"github.com/emmaly/nowplaying/lookupcache"
	"github.com/emmaly/nowplaying/probe"
	"github.com/emmaly/nowplaying/spotify"
	"github.com/emmaly/nowplaying/watcher"
	"github.com/emmaly/nowplaying/webscrobbler"
)

const (
	appName    = "nowplaying"
	envPrefix  = "NOWPLAYING_"
	legacyPort = "MUSICSTATE_PORT"

	DefaultHost = "localhost"
	DefaultPort = 52846
)

type Config struct {
	Debug bool `koanf:"debug"`

	Server      ServerConfig      `koanf:"server"`
	Player      PlayerConfig      `koanf:"player"`
	Spotify     SpotifyConfig     `koanf:"spotify"`
	Artwork     ArtworkConfig     `koanf:"artwork"`
	LookupCache LookupCacheConfig `koanf:"lookup_cache"`
	Notify      NotifyConfig      `koanf:"notify"`
	Messages    MessagesConfig    `koanf:"messages"`
}

// ServerConfig controls the overlay HTTP server.
type ServerConfig struct {
	Enabled *bool  `koanf:"enabled"` // default: true
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
}

// PlayerConfig selects how the player's display string is read.
type PlayerConfig struct {
	Source            string        `koanf:"source"`        // "window", "mpris" or "webscrobbler"
	ProcessNames      []string      `koanf:"process_names"` // window source only
	TitlePattern      string        `koanf:"title_pattern"` // window source only, regexp
	MPRISName         string        `koanf:"mpris_name"`
	PollInterval      time.Duration `koanf:"poll_interval"`
	WebScrobblerStale time.Duration `koanf:"webscrobbler_stale"`
}

// TitleRegexp compiles TitlePattern. An empty pattern yields nil.
func (c PlayerConfig) TitleRegexp() (*regexp.Regexp, error) {
	if c.TitlePattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(c.TitlePattern)
	if err != nil {
		return nil, fmt.Errorf("player.title_pattern: %w", err)
	}
	return re, nil
}

// SpotifyConfig holds the token proxy and search API settings.
type SpotifyConfig struct {
	TokenURL      string        `koanf:"token_url"`
	APIBase       string        `koanf:"api_base"`
	ClientID      string        `koanf:"client_id"`
	ClientVersion string        `koanf:"client_version"`
	Timeout       time.Duration `koanf:"timeout"`
	MinRefresh    time.Duration `koanf:"min_refresh"`
}

// ArtworkConfig controls album art handling.
type ArtworkConfig struct {
	Enabled      *bool         `koanf:"enabled"` // default: true
	Keep         *bool         `koanf:"keep"`    // default: true
	Size         string        `koanf:"size"`    // "large", "medium" or "tiny"
	Dir          string        `koanf:"dir"`
	CurrentPath  string        `koanf:"current_path"`
	Timeout      time.Duration `koanf:"timeout"`
	MaxDimension uint          `koanf:"max_dimension"`
}

// LookupCacheConfig controls the SQLite title cache.
type LookupCacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	Path    string        `koanf:"path"`
	TTL     time.Duration `koanf:"ttl"`
}

type NotifyConfig struct {
	Enabled bool `koanf:"enabled"`
}

// MessagesConfig holds the texts shown when no track is resolved.
type MessagesConfig struct {
	NoTrackPlaying string `koanf:"no_track_playing"`
	NotRunning     string `koanf:"not_running"`
}

// Load reads the config files and environment. Extra files are applied after
// the default locations.
func Load(extra ...string) (*Config, error) {
	paths := getConfigPaths()
	for _, path := range extra {
		if path == "" {
			continue
		}
		path = expandPath(path)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		paths = append(paths, path)
	}
	return load(paths)
}

func load(paths []string) (*Config, error) {
	k := koanf.New(".")

	// Later files win
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("loading %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if v := os.Getenv(legacyPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", legacyPort, err)
		}
		cfg.Server.Port = port
	}

	cfg.Artwork.Dir = expandPath(cfg.Artwork.Dir)
	cfg.Artwork.CurrentPath = expandPath(cfg.Artwork.CurrentPath)
	cfg.LookupCache.Path = expandPath(cfg.LookupCache.Path)
	cfg.Spotify.APIBase = strings.TrimSuffix(cfg.Spotify.APIBase, "/")

	return cfg, nil
}

// envKey maps NOWPLAYING_SERVER__PORT to server.port. Comma separated values
// become lists.
func envKey(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	key = strings.ReplaceAll(key, "__", ".")

	if key == "player.process_names" {
		var names []string
		for _, n := range strings.Split(value, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		return key, names
	}
	return key, value
}

func getConfigPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/nowplaying/config.toml
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		// 2. ./config.toml (pwd, highest priority)
		"config.toml",
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// ServerEnabled reports whether the overlay server should run.
func (c *Config) ServerEnabled() bool {
	return boolOr(c.Server.Enabled, true)
}

// ArtworkEnabled reports whether album art is saved at all.
func (c *Config) ArtworkEnabled() bool {
	return boolOr(c.Artwork.Enabled, true)
}

// HasLookupCache reports whether the title cache is switched on.
func (c *Config) HasLookupCache() bool {
	return c.LookupCache.Enabled
}

// Addr returns the overlay listen address.
func (c *Config) Addr() string {
	s := c.GetServerConfig()
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetServerConfig returns the server configuration with defaults applied.
func (c *Config) GetServerConfig() ServerConfig {
	cfg := c.Server
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = DefaultPort
	}
	return cfg
}

// GetPlayerConfig returns the player configuration with defaults applied.
func (c *Config) GetPlayerConfig() PlayerConfig {
	cfg := c.Player
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	if cfg.Source == "" {
		cfg.Source = probe.DefaultSource()
	}
	if len(cfg.ProcessNames) == 0 {
		cfg.ProcessNames = []string{"Spotify.exe"}
	}
	if cfg.MPRISName == "" {
		cfg.MPRISName = "spotify"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = watcher.DefaultInterval
	}
	if cfg.WebScrobblerStale <= 0 {
		cfg.WebScrobblerStale = webscrobbler.DefaultStale
	}
	return cfg
}

// GetSpotifyConfig returns the API configuration with defaults applied.
func (c *Config) GetSpotifyConfig() SpotifyConfig {
	cfg := c.Spotify
	if cfg.TokenURL == "" {
		cfg.TokenURL = spotify.DefaultTokenURL
	}
	if cfg.APIBase == "" {
		cfg.APIBase = spotify.DefaultAPIBase
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "Snip"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = spotify.DefaultTimeout
	}
	if cfg.MinRefresh <= 0 {
		cfg.MinRefresh = spotify.DefaultMinRefresh
	}
	return cfg
}

// GetArtworkConfig returns the artwork configuration with defaults applied.
func (c *Config) GetArtworkConfig() ArtworkConfig {
	cfg := c.Artwork
	if cfg.Enabled == nil {
		enabled := true
		cfg.Enabled = &enabled
	}
	if cfg.Keep == nil {
		keep := true
		cfg.Keep = &keep
	}
	switch cfg.Size {
	case "large", "medium", "tiny":
	case "small":
		cfg.Size = "tiny"
	default:
		cfg.Size = "large"
	}
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(xdg.CacheHome, appName, "artwork")
	}
	if cfg.CurrentPath == "" {
		cfg.CurrentPath = filepath.Join(xdg.DataHome, appName, "artwork.jpg")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = artwork.DefaultTimeout
	}
	return cfg
}

// GetLookupCacheConfig returns the lookup cache configuration with defaults applied.
func (c *Config) GetLookupCacheConfig() LookupCacheConfig {
	cfg := c.LookupCache
	if cfg.Path == "" {
		cfg.Path = filepath.Join(xdg.CacheHome, appName, "lookups.db")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = lookupcache.DefaultTTL
	}
	return cfg
}

// GetMessages returns the display texts with defaults applied.
func (c *Config) GetMessages() watcher.Messages {
	m := watcher.Messages{
		NoTrackPlaying: c.Messages.NoTrackPlaying,
		NotRunning:     c.Messages.NotRunning,
	}
	if m.NoTrackPlaying == "" {
		m.NoTrackPlaying = watcher.DefaultMessages.NoTrackPlaying
	}
	if m.NotRunning == "" {
		m.NotRunning = watcher.DefaultMessages.NotRunning
	}
	return m
}
