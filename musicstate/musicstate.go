package musicstate

import "errors"

var (
	ErrNoCurrentSong = errors.New("no current song playing")

	// ErrPlayerNotFound is returned by title probes when the player is not running.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrTransport covers timeouts, DNS failures and non-2xx HTTP responses.
	ErrTransport = errors.New("transport failure")

	// ErrParse covers response bodies that do not match the expected schema.
	ErrParse = errors.New("parse failure")
)

// Status describes what a NowPlaying value represents.
type Status int

const (
	// StatusPlaying carries a resolved track.
	StatusPlaying Status = iota
	// StatusFallback carries the raw display string because no track could be resolved.
	StatusFallback
	// StatusIdle means the player is running but nothing is playing.
	StatusIdle
	// StatusNotRunning means the player could not be found.
	StatusNotRunning
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusFallback:
		return "fallback"
	case StatusIdle:
		return "idle"
	case StatusNotRunning:
		return "not running"
	default:
		return "unknown"
	}
}

// NowPlaying represents the current track information from any supported player
type NowPlaying struct {
	Status  Status
	Title   string // track name, or the display text for non-playing states
	Artist  string
	Album   string
	AlbumID string
	TrackID string
	Player  string

	// Artwork is the current-artwork slot path once it holds this track's cover,
	// empty while the slot is blank.
	Artwork string
}

// HasTrack reports whether np carries resolved track metadata.
func (np NowPlaying) HasTrack() bool {
	return np.Status == StatusPlaying
}

// ArtworkSize selects one entry of a candidate's ordered artwork list.
type ArtworkSize int

const (
	ArtworkLarge ArtworkSize = iota
	ArtworkMedium
	ArtworkTiny
)

// ParseArtworkSize maps a config value to an ArtworkSize, defaulting to large.
func ParseArtworkSize(s string) ArtworkSize {
	switch s {
	case "medium":
		return ArtworkMedium
	case "tiny", "small":
		return ArtworkTiny
	default:
		return ArtworkLarge
	}
}

func (s ArtworkSize) String() string {
	switch s {
	case ArtworkMedium:
		return "medium"
	case ArtworkTiny:
		return "tiny"
	default:
		return "large"
	}
}

// TrackCandidate is one track returned by a search.
type TrackCandidate struct {
	TrackID    string
	Name       string
	Artist     string // primary artist
	Album      string
	AlbumID    string
	Popularity int
	// ArtworkURLs is ordered large, medium, tiny.
	ArtworkURLs []string
}

// ArtworkURL returns the URL for the requested size. When the list is shorter
// than expected the smallest available image is used.
func (c TrackCandidate) ArtworkURL(size ArtworkSize) string {
	if len(c.ArtworkURLs) == 0 {
		return ""
	}
	idx := int(size)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(c.ArtworkURLs) {
		idx = len(c.ArtworkURLs) - 1
	}
	return c.ArtworkURLs[idx]
}

// NowPlaying converts the candidate into a playing state.
func (c TrackCandidate) NowPlaying(player string) NowPlaying {
	return NowPlaying{
		Status:  StatusPlaying,
		Title:   c.Name,
		Artist:  c.Artist,
		Album:   c.Album,
		AlbumID: c.AlbumID,
		TrackID: c.TrackID,
		Player:  player,
	}
}
