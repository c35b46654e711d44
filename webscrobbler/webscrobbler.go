// Package webscrobbler receives Web Scrobbler webhook events from browser
// players and exposes the latest one as a title probe.
package webscrobbler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/emmaly/nowplaying/musicstate"
	"github.com/emmaly/nowplaying/probe"
)

// Scrobble is the webhook payload sent by the Web Scrobbler extension. Only
// the fields needed to rebuild a display string are decoded.
type Scrobble struct {
	EventName string `json:"eventName"`
	Time      int64  `json:"time"`
	Data      struct {
		Song struct {
			Connector struct {
				ID    string `json:"id"`
				Label string `json:"label"`
			} `json:"connector"`
			NoRegex   songFields `json:"noRegex"`
			Processed songFields `json:"processed"`
			Parsed    struct {
				songFields
				IsPlaying bool   `json:"isPlaying"`
				OriginURL string `json:"originUrl"`
				TrackArt  string `json:"trackArt"`
			} `json:"parsed"`
		} `json:"song"`
	} `json:"data"`
}

type songFields struct {
	Album  string `json:"album"`
	Artist string `json:"artist"`
	Track  string `json:"track"`
}

// ParseScrobble decodes a webhook body.
func ParseScrobble(data []byte) (Scrobble, error) {
	var scrobble Scrobble
	if err := json.Unmarshal(data, &scrobble); err != nil {
		return Scrobble{}, fmt.Errorf("%w: scrobble: %v", musicstate.ErrParse, err)
	}

	// These events always mean the song is playing, whatever the connector reported.
	switch scrobble.EventName {
	case "nowplaying", "resumedplaying", "songchange":
		scrobble.Data.Song.Parsed.IsPlaying = true
	case "paused":
		scrobble.Data.Song.Parsed.IsPlaying = false
	}

	return scrobble, nil
}

// Artist returns the best artist value, preferring user-corrected fields.
func (s Scrobble) Artist() string {
	song := s.Data.Song
	return firstNonEmpty(song.Processed.Artist, song.Parsed.Artist, song.NoRegex.Artist)
}

// Track returns the best track value, preferring user-corrected fields.
func (s Scrobble) Track() string {
	song := s.Data.Song
	return firstNonEmpty(song.Processed.Track, song.Parsed.Track, song.NoRegex.Track)
}

// DisplayTitle renders the scrobble as the "Artist - Title" display string.
func (s Scrobble) DisplayTitle() string {
	var artists []string
	if a := s.Artist(); a != "" {
		artists = []string{a}
	}
	return probe.DisplayTitle(artists, s.Track())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
