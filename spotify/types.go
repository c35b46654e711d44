package spotify

import (
	"fmt"

	zspotify "github.com/zmb3/spotify/v2"

	"github.com/emmaly/nowplaying/musicstate"
)

// tokenResponse is the body returned by the authorization proxy.
type tokenResponse struct {
	AccessToken *string `json:"access_token"`
	ExpiresIn   *int64  `json:"expires_in"`
}

// Results is a parsed search response.
type Results struct {
	Total      int
	Candidates []musicstate.TrackCandidate
}

// newResults validates a track search page and flattens it into candidates.
func newResults(res *zspotify.SearchResult) (*Results, error) {
	if res == nil || res.Tracks == nil {
		return nil, fmt.Errorf("%w: missing tracks", musicstate.ErrParse)
	}

	out := &Results{Total: int(res.Tracks.Total)}
	if out.Total <= 0 && len(res.Tracks.Tracks) == 0 {
		out.Total = 0
		return out, nil
	}

	out.Candidates = make([]musicstate.TrackCandidate, 0, len(res.Tracks.Tracks))
	for i := range res.Tracks.Tracks {
		t := &res.Tracks.Tracks[i]
		// JSON null items decode to the zero track.
		if isEmptyTrack(t) {
			continue
		}
		c, err := candidate(t)
		if err != nil {
			return nil, fmt.Errorf("tracks.items[%d]: %w", i, err)
		}
		out.Candidates = append(out.Candidates, c)
	}

	return out, nil
}

func isEmptyTrack(t *zspotify.FullTrack) bool {
	return t.ID == "" && t.Name == "" && len(t.Artists) == 0 && t.Album.ID == "" && t.Album.Name == ""
}

func candidate(t *zspotify.FullTrack) (musicstate.TrackCandidate, error) {
	if t.Name == "" {
		return musicstate.TrackCandidate{}, fmt.Errorf("%w: missing name", musicstate.ErrParse)
	}
	if len(t.Artists) == 0 || t.Artists[0].Name == "" {
		return musicstate.TrackCandidate{}, fmt.Errorf("%w: missing artists[0].name", musicstate.ErrParse)
	}
	if t.Album.ID == "" {
		return musicstate.TrackCandidate{}, fmt.Errorf("%w: missing album.id", musicstate.ErrParse)
	}

	popularity := max(int(t.Popularity), 0)

	urls := make([]string, 0, len(t.Album.Images))
	for _, img := range t.Album.Images {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}

	return musicstate.TrackCandidate{
		TrackID:     string(t.ID),
		Name:        t.Name,
		Artist:      t.Artists[0].Name,
		Album:       t.Album.Name,
		AlbumID:     string(t.Album.ID),
		Popularity:  popularity,
		ArtworkURLs: urls,
	}, nil
}
