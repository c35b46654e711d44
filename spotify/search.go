// Package spotify resolves window titles against the Spotify Web API.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	zspotify "github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/sync/semaphore"

	"github.com/emmaly/nowplaying/musicstate"
	"github.com/emmaly/nowplaying/titles"
)

// DefaultAPIBase is the base URL for the Spotify Web API
const DefaultAPIBase = "https://api.spotify.com"

// Client represents a Spotify Web API search client
type Client struct {
	api      *zspotify.Client
	endpoint string
	inflight *semaphore.Weighted
}

// NewClient creates a search client whose requests are authorized by tokens.
func NewClient(baseURL string, tokens oauth2.TokenSource, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: tokens,
			Base:   http.DefaultTransport,
		},
	}

	endpoint := strings.TrimSuffix(baseURL, "/") + "/v1/"
	return &Client{
		api:      zspotify.New(httpClient, zspotify.WithBaseURL(endpoint)),
		endpoint: endpoint,
		inflight: semaphore.NewWeighted(1),
	}
}

// Search looks up tracks matching query. Only one search runs at a time;
// a call made while another is outstanding returns ErrSearchInFlight.
func (c *Client) Search(ctx context.Context, query string) (*Results, error) {
	if !c.inflight.TryAcquire(1) {
		return nil, ErrSearchInFlight
	}
	defer c.inflight.Release(1)

	musicstate.Debugf("GET %ssearch?q=%s&type=track", c.endpoint, titles.Escape(query))
	res, err := c.api.Search(ctx, query, zspotify.SearchTypeTrack)
	if err != nil {
		return nil, classify(err)
	}

	results, err := newResults(res)
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	musicstate.Debugf("Spotify returned %d results (%d candidates)", results.Total, len(results.Candidates))
	return results, nil
}

// classify maps a failed search onto ErrTransport or ErrParse. Failures that
// cannot be attributed to a malformed body count as transport failures so the
// next tick retries them.
func classify(err error) error {
	var apiErr zspotify.Error
	if errors.As(err, &apiErr) {
		return apiError(apiErr)
	}
	var apiErrPtr *zspotify.Error
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiError(*apiErrPtr)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("sending request: %w: %w", musicstate.ErrTransport, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("decoding response: %w: %w", musicstate.ErrParse, err)
	}

	return fmt.Errorf("search failed: %w: %w", musicstate.ErrTransport, err)
}

func apiError(e zspotify.Error) *HTTPError {
	return &HTTPError{
		Kind:       KindSearch,
		StatusCode: e.Status,
		Status:     http.StatusText(e.Status),
		Body:       e.Message,
	}
}
