package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/oauth2"

	"github.com/emmaly/nowplaying/musicstate"
)

const (
	// DefaultTokenURL is the authorization proxy that holds the application credentials.
	DefaultTokenURL = "https://impas.se/snip/authorization.php?client=SNIP"
	// DefaultMinRefresh bounds the refresh cadence when the proxy returns no usable TTL.
	DefaultMinRefresh = 5 * time.Second
	// DefaultTimeout for API requests
	DefaultTimeout = 10 * time.Second
)

// fetchFunc retrieves a fresh access token and its time-to-live.
type fetchFunc func(ctx context.Context) (string, time.Duration, error)

// TokenManager keeps a bearer token from the authorization proxy valid.
// It implements oauth2.TokenSource.
type TokenManager struct {
	fetch      fetchFunc
	minRefresh time.Duration

	mu    sync.RWMutex
	token *oauth2.Token
	ttl   time.Duration

	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// TokenOptions configures a TokenManager.
type TokenOptions struct {
	URL        string
	ClientID   string
	Version    string
	MinRefresh time.Duration
	HTTPClient *http.Client
}

// NewTokenManager creates a TokenManager for the given authorization proxy.
func NewTokenManager(opts TokenOptions) *TokenManager {
	if opts.URL == "" {
		opts.URL = DefaultTokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	userAgent := opts.ClientID + "/" + opts.Version

	m := newTokenManager(opts.MinRefresh, func(ctx context.Context) (string, time.Duration, error) {
		return fetchToken(ctx, opts.HTTPClient, opts.URL, userAgent)
	})
	return m
}

func newTokenManager(minRefresh time.Duration, fetch fetchFunc) *TokenManager {
	if minRefresh <= 0 {
		minRefresh = DefaultMinRefresh
	}
	return &TokenManager{
		fetch:      fetch,
		minRefresh: minRefresh,
		kick:       make(chan struct{}, 1),
	}
}

// Start fetches the initial token synchronously and then keeps it fresh in
// the background until ctx is cancelled or Stop is called. A failed initial
// fetch is returned but does not stop the refresh loop.
func (m *TokenManager) Start(ctx context.Context) error {
	err := m.refresh(ctx)

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(loopCtx)

	return err
}

// Stop ends the refresh loop and clears the token.
func (m *TokenManager) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel = nil
	}
	m.clear()
}

// RefreshNow asks the refresh loop to fetch a new token immediately and
// re-arm its timer from the new TTL.
func (m *TokenManager) RefreshNow() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Token returns the current token, or ErrNoToken while unauthenticated.
func (m *TokenManager) Token() (*oauth2.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.validLocked() {
		return nil, ErrNoToken
	}
	tok := *m.token
	return &tok, nil
}

// Valid reports whether a non-empty, unexpired token is held.
func (m *TokenManager) Valid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.validLocked()
}

func (m *TokenManager) validLocked() bool {
	if m.token == nil || m.token.AccessToken == "" {
		return false
	}
	return m.token.Expiry.IsZero() || time.Now().Before(m.token.Expiry)
}

// Interval returns the delay until the next scheduled refresh: the last TTL,
// floored at the minimum refresh interval.
func (m *TokenManager) Interval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ttl < m.minRefresh {
		return m.minRefresh
	}
	return m.ttl
}

func (m *TokenManager) loop(ctx context.Context) {
	defer close(m.done)

	timer := time.NewTimer(m.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.clear()
			return
		case <-timer.C:
		case <-m.kick:
		}

		_ = m.refresh(ctx)
		timer.Reset(m.Interval())
	}
}

func (m *TokenManager) refresh(ctx context.Context) error {
	value, ttl, err := m.fetch(ctx)
	if err != nil {
		m.clear()
		musicstate.Debugf("Token refresh failed: %v", err)
		return fmt.Errorf("refreshing token: %w", err)
	}

	m.set(value, ttl)
	return nil
}

func (m *TokenManager) set(value string, ttl time.Duration) {
	tok := &oauth2.Token{AccessToken: value, TokenType: "Bearer"}
	if ttl > 0 {
		tok.Expiry = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.token = tok
	m.ttl = ttl
	m.mu.Unlock()

	if ttl > 0 {
		musicstate.Debugf("Token refreshed, expires %s", humanize.Time(tok.Expiry))
	} else {
		musicstate.Debugf("Token refreshed without a lifetime, refreshing again in %v", m.minRefresh)
	}
}

func (m *TokenManager) clear() {
	m.mu.Lock()
	m.token = nil
	m.ttl = 0
	m.mu.Unlock()
}

// fetchToken calls the authorization proxy.
func fetchToken(ctx context.Context, client *http.Client, tokenURL, userAgent string) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, http.NoBody)
	if err != nil {
		return "", 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("sending request: %w: %w", musicstate.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", 0, &HTTPError{Kind: KindToken, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) {
			return "", 0, fmt.Errorf("reading response body: %w: %w", musicstate.ErrTransport, err)
		}
		return "", 0, fmt.Errorf("decoding response: %w: %w", musicstate.ErrParse, err)
	}
	if tr.AccessToken == nil || *tr.AccessToken == "" {
		return "", 0, fmt.Errorf("decoding response: %w: missing access_token", musicstate.ErrParse)
	}

	var ttl time.Duration
	if tr.ExpiresIn != nil && *tr.ExpiresIn > 0 {
		ttl = time.Duration(*tr.ExpiresIn) * time.Second
	}
	return *tr.AccessToken, ttl, nil
}
