package watcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmaly/nowplaying/artwork"
	"github.com/emmaly/nowplaying/musicstate"
	"github.com/emmaly/nowplaying/spotify"
)

type fakeProbe struct {
	mu    sync.Mutex
	title string
	err   error
}

func (p *fakeProbe) set(title string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title, p.err = title, err
}

func (p *fakeProbe) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, p.err
}

type tokenState bool

func (t tokenState) Valid() bool { return bool(t) }

type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	fn      func(query string) (*spotify.Results, error)
}

func (s *fakeSearch) Search(_ context.Context, query string) (*spotify.Results, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	fn := s.fn
	s.mu.Unlock()
	return fn(query)
}

func (s *fakeSearch) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

type recorder struct {
	mu      sync.Mutex
	reports []musicstate.NowPlaying
}

func (r *recorder) Report(np musicstate.NowPlaying) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, np)
}

func (r *recorder) all() []musicstate.NowPlaying {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]musicstate.NowPlaying(nil), r.reports...)
}

func (r *recorder) last() musicstate.NowPlaying {
	all := r.all()
	if len(all) == 0 {
		return musicstate.NowPlaying{}
	}
	return all[len(all)-1]
}

func results(candidates ...musicstate.TrackCandidate) func(string) (*spotify.Results, error) {
	return func(string) (*spotify.Results, error) {
		return &spotify.Results{Total: len(candidates), Candidates: candidates}, nil
	}
}

var songY = musicstate.TrackCandidate{
	TrackID:    "t1",
	Name:       "Song Y",
	Artist:     "Artist X",
	Album:      "Album Z",
	AlbumID:    "abc",
	Popularity: 50,
}

type harness struct {
	w      *Watcher
	probe  *fakeProbe
	search *fakeSearch
	sink   *recorder
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		probe:  &fakeProbe{},
		search: &fakeSearch{fn: results()},
		sink:   &recorder{},
	}
	cfg.Probe = h.probe
	cfg.Search = h.search
	cfg.Sink = h.sink
	if cfg.Tokens == nil {
		cfg.Tokens = tokenState(true)
	}
	cfg.Player = "Spotify"
	h.w = New(cfg)
	return h
}

func (h *harness) tick() {
	h.w.tick(context.Background())
	h.w.wg.Wait()
}

func newArtworkCache(t *testing.T) (*artwork.Cache, []byte) {
	t.Helper()
	root := t.TempDir()
	c, err := artwork.New(artwork.Options{
		Dir:         filepath.Join(root, "albums"),
		CurrentPath: filepath.Join(root, "artwork.jpg"),
	})
	require.NoError(t, err)

	blank, err := os.ReadFile(c.CurrentPath())
	require.NoError(t, err)
	return c, blank
}

func TestTick_NoTokenIsNoop(t *testing.T) {
	h := newHarness(t, Config{Tokens: tokenState(false)})
	h.probe.set("Artist X - Song Y", nil)

	h.tick()

	assert.Zero(t, h.search.calls())
	assert.Empty(t, h.sink.all())
}

func TestTick_IdleThenZeroResultsFallsBack(t *testing.T) {
	art, blank := newArtworkCache(t)
	h := newHarness(t, Config{Artwork: art})

	h.probe.set("Spotify", nil)
	h.tick()

	assert.Zero(t, h.search.calls())
	assert.Equal(t, musicstate.StatusIdle, h.sink.last().Status)
	assert.Equal(t, DefaultMessages.NoTrackPlaying, h.sink.last().Title)

	h.probe.set("Artist X - Song Y", nil)
	h.tick()

	assert.Equal(t, 1, h.search.calls())
	got := h.sink.last()
	assert.Equal(t, musicstate.StatusFallback, got.Status)
	assert.Equal(t, "Artist X - Song Y", got.Title)
	assert.Equal(t, "Artist X - Song Y", h.w.LastTitle())

	slot, err := os.ReadFile(art.CurrentPath())
	require.NoError(t, err)
	assert.Equal(t, blank, slot)
}

func TestTick_TransportFailureRetriesNextTick(t *testing.T) {
	h := newHarness(t, Config{})
	h.search.fn = func(string) (*spotify.Results, error) {
		return nil, fmt.Errorf("sending request: %w", musicstate.ErrTransport)
	}

	h.probe.set("Artist X - Song Y", nil)
	h.tick()

	assert.Equal(t, "", h.w.LastTitle())
	assert.Equal(t, musicstate.StatusFallback, h.sink.last().Status)
	assert.Equal(t, "Artist X - Song Y", h.sink.last().Title)

	h.search.fn = results(songY)
	h.tick()

	assert.Equal(t, 2, h.search.calls())
	assert.Equal(t, "Artist X - Song Y", h.w.LastTitle())
	assert.Equal(t, musicstate.StatusPlaying, h.sink.last().Status)
}

func TestTick_DebouncesUnchangedTitle(t *testing.T) {
	h := newHarness(t, Config{})
	h.search.fn = results(songY)
	h.probe.set("Artist X - Song Y", nil)

	h.tick()
	h.tick()
	h.tick()

	assert.Equal(t, 1, h.search.calls())
	assert.Len(t, h.sink.all(), 1)
}

func TestRefresh_ForcesResolution(t *testing.T) {
	h := newHarness(t, Config{})
	h.search.fn = results(songY)
	h.probe.set("Artist X - Song Y", nil)

	h.tick()
	h.w.Refresh()
	h.tick()
	h.tick()

	assert.Equal(t, 2, h.search.calls())
}

func TestTick_NotRunningReportedOnce(t *testing.T) {
	art, blank := newArtworkCache(t)
	h := newHarness(t, Config{Artwork: art, Messages: Messages{NotRunning: "closed"}})
	h.search.fn = results(songY)

	h.probe.set("Artist X - Song Y", nil)
	h.tick()
	require.Equal(t, "Artist X - Song Y", h.w.LastTitle())

	h.probe.set("", musicstate.ErrPlayerNotFound)
	h.tick()
	h.tick()

	var notRunning int
	for _, np := range h.sink.all() {
		if np.Status == musicstate.StatusNotRunning {
			notRunning++
			assert.Equal(t, "closed", np.Title)
		}
	}
	assert.Equal(t, 1, notRunning)
	assert.Equal(t, "", h.w.LastTitle())

	slot, err := os.ReadFile(art.CurrentPath())
	require.NoError(t, err)
	assert.Equal(t, blank, slot)

	// The same track is resolved again once the player is back.
	h.probe.set("Artist X - Song Y", nil)
	h.tick()
	assert.Equal(t, 2, h.search.calls())
	assert.Equal(t, musicstate.StatusPlaying, h.sink.last().Status)
}

func TestTick_PlayerGoneMidCycleKeepsSlotBlank(t *testing.T) {
	art, blank := newArtworkCache(t)
	require.NoError(t, os.WriteFile(art.Path("abc"), []byte("cover"), 0o644))

	h := newHarness(t, Config{Artwork: art})
	release := make(chan struct{})
	started := make(chan struct{})
	h.search.fn = func(string) (*spotify.Results, error) {
		close(started)
		<-release
		return results(songY)("")
	}

	ctx := context.Background()
	h.probe.set("Artist X - Song Y", nil)
	h.w.tick(ctx)
	<-started

	h.probe.set("", musicstate.ErrPlayerNotFound)
	h.w.tick(ctx)

	close(release)
	h.w.wg.Wait()
	art.Wait()

	last := h.sink.last()
	assert.Equal(t, musicstate.StatusNotRunning, last.Status)
	assert.Equal(t, DefaultMessages.NotRunning, last.Title)
	assert.Equal(t, "", h.w.LastTitle())

	slot, err := os.ReadFile(art.CurrentPath())
	require.NoError(t, err)
	assert.Equal(t, blank, slot)
}

func TestTick_NoQualifyingCandidate(t *testing.T) {
	h := newHarness(t, Config{})
	h.search.fn = results(musicstate.TrackCandidate{Name: "Other", Artist: "Someone", AlbumID: "x"})
	h.probe.set("Artist X - Song Y", nil)

	h.tick()

	assert.Equal(t, musicstate.StatusFallback, h.sink.last().Status)
	assert.Equal(t, "Artist X - Song Y", h.w.LastTitle())
}

func TestTick_SearchUsesNormalizedQuery(t *testing.T) {
	h := newHarness(t, Config{})
	h.search.fn = results(musicstate.TrackCandidate{Name: "Don’t Stop", Artist: "Artist X", AlbumID: "a"})
	h.probe.set("Artist X – Don’t Stop", nil)

	h.tick()

	require.Equal(t, 1, h.search.calls())
	assert.Equal(t, "Artist X - Don't Stop", h.search.queries[0])
	// Selection still matches against the raw display string.
	assert.Equal(t, musicstate.StatusPlaying, h.sink.last().Status)
}

func TestTick_ResolvesArtwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("cover"))
	}))
	defer srv.Close()

	art, _ := newArtworkCache(t)
	h := newHarness(t, Config{Artwork: art})
	track := songY
	track.ArtworkURLs = []string{srv.URL}
	h.search.fn = results(track)
	h.probe.set("Artist X - Song Y", nil)

	h.tick()

	reports := h.sink.all()
	require.Len(t, reports, 2)
	assert.Equal(t, "", reports[0].Artwork)
	assert.Equal(t, art.CurrentPath(), reports[1].Artwork)
	assert.Equal(t, "Song Y", reports[1].Title)
	assert.Equal(t, "abc", reports[1].AlbumID)

	slot, err := os.ReadFile(art.CurrentPath())
	require.NoError(t, err)
	assert.Equal(t, []byte("cover"), slot)
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]musicstate.TrackCandidate
}

func (c *memCache) Get(title string) (*musicstate.TrackCandidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	track, ok := c.entries[title]
	if !ok {
		return nil, nil
	}
	return &track, nil
}

func (c *memCache) Put(title string, track musicstate.TrackCandidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[title] = track
	return nil
}

func TestTick_LookupCache(t *testing.T) {
	cache := &memCache{entries: map[string]musicstate.TrackCandidate{}}
	h := newHarness(t, Config{Cache: cache})
	h.search.fn = results(songY)

	h.probe.set("Artist X - Song Y", nil)
	h.tick()
	assert.Equal(t, 1, h.search.calls())
	assert.Contains(t, cache.entries, "Artist X - Song Y")

	h.probe.set("Spotify", nil)
	h.tick()
	h.probe.set("Artist X - Song Y", nil)
	h.tick()

	assert.Equal(t, 1, h.search.calls())
	assert.Equal(t, "Song Y", h.sink.last().Title)
}

func TestTick_NegativeResultNotCached(t *testing.T) {
	cache := &memCache{entries: map[string]musicstate.TrackCandidate{}}
	h := newHarness(t, Config{Cache: cache})
	h.probe.set("Artist X - Song Y", nil)

	h.tick()

	assert.Empty(t, cache.entries)
}

func TestRun_PollsUntilCancelled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, Config{Interval: time.Second})
		h.search.fn = results(songY)
		h.probe.set("Artist X - Song Y", nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			h.w.Run(ctx)
			close(done)
		}()

		time.Sleep(1500 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, 1, h.search.calls())

		h.probe.set("Artist X - Song W", nil)
		time.Sleep(time.Second)
		synctest.Wait()
		assert.Equal(t, 2, h.search.calls())

		cancel()
		<-done
	})
}
