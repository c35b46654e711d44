// Package watcher runs the detection loop: it polls the player's display
// string, decides when a lookup is warranted and turns each change into a
// NowPlaying report.
package watcher

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/emmaly/nowplaying/artwork"
	"github.com/emmaly/nowplaying/musicstate"
	"github.com/emmaly/nowplaying/spotify"
	"github.com/emmaly/nowplaying/titles"
)

// DefaultInterval is the probe polling interval.
const DefaultInterval = time.Second

// Probe reads the player's current display string.
type Probe interface {
	Title(ctx context.Context) (string, error)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) (string, error)

func (f ProbeFunc) Title(ctx context.Context) (string, error) { return f(ctx) }

// TokenChecker reports whether a usable API token is held.
type TokenChecker interface {
	Valid() bool
}

// Searcher looks a query up against the track search API.
type Searcher interface {
	Search(ctx context.Context, query string) (*spotify.Results, error)
}

// Artwork is the current-artwork slot.
type Artwork interface {
	Resolve(ctx context.Context, albumID string, urls []string) *artwork.Download
	Blank() error
	CurrentPath() string
}

// LookupCache memoizes title resolutions.
type LookupCache interface {
	Get(title string) (*musicstate.TrackCandidate, error)
	Put(title string, track musicstate.TrackCandidate) error
}

// Messages holds the user-facing texts for non-playing states.
type Messages struct {
	NoTrackPlaying string
	NotRunning     string
}

// DefaultMessages are used for empty Messages fields.
var DefaultMessages = Messages{
	NoTrackPlaying: "No track playing",
	NotRunning:     "Spotify is not running",
}

// Config wires a Watcher to its collaborators. Artwork and Cache are optional.
type Config struct {
	Probe    Probe
	Tokens   TokenChecker
	Search   Searcher
	Sink     Sink
	Artwork  Artwork
	Cache    LookupCache
	Interval time.Duration
	Player   string
	Messages Messages
}

// Watcher owns the poll loop state.
type Watcher struct {
	cfg   Config
	guard *semaphore.Weighted
	wg    sync.WaitGroup

	mu           sync.Mutex
	lastTitle    string
	notRunning   bool
	forceRefresh bool
	epoch        uint64 // bumped whenever the player disappears
}

// New creates a Watcher.
func New(cfg Config) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Messages.NoTrackPlaying == "" {
		cfg.Messages.NoTrackPlaying = DefaultMessages.NoTrackPlaying
	}
	if cfg.Messages.NotRunning == "" {
		cfg.Messages.NotRunning = DefaultMessages.NotRunning
	}
	if cfg.Sink == nil {
		cfg.Sink = Sinks{}
	}
	return &Watcher{
		cfg:   cfg,
		guard: semaphore.NewWeighted(1),
	}
}

// Run polls until ctx is cancelled, then waits for an in-flight cycle to
// finish.
func (w *Watcher) Run(ctx context.Context) {
	log.Printf("Watching player every %v", w.cfg.Interval)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	tickCount := 0
	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			log.Println("Watcher shutting down gracefully")
			return
		case <-ticker.C:
			tickCount++
			musicstate.Debugf("Processing tick #%d", tickCount)
			w.tick(ctx)
		}
	}
}

// Refresh makes the next tick re-resolve the current title even if it has
// not changed.
func (w *Watcher) Refresh() {
	w.mu.Lock()
	w.forceRefresh = true
	w.mu.Unlock()
}

// LastTitle returns the most recently resolved display string.
func (w *Watcher) LastTitle() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastTitle
}

func (w *Watcher) tick(ctx context.Context) {
	if !w.cfg.Tokens.Valid() {
		musicstate.Debugf("No valid token, skipping tick")
		return
	}

	raw, err := w.cfg.Probe.Title(ctx)
	if err != nil {
		musicstate.Debugf("Probe failed: %v", err)
		w.setNotRunning()
		return
	}

	w.mu.Lock()
	w.notRunning = false
	if raw == w.lastTitle && !w.forceRefresh {
		w.mu.Unlock()
		return
	}
	epoch := w.epoch
	w.mu.Unlock()

	if !w.guard.TryAcquire(1) {
		musicstate.Debugf("Resolution already in progress, skipping tick")
		return
	}

	w.mu.Lock()
	w.forceRefresh = false
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.guard.Release(1)

		if w.resolve(ctx, raw, epoch) {
			w.mu.Lock()
			if w.epoch == epoch {
				w.lastTitle = raw
			}
			w.mu.Unlock()
		}
	}()
}

// setNotRunning handles a failed probe. The report is emitted once per
// disappearance of the player.
func (w *Watcher) setNotRunning() {
	w.mu.Lock()
	if w.notRunning {
		w.mu.Unlock()
		return
	}
	w.notRunning = true
	w.lastTitle = ""
	w.epoch++
	w.mu.Unlock()

	log.Println("Player not running")
	w.blankArtwork()
	w.cfg.Sink.Report(musicstate.NowPlaying{
		Status: musicstate.StatusNotRunning,
		Title:  w.cfg.Messages.NotRunning,
		Player: w.cfg.Player,
	})
}

// resolve runs one resolution cycle for raw and reports whether lastTitle
// may advance to it.
func (w *Watcher) resolve(ctx context.Context, raw string, epoch uint64) bool {
	if raw == "" || titles.IsIdle(raw) {
		w.blankArtwork()
		w.report(epoch, musicstate.NowPlaying{
			Status: musicstate.StatusIdle,
			Title:  w.cfg.Messages.NoTrackPlaying,
			Player: w.cfg.Player,
		})
		return true
	}

	track, err := w.lookup(ctx, raw)
	if err != nil {
		if errors.Is(err, spotify.ErrSearchInFlight) {
			return false
		}
		log.Printf("Lookup for %q failed: %v", raw, err)
		w.blankArtwork()
		w.report(epoch, w.fallback(raw))
		return false
	}

	if track == nil {
		musicstate.Debugf("No matching track for %q", raw)
		w.blankArtwork()
		w.report(epoch, w.fallback(raw))
		return true
	}

	np := track.NowPlaying(w.cfg.Player)
	w.report(epoch, np)

	if w.cfg.Artwork == nil {
		return true
	}

	dl := w.resolveArtwork(ctx, epoch, track)
	if dl == nil {
		musicstate.Debugf("Player went away, not resolving artwork for %s", track.AlbumID)
		return true
	}
	if err := dl.Wait(ctx); err != nil {
		musicstate.Debugf("Artwork for album %s unavailable: %v", track.AlbumID, err)
		return true
	}

	np.Artwork = w.cfg.Artwork.CurrentPath()
	w.report(epoch, np)
	return true
}

// lookup returns the selected track for raw, or nil when nothing qualifies.
func (w *Watcher) lookup(ctx context.Context, raw string) (*musicstate.TrackCandidate, error) {
	if w.cfg.Cache != nil {
		track, err := w.cfg.Cache.Get(raw)
		if err != nil {
			log.Printf("Lookup cache read failed: %v", err)
		} else if track != nil {
			musicstate.Debugf("Lookup cache hit for %q", raw)
			return track, nil
		}
	}

	results, err := w.cfg.Search.Search(ctx, titles.Normalize(raw))
	if err != nil {
		return nil, err
	}

	idx, ok := musicstate.SelectBest(results.Candidates, raw)
	if !ok {
		return nil, nil
	}
	track := results.Candidates[idx]

	if w.cfg.Cache != nil {
		if err := w.cfg.Cache.Put(raw, track); err != nil {
			log.Printf("Lookup cache write failed: %v", err)
		}
	}

	return &track, nil
}

// resolveArtwork starts the artwork resolution for track unless the player
// disappeared since epoch. The check and the start happen under mu so that
// setNotRunning's blank always takes the later generation.
func (w *Watcher) resolveArtwork(ctx context.Context, epoch uint64, track *musicstate.TrackCandidate) *artwork.Download {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.epoch != epoch {
		return nil
	}
	return w.cfg.Artwork.Resolve(ctx, track.AlbumID, track.ArtworkURLs)
}

func (w *Watcher) fallback(raw string) musicstate.NowPlaying {
	return musicstate.NowPlaying{
		Status: musicstate.StatusFallback,
		Title:  raw,
		Player: w.cfg.Player,
	}
}

// report forwards np unless the player disappeared while the cycle ran.
func (w *Watcher) report(epoch uint64, np musicstate.NowPlaying) {
	w.mu.Lock()
	stale := w.epoch != epoch
	w.mu.Unlock()

	if stale {
		musicstate.Debugf("Dropping stale %s report", np.Status)
		return
	}
	w.cfg.Sink.Report(np)
}

func (w *Watcher) blankArtwork() {
	if w.cfg.Artwork == nil {
		return
	}
	if err := w.cfg.Artwork.Blank(); err != nil {
		log.Printf("Writing blank artwork: %v", err)
	}
}
