package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emmaly/nowplaying/artwork"
	"github.com/emmaly/nowplaying/config"
	"github.com/emmaly/nowplaying/lookupcache"
	"github.com/emmaly/nowplaying/musicstate"
	"github.com/emmaly/nowplaying/notify"
	"github.com/emmaly/nowplaying/overlay"
	"github.com/emmaly/nowplaying/probe"
	"github.com/emmaly/nowplaying/spotify"
	"github.com/emmaly/nowplaying/watcher"
	"github.com/emmaly/nowplaying/webscrobbler"
)

const shutdownTimeout = 10 * time.Second

func newTokenManager(cfg *config.Config) *spotify.TokenManager {
	sc := cfg.GetSpotifyConfig()
	version := sc.ClientVersion
	if version == "" {
		version = toolVersion
	}
	return spotify.NewTokenManager(spotify.TokenOptions{
		URL:        sc.TokenURL,
		ClientID:   sc.ClientID,
		Version:    version,
		MinRefresh: sc.MinRefresh,
		HTTPClient: &http.Client{Timeout: sc.Timeout},
	})
}

// newProbe builds the configured title probe. The Web Scrobbler receiver is
// returned separately because it also needs an HTTP route.
func newProbe(pc config.PlayerConfig) (watcher.Probe, *webscrobbler.Receiver, error) {
	switch pc.Source {
	case probe.SourceWindow:
		pattern, err := pc.TitleRegexp()
		if err != nil {
			return nil, nil, err
		}
		p, err := probe.NewWindow(pc.ProcessNames, pattern)
		return p, nil, err
	case probe.SourceMPRIS:
		p, err := probe.NewMPRIS(pc.MPRISName)
		return p, nil, err
	case probe.SourceWebScrobbler:
		r := webscrobbler.NewReceiver(pc.WebScrobblerStale)
		return r, r, nil
	default:
		return nil, nil, fmt.Errorf("unknown player source %q", pc.Source)
	}
}

// newController builds the playback controller for the configured source.
// Browser players reached through Web Scrobbler cannot be driven.
func newController(pc config.PlayerConfig) (probe.Controller, error) {
	switch pc.Source {
	case probe.SourceWindow:
		pattern, err := pc.TitleRegexp()
		if err != nil {
			return nil, err
		}
		return probe.NewWindow(pc.ProcessNames, pattern)
	case probe.SourceMPRIS:
		return probe.NewMPRIS(pc.MPRISName)
	case probe.SourceWebScrobbler:
		return nil, fmt.Errorf("player source %q: %w", pc.Source, probe.ErrUnsupported)
	default:
		return nil, fmt.Errorf("unknown player source %q", pc.Source)
	}
}

func newArtworkCache(cfg *config.Config) (*artwork.Cache, error) {
	ac := cfg.GetArtworkConfig()
	return artwork.New(artwork.Options{
		Dir:          ac.Dir,
		CurrentPath:  ac.CurrentPath,
		Size:         musicstate.ParseArtworkSize(ac.Size),
		Keep:         *ac.Keep,
		Timeout:      ac.Timeout,
		MaxDimension: ac.MaxDimension,
	})
}

func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pc := cfg.GetPlayerConfig()
	titleProbe, receiver, err := newProbe(pc)
	if err != nil {
		return err
	}
	if receiver != nil && !cfg.ServerEnabled() {
		return errors.New("the webscrobbler source needs the server enabled")
	}

	sinks := watcher.Sinks{watcher.LogSink{}}

	wcfg := watcher.Config{
		Probe:    titleProbe,
		Interval: pc.PollInterval,
		Player:   pc.Source,
		Messages: cfg.GetMessages(),
	}

	var art *artwork.Cache
	if cfg.ArtworkEnabled() {
		art, err = newArtworkCache(cfg)
		if err != nil {
			return err
		}
		defer art.Wait()
		wcfg.Artwork = art
		log.Printf("Current artwork: %s", art.CurrentPath())
	}

	if cfg.HasLookupCache() {
		lc := cfg.GetLookupCacheConfig()
		cache, err := lookupcache.Open(lc.Path, lc.TTL)
		if err != nil {
			return err
		}
		defer cache.Close()
		if n, err := cache.Prune(); err == nil && n > 0 {
			log.Printf("Pruned %d expired lookups", n)
		}
		wcfg.Cache = cache
	}

	if cfg.Notify.Enabled {
		sinks = append(sinks, notify.NewSink(notify.New()))
	}

	var server *http.Server
	if cfg.ServerEnabled() {
		hub := overlay.NewHub(ctx)
		defer hub.Close()
		sinks = append(sinks, hub)

		opts := overlay.Options{}
		if art != nil {
			opts.ArtworkPath = art.CurrentPath()
		}
		if receiver != nil {
			opts.Webhook = receiver
		}

		addr := cfg.Addr()
		server = &http.Server{
			Addr:              addr,
			Handler:           hub.Handler(opts),
			ReadHeaderTimeout: 10 * time.Second,
		}
		colorInfo.Printf("Use http://%s as your browser source overlay URL.\n\n", addr)
	}
	wcfg.Sink = sinks

	tokens := newTokenManager(cfg)
	if err := tokens.Start(ctx); err != nil {
		log.Printf("Initial token fetch failed, retrying in the background: %v", err)
	}
	defer tokens.Stop()

	sc := cfg.GetSpotifyConfig()
	wcfg.Tokens = tokens
	wcfg.Search = spotify.NewClient(sc.APIBase, tokens, sc.Timeout)

	w := watcher.New(wcfg)

	// SIGHUP renews the token and re-resolves the current track.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				log.Println("Received SIGHUP, refreshing token and current track")
				tokens.RefreshNow()
				w.Refresh()
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	if server != nil {
		serverErr := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()

		select {
		case <-ctx.Done():
		case err := <-serverErr:
			if err != nil {
				cancel()
				<-done
				return fmt.Errorf("starting server: %w", err)
			}
		}

		log.Println("Shutting down HTTP server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	<-done
	log.Println("Shutdown complete")
	return nil
}
