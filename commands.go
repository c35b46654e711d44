package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/emmaly/nowplaying/config"
	"github.com/emmaly/nowplaying/musicstate"
	"github.com/emmaly/nowplaying/probe"
	"github.com/emmaly/nowplaying/spotify"
	"github.com/emmaly/nowplaying/titles"
)

func resolveOnce(ctx context.Context, cfg *config.Config, title string) error {
	if titles.IsIdle(title) {
		colorWarning.Printf("%q is the idle player title: %s\n", title, cfg.GetMessages().NoTrackPlaying)
		return nil
	}

	tokens := newTokenManager(cfg)
	if err := tokens.Start(ctx); err != nil {
		return fmt.Errorf("fetching token: %w", err)
	}
	defer tokens.Stop()

	sc := cfg.GetSpotifyConfig()
	client := spotify.NewClient(sc.APIBase, tokens, sc.Timeout)

	query := titles.Normalize(title)
	colorInfo.Printf("🔎 Searching for '%s'...\n", query)

	results, err := client.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	idx, ok := musicstate.SelectBest(results.Candidates, title)

	colorInfo.Printf("Found %d results:\n", results.Total)
	for i, c := range results.Candidates {
		line := fmt.Sprintf("%3d. %s - %s [%s] (popularity %d)", i+1, c.Artist, c.Name, c.Album, c.Popularity)
		if ok && i == idx {
			colorSuccess.Println(line + " ✔")
		} else {
			colorDim.Println(line)
		}
	}

	if !ok {
		colorWarning.Printf("No candidate matches; falling back to %q\n", title)
		return nil
	}

	best := results.Candidates[idx]
	size := musicstate.ParseArtworkSize(cfg.GetArtworkConfig().Size)
	colorSuccess.Printf("\nSelected: %s - %s\n", best.Artist, best.Name)
	fmt.Printf("  Album:   %s (%s)\n", best.Album, best.AlbumID)
	fmt.Printf("  Track:   %s\n", best.TrackID)
	if u := best.ArtworkURL(size); u != "" {
		fmt.Printf("  Artwork: %s (%s)\n", u, size)
	}
	return nil
}

func sendControl(ctx context.Context, ctrl probe.Controller, name string) error {
	cmd, err := probe.ParseCommand(name)
	if err != nil {
		return err
	}
	if err := ctrl.Control(ctx, cmd); err != nil {
		return fmt.Errorf("sending %s: %w", cmd, err)
	}
	colorSuccess.Printf("✔ Sent %s\n", cmd)
	return nil
}

func checkToken(ctx context.Context, cfg *config.Config) error {
	tokens := newTokenManager(cfg)
	if err := tokens.Start(ctx); err != nil {
		return fmt.Errorf("fetching token: %w", err)
	}
	defer tokens.Stop()

	tok, err := tokens.Token()
	if err != nil {
		return err
	}

	colorSuccess.Println("✔ Token acquired")
	if tok.Expiry.IsZero() {
		colorWarning.Println("  The proxy did not report a lifetime")
	} else {
		fmt.Printf("  Expires: %s\n", humanize.Time(tok.Expiry))
	}
	fmt.Printf("  Next refresh in %v\n", tokens.Interval())
	return nil
}

// redactURL drops query strings and credentials, which may carry keys.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(invalid)"
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "…"
	}
	return u.String()
}

func printConfig(cfg *config.Config) {
	sc := cfg.GetSpotifyConfig()
	pc := cfg.GetPlayerConfig()
	ac := cfg.GetArtworkConfig()
	lc := cfg.GetLookupCacheConfig()
	msgs := cfg.GetMessages()

	section := func(name string) { colorInfo.Printf("[%s]\n", name) }
	kv := func(k string, v any) { fmt.Printf("  %-20s %v\n", k, v) }

	kv("debug", cfg.Debug)

	section("server")
	kv("enabled", cfg.ServerEnabled())
	kv("addr", cfg.Addr())

	section("player")
	kv("source", pc.Source)
	kv("process_names", strings.Join(pc.ProcessNames, ", "))
	kv("title_pattern", pc.TitlePattern)
	kv("mpris_name", pc.MPRISName)
	kv("poll_interval", pc.PollInterval)
	kv("webscrobbler_stale", pc.WebScrobblerStale)

	section("spotify")
	kv("token_url", redactURL(sc.TokenURL))
	kv("api_base", sc.APIBase)
	kv("client_id", sc.ClientID)
	kv("timeout", sc.Timeout)
	kv("min_refresh", sc.MinRefresh)

	section("artwork")
	kv("enabled", *ac.Enabled)
	kv("keep", *ac.Keep)
	kv("size", ac.Size)
	kv("dir", ac.Dir)
	kv("current_path", ac.CurrentPath)
	kv("timeout", ac.Timeout)
	kv("max_dimension", ac.MaxDimension)

	section("lookup_cache")
	kv("enabled", cfg.HasLookupCache())
	kv("path", lc.Path)
	kv("ttl", lc.TTL)

	section("notify")
	kv("enabled", cfg.Notify.Enabled)

	section("messages")
	kv("no_track_playing", msgs.NoTrackPlaying)
	kv("not_running", msgs.NotRunning)
}
