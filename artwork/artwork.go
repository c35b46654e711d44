// Package artwork maintains the current-artwork slot and a per-album cover cache.
package artwork

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/emmaly/nowplaying/musicstate"
)

const (
	// DefaultTimeout bounds a single artwork download.
	DefaultTimeout = 10 * time.Second

	userAgent   = "Mozilla/5.0 (compatible; nowplaying)"
	maxBodySize = 20 << 20
	cacheExt    = ".jpg"
)

var (
	// ErrSuperseded is returned when a newer resolution replaced the slot
	// before this one finished.
	ErrSuperseded = errors.New("artwork superseded by a newer resolution")

	// ErrNoArtwork is returned when the track has no usable artwork URL.
	ErrNoArtwork = errors.New("no artwork available")

	plainID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Options configures a Cache.
type Options struct {
	Dir          string // per-album cache directory
	CurrentPath  string // the current-artwork slot
	Size         musicstate.ArtworkSize
	Keep         bool // persist downloads into Dir
	Timeout      time.Duration
	MaxDimension uint // downscale larger images, 0 disables
	HTTPClient   *http.Client
}

// Cache resolves album artwork into the current-artwork slot.
type Cache struct {
	opts   Options
	client *http.Client
	blank  []byte

	slotMu sync.Mutex
	gen    atomic.Uint64
	wg     sync.WaitGroup
}

// New creates the cache and slot directories and writes the blank placeholder
// into the slot.
func New(opts Options) (*Cache, error) {
	if opts.CurrentPath == "" {
		return nil, errors.New("artwork: current path is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating artwork directory: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(opts.CurrentPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating current artwork directory: %w", err)
	}

	blank, err := blankImage()
	if err != nil {
		return nil, fmt.Errorf("encoding placeholder: %w", err)
	}

	c := &Cache{opts: opts, client: opts.HTTPClient, blank: blank}
	if err := c.Blank(); err != nil {
		return nil, err
	}
	return c, nil
}

// CurrentPath returns the current-artwork slot path.
func (c *Cache) CurrentPath() string {
	return c.opts.CurrentPath
}

// Path returns the cache file for an album. IDs that are not plain tokens are
// hashed so they cannot escape the cache directory.
func (c *Cache) Path(albumID string) string {
	name := albumID
	if !plainID.MatchString(albumID) {
		sum := sha256.Sum256([]byte(albumID))
		name = hex.EncodeToString(sum[:])
	}
	return filepath.Join(c.opts.Dir, name+cacheExt)
}

// Blank replaces the slot with the placeholder. Downloads still running from
// earlier Resolve calls will no longer write to the slot.
func (c *Cache) Blank() error {
	return c.writeSlot(c.gen.Add(1), c.blank)
}

// Resolve puts the artwork for albumID into the slot. A cached copy is used
// when present; otherwise the slot is blanked and the image matching the
// configured size is downloaded in the background. Failures leave the slot
// blank and are reported only through the returned Download.
func (c *Cache) Resolve(ctx context.Context, albumID string, urls []string) *Download {
	gen := c.gen.Add(1)
	d := newDownload(albumID)

	if albumID == "" {
		c.blankIfCurrent(gen)
		d.finish(ErrNoArtwork)
		return d
	}

	cachePath := c.Path(albumID)
	if c.opts.Dir != "" {
		if info, err := os.Stat(cachePath); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			d.cached = true
			err := c.copyToSlot(gen, cachePath)
			if err != nil && !errors.Is(err, ErrSuperseded) {
				c.blankIfCurrent(gen)
			}
			musicstate.Debugf("Artwork cache hit for album %s", albumID)
			d.finish(err)
			return d
		}
	}

	// Consumers must not keep showing the previous cover while downloading.
	c.blankIfCurrent(gen)

	url := (musicstate.TrackCandidate{ArtworkURLs: urls}).ArtworkURL(c.opts.Size)
	if url == "" {
		d.finish(ErrNoArtwork)
		return d
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		data, err := c.fetch(ctx, url)
		d.finish(c.complete(gen, cachePath, data, err))
	}()

	return d
}

// Wait blocks until all background downloads have finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// complete runs when a download finishes.
func (c *Cache) complete(gen uint64, cachePath string, data []byte, fetchErr error) error {
	if fetchErr != nil {
		log.Printf("Artwork download failed: %v", fetchErr)
		c.blankIfCurrent(gen)
		return fetchErr
	}

	data = c.shrink(data)

	if c.opts.Keep && c.opts.Dir != "" {
		if err := writeFileAtomic(cachePath, data); err != nil {
			log.Printf("Saving artwork to cache: %v", err)
			c.blankIfCurrent(gen)
			return err
		}
		return c.copyToSlot(gen, cachePath)
	}

	return c.writeSlot(gen, data)
}

func (c *Cache) fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w: %w", musicstate.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: artwork status %d", musicstate.ErrTransport, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w: %w", musicstate.ErrTransport, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty artwork body", musicstate.ErrTransport)
	}

	musicstate.Debugf("Downloaded artwork (%s)", humanize.Bytes(uint64(len(data))))
	return data, nil
}

func (c *Cache) copyToSlot(gen uint64, src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading cached artwork: %w", err)
	}
	return c.writeSlot(gen, data)
}

func (c *Cache) blankIfCurrent(gen uint64) {
	if err := c.writeSlot(gen, c.blank); err != nil && !errors.Is(err, ErrSuperseded) {
		log.Printf("Writing blank artwork: %v", err)
	}
}

// writeSlot replaces the slot unless a newer generation has started.
func (c *Cache) writeSlot(gen uint64, data []byte) error {
	c.slotMu.Lock()
	defer c.slotMu.Unlock()

	if gen != c.gen.Load() {
		return ErrSuperseded
	}
	if err := writeFileAtomic(c.opts.CurrentPath, data); err != nil {
		return fmt.Errorf("writing current artwork: %w", err)
	}
	return nil
}

// writeFileAtomic writes data next to path and renames it into place so
// readers never observe a partial image.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artwork-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// blankImage encodes the placeholder shown while nothing valid is available.
func blankImage() ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1)), nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
