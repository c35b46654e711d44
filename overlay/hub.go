// Package overlay serves the browser-source overlay: a websocket feed of
// now-playing updates plus the current artwork image.
package overlay

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emmaly/nowplaying/musicstate"
)

const (
	healthCheckInterval = 30 * time.Second
	connectionTimeout   = 120 * time.Second
	readTimeout         = 60 * time.Second
	writeTimeout        = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin allows OBS and file:// pages (no origin), same-host pages and
// localhost development servers.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		log.Printf("Invalid origin: %s - %v", origin, err)
		return false
	}

	if originURL.Host == r.Host {
		return true
	}

	if strings.HasPrefix(originURL.Host, "localhost:") ||
		strings.HasPrefix(originURL.Host, "127.0.0.1:") {
		return true
	}

	log.Printf("Rejected WebSocket connection from origin: %s", origin)
	return false
}

// Song is the overlay's view of the current track.
type Song struct {
	Artist   string `json:"artist"`
	Song     string `json:"song"`
	AlbumArt string `json:"albumArt"`
}

// SongUpdate is the message pushed to overlay clients.
type SongUpdate struct {
	Type     string `json:"type"`     // "change" or "stop"
	Artist   string `json:"artist"`   // Only used for "change"
	Song     string `json:"song"`     // Only used for "change"
	AlbumArt string `json:"albumArt"` // Only used for "change"
	Message  string `json:"message,omitempty"`
}

func (s *Song) AsSongUpdate() SongUpdate {
	if s != nil {
		return SongUpdate{
			Type:     "change",
			Artist:   s.Artist,
			Song:     s.Song,
			AlbumArt: s.AlbumArt,
		}
	}
	return SongUpdate{Type: "stop"}
}

// connection tracks one overlay client.
type connection struct {
	conn      *websocket.Conn
	active    atomic.Bool
	lastPing  atomic.Int64 // unix nanos
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *connection) touch() {
	c.lastPing.Store(time.Now().UnixNano())
	c.active.Store(true)
}

func (c *connection) close() {
	c.active.Store(false)
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

func (c *connection) send(update SongUpdate) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(update)
}

func (c *connection) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout))
}

// Hub fans NowPlaying reports out to every connected overlay.
type Hub struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	song        *Song
	message     string
	connections []*connection
}

// NewHub creates a hub and starts its connection health checker. The hub
// shuts down when ctx is cancelled or Close is called.
func NewHub(ctx context.Context) *Hub {
	ctx, cancel := context.WithCancel(ctx)
	h := &Hub{ctx: ctx, cancel: cancel}
	go h.connectionHealthCheck()
	return h
}

// Report implements the watcher sink.
func (h *Hub) Report(np musicstate.NowPlaying) {
	var song *Song
	message := ""

	switch np.Status {
	case musicstate.StatusPlaying:
		song = &Song{Artist: np.Artist, Song: np.Title}
		if np.Artwork != "" {
			song.AlbumArt = artworkRoute + "?v=" + url.QueryEscape(np.AlbumID)
		}
	case musicstate.StatusFallback:
		song = &Song{Song: np.Title}
	default:
		message = np.Title
	}

	h.reportMusic(song, message)
}

func sameSong(a, b *Song) bool {
	return (a == nil && b == nil) ||
		(a != nil && b != nil && *a == *b)
}

func (h *Hub) update() SongUpdate {
	u := h.song.AsSongUpdate()
	if h.song == nil {
		u.Message = h.message
	}
	return u
}

func (h *Hub) reportMusic(song *Song, message string) {
	select {
	case <-h.ctx.Done():
		return
	default:
	}

	h.mu.Lock()
	if sameSong(h.song, song) && h.message == message {
		h.mu.Unlock()
		return
	}
	h.song = song
	h.message = message
	update := h.update()

	// Copy the connection slice to avoid holding the lock during writes
	connections := make([]*connection, len(h.connections))
	copy(connections, h.connections)
	h.mu.Unlock()

	if song == nil {
		log.Println("Sending stop update to clients")
	} else {
		musicstate.Debugf("Sending song update: %s - %s", song.Artist, song.Song)
	}

	h.broadcast(connections, func(c *connection) error {
		return c.send(update)
	})
}

// broadcast runs fn for every active connection in parallel and drops the
// connections it failed on.
func (h *Hub) broadcast(connections []*connection, fn func(*connection) error) {
	var (
		wg     sync.WaitGroup
		deadMu sync.Mutex
		dead   []*connection
	)

	for _, c := range connections {
		if c == nil || !c.active.Load() {
			continue
		}
		wg.Add(1)
		go func(c *connection) {
			defer wg.Done()
			if err := fn(c); err != nil {
				log.Printf("Write error to client: %v", err)
				c.active.Store(false)
				deadMu.Lock()
				dead = append(dead, c)
				deadMu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	if len(dead) > 0 {
		log.Printf("Cleaning up %d dead connections", len(dead))
		for _, c := range dead {
			h.removeConnection(c)
			c.close()
		}
	}
}

// connectionHealthCheck periodically pings clients and drops silent ones.
func (h *Hub) connectionHealthCheck() {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.mu.RLock()
			connections := make([]*connection, len(h.connections))
			copy(connections, h.connections)
			h.mu.RUnlock()

			if len(connections) == 0 {
				continue
			}

			now := time.Now()
			h.broadcast(connections, func(c *connection) error {
				if idle := now.Sub(time.Unix(0, c.lastPing.Load())); idle > connectionTimeout {
					log.Printf("Connection inactive for %v, marking as dead", idle)
					return errInactive
				}
				return c.ping()
			})
		}
	}
}

func (h *Hub) removeConnection(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.connections[:0]
	for _, existing := range h.connections {
		if existing != c {
			kept = append(kept, existing)
		}
	}
	// Clear the tail so removed connections can be collected.
	for i := len(kept); i < len(h.connections); i++ {
		h.connections[i] = nil
	}
	h.connections = kept
}

// Connections returns the number of connected overlay clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Close disconnects every client and stops the health checker.
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	connections := h.connections
	h.connections = nil
	h.mu.Unlock()

	for _, c := range connections {
		c.close()
	}
}
