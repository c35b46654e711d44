package overlay

import (
	"embed"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emmaly/nowplaying/musicstate"
)

const artworkRoute = "/artwork.jpg"

var errInactive = errors.New("connection inactive")

//go:embed static/*
var staticFiles embed.FS

// Options configures the overlay HTTP handler.
type Options struct {
	// ArtworkPath is the current-artwork slot served at /artwork.jpg.
	ArtworkPath string
	// Webhook, when set, receives Web Scrobbler events at /webhook.
	Webhook http.Handler
}

// Handler returns the overlay's routes.
func (h *Hub) Handler(opts Options) http.Handler {
	mux := http.NewServeMux()

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/", http.FileServer(http.FS(static)))
	mux.HandleFunc("/ws", h.serveWS)

	mux.HandleFunc(artworkRoute, func(w http.ResponseWriter, r *http.Request) {
		if opts.ArtworkPath == "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.ArtworkPath)
	})

	if opts.Webhook != nil {
		mux.Handle("/webhook", opts.Webhook)
	}

	return mux
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	c := &connection{conn: conn}
	c.touch()

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(appData string) error {
		c.touch()
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	// The current state must reach the client before any later broadcast,
	// so the write lock is taken while the hub is still locked.
	h.mu.Lock()
	update := h.update()
	h.connections = append(h.connections, c)
	count := len(h.connections)
	c.writeMu.Lock()
	h.mu.Unlock()

	log.Printf("Added new connection, total connections: %d", count)

	defer func() {
		h.removeConnection(c)
		c.close()
		musicstate.Debugf("WebSocket connection closed and cleaned up")
	}()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = c.conn.WriteJSON(update)
	c.writeMu.Unlock()
	if err != nil {
		log.Println("Initial write error:", err)
		return
	}

	// Close the socket when the hub shuts down so ReadMessage returns.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-h.ctx.Done():
			c.close()
		case <-stop:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				log.Printf("Read error: %v", err)
			}
			return
		}
		c.touch()
	}
}
