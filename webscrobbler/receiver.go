package webscrobbler

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/emmaly/nowplaying/musicstate"
)

// DefaultStale is how long the last event stays authoritative without a
// follow-up from the extension.
const DefaultStale = 2 * time.Minute

const maxPayload = 1 << 20

// Receiver is the webhook endpoint. It also implements the title probe used
// by the watcher.
type Receiver struct {
	stale time.Duration
	now   func() time.Time

	mu       sync.Mutex
	title    string
	playing  bool
	lastSeen time.Time
}

// NewReceiver creates a receiver. A non-positive stale uses DefaultStale.
func NewReceiver(stale time.Duration) *Receiver {
	if stale <= 0 {
		stale = DefaultStale
	}
	return &Receiver{stale: stale, now: time.Now}
}

// ServeHTTP accepts POSTed scrobble events.
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxPayload))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	scrobble, err := ParseScrobble(body)
	if err != nil {
		log.Printf("Rejected webhook payload: %v", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	r.Observe(scrobble)
	w.WriteHeader(http.StatusNoContent)
}

// Observe records an event.
func (r *Receiver) Observe(s Scrobble) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastSeen = r.now()
	r.playing = s.Data.Song.Parsed.IsPlaying
	if title := s.DisplayTitle(); title != "" {
		r.title = title
	}

	musicstate.Debugf("Web Scrobbler %s: %q (playing=%v)", s.EventName, r.title, r.playing)
}

// Title returns the current display string, "" while paused, and
// ErrPlayerNotFound when no recent event has arrived.
func (r *Receiver) Title(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastSeen.IsZero() || r.now().Sub(r.lastSeen) > r.stale {
		return "", fmt.Errorf("%w: no recent Web Scrobbler event", musicstate.ErrPlayerNotFound)
	}
	if !r.playing {
		return "", nil
	}
	return r.title, nil
}
