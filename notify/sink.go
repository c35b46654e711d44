package notify

import (
	"log"
	"sync"

	"github.com/emmaly/nowplaying/musicstate"
)

// Sink turns resolved tracks into desktop notifications. All notifications
// reuse one bubble so a track change replaces the previous one.
type Sink struct {
	notifier Notifier

	mu      sync.Mutex
	id      uint32
	trackID string
	artwork string
}

// NewSink creates a sink that posts through n.
func NewSink(n Notifier) *Sink {
	return &Sink{notifier: n}
}

// Report implements the watcher sink. Only playing states notify; a second
// report for the same track updates the bubble once artwork is available.
func (s *Sink) Report(np musicstate.NowPlaying) {
	if !np.HasTrack() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if np.TrackID == s.trackID && np.Artwork == s.artwork {
		return
	}

	body := np.Artist
	if np.Album != "" {
		body += "\n" + np.Album
	}

	id, err := s.notifier.Notify(Notification{
		Summary:    np.Title,
		Body:       body,
		Icon:       np.Artwork,
		ReplacesID: s.id,
	})
	if err != nil {
		log.Printf("Desktop notification failed: %v", err)
		return
	}

	s.id = id
	s.trackID = np.TrackID
	s.artwork = np.Artwork
}
