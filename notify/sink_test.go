package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmaly/nowplaying/musicstate"
)

type recordingNotifier struct {
	sent   []Notification
	nextID uint32
}

func (r *recordingNotifier) Notify(n Notification) (uint32, error) {
	r.sent = append(r.sent, n)
	if n.ReplacesID != 0 {
		return n.ReplacesID, nil
	}
	r.nextID++
	return r.nextID, nil
}

func TestSink_NotifiesOnTrackChange(t *testing.T) {
	rec := &recordingNotifier{}
	s := NewSink(rec)

	np := musicstate.NowPlaying{
		Status:  musicstate.StatusPlaying,
		Title:   "Song Y",
		Artist:  "Artist X",
		Album:   "Album Z",
		TrackID: "t1",
	}
	s.Report(np)
	s.Report(np)

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "Song Y", rec.sent[0].Summary)
	assert.Equal(t, "Artist X\nAlbum Z", rec.sent[0].Body)
	assert.Equal(t, uint32(0), rec.sent[0].ReplacesID)

	np.Artwork = "/slot/artwork.jpg"
	s.Report(np)

	require.Len(t, rec.sent, 2)
	assert.Equal(t, "/slot/artwork.jpg", rec.sent[1].Icon)
	assert.Equal(t, uint32(1), rec.sent[1].ReplacesID)

	s.Report(musicstate.NowPlaying{Status: musicstate.StatusPlaying, Title: "Next", TrackID: "t2"})
	require.Len(t, rec.sent, 3)
	assert.Equal(t, uint32(1), rec.sent[2].ReplacesID)
}

func TestSink_IgnoresNonPlayingStates(t *testing.T) {
	rec := &recordingNotifier{}
	s := NewSink(rec)

	s.Report(musicstate.NowPlaying{Status: musicstate.StatusIdle, Title: "No track playing"})
	s.Report(musicstate.NowPlaying{Status: musicstate.StatusFallback, Title: "Artist X - Song Y"})
	s.Report(musicstate.NowPlaying{Status: musicstate.StatusNotRunning, Title: "closed"})

	assert.Empty(t, rec.sent)
}
