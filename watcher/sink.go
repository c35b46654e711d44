package watcher

import (
	"log"

	"github.com/emmaly/nowplaying/musicstate"
)

// Sink receives every state the watcher emits.
type Sink interface {
	Report(np musicstate.NowPlaying)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(np musicstate.NowPlaying)

func (f SinkFunc) Report(np musicstate.NowPlaying) { f(np) }

// Sinks fans a report out to several sinks in order.
type Sinks []Sink

func (s Sinks) Report(np musicstate.NowPlaying) {
	for _, sink := range s {
		sink.Report(np)
	}
}

// LogSink writes each report to the standard logger.
type LogSink struct{}

func (LogSink) Report(np musicstate.NowPlaying) {
	switch {
	case np.HasTrack() && np.Artwork != "":
		log.Printf("Now playing: %s - %s (artwork %s)", np.Artist, np.Title, np.Artwork)
	case np.HasTrack():
		log.Printf("Now playing: %s - %s", np.Artist, np.Title)
	default:
		log.Printf("Now playing (%s): %s", np.Status, np.Title)
	}
}
