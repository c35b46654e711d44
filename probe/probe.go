// Package probe reads the display string of a running media player.
package probe

import (
	"errors"
	"runtime"
	"strings"
)

// Sources a probe can read from.
const (
	SourceWindow       = "window"
	SourceMPRIS        = "mpris"
	SourceWebScrobbler = "webscrobbler"
)

// ErrUnsupported is returned when a source is not available on this platform.
var ErrUnsupported = errors.New("probe source not supported on this platform")

// DefaultSource returns the natural source for the running OS.
func DefaultSource() string {
	switch runtime.GOOS {
	case "windows":
		return SourceWindow
	case "linux", "freebsd", "openbsd", "netbsd":
		return SourceMPRIS
	default:
		return SourceWebScrobbler
	}
}

// DisplayTitle builds the "Artist - Title" string the desktop player shows in
// its window caption. Nothing playing yields "".
func DisplayTitle(artists []string, title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	var names []string
	for _, a := range artists {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}
	if len(names) == 0 {
		return title
	}
	return strings.Join(names, ", ") + " - " + title
}
