// Package winapi enumerates top-level windows by owning process.
package winapi

// Window is a top-level window and the process that owns it.
type Window struct {
	Handle      uintptr
	Title       string
	ProcessName string
	IsVisible   bool
}

// AppCommand is an APPCOMMAND_* value delivered with WM_APPCOMMAND.
type AppCommand uint16

// Media keys understood by desktop players.
const (
	AppCommandVolumeMute         AppCommand = 8
	AppCommandVolumeDown         AppCommand = 9
	AppCommandVolumeUp           AppCommand = 10
	AppCommandMediaNextTrack     AppCommand = 11
	AppCommandMediaPreviousTrack AppCommand = 12
	AppCommandMediaStop          AppCommand = 13
	AppCommandMediaPlayPause     AppCommand = 14
)

// lParam packs the command into the high word, the way the shell sends it.
func (c AppCommand) lParam() uintptr {
	return uintptr(c) << 16
}

// Match reports whether w passes every filter.
func Match(w *Window, filters ...Filter) bool {
	for _, filter := range filters {
		if !filter(w) {
			return false
		}
	}
	return true
}
