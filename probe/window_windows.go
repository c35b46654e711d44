//go:build windows

package probe

import (
	"context"
	"fmt"
	"regexp"

	"github.com/emmaly/nowplaying/musicstate"
	"github.com/emmaly/nowplaying/winapi"
)

// Window reads the caption of the player's main window.
type Window struct {
	processes []string
	pattern   *regexp.Regexp
}

// NewWindow creates a probe for windows owned by any of processNames. A
// non-nil pattern restricts it to windows whose caption matches.
func NewWindow(processNames []string, pattern *regexp.Regexp) (*Window, error) {
	if len(processNames) == 0 {
		return nil, fmt.Errorf("window probe: no process names configured")
	}
	return &Window{processes: processNames, pattern: pattern}, nil
}

// Title returns the first visible, non-empty window caption.
func (p *Window) Title(_ context.Context) (string, error) {
	windows, err := winapi.FindWindowsByProcess(
		p.processes,
		winapi.WinVisible(true),
		winapi.WinHasTitle(),
		winapi.WinTitlePattern(p.pattern),
	)
	if err != nil {
		return "", fmt.Errorf("enumerating windows: %w", err)
	}

	if len(windows) == 0 {
		return "", fmt.Errorf("%w: no window for %v", musicstate.ErrPlayerNotFound, p.processes)
	}
	return windows[0].Title, nil
}

// Control sends cmd as a media key to the player's window. Hidden windows
// count too, since the player keeps running in the tray.
func (p *Window) Control(_ context.Context, cmd Command) error {
	key, ok := appCommands[cmd]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}

	windows, err := winapi.FindWindowsByProcess(p.processes, winapi.WinHasTitle())
	if err != nil {
		return fmt.Errorf("enumerating windows: %w", err)
	}
	if len(windows) == 0 {
		return fmt.Errorf("%w: no window for %v", musicstate.ErrPlayerNotFound, p.processes)
	}
	return windows[0].SendAppCommand(key)
}
