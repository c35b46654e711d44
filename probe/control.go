package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/emmaly/nowplaying/winapi"
)

// Command is a playback control request.
type Command string

// Commands understood by every Controller.
const (
	CommandNext       Command = "next"
	CommandPrevious   Command = "previous"
	CommandPlayPause  Command = "playpause"
	CommandStop       Command = "stop"
	CommandVolumeUp   Command = "volup"
	CommandVolumeDown Command = "voldown"
	CommandMute       Command = "mute"
)

// ErrUnknownCommand is returned for commands a controller cannot map.
var ErrUnknownCommand = errors.New("unknown player command")

// Controller drives the player's transport and volume.
type Controller interface {
	Control(ctx context.Context, cmd Command) error
}

var commandAliases = map[string]Command{
	"next":      CommandNext,
	"prev":      CommandPrevious,
	"previous":  CommandPrevious,
	"playpause": CommandPlayPause,
	"toggle":    CommandPlayPause,
	"stop":      CommandStop,
	"volup":     CommandVolumeUp,
	"voldown":   CommandVolumeDown,
	"mute":      CommandMute,
}

// ParseCommand maps a command name, case-insensitively, onto a Command.
func ParseCommand(s string) (Command, error) {
	cmd, ok := commandAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
	return cmd, nil
}

// appCommands maps commands onto the media keys a window accepts.
var appCommands = map[Command]winapi.AppCommand{
	CommandNext:       winapi.AppCommandMediaNextTrack,
	CommandPrevious:   winapi.AppCommandMediaPreviousTrack,
	CommandPlayPause:  winapi.AppCommandMediaPlayPause,
	CommandStop:       winapi.AppCommandMediaStop,
	CommandVolumeUp:   winapi.AppCommandVolumeUp,
	CommandVolumeDown: winapi.AppCommandVolumeDown,
	CommandMute:       winapi.AppCommandVolumeMute,
}

// mprisMethods maps transport commands onto org.mpris.MediaPlayer2.Player
// methods. Volume commands go through the Volume property instead.
var mprisMethods = map[Command]string{
	CommandNext:      "Next",
	CommandPrevious:  "Previous",
	CommandPlayPause: "PlayPause",
	CommandStop:      "Stop",
}

const volumeStep = 0.1

// nextVolume returns the MPRIS volume after cmd, clamped to [0, 1].
func nextVolume(cmd Command, current float64) (float64, bool) {
	var v float64
	switch cmd {
	case CommandVolumeUp:
		v = current + volumeStep
	case CommandVolumeDown:
		v = current - volumeStep
	case CommandMute:
		return 0, true
	default:
		return 0, false
	}
	return min(max(v, 0), 1), true
}
