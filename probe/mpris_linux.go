//go:build linux

package probe

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/emmaly/nowplaying/musicstate"
)

const (
	mprisPrefix      = "org.mpris.MediaPlayer2."
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	propertiesGet    = "org.freedesktop.DBus.Properties.Get"
	propertiesSet    = "org.freedesktop.DBus.Properties.Set"
)

// MPRIS reads the current track from a player on the session bus.
type MPRIS struct {
	conn *dbus.Conn
	dest string
}

// NewMPRIS connects to the session bus. name is the bus name suffix, e.g.
// "spotify" for org.mpris.MediaPlayer2.spotify.
func NewMPRIS(name string) (*MPRIS, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	return &MPRIS{conn: conn, dest: mprisPrefix + name}, nil
}

// Title returns "Artist - Title" while playing and "" otherwise.
func (p *MPRIS) Title(ctx context.Context) (string, error) {
	obj := p.conn.Object(p.dest, mprisPath)

	var status dbus.Variant
	if err := obj.CallWithContext(ctx, propertiesGet, 0, mprisPlayerIface, "PlaybackStatus").Store(&status); err != nil {
		return "", fmt.Errorf("%w: %s: %v", musicstate.ErrPlayerNotFound, p.dest, err)
	}
	if s, _ := status.Value().(string); s != "Playing" {
		return "", nil
	}

	var meta dbus.Variant
	if err := obj.CallWithContext(ctx, propertiesGet, 0, mprisPlayerIface, "Metadata").Store(&meta); err != nil {
		return "", fmt.Errorf("reading metadata: %w", err)
	}

	fields, _ := meta.Value().(map[string]dbus.Variant)
	return metadataTitle(fields), nil
}

// Control calls the matching Player method, or adjusts the Volume property
// for volume commands.
func (p *MPRIS) Control(ctx context.Context, cmd Command) error {
	obj := p.conn.Object(p.dest, mprisPath)

	if method, ok := mprisMethods[cmd]; ok {
		if err := obj.CallWithContext(ctx, mprisPlayerIface+"."+method, 0).Err; err != nil {
			return fmt.Errorf("%w: %s.%s: %v", musicstate.ErrPlayerNotFound, p.dest, method, err)
		}
		return nil
	}

	if _, ok := nextVolume(cmd, 0); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}

	var current dbus.Variant
	if err := obj.CallWithContext(ctx, propertiesGet, 0, mprisPlayerIface, "Volume").Store(&current); err != nil {
		return fmt.Errorf("%w: %s: %v", musicstate.ErrPlayerNotFound, p.dest, err)
	}
	level, _ := current.Value().(float64)
	target, _ := nextVolume(cmd, level)

	if err := obj.CallWithContext(ctx, propertiesSet, 0, mprisPlayerIface, "Volume", dbus.MakeVariant(target)).Err; err != nil {
		return fmt.Errorf("setting volume: %w", err)
	}
	return nil
}

// metadataTitle builds the display string from xesam metadata.
func metadataTitle(fields map[string]dbus.Variant) string {
	var (
		title   string
		artists []string
	)
	if v, ok := fields["xesam:title"]; ok {
		title, _ = v.Value().(string)
	}
	if v, ok := fields["xesam:artist"]; ok {
		switch a := v.Value().(type) {
		case []string:
			artists = a
		case string:
			artists = []string{a}
		}
	}
	return DisplayTitle(artists, title)
}
