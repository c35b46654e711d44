//go:build !linux

package probe

import (
	"context"
	"fmt"
)

// MPRIS reads the current track from a player on the session bus.
type MPRIS struct{}

// NewMPRIS is only available on Linux.
func NewMPRIS(_ string) (*MPRIS, error) {
	return nil, fmt.Errorf("mpris probe: %w", ErrUnsupported)
}

func (p *MPRIS) Title(_ context.Context) (string, error) {
	return "", ErrUnsupported
}

func (p *MPRIS) Control(_ context.Context, _ Command) error {
	return ErrUnsupported
}
