//go:build !windows

package probe

import (
	"context"
	"fmt"
	"regexp"
)

// Window reads the caption of the player's main window.
type Window struct{}

// NewWindow is only available on Windows.
func NewWindow(_ []string, _ *regexp.Regexp) (*Window, error) {
	return nil, fmt.Errorf("window probe: %w", ErrUnsupported)
}

func (p *Window) Title(_ context.Context) (string, error) {
	return "", ErrUnsupported
}

func (p *Window) Control(_ context.Context, _ Command) error {
	return ErrUnsupported
}
