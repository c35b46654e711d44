package spotify

import (
	"errors"
	"fmt"

	"github.com/emmaly/nowplaying/musicstate"
)

var (
	// ErrNoToken is returned by TokenManager.Token while no valid token is held.
	ErrNoToken = errors.New("no valid token")

	// ErrSearchInFlight is returned when a search is already outstanding.
	ErrSearchInFlight = errors.New("search already in flight")
)

// Request kinds carried by HTTPError.
const (
	KindToken  = "token proxy"
	KindSearch = "search API"
)

// HTTPError represents a non-2xx response from the API or the token proxy.
type HTTPError struct {
	Kind       string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "HTTP"
	}
	return fmt.Sprintf("%s error (status %d): %s", kind, e.StatusCode, e.Body)
}

// Unwrap classifies HTTP errors as transport failures.
func (e *HTTPError) Unwrap() error {
	return musicstate.ErrTransport
}
