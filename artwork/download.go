package artwork

import "context"

// Download tracks one Resolve call.
type Download struct {
	AlbumID string

	done   chan struct{}
	err    error
	cached bool
}

func newDownload(albumID string) *Download {
	return &Download{AlbumID: albumID, done: make(chan struct{})}
}

func (d *Download) finish(err error) {
	d.err = err
	close(d.done)
}

// Done is closed once the slot holds the final result of this resolution.
func (d *Download) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the download finishes or ctx ends. A nil error means the
// slot now holds this album's artwork.
func (d *Download) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return d.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cached reports whether the artwork came from the local cache.
func (d *Download) Cached() bool {
	return d.cached
}
