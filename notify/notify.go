// Package notify shows a desktop notification when the track changes.
package notify

// Notification is one track-change bubble.
type Notification struct {
	Summary    string
	Body       string
	Icon       string // image path; empty leaves the server default
	ReplacesID uint32 // bubble to update in place, 0 for a new one
}

// Notifier posts notifications and returns the bubble ID. Without a
// notification service it returns 0 and no error.
type Notifier interface {
	Notify(n Notification) (uint32, error)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) (uint32, error) { return 0, nil }
