package winapi

import (
	"regexp"
	"strings"
)

// Filter represents a window filtering predicate
type Filter func(*Window) bool

// WinVisible filters by window visibility
func WinVisible(isVisible bool) Filter {
	return func(w *Window) bool {
		return w.IsVisible == isVisible
	}
}

// WinTitlePattern keeps windows whose title matches pattern. A nil pattern
// matches everything.
func WinTitlePattern(pattern *regexp.Regexp) Filter {
	return func(w *Window) bool {
		return pattern == nil || pattern.MatchString(w.Title)
	}
}

// WinHasTitle drops windows whose title is blank. Players keep hidden helper
// windows without one.
func WinHasTitle() Filter {
	return func(w *Window) bool {
		return strings.TrimSpace(w.Title) != ""
	}
}
