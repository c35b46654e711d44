// Package titles turns raw player window titles into search queries.
package titles

import (
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// idleTitles are window titles the Spotify client shows when nothing is playing.
var idleTitles = map[string]bool{
	"Spotify":         true,
	"Spotify Premium": true,
	"Spotify Free":    true,
}

// Characters the search endpoint treats as query syntax.
var replacer = strings.NewReplacer(
	"–", "-", // en dash
	"—", "-", // em dash
	"−", "-", // minus sign
	"‘", "'",
	"’", "'",
	"“", "",
	"”", "",
	"\"", "",
	":", " ",
	"*", "",
	"\\", "",
)

// Normalize cleans a display string so it can be used as a search query.
// Runs of whitespace collapse to one space and edge whitespace is trimmed;
// apart from that, titles without special characters come back unchanged.
func Normalize(title string) string {
	cleaned := norm.NFKC.String(title)
	cleaned = replacer.Replace(cleaned)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return title
	}
	return cleaned
}

// Escape percent-encodes a query for use in a URL query string.
func Escape(query string) string {
	return url.QueryEscape(query)
}

// IsIdle reports whether the title is just the player's own name.
func IsIdle(title string) bool {
	return idleTitles[strings.TrimSpace(title)]
}
