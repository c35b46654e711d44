package musicstate

import "strings"

// SelectBest picks the most popular candidate whose primary artist and track
// name both appear verbatim in the raw window title. Ties keep the earliest
// candidate. ok is false when nothing qualifies, in which case the caller
// should show the title as-is.
func SelectBest(candidates []TrackCandidate, windowTitle string) (index int, ok bool) {
	best := -1
	highest := -1

	for i, c := range candidates {
		if c.Artist == "" || c.Name == "" {
			continue
		}
		if !strings.Contains(windowTitle, c.Artist) || !strings.Contains(windowTitle, c.Name) {
			continue
		}
		if c.Popularity > highest {
			highest = c.Popularity
			best = i
		}
	}

	if best < 0 {
		return 0, false
	}
	return best, true
}
