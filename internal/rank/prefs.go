// Package rank orders stored articles for a reader by combining category
// affinity, publish recency, and like/dislike popularity.
package rank

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultWeight is the neutral affinity for categories the user has no
// recorded preference on.
const DefaultWeight = 1.0

// FeedbackDelta is how much a single like or dislike shifts a category weight.
const FeedbackDelta = 0.2

// Preferences maps category keys to affinity weights.
type Preferences map[string]float64

// ParsePreferences decodes the stored "cat:weight|cat:weight" form.
// Malformed segments are skipped.
func ParsePreferences(s string) Preferences {
	prefs := Preferences{}
	for _, seg := range strings.Split(s, "|") {
		key, val, ok := strings.Cut(seg, ":")
		if !ok {
			continue
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || w < 0 {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		prefs[key] = w
	}
	return prefs
}

// Serialize encodes preferences in the stored "cat:weight|cat:weight" form,
// sorted by category for deterministic output.
func (p Preferences) Serialize() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+strconv.FormatFloat(p[k], 'g', -1, 64))
	}
	return strings.Join(parts, "|")
}

// Weight returns the stored weight for a category, or the neutral default.
func (p Preferences) Weight(category string) float64 {
	if w, ok := p[category]; ok {
		return w
	}
	return DefaultWeight
}

// Adjust shifts a category weight by delta, clamped at zero.
func (p Preferences) Adjust(category string, delta float64) {
	w := p.Weight(category) + delta
	if w < 0 {
		w = 0
	}
	p[category] = w
}

// ApplyFeedback nudges a category weight up for a like, down for a dislike.
func (p Preferences) ApplyFeedback(category string, liked bool) {
	if liked {
		p.Adjust(category, FeedbackDelta)
	} else {
		p.Adjust(category, -FeedbackDelta)
	}
}
