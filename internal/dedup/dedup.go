// Package dedup tracks recently ingested articles so the pipeline can
// recognize exact re-fetches and near-duplicate coverage of the same story
// across outlets. The index is bounded by a recency window and is not safe
// for concurrent writers; the pipeline serializes access.
package dedup

import (
	"time"

	"github.com/newsmill/newsmill/internal/simhash"
)

// MatchKind distinguishes how a candidate matched a prior article.
type MatchKind int

const (
	// ExactURL means the canonical URLs are identical.
	ExactURL MatchKind = iota
	// NearDuplicate means the fingerprints are within the Hamming
	// threshold and the publish times are within the proximity window.
	NearDuplicate
)

// Entry is one recent article tracked by the index.
type Entry struct {
	ArticleID    int64
	SourceID     int64
	CanonicalURL string
	Fingerprint  uint64
	PublishedAt  time.Time
}

// Match is the best prior article found for a candidate.
type Match struct {
	Entry    Entry
	Kind     MatchKind
	Distance int // Hamming distance; 0 for ExactURL matches
}

// Options bound the index and tune near-duplicate matching.
type Options struct {
	// Window is how far back tracked entries remain eligible.
	Window time.Duration
	// HammingThreshold is the maximum bit distance for a near-duplicate.
	HammingThreshold int
	// PublishProximity is the maximum publish-time gap for a
	// near-duplicate; it keeps short templated text from matching
	// unrelated stories months apart.
	PublishProximity time.Duration
}

// DefaultOptions is the conservative configuration: 3-day window, 3-bit
// threshold, 72h publish proximity.
func DefaultOptions() Options {
	return Options{
		Window:           72 * time.Hour,
		HammingThreshold: 3,
		PublishProximity: 72 * time.Hour,
	}
}

// Index holds recent article signatures for duplicate lookup.
type Index struct {
	opts    Options
	byURL   map[string]int
	entries []Entry
}

// NewIndex creates an empty index.
func NewIndex(opts Options) *Index {
	return &Index{
		opts:  opts,
		byURL: make(map[string]int),
	}
}

// Seed loads previously persisted entries, typically the storage layer's
// recent-fingerprint scan at the start of a run.
func (ix *Index) Seed(entries []Entry) {
	for _, e := range entries {
		ix.Add(e)
	}
}

// Add tracks a newly persisted article.
func (ix *Index) Add(e Entry) {
	ix.byURL[e.CanonicalURL] = len(ix.entries)
	ix.entries = append(ix.entries, e)
}

// Lookup returns the best matching prior article for a candidate, or nil.
// An identical canonical URL always matches. Otherwise the closest entry
// by Hamming distance within both the bit threshold and the publish
// proximity window wins.
func (ix *Index) Lookup(canonicalURL string, fingerprint uint64, publishedAt, now time.Time) *Match {
	cutoff := now.Add(-ix.opts.Window)

	if i, ok := ix.byURL[canonicalURL]; ok {
		return &Match{Entry: ix.entries[i], Kind: ExactURL}
	}

	// A zero fingerprint means no usable text; URL matching only.
	if fingerprint == 0 {
		return nil
	}

	var best *Match
	for i := range ix.entries {
		e := &ix.entries[i]
		if e.PublishedAt.Before(cutoff) || e.Fingerprint == 0 {
			continue
		}
		gap := publishedAt.Sub(e.PublishedAt)
		if gap < 0 {
			gap = -gap
		}
		if gap > ix.opts.PublishProximity {
			continue
		}
		d := simhash.HammingDistance(fingerprint, e.Fingerprint)
		if d > ix.opts.HammingThreshold {
			continue
		}
		if best == nil || d < best.Distance {
			best = &Match{Entry: *e, Kind: NearDuplicate, Distance: d}
		}
	}
	return best
}

// Prune drops entries older than the recency window so long-running
// processes do not grow the index without bound.
func (ix *Index) Prune(now time.Time) {
	cutoff := now.Add(-ix.opts.Window)
	kept := ix.entries[:0]
	for _, e := range ix.entries {
		if !e.PublishedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	ix.entries = kept
	ix.byURL = make(map[string]int, len(kept))
	for i, e := range kept {
		ix.byURL[e.CanonicalURL] = i
	}
}

// Len returns the number of tracked entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}
