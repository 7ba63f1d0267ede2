package rank

import (
	"math"
	"sort"
	"time"

	"github.com/newsmill/newsmill/internal/database"
)

// Options holds the scoring weights and the recency decay half-life.
type Options struct {
	AffinityWeight   float64
	RecencyWeight    float64
	PopularityWeight float64
	HalfLife         time.Duration
}

// DefaultOptions returns the standard scoring configuration.
func DefaultOptions() Options {
	return Options{
		AffinityWeight:   1.0,
		RecencyWeight:    1.0,
		PopularityWeight: 0.5,
		HalfLife:         24 * time.Hour,
	}
}

// Engine scores and orders candidate articles. It is read-only over its
// inputs and safe for concurrent use.
type Engine struct {
	opts Options
}

// New returns an Engine with the given options. Zero or negative
// half-life falls back to the default.
func New(opts Options) *Engine {
	if opts.HalfLife <= 0 {
		opts.HalfLife = DefaultOptions().HalfLife
	}
	return &Engine{opts: opts}
}

// Rank orders articles by descending score, breaking ties by more recent
// publish time and then by id. A nil prefs means an anonymous request:
// affinity is left out and the ordering is pure recency plus popularity.
// The result is truncated to limit when limit is positive.
func (e *Engine) Rank(articles []database.Article, prefs Preferences, limit int, now time.Time) []database.Article {
	type scored struct {
		article database.Article
		score   float64
	}

	items := make([]scored, len(articles))
	for i, a := range articles {
		items[i] = scored{article: a, score: e.score(a, prefs, now)}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		ti, tj := effectiveTime(items[i].article), effectiveTime(items[j].article)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return items[i].article.ID < items[j].article.ID
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]database.Article, len(items))
	for i, it := range items {
		out[i] = it.article
	}
	return out
}

func (e *Engine) score(a database.Article, prefs Preferences, now time.Time) float64 {
	score := e.opts.RecencyWeight*e.recency(a, now) +
		e.opts.PopularityWeight*popularity(a)
	if prefs != nil {
		score += e.opts.AffinityWeight * affinity(a, prefs)
	}
	return score
}

// affinity is the mean preference weight across the article's labels.
// Averaging keeps a user with all-neutral weights equivalent to an
// anonymous request: their affinity is a constant offset that cannot
// change the ordering.
func affinity(a database.Article, prefs Preferences) float64 {
	labels := a.Labels
	if len(labels) == 0 {
		if a.Category == "" {
			return DefaultWeight
		}
		labels = []string{a.Category}
	}
	var sum float64
	for _, label := range labels {
		sum += prefs.Weight(label)
	}
	return sum / float64(len(labels))
}

// recency decays exponentially with age: 1.0 for a just-published
// article, 0.5 after one half-life, approaching but never reaching zero.
func (e *Engine) recency(a database.Article, now time.Time) float64 {
	t := effectiveTime(a)
	if t.IsZero() {
		return 0
	}
	age := now.Sub(t)
	if age < 0 {
		age = 0
	}
	halfLives := float64(age) / float64(e.opts.HalfLife)
	return math.Exp(-math.Ln2 * halfLives)
}

// popularity maps the net like count into [0, 1) with logarithmic
// dampening so viral articles cannot dominate the score.
func popularity(a database.Article) float64 {
	net := a.LikeCount - a.DislikeCount
	if net <= 0 {
		return 0
	}
	p := math.Log1p(float64(net))
	return p / (1 + p)
}

func effectiveTime(a database.Article) time.Time {
	if !a.PublishedAt.IsZero() {
		return a.PublishedAt
	}
	return a.CreatedAt
}
