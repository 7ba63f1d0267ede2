// Package ingest runs the fetch, normalize, deduplicate, classify,
// persist cycle over the configured sources.
package ingest

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/newsmill/newsmill/internal/canonical"
	"github.com/newsmill/newsmill/internal/classify"
	"github.com/newsmill/newsmill/internal/database"
	"github.com/newsmill/newsmill/internal/dedup"
	"github.com/newsmill/newsmill/internal/extract"
	"github.com/newsmill/newsmill/internal/feed"
	"github.com/newsmill/newsmill/internal/language"
	"github.com/newsmill/newsmill/internal/simhash"
)

// DefaultWorkers bounds how many sources are fetched at once.
const DefaultWorkers = 4

// Options configures a pipeline run.
type Options struct {
	Workers int
	Dedup   dedup.Options
}

// DefaultOptions returns the standard pipeline configuration.
func DefaultOptions() Options {
	return Options{
		Workers: DefaultWorkers,
		Dedup:   dedup.DefaultOptions(),
	}
}

// SourceReport summarizes one source's outcome within a run.
type SourceReport struct {
	SourceID   int64  `json:"source_id"`
	Name       string `json:"name"`
	Fetched    int    `json:"fetched"`
	Imported   int    `json:"imported"`
	Duplicates int    `json:"duplicates"`
	Failed     int    `json:"failed"`
	Err        error  `json:"-"`
}

// RunReport aggregates all per-source reports of one run.
type RunReport struct {
	Sources  []SourceReport `json:"sources"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration"`
}

// Imported returns the total number of newly stored articles.
func (r *RunReport) Imported() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Imported
	}
	return n
}

// FailedSources returns how many sources failed to fetch entirely.
func (r *RunReport) FailedSources() int {
	n := 0
	for _, s := range r.Sources {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Pipeline drives ingestion cycles. One Pipeline may run many cycles;
// each cycle re-seeds its duplicate index from recently stored articles.
type Pipeline struct {
	db         *database.DB
	fetcher    *feed.Fetcher
	extractor  *extract.Extractor
	classifier classify.Classifier
	opts       Options

	// mu serializes duplicate lookup and insert so two near-simultaneous
	// fetches of the same story cannot both pass the check.
	mu    sync.Mutex
	index *dedup.Index
}

// New assembles a pipeline from its collaborators.
func New(db *database.DB, fetcher *feed.Fetcher, extractor *extract.Extractor, classifier classify.Classifier, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Pipeline{
		db:         db,
		fetcher:    fetcher,
		extractor:  extractor,
		classifier: classifier,
		opts:       opts,
	}
}

// Run fetches every source with bounded parallelism and returns the
// per-source report. Source failures are recorded, never fatal: the
// returned error is nil unless seeding the duplicate index fails.
// Cancelling ctx stops issuing further fetches; articles already
// persisted stay.
func (p *Pipeline) Run(ctx context.Context, sources []database.Source) (*RunReport, error) {
	started := time.Now()

	if err := p.prepareIndex(started); err != nil {
		return nil, err
	}

	reports := make([]SourceReport, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				reports[i] = SourceReport{SourceID: src.ID, Name: src.Name, Err: err}
				return nil
			}
			reports[i] = p.processSource(ctx, src)
			return nil
		})
	}
	g.Wait()

	return &RunReport{
		Sources:  reports,
		Started:  started.UTC(),
		Duration: time.Since(started),
	}, nil
}

// prepareIndex seeds the duplicate index from storage on the first run and
// drops entries that aged out of the window on later runs. The index then
// tracks this process's own inserts, so one seed per Pipeline suffices.
func (p *Pipeline) prepareIndex(now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.index != nil {
		p.index.Prune(now)
		return nil
	}

	records, err := p.db.RecentFingerprints(p.opts.Dedup.Window)
	if err != nil {
		return err
	}
	seed := make([]dedup.Entry, len(records))
	for i, r := range records {
		seed[i] = dedup.Entry{
			ArticleID:    r.ArticleID,
			SourceID:     r.SourceID,
			CanonicalURL: r.CanonicalURL,
			Fingerprint:  r.Fingerprint,
			PublishedAt:  r.PublishedAt,
		}
	}
	p.index = dedup.NewIndex(p.opts.Dedup)
	p.index.Seed(seed)
	return nil
}

func (p *Pipeline) processSource(ctx context.Context, src database.Source) SourceReport {
	report := SourceReport{SourceID: src.ID, Name: src.Name}

	meta, entries, err := p.fetcher.Fetch(ctx, src.FeedURL)
	if err != nil {
		log.Printf("source %s: fetch failed: %v", src.Name, err)
		report.Err = err
		return report
	}
	report.Fetched = len(entries)

	langHint := src.Language
	if langHint == "" && meta != nil {
		if norm := language.Normalize(meta.Language); norm != language.Unknown {
			langHint = norm
		}
	}

	// Sequential per source: dedup ordering within a feed stays deterministic.
	for _, entry := range entries {
		switch p.processEntry(ctx, src, entry, langHint) {
		case outcomeImported:
			report.Imported++
		case outcomeDuplicate:
			report.Duplicates++
		case outcomeFailed:
			report.Failed++
		}
	}
	return report
}

type outcome int

const (
	outcomeImported outcome = iota
	outcomeDuplicate
	outcomeFailed
)

func (p *Pipeline) processEntry(ctx context.Context, src database.Source, entry feed.Entry, langHint string) outcome {
	canonURL, err := canonical.Canonicalize(entry.Link)
	if err != nil {
		log.Printf("source %s: skipping %q: %v", src.Name, entry.Link, err)
		return outcomeFailed
	}

	now := time.Now().UTC()

	// Cheap exact-URL check before spending a page fetch on a known story.
	// A zero fingerprint never near-matches, so this only hits exact URLs.
	p.mu.Lock()
	match := p.index.Lookup(canonURL, 0, entry.PublishedAt, now)
	p.mu.Unlock()
	if match != nil {
		p.recordDuplicate(src, canonURL, entry.Link, match)
		return outcomeDuplicate
	}

	body, _ := p.extractor.Extract(ctx, entry.Link, entry.Title, entry.Summary)
	text := entry.Title + " " + body

	lang := language.Detect(text)
	if lang == language.Unknown && langHint != "" {
		lang = langHint
	}

	result := p.classifier.Classify(text)
	fingerprint := simhash.Fingerprint(text)

	country := src.Country
	if country == "" {
		country = feed.InferCountry(entry.Link)
	}

	article := &database.Article{
		SourceID:     src.ID,
		CanonicalURL: canonURL,
		Title:        entry.Title,
		Body:         body,
		PublishedAt:  entry.PublishedAt,
		Language:     lang,
		Category:     result.Primary,
		Labels:       result.Labels,
		Fingerprint:  fingerprint,
		Country:      country,
	}

	// Lookup and insert under one lock so a concurrent worker cannot
	// slip the same story in between the check and the write.
	p.mu.Lock()
	if match := p.index.Lookup(canonURL, fingerprint, entry.PublishedAt, now); match != nil {
		p.mu.Unlock()
		p.recordDuplicate(src, canonURL, entry.Link, match)
		return outcomeDuplicate
	}

	id, err := p.db.InsertArticle(article)
	if err != nil {
		p.mu.Unlock()
		log.Printf("source %s: storing %q: %v", src.Name, canonURL, err)
		return outcomeFailed
	}
	if id == 0 {
		// Unique constraint hit: stored outside the index window.
		p.mu.Unlock()
		return outcomeDuplicate
	}

	p.index.Add(dedup.Entry{
		ArticleID:    id,
		SourceID:     src.ID,
		CanonicalURL: canonURL,
		Fingerprint:  fingerprint,
		PublishedAt:  entry.PublishedAt,
	})
	p.mu.Unlock()
	return outcomeImported
}

// recordDuplicate notes a cross-source sighting. A re-fetch from the
// article's own source is a pure no-op.
func (p *Pipeline) recordDuplicate(src database.Source, canonURL, rawURL string, match *dedup.Match) {
	if match.Entry.SourceID == src.ID {
		return
	}
	if err := p.db.RecordCrossSource(match.Entry.ArticleID, src.ID, rawURL); err != nil {
		log.Printf("source %s: cross-source record for %q: %v", src.Name, canonURL, err)
	}
}
