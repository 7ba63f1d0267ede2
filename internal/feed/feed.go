// Package feed fetches and parses RSS/Atom feeds into normalized entries.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// maxEntriesPerFeed caps how many entries a single fetch yields.
const maxEntriesPerFeed = 100

// Entry is a normalized feed entry.
type Entry struct {
	Title       string
	Link        string
	Summary     string
	PublishedAt time.Time // zero when the feed omits a timestamp
}

// Meta is feed-level metadata of interest to the pipeline.
type Meta struct {
	Title    string
	Language string
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
}

// NewFetcher creates a Fetcher. A zero timeout defaults to 30s.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = "newsmill/1.0 (news aggregator)"
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		parser:    gofeed.NewParser(),
		userAgent: userAgent,
	}
}

// Fetch downloads feedURL and returns its normalized entries. Network and
// parse failures return an error; callers treat them as a per-source
// failure, never a run failure.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (*Meta, []Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetching feed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading feed body: %w", err)
	}

	parsed, err := f.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing feed: %w", err)
	}

	meta := &Meta{Title: parsed.Title, Language: parsed.Language}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if len(entries) >= maxEntriesPerFeed {
			break
		}
		entry := normalizeItem(item)
		if entry == nil {
			continue
		}
		entries = append(entries, *entry)
	}
	return meta, entries, nil
}

// normalizeItem converts a gofeed item, or returns nil for unusable ones.
func normalizeItem(item *gofeed.Item) *Entry {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return nil
	}

	summary := item.Description
	if summary == "" {
		summary = item.Content
	}

	e := &Entry{Title: title, Link: link, Summary: summary}
	if item.PublishedParsed != nil {
		e.PublishedAt = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		e.PublishedAt = item.UpdatedParsed.UTC()
	}
	return e
}
