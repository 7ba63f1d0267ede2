// Package extract derives a plain-text body for an article. It prefers the
// readable main content of the fetched page, falls back to the feed-provided
// summary, and finally to the title alone. Extraction never fails: malformed
// markup and fetch errors only degrade the result to a lower-fidelity source.
package extract

import (
	"context"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// BodySource records which fallback level produced the body.
type BodySource string

const (
	SourcePage    BodySource = "page"
	SourceSummary BodySource = "summary"
	SourceTitle   BodySource = "title"
)

// DefaultMinLength is the minimum extracted-page length considered usable.
const DefaultMinLength = 200

// maxBodyBytes caps how much of a page is read before extraction.
const maxBodyBytes = 2 << 20

// Extractor fetches article pages and extracts readable text.
type Extractor struct {
	client    *http.Client
	userAgent string
	minLength int

	mu          sync.Mutex
	failedHosts map[string]struct{}
}

// New creates an extractor. A zero timeout defaults to 15s and a zero
// minLength to DefaultMinLength.
func New(timeout time.Duration, minLength int, userAgent string) *Extractor {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if minLength == 0 {
		minLength = DefaultMinLength
	}
	if userAgent == "" {
		userAgent = "newsmill/1.0 (news aggregator)"
	}
	return &Extractor{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent:   userAgent,
		minLength:   minLength,
		failedHosts: make(map[string]struct{}),
	}
}

// Extract produces the best-effort plain-text body for an entry. The page
// at pageURL is fetched when possible; a failure there is non-fatal and
// the summary (or title) is used instead.
func (e *Extractor) Extract(ctx context.Context, pageURL, title, summaryHTML string) (string, BodySource) {
	if pageURL != "" && !e.hostFailed(pageURL) {
		if text := e.fetchReadable(ctx, pageURL); len(text) >= e.minLength {
			return text, SourcePage
		}
	}

	if summary := StripHTML(summaryHTML); summary != "" {
		return summary, SourceSummary
	}

	return strings.TrimSpace(title), SourceTitle
}

// fetchReadable fetches the page and runs readability over it. Every error
// path returns "", and hosts that error at the HTTP level are skipped for
// the rest of the run, the same politeness the feed fetcher applies.
func (e *Extractor) fetchReadable(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		e.markFailed(pageURL)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		e.markFailed(pageURL)
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ""
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func (e *Extractor) hostFailed(pageURL string) bool {
	host := hostOf(pageURL)
	if host == "" {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, failed := e.failedHosts[host]
	return failed
}

func (e *Extractor) markFailed(pageURL string) {
	host := hostOf(pageURL)
	if host == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failedHosts[host] = struct{}{}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

var (
	tagRe        = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// StripHTML reduces markup to space-collapsed plain text. It tolerates
// arbitrarily malformed input.
func StripHTML(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
