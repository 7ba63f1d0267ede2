package database

import (
	"strings"
	"time"
)

// Source is a registered RSS feed.
type Source struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	FeedURL   string    `json:"feed_url"`
	Country   string    `json:"country,omitempty"`
	Language  string    `json:"language,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Article is a stored, canonicalized news article.
type Article struct {
	ID           int64     `json:"id"`
	SourceID     int64     `json:"source_id"`
	CanonicalURL string    `json:"canonical_url"`
	Title        string    `json:"title"`
	Body         string    `json:"body,omitempty"`
	PublishedAt  time.Time `json:"published_at,omitempty"`
	Language     string    `json:"language,omitempty"`
	Category     string    `json:"category,omitempty"`
	Labels       []string  `json:"labels,omitempty"`
	Fingerprint  uint64    `json:"-"`
	Country      string    `json:"country,omitempty"`
	LikeCount    int       `json:"like_count"`
	DislikeCount int       `json:"dislike_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// User is a reader with persisted category preferences.
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Preferences string    `json:"preferences,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FingerprintRecord carries the fields the duplicate index needs for
// recently stored articles.
type FingerprintRecord struct {
	ArticleID    int64
	SourceID     int64
	CanonicalURL string
	Fingerprint  uint64
	PublishedAt  time.Time
}

// Stats summarizes table counts for status reporting.
type Stats struct {
	Sources  int `json:"sources"`
	Articles int `json:"articles"`
	Users    int `json:"users"`
	Feedback int `json:"feedback"`
}

func joinLabels(labels []string) string {
	return strings.Join(labels, ",")
}

func splitLabels(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
