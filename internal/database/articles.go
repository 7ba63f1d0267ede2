package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const articleColumns = `id, source_id, canonical_url, title, body, published_at,
	language, category, labels, fingerprint, country, like_count, dislike_count, created_at`

// InsertArticle stores a new article and returns its id. When another
// article already holds the same canonical URL the insert is a no-op
// and 0 is returned.
func (db *DB) InsertArticle(a *Article) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO articles (source_id, canonical_url, title, body, published_at,
			language, category, labels, fingerprint, country)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SourceID, a.CanonicalURL, a.Title, a.Body, formatTime(a.PublishedAt),
		a.Language, a.Category, joinLabels(a.Labels), int64(a.Fingerprint), a.Country)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("inserting article: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("inserting article: %w", err)
	}
	a.ID = id
	return id, nil
}

// GetArticle returns the article with the given id, or nil if absent.
func (db *DB) GetArticle(id int64) (*Article, error) {
	row := db.conn.QueryRow("SELECT "+articleColumns+" FROM articles WHERE id = ?", id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetArticleByCanonicalURL returns the article stored under the given
// canonical URL, or nil if none exists.
func (db *DB) GetArticleByCanonicalURL(url string) (*Article, error) {
	row := db.conn.QueryRow("SELECT "+articleColumns+" FROM articles WHERE canonical_url = ?", url)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RecentFingerprints returns the duplicate-index seed for articles whose
// publish time (or storage time when unpublished) falls inside the window.
func (db *DB) RecentFingerprints(window time.Duration) ([]FingerprintRecord, error) {
	cutoff := time.Now().UTC().Add(-window).Format(timeLayout)
	rows, err := db.conn.Query(`
		SELECT id, source_id, canonical_url, fingerprint, published_at
		FROM articles
		WHERE COALESCE(published_at, created_at) >= ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("loading recent fingerprints: %w", err)
	}
	defer rows.Close()

	var records []FingerprintRecord
	for rows.Next() {
		var (
			r         FingerprintRecord
			fp        int64
			published sql.NullString
		)
		if err := rows.Scan(&r.ArticleID, &r.SourceID, &r.CanonicalURL, &fp, &published); err != nil {
			return nil, fmt.Errorf("scanning fingerprint: %w", err)
		}
		r.Fingerprint = uint64(fp)
		r.PublishedAt = parseTime(published)
		records = append(records, r)
	}
	return records, rows.Err()
}

// RecordCrossSource notes that a source also carried an already stored
// article. Repeated sightings from the same source are ignored.
func (db *DB) RecordCrossSource(articleID, sourceID int64, url string) error {
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO article_sources (article_id, source_id, url)
		VALUES (?, ?, ?)`, articleID, sourceID, url)
	if err != nil {
		return fmt.Errorf("recording cross-source sighting: %w", err)
	}
	return nil
}

// ArticleSourceIDs returns every source that carried the article,
// starting with the one it was first stored from.
func (db *DB) ArticleSourceIDs(articleID int64) ([]int64, error) {
	rows, err := db.conn.Query(`
		SELECT source_id FROM articles WHERE id = ?
		UNION
		SELECT source_id FROM article_sources WHERE article_id = ?`,
		articleID, articleID)
	if err != nil {
		return nil, fmt.Errorf("listing article sources: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning source id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ArticleFilter narrows ListArticles. Zero values mean "no constraint".
type ArticleFilter struct {
	Category string
	SourceID int64
	Country  string
	Language string
	Search   string
	Since    time.Time
	Limit    int
}

// ListArticles returns articles matching the filter, newest first.
func (db *DB) ListArticles(f ArticleFilter) ([]Article, error) {
	var (
		conds []string
		args  []any
	)
	if f.Category != "" {
		conds = append(conds, "(category = ? OR ',' || labels || ',' LIKE ?)")
		args = append(args, f.Category, "%,"+f.Category+",%")
	}
	if f.SourceID != 0 {
		conds = append(conds, "(source_id = ? OR id IN (SELECT article_id FROM article_sources WHERE source_id = ?))")
		args = append(args, f.SourceID, f.SourceID)
	}
	if f.Country != "" {
		conds = append(conds, "country = ?")
		args = append(args, f.Country)
	}
	if f.Language != "" {
		conds = append(conds, "language = ?")
		args = append(args, f.Language)
	}
	if f.Search != "" {
		conds = append(conds, "(title LIKE ? OR body LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "COALESCE(published_at, created_at) >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}

	query := "SELECT " + articleColumns + " FROM articles"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY COALESCE(published_at, created_at) DESC, id ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// DistinctCategories returns every category present in stored articles.
func (db *DB) DistinctCategories() ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT category FROM articles
		WHERE category IS NOT NULL AND category != ''
		ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetStats returns table counts for status reporting.
func (db *DB) GetStats() (Stats, error) {
	var s Stats
	row := db.conn.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM sources),
			(SELECT COUNT(*) FROM articles),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM feedback)`)
	if err := row.Scan(&s.Sources, &s.Articles, &s.Users, &s.Feedback); err != nil {
		return Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	return s, nil
}

func scanArticle(row rowScanner) (Article, error) {
	var (
		a                                Article
		body, published, lang, category  sql.NullString
		labels, country, created         sql.NullString
		fp                               int64
	)
	err := row.Scan(&a.ID, &a.SourceID, &a.CanonicalURL, &a.Title, &body, &published,
		&lang, &category, &labels, &fp, &country, &a.LikeCount, &a.DislikeCount, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Article{}, err
		}
		return Article{}, fmt.Errorf("scanning article: %w", err)
	}
	a.Body = body.String
	a.PublishedAt = parseTime(published)
	a.Language = lang.String
	a.Category = category.String
	a.Labels = splitLabels(labels.String)
	a.Fingerprint = uint64(fp)
	a.Country = country.String
	a.CreatedAt = parseTime(created)
	return a, nil
}
