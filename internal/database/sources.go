package database

import (
	"database/sql"
	"fmt"

	"github.com/newsmill/newsmill/internal/feed"
)

// RegisterSource upserts a source keyed by its feed URL and returns its id.
// Re-registering an existing feed URL updates the descriptive fields.
func (db *DB) RegisterSource(name, feedURL, country, language string) (int64, error) {
	var id int64
	err := db.conn.QueryRow(`
		INSERT INTO sources (name, name_norm, feed_url, country, language)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(feed_url) DO UPDATE SET
			name = excluded.name,
			name_norm = excluded.name_norm,
			country = excluded.country,
			language = excluded.language
		RETURNING id`,
		name, feed.NormalizeSourceName(name), feedURL, country, language).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("registering source %q: %w", feedURL, err)
	}
	return id, nil
}

// ListSources returns all sources ordered by name.
func (db *DB) ListSources() ([]Source, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, feed_url, country, language, enabled, created_at
		FROM sources ORDER BY name_norm, id`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// EnabledSources returns the sources the ingest run should fetch.
func (db *DB) EnabledSources() ([]Source, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, feed_url, country, language, enabled, created_at
		FROM sources WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing enabled sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// SetSourceEnabled toggles whether a source is fetched.
func (db *DB) SetSourceEnabled(id int64, enabled bool) error {
	res, err := db.conn.Exec("UPDATE sources SET enabled = ? WHERE id = ?", enabled, id)
	if err != nil {
		return fmt.Errorf("updating source %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("source %d not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (Source, error) {
	var (
		s                           Source
		country, language, created sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Name, &s.FeedURL, &country, &language, &s.Enabled, &created); err != nil {
		return Source{}, fmt.Errorf("scanning source: %w", err)
	}
	s.Country = country.String
	s.Language = language.String
	s.CreatedAt = parseTime(created)
	return s, nil
}
