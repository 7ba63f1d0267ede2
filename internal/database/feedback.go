package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// RecordFeedback stores a user's like or dislike of an article and keeps
// the article's counters in sync. A repeated identical vote is a no-op.
// The returned pointer holds the previous vote, or nil for a first vote,
// so callers can undo its preference effect before applying the new one.
func (db *DB) RecordFeedback(userID, articleID int64, liked bool) (*bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("recording feedback: %w", err)
	}
	defer tx.Rollback()

	var prev *bool
	var prevLiked bool
	err = tx.QueryRow(
		"SELECT liked FROM feedback WHERE user_id = ? AND article_id = ?",
		userID, articleID).Scan(&prevLiked)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// first vote
	case err != nil:
		return nil, fmt.Errorf("reading prior feedback: %w", err)
	default:
		prev = &prevLiked
		if prevLiked == liked {
			return prev, nil
		}
	}

	_, err = tx.Exec(`
		INSERT INTO feedback (user_id, article_id, liked)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, article_id) DO UPDATE SET
			liked = excluded.liked,
			created_at = strftime('%Y-%m-%dT%H:%M:%SZ','now')`,
		userID, articleID, liked)
	if err != nil {
		return nil, fmt.Errorf("storing feedback: %w", err)
	}

	likeDelta, dislikeDelta := 0, 0
	if liked {
		likeDelta = 1
	} else {
		dislikeDelta = 1
	}
	if prev != nil {
		// Flipped vote: retract the old counter.
		if prevLiked {
			likeDelta--
		} else {
			dislikeDelta--
		}
	}

	_, err = tx.Exec(`
		UPDATE articles
		SET like_count = like_count + ?, dislike_count = dislike_count + ?
		WHERE id = ?`,
		likeDelta, dislikeDelta, articleID)
	if err != nil {
		return nil, fmt.Errorf("updating article counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("recording feedback: %w", err)
	}
	return prev, nil
}
