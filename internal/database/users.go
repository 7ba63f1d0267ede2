package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// CreateUser registers a user by email. Registering an existing email
// returns the stored user unchanged.
func (db *DB) CreateUser(email string) (*User, error) {
	_, err := db.conn.Exec("INSERT INTO users (email) VALUES (?)", email)
	if err != nil && !isUniqueViolation(err) {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return db.GetUserByEmail(email)
}

// GetUser returns the user with the given id, or nil if absent.
func (db *DB) GetUser(id int64) (*User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, preferences, created_at FROM users WHERE id = ?", id)
	return scanUser(row)
}

// GetUserByEmail returns the user with the given email, or nil if absent.
func (db *DB) GetUserByEmail(email string) (*User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, preferences, created_at FROM users WHERE email = ?", email)
	return scanUser(row)
}

// UpdateUserPreferences replaces the user's serialized preference weights.
func (db *DB) UpdateUserPreferences(id int64, prefs string) error {
	res, err := db.conn.Exec("UPDATE users SET preferences = ? WHERE id = ?", prefs, id)
	if err != nil {
		return fmt.Errorf("updating preferences: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u              User
		prefs, created sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &prefs, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.Preferences = prefs.String
	u.CreatedAt = parseTime(created)
	return &u, nil
}
