// Package storage persists cards, folders, settings and deck sources in a
// local SQLite database. Callers treat it as a key-value style snapshot
// store: load everything at startup, write back whole sets on mutation.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ezberapp/ezber/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB wraps the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// LoadCards returns every stored card. An empty database yields an empty
// slice, not an error; a fresh install starts from nothing.
func (db *DB) LoadCards() ([]domain.Card, error) {
	rows, err := db.conn.Query(`
		SELECT id, folder_id, meaning, word, keyword, story, image_prompt, image_ref,
		       status, interval_index, next_review_ms
		FROM cards
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		var folderID, keyword, story, imagePrompt, imageRef sql.NullString
		var status string
		if err := rows.Scan(
			&c.ID, &folderID, &c.Meaning, &c.Word, &keyword, &story,
			&imagePrompt, &imageRef, &status, &c.IntervalIndex, &c.NextReviewTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		c.FolderID = folderID.String
		c.Keyword = keyword.String
		c.Story = story.String
		c.ImagePrompt = imagePrompt.String
		c.ImageRef = imageRef.String
		c.Status = domain.Status(status)
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// SaveCards replaces the stored card set with the given snapshot.
func (db *DB) SaveCards(cards []domain.Card) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin card save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cards`); err != nil {
		return fmt.Errorf("failed to clear cards: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO cards (id, folder_id, meaning, word, keyword, story, image_prompt,
		                   image_ref, status, interval_index, next_review_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare card insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cards {
		if _, err := stmt.Exec(
			c.ID, c.FolderID, c.Meaning, c.Word, c.Keyword, c.Story,
			c.ImagePrompt, c.ImageRef, string(c.Status), c.IntervalIndex, c.NextReviewTime,
		); err != nil {
			return fmt.Errorf("failed to insert card %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// LoadFolders returns every stored folder.
func (db *DB) LoadFolders() ([]domain.Folder, error) {
	rows, err := db.conn.Query(`SELECT id, name, created_at_ms FROM folders`)
	if err != nil {
		return nil, fmt.Errorf("failed to load folders: %w", err)
	}
	defer rows.Close()

	var folders []domain.Folder
	for rows.Next() {
		var f domain.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan folder row: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// SaveFolders replaces the stored folder set with the given snapshot.
func (db *DB) SaveFolders(folders []domain.Folder) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin folder save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM folders`); err != nil {
		return fmt.Errorf("failed to clear folders: %w", err)
	}
	for _, f := range folders {
		if _, err := tx.Exec(
			`INSERT INTO folders (id, name, created_at_ms) VALUES (?, ?, ?)`,
			f.ID, f.Name, f.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert folder %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// LoadSettings returns the stored settings, or nil when none were saved yet.
func (db *DB) LoadSettings() (*domain.Settings, error) {
	var raw string
	err := db.conn.QueryRow(`SELECT value FROM blobs WHERE key = 'settings'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var s domain.Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &s, nil
}

// SaveSettings stores the settings snapshot.
func (db *DB) SaveSettings(s domain.Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if _, err := db.conn.Exec(`
		INSERT INTO blobs (key, value) VALUES ('settings', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, string(raw)); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Source is a deck source, either a local directory or a git URL.
type Source struct {
	ID          int64
	Path        string
	Kind        string
	LastScanned sql.NullTime
}

// InsertSource stores a new deck source and returns its ID.
func (db *DB) InsertSource(path, kind string) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO sources (path, kind) VALUES (?, ?)`, path, kind,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// GetAllSources retrieves all stored deck sources.
func (db *DB) GetAllSources() ([]Source, error) {
	rows, err := db.conn.Query(`SELECT id, path, kind, last_scanned FROM sources`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.Kind, &s.LastScanned); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// DeleteSource removes a deck source. Unknown IDs are a no-op.
func (db *DB) DeleteSource(id int64) error {
	if _, err := db.conn.Exec(`DELETE FROM sources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	return nil
}

// UpdateSourceLastScanned stamps a deck source as freshly scanned.
func (db *DB) UpdateSourceLastScanned(id int64) error {
	if _, err := db.conn.Exec(
		`UPDATE sources SET last_scanned = ? WHERE id = ?`, time.Now(), id,
	); err != nil {
		return fmt.Errorf("failed to update last scanned for source %d: %w", id, err)
	}
	return nil
}
