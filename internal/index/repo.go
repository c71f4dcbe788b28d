package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/furrow/internal/models"
)

// Row is one indexed entry.
type Row struct {
	Key         string
	ID          string
	Collection  string
	Slug        string
	Title       string
	Description string
	URL         string
	Checksum    string
	Tags        []string
	Categories  []string
	UpdatedAt   time.Time
}

// RowFor builds the row for e tracked under key.
func RowFor(key string, e models.Entry, checksum string) Row {
	updated := e.UpdatedAt
	if updated.IsZero() {
		updated = e.Date
	}
	return Row{
		Key:         key,
		ID:          e.ID,
		Collection:  e.Collection,
		Slug:        e.Slug,
		Title:       e.Title,
		Description: e.Description,
		URL:         e.URL,
		Checksum:    checksum,
		Tags:        e.Tags,
		Categories:  e.Categories,
		UpdatedAt:   updated,
	}
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet"`
}

// Upsert inserts or replaces an entry and its FTS row within a transaction.
func (db *DB) Upsert(r Row, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(orEmpty(r.Tags))
	catsJSON, _ := json.Marshal(orEmpty(r.Categories))

	// Body is kept on the entries table for the LIKE fallback.
	_, err = tx.Exec(`
		INSERT INTO entries (key, id, collection, slug, title, description, url, checksum, tags, categories, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			id          = excluded.id,
			collection  = excluded.collection,
			slug        = excluded.slug,
			title       = excluded.title,
			description = excluded.description,
			url         = excluded.url,
			checksum    = excluded.checksum,
			tags        = excluded.tags,
			categories  = excluded.categories,
			body        = excluded.body,
			updated_at  = excluded.updated_at
	`, r.Key, r.ID, r.Collection, r.Slug, r.Title, r.Description, r.URL, r.Checksum,
		string(tagsJSON), string(catsJSON), body, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert entry: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, r.Key, r.Title, r.Description, body, r.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes the row tracked under key and returns its entry id, or ""
// when nothing was indexed there.
func (db *DB) Delete(key string) (string, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id string
	err = tx.QueryRow(`SELECT id FROM entries WHERE key = ?`, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: delete lookup: %w", err)
	}
	ftsDelete(tx, key)
	if _, err := tx.Exec(`DELETE FROM entries WHERE key = ?`, key); err != nil {
		return "", fmt.Errorf("index: delete entry: %w", err)
	}
	return id, tx.Commit()
}

// GetChecksum returns the stored checksum for key, or empty string if not found.
func (db *DB) GetChecksum(key string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM entries WHERE key = ?`, key).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns key -> checksum for every indexed row.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT key, checksum FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, cs string
		if err := rows.Scan(&k, &cs); err != nil {
			return nil, err
		}
		out[k] = cs
	}
	return out, rows.Err()
}

// Count returns the number of indexed rows.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

func scanResults(rows *sql.Rows, limit int) ([]SearchResult, error) {
	defer rows.Close()
	seen := map[string]bool{}
	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Collection, &r.Slug, &r.Title, &r.URL, &r.Snippet); err != nil {
			return nil, err
		}
		// A static file and a CMS document may publish the same entry.
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, rows.Err()
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
