// Package search maintains a SQLite full-text mirror of record bodies.
// Like the JSON index it is derived state: it is rebuilt from the markdown
// tree and can be deleted at any time without data loss.
package search

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	path       TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	id         TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT '',
	topics     TEXT NOT NULL DEFAULT '[]',
	body       TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_records_type ON records(type);
`

// DB wraps the SQLite connection holding the search mirror.
type DB struct {
	conn *sql.DB
}

// Entry is one searchable record: index metadata plus the markdown body.
type Entry struct {
	Path    string
	Type    string
	ID      string
	Status  string
	Topics  []string
	Body    string
	Updated time.Time
}

// Result is a single search hit.
type Result struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
}

// Open opens (creating if needed) the search database at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("search: open: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: init schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: init fts: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// Upsert inserts or replaces one entry and its FTS row in a transaction.
func (db *DB) Upsert(e Entry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	topicsJSON, _ := json.Marshal(e.Topics)
	_, err = tx.Exec(`
		INSERT INTO records (path, type, id, status, topics, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			type       = excluded.type,
			id         = excluded.id,
			status     = excluded.status,
			topics     = excluded.topics,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, e.Path, e.Type, e.ID, e.Status, string(topicsJSON), e.Body, e.Updated)
	if err != nil {
		return fmt.Errorf("search: upsert: %w", err)
	}
	if err := ftsUpsert(tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes an entry and its FTS row.
func (db *DB) Delete(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM records WHERE path = ?`, path)
	return tx.Commit()
}

// AllPaths returns every mirrored record path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM records`)
	if err != nil {
		return nil, fmt.Errorf("search: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}
