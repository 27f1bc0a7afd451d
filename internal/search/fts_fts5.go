//go:build sqlite_fts5

package search

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			path UNINDEXED,
			id,
			body,
			topics,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, e Entry) error {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE path = ?`, e.Path)
	_, err := tx.Exec(`INSERT INTO records_fts (path, id, body, topics) VALUES (?, ?, ?, ?)`,
		e.Path, e.ID, e.Body, strings.Join(e.Topics, " "))
	if err != nil {
		return fmt.Errorf("search: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE path = ?`, path)
}

// Search performs an FTS5 full-text search. typ narrows results to one
// record type when non-empty.
func (db *DB) Search(query, typ string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	sqlQuery := `
		SELECT r.path, r.type, r.id,
		       snippet(records_fts, 2, '>>', '<<', '...', 12)
		FROM records_fts f
		JOIN records r ON r.path = f.path
		WHERE records_fts MATCH ?`
	args := []any{query}
	if typ != "" {
		sqlQuery += ` AND r.type = ?`
		args = append(args, typ)
	}
	sqlQuery += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Path, &r.Type, &r.ID, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
