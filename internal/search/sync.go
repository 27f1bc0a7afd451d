package search

import (
	"log/slog"

	"github.com/arpa73/AIKnowSys-sub002/internal/frontmatter"
	"github.com/arpa73/AIKnowSys-sub002/internal/index"
	"github.com/arpa73/AIKnowSys-sub002/internal/models"
	"github.com/arpa73/AIKnowSys-sub002/internal/storage"
)

// Sync brings the search mirror in line with a built index: every indexed
// record is upserted with its current markdown body, and mirror rows whose
// records are gone are deleted. Per-record failures are logged and skipped
// so search staleness never blocks the caller.
func Sync(db *DB, store storage.Provider, ix *index.Index, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	live := make(map[string]struct{}, ix.Len())
	for _, t := range models.Types() {
		for _, rec := range ix.Records(t) {
			live[rec.FilePath] = struct{}{}

			data, err := store.Read(rec.FilePath)
			if err != nil {
				logger.Warn("search sync: read failed", slog.String("path", rec.FilePath), slog.String("error", err.Error()))
				continue
			}
			_, body, err := frontmatter.Parse(data)
			if err != nil {
				logger.Warn("search sync: parse failed", slog.String("path", rec.FilePath), slog.String("error", err.Error()))
				continue
			}
			entry := Entry{
				Path:    rec.FilePath,
				Type:    string(t),
				ID:      rec.ID,
				Status:  rec.Status,
				Topics:  rec.Topics,
				Body:    body,
				Updated: rec.Updated,
			}
			if err := db.Upsert(entry); err != nil {
				logger.Warn("search sync: upsert failed", slog.String("path", rec.FilePath), slog.String("error", err.Error()))
			}
		}
	}

	mirrored, err := db.AllPaths()
	if err != nil {
		return err
	}
	for p := range mirrored {
		if _, ok := live[p]; !ok {
			if err := db.Delete(p); err != nil {
				logger.Warn("search sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			}
		}
	}
	return nil
}
