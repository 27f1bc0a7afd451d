package index

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/arpa73/AIKnowSys-sub002/internal/apperr"
	"github.com/arpa73/AIKnowSys-sub002/internal/checksum"
	"github.com/arpa73/AIKnowSys-sub002/internal/frontmatter"
	"github.com/arpa73/AIKnowSys-sub002/internal/models"
	"github.com/arpa73/AIKnowSys-sub002/internal/storage"
)

// Rebuild reconstructs the index from the markdown tree alone. It walks
// every per-type directory, parses each file's frontmatter, and returns a
// fresh index. Files that fail to parse are skipped with a warning so one
// corrupt file cannot block the rebuild. LastBuilt is set to the newest
// file modification time, which makes rebuild output byte-identical when
// nothing on disk changed.
//
// Rebuild is the sole recovery path from index corruption: it never reads
// the old index.
func Rebuild(store storage.Provider, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ix := New()
	var lastMod time.Time

	for _, t := range models.Types() {
		files, err := store.List(t.Dir())
		if err != nil {
			return nil, fmt.Errorf("%w: rebuild list %s: %v", apperr.ErrIO, t.Dir(), err)
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

		for _, f := range files {
			if f.ModTime.After(lastMod) {
				lastMod = f.ModTime
			}
			rec, err := loadRecord(store, f.Path)
			if err != nil {
				logger.Warn("rebuild: skipping file",
					slog.String("path", f.Path),
					slog.String("error", err.Error()))
				continue
			}
			if err := ix.Add(t, *rec); err != nil {
				logger.Warn("rebuild: skipping duplicate",
					slog.String("path", f.Path),
					slog.String("id", rec.ID),
					slog.String("error", err.Error()))
			}
		}
	}

	ix.LastBuilt = lastMod
	return ix, nil
}

// loadRecord reads and parses one markdown file into a record. The
// filename stem serves as the id when the frontmatter carries none.
func loadRecord(store storage.Provider, filePath string) (*models.Record, error) {
	data, err := store.Read(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrIO, filePath, err)
	}
	fields, _, err := frontmatter.Parse(data)
	if err != nil {
		return nil, apperr.Malformed(filePath, err)
	}
	rec, err := models.FromFields(fields, Stem(filePath))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	rec.FilePath = filePath
	rec.Checksum = checksum.Sum(data)
	return rec, nil
}

// Stem returns the filename without directory or .md extension; it is the
// fallback record id for manually created files.
func Stem(filePath string) string {
	return strings.TrimSuffix(path.Base(filePath), ".md")
}
