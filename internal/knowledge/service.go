// Package knowledge orchestrates mutations and queries over the markdown
// tree and its derived caches. Mutations write through index and markdown
// together or not at all; queries reconcile staleness before filtering.
package knowledge

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/arpa73/AIKnowSys-sub002/internal/apperr"
	"github.com/arpa73/AIKnowSys-sub002/internal/checksum"
	"github.com/arpa73/AIKnowSys-sub002/internal/frontmatter"
	"github.com/arpa73/AIKnowSys-sub002/internal/index"
	"github.com/arpa73/AIKnowSys-sub002/internal/models"
	"github.com/arpa73/AIKnowSys-sub002/internal/scaffold"
	"github.com/arpa73/AIKnowSys-sub002/internal/search"
	"github.com/arpa73/AIKnowSys-sub002/internal/storage"
)

// ArchiveDir is the knowledge-tree subdirectory archived records move to.
// It sits outside the per-type directories, so archived files are never
// rescanned into the live index.
const ArchiveDir = "archive"

var idRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Service coordinates storage, the JSON index, and the search mirror.
type Service struct {
	store  storage.Provider
	idx    *index.Store
	search *search.DB // optional, nil when search is disabled
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSearch attaches the full-text search mirror.
func WithSearch(db *search.DB) Option {
	return func(s *Service) { s.search = db }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a knowledge service.
func NewService(store storage.Provider, idx *index.Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  store,
		idx:    idx,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates fields, builds a record of the given type, and commits
// it: index persisted, markdown written. The id comes from the fields map
// when present; sessions fall back to a timestamp id, other types require
// one. On markdown write failure the persisted index is rolled back and a
// consistency error is returned.
func (s *Service) Create(t models.RecordType, fields map[string]any) (*models.Record, error) {
	ix, err := s.ensureFresh()
	if err != nil {
		return nil, err
	}

	id, err := s.resolveID(t, fields)
	if err != nil {
		return nil, err
	}
	delete(fields, "id")

	rec, err := models.FromFields(fields, id)
	if err != nil {
		return nil, err
	}
	rec.ID = id
	if rec.Status == "" {
		rec.Status = t.Statuses()[0]
	}
	if !t.ValidStatus(rec.Status) {
		return nil, apperr.Validationf("status %q is not valid for %s (want one of %v)", rec.Status, t, t.Statuses())
	}
	ts := s.now().UTC().Truncate(time.Second)
	if rec.Created.IsZero() {
		rec.Created = ts
	}
	if rec.Updated.IsZero() {
		rec.Updated = ts
	}
	rec.FilePath = path.Join(t.Dir(), id+".md")

	body := scaffold.Body(t, id)
	content := frontmatter.Render(rec.Fields(), body)
	rec.Checksum = checksum.Sum(content)

	if err := ix.Add(t, *rec); err != nil {
		return nil, err
	}
	if err := s.commit(ix, rec.FilePath, content); err != nil {
		return nil, err
	}

	s.mirrorUpsert(t, rec, body)
	s.logger.Info("record created",
		slog.String("type", string(t)),
		slog.String("id", rec.ID),
		slog.String("path", rec.FilePath))
	return rec, nil
}

// Update merges partial fields into an existing record and rewrites both
// index and markdown. The markdown body is passed through unchanged; only
// the frontmatter block is regenerated.
func (s *Service) Update(t models.RecordType, id string, partial map[string]any) (*models.Record, error) {
	ix, err := s.ensureFresh()
	if err != nil {
		return nil, err
	}

	existing := ix.Find(t, id)
	if existing == nil {
		return nil, apperr.NotFound(string(t), id)
	}
	if status, ok := partial["status"].(string); ok && !t.ValidStatus(status) {
		return nil, apperr.Validationf("status %q is not valid for %s (want one of %v)", status, t, t.Statuses())
	}

	data, err := s.store.Read(existing.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrIO, existing.FilePath, err)
	}
	_, body, err := frontmatter.Parse(data)
	if err != nil {
		return nil, apperr.Malformed(existing.FilePath, err)
	}

	rec, err := ix.Update(t, id, partial)
	if err != nil {
		return nil, err
	}
	if _, ok := partial["updated"]; !ok {
		rec.Updated = s.now().UTC().Truncate(time.Second)
	}

	content := frontmatter.Render(rec.Fields(), body)
	rec.Checksum = checksum.Sum(content)

	if err := s.commit(ix, rec.FilePath, content); err != nil {
		return nil, err
	}

	s.mirrorUpsert(t, rec, body)
	s.logger.Info("record updated",
		slog.String("type", string(t)),
		slog.String("id", rec.ID),
		slog.String("path", rec.FilePath))
	out := *rec
	return &out, nil
}

// commit persists the mutated index, then writes the markdown file. If the
// markdown write fails the persisted index is restored byte for byte and a
// consistency error is surfaced: the system never reports success while
// index and markdown diverge.
func (s *Service) commit(ix *index.Index, filePath string, content []byte) error {
	snapshot, existed, err := s.idx.Snapshot()
	if err != nil {
		return err
	}
	if err := s.idx.Save(ix); err != nil {
		return err
	}
	if err := s.store.Write(filePath, content); err != nil {
		if restoreErr := s.idx.Restore(snapshot, existed); restoreErr != nil {
			s.logger.Error("rollback failed, index may be inconsistent until next rebuild",
				slog.String("path", filePath),
				slog.String("error", restoreErr.Error()))
		}
		return apperr.Consistency(filePath, err)
	}

	// The file just written has an mtime newer than the saved LastBuilt.
	// Bump it so the next query does not mistake our own write for a
	// manual edit. A failure here only costs one spurious rebuild.
	ix.LastBuilt = s.now()
	if err := s.idx.Save(ix); err != nil {
		s.logger.Warn("post-write index save failed", slog.String("error", err.Error()))
	}
	return nil
}

// Archive moves every record of type t whose last update is older than the
// threshold into the archive tree and drops it from the live index. A
// threshold of zero days means "anything up to and including now"; it is
// never coalesced into a default.
func (s *Service) Archive(t models.RecordType, olderThanDays int) ([]models.Record, error) {
	if olderThanDays < 0 {
		return nil, apperr.Validationf("older-than days must be >= 0, got %d", olderThanDays)
	}
	ix, err := s.ensureFresh()
	if err != nil {
		return nil, err
	}

	cutoff := s.now().UTC().AddDate(0, 0, -olderThanDays)
	var candidates []models.Record
	for _, rec := range ix.Records(t) {
		if !rec.Updated.After(cutoff) {
			candidates = append(candidates, rec)
		}
	}

	var moved []models.Record
	for _, rec := range candidates {
		snapshot, existed, err := s.idx.Snapshot()
		if err != nil {
			return moved, err
		}
		ix.Remove(t, rec.ID)
		if err := s.idx.Save(ix); err != nil {
			return moved, err
		}
		dst := path.Join(ArchiveDir, rec.FilePath)
		if err := s.store.Move(rec.FilePath, dst); err != nil {
			if restoreErr := s.idx.Restore(snapshot, existed); restoreErr != nil {
				s.logger.Error("rollback failed after move error",
					slog.String("path", rec.FilePath),
					slog.String("error", restoreErr.Error()))
			}
			return moved, apperr.Consistency(rec.FilePath, err)
		}
		if s.search != nil {
			if err := s.search.Delete(rec.FilePath); err != nil {
				s.logger.Warn("search: delete failed", slog.String("path", rec.FilePath), slog.String("error", err.Error()))
			}
		}
		s.logger.Info("record archived",
			slog.String("type", string(t)),
			slog.String("id", rec.ID),
			slog.String("to", dst))
		moved = append(moved, rec)
	}
	return moved, nil
}

// Get returns a record and its markdown body after a freshness check.
func (s *Service) Get(t models.RecordType, id string) (*models.Record, string, error) {
	ix, err := s.ensureFresh()
	if err != nil {
		return nil, "", err
	}
	rec := ix.Find(t, id)
	if rec == nil {
		return nil, "", apperr.NotFound(string(t), id)
	}
	data, err := s.store.Read(rec.FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", apperr.ErrIO, rec.FilePath, err)
	}
	_, body, err := frontmatter.Parse(data)
	if err != nil {
		return nil, "", apperr.Malformed(rec.FilePath, err)
	}
	out := *rec
	return &out, body, nil
}

// Rebuild forces a full index reconstruction from the markdown tree and
// returns the record count (for one type when t is non-empty, total
// otherwise).
func (s *Service) Rebuild(t models.RecordType) (int, error) {
	ix, err := index.Rebuild(s.store, s.logger)
	if err != nil {
		return 0, err
	}
	if err := s.idx.Save(ix); err != nil {
		return 0, err
	}
	s.mirrorSync(ix)
	if t != "" {
		return len(ix.Records(t)), nil
	}
	return ix.Len(), nil
}

// Search runs a full-text query over the search mirror after a freshness
// check. typ narrows to one record type when non-empty.
func (s *Service) Search(query, typ string, limit int) ([]search.Result, error) {
	if s.search == nil {
		return nil, apperr.Validationf("search is disabled (no search database configured)")
	}
	if query == "" {
		return nil, apperr.Validationf("search query must not be empty")
	}
	if _, err := s.ensureFresh(); err != nil {
		return nil, err
	}
	return s.search.Search(query, typ, limit)
}

// resolveID extracts or derives the record id. Sessions default to a
// timestamp stem; plans and patterns must name their id explicitly.
func (s *Service) resolveID(t models.RecordType, fields map[string]any) (string, error) {
	id, _ := fields["id"].(string)
	if id == "" {
		if t != models.TypeSession {
			return "", apperr.Validationf("%s records require an explicit id", t)
		}
		id = s.now().UTC().Format("2006-01-02-150405")
	}
	if err := validation.Validate(id,
		validation.Required,
		validation.Match(idRe).Error("must be a lowercase slug (letters, digits, '.', '_', '-')"),
	); err != nil {
		return "", apperr.Validationf("id %q: %v", id, err)
	}
	return id, nil
}

// ensureFresh loads the index and reconciles it with the markdown tree:
// when any staleness trigger fires the index is rebuilt from scratch and
// persisted. Rebuilding here is maintenance, not mutation; it never
// changes a record's semantic content beyond what the files already say.
func (s *Service) ensureFresh() (*index.Index, error) {
	ix := s.idx.Load()
	files, err := index.ListTracked(s.store)
	if err != nil {
		return nil, fmt.Errorf("%w: staleness scan: %v", apperr.ErrIO, err)
	}
	verdict := index.CheckStale(files, ix)
	if verdict.State == index.Fresh {
		return ix, nil
	}

	s.logger.Info("index stale, rebuilding",
		slog.String("state", index.Rebuilding.String()),
		slog.Int("reasons", len(verdict.Reasons)),
		slog.String("first", verdict.Reasons[0]))
	rebuilt, err := index.Rebuild(s.store, s.logger)
	if err != nil {
		return nil, err
	}
	if err := s.idx.Save(rebuilt); err != nil {
		return nil, err
	}
	s.mirrorSync(rebuilt)
	return rebuilt, nil
}

func (s *Service) mirrorUpsert(t models.RecordType, rec *models.Record, body string) {
	if s.search == nil {
		return
	}
	err := s.search.Upsert(search.Entry{
		Path:    rec.FilePath,
		Type:    string(t),
		ID:      rec.ID,
		Status:  rec.Status,
		Topics:  rec.Topics,
		Body:    body,
		Updated: rec.Updated,
	})
	if err != nil {
		s.logger.Warn("search: upsert failed", slog.String("path", rec.FilePath), slog.String("error", err.Error()))
	}
}

func (s *Service) mirrorSync(ix *index.Index) {
	if s.search == nil {
		return
	}
	if err := search.Sync(s.search, s.store, ix, s.logger); err != nil {
		s.logger.Warn("search: sync failed", slog.String("error", err.Error()))
	}
}
