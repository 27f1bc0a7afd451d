// Package index maintains the JSON metadata index derived from the
// markdown knowledge tree. The markdown files are canonical; the index is
// a rebuildable cache that must always be reproducible from the tree alone.
package index

import (
	"time"

	"github.com/arpa73/AIKnowSys-sub002/internal/apperr"
	"github.com/arpa73/AIKnowSys-sub002/internal/models"
)

// Index is the on-disk index document: one ordered record collection per
// type plus the timestamp of the last full build. Collections keep
// creation order.
type Index struct {
	LastBuilt time.Time       `json:"last_built"`
	Sessions  []models.Record `json:"sessions"`
	Plans     []models.Record `json:"plans"`
	Patterns  []models.Record `json:"patterns"`
}

// New returns an empty index.
func New() *Index {
	return &Index{}
}

func (ix *Index) collection(t models.RecordType) *[]models.Record {
	switch t {
	case models.TypeSession:
		return &ix.Sessions
	case models.TypePlan:
		return &ix.Plans
	case models.TypePattern:
		return &ix.Patterns
	}
	return nil
}

// Records returns the collection for t in creation order.
func (ix *Index) Records(t models.RecordType) []models.Record {
	c := ix.collection(t)
	if c == nil {
		return nil
	}
	return *c
}

// Len returns the total record count across all collections.
func (ix *Index) Len() int {
	return len(ix.Sessions) + len(ix.Plans) + len(ix.Patterns)
}

// Find returns a pointer into the collection for the record with the given
// id, or nil if absent.
func (ix *Index) Find(t models.RecordType, id string) *models.Record {
	c := ix.collection(t)
	if c == nil {
		return nil
	}
	for i := range *c {
		if (*c)[i].ID == id {
			return &(*c)[i]
		}
	}
	return nil
}

// Add appends a record to its collection. Both the id and the file path
// must be unique within the type.
func (ix *Index) Add(t models.RecordType, rec models.Record) error {
	c := ix.collection(t)
	if c == nil {
		return apperr.Validationf("unknown record type %q", t)
	}
	for i := range *c {
		if (*c)[i].ID == rec.ID {
			return apperr.Conflict(string(t), rec.ID)
		}
		if (*c)[i].FilePath == rec.FilePath {
			return apperr.Conflict(string(t), rec.FilePath)
		}
	}
	*c = append(*c, rec)
	return nil
}

// Update merges a partial field map into the record with the given id,
// preserving unspecified fields.
func (ix *Index) Update(t models.RecordType, id string, partial map[string]any) (*models.Record, error) {
	rec := ix.Find(t, id)
	if rec == nil {
		return nil, apperr.NotFound(string(t), id)
	}
	if err := rec.Apply(partial); err != nil {
		return nil, err
	}
	return rec, nil
}

// Remove drops the record with the given id and reports whether it existed.
func (ix *Index) Remove(t models.RecordType, id string) bool {
	c := ix.collection(t)
	if c == nil {
		return false
	}
	for i := range *c {
		if (*c)[i].ID == id {
			*c = append((*c)[:i], (*c)[i+1:]...)
			return true
		}
	}
	return false
}
