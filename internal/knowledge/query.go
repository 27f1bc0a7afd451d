package knowledge

import (
	"sort"
	"time"

	"github.com/arpa73/AIKnowSys-sub002/internal/models"
)

// Filter describes the read-only predicates a query applies. Zero values
// mean "no constraint". Topic matching is intersection: a record matches
// when it carries at least one of the requested topics.
type Filter struct {
	Status      string
	Topics      []string
	Since       time.Time // inclusive lower bound on Created
	Until       time.Time // inclusive upper bound on Created
	NewestFirst bool      // sort by Created descending instead of creation order
}

func (f Filter) matches(rec *models.Record) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if !f.Since.IsZero() && rec.Created.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && rec.Created.After(f.Until) {
		return false
	}
	if len(f.Topics) > 0 {
		found := false
		for _, topic := range f.Topics {
			if rec.HasTopic(topic) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Query ensures the index is fresh, then returns the records of type t
// matching the filter. Results keep the index's creation order unless
// NewestFirst is set. Queries never mutate record content; a staleness
// rebuild may run as a side effect, but that is maintenance only.
func (s *Service) Query(t models.RecordType, f Filter) ([]models.Record, error) {
	ix, err := s.ensureFresh()
	if err != nil {
		return nil, err
	}

	out := []models.Record{}
	for _, rec := range ix.Records(t) {
		if f.matches(&rec) {
			out = append(out, rec)
		}
	}
	if f.NewestFirst {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Created.After(out[j].Created)
		})
	}
	return out, nil
}
