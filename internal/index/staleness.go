package index

import (
	"fmt"

	"github.com/arpa73/AIKnowSys-sub002/internal/models"
	"github.com/arpa73/AIKnowSys-sub002/internal/storage"
)

// State is the freshness state of the index relative to the knowledge tree.
type State int

const (
	Fresh State = iota
	Stale
	Rebuilding
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Rebuilding:
		return "rebuilding"
	}
	return "unknown"
}

// Verdict is the result of a staleness check. Reasons names each tracked
// discrepancy so callers can log why a rebuild was triggered.
type Verdict struct {
	State   State
	Reasons []string
}

// CheckStale compares tracked file metadata against the index. The index
// is stale when a file was modified after the last build, when a file
// exists with no corresponding record (manual creation), or when a record
// points at a file that is gone (manual deletion). It is a pure function
// over the listings, so tests can feed it synthetic metadata.
func CheckStale(files []storage.FileInfo, ix *Index) Verdict {
	var reasons []string

	tracked := make(map[string]struct{}, ix.Len())
	for _, t := range models.Types() {
		for _, rec := range ix.Records(t) {
			tracked[rec.FilePath] = struct{}{}
		}
	}

	onDisk := make(map[string]struct{}, len(files))
	for _, f := range files {
		onDisk[f.Path] = struct{}{}
		if _, ok := tracked[f.Path]; !ok {
			reasons = append(reasons, fmt.Sprintf("untracked file %s", f.Path))
			continue
		}
		if f.ModTime.After(ix.LastBuilt) {
			reasons = append(reasons, fmt.Sprintf("%s modified after last build", f.Path))
		}
	}

	for p := range tracked {
		if _, ok := onDisk[p]; !ok {
			reasons = append(reasons, fmt.Sprintf("record file missing %s", p))
		}
	}

	if len(reasons) > 0 {
		return Verdict{State: Stale, Reasons: reasons}
	}
	return Verdict{State: Fresh}
}

// ListTracked returns metadata for every markdown file under the per-type
// directories, in a single flat listing.
func ListTracked(store storage.Provider) ([]storage.FileInfo, error) {
	var out []storage.FileInfo
	for _, t := range models.Types() {
		files, err := store.List(t.Dir())
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}
