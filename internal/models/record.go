// Package models defines the record types mirrored between the JSON index
// and the markdown knowledge tree.
package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/arpa73/AIKnowSys-sub002/internal/apperr"
	"github.com/arpa73/AIKnowSys-sub002/internal/frontmatter"
)

// RecordType discriminates the three record collections.
type RecordType string

const (
	TypeSession RecordType = "session"
	TypePlan    RecordType = "plan"
	TypePattern RecordType = "pattern"
)

// Types returns every known record type in collection order.
func Types() []RecordType {
	return []RecordType{TypeSession, TypePlan, TypePattern}
}

// ParseType validates a user-supplied type string.
func ParseType(s string) (RecordType, error) {
	t := RecordType(s)
	switch t {
	case TypeSession, TypePlan, TypePattern:
		return t, nil
	}
	return "", apperr.Validationf("unknown record type %q (want session, plan, or pattern)", s)
}

// Dir returns the knowledge-tree subdirectory holding this type's files.
func (t RecordType) Dir() string {
	switch t {
	case TypeSession:
		return "sessions"
	case TypePlan:
		return "plans"
	case TypePattern:
		return "patterns"
	}
	return string(t)
}

// Statuses returns the allowed lifecycle states for this type. The first
// entry is the default for newly created records.
func (t RecordType) Statuses() []string {
	switch t {
	case TypeSession:
		return []string{"IN_PROGRESS", "COMPLETE", "ABANDONED"}
	case TypePlan:
		return []string{"PLANNED", "ACTIVE", "PAUSED", "COMPLETE", "CANCELLED"}
	case TypePattern:
		return []string{"CANDIDATE", "PROVEN", "DEPRECATED"}
	}
	return nil
}

// ValidStatus reports whether s is an allowed status for this type.
func (t RecordType) ValidStatus(s string) bool {
	for _, allowed := range t.Statuses() {
		if s == allowed {
			return true
		}
	}
	return false
}

// TimeLayout is the timestamp format used in frontmatter and the index.
const TimeLayout = time.RFC3339

// Record is the metadata entity mirrored between the index and a markdown
// file. Machine-owned fields live in the frontmatter block; FilePath and
// Checksum are index-side bookkeeping derived from the file itself. Extra
// holds unrecognized frontmatter fields, preserved verbatim across
// read-modify-write cycles.
type Record struct {
	ID      string    `json:"id"`
	Status  string    `json:"status"`
	Topics  []string  `json:"topics,omitempty"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	// Plan fields.
	Author   string `json:"author,omitempty"`
	Priority string `json:"priority,omitempty"`

	// Session fields.
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	Phases          []string `json:"phases,omitempty"`

	FilePath string         `json:"file_path"`
	Checksum string         `json:"checksum,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Machine-owned frontmatter keys, in canonical render order.
var knownKeys = []string{"id", "status", "topics", "created", "updated", "author", "priority", "duration_minutes", "phases"}

func isKnownKey(k string) bool {
	for _, known := range knownKeys {
		if k == known {
			return true
		}
	}
	return false
}

// Fields returns the record's frontmatter fields in canonical order:
// known fields first (fixed sequence, empty ones omitted), then Extra
// fields sorted by key. The ordering is deterministic so regenerated
// files diff cleanly.
func (r *Record) Fields() []frontmatter.Field {
	out := []frontmatter.Field{
		{Key: "id", Value: r.ID},
		{Key: "status", Value: r.Status},
	}
	if len(r.Topics) > 0 {
		out = append(out, frontmatter.Field{Key: "topics", Value: r.Topics})
	}
	out = append(out,
		frontmatter.Field{Key: "created", Value: r.Created.UTC().Format(TimeLayout)},
		frontmatter.Field{Key: "updated", Value: r.Updated.UTC().Format(TimeLayout)},
	)
	if r.Author != "" {
		out = append(out, frontmatter.Field{Key: "author", Value: r.Author})
	}
	if r.Priority != "" {
		out = append(out, frontmatter.Field{Key: "priority", Value: r.Priority})
	}
	if r.DurationMinutes != 0 {
		out = append(out, frontmatter.Field{Key: "duration_minutes", Value: r.DurationMinutes})
	}
	if len(r.Phases) > 0 {
		out = append(out, frontmatter.Field{Key: "phases", Value: r.Phases})
	}

	extraKeys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		out = append(out, frontmatter.Field{Key: k, Value: r.Extra[k]})
	}
	return out
}

// FromFields reconstructs a record from parsed frontmatter. Unrecognized
// fields land in Extra unchanged. fallbackID is used when the frontmatter
// carries no id (manually created files are identified by filename stem).
func FromFields(fields map[string]any, fallbackID string) (*Record, error) {
	r := &Record{ID: fallbackID}
	for k, v := range fields {
		var err error
		switch k {
		case "id":
			r.ID, err = asString(k, v)
		case "status":
			r.Status, err = asString(k, v)
		case "topics":
			r.Topics, err = asStringSlice(k, v)
		case "created":
			r.Created, err = asTime(k, v)
		case "updated":
			r.Updated, err = asTime(k, v)
		case "author":
			r.Author, err = asString(k, v)
		case "priority":
			r.Priority, err = asString(k, v)
		case "duration_minutes":
			r.DurationMinutes, err = asInt(k, v)
		case "phases":
			r.Phases, err = asStringSlice(k, v)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[k] = v
		}
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Apply merges a partial field map into the record, preserving fields the
// map does not mention. Unknown keys are stored in Extra.
func (r *Record) Apply(partial map[string]any) error {
	for k, v := range partial {
		var err error
		switch k {
		case "id":
			return apperr.Validationf("field %q is immutable", k)
		case "created":
			return apperr.Validationf("field %q is immutable", k)
		case "status":
			r.Status, err = asString(k, v)
		case "topics":
			r.Topics, err = asStringSlice(k, v)
		case "updated":
			r.Updated, err = asTime(k, v)
		case "author":
			r.Author, err = asString(k, v)
		case "priority":
			r.Priority, err = asString(k, v)
		case "duration_minutes":
			r.DurationMinutes, err = asInt(k, v)
		case "phases":
			r.Phases, err = asStringSlice(k, v)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[k] = v
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func asString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", apperr.Validationf("field %q: want string, got %T", key, v)
	}
	return s, nil
}

func asStringSlice(key string, v any) ([]string, error) {
	switch vv := v.(type) {
	case []string:
		return vv, nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, apperr.Validationf("field %q: want list of strings, got %T element", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		// Single scalar promoted to a one-element list.
		return []string{vv}, nil
	}
	return nil, apperr.Validationf("field %q: want list of strings, got %T", key, v)
}

func asInt(key string, v any) (int, error) {
	switch vv := v.(type) {
	case int:
		return vv, nil
	case int64:
		return int(vv), nil
	case float64:
		// JSON numbers arrive as float64 through the MCP layer.
		return int(vv), nil
	}
	return 0, apperr.Validationf("field %q: want integer, got %T", key, v)
}

func asTime(key string, v any) (time.Time, error) {
	// yaml.v3 resolves unquoted ISO 8601 scalars straight to time.Time.
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, apperr.Validationf("field %q: want timestamp string, got %T", key, v)
	}
	for _, layout := range []string{TimeLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validationf("field %q: unparsable timestamp %q", key, s)
}

// HasTopic reports whether the record carries the given topic tag.
func (r *Record) HasTopic(topic string) bool {
	for _, t := range r.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

func (r *Record) String() string {
	return fmt.Sprintf("%s [%s]", r.ID, r.Status)
}
