package models

import (
	"errors"
	"testing"
	"time"

	"github.com/arpa73/AIKnowSys-sub002/internal/apperr"
	"github.com/arpa73/AIKnowSys-sub002/internal/frontmatter"
)

func TestParseType(t *testing.T) {
	for _, valid := range []string{"session", "plan", "pattern"} {
		if _, err := ParseType(valid); err != nil {
			t.Errorf("ParseType(%q) = %v", valid, err)
		}
	}
	if _, err := ParseType("note"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("ParseType(note) = %v, want validation error", err)
	}
}

func TestStatuses_PerType(t *testing.T) {
	if !TypePlan.ValidStatus("CANCELLED") {
		t.Error("CANCELLED should be a plan status")
	}
	if TypeSession.ValidStatus("CANCELLED") {
		t.Error("CANCELLED should not be a session status")
	}
	if TypePlan.Statuses()[0] != "PLANNED" {
		t.Errorf("plan default status = %q, want PLANNED", TypePlan.Statuses()[0])
	}
}

func TestRecord_FrontmatterRoundTrip(t *testing.T) {
	created := time.Date(2025, 1, 20, 9, 30, 0, 0, time.UTC)
	rec := &Record{
		ID:       "2025-01-20-auth",
		Status:   "ACTIVE",
		Topics:   []string{"storage", "auth"},
		Created:  created,
		Updated:  created.Add(time.Hour),
		Author:   "jane",
		Priority: "high",
		Extra:    map[string]any{"reviewer": "bob"},
	}

	fields, body, err := frontmatter.Parse(frontmatter.Render(rec.Fields(), "Body\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "Body\n" {
		t.Errorf("body = %q", body)
	}

	got, err := FromFields(fields, "fallback")
	if err != nil {
		t.Fatalf("FromFields: %v", err)
	}
	if got.ID != rec.ID || got.Status != rec.Status || got.Author != rec.Author || got.Priority != rec.Priority {
		t.Errorf("scalars did not round-trip: got %+v", got)
	}
	if !got.Created.Equal(rec.Created) || !got.Updated.Equal(rec.Updated) {
		t.Errorf("timestamps did not round-trip: %v / %v", got.Created, got.Updated)
	}
	if len(got.Topics) != 2 || got.Topics[0] != "storage" || got.Topics[1] != "auth" {
		t.Errorf("topics = %v", got.Topics)
	}
	if got.Extra["reviewer"] != "bob" {
		t.Errorf("extra = %v, want reviewer preserved", got.Extra)
	}
}

func TestRecord_SessionFieldsRoundTrip(t *testing.T) {
	rec := &Record{
		ID:              "2025-02-01-120000",
		Status:          "COMPLETE",
		Created:         time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
		Updated:         time.Date(2025, 2, 1, 13, 0, 0, 0, time.UTC),
		DurationMinutes: 90,
		Phases:          []string{"explore", "implement", "verify"},
	}
	fields, _, err := frontmatter.Parse(frontmatter.Render(rec.Fields(), ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := FromFields(fields, "")
	if err != nil {
		t.Fatalf("FromFields: %v", err)
	}
	if got.DurationMinutes != 90 {
		t.Errorf("duration = %d, want 90", got.DurationMinutes)
	}
	if len(got.Phases) != 3 || got.Phases[2] != "verify" {
		t.Errorf("phases = %v", got.Phases)
	}
}

func TestFromFields_FallbackID(t *testing.T) {
	got, err := FromFields(map[string]any{"status": "PLANNED"}, "from-filename")
	if err != nil {
		t.Fatalf("FromFields: %v", err)
	}
	if got.ID != "from-filename" {
		t.Errorf("id = %q, want filename fallback", got.ID)
	}
}

func TestFromFields_UnknownFieldsPreserved(t *testing.T) {
	got, err := FromFields(map[string]any{
		"status":     "PROVEN",
		"confidence": "high",
		"links":      []any{"a", "b"},
	}, "p")
	if err != nil {
		t.Fatalf("FromFields: %v", err)
	}
	if got.Extra["confidence"] != "high" {
		t.Errorf("extra confidence missing: %v", got.Extra)
	}
	if _, ok := got.Extra["links"]; !ok {
		t.Errorf("extra links missing: %v", got.Extra)
	}
}

func TestFromFields_BadTypes(t *testing.T) {
	if _, err := FromFields(map[string]any{"status": 7}, "x"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("numeric status should fail validation, got %v", err)
	}
	if _, err := FromFields(map[string]any{"created": "not-a-date"}, "x"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad timestamp should fail validation, got %v", err)
	}
}

func TestApply_MergesAndPreserves(t *testing.T) {
	rec := &Record{ID: "p", Status: "PLANNED", Topics: []string{"storage"}, Author: "jane"}
	if err := rec.Apply(map[string]any{"status": "ACTIVE"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.Status != "ACTIVE" {
		t.Errorf("status = %q, want ACTIVE", rec.Status)
	}
	if rec.Author != "jane" || len(rec.Topics) != 1 {
		t.Error("unspecified fields were not preserved")
	}
}

func TestApply_ImmutableFields(t *testing.T) {
	rec := &Record{ID: "p"}
	if err := rec.Apply(map[string]any{"id": "other"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("id should be immutable, got %v", err)
	}
	if err := rec.Apply(map[string]any{"created": "2025-01-01"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("created should be immutable, got %v", err)
	}
}

func TestApply_MCPNumbers(t *testing.T) {
	rec := &Record{ID: "s"}
	// JSON numbers arrive as float64 through the tool-call layer.
	if err := rec.Apply(map[string]any{"duration_minutes": float64(45)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rec.DurationMinutes != 45 {
		t.Errorf("duration = %d, want 45", rec.DurationMinutes)
	}
}
