package frontmatter

import (
	"errors"
	"strings"
	"testing"

	"github.com/arpa73/AIKnowSys-sub002/internal/apperr"
)

func TestParse_FieldsAndBody(t *testing.T) {
	input := []byte("---\nid: my-plan\nstatus: ACTIVE\ntopics:\n  - storage\n  - auth\n---\n\n# My plan\nBody text.\n")
	fields, body, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields["id"] != "my-plan" {
		t.Errorf("id = %v, want my-plan", fields["id"])
	}
	if fields["status"] != "ACTIVE" {
		t.Errorf("status = %v, want ACTIVE", fields["status"])
	}
	topics, ok := fields["topics"].([]any)
	if !ok || len(topics) != 2 || topics[0] != "storage" {
		t.Errorf("topics = %v, want [storage auth]", fields["topics"])
	}
	if body != "# My plan\nBody text.\n" {
		t.Errorf("body = %q", body)
	}
}

func TestParse_NoFrontmatterIsNotAnError(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	fields, body, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 0 {
		t.Errorf("expected empty fields, got %v", fields)
	}
	if body != string(input) {
		t.Errorf("body = %q, want full content", body)
	}
}

func TestParse_MissingClosingDelimiter(t *testing.T) {
	input := []byte("---\nid: broken\nstatus: ACTIVE\n\nno closing fence\n")
	_, _, err := Parse(input)
	if !errors.Is(err, apperr.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	_, _, err := Parse(input)
	if !errors.Is(err, apperr.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestParse_EmptyBlock(t *testing.T) {
	fields, body, err := Parse([]byte("---\n---\nBody only.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 0 {
		t.Errorf("fields = %v, want empty", fields)
	}
	if body != "Body only.\n" {
		t.Errorf("body = %q", body)
	}
}

func TestRender_Deterministic(t *testing.T) {
	fields := []Field{
		{Key: "id", Value: "p1"},
		{Key: "status", Value: "PLANNED"},
		{Key: "topics", Value: []string{"a", "b"}},
	}
	first := Render(fields, "Body\n")
	second := Render(fields, "Body\n")
	if string(first) != string(second) {
		t.Error("render output differs between runs")
	}
	want := "---\nid: p1\nstatus: PLANNED\ntopics:\n  - a\n  - b\n---\n\nBody\n"
	if string(first) != want {
		t.Errorf("rendered = %q, want %q", first, want)
	}
}

func TestRenderParse_RoundTrip(t *testing.T) {
	fields := []Field{
		{Key: "id", Value: "2025-01-20-auth"},
		{Key: "status", Value: "IN_PROGRESS"},
		{Key: "topics", Value: []string{"storage", "needs quoting: yes"}},
		{Key: "duration_minutes", Value: 90},
		{Key: "note", Value: "contains: colon"},
	}
	body := "# Heading\n\nProse with --- inline.\n"
	parsed, gotBody, err := Parse(Render(fields, body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody != body {
		t.Errorf("body = %q, want %q", gotBody, body)
	}
	if parsed["id"] != "2025-01-20-auth" || parsed["status"] != "IN_PROGRESS" {
		t.Errorf("scalars did not round-trip: %v", parsed)
	}
	if parsed["duration_minutes"] != 90 {
		t.Errorf("duration_minutes = %v (%T), want 90", parsed["duration_minutes"], parsed["duration_minutes"])
	}
	if parsed["note"] != "contains: colon" {
		t.Errorf("note = %v, want %q", parsed["note"], "contains: colon")
	}
	topics, _ := parsed["topics"].([]any)
	if len(topics) != 2 || topics[1] != "needs quoting: yes" {
		t.Errorf("topics = %v", parsed["topics"])
	}
}

func TestRenderParse_StructuredListRoundTrip(t *testing.T) {
	input := []byte("---\nid: p1\nsteps:\n  - name: design\n    done: true\n  - name: implement\n    done: false\n---\n\nBody\n")
	fields, body, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A read-modify-write cycle must carry the list of maps through intact.
	reparsed, gotBody, err := Parse(Render([]Field{
		{Key: "id", Value: fields["id"]},
		{Key: "steps", Value: fields["steps"]},
	}, body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody != body {
		t.Errorf("body = %q, want %q", gotBody, body)
	}

	steps, ok := reparsed["steps"].([]any)
	if !ok || len(steps) != 2 {
		t.Fatalf("steps = %v (%T), want 2-element list", reparsed["steps"], reparsed["steps"])
	}
	first, ok := steps[0].(map[string]any)
	if !ok {
		t.Fatalf("steps[0] = %v (%T), want map", steps[0], steps[0])
	}
	if first["name"] != "design" || first["done"] != true {
		t.Errorf("steps[0] = %v", first)
	}
}

func TestRenderParse_NumberListKeepsTypes(t *testing.T) {
	parsed, _, err := Parse(Render([]Field{
		{Key: "nums", Value: []any{1, 2}},
	}, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nums, _ := parsed["nums"].([]any)
	if len(nums) != 2 {
		t.Fatalf("nums = %v", parsed["nums"])
	}
	if nums[0] != 1 || nums[1] != 2 {
		t.Errorf("nums = %v (%T, %T), want ints", nums, nums[0], nums[1])
	}
}

func TestParse_CRLFLineEndings(t *testing.T) {
	input := []byte("---\r\nid: windows-edit\r\nstatus: ACTIVE\r\n---\r\n\r\nBody line.\r\n")
	fields, body, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields["id"] != "windows-edit" {
		t.Errorf("id = %v, want windows-edit", fields["id"])
	}
	if fields["status"] != "ACTIVE" {
		t.Errorf("status = %v, want ACTIVE", fields["status"])
	}
	if body != "Body line.\n" {
		t.Errorf("body = %q", body)
	}
}

func TestRender_MultilineString(t *testing.T) {
	fields := []Field{{Key: "summary", Value: "line one\nline two"}}
	out := Render(fields, "")
	parsed, _, err := Parse(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed["summary"] != "line one\nline two" {
		t.Errorf("summary = %q", parsed["summary"])
	}
	if strings.Contains(strings.SplitN(string(out), "\n", 2)[1], "summary: line one") {
		t.Error("multiline value rendered inline")
	}
}
