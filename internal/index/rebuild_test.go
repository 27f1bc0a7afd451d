package index

import (
	"encoding/json"
	"testing"

	"github.com/arpa73/AIKnowSys-sub002/internal/models"
)

const planDoc = `---
id: auth-refactor
status: ACTIVE
topics:
  - auth
created: 2025-01-20T09:30:00Z
updated: 2025-01-21T14:00:00Z
---

# Plan
`

func TestRebuild_Soundness(t *testing.T) {
	_, store := testRoot(t)
	_ = store.Write("plans/auth-refactor.md", []byte(planDoc))
	_ = store.Write("sessions/2025-01-20-100000.md", []byte("---\nstatus: COMPLETE\n---\nlog\n"))
	_ = store.Write("plans/broken.md", []byte("---\nno closing fence\n"))

	ix, err := Rebuild(store, quietLogger())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	plans := ix.Records(models.TypePlan)
	if len(plans) != 1 {
		t.Fatalf("plans = %d, want 1 (malformed file must be skipped)", len(plans))
	}
	if plans[0].ID != "auth-refactor" || plans[0].Status != "ACTIVE" {
		t.Errorf("plan = %+v", plans[0])
	}
	if plans[0].Checksum == "" {
		t.Error("rebuild should record a content checksum")
	}

	sessions := ix.Records(models.TypeSession)
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	// No id in frontmatter: filename stem is the fallback.
	if sessions[0].ID != "2025-01-20-100000" {
		t.Errorf("session id = %q", sessions[0].ID)
	}
}

func TestRebuild_Idempotent(t *testing.T) {
	_, store := testRoot(t)
	_ = store.Write("plans/auth-refactor.md", []byte(planDoc))
	_ = store.Write("patterns/retry-with-backoff.md", []byte("---\nid: retry-with-backoff\nstatus: PROVEN\n---\nbody\n"))

	first, err := Rebuild(store, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	second, err := Rebuild(store, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("rebuild output differs:\n%s\n%s", a, b)
	}
}

func TestRebuild_ManualDeletionDropsRecord(t *testing.T) {
	_, store := testRoot(t)
	_ = store.Write("plans/a.md", []byte("---\nid: a\nstatus: PLANNED\n---\n"))
	_ = store.Write("plans/b.md", []byte("---\nid: b\nstatus: PLANNED\n---\n"))

	ix, err := Rebuild(store, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(ix.Records(models.TypePlan)) != 2 {
		t.Fatal("setup: want 2 plans")
	}

	if err := store.Delete("plans/a.md"); err != nil {
		t.Fatal(err)
	}
	ix, err = Rebuild(store, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	plans := ix.Records(models.TypePlan)
	if len(plans) != 1 || plans[0].ID != "b" {
		t.Errorf("plans after deletion = %v", plans)
	}
}

func TestRebuild_DuplicateIDSkipped(t *testing.T) {
	_, store := testRoot(t)
	_ = store.Write("plans/a.md", []byte("---\nid: same\nstatus: PLANNED\n---\n"))
	_ = store.Write("plans/b.md", []byte("---\nid: same\nstatus: PLANNED\n---\n"))

	ix, err := Rebuild(store, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(ix.Records(models.TypePlan)) != 1 {
		t.Errorf("want exactly one record for a duplicated id, got %d", len(ix.Records(models.TypePlan)))
	}
}

func TestStem(t *testing.T) {
	if got := Stem("plans/auth-refactor.md"); got != "auth-refactor" {
		t.Errorf("stem = %q", got)
	}
	if got := Stem("sessions/nested/2025-01-01-000000.md"); got != "2025-01-01-000000" {
		t.Errorf("stem = %q", got)
	}
}
