package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arpa73/AIKnowSys-sub002/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), ".index.json"), quietLogger())
}

func TestLoad_AbsentFileIsEmptyIndex(t *testing.T) {
	st := newTestStore(t)
	ix := st.Load()
	if ix.Len() != 0 {
		t.Errorf("expected empty index, got %d records", ix.Len())
	}
}

func TestLoad_CorruptFileIsEmptyIndex(t *testing.T) {
	st := newTestStore(t)
	if err := os.WriteFile(st.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	ix := st.Load()
	if ix.Len() != 0 {
		t.Errorf("expected empty index on corruption, got %d records", ix.Len())
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ix := New()
	ix.LastBuilt = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := ix.Add(models.TypePlan, models.Record{ID: "p1", Status: "PLANNED", FilePath: "plans/p1.md"}); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(ix); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := st.Load()
	if !got.LastBuilt.Equal(ix.LastBuilt) {
		t.Errorf("lastBuilt = %v, want %v", got.LastBuilt, ix.LastBuilt)
	}
	plans := got.Records(models.TypePlan)
	if len(plans) != 1 || plans[0].ID != "p1" {
		t.Errorf("plans = %v", plans)
	}
}

func TestSnapshotRestore(t *testing.T) {
	st := newTestStore(t)
	ix := New()
	_ = ix.Add(models.TypePlan, models.Record{ID: "p1", FilePath: "plans/p1.md"})
	if err := st.Save(ix); err != nil {
		t.Fatal(err)
	}

	snapshot, existed, err := st.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !existed {
		t.Fatal("snapshot should report an existing file")
	}

	_ = ix.Add(models.TypePlan, models.Record{ID: "p2", FilePath: "plans/p2.md"})
	if err := st.Save(ix); err != nil {
		t.Fatal(err)
	}

	if err := st.Restore(snapshot, existed); err != nil {
		t.Fatalf("restore: %v", err)
	}
	after, err := os.ReadFile(st.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(snapshot) {
		t.Error("restored index is not byte-identical to the snapshot")
	}
}

func TestRestore_NoPriorFileRemovesIndex(t *testing.T) {
	st := newTestStore(t)
	snapshot, existed, err := st.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if existed {
		t.Fatal("expected no index file yet")
	}

	if err := st.Save(New()); err != nil {
		t.Fatal(err)
	}
	if err := st.Restore(snapshot, existed); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := os.Stat(st.Path()); !os.IsNotExist(err) {
		t.Error("index file should be gone after restoring an empty snapshot")
	}
}

func TestIndex_AddRejectsDuplicates(t *testing.T) {
	ix := New()
	if err := ix.Add(models.TypePlan, models.Record{ID: "p1", FilePath: "plans/p1.md"}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Add(models.TypePlan, models.Record{ID: "p1", FilePath: "plans/other.md"}); err == nil {
		t.Error("duplicate id accepted")
	}
	if err := ix.Add(models.TypePlan, models.Record{ID: "p2", FilePath: "plans/p1.md"}); err == nil {
		t.Error("duplicate file path accepted")
	}
	// Same id in another type collection is fine.
	if err := ix.Add(models.TypePattern, models.Record{ID: "p1", FilePath: "patterns/p1.md"}); err != nil {
		t.Errorf("cross-type id should be allowed: %v", err)
	}
}

func TestIndex_UpdateUnknownID(t *testing.T) {
	ix := New()
	if _, err := ix.Update(models.TypeSession, "nope", map[string]any{"status": "COMPLETE"}); err == nil {
		t.Error("expected not-found error")
	}
}
