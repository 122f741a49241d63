package depgraph

import (
	"testing"

	"github.com/repairloop/agent/internal/knowledge"
)

func newTestTracker(t *testing.T) (*Tracker, *knowledge.Store) {
	t.Helper()
	store, err := knowledge.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	for _, id := range []string{"e1", "e2", "e3"} {
		if err := store.UpsertErrorFact(knowledge.ErrorFact{
			ID: id, RunID: "run1", Summary: id, FilePath: "f.py",
			FixAction: "edit", Status: knowledge.ErrorOpen,
		}); err != nil {
			t.Fatal(err)
		}
	}
	return New(store), store
}

func TestRecordErrorDependency_RejectsSelfLoop(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.RecordErrorDependency("e1", "e1", RelationBlocks, ""); err == nil {
		t.Fatal("expected self-loop rejection")
	}
}

func TestRecordErrorDependency_Idempotent(t *testing.T) {
	tr, store := newTestTracker(t)
	if err := tr.RecordErrorDependency("e1", "e2", RelationBlocks, ""); err != nil {
		t.Fatal(err)
	}
	if err := tr.RecordErrorDependency("e1", "e2", RelationBlocks, ""); err != nil {
		t.Fatal(err)
	}
	edges, err := store.ListErrorDependencies()
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 {
		t.Fatalf("edges = %d, want 1 (idempotent)", len(edges))
	}
}

func TestRecordErrorDependency_PersistsAcrossTrackerInstances(t *testing.T) {
	tr, store := newTestTracker(t)
	if err := tr.RecordErrorDependency("e1", "e2", RelationBlocks, ""); err != nil {
		t.Fatal(err)
	}

	// A second Tracker instance backed by the same store should see the
	// edge recorded by the first — dependency edges live in the store,
	// not in per-instance memory.
	tr2 := New(store)
	blocked, err := tr2.GetBlockedErrors()
	if err != nil {
		t.Fatal(err)
	}
	if len(blocked) != 1 || blocked[0] != "e1" {
		t.Fatalf("GetBlockedErrors from a fresh Tracker = %v, want [e1]", blocked)
	}
}

func TestBlocksSetsSourceBlocked(t *testing.T) {
	tr, store := newTestTracker(t)
	if err := tr.RecordErrorDependency("e1", "e2", RelationBlocks, ""); err != nil {
		t.Fatal(err)
	}
	f, err := store.GetErrorFact("e1")
	if err != nil {
		t.Fatal(err)
	}
	if f.Status != knowledge.ErrorBlocked {
		t.Fatalf("status = %v, want blocked", f.Status)
	}

	blocked, err := tr.GetBlockedErrors()
	if err != nil {
		t.Fatal(err)
	}
	if len(blocked) != 1 || blocked[0] != "e1" {
		t.Fatalf("GetBlockedErrors = %v, want [e1]", blocked)
	}
}

func TestMarkErrorResolved_ReopensOnlyBlockedDependents(t *testing.T) {
	tr, store := newTestTracker(t)
	if err := tr.RecordErrorDependency("e1", "e2", RelationBlocks, ""); err != nil {
		t.Fatal(err)
	}
	if err := tr.RecordErrorDependency("e1", "e3", RelationBlocks, ""); err != nil {
		t.Fatal(err)
	}

	if err := tr.MarkErrorResolved("e2", ""); err != nil {
		t.Fatal(err)
	}
	f, _ := store.GetErrorFact("e1")
	if f.Status != knowledge.ErrorBlocked {
		t.Fatalf("e1 should remain blocked (still blocked by e3), got %v", f.Status)
	}

	if err := tr.MarkErrorResolved("e3", ""); err != nil {
		t.Fatal(err)
	}
	f, _ = store.GetErrorFact("e1")
	if f.Status != knowledge.ErrorOpen {
		t.Fatalf("e1 should reopen once all blockers resolved, got %v", f.Status)
	}
}

func TestGetReadyErrors_ExcludesBlocked(t *testing.T) {
	tr, _ := newTestTracker(t)
	if err := tr.RecordErrorDependency("e1", "e2", RelationBlocks, ""); err != nil {
		t.Fatal(err)
	}
	ready, err := tr.GetReadyErrors("run1", []string{"e1", "e2", "e3"})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range ready {
		if id == "e1" {
			t.Fatal("e1 is blocked and should not be ready")
		}
	}
}
