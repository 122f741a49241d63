package loopdetect

import "testing"

func TestDetector_RepeatedSnapshotTriggersLoop(t *testing.T) {
	d := New()
	snap1 := NewSnapshot(1, "Duplicate Test Module", map[string]string{"a.py": "print(1)\n"})
	snap2 := NewSnapshot(2, "Duplicate Test Module", map[string]string{"a.py": "print(1)\r\n"})

	if d.Observe(snap1) {
		t.Fatal("first observation should not be a loop")
	}
	if !d.Observe(snap2) {
		t.Fatal("identical normalized snapshot at a later iteration should be detected as a loop")
	}
}

func TestDetector_DifferingSnapshotNoLoop(t *testing.T) {
	d := New()
	snap1 := NewSnapshot(1, "fix a", map[string]string{"a.py": "x"})
	snap2 := NewSnapshot(2, "fix b", map[string]string{"a.py": "y"})
	if d.Observe(snap1) {
		t.Fatal("first observation should not be a loop")
	}
	if d.Observe(snap2) {
		t.Fatal("differing snapshot should not be a loop")
	}
}

func TestDetector_HallucinationStrategyShift(t *testing.T) {
	d := New()
	d.RecordHallucination("src/foo.py")
	if d.ShouldTriggerStrategyShift("src/foo.py") {
		t.Fatal("should not trigger after one hallucination")
	}
	d.RecordHallucination("src/foo.py")
	if !d.ShouldTriggerStrategyShift("src/foo.py") {
		t.Fatal("should trigger after two consecutive hallucinations")
	}
}

func TestDetector_HallucinationResetsOtherPaths(t *testing.T) {
	d := New()
	d.RecordHallucination("a.py")
	d.RecordHallucination("a.py")
	d.RecordHallucination("b.py")
	if d.ShouldTriggerStrategyShift("a.py") {
		t.Fatal("a.py counter should have been reset once b.py hallucinated")
	}
	if d.ShouldTriggerStrategyShift("b.py") {
		t.Fatal("b.py should need a second consecutive hallucination")
	}
}

func TestTriggerAutomatedRecovery_GlobsBasename(t *testing.T) {
	got := TriggerAutomatedRecovery("/repo/src/nested/foo.py")
	want := "**/foo.py"
	if got != want {
		t.Fatalf("TriggerAutomatedRecovery = %q, want %q", got, want)
	}
}
