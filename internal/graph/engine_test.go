package graph

import (
	"context"
	"testing"
)

type fakeNode struct {
	name Name
	run  func(ctx context.Context, s *GraphState) (StatePatch, error)
}

func (f fakeNode) Name() Name { return f.name }
func (f fakeNode) Run(ctx context.Context, s *GraphState) (StatePatch, error) {
	return f.run(ctx, s)
}

func TestEngine_HappyPathOneIteration(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fakeNode{name: NodeAnalysis, run: func(ctx context.Context, s *GraphState) (StatePatch, error) {
		return StatePatch{Next: NodePlanning}, nil
	}})
	reg.Register(fakeNode{name: NodePlanning, run: func(ctx context.Context, s *GraphState) (StatePatch, error) {
		return StatePatch{Next: NodeExecution}, nil
	}})
	reg.Register(fakeNode{name: NodeExecution, run: func(ctx context.Context, s *GraphState) (StatePatch, error) {
		path := "src/calc.py"
		return StatePatch{
			Next:         NodeVerification,
			FilesSet:     map[string]*FileChange{path: {Path: path, Status: FileModified}},
			ReleasePaths: []string{path},
		}, nil
	}})
	reg.Register(fakeNode{name: NodeVerification, run: func(ctx context.Context, s *GraphState) (StatePatch, error) {
		return StatePatch{Next: NodeSuccess}, nil
	}})

	var seen []Name
	eng := NewEngine(reg, func(snap Snapshot) { seen = append(seen, snap.Node) })

	state := NewGraphState("Error: Division by zero", "", 5, false)
	state.ReservePath("src/calc.py")

	outcome := eng.Run(context.Background(), state)

	if outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", outcome)
	}
	if state.Status != StatusSuccess {
		t.Fatalf("status = %v, want success", state.Status)
	}
	if len(state.FileReservations) != 0 {
		t.Fatalf("fileReservations = %v, want empty", state.FileReservations)
	}
	if seen[len(seen)-1] != NodeSuccess {
		t.Fatalf("final observed node = %v, want SUCCESS", seen[len(seen)-1])
	}
}

func TestEngine_MaxIterationFailure(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fakeNode{name: NodeAnalysis, run: func(ctx context.Context, s *GraphState) (StatePatch, error) {
		return StatePatch{Next: NodePlanning}, nil
	}})
	reg.Register(fakeNode{name: NodePlanning, run: func(ctx context.Context, s *GraphState) (StatePatch, error) {
		return StatePatch{Next: NodeExecution}, nil
	}})
	reg.Register(fakeNode{name: NodeExecution, run: func(ctx context.Context, s *GraphState) (StatePatch, error) {
		return StatePatch{Next: NodeVerification}, nil
	}})
	verifyCalls := 0
	reg.Register(fakeNode{name: NodeVerification, run: func(ctx context.Context, s *GraphState) (StatePatch, error) {
		verifyCalls++
		return StatePatch{Next: NodeAnalysis, AppendFeedback: []string{"reproduction exit 1"}}, nil
	}})

	eng := NewEngine(reg, nil)
	state := NewGraphState("boom", "", 5, true) // low priority caps at 3
	outcome := eng.Run(context.Background(), state)

	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", outcome)
	}
	if verifyCalls != 3 {
		t.Fatalf("verification calls = %d, want 3", verifyCalls)
	}
	if state.Iteration != 3 {
		t.Fatalf("iteration = %d, want 3", state.Iteration)
	}
}

func TestEngine_LowPriorityClassificationLowersIterationCeilingDynamically(t *testing.T) {
	reg := NewRegistry()
	analysisCalls := 0
	reg.Register(fakeNode{name: NodeAnalysis, run: func(ctx context.Context, s *GraphState) (StatePatch, error) {
		analysisCalls++
		patch := StatePatch{Next: NodePlanning}
		if analysisCalls == 1 {
			// First classification comes back low-priority; the engine
			// should tighten the ceiling even though NewGraphState was
			// constructed with the default (non-low-priority) budget.
			cap := LowPriorityMaxIterations
			patch.MaxIterations = &cap
		}
		return patch, nil
	}})
	reg.Register(fakeNode{name: NodePlanning, run: func(ctx context.Context, s *GraphState) (StatePatch, error) {
		return StatePatch{Next: NodeExecution}, nil
	}})
	reg.Register(fakeNode{name: NodeExecution, run: func(ctx context.Context, s *GraphState) (StatePatch, error) {
		return StatePatch{Next: NodeVerification}, nil
	}})
	verifyCalls := 0
	reg.Register(fakeNode{name: NodeVerification, run: func(ctx context.Context, s *GraphState) (StatePatch, error) {
		verifyCalls++
		return StatePatch{Next: NodeAnalysis, AppendFeedback: []string{"reproduction exit 1"}}, nil
	}})

	eng := NewEngine(reg, nil)
	state := NewGraphState("boom", "", 5, false) // constructed with the full 5-iteration budget
	outcome := eng.Run(context.Background(), state)

	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", outcome)
	}
	if state.MaxIterations != LowPriorityMaxIterations {
		t.Fatalf("MaxIterations = %d, want %d", state.MaxIterations, LowPriorityMaxIterations)
	}
	if verifyCalls != LowPriorityMaxIterations {
		t.Fatalf("verification calls = %d, want %d", verifyCalls, LowPriorityMaxIterations)
	}
}

func TestStatePatch_MaxIterationsOnlyLowersCeiling(t *testing.T) {
	state := NewGraphState("x", "", 5, false)

	lower := 3
	state.Apply(StatePatch{Next: NodeAnalysis, MaxIterations: &lower})
	if state.MaxIterations != 3 {
		t.Fatalf("MaxIterations = %d, want 3 after lowering", state.MaxIterations)
	}

	higher := 5
	state.Apply(StatePatch{Next: NodeAnalysis, MaxIterations: &higher})
	if state.MaxIterations != 3 {
		t.Fatalf("MaxIterations = %d, want 3 (must not be raised back up)", state.MaxIterations)
	}
}

func TestEngine_RejectsIllegalTransition(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fakeNode{name: NodeAnalysis, run: func(ctx context.Context, s *GraphState) (StatePatch, error) {
		return StatePatch{Next: NodeVerification}, nil
	}})
	eng := NewEngine(reg, nil)
	state := NewGraphState("x", "", 5, false)
	outcome := eng.Run(context.Background(), state)
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed for illegal transition", outcome)
	}
}

func TestEngine_Cancellation(t *testing.T) {
	reg := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := NewEngine(reg, nil)
	state := NewGraphState("x", "", 5, false)
	outcome := eng.Run(ctx, state)
	if outcome != OutcomeStopped {
		t.Fatalf("outcome = %v, want stopped", outcome)
	}
}
