package planning

import (
	"context"
	"testing"

	"github.com/repairloop/agent/internal/graph"
	"github.com/repairloop/agent/internal/sandbox"
)

func TestBuildDAG_RejectsCycle(t *testing.T) {
	nodes := []graph.DAGNode{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"a"}},
	}
	_, err := BuildDAG(nodes)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if _, ok := err.(ErrCycle); !ok {
		t.Fatalf("err = %T, want ErrCycle", err)
	}
}

func TestBuildDAG_AcceptsValidDAG(t *testing.T) {
	nodes := []graph.DAGNode{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: nil},
	}
	dag, err := BuildDAG(nodes)
	if err != nil {
		t.Fatal(err)
	}
	if len(dag.Edges) != 1 {
		t.Fatalf("edges = %v", dag.Edges)
	}
}

func TestSelectNext_TieBreaksByPriorityThenComplexityThenID(t *testing.T) {
	dag := &graph.ErrorDAG{Nodes: []graph.DAGNode{
		{ID: "z", Priority: 5, Complexity: 2},
		{ID: "a", Priority: 5, Complexity: 2},
		{ID: "b", Priority: 8, Complexity: 9},
	}}
	next, ok := SelectNext(dag, nil)
	if !ok || next.ID != "b" {
		t.Fatalf("next = %+v, want b (highest priority)", next)
	}

	dag2 := &graph.ErrorDAG{Nodes: []graph.DAGNode{
		{ID: "z", Priority: 5, Complexity: 2},
		{ID: "a", Priority: 5, Complexity: 2},
	}}
	next2, ok := SelectNext(dag2, nil)
	if !ok || next2.ID != "a" {
		t.Fatalf("next2 = %+v, want a (lexicographic tie-break)", next2)
	}
}

func TestSelectNext_RespectsDependencies(t *testing.T) {
	dag := &graph.ErrorDAG{Nodes: []graph.DAGNode{
		{ID: "a", Priority: 9, Dependencies: []string{"b"}},
		{ID: "b", Priority: 1},
	}}
	next, ok := SelectNext(dag, nil)
	if !ok || next.ID != "b" {
		t.Fatalf("next = %+v, want b (a's dependency unsatisfied)", next)
	}
	next, ok = SelectNext(dag, []string{"b"})
	if !ok || next.ID != "a" {
		t.Fatalf("next = %+v, want a once b is solved", next)
	}
}

func TestSelectNext_NoneEligible(t *testing.T) {
	dag := &graph.ErrorDAG{Nodes: []graph.DAGNode{{ID: "a", Dependencies: []string{"b"}}}}
	_, ok := SelectNext(dag, nil)
	if ok {
		t.Fatal("expected no eligible node")
	}
}

func TestNode_PathlessDiagnosisSkipsResolution(t *testing.T) {
	n := &Node{}
	state := graph.NewGraphState("log", "", 10, false)
	state.Diagnosis = &graph.Diagnosis{Summary: "missing import", FixAction: graph.FixEdit}

	patch, err := n.Run(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if patch.Next != graph.NodeExecution {
		t.Fatalf("next = %v, want EXECUTION", patch.Next)
	}
	if len(patch.ReservePaths) != 0 {
		t.Fatalf("reservePaths = %v, want none for a pathless diagnosis", patch.ReservePaths)
	}
}

func TestNode_ResolvesUniqueBasenameBySearch(t *testing.T) {
	sb := sandbox.NewSimulator("/work")
	ctx := context.Background()
	if err := sb.WriteFile(ctx, "src/calc.py", "def divide(a, b): return a / b\n"); err != nil {
		t.Fatal(err)
	}

	n := &Node{Sandbox: sb}
	state := graph.NewGraphState("log", "", 10, false)
	state.Diagnosis = &graph.Diagnosis{Summary: "division by zero", FilePath: "calc.py", FixAction: graph.FixEdit}

	patch, err := n.Run(ctx, state)
	if err != nil {
		t.Fatal(err)
	}
	if patch.Diagnosis == nil || patch.Diagnosis.FilePath != "src/calc.py" {
		t.Fatalf("diagnosis = %+v, want resolved path src/calc.py", patch.Diagnosis)
	}
	if len(patch.ReservePaths) != 1 || patch.ReservePaths[0] != "src/calc.py" {
		t.Fatalf("reservePaths = %v", patch.ReservePaths)
	}
}

func TestNode_AmbiguousMultiMatchFeedsBackToAnalysis(t *testing.T) {
	sb := sandbox.NewSimulator("/work")
	ctx := context.Background()
	sb.WriteFile(ctx, "src/calc.py", "a")
	sb.WriteFile(ctx, "test/calc.py", "b")

	n := &Node{Sandbox: sb}
	state := graph.NewGraphState("log", "", 10, false)
	state.Diagnosis = &graph.Diagnosis{Summary: "division by zero", FilePath: "calc.py", FixAction: graph.FixEdit}

	patch, err := n.Run(ctx, state)
	if err != nil {
		t.Fatal(err)
	}
	if patch.Next != graph.NodeAnalysis {
		t.Fatalf("next = %v, want ANALYSIS on ambiguous match", patch.Next)
	}
	if len(patch.AppendFeedback) != 1 {
		t.Fatalf("feedback = %v", patch.AppendFeedback)
	}
}

func TestNode_DecomposesAboveThreshold(t *testing.T) {
	decomposeCalled := false
	n := &Node{
		Decompose: func(ctx context.Context, d graph.Diagnosis) ([]graph.DAGNode, error) {
			decomposeCalled = true
			return []graph.DAGNode{
				{ID: "n1", Problem: "fix import", Priority: 5},
				{ID: "n2", Problem: "fix type error", Priority: 9, AffectedFiles: []string{"b.py"}},
			}, nil
		},
	}
	state := graph.NewGraphState("log", "", 10, false)
	state.Diagnosis = &graph.Diagnosis{Summary: "a; b; c; d; e and f and g", FixAction: graph.FixCommand}

	patch, err := n.Run(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if !decomposeCalled {
		t.Fatal("expected Decompose to be invoked above the threshold")
	}
	if patch.ErrorDAG == nil {
		t.Fatal("expected an ErrorDAG patch")
	}
	if patch.CurrentNodeID == nil || *patch.CurrentNodeID != "n2" {
		t.Fatalf("currentNodeID = %v, want n2 (highest priority)", patch.CurrentNodeID)
	}
	if patch.IsAtomic == nil || *patch.IsAtomic {
		t.Fatal("expected isAtomic=false once decomposed")
	}
}

func TestNode_NoDiagnosisFeedsBackToAnalysis(t *testing.T) {
	n := &Node{}
	state := graph.NewGraphState("log", "", 10, false)
	patch, err := n.Run(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if patch.Next != graph.NodeAnalysis {
		t.Fatalf("next = %v, want ANALYSIS", patch.Next)
	}
}
