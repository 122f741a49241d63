package execution

import (
	"context"
	"testing"
	"time"

	"github.com/repairloop/agent/internal/graph"
	"github.com/repairloop/agent/internal/llmprovider"
	"github.com/repairloop/agent/internal/sandbox"
)

type fakeLLM struct {
	texts []string
	calls int
}

func (f *fakeLLM) Generate(ctx context.Context, req llmprovider.Request) (llmprovider.Response, error) {
	i := f.calls
	if i >= len(f.texts) {
		i = len(f.texts) - 1
	}
	f.calls++
	return llmprovider.Response{Text: f.texts[i]}, nil
}

// scriptedSandbox wraps a Simulator but returns a fixed exit code from
// RunCommand, since the Simulator itself always reports success.
type scriptedSandbox struct {
	*sandbox.Simulator
	exitCode int
	stderr   string
}

func (s *scriptedSandbox) RunCommand(ctx context.Context, cmd string, timeout time.Duration) (sandbox.CommandResult, error) {
	return sandbox.CommandResult{ExitCode: s.exitCode, Stderr: s.stderr}, nil
}

func TestNode_RunCommand_SuccessGoesToVerification(t *testing.T) {
	sb := sandbox.NewSimulator("/work")
	n := &Node{Sandbox: sb}
	state := graph.NewGraphState("log", "", 10, false)
	state.Diagnosis = &graph.Diagnosis{Summary: "flaky dependency", FixAction: graph.FixCommand, SuggestedCommand: "true"}

	patch, err := n.Run(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if patch.Next != graph.NodeVerification {
		t.Fatalf("next = %v, want VERIFICATION", patch.Next)
	}
}

func TestNode_RunCommand_FailureFeedsBackToAnalysis(t *testing.T) {
	sb := &scriptedSandbox{Simulator: sandbox.NewSimulator("/work"), exitCode: 1, stderr: "install failed"}
	n := &Node{Sandbox: sb}
	state := graph.NewGraphState("log", "", 10, false)
	state.Diagnosis = &graph.Diagnosis{Summary: "broken install", FixAction: graph.FixCommand, SuggestedCommand: "false"}

	patch, err := n.Run(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if patch.Next != graph.NodeAnalysis {
		t.Fatalf("next = %v, want ANALYSIS", patch.Next)
	}
	if len(patch.AppendFeedback) == 0 {
		t.Fatal("expected feedback describing the command failure")
	}
}

func TestNode_RunCommand_ReclassifiesDistinctSecondaryFailure(t *testing.T) {
	sb := &scriptedSandbox{Simulator: sandbox.NewSimulator("/work"), exitCode: 1, stderr: "ECONNREFUSED"}
	n := &Node{
		Sandbox: sb,
		Classify: func(logText string, affectedFiles []string) graph.ClassifiedError {
			return graph.ClassifiedError{Category: graph.CategoryNetwork, ErrorMessage: logText}
		},
	}
	state := graph.NewGraphState("log", "", 10, false)
	state.Classification = &graph.ClassifiedError{Category: graph.CategorySyntax}
	state.CurrentErrorFactID = "err-1"
	state.Diagnosis = &graph.Diagnosis{Summary: "syntax fix", FixAction: graph.FixCommand, SuggestedCommand: "false"}

	patch, err := n.Run(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if patch.Next != graph.NodeAnalysis {
		t.Fatalf("next = %v, want ANALYSIS", patch.Next)
	}
	if len(patch.AppendFeedback) != 1 {
		t.Fatalf("feedback = %v, want exactly one secondary-error note", patch.AppendFeedback)
	}
}

func TestNode_RunEdit_CreatesNewFile(t *testing.T) {
	sb := sandbox.NewSimulator("/work")
	llm := &fakeLLM{texts: []string{"```python\nprint('hi')\n```"}}
	n := &Node{Sandbox: sb, LLM: llm}
	state := graph.NewGraphState("log", "", 10, false)
	state.Diagnosis = &graph.Diagnosis{Summary: "missing entrypoint", FilePath: "main.py", FixAction: graph.FixCreate}

	patch, err := n.Run(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if patch.Next != graph.NodeVerification {
		t.Fatalf("next = %v, want VERIFICATION", patch.Next)
	}
	fc, ok := patch.FilesSet["main.py"]
	if !ok {
		t.Fatal("expected main.py in FilesSet")
	}
	if fc.Status != graph.FileCreated {
		t.Fatalf("status = %v, want FileCreated", fc.Status)
	}
	if fc.Modified.Content != "print('hi')\n" {
		t.Fatalf("content = %q", fc.Modified.Content)
	}
}

func TestNode_RunEdit_SelfCorrectsOnLintFailure(t *testing.T) {
	sb := sandbox.NewSimulator("/work")
	llm := &fakeLLM{texts: []string{
		"key: [unterminated",
		"key: value",
	}}
	n := &Node{Sandbox: sb, LLM: llm}
	state := graph.NewGraphState("log", "", 10, false)
	state.Diagnosis = &graph.Diagnosis{Summary: "bad config", FilePath: "config.yaml", FixAction: graph.FixCreate}

	patch, err := n.Run(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if patch.Next != graph.NodeVerification {
		t.Fatalf("next = %v, want VERIFICATION after self-correction, got feedback %v", patch.Next, patch.AppendFeedback)
	}
	if llm.calls != 2 {
		t.Fatalf("llm.calls = %d, want 2 (initial + one retry)", llm.calls)
	}
}

func TestNode_RunEdit_AmbiguousPathHallucination(t *testing.T) {
	sb := sandbox.NewSimulator("/work")
	ctx := context.Background()
	sb.WriteFile(ctx, "src/calc.py", "a")
	sb.WriteFile(ctx, "test/calc.py", "b")

	n := &Node{Sandbox: sb, LLM: &fakeLLM{texts: []string{"x"}}}
	state := graph.NewGraphState("log", "", 10, false)
	state.Diagnosis = &graph.Diagnosis{Summary: "division by zero", FilePath: "calc.py", FixAction: graph.FixEdit}

	patch, err := n.Run(ctx, state)
	if err != nil {
		t.Fatal(err)
	}
	if patch.Next != graph.NodeAnalysis {
		t.Fatalf("next = %v, want ANALYSIS on ambiguous match", patch.Next)
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
