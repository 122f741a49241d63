package sandbox

import (
	"context"
	"testing"
)

func TestSimulator_WriteThenRead(t *testing.T) {
	sim := NewSimulator("/tmp/work")
	ctx := context.Background()
	if err := sim.WriteFile(ctx, "src/a.py", "print(1)"); err != nil {
		t.Fatal(err)
	}
	got, err := sim.ReadFile(ctx, "src/a.py")
	if err != nil {
		t.Fatal(err)
	}
	if got != "print(1)" {
		t.Fatalf("got %q", got)
	}
}

func TestSimulator_RunCommandDeterministic(t *testing.T) {
	sim := NewSimulator("/tmp/work")
	res, err := sim.RunCommand(context.Background(), "npm test", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", res.ExitCode)
	}
}

func TestAgentTools_ReadFile_AutoCorrects(t *testing.T) {
	sim := NewSimulator("/tmp/work")
	ctx := context.Background()
	if err := sim.WriteFile(ctx, "src/calc.py", "def div(): pass"); err != nil {
		t.Fatal(err)
	}
	tools := NewAgentTools(sim)
	resolved, content, corrected, err := tools.ReadFile(ctx, "calc.py")
	if err != nil {
		t.Fatal(err)
	}
	if !corrected || resolved != "src/calc.py" {
		t.Fatalf("resolved=%q corrected=%v, want src/calc.py corrected", resolved, corrected)
	}
	if content != "def div(): pass" {
		t.Fatalf("content = %q", content)
	}
}

func TestNew_UnwiredBackendsFailLoudly(t *testing.T) {
	for _, b := range []Backend{BackendKubernetes, BackendE2B} {
		sb, err := New(b, "/tmp/work")
		if err != nil {
			t.Fatalf("New(%s) construction error = %v, want nil (fails at Init)", b, err)
		}
		if err := sb.Init(context.Background()); err == nil {
			t.Fatalf("Init() for unwired backend %s should fail", b)
		}
	}
}
