package reproduction

import (
	"context"
	"testing"
)

type fakeRunner struct {
	pass map[string]bool
}

func (f fakeRunner) RunCommand(ctx context.Context, cmd string) (int, string, string, error) {
	if f.pass[cmd] {
		return 0, "", "", nil
	}
	return 1, "", "", nil
}

func TestFromWorkflow_ExtractsRunStep(t *testing.T) {
	yamlDoc := `
jobs:
  test:
    steps:
      - name: checkout
        run: echo hi
      - name: run tests
        run: npm test
`
	c, ok := FromWorkflow(yamlDoc, "test")
	if !ok || c.Command != "npm test" {
		t.Fatalf("FromWorkflow = %+v, ok=%v", c, ok)
	}
}

func TestFromSignature_PytestDependency(t *testing.T) {
	c, ok := FromSignature(map[string]string{"pyproject.toml": "[tool.poetry.dependencies]\npytest = \"^7.0\"\n"})
	if !ok || c.Command != "pytest" {
		t.Fatalf("FromSignature = %+v, ok=%v", c, ok)
	}
}

func TestFromSignature_PackageJSON(t *testing.T) {
	c, ok := FromSignature(map[string]string{"package.json": `{"name":"x"}`})
	if !ok || c.Command != "npm test" {
		t.Fatalf("FromSignature = %+v, ok=%v", c, ok)
	}
}

func TestFromSafeScan_TestsDir(t *testing.T) {
	c, ok := FromSafeScan([]string{"src/a.py", "tests/test_a.py"})
	if !ok || c.Command != "ls tests" {
		t.Fatalf("FromSafeScan = %+v, ok=%v", c, ok)
	}
}

func TestInfer_FirstPassingCandidateWins(t *testing.T) {
	runner := fakeRunner{pass: map[string]bool{"pytest": true, "npm test": true}}
	c, ok := Infer(context.Background(), runner, "", "", map[string]string{
		"package.json":   `{"name":"x"}`,
		"pyproject.toml": "pytest = \"^7\"",
	}, nil)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if c.Strategy != "signature" {
		t.Fatalf("strategy = %s, want signature (workflow absent)", c.Strategy)
	}
}

func TestInfer_FallsBackWhenDryRunFails(t *testing.T) {
	runner := fakeRunner{pass: map[string]bool{"npm test": true}}
	c, ok := Infer(context.Background(), runner, "jobs:\n  test:\n    steps:\n      - run: make ci\n", "test", map[string]string{
		"pyproject.toml": "no pytest here",
		"package.json":   `{"name":"x"}`,
	}, nil)
	if !ok || c.Command != "npm test" {
		t.Fatalf("c=%+v ok=%v, want fallback to npm test after the workflow's make ci dry-run fails", c, ok)
	}
}
