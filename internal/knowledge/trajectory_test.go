package knowledge

import (
	"math"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordTrajectory_MergesRunningAverages(t *testing.T) {
	s := openTestStore(t)
	toolPath := []string{"test_runner", "git_blame_analyzer"}

	if err := s.RecordTrajectory(Trajectory{
		ErrorCategory: "TEST_FAILURE", ComplexityBucket: ComplexityBucket(5),
		ToolPath: toolPath, Success: true, TotalCost: 0.02, Reward: 85,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordTrajectory(Trajectory{
		ErrorCategory: "TEST_FAILURE", ComplexityBucket: ComplexityBucket(5),
		ToolPath: toolPath, Success: true, TotalCost: 0.03, Reward: 90,
	}); err != nil {
		t.Fatal(err)
	}

	var n int
	var cost, reward float64
	row := s.db.QueryRow(`SELECT occurrence_count, total_cost, reward FROM fix_trajectory WHERE error_category = ? AND complexity_bucket = ? AND tool_path = ?`,
		"TEST_FAILURE", ComplexityBucket(5), encodeToolPath(toolPath))
	if err := row.Scan(&n, &cost, &reward); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("occurrence_count = %d, want 2", n)
	}
	if math.Abs(cost-0.025) > 1e-9 {
		t.Fatalf("total_cost = %v, want ~0.025", cost)
	}
	if math.Abs(reward-87.5) > 1e-9 {
		t.Fatalf("reward = %v, want 87.5", reward)
	}

	path, err := s.FindOptimalPath("TEST_FAILURE", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 2 || path[0] != "test_runner" {
		t.Fatalf("FindOptimalPath = %v, want %v", path, toolPath)
	}
}

func TestFindOptimalPath_PrefersHigherReward(t *testing.T) {
	s := openTestStore(t)
	if err := s.RecordTrajectory(Trajectory{
		ErrorCategory: "syntax", ComplexityBucket: 1, ToolPath: []string{"lint_fix"}, Success: true, Reward: 50,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordTrajectory(Trajectory{
		ErrorCategory: "syntax", ComplexityBucket: 1, ToolPath: []string{"llm_rewrite"}, Success: true, Reward: 90,
	}); err != nil {
		t.Fatal(err)
	}
	path, err := s.FindOptimalPath("syntax", 4) // bucket(4,width=3) == 1
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 1 || path[0] != "llm_rewrite" {
		t.Fatalf("FindOptimalPath = %v, want [llm_rewrite]", path)
	}
}

func TestUpsertErrorSolution_RunningAverage(t *testing.T) {
	s := openTestStore(t)
	fp := "abc123abc123abcd"
	if err := s.UpsertErrorSolution(fp, 1.0, 3); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertErrorSolution(fp, 0.0, 5); err != nil {
		t.Fatal(err)
	}
	es, err := s.GetErrorSolution(fp)
	if err != nil {
		t.Fatal(err)
	}
	if es.TimesApplied != 2 {
		t.Fatalf("TimesApplied = %d, want 2", es.TimesApplied)
	}
	if math.Abs(es.SuccessRate-0.5) > 1e-9 {
		t.Fatalf("SuccessRate = %v, want 0.5", es.SuccessRate)
	}
	if math.Abs(es.AvgIterations-4.0) > 1e-9 {
		t.Fatalf("AvgIterations = %v, want 4.0", es.AvgIterations)
	}
}
