package planning

import (
	"context"
	"fmt"
	"strings"

	"github.com/repairloop/agent/internal/fileresolve"
	"github.com/repairloop/agent/internal/graph"
	"github.com/repairloop/agent/internal/knowledge"
	"github.com/repairloop/agent/internal/llmprovider"
	"github.com/repairloop/agent/internal/sandbox"
)

// Node implements graph.Node for PLANNING.
type Node struct {
	Sandbox sandbox.Sandbox
	LLM     llmprovider.Provider
	// Store, when set, lets generatePlan seed its prompt with the
	// highest-reward tool path recorded for this error's category and
	// complexity bucket. Left nil to skip the lookup
	// (tests, or callers with no knowledge store).
	Store *knowledge.Store
	// Decompose, when set, proposes an ErrorDAG for complex diagnoses.
	// Left nil when the diagnosis is atomic or the caller does not supply
	// a decomposer (tests, or simple single-file diagnoses).
	Decompose func(ctx context.Context, diagnosis graph.Diagnosis) ([]graph.DAGNode, error)
}

func (n *Node) Name() graph.Name { return graph.NodePlanning }

func (n *Node) Run(ctx context.Context, state *graph.GraphState) (graph.StatePatch, error) {
	if state.Diagnosis == nil {
		feedback := "planning: no diagnosis to act on"
		return graph.StatePatch{Next: graph.NodeAnalysis, AppendFeedback: []string{feedback}}, nil
	}
	diagnosis := *state.Diagnosis

	var reservePaths []string
	if diagnosis.FilePath != "" {
		resolved, err := n.resolvePath(ctx, diagnosis.FilePath)
		if err != nil {
			feedback := fmt.Sprintf("Path Hallucination: %v", err)
			return graph.StatePatch{Next: graph.NodeAnalysis, AppendFeedback: []string{feedback}}, nil
		}
		diagnosis.FilePath = resolved
		reservePaths = []string{resolved}
	}

	complexity := estimateComplexity(diagnosis)

	var dagPatch *graph.ErrorDAG
	var currentNodeID *string
	isAtomic := true

	if complexity >= ThresholdDecompose && n.Decompose != nil {
		nodes, err := n.Decompose(ctx, diagnosis)
		if err == nil && len(nodes) > 0 {
			dag, err := BuildDAG(nodes)
			if err != nil {
				feedback := fmt.Sprintf("planning: DAG decomposition rejected: %v", err)
				return graph.StatePatch{Next: graph.NodeAnalysis, AppendFeedback: []string{feedback}}, nil
			}
			dagPatch = dag
			isAtomic = false
			if next, ok := SelectNext(dag, state.SolvedNodes); ok {
				id := next.ID
				currentNodeID = &id
				diagnosis.Summary = next.Problem
				reservePaths = next.AffectedFiles
			}
		}
	}

	category := ""
	if state.Classification != nil {
		category = string(state.Classification.Category)
	}
	plan, err := n.generatePlan(ctx, diagnosis, category, complexity)
	if err != nil {
		plan = diagnosis.Summary // degrade gracefully rather than block on a plan-text failure
	}

	patch := graph.StatePatch{
		Next:              graph.NodeExecution,
		Diagnosis:         &diagnosis,
		Plan:              &plan,
		ProblemComplexity: &complexity,
		IsAtomic:          &isAtomic,
		ReservePaths:      reservePaths,
		AppendHistory:     []graph.HistoryEntry{{Node: graph.NodePlanning, Action: "plan", Result: plan}},
	}
	if dagPatch != nil {
		patch.ErrorDAG = dagPatch
	}
	if currentNodeID != nil {
		patch.CurrentNodeID = currentNodeID
	}
	return patch, nil
}

func (n *Node) resolvePath(ctx context.Context, filePath string) (string, error) {
	if n.Sandbox == nil {
		return filePath, nil
	}
	if _, err := n.Sandbox.ReadFile(ctx, filePath); err == nil {
		return filePath, nil
	}
	res, err := sandbox.NewAgentTools(n.Sandbox).ResolvePath(ctx, filePath)
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}
	if res.Found && res.Path != "" {
		return res.Path, nil
	}
	if len(res.Matches) > 1 {
		return "", fmt.Errorf("multiple candidates for %s: %s", fileresolve.Basename(filePath), strings.Join(res.Matches, ", "))
	}
	// Zero matches: if this diagnosis creates a file, the path simply
	// doesn't exist yet, which is not a hallucination.
	return filePath, nil
}

func (n *Node) generatePlan(ctx context.Context, diagnosis graph.Diagnosis, category string, complexity int) (string, error) {
	var optimalPath []string
	if n.Store != nil && category != "" {
		optimalPath, _ = n.Store.FindOptimalPath(category, complexity)
	}

	if n.LLM == nil {
		plan := fmt.Sprintf("# Plan\n\n%s\n\nTarget: %s (%s)\n", diagnosis.Summary, diagnosis.FilePath, diagnosis.FixAction)
		if len(optimalPath) > 0 {
			plan += fmt.Sprintf("Known optimal tool path: %s\n", strings.Join(optimalPath, " -> "))
		}
		return plan, nil
	}
	prompt := fmt.Sprintf("Produce a short markdown plan for fixing: %s (file: %s, action: %s)",
		diagnosis.Summary, diagnosis.FilePath, diagnosis.FixAction)
	if len(optimalPath) > 0 {
		prompt += fmt.Sprintf("\nA prior run solved a similarly complex %s error with this tool path, prefer it if still applicable: %s",
			category, strings.Join(optimalPath, " -> "))
	}
	resp, err := n.LLM.Generate(ctx, llmprovider.Request{Prompt: prompt, MaxTokens: 256})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// estimateComplexity is a deterministic heuristic standing in for a
// model-scored complexity: a base of 1, plus 1 for a command fix, plus 1 for
// each ";" or " and " in the diagnosis summary.
func estimateComplexity(d graph.Diagnosis) int {
	score := 1
	if d.FixAction == graph.FixCommand {
		score++
	}
	score += strings.Count(d.Summary, ";") + strings.Count(d.Summary, " and ")
	return score
}
