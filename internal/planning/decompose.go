package planning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/repairloop/agent/internal/graph"
	"github.com/repairloop/agent/internal/llmprovider"
)

// llmSubProblem is the wire shape the decomposition prompt asks the model
// to reply with; it is intentionally smaller than graph.DAGNode (status
// is filled in afterward).
type llmSubProblem struct {
	ID            string   `json:"id"`
	Problem       string   `json:"problem"`
	Dependencies  []string `json:"dependencies"`
	AffectedFiles []string `json:"affectedFiles"`
	Complexity    int      `json:"complexity"`
	Priority      int      `json:"priority"`
}

// LLMDecomposer returns a Node.Decompose implementation that asks llm to
// split a complex diagnosis into atomic sub-problems. The model is asked
// for a JSON array; a reply that doesn't parse, or has no usable
// sub-problem, is returned as an error. No DAG is built from such a reply.
func LLMDecomposer(llm llmprovider.Provider) func(ctx context.Context, diagnosis graph.Diagnosis) ([]graph.DAGNode, error) {
	return func(ctx context.Context, diagnosis graph.Diagnosis) ([]graph.DAGNode, error) {
		prompt := fmt.Sprintf(
			"Decompose this problem into independent atomic sub-problems as a JSON array "+
				"of objects with fields id, problem, dependencies (ids), affectedFiles, complexity (1-10), priority (0-10). "+
				"Problem: %s", diagnosis.Summary)
		resp, err := llm.Generate(ctx, llmprovider.Request{Prompt: prompt, MaxTokens: 1024})
		if err != nil {
			return nil, err
		}

		var subs []llmSubProblem
		text := extractJSONArray(resp.Text)
		if err := json.Unmarshal([]byte(text), &subs); err != nil || len(subs) == 0 {
			return nil, fmt.Errorf("planning: decomposition reply did not parse: %v", err)
		}

		nodes := make([]graph.DAGNode, 0, len(subs))
		for _, s := range subs {
			if s.ID == "" || s.Problem == "" {
				continue
			}
			nodes = append(nodes, graph.DAGNode{
				ID:            s.ID,
				Problem:       s.Problem,
				Dependencies:  s.Dependencies,
				Status:        "open",
				Complexity:    s.Complexity,
				Priority:      s.Priority,
				AffectedFiles: s.AffectedFiles,
			})
		}
		if len(nodes) == 0 {
			return nil, fmt.Errorf("planning: decomposition reply had no usable sub-problems")
		}
		return nodes, nil
	}
}

// extractJSONArray trims conversational preamble/postamble some models
// wrap a JSON array reply in, mirroring the fence-stripping idiom the
// Execution node uses for file content.
func extractJSONArray(text string) string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
