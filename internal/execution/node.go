package execution

import (
	"context"
	"fmt"
	"strings"

	"github.com/repairloop/agent/internal/depgraph"
	"github.com/repairloop/agent/internal/fileresolve"
	"github.com/repairloop/agent/internal/graph"
	"github.com/repairloop/agent/internal/llmprovider"
	"github.com/repairloop/agent/internal/loopdetect"
	"github.com/repairloop/agent/internal/sandbox"
)

// Node implements graph.Node for EXECUTION: it either
// validates and runs a command or resolves a path, generates content, and
// lints it, with one self-correction retry.
type Node struct {
	Sandbox sandbox.Sandbox
	LLM     llmprovider.Provider
	Loop    *loopdetect.Detector
	Deps    *depgraph.Tracker

	// Classify reclassifies a new command failure's output so a
	// different-category failure can be recorded as a discovered_from
	// dependency rather than folded into the current error. Left nil to
	// skip reclassification (tests, or callers with no knowledge store).
	Classify func(logText string, affectedFiles []string) graph.ClassifiedError
}

func (n *Node) Name() graph.Name { return graph.NodeExecution }

func (n *Node) Run(ctx context.Context, state *graph.GraphState) (graph.StatePatch, error) {
	if state.Diagnosis == nil {
		return graph.StatePatch{Next: graph.NodeAnalysis, AppendFeedback: []string{"execution: no diagnosis to act on"}}, nil
	}
	diagnosis := *state.Diagnosis

	if diagnosis.FixAction == graph.FixCommand {
		return n.runCommand(ctx, state, diagnosis)
	}
	return n.runEdit(ctx, state, diagnosis)
}

// runCommand validates (auto-correcting package-manager mismatches) and
// executes a command fix. The command is not dry-run before it executes.
func (n *Node) runCommand(ctx context.Context, state *graph.GraphState, diagnosis graph.Diagnosis) (graph.StatePatch, error) {
	cmd := diagnosis.SuggestedCommand
	if cmd == "" {
		return graph.StatePatch{Next: graph.NodeAnalysis, AppendFeedback: []string{"execution: fixAction=command but no suggestedCommand"}}, nil
	}

	if n.Sandbox != nil {
		if files, err := n.Sandbox.ListFiles(ctx, "."); err == nil {
			cmd = ValidateCommand(cmd, DetectProfile(files))
		}
	}

	if n.Sandbox == nil {
		return graph.StatePatch{Next: graph.NodeAnalysis, AppendFeedback: []string{"execution: no sandbox to run command in"}}, nil
	}
	result, err := n.Sandbox.RunCommand(ctx, cmd, sandbox.DefaultCommandTimeout)
	if err != nil {
		return graph.StatePatch{Next: graph.NodeAnalysis, AppendFeedback: []string{fmt.Sprintf("command %q failed to execute: %v", cmd, err)}}, nil
	}

	entry := graph.HistoryEntry{Node: graph.NodeExecution, Action: "command:" + cmd, Result: fmt.Sprintf("exit %d", result.ExitCode)}
	if result.ExitCode == 0 {
		return graph.StatePatch{Next: graph.NodeVerification, AppendHistory: []graph.HistoryEntry{entry}}, nil
	}

	output := result.Stdout + "\n" + result.Stderr
	if n.Classify != nil && state.Classification != nil {
		newClass := n.Classify(output, state.Classification.AffectedFiles)
		if newClass.Category != state.Classification.Category {
			if n.Deps != nil && state.CurrentErrorFactID != "" {
				// A second, distinct error surfaced while diagnosing the
				// current one: record it as discovered_from rather than
				// overwriting the current diagnosis.
				discoveredID := state.CurrentErrorFactID + "-discovered"
				_ = n.Deps.RecordErrorDependency(discoveredID, state.CurrentErrorFactID, depgraph.RelationDiscoveredFrom, "")
			}
			return graph.StatePatch{
				Next:           graph.NodeAnalysis,
				CurrentLogText: &output,
				AppendHistory:  []graph.HistoryEntry{entry},
				AppendFeedback: []string{fmt.Sprintf("command %q surfaced a secondary %s error", cmd, newClass.Category)},
			}, nil
		}
	}

	return graph.StatePatch{
		Next:           graph.NodeAnalysis,
		AppendHistory:  []graph.HistoryEntry{entry},
		AppendFeedback: []string{fmt.Sprintf("command %q failed (exit %d): %s", cmd, result.ExitCode, truncate(output, 2000))},
	}, nil
}

// runEdit resolves the target path, generates content, and lints it.
func (n *Node) runEdit(ctx context.Context, state *graph.GraphState, diagnosis graph.Diagnosis) (graph.StatePatch, error) {
	path := diagnosis.FilePath
	if path == "" {
		return graph.StatePatch{Next: graph.NodeAnalysis, AppendFeedback: []string{"execution: no file path to edit"}}, nil
	}

	if n.Loop != nil && n.Loop.ShouldTriggerStrategyShift(path) {
		glob := loopdetect.TriggerAutomatedRecovery(path)
		found := "nothing"
		if n.Sandbox != nil {
			if res, err := sandbox.NewAgentTools(n.Sandbox).ResolvePath(ctx, path); err == nil && len(res.Matches) > 0 {
				found = strings.Join(res.Matches, ", ")
			}
		}
		return graph.StatePatch{
			Next:           graph.NodeAnalysis,
			AppendFeedback: []string{fmt.Sprintf("repeated path hallucination on %q; automated recovery searched %s instead of writing again and found: %s", path, glob, found)},
		}, nil
	}

	resolved, originalContent, existed, haltPatch := n.resolvePath(ctx, path, diagnosis.FixAction)
	if haltPatch != nil {
		return *haltPatch, nil
	}

	content, err := n.generateContent(ctx, state, diagnosis, resolved)
	if err != nil {
		return graph.StatePatch{Next: graph.NodeAnalysis, AppendFeedback: []string{fmt.Sprintf("execution: content generation failed: %v", err)}}, nil
	}

	lang := LanguageFor(resolved)
	content = ApplyLanguageFixups(lang, content)

	if lintErr := n.lint(ctx, lang, content); lintErr != "" {
		// Self-correction sub-loop: one retry, feeding the validator error
		// back to the LLM, once.
		retried, retryErr := n.generateContent(ctx, state, diagnosis, resolved, lintErr)
		if retryErr != nil {
			return graph.StatePatch{Next: graph.NodeAnalysis, AppendFeedback: []string{fmt.Sprintf("execution: self-correction retry failed: %v", retryErr)}}, nil
		}
		retried = ApplyLanguageFixups(lang, retried)
		if secondErr := n.lint(ctx, lang, retried); secondErr != "" {
			return graph.StatePatch{
				Next:           graph.NodeAnalysis,
				AppendFeedback: []string{fmt.Sprintf("execution: lint failed after self-correction: %s", secondErr)},
			}, nil
		}
		content = retried
	}

	status := graph.FileModified
	if !existed {
		status = graph.FileCreated
		originalContent = ""
	}

	fc := &graph.FileChange{
		Path:     resolved,
		Original: graph.FileVersion{Content: originalContent, Language: lang, Name: fileresolve.Basename(resolved)},
		Modified: graph.FileVersion{Content: content, Language: lang, Name: fileresolve.Basename(resolved)},
		Status:   status,
	}

	diagnosis.FilePath = resolved
	return graph.StatePatch{
		Next:          graph.NodeVerification,
		Diagnosis:     &diagnosis,
		FilesSet:      map[string]*graph.FileChange{resolved: fc},
		AppendHistory: []graph.HistoryEntry{{Node: graph.NodeExecution, Action: string(diagnosis.FixAction), Result: resolved}},
	}, nil
}

// resolvePath implements the auto-correction rule: a
// single match substitutes the path, multiple matches trigger a
// hallucination return to ANALYSIS, and zero matches are fine for create.
func (n *Node) resolvePath(ctx context.Context, path string, fixAction graph.FixAction) (resolved, originalContent string, existed bool, haltPatch *graph.StatePatch) {
	if n.Sandbox == nil {
		return path, "", false, nil
	}
	if content, err := n.Sandbox.ReadFile(ctx, path); err == nil {
		return path, content, true, nil
	}

	res, err := sandbox.NewAgentTools(n.Sandbox).ResolvePath(ctx, path)
	if err != nil {
		return path, "", false, nil
	}
	switch {
	case res.Found && len(res.Matches) == 1:
		content, _ := n.Sandbox.ReadFile(ctx, res.Path)
		return res.Path, content, true, nil
	case len(res.Matches) > 1:
		if n.Loop != nil {
			n.Loop.RecordHallucination(path)
		}
		patch := graph.StatePatch{
			Next:           graph.NodeAnalysis,
			AppendFeedback: []string{fmt.Sprintf("Path Hallucination: multiple candidates for %s: %s", fileresolve.Basename(path), strings.Join(res.Matches, ", "))},
		}
		return "", "", false, &patch
	default:
		if fixAction == graph.FixCreate {
			return path, "", false, nil
		}
		// Zero matches and not a create: still let the LLM attempt it as a
		// new file rather than fail the whole iteration over a naming miss.
		return path, "", false, nil
	}
}

func (n *Node) generateContent(ctx context.Context, state *graph.GraphState, diagnosis graph.Diagnosis, path string, validatorFeedback ...string) (string, error) {
	if n.LLM == nil {
		return "", fmt.Errorf("execution: no LLM provider configured")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Produce the complete new content of %s.\n", path)
	fmt.Fprintf(&b, "Problem: %s\n", diagnosis.Summary)
	if state.Plan != "" {
		fmt.Fprintf(&b, "Plan:\n%s\n", state.Plan)
	}
	for _, f := range validatorFeedback {
		fmt.Fprintf(&b, "Your previous attempt failed validation: %s\nFix it and reply with only the corrected file content.\n", f)
	}
	resp, err := n.LLM.Generate(ctx, llmprovider.Request{Prompt: b.String(), Model: state.SelectedModel, MaxTokens: 2048})
	if err != nil {
		return "", err
	}
	return StripFences(resp.Text), nil
}

func (n *Node) lint(ctx context.Context, lang, content string) string {
	v := ValidatorFor(lang)
	if v == nil {
		return ""
	}
	return v(ctx, content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
