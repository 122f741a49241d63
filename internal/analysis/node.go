package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/repairloop/agent/internal/codehost"
	"github.com/repairloop/agent/internal/depgraph"
	"github.com/repairloop/agent/internal/graph"
	"github.com/repairloop/agent/internal/knowledge"
	"github.com/repairloop/agent/internal/llmprovider"
	"github.com/repairloop/agent/internal/loopdetect"
	"github.com/repairloop/agent/internal/runid"
)

// logStrategies is the log-retrieval escalation order.
var logStrategies = []codehost.LogStrategy{
	codehost.StrategyStandard,
	codehost.StrategyExtended,
	codehost.StrategyAnyError,
	codehost.StrategyForceLatest,
}

// Node implements graph.Node for ANALYSIS.
type Node struct {
	CodeHost codehost.Client
	LLM      llmprovider.Provider
	Store    *knowledge.Store
	Deps     *depgraph.Tracker
	Loop     *loopdetect.Detector
	RunID    string
	RepoURL  string
}

func (n *Node) Name() graph.Name { return graph.NodeAnalysis }

func (n *Node) Run(ctx context.Context, state *graph.GraphState) (graph.StatePatch, error) {
	envReset := false
	loopDetected, loopGuidance, loopFeedback := n.checkLoop(state)
	depWarning := n.checkBlockingDependency(state)

	logText := state.CurrentLogText
	if logText == "" {
		fetched, err := n.fetchLogsWithEscalation(ctx, state)
		if err != nil {
			reason := err.Error()
			return graph.StatePatch{Next: graph.NodeFailure, FailureReason: &reason}, nil
		}
		logText = fetched
	}

	var priorFiles []string
	if state.Classification != nil {
		priorFiles = state.Classification.AffectedFiles
	}
	classified := Classify(n.Store, logText, priorFiles)

	if state.Classification != nil && IsCascade(*state.Classification, classified) {
		// Cascading effect: keep iterating on the prior root cause without
		// treating this as a brand-new error.
		rootCause := state.Classification.RootCauseLog
		return graph.StatePatch{
			Next:                 graph.NodePlanning,
			Classification:       state.Classification,
			CurrentLogText:       &rootCause,
			LoopDetected:         &loopDetected,
			LoopGuidance:         &loopGuidance,
			EnvRecoveryAttempted: &envReset,
			AppendFeedback:       appendNonEmpty(loopFeedback, depWarning),
			AppendHistory:        []graph.HistoryEntry{{Node: graph.NodeAnalysis, Action: "cascade-suppressed", Result: classified.ErrorMessage}},
		}, nil
	}

	prompt := n.buildDiagnosisPrompt(state, logText, classified, loopDetected, loopGuidance)
	resp, err := n.LLM.Generate(ctx, llmprovider.Request{Prompt: prompt, Model: state.SelectedModel, MaxTokens: 1024})
	if err != nil {
		if llmprovider.IsRetryable(err) {
			feedback := fmt.Sprintf("transient LLM failure during diagnosis: %v", err)
			return graph.StatePatch{Next: graph.NodeAnalysis, AppendFeedback: []string{feedback}}, nil
		}
		reason := fmt.Sprintf("diagnosis failed: %v", err)
		return graph.StatePatch{Next: graph.NodeFailure, FailureReason: &reason}, nil
	}

	diagnosis, err := parseDiagnosis(resp.Text)
	if err != nil {
		// Never guess a file path; surface a failure rather than fabricate one.
		reason := fmt.Sprintf("could not parse diagnosis: %v", err)
		return graph.StatePatch{Next: graph.NodeFailure, FailureReason: &reason}, nil
	}

	errorFactID := state.CurrentErrorFactID
	if errorFactID == "" {
		errorFactID = runid.New()
	}
	if n.Store != nil {
		if err := n.Store.UpsertErrorFact(knowledge.ErrorFact{
			ID: errorFactID, RunID: n.RunID, Summary: diagnosis.Summary,
			FilePath: diagnosis.FilePath, FixAction: string(diagnosis.FixAction),
			Status: knowledge.ErrorOpen,
		}); err != nil {
			reason := fmt.Sprintf("knowledge base upsert failed: %v", err)
			return graph.StatePatch{Next: graph.NodeFailure, FailureReason: &reason}, nil
		}
	}

	metric := graph.LLMMetric{Model: resp.Model, InputTok: resp.Usage.Input, OutputTok: resp.Usage.Output, CostUSD: resp.CostUSD, LatencyMs: resp.LatencyMs}

	var maxIterations *int
	if classified.Priority < graph.LowPriorityThreshold {
		cap := graph.LowPriorityMaxIterations
		maxIterations = &cap
	}

	return graph.StatePatch{
		Next:                 graph.NodePlanning,
		Classification:       &classified,
		Diagnosis:            &diagnosis,
		CurrentErrorFactID:   &errorFactID,
		MaxIterations:        maxIterations,
		LLMMetric:            &metric,
		LoopDetected:         &loopDetected,
		LoopGuidance:         &loopGuidance,
		EnvRecoveryAttempted: &envReset,
		AppendFeedback:       appendNonEmpty(loopFeedback, depWarning),
		AppendHistory:        []graph.HistoryEntry{{Node: graph.NodeAnalysis, Action: "diagnose", Result: diagnosis.Summary}},
	}, nil
}

// checkLoop computes and records this ANALYSIS entry's snapshot: identical
// to a prior snapshot within this run ⇒ loopDetected, with the literal
// banner to prepend to the next diagnosis prompt and append to feedback.
func (n *Node) checkLoop(state *graph.GraphState) (detected bool, guidance string, feedback string) {
	if n.Loop == nil {
		return false, "", ""
	}
	summary := ""
	if state.Diagnosis != nil {
		summary = state.Diagnosis.Summary
	}
	contents := make(map[string]string, len(state.Files))
	for p, fc := range state.Files {
		contents[p] = fc.Modified.Content
	}
	snap := loopdetect.NewSnapshot(state.Iteration, summary, contents)
	if n.Loop.Observe(snap) {
		return true, loopdetect.Banner, loopdetect.Banner
	}
	return false, "", ""
}

// checkBlockingDependency implements the scheduling hook: surfaces a
// warning (it does not change control flow in this single-current-error
// design) when the error ANALYSIS is about to re-diagnose is blocked on
// an unresolved dependency.
func (n *Node) checkBlockingDependency(state *graph.GraphState) string {
	if n.Deps == nil || state.CurrentErrorFactID == "" {
		return ""
	}
	blocked, err := n.Deps.HasBlockingDependencies(state.CurrentErrorFactID)
	if err != nil || !blocked {
		return ""
	}
	return fmt.Sprintf("warning: error %s is blocked on an unresolved dependency", state.CurrentErrorFactID)
}

func appendNonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (n *Node) fetchLogsWithEscalation(ctx context.Context, state *graph.GraphState) (string, error) {
	if n.CodeHost == nil {
		return "", errors.New("analysis: no log text and no code-hosting client to fetch it")
	}
	runID := ""
	if len(state.History) > 0 {
		runID = n.RunID
	}
	var lastErr error
	for _, strategy := range logStrategies {
		logs, err := n.CodeHost.GetWorkflowLogs(ctx, n.RepoURL, runID, "", strategy)
		if err == nil && strings.TrimSpace(logs) != "" {
			return logs, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = codehost.ErrNoFailedJobFound
	}
	return "", fmt.Errorf("analysis: log retrieval exhausted all strategies: %w", lastErr)
}

func (n *Node) buildDiagnosisPrompt(state *graph.GraphState, logText string, classified graph.ClassifiedError, loopDetected bool, loopGuidance string) string {
	var b strings.Builder
	if loopDetected && loopGuidance != "" {
		b.WriteString(loopGuidance)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Category: %s (priority %d)\n", classified.Category, classified.Priority)
	fmt.Fprintf(&b, "Log excerpt:\n%s\n", logText)
	if state.InitialRepoContext != "" {
		fmt.Fprintf(&b, "Repo context:\n%s\n", state.InitialRepoContext)
	}
	for _, f := range state.Feedback {
		fmt.Fprintf(&b, "Feedback: %s\n", f)
	}
	return b.String()
}
