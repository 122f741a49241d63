package graph

import "time"

// StatePatch is the result of one node invocation. Nodes never mutate
// GraphState directly — they return a patch, and the engine applies it
// atomically before publishing the transition to the observer. Optional
// fields are pointers so the zero value ("unset") is distinguishable from
// an explicit reset, mirroring the pointer-field/applyDefaults idiom used
// for config structs in this tree.
type StatePatch struct {
	Next Name

	// MaxIterations lowers the iteration ceiling (e.g. to 3 for a
	// low-priority classification). It only ever lowers the ceiling —
	// Apply ignores a value that isn't strictly smaller than the current
	// one, so a classification fed back after the ceiling is already
	// tightened can't raise it back up.
	MaxIterations *int

	Classification     *ClassifiedError
	Diagnosis           *Diagnosis
	Plan                *string
	ProblemComplexity   *int
	ErrorDAG            *ErrorDAG
	CurrentNodeID       *string
	IsAtomic            *bool
	CurrentLogText      *string
	CurrentErrorFactID  *string

	AppendFeedback []string
	AppendHistory  []HistoryEntry
	AppendSolved   []string

	FilesSet     map[string]*FileChange
	ReservePaths []string
	ReleasePaths []string

	LLMMetric *LLMMetric
	Reward    *float64

	LoopDetected *bool
	LoopGuidance *string

	EnvRecoveryAttempted *bool

	FailureReason *string
}

// Apply merges a patch into s. It is the engine's sole writer of GraphState;
// nodes must never call this themselves.
func (s *GraphState) Apply(p StatePatch) {
	if p.MaxIterations != nil && *p.MaxIterations < s.MaxIterations {
		s.MaxIterations = *p.MaxIterations
	}
	if p.Classification != nil {
		s.Classification = p.Classification
	}
	if p.Diagnosis != nil {
		s.Diagnosis = p.Diagnosis
	}
	if p.Plan != nil {
		s.Plan = *p.Plan
	}
	if p.ProblemComplexity != nil {
		s.ProblemComplexity = *p.ProblemComplexity
		s.ComplexityHistory = append(s.ComplexityHistory, *p.ProblemComplexity)
	}
	if p.ErrorDAG != nil {
		s.ErrorDAG = p.ErrorDAG
	}
	if p.CurrentNodeID != nil {
		s.CurrentNodeID = *p.CurrentNodeID
	}
	if p.IsAtomic != nil {
		s.IsAtomic = *p.IsAtomic
	}
	if p.CurrentLogText != nil {
		s.CurrentLogText = *p.CurrentLogText
	}
	if p.CurrentErrorFactID != nil {
		s.CurrentErrorFactID = *p.CurrentErrorFactID
	}
	for _, f := range p.AppendFeedback {
		s.AppendFeedback(f)
	}
	for _, h := range p.AppendHistory {
		if h.Timestamp.IsZero() {
			h.Timestamp = time.Now()
		}
		s.AppendHistory(h)
	}
	s.SolvedNodes = append(s.SolvedNodes, p.AppendSolved...)
	for path, fc := range p.FilesSet {
		s.Files[path] = fc
	}
	for _, path := range p.ReservePaths {
		s.ReservePath(path)
	}
	for _, path := range p.ReleasePaths {
		s.ReleasePath(path)
	}
	if p.LLMMetric != nil {
		s.LLMMetrics = append(s.LLMMetrics, *p.LLMMetric)
		s.TotalCostAccumulated += p.LLMMetric.CostUSD
		s.TotalLatencyAccumulated += p.LLMMetric.LatencyMs
	}
	if p.Reward != nil {
		s.RewardHistory = append(s.RewardHistory, *p.Reward)
	}
	if p.LoopDetected != nil {
		s.LoopDetected = *p.LoopDetected
	}
	if p.LoopGuidance != nil {
		s.LoopGuidance = *p.LoopGuidance
	}
	if p.EnvRecoveryAttempted != nil {
		s.EnvRecoveryAttemptedThisIteration = *p.EnvRecoveryAttempted
	}
	if p.FailureReason != nil {
		s.FailureReason = *p.FailureReason
	}
}
