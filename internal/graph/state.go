// Package graph implements the repair-loop finite state machine: a
// deterministic dispatcher over tagged-variant nodes that mutate a shared
// GraphState through explicit, returned patches.
package graph

import "time"

// Status is the terminal/non-terminal status of a GraphState.
type Status string

const (
	StatusWorking Status = "working"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusStopped Status = "stopped"
)

// Name identifies a node in the state machine.
type Name string

const (
	NodeInitial      Name = "INITIAL"
	NodeAnalysis     Name = "ANALYSIS"
	NodePlanning     Name = "PLANNING"
	NodeExecution    Name = "EXECUTION"
	NodeVerification Name = "VERIFICATION"
	NodeEnvRecovery  Name = "ENV_RECOVERY"
	NodeSuccess      Name = "SUCCESS"
	NodeFailure      Name = "FAILURE"
	NodeStopped      Name = "STOPPED"
)

// FileStatus is the disposition of a FileChange.
type FileStatus string

const (
	FileModified FileStatus = "modified"
	FileCreated  FileStatus = "created"
	FileDeleted  FileStatus = "deleted"
)

// FileVersion is one side (original or modified) of a FileChange.
type FileVersion struct {
	Content  string
	Language string
	Name     string
}

// FileChange records the before/after of a single file touched during a run.
// Invariant: Status == FileCreated implies Original.Content == "".
type FileChange struct {
	Path     string
	Original FileVersion
	Modified FileVersion
	Status   FileStatus
}

// ClassifiedError is the output of the Analysis node's classification step.
type ClassifiedError struct {
	Category          ErrorCategory
	Confidence        float64
	AffectedFiles     []string
	RootCauseLog      string
	ErrorMessage      string
	SuggestedAction   string
	HistoricalMatches []string
	Priority          int // 0..10
}

// ErrorCategory is the closed enumeration of recognized failure categories.
type ErrorCategory string

const (
	CategorySyntax              ErrorCategory = "syntax"
	CategoryRuntime             ErrorCategory = "runtime"
	CategoryLogic               ErrorCategory = "logic"
	CategoryDependency          ErrorCategory = "dependency"
	CategoryDependencyConflict  ErrorCategory = "dependency_conflict"
	CategoryType                ErrorCategory = "type"
	CategoryImport              ErrorCategory = "import"
	CategoryNetwork             ErrorCategory = "network"
	CategoryDiskSpace           ErrorCategory = "disk_space"
	CategoryEnvironmentUnstable ErrorCategory = "environment_unstable"
	CategoryTestFailure         ErrorCategory = "test_failure"
	CategoryUnknown             ErrorCategory = "unknown"
)

// FixAction is the kind of artifact the Execution node must produce.
type FixAction string

const (
	FixEdit    FixAction = "edit"
	FixCreate  FixAction = "create"
	FixCommand FixAction = "command"
)

// Diagnosis is the Analysis node's proposed remedy.
type Diagnosis struct {
	Summary             string
	FilePath            string
	FixAction           FixAction
	SuggestedCommand    string
	ReproductionCommand string
	Confidence          float64
	Approved            bool
}

// DAGNode is one atom of a decomposed multi-error diagnosis.
type DAGNode struct {
	ID            string
	Problem       string
	Dependencies  []string
	Status        string // open, in_progress, solved
	Complexity    int
	Priority      int
	AffectedFiles []string
}

// ErrorDAG is a directed acyclic graph of sub-problems produced by Planning
// when a diagnosis's complexity crosses the decomposition threshold.
type ErrorDAG struct {
	Nodes []DAGNode
	Edges [][2]string // [source, target], source depends on target
}

// HistoryEntry is one structured trail entry appended as nodes run.
type HistoryEntry struct {
	Node      Name
	Action    string
	Result    string
	Timestamp time.Time
}

// LLMMetric records one generate() call's accounting.
type LLMMetric struct {
	Model     string
	InputTok  int
	OutputTok int
	CostUSD   float64
	LatencyMs int64
}

// GraphState is the complete mutable state of one repair run. It is owned
// exclusively by the engine; nodes only ever observe it and return patches.
type GraphState struct {
	// control
	CurrentNode   Name
	Iteration     int
	MaxIterations int
	Status        Status
	FailureReason string

	// artifacts
	Classification          *ClassifiedError
	Diagnosis               *Diagnosis
	Plan                    string
	ProblemComplexity       int
	ComplexityHistory       []int
	ErrorDAG                *ErrorDAG
	SolvedNodes             []string
	CurrentNodeID           string
	IsAtomic                bool
	RefinedProblemStatement string
	CurrentErrorFactID      string

	// data
	InitialLogText    string
	CurrentLogText    string
	InitialRepoContext string
	Feedback          []string
	History           []HistoryEntry

	// I/O
	Files            map[string]*FileChange
	FileReservations map[string]struct{}

	// budget
	BudgetRemaining         *float64
	TotalCostAccumulated    float64
	TotalLatencyAccumulated int64
	LLMMetrics              []LLMMetric

	// learning
	RewardHistory  []float64
	SelectedModel  string
	SelectedTools  []string

	// loop detection
	LoopDetected bool
	LoopGuidance string

	// env recovery bookkeeping: at most one attempt per iteration
	EnvRecoveryAttemptedThisIteration bool
}

// LowPriorityThreshold is the classification-priority cutoff below which
// the Analysis node feeds LowPriorityMaxIterations back into the engine
// as a lowered iteration ceiling, once a classification is known.
const LowPriorityThreshold = 5

// LowPriorityMaxIterations is the iteration ceiling a low-priority
// classification caps the budget at.
const LowPriorityMaxIterations = 3

// NewGraphState builds a fresh state at INITIAL with the given log text and
// iteration budget. lowPriority caps the budget at LowPriorityMaxIterations
// up front, for callers that already know the priority is low before the
// first classification runs; otherwise the cap is applied later by the
// Analysis node's first StatePatch once the classification is known.
func NewGraphState(logText, repoContext string, maxIterations int, lowPriority bool) *GraphState {
	if lowPriority && maxIterations > LowPriorityMaxIterations {
		maxIterations = LowPriorityMaxIterations
	}
	return &GraphState{
		CurrentNode:        NodeInitial,
		MaxIterations:      maxIterations,
		Status:             StatusWorking,
		InitialLogText:     logText,
		CurrentLogText:     logText,
		InitialRepoContext: repoContext,
		Files:              make(map[string]*FileChange),
		FileReservations:   make(map[string]struct{}),
	}
}

// ReservePath adds path to the advisory reservation set. No-op if already
// reserved.
func (s *GraphState) ReservePath(path string) {
	s.FileReservations[path] = struct{}{}
}

// ReleasePath clears a reservation.
func (s *GraphState) ReleasePath(path string) {
	delete(s.FileReservations, path)
}

// ReservedPaths returns the reservation set as a sorted-independent slice
// (order is not meaningful).
func (s *GraphState) ReservedPaths() []string {
	out := make([]string, 0, len(s.FileReservations))
	for p := range s.FileReservations {
		out = append(out, p)
	}
	return out
}

// AppendFeedback records a note read by subsequent node invocations.
func (s *GraphState) AppendFeedback(note string) {
	s.Feedback = append(s.Feedback, note)
}

// AppendHistory records a structured trail entry. The timestamp must be
// supplied by the caller (the engine stamps it at apply time) since nodes
// themselves must stay pure.
func (s *GraphState) AppendHistory(e HistoryEntry) {
	s.History = append(s.History, e)
}
