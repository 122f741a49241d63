package graph

import (
	"context"
	"fmt"
	"time"
)

// Observer is a pure callback invoked exactly once per transition, in the
// order transitions occur. It must not mutate the state it is given.
type Observer func(Snapshot)

// transitions enumerates the permitted Name -> Name edges. "any" (modeled
// as a wildcard check in allowed) may always fall through to FAILURE.
var transitions = map[Name][]Name{
	NodeInitial:      {NodeAnalysis},
	NodeAnalysis:     {NodePlanning, NodeFailure},
	NodePlanning:     {NodeExecution, NodeAnalysis},
	NodeExecution:    {NodeVerification, NodeAnalysis},
	NodeVerification: {NodeSuccess, NodeAnalysis, NodeEnvRecovery},
	NodeEnvRecovery:  {NodeVerification},
}

func allowed(from, to Name) bool {
	if to == NodeFailure || to == NodeStopped {
		return true
	}
	for _, n := range transitions[from] {
		if n == to {
			return true
		}
	}
	return false
}

// Engine dispatches a GraphState through the node registry until it
// reaches SUCCESS, FAILURE, or STOPPED.
type Engine struct {
	registry *Registry
	observer Observer
}

func NewEngine(registry *Registry, observer Observer) *Engine {
	if observer == nil {
		observer = func(Snapshot) {}
	}
	return &Engine{registry: registry, observer: observer}
}

// Run drives state from INITIAL to a terminal node. It returns the
// terminal Outcome; state.Status/FailureReason carry the detail.
func (e *Engine) Run(ctx context.Context, state *GraphState) Outcome {
	state.CurrentNode = NodeAnalysis
	e.publish(state)

	for {
		if err := ctx.Err(); err != nil {
			state.Status = StatusStopped
			state.FailureReason = "cancelled: " + err.Error()
			e.terminal(state, NodeStopped)
			return OutcomeStopped
		}

		switch state.CurrentNode {
		case NodeSuccess:
			state.Status = StatusSuccess
			e.terminal(state, NodeSuccess)
			return OutcomeSuccess
		case NodeFailure:
			state.Status = StatusFailed
			e.terminal(state, NodeFailure)
			return OutcomeFailed
		case NodeStopped:
			state.Status = StatusStopped
			e.terminal(state, NodeStopped)
			return OutcomeStopped
		}

		if state.Iteration >= state.MaxIterations {
			state.Status = StatusFailed
			if state.FailureReason == "" {
				state.FailureReason = fmt.Sprintf("iteration budget exhausted (%d/%d)", state.Iteration, state.MaxIterations)
			}
			e.terminal(state, NodeFailure)
			return OutcomeFailed
		}

		node, ok := e.registry.Lookup(state.CurrentNode)
		if !ok {
			state.Status = StatusFailed
			state.FailureReason = fmt.Sprintf("no handler registered for node %q", state.CurrentNode)
			e.terminal(state, NodeFailure)
			return OutcomeFailed
		}

		from := state.CurrentNode
		patch, err := node.Run(ctx, state)
		if err != nil {
			state.Status = StatusFailed
			state.FailureReason = err.Error()
			e.terminal(state, NodeFailure)
			return OutcomeFailed
		}

		if !allowed(from, patch.Next) {
			state.Status = StatusFailed
			state.FailureReason = fmt.Sprintf("illegal transition %s -> %s", from, patch.Next)
			e.terminal(state, NodeFailure)
			return OutcomeFailed
		}

		if from == NodeVerification && patch.Next == NodeAnalysis {
			state.Iteration++
		}

		state.Apply(patch)
		state.CurrentNode = patch.Next
		e.publish(state)
	}
}

func (e *Engine) publish(state *GraphState) {
	e.observer(Snapshot{Node: state.CurrentNode, State: state})
}

// terminal sets CurrentNode to the terminal name and publishes once more so
// the observer's final callback always carries SUCCESS/FAILURE/STOPPED,
// as the final state of every completed run.
func (e *Engine) terminal(state *GraphState, name Name) {
	state.CurrentNode = name
	e.publish(state)
}

// DeadlineFor returns a context bounded by the given timeout, used by
// callers at each suspension point (LLM calls, sandbox commands).
func DeadlineFor(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
