// Package planning implements the planning node: path
// reservation, complexity-triggered DAG decomposition with cycle
// rejection, and DAG-node scheduling.
package planning

import (
	"fmt"
	"sort"

	"github.com/repairloop/agent/internal/graph"
)

// ThresholdDecompose is the complexity score at or above which a diagnosis is
// decomposed into a DAG of sub-problems instead of tackled whole.
const ThresholdDecompose = 7

// ErrCycle is returned by BuildDAG when the proposed dependency edges
// contain a cycle.
type ErrCycle struct{ Node string }

func (e ErrCycle) Error() string { return fmt.Sprintf("planning: cycle detected at node %q", e.Node) }

// BuildDAG validates nodes as a DAG via topological sort, refusing any
// back-edge.
func BuildDAG(nodes []graph.DAGNode) (*graph.ErrorDAG, error) {
	byID := make(map[string]graph.DAGNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case gray:
			return ErrCycle{Node: id}
		case black:
			return nil
		}
		color[id] = gray
		for _, dep := range byID[id].Dependencies {
			if _, ok := byID[dep]; !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids) // deterministic visit order
	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	var edges [][2]string
	for _, n := range nodes {
		for _, dep := range n.Dependencies {
			edges = append(edges, [2]string{n.ID, dep})
		}
	}
	return &graph.ErrorDAG{Nodes: nodes, Edges: edges}, nil
}

// SelectNext picks the next currentNodeId: highest priority among nodes
// whose dependencies are all in solvedNodes, tie-broken by lowest
// complexity, then lexicographically-earliest id.
func SelectNext(dag *graph.ErrorDAG, solvedNodes []string) (graph.DAGNode, bool) {
	solved := make(map[string]struct{}, len(solvedNodes))
	for _, id := range solvedNodes {
		solved[id] = struct{}{}
	}

	var eligible []graph.DAGNode
	for _, n := range dag.Nodes {
		if _, already := solved[n.ID]; already {
			continue
		}
		if dependenciesSatisfied(n, solved) {
			eligible = append(eligible, n)
		}
	}
	if len(eligible) == 0 {
		return graph.DAGNode{}, false
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Complexity != b.Complexity {
			return a.Complexity < b.Complexity
		}
		return a.ID < b.ID
	})
	return eligible[0], true
}

func dependenciesSatisfied(n graph.DAGNode, solved map[string]struct{}) bool {
	for _, dep := range n.Dependencies {
		if _, ok := solved[dep]; !ok {
			return false
		}
	}
	return true
}
