// Package depgraph implements the inter-error dependency tracker: a graph
// of ErrorDependency edges over ErrorFact nodes, with scheduling helpers
// that keep ANALYSIS from looping on blocked work.
package depgraph

import (
	"fmt"

	"github.com/repairloop/agent/internal/knowledge"
)

// RelationshipType is the closed enum of ErrorDependency edge kinds.
type RelationshipType string

const (
	RelationBlocks         RelationshipType = "blocks"
	RelationDiscoveredFrom RelationshipType = "discovered_from"
	RelationRelated        RelationshipType = "related"
	RelationParentChild    RelationshipType = "parent_child"
)

// Edge is one ErrorDependency row, as returned by the inspection methods.
type Edge struct {
	Source   string
	Target   string
	Type     RelationshipType
	Metadata string
}

// Tracker owns dependency-graph scheduling over the ErrorDependency and
// ErrorFact tables in the shared knowledge store. Edges and fact status are
// both read from and written to the store directly, so they survive
// process restarts and are shared the same way the rest of the knowledge
// base is.
type Tracker struct {
	store *knowledge.Store
}

func New(store *knowledge.Store) *Tracker {
	return &Tracker{store: store}
}

// RecordErrorDependency is idempotent: recording the same (source, target,
// type) triple twice is a no-op. Self-loops are rejected. A "blocks" edge
// also sets the source's status to blocked.
//
// Note on naming: the invariant "no ErrorDependency has
// source == target" and describes `blocks` as setting `source.status =
// blocked` — read literally this blocks the *dependent* (the one that
// cannot proceed until its dependency resolves), which is also how
// getBlockedErrors/markErrorResolved below are defined (an error is
// blocked by an unresolved ancestor it depends on). We therefore store the
// edge as source "depends on" target, and blocking the source is correct:
// the source is blocked until the target resolves.
func (t *Tracker) RecordErrorDependency(source, target string, relType RelationshipType, metadata string) error {
	if source == target {
		return fmt.Errorf("depgraph: self-loop rejected for %s", source)
	}
	if err := t.store.InsertErrorDependency(knowledge.ErrorDependency{
		SourceErrorID: source,
		TargetErrorID: target,
		RelationType:  string(relType),
		Metadata:      metadata,
	}); err != nil {
		return err
	}
	if relType == RelationBlocks {
		if err := t.store.SetErrorFactStatus(source, knowledge.ErrorBlocked); err != nil {
			return fmt.Errorf("depgraph: mark %s blocked: %w", source, err)
		}
	}
	return nil
}

// GetBlockedErrors returns every error ID with at least one unresolved
// "blocks" ancestor (i.e. it is the source of a blocks edge whose target
// has not been resolved).
func (t *Tracker) GetBlockedErrors() ([]string, error) {
	edges, err := t.store.ListErrorDependencies()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, e := range edges {
		if e.RelationType != string(RelationBlocks) {
			continue
		}
		target, err := t.store.GetErrorFact(e.TargetErrorID)
		if err != nil {
			continue
		}
		if target.Status != knowledge.ErrorResolved {
			if _, ok := seen[e.SourceErrorID]; !ok {
				seen[e.SourceErrorID] = struct{}{}
				out = append(out, e.SourceErrorID)
			}
		}
	}
	return out, nil
}

// GetReadyErrors returns those of candidateIDs that belong to runID, are
// open or in_progress, and have no unresolved blocking ancestor. Errors of
// the run that are not listed in candidateIDs are not considered.
func (t *Tracker) GetReadyErrors(runID string, candidateIDs []string) ([]string, error) {
	blocked, err := t.GetBlockedErrors()
	if err != nil {
		return nil, err
	}
	blockedSet := make(map[string]struct{}, len(blocked))
	for _, id := range blocked {
		blockedSet[id] = struct{}{}
	}

	var ready []string
	for _, id := range candidateIDs {
		f, err := t.store.GetErrorFact(id)
		if err != nil {
			continue
		}
		if f.RunID != runID {
			continue
		}
		if f.Status != knowledge.ErrorOpen && f.Status != knowledge.ErrorInProgress {
			continue
		}
		if _, isBlocked := blockedSet[id]; isBlocked {
			continue
		}
		ready = append(ready, id)
	}
	return ready, nil
}

// MarkErrorResolved sets id's status to resolved and reopens every error
// that was blocked *only* by id.
func (t *Tracker) MarkErrorResolved(id string, resolution string) error {
	if err := t.store.SetErrorFactStatus(id, knowledge.ErrorResolved); err != nil {
		return err
	}

	edges, err := t.store.ListErrorDependencies()
	if err != nil {
		return err
	}

	// Candidates: every distinct source of a blocks edge targeting id.
	candidates := make(map[string]struct{})
	for _, e := range edges {
		if e.RelationType == string(RelationBlocks) && e.TargetErrorID == id {
			candidates[e.SourceErrorID] = struct{}{}
		}
	}

	for source := range candidates {
		blockedByOthers := false
		for _, e := range edges {
			if e.RelationType != string(RelationBlocks) || e.SourceErrorID != source || e.TargetErrorID == id {
				continue
			}
			target, err := t.store.GetErrorFact(e.TargetErrorID)
			if err != nil {
				continue
			}
			if target.Status != knowledge.ErrorResolved {
				blockedByOthers = true
				break
			}
		}
		if !blockedByOthers {
			if err := t.store.SetErrorFactStatus(source, knowledge.ErrorOpen); err != nil {
				return err
			}
		}
	}
	return nil
}

// DependencyGraph is the inspection-friendly view returned by
// BuildDependencyGraph.
type DependencyGraph struct {
	Nodes []string
	Edges []Edge
}

// BuildDependencyGraph returns the nodes and edges touching runID's errors.
func (t *Tracker) BuildDependencyGraph(runID string) (DependencyGraph, error) {
	allEdges, err := t.store.ListErrorDependencies()
	if err != nil {
		return DependencyGraph{}, err
	}

	nodeSet := make(map[string]struct{})
	var edges []Edge
	for _, e := range allEdges {
		source, err1 := t.store.GetErrorFact(e.SourceErrorID)
		target, err2 := t.store.GetErrorFact(e.TargetErrorID)
		belongs := (err1 == nil && source.RunID == runID) || (err2 == nil && target.RunID == runID)
		if !belongs {
			continue
		}
		edges = append(edges, Edge{Source: e.SourceErrorID, Target: e.TargetErrorID, Type: RelationshipType(e.RelationType), Metadata: e.Metadata})
		nodeSet[e.SourceErrorID] = struct{}{}
		nodeSet[e.TargetErrorID] = struct{}{}
	}
	nodes := make([]string, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	return DependencyGraph{Nodes: nodes, Edges: edges}, nil
}

// HasBlockingDependencies is the scheduling hook Analysis calls before
// picking the next error to work.
func (t *Tracker) HasBlockingDependencies(errorFactID string) (bool, error) {
	blocked, err := t.GetBlockedErrors()
	if err != nil {
		return false, err
	}
	for _, id := range blocked {
		if id == errorFactID {
			return true, nil
		}
	}
	return false, nil
}
