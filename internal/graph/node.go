package graph

import "context"

// Node is a tagged-variant step of the state machine. Implementations must
// be pure with respect to GraphState: they read it and return a StatePatch,
// they never mutate it. The only side effects a Run may have are on the
// sandbox/LLM/knowledge-base collaborators passed in through ctx or closed
// over at construction time.
type Node interface {
	Name() Name
	Run(ctx context.Context, state *GraphState) (StatePatch, error)
}

// Registry maps node names to their implementations, mirroring the
// handler-registry pattern: the engine never switches on node
// identity directly, it looks the implementation up.
type Registry struct {
	nodes map[Name]Node
}

func NewRegistry() *Registry {
	return &Registry{nodes: make(map[Name]Node)}
}

func (r *Registry) Register(n Node) {
	r.nodes[n.Name()] = n
}

func (r *Registry) Lookup(name Name) (Node, bool) {
	n, ok := r.nodes[name]
	return n, ok
}
