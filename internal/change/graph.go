package change

import "fmt"

// node is one member of a ChangeGraph: a Change plus the indices of its
// parent nodes within the same graph.
type node struct {
	change  Change
	parents []int // indices into Graph.nodes; first-parent is index 0 of this slice
}

// Graph is a directed acyclic graph of Change nodes. Edges point from
// child to parent, mirroring the VCS's own parent pointers: a node's
// parent list order matches the VCS's parent order, so first-parent is
// always parents[0]. Graph is built only through a GraphBuilder; once
// returned by Build it is immutable.
//
// Internal representation is a flat node array plus per-node parent
// index lists, so there is no cyclic ownership between nodes (cf.
// go-git-repograph's map[string]*Commit with *Commit parent pointers,
// which this deliberately avoids in favor of index-based edges that are
// trivially walked without recursion).
type Graph struct {
	nodes   []node
	indexOf map[string]int // Revision.AsString() -> index
}

// Len returns the number of change nodes in the graph.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

// Has reports whether rev names a node in this graph.
func (g *Graph) Has(rev Revision) bool {
	if g == nil {
		return false
	}
	_, ok := g.indexOf[rev.AsString()]
	return ok
}

// Change returns the Change stored for rev.
func (g *Graph) Change(rev Revision) (Change, bool) {
	if g == nil {
		return Change{}, false
	}
	i, ok := g.indexOf[rev.AsString()]
	if !ok {
		return Change{}, false
	}
	return g.nodes[i].change, true
}

// Parents returns the parent revisions of rev, in VCS parent order
// (first-parent first). Parents outside the graph's node set are not
// included — the graph is closed under its own membership.
func (g *Graph) Parents(rev Revision) ([]Revision, bool) {
	if g == nil {
		return nil, false
	}
	i, ok := g.indexOf[rev.AsString()]
	if !ok {
		return nil, false
	}
	parents := make([]Revision, len(g.nodes[i].parents))
	for k, pi := range g.nodes[i].parents {
		parents[k] = g.nodes[pi].change.Revision
	}
	return parents, true
}

// Revisions returns every revision in the graph, in the order nodes
// were added by the builder (child-first, as the VCS enumerated them).
func (g *Graph) Revisions() []Revision {
	if g == nil {
		return nil
	}
	out := make([]Revision, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.change.Revision
	}
	return out
}

// ReverseTopological returns the graph's changes in ancestor-before-
// descendant order: every change appears after all of its parents that
// are members of the graph. This is the order the Run Helper's
// getChanges linearizes into (spec: "ancestor->descendant, i.e. oldest
// first").
func (g *Graph) ReverseTopological() []Change {
	if g == nil || len(g.nodes) == 0 {
		return nil
	}

	// Kahn's algorithm: a node becomes ready once every one of its
	// parents (within the graph) has already been emitted. childrenOf[pi]
	// lists the nodes that name pi as a parent, so emitting pi decrements
	// remainingParents for each of pi's children.
	childrenOf := make([][]int, len(g.nodes))
	for i, n := range g.nodes {
		for _, pi := range n.parents {
			childrenOf[pi] = append(childrenOf[pi], i)
		}
	}

	remainingParents := make([]int, len(g.nodes))
	for i, n := range g.nodes {
		remainingParents[i] = len(n.parents)
	}

	var ready []int
	for i := range g.nodes {
		if remainingParents[i] == 0 {
			ready = append(ready, i)
		}
	}

	out := make([]Change, 0, len(g.nodes))
	emitted := make([]bool, len(g.nodes))
	for len(ready) > 0 {
		i := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		if emitted[i] {
			continue
		}
		emitted[i] = true
		out = append(out, g.nodes[i].change)

		for _, ci := range childrenOf[i] {
			remainingParents[ci]--
			if remainingParents[ci] == 0 {
				ready = append(ready, ci)
			}
		}
	}

	return out
}

// GraphBuilder assembles a Graph from a topologically ordered
// (child-first) stream of raw changes, the same shape the VCS log
// returns: newest first, parents already visited or about to be added.
//
// Mirrors the "Change-graph construction" paragraph of the Origin
// Reader design: add the node, then for each parent look up its index;
// if present, record the edge; parents outside the result set are
// silently dropped so the graph stays closed under its own membership.
type pendingNode struct {
	change     Change
	parentRevs []Revision
}

type GraphBuilder struct {
	pending []pendingNode
	indexOf map[string]int
}

// NewGraphBuilder creates an empty builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{indexOf: make(map[string]int)}
}

// AddChange records a change node and the parent revisions the VCS
// reported for it. Edges are resolved at Build time against the full
// node set, so parents may be added before or after their children —
// the Origin Reader's log order (commits come back child-first) need
// not be massaged into any particular order here. Adding the same
// revision twice is an error: the VCS never re-emits a commit it
// already returned within one enumeration.
func (b *GraphBuilder) AddChange(c Change, parentRevs []Revision) error {
	key := c.Revision.AsString()
	if _, exists := b.indexOf[key]; exists {
		return fmt.Errorf("change graph: revision %q added twice", key)
	}

	b.indexOf[key] = len(b.pending)
	b.pending = append(b.pending, pendingNode{change: c, parentRevs: parentRevs})
	return nil
}

// Build finalizes the graph, wiring each node's parent edges against
// the complete node set and dropping any parent revision that was
// never added — "the graph is closed under the returned node set".
// The builder must not be reused afterward.
func (b *GraphBuilder) Build() *Graph {
	nodes := make([]node, len(b.pending))
	for i, p := range b.pending {
		var parents []int
		for _, pr := range p.parentRevs {
			if pi, ok := b.indexOf[pr.AsString()]; ok {
				parents = append(parents, pi)
			}
			// Parent outside the returned node set: dropped, per spec.
		}
		nodes[i] = node{change: p.change, parents: parents}
	}
	return &Graph{nodes: nodes, indexOf: b.indexOf}
}
