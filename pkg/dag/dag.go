package dag

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrGraphHasCycle is matched by every [CycleError]. Cycles are detected
	// using depth-first search with white/gray/black coloring.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Metadata stores arbitrary key-value pairs attached to nodes, edges or the
// graph. Metadata maps are never nil after insertion.
type Metadata map[string]any

// Node is a vertex of the graph.
//
// The zero value is not usable - ID must be set before adding to a DAG.
type Node struct {
	ID   string   // Unique identifier (also used as display label)
	Meta Metadata // Arbitrary key-value metadata (never nil after AddNode)
}

// Edge is a directed "must come before" relation: From is ordered before To.
// Label is free-form and typically names the import slot the edge satisfies.
type Edge struct {
	From  string
	To    string
	Label string
	Meta  Metadata
}

// CycleError reports a cycle. Path lists the nodes along the cycle and
// repeats the first node at the end, e.g. [a b c a].
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrGraphHasCycle.Error(), strings.Join(e.Path, " -> "))
}

// Is lets errors.Is(err, ErrGraphHasCycle) match any CycleError.
func (e *CycleError) Is(target error) bool { return target == ErrGraphHasCycle }

// DAG is a directed graph stored as an arena: nodes live in a slice in
// insertion order and are addressed by ID through an index. Edges are plain
// ID pairs, so the graph owns no pointers between nodes.
//
// Despite the name, a DAG may contain cycles while it is being built; use
// [DAG.Validate] or [DAG.TopologicalOrder] to check.
//
// The zero value is not usable - use New to create a valid DAG instance.
// DAG is not safe for concurrent use without external synchronization.
type DAG struct {
	nodes    []Node
	index    map[string]int
	edges    []Edge
	outgoing map[string][]string
	incoming map[string][]string
	meta     Metadata
}

// New creates an empty DAG with optional graph-level metadata.
func New(meta Metadata) *DAG {
	if meta == nil {
		meta = Metadata{}
	}
	return &DAG{
		index:    make(map[string]int),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		meta:     meta,
	}
}

// Meta returns the graph-level metadata map.
func (d *DAG) Meta() Metadata { return d.meta }

// AddNode appends a node. Returns ErrInvalidNodeID if the ID is empty, or
// ErrDuplicateNodeID if a node with the same ID already exists.
func (d *DAG) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := d.index[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	d.index[n.ID] = len(d.nodes)
	d.nodes = append(d.nodes, n)
	return nil
}

// AddEdge adds a directed edge between two existing nodes. Multiple edges
// between the same pair are allowed (one per satisfied slot); adjacency
// lists record each neighbor once.
func (d *DAG) AddEdge(e Edge) error {
	if _, ok := d.index[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.index[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	d.edges = append(d.edges, e)
	if !slices.Contains(d.outgoing[e.From], e.To) {
		d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
		d.incoming[e.To] = append(d.incoming[e.To], e.From)
	}
	return nil
}

// Node returns the node with the given ID.
func (d *DAG) Node(id string) (Node, bool) {
	i, ok := d.index[id]
	if !ok {
		return Node{}, false
	}
	return d.nodes[i], true
}

// Nodes returns all nodes in insertion order.
func (d *DAG) Nodes() []Node { return slices.Clone(d.nodes) }

// Edges returns a copy of all edges in insertion order.
func (d *DAG) Edges() []Edge { return slices.Clone(d.edges) }

// NodeCount returns the number of nodes.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// EdgeCount returns the number of edges.
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Children returns the IDs of nodes reachable by one outgoing edge.
func (d *DAG) Children(id string) []string { return d.outgoing[id] }

// Parents returns the IDs of nodes with an edge into id.
func (d *DAG) Parents(id string) []string { return d.incoming[id] }

// InDegree returns the number of distinct parents of a node.
func (d *DAG) InDegree(id string) int { return len(d.incoming[id]) }

// OutDegree returns the number of distinct children of a node.
func (d *DAG) OutDegree(id string) int { return len(d.outgoing[id]) }

// Sources returns nodes with no incoming edges, in insertion order.
func (d *DAG) Sources() []Node {
	var out []Node
	for _, n := range d.nodes {
		if len(d.incoming[n.ID]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Sinks returns nodes with no outgoing edges, in insertion order.
func (d *DAG) Sinks() []Node {
	var out []Node
	for _, n := range d.nodes {
		if len(d.outgoing[n.ID]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Validate checks that the graph is acyclic. It returns a *CycleError
// describing the first cycle found.
func (d *DAG) Validate() error {
	if path := d.FindCycle(); path != nil {
		return &CycleError{Path: path}
	}
	return nil
}

// FindCycle returns one cycle as a closed path (first node repeated at the
// end), or nil when the graph is acyclic. Nodes are visited in insertion
// order so the reported cycle is deterministic.
func (d *DAG) FindCycle() []string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(d.nodes))
	var stack []string
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, child := range d.outgoing[id] {
			switch color[child] {
			case white:
				if dfs(child) {
					return true
				}
			case gray:
				start := slices.Index(stack, child)
				cycle = append(slices.Clone(stack[start:]), child)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, n := range d.nodes {
		if color[n.ID] == white && dfs(n.ID) {
			return cycle
		}
	}
	return nil
}

// TopologicalOrder returns node IDs such that every edge's From precedes its
// To, using Kahn's algorithm. Nodes that become ready together keep their
// insertion order, so the result is deterministic. A cyclic graph yields a
// *CycleError.
func (d *DAG) TopologicalOrder() ([]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for _, n := range d.nodes {
		inDegree[n.ID] = len(d.incoming[n.ID])
	}

	ready := make([]string, 0, len(d.nodes))
	for _, n := range d.nodes {
		if inDegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	order := make([]string, 0, len(d.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var next []string
		for _, child := range d.outgoing[id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				next = append(next, child)
			}
		}
		slices.SortFunc(next, func(a, b string) int { return d.index[a] - d.index[b] })
		ready = append(ready, next...)
	}

	if len(order) != len(d.nodes) {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		return nil, ErrGraphHasCycle
	}
	return order, nil
}

// PosMap creates a position lookup map from a slice of node IDs.
func PosMap(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}

// NodeIDs extracts the IDs from a slice of nodes, preserving order.
func NodeIDs(nodes []Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
