// Package dag provides the directed graph used to order component
// instantiations.
//
// # Overview
//
// A composition instantiates components in an order where every provider
// exists before the consumers that import from it. This package stores that
// relation as an arena graph: nodes are kept in a slice in insertion order
// and edges refer to nodes by ID, so no node holds a pointer to another.
//
// # Basic Usage
//
// Create a new graph with [New], add nodes with [DAG.AddNode], and edges with
// [DAG.AddEdge]. An edge From -> To means From must come before To:
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "backend"})
//	g.AddNode(dag.Node{ID: "frontend"})
//	g.AddEdge(dag.Edge{From: "backend", To: "frontend", Label: "example:backend/api"})
//
// # Ordering and Cycles
//
// [DAG.TopologicalOrder] runs Kahn's algorithm. Nodes that become ready at
// the same time keep their insertion order, so two runs over the same input
// produce the same order.
//
// [DAG.FindCycle] runs a white/gray/black depth-first search and returns the
// offending path. [DAG.Validate] and [DAG.TopologicalOrder] wrap that path in
// a [CycleError], which matches [ErrGraphHasCycle] under errors.Is.
package dag
