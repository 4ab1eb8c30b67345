package query

import (
	"github.com/dmaclachlan/appgraph/internal/graph"
)

// Direction selects which way Walk follows edges.
type Direction int

const (
	// Parents follows incoming edges to predecessors.
	Parents Direction = iota
	// Children follows outgoing edges to successors.
	Children
)

// Step is one neighbor encountered during a walk.
type Step struct {
	// Depth is the expansion level, 1 for direct neighbors.
	Depth int

	// Key is the neighbor's node key.
	Key string

	// Node is the neighbor, nil when nothing ever mentioned it beyond
	// the referencing edge.
	Node *graph.Node

	// Data is the annotated node data; nil for undefined references.
	Data map[string]string

	// Edges holds every parallel edge connecting the walked node to
	// this neighbor, in insertion order.
	Edges []*graph.Edge

	// Revisited marks a neighbor that was already expanded elsewhere
	// in this walk. It is shown again but not expanded.
	Revisited bool

	// Undefined marks a neighbor no record ever defined. The branch
	// ends here.
	Undefined bool
}

// Walk traverses the graph from start in one direction, calling visit
// for every neighbor encountered. maxDepth bounds expansion, 0 means
// unbounded. Neighbors of an ignored kind are skipped entirely. The
// start node itself is not emitted.
func Walk(g *graph.Graph, start string, dir Direction, maxDepth int, ignore []string, visit func(Step)) {
	visited := map[string]bool{start: true}
	walk(g, start, dir, 1, maxDepth, ignoreSet(ignore), visited, visit)
}

func walk(g *graph.Graph, current string, dir Direction, depth, maxDepth int, ignored, visited map[string]bool, visit func(Step)) {
	var neighbors []string
	if dir == Parents {
		neighbors = g.Predecessors(current)
	} else {
		neighbors = g.Successors(current)
	}

	for _, key := range neighbors {
		node := g.Node(key)
		if node != nil && ignored[string(node.Kind)] {
			continue
		}

		var edges []*graph.Edge
		if dir == Parents {
			edges = g.EdgesBetween(key, current)
		} else {
			edges = g.EdgesBetween(current, key)
		}

		if node == nil || !node.Defined() {
			visit(Step{Depth: depth, Key: key, Node: node, Edges: edges, Undefined: true})
			continue
		}

		visit(Step{
			Depth:     depth,
			Key:       key,
			Node:      node,
			Data:      Annotate(g, key),
			Edges:     edges,
			Revisited: visited[key],
		})

		if !visited[key] && (maxDepth == 0 || maxDepth > depth) {
			visited[key] = true
			walk(g, key, dir, depth+1, maxDepth, ignored, visited, visit)
		}
	}
}
