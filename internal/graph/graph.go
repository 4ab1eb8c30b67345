// Package graph provides the in-memory cross-reference graph for appgraph.
//
// The graph is a directed multigraph: parallel edges between the same
// pair of nodes are preserved and each is independently retrievable.
// Nodes are keyed by stable string identity; adjacency lists keep edge
// insertion order so traversal output is deterministic.
package graph

import (
	"sync"
)

// Graph is an in-memory directed multigraph of application-definition
// artifacts and the references between them.
//
// Nodes are created exactly once during a build and the graph is
// read-only afterwards; the mutex exists so an interactive session can
// be handed a freshly built graph while readers are active.
//
// Adding an edge whose endpoint has no node yet creates an undefined
// placeholder, discoverable later via Undefined or Node.Defined.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges []*Edge

	// Secondary indexes, kept in sync by SetNode and AddEdge.
	byKind   map[Kind]map[string]*Node
	byName   map[string][]*Node
	outgoing map[string][]*Edge
	incoming map[string][]*Edge
}

// New creates a new empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		byKind:   make(map[Kind]map[string]*Node),
		byName:   make(map[string][]*Node),
		outgoing: make(map[string][]*Edge),
		incoming: make(map[string][]*Edge),
	}
}

// SetNode creates the node for key or merges attrs into an existing one.
// The first non-empty kind wins; later calls never change it. Metadata
// records augment entity nodes through this merge path.
func (g *Graph) SetNode(key string, kind Kind, attrs map[string]string) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[key]
	if !ok {
		node = &Node{Key: key}
		g.nodes[key] = node
	}

	if node.Kind == "" && kind != "" {
		node.Kind = kind
		if g.byKind[kind] == nil {
			g.byKind[kind] = make(map[string]*Node)
		}
		g.byKind[kind][key] = node
	}

	if attrs != nil {
		oldName := ""
		if node.Attrs != nil {
			oldName = node.Attrs["name"]
		} else {
			node.Attrs = make(map[string]string, len(attrs))
		}
		for k, v := range attrs {
			node.Attrs[k] = v
		}
		if name := node.Attrs["name"]; name != oldName {
			if oldName != "" {
				g.dropNameIndex(oldName, node)
			}
			if name != "" {
				g.byName[name] = append(g.byName[name], node)
			}
		}
	}

	return node
}

// Node returns the node with the given key, or nil if no edge or record
// ever mentioned it.
func (g *Graph) Node(key string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[key]
}

// HasNode reports whether key exists with record data attached.
func (g *Graph) HasNode(key string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[key]
	return ok && node.Defined()
}

// AddEdge appends a directed edge, creating undefined placeholder nodes
// for endpoints that do not exist yet. The returned edge carries its
// insertion sequence as ID.
func (g *Graph) AddEdge(source, target string, kind Kind, linkType LinkType, attrs map[string]string) *Edge {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureNode(source)
	g.ensureNode(target)

	edge := &Edge{
		ID:       len(g.edges),
		Source:   source,
		Target:   target,
		Kind:     kind,
		LinkType: linkType,
		Attrs:    attrs,
	}
	g.edges = append(g.edges, edge)
	g.outgoing[source] = append(g.outgoing[source], edge)
	g.incoming[target] = append(g.incoming[target], edge)
	return edge
}

// NodeCount returns the number of nodes, placeholders included.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges, parallel edges counted
// individually.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// CountByKind returns the number of defined nodes with the given kind.
func (g *Graph) CountByKind(kind Kind) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byKind[kind])
}

// Keys returns every node key in unspecified order.
func (g *Graph) Keys() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := make([]string, 0, len(g.nodes))
	for key := range g.nodes {
		keys = append(keys, key)
	}
	return keys
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edges := make([]*Edge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// NodesByName returns the defined nodes whose "name" attribute equals
// name. Used for last-resort reference resolution by display name.
func (g *Graph) NodesByName(name string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes, ok := g.byName[name]
	if !ok {
		return nil
	}
	result := make([]*Node, len(nodes))
	copy(result, nodes)
	return result
}

// Outgoing returns the edges originating from key in insertion order.
func (g *Graph) Outgoing(key string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copyEdges(g.outgoing[key])
}

// Incoming returns the edges targeting key in insertion order.
func (g *Graph) Incoming(key string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copyEdges(g.incoming[key])
}

// Successors returns the distinct neighbor keys reachable by outgoing
// edges, in first-edge order.
func (g *Graph) Successors(key string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return neighborKeys(g.outgoing[key], func(e *Edge) string { return e.Target })
}

// Predecessors returns the distinct neighbor keys with edges into key,
// in first-edge order.
func (g *Graph) Predecessors(key string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return neighborKeys(g.incoming[key], func(e *Edge) string { return e.Source })
}

// EdgesBetween returns every parallel edge from source to target in
// insertion order.
func (g *Graph) EdgesBetween(source, target string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []*Edge
	for _, edge := range g.outgoing[source] {
		if edge.Target == target {
			result = append(result, edge)
		}
	}
	return result
}

// Degrees returns the distinct predecessor and successor counts for key.
func (g *Graph) Degrees(key string) (in, out int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	in = len(neighborKeys(g.incoming[key], func(e *Edge) string { return e.Source }))
	out = len(neighborKeys(g.outgoing[key], func(e *Edge) string { return e.Target }))
	return in, out
}

// Undefined returns the keys of nodes that edges reference but no record
// ever populated, in unspecified order.
func (g *Graph) Undefined() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var keys []string
	for key, node := range g.nodes {
		if !node.Defined() {
			keys = append(keys, key)
		}
	}
	return keys
}

// Stats returns the node and edge totals, placeholders included.
func (g *Graph) Stats() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return map[string]int{
		"nodes": len(g.nodes),
		"edges": len(g.edges),
	}
}

// ensureNode creates an undefined placeholder for key if absent.
// Must be called with the write lock held.
func (g *Graph) ensureNode(key string) {
	if _, ok := g.nodes[key]; !ok {
		g.nodes[key] = &Node{Key: key}
	}
}

// dropNameIndex removes node from the byName bucket for name.
// Must be called with the write lock held.
func (g *Graph) dropNameIndex(name string, node *Node) {
	bucket := g.byName[name]
	for i, n := range bucket {
		if n == node {
			g.byName[name] = append(bucket[:i:i], bucket[i+1:]...)
			break
		}
	}
	if len(g.byName[name]) == 0 {
		delete(g.byName, name)
	}
}

func copyEdges(edges []*Edge) []*Edge {
	if edges == nil {
		return nil
	}
	result := make([]*Edge, len(edges))
	copy(result, edges)
	return result
}

func neighborKeys(edges []*Edge, endpoint func(*Edge) string) []string {
	var keys []string
	seen := make(map[string]bool, len(edges))
	for _, edge := range edges {
		key := endpoint(edge)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}
