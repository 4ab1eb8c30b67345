package ingestion

import (
	"sort"

	"github.com/dmaclachlan/appgraph/internal/graph"
)

// Orphan is a defined artifact that nothing else references.
type Orphan struct {
	Key  string
	Data map[string]string
}

// Orphans reports defined nodes with no incoming edges, sorted by key.
//
// Kinds that are referenced from outside the definition are exempt:
// entities anchor their own subtree, modules are navigation entry
// points, and tests exercise other artifacts without being referenced
// themselves. Aggregation properties only ever point outward, so they
// are exempt too.
func Orphans(g *graph.Graph) []Orphan {
	keys := g.Keys()
	sort.Strings(keys)

	var orphans []Orphan
	for _, key := range keys {
		node := g.Node(key)
		if node == nil || !node.Defined() {
			continue
		}
		if orphanExempt(node) {
			continue
		}
		if in, _ := g.Degrees(key); in > 0 {
			continue
		}
		orphans = append(orphans, Orphan{Key: key, Data: node.Data()})
	}
	return orphans
}

// orphanExempt reports whether a node kind is a reachability root
// rather than a reference target.
func orphanExempt(node *graph.Node) bool {
	switch node.Kind {
	case graph.KindEntity, graph.KindModule, graph.KindTest:
		return true
	}
	return node.Attrs["rule_type"] == "aggregation"
}
