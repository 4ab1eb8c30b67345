package ingestion

import (
	"sort"

	"github.com/dmaclachlan/appgraph/internal/graph"
)

// Missing describes one node that edges reference but no record ever
// defined, together with every node that references it.
type Missing struct {
	Key     string
	Callers []Caller
}

// Caller is one defined node referencing a missing one, with the
// parallel edges it does so through.
type Caller struct {
	Key   string
	Data  map[string]string
	Edges []map[string]string
}

// MissingData reports the graph's undefined references, sorted by key.
// Callers with no data of their own are left out, as chains of
// undefined references say nothing about where the data should have
// come from.
func MissingData(g *graph.Graph) []Missing {
	keys := g.Undefined()
	sort.Strings(keys)

	report := make([]Missing, 0, len(keys))
	for _, key := range keys {
		missing := Missing{Key: key}
		for _, caller := range g.Predecessors(key) {
			node := g.Node(caller)
			if node == nil || !node.Defined() {
				continue
			}
			c := Caller{Key: caller, Data: node.Data()}
			for _, edge := range g.EdgesBetween(caller, key) {
				c.Edges = append(c.Edges, edge.Data())
			}
			missing.Callers = append(missing.Callers, c)
		}
		report = append(report, missing)
	}
	return report
}
