package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmaclachlan/appgraph/internal/graph"
)

// cycleGraph wires A <-> B (with parallel edges on the forward leg)
// and a side branch A -> C -> {undefined, image}.
func cycleGraph() *graph.Graph {
	g := graph.New()
	g.SetNode("A", graph.KindEntity, map[string]string{"name": "A"})
	g.SetNode("B", graph.KindFormflow, map[string]string{"name": "B"})
	g.SetNode("C", graph.KindTemplate, map[string]string{"name": "C"})
	g.SetNode("D", graph.KindImage, map[string]string{"name": "D"})

	g.AddEdge("A", "B", graph.KindLink, graph.LinkFormflowEntity, nil)
	g.AddEdge("A", "B", graph.KindLink, graph.LinkTemplateEntity, nil)
	g.AddEdge("B", "A", graph.KindTask, graph.LinkJumpToFormflow, nil)
	g.AddEdge("A", "C", graph.KindLink, graph.LinkTemplateEntity, nil)
	g.AddEdge("C", "missing", graph.KindLink, graph.LinkBackgroundImage, nil)
	g.AddEdge("C", "D", graph.KindLink, graph.LinkStaticImage, nil)
	return g
}

type stepRecord struct {
	key       string
	depth     int
	revisited bool
	undefined bool
	edges     int
}

func record(g *graph.Graph, start string, dir Direction, maxDepth int, ignore []string) []stepRecord {
	var steps []stepRecord
	Walk(g, start, dir, maxDepth, ignore, func(s Step) {
		steps = append(steps, stepRecord{
			key:       s.Key,
			depth:     s.Depth,
			revisited: s.Revisited,
			undefined: s.Undefined,
			edges:     len(s.Edges),
		})
	})
	return steps
}

func TestWalk(t *testing.T) {
	t.Parallel()

	t.Run("ChildrenUnbounded", func(t *testing.T) {
		g := cycleGraph()

		steps := record(g, "A", Children, 0, nil)
		require.Equal(t, []stepRecord{
			{key: "B", depth: 1, edges: 2},
			{key: "A", depth: 2, revisited: true, edges: 1},
			{key: "C", depth: 1, edges: 1},
			{key: "missing", depth: 2, undefined: true, edges: 1},
			{key: "D", depth: 2, edges: 1},
		}, steps)
	})

	t.Run("MaxDepthStopsExpansion", func(t *testing.T) {
		g := cycleGraph()

		steps := record(g, "A", Children, 1, nil)
		require.Len(t, steps, 2)
		assert.Equal(t, "B", steps[0].key)
		assert.Equal(t, "C", steps[1].key)
	})

	t.Run("Parents", func(t *testing.T) {
		g := cycleGraph()

		steps := record(g, "A", Parents, 0, nil)
		require.Equal(t, []stepRecord{
			{key: "B", depth: 1, edges: 1},
			{key: "A", depth: 2, revisited: true, edges: 2},
		}, steps)
	})

	t.Run("IgnoredKindPrunesSubtree", func(t *testing.T) {
		g := cycleGraph()

		steps := record(g, "A", Children, 0, []string{"template"})
		require.Len(t, steps, 2)
		assert.Equal(t, "B", steps[0].key)
		assert.Equal(t, "A", steps[1].key)
	})

	t.Run("UndefinedNeighborIsTerminal", func(t *testing.T) {
		g := graph.New()
		g.SetNode("root", graph.KindEntity, map[string]string{"name": "root"})
		g.AddEdge("root", "ghost", graph.KindLink, graph.LinkFormflowIcon, nil)
		g.AddEdge("ghost", "beyond", graph.KindLink, graph.LinkFormflowIcon, nil)

		steps := record(g, "root", Children, 0, nil)
		require.Len(t, steps, 1)
		assert.Equal(t, "ghost", steps[0].key)
		assert.True(t, steps[0].undefined)
	})

	t.Run("NodeShownAgainWhenNeverExpanded", func(t *testing.T) {
		g := graph.New()
		g.SetNode("A", graph.KindEntity, map[string]string{"name": "A"})
		g.SetNode("B", graph.KindTemplate, map[string]string{"name": "B"})
		g.SetNode("C", graph.KindFormflow, map[string]string{"name": "C"})
		g.AddEdge("A", "C", graph.KindLink, graph.LinkFormflowEntity, nil)
		g.AddEdge("C", "B", graph.KindTask, graph.LinkShowForm, nil)
		g.AddEdge("A", "B", graph.KindLink, graph.LinkTemplateEntity, nil)

		steps := record(g, "A", Children, 2, nil)
		require.Equal(t, []stepRecord{
			{key: "C", depth: 1, edges: 1},
			{key: "B", depth: 2, edges: 1},
			{key: "B", depth: 1, edges: 1},
		}, steps)
	})

	t.Run("ExpandedNodeIsRevisited", func(t *testing.T) {
		g := graph.New()
		g.SetNode("A", graph.KindEntity, map[string]string{"name": "A"})
		g.SetNode("B", graph.KindTemplate, map[string]string{"name": "B"})
		g.SetNode("C", graph.KindFormflow, map[string]string{"name": "C"})
		g.AddEdge("A", "B", graph.KindLink, graph.LinkTemplateEntity, nil)
		g.AddEdge("A", "C", graph.KindLink, graph.LinkFormflowEntity, nil)
		g.AddEdge("C", "B", graph.KindTask, graph.LinkShowForm, nil)

		steps := record(g, "A", Children, 2, nil)
		require.Len(t, steps, 3)
		assert.Equal(t, "B", steps[0].key)
		assert.False(t, steps[0].revisited)
		assert.Equal(t, "C", steps[1].key)
		assert.Equal(t, "B", steps[2].key)
		assert.True(t, steps[2].revisited)
	})

	t.Run("UnknownStartVisitsNothing", func(t *testing.T) {
		g := cycleGraph()

		steps := record(g, "nope", Children, 0, nil)
		assert.Empty(t, steps)
	})
}
