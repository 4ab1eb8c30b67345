package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmaclachlan/appgraph/internal/graph"
)

// exploreGraph builds a small graph with one undefined reference and
// a couple of cross links.
func exploreGraph() *graph.Graph {
	g := graph.New()
	g.SetNode("Incident", graph.KindEntity, map[string]string{"name": "Incident"})
	g.SetNode("flow-1", graph.KindFormflow, map[string]string{"name": "Morning Run", "entity": "Incident"})
	g.SetNode("page-1", graph.KindTemplate, map[string]string{"name": "Dashboard"})

	g.AddEdge("Incident", "flow-1", graph.KindLink, graph.LinkFormflowEntity, nil)
	g.AddEdge("flow-1", "page-1", graph.KindTask, graph.LinkShowForm, map[string]string{"name": "Jump to dashboard"})
	g.AddEdge("flow-1", "missing-icon", graph.KindLink, graph.LinkFormflowIcon, nil)
	return g
}

func TestCompile(t *testing.T) {
	t.Parallel()

	t.Run("CaseInsensitive", func(t *testing.T) {
		re, err := Compile("morning")
		require.NoError(t, err)
		assert.True(t, re.MatchString("MORNING RUN"))
	})

	t.Run("EmptyPatternInvalid", func(t *testing.T) {
		_, err := Compile("")
		assert.ErrorIs(t, err, ErrPattern)
	})

	t.Run("MalformedPatternInvalid", func(t *testing.T) {
		_, err := Compile("(unclosed")
		assert.ErrorIs(t, err, ErrPattern)
	})

	t.Run("Cached", func(t *testing.T) {
		first, err := Compile("cached-pattern")
		require.NoError(t, err)
		second, err := Compile("cached-pattern")
		require.NoError(t, err)
		assert.Same(t, first, second)
	})
}

func TestSelect(t *testing.T) {
	t.Parallel()

	t.Run("MatchesNodeData", func(t *testing.T) {
		g := exploreGraph()

		matches, err := Select(g, "morning", Options{})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "flow-1", matches[0].Key)
		assert.Equal(t, "1<2", matches[0].Data["counts"])
	})

	t.Run("CountsAreSearchable", func(t *testing.T) {
		g := exploreGraph()

		matches, err := Select(g, `counts: 0<`, Options{})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "Incident", matches[0].Key)
	})

	t.Run("IgnoredKindsExcluded", func(t *testing.T) {
		g := exploreGraph()

		matches, err := Select(g, "incident", Options{Ignore: []string{"formflow"}})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "Incident", matches[0].Key)
	})

	t.Run("UndefinedNodesMatchEmptySerializationOnly", func(t *testing.T) {
		g := exploreGraph()

		matches, err := Select(g, "missing", Options{})
		require.NoError(t, err)
		assert.Empty(t, matches)

		matches, err = Select(g, ".*", Options{})
		require.NoError(t, err)
		keys := make([]string, len(matches))
		for i, m := range matches {
			keys[i] = m.Key
		}
		assert.Contains(t, keys, "missing-icon")
	})

	t.Run("IncludeEdgesWidensMatching", func(t *testing.T) {
		g := exploreGraph()

		matches, err := Select(g, "jump to dashboard", Options{})
		require.NoError(t, err)
		assert.Empty(t, matches)

		matches, err = Select(g, "jump to dashboard", Options{IncludeEdges: true})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "flow-1", matches[0].Key)
	})

	t.Run("IgnoredEdgeKindsStayUnsearched", func(t *testing.T) {
		g := exploreGraph()

		matches, err := Select(g, "jump to dashboard", Options{IncludeEdges: true, Ignore: []string{"task"}})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("NamelessNodesSortFirst", func(t *testing.T) {
		g := exploreGraph()

		matches, err := Select(g, ".*", Options{})
		require.NoError(t, err)
		require.NotEmpty(t, matches)
		assert.Equal(t, "missing-icon", matches[0].Key)

		var names []string
		for _, m := range matches[1:] {
			names = append(names, m.Data["name"])
		}
		assert.Equal(t, []string{"Dashboard", "Incident", "Morning Run"}, names)
	})

	t.Run("InvalidPattern", func(t *testing.T) {
		g := exploreGraph()

		_, err := Select(g, "[unclosed", Options{})
		assert.ErrorIs(t, err, ErrPattern)
	})
}

func TestAnnotate(t *testing.T) {
	t.Parallel()

	t.Run("CountsDistinctNeighbors", func(t *testing.T) {
		g := graph.New()
		g.SetNode("a", graph.KindEntity, map[string]string{"name": "a"})
		g.SetNode("b", graph.KindProperty, map[string]string{"name": "b"})
		g.AddEdge("a", "b", graph.KindLink, graph.LinkCalculated, nil)
		g.AddEdge("a", "b", graph.KindLink, graph.LinkValidation, nil)

		data := Annotate(g, "b")
		assert.Equal(t, "1<0", data["counts"])
	})

	t.Run("DoesNotMutateStoredAttrs", func(t *testing.T) {
		g := exploreGraph()

		Annotate(g, "Incident")
		assert.NotContains(t, g.Node("Incident").Attrs, "counts")
	})

	t.Run("UndefinedNodeHasNoData", func(t *testing.T) {
		g := exploreGraph()

		assert.Nil(t, Annotate(g, "missing-icon"))
	})
}

func TestSerialize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Serialize(nil))
	assert.Equal(t,
		"counts: 1<2, name: Morning Run, type: formflow",
		Serialize(map[string]string{"type": "formflow", "name": "Morning Run", "counts": "1<2"}))
}
