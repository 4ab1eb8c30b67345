package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmaclachlan/appgraph/internal/graph"
)

func TestResolver_ResolveCommand(t *testing.T) {
	t.Parallel()

	t.Run("RequesterOwnsCommand", func(t *testing.T) {
		r := NewResolver()
		r.RecordCommand("Approve", "Invoice")
		r.RecordCommand("Approve", "Receipt")

		assert.Equal(t, "Receipt", r.ResolveCommand("Approve", "Receipt"))
		assert.Zero(t, r.Misses())
	})

	t.Run("InheritedFromDeclaringEntity", func(t *testing.T) {
		r := NewResolver()
		r.RecordCommand("Approve", "Invoice")

		// Receipt never declared Approve, so the reference binds to
		// the first entity that did.
		assert.Equal(t, "Invoice", r.ResolveCommand("Approve", "Receipt"))
		assert.Zero(t, r.Misses())
	})

	t.Run("FirstDeclarationWins", func(t *testing.T) {
		r := NewResolver()
		r.RecordCommand("Approve", "Invoice")
		r.RecordCommand("Approve", "Order")

		assert.Equal(t, "Invoice", r.ResolveCommand("Approve", "Payment"))
	})

	t.Run("UnknownCommandFallsBackToRequester", func(t *testing.T) {
		r := NewResolver()

		assert.Equal(t, "Receipt", r.ResolveCommand("Vanish", "Receipt"))
		assert.Equal(t, 1, r.Misses())
	})
}

func TestResolver_Names(t *testing.T) {
	t.Parallel()

	t.Run("FirstRegistrationWins", func(t *testing.T) {
		r := NewResolver()
		r.RecordName(graph.KindFormflow, "Daily Checks", "guid-1")
		r.RecordName(graph.KindFormflow, "Daily Checks", "guid-2")

		key, ok := r.LookupName(graph.KindFormflow, "Daily Checks")
		assert.True(t, ok)
		assert.Equal(t, "guid-1", key)
	})

	t.Run("KindsAreIndependent", func(t *testing.T) {
		r := NewResolver()
		r.RecordName(graph.KindFormflow, "Home", "flow-guid")
		r.RecordName(graph.KindTemplate, "Home", "page-guid")

		key, ok := r.LookupName(graph.KindTemplate, "Home")
		assert.True(t, ok)
		assert.Equal(t, "page-guid", key)
	})

	t.Run("EmptyNamesIgnored", func(t *testing.T) {
		r := NewResolver()
		r.RecordName(graph.KindFormflow, "", "guid-1")

		_, ok := r.LookupName(graph.KindFormflow, "")
		assert.False(t, ok)
	})

	t.Run("UnknownName", func(t *testing.T) {
		r := NewResolver()

		_, ok := r.LookupName(graph.KindModule, "Claims")
		assert.False(t, ok)
	})
}

func TestResolver_PropertyEdge(t *testing.T) {
	t.Parallel()

	attrs := func() map[string]string {
		return map[string]string{"name": "ref"}
	}

	t.Run("ExactKey", func(t *testing.T) {
		g := graph.New()
		g.SetNode("Total-Invoice", graph.KindProperty, map[string]string{"name": "Total"})
		g.SetNode("cond", graph.KindCondition, map[string]string{"name": "c"})

		r := NewResolver()
		added := r.PropertyEdge(g, "cond", "Total", "Invoice", graph.KindLink, graph.LinkPropDependency, attrs())

		assert.True(t, added)
		assert.Len(t, g.EdgesBetween("cond", "Total-Invoice"), 1)
	})

	t.Run("DottedPathUsesLastSegment", func(t *testing.T) {
		g := graph.New()
		g.SetNode("Total-Invoice", graph.KindProperty, map[string]string{"name": "Total"})
		g.SetNode("cond", graph.KindCondition, map[string]string{"name": "c"})

		r := NewResolver()
		added := r.PropertyEdge(g, "cond", "Invoice.Lines.Total", "Invoice", graph.KindLink, graph.LinkPropDependency, attrs())

		assert.True(t, added)
		assert.Len(t, g.EdgesBetween("cond", "Total-Invoice"), 1)
	})

	t.Run("NameFallbackWithSingleMatch", func(t *testing.T) {
		g := graph.New()
		g.SetNode("Total-Order", graph.KindProperty, map[string]string{"name": "Total"})
		g.SetNode("cond", graph.KindCondition, map[string]string{"name": "c"})

		r := NewResolver()
		// No Total-Invoice node exists; the lone node named Total wins.
		added := r.PropertyEdge(g, "cond", "Total", "Invoice", graph.KindLink, graph.LinkPropDependency, attrs())

		assert.True(t, added)
		assert.Len(t, g.EdgesBetween("cond", "Total-Order"), 1)
	})

	t.Run("AmbiguousNameDropped", func(t *testing.T) {
		g := graph.New()
		g.SetNode("Total-Order", graph.KindProperty, map[string]string{"name": "Total"})
		g.SetNode("Total-Quote", graph.KindProperty, map[string]string{"name": "Total"})
		g.SetNode("cond", graph.KindCondition, map[string]string{"name": "c"})

		r := NewResolver()
		added := r.PropertyEdge(g, "cond", "Total", "Invoice", graph.KindLink, graph.LinkPropDependency, attrs())

		assert.False(t, added)
		assert.Zero(t, g.EdgeCount())
	})

	t.Run("UnknownPropertyDropped", func(t *testing.T) {
		g := graph.New()
		g.SetNode("cond", graph.KindCondition, map[string]string{"name": "c"})

		r := NewResolver()
		added := r.PropertyEdge(g, "cond", "Total", "Invoice", graph.KindLink, graph.LinkPropDependency, attrs())

		assert.False(t, added)
		assert.Zero(t, g.EdgeCount())
	})
}
