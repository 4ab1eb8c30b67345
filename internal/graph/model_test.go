package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNode_Data(t *testing.T) {
	t.Parallel()

	t.Run("IncludesKind", func(t *testing.T) {
		t.Parallel()
		node := &Node{Key: "abc", Kind: KindCondition, Attrs: map[string]string{"name": "Is Active"}}

		data := node.Data()

		assert.Equal(t, "condition", data["type"])
		assert.Equal(t, "Is Active", data["name"])
	})

	t.Run("CopyNotAliased", func(t *testing.T) {
		t.Parallel()
		node := &Node{Key: "abc", Kind: KindCondition, Attrs: map[string]string{"name": "Is Active"}}

		data := node.Data()
		data["counts"] = "1<2"

		assert.NotContains(t, node.Attrs, "counts")
	})

	t.Run("UndefinedIsNil", func(t *testing.T) {
		t.Parallel()
		node := &Node{Key: "abc"}

		assert.False(t, node.Defined())
		assert.Nil(t, node.Data())
	})
}

func TestEdge_Data(t *testing.T) {
	t.Parallel()

	t.Run("LinkTypeIncluded", func(t *testing.T) {
		t.Parallel()
		edge := &Edge{Kind: KindLink, LinkType: LinkShowForm, Attrs: map[string]string{"name": "Open"}}

		data := edge.Data()

		assert.Equal(t, "link", data["type"])
		assert.Equal(t, "show form", data["link_type"])
		assert.Equal(t, "Open", data["name"])
	})

	t.Run("EmptyLinkTypeOmitted", func(t *testing.T) {
		t.Parallel()
		edge := &Edge{Kind: KindTile, Attrs: map[string]string{"name": "Launcher"}}

		data := edge.Data()

		assert.Equal(t, "tile", data["type"])
		assert.NotContains(t, data, "link_type")
	})
}

func TestPropertyKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Total-Invoice", PropertyKey("Total", "Invoice"))
}
