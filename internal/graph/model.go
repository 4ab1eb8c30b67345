// Package graph provides the cross-reference graph data model for appgraph.
//
// It defines the node and edge types that represent application-definition
// artifacts (entities, formflows, templates, conditions, etc.) and the
// references between them (task jumps, bound properties, tile links, etc.).
package graph

// Kind classifies a node or edge by the artifact or reference it represents.
type Kind string

const (
	KindEntity    Kind = "entity"
	KindProperty  Kind = "property"
	KindCommand   Kind = "command"
	KindCondition Kind = "condition"
	KindFormflow  Kind = "formflow"
	KindTemplate  Kind = "template"
	KindTile      Kind = "tile"
	KindTask      Kind = "task"
	KindModule    Kind = "module"
	KindImage     Kind = "image"
	KindSound     Kind = "sound"
	KindIndex     Kind = "index"
	KindTest      Kind = "test"
	KindLink      Kind = "link"
)

// LinkType describes the semantic relationship an edge represents.
type LinkType string

const (
	LinkFormflowEntity    LinkType = "formflow entity"
	LinkTemplateEntity    LinkType = "template entity"
	LinkFormflowIcon      LinkType = "formflow icon"
	LinkFormflowCondition LinkType = "formflow condition"
	LinkConditionalTask   LinkType = "conditional task"
	LinkShowForm          LinkType = "show form"
	LinkJumpToFormflow    LinkType = "jump to formflow"
	LinkRunCommand        LinkType = "run command"
	LinkPlaySound         LinkType = "play sound"
	LinkStaticImage       LinkType = "static image"
	LinkBackgroundImage   LinkType = "background image"
	LinkFormDependency    LinkType = "form dependency"
	LinkFlowDependency    LinkType = "formflow dependency"
	LinkPropDependency    LinkType = "property dependency"
	LinkCommand           LinkType = "command"
	LinkCalculated        LinkType = "calculated property"
	LinkDefaulting        LinkType = "defaulting rule"
	LinkValidation        LinkType = "validation rule"
	LinkLookup            LinkType = "lookup rule"
	LinkReadOnly          LinkType = "read_only"
	LinkIconImage         LinkType = "icon_image"
	LinkModule            LinkType = "module"
	LinkEntityIndex       LinkType = "entity index"
	LinkIndexProperty     LinkType = "index property"
	LinkListProperty      LinkType = "list property"
	LinkListIndex         LinkType = "list index"
	LinkAggregation       LinkType = "aggregation"
	LinkBusinessTest      LinkType = "business test"
)

// Node is a single artifact (or referenced identifier) in the graph.
type Node struct {
	// Key is the stable identity: a lower-cased guid, a "name-entity"
	// pair for properties and commands, or a record base name.
	Key string

	// Kind is the artifact discriminator. It never changes once set.
	Kind Kind

	// Attrs holds the descriptive fields extracted from the record.
	// A nil map marks a node that was only ever the target of an edge
	// and never populated from a record.
	Attrs map[string]string
}

// Defined reports whether the node was populated from a record, as
// opposed to existing only because an edge referenced its key.
func (n *Node) Defined() bool {
	return len(n.Attrs) > 0
}

// Data returns a copy of the node's attributes including the kind
// discriminator under "type". Returns nil for undefined nodes.
func (n *Node) Data() map[string]string {
	if !n.Defined() {
		return nil
	}
	data := make(map[string]string, len(n.Attrs)+1)
	for k, v := range n.Attrs {
		data[k] = v
	}
	data["type"] = string(n.Kind)
	return data
}

// Edge is a directed reference from one artifact to another.
//
// Edges between the same pair of nodes are independent: a template can
// reference the same page through two different tiles, and a formflow
// task recorded both structurally and in markup yields two edges.
type Edge struct {
	// ID is the insertion sequence number, unique within one graph.
	ID int

	// Source and Target are node keys. Either may name a node that is
	// never populated with data.
	Source string
	Target string

	// Kind discriminates the edge flavor (link, tile, task).
	Kind Kind

	// LinkType describes the relationship; empty for edge kinds whose
	// attributes carry the semantics themselves (tiles).
	LinkType LinkType

	// Attrs holds additional descriptive fields (names, guids, the
	// referenced value).
	Attrs map[string]string
}

// Data returns a copy of the edge's attributes including the kind and,
// when set, the link type.
func (e *Edge) Data() map[string]string {
	data := make(map[string]string, len(e.Attrs)+2)
	for k, v := range e.Attrs {
		data[k] = v
	}
	data["type"] = string(e.Kind)
	if e.LinkType != "" {
		data["link_type"] = string(e.LinkType)
	}
	return data
}

// PropertyKey builds the node key for a property or command owned by an
// entity. Referrers cite these by name rather than guid, so the key is
// the name qualified with its owner.
func PropertyKey(name, entity string) string {
	return name + "-" + entity
}
