package ingestion

import (
	"log/slog"
	"strings"

	"github.com/dmaclachlan/appgraph/internal/graph"
)

// Resolver binds human-readable references to stable node keys. It
// owns the lookup tables one build populates: which entities register
// each command, and the display-name tables for formflows, templates,
// modules, and index fields. State is scoped to a single build; a
// rebuild starts from a fresh Resolver.
type Resolver struct {
	commands map[string][]string
	names    map[graph.Kind]map[string]string
	misses   int
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		commands: make(map[string][]string),
		names:    make(map[graph.Kind]map[string]string),
	}
}

// RecordCommand registers an entity as an owner of a command. The
// first entity to register stays the canonical owner for references
// that name no owner of their own.
func (r *Resolver) RecordCommand(command, entity string) {
	r.commands[command] = append(r.commands[command], entity)
}

// ResolveCommand returns the entity a command reference binds to: the
// requesting entity when it is a registered owner, otherwise the first
// registered owner. An unregistered command resolves to the requester
// verbatim and counts as a miss; the edge then points at a key the
// build never defines, which surfaces through the missing-data report
// rather than as an error.
func (r *Resolver) ResolveCommand(command, entity string) string {
	owners, ok := r.commands[command]
	if !ok {
		r.misses++
		slog.Debug("unresolved command reference", "command", command, "entity", entity)
		return entity
	}
	for _, owner := range owners {
		if owner == entity {
			return entity
		}
	}
	return owners[0]
}

// RecordName registers a display name for a node key. The first
// registration wins.
func (r *Resolver) RecordName(kind graph.Kind, name, key string) {
	if name == "" || key == "" {
		return
	}
	table, ok := r.names[kind]
	if !ok {
		table = make(map[string]string)
		r.names[kind] = table
	}
	if _, taken := table[name]; !taken {
		table[name] = key
	}
}

// LookupName returns the node key registered for a display name.
func (r *Resolver) LookupName(kind graph.Kind, name string) (string, bool) {
	key, ok := r.names[kind][name]
	return key, ok
}

// Misses returns how many references failed to resolve this build.
func (r *Resolver) Misses() int {
	return r.misses
}

// PropertyEdge links source to the property a qualified reference
// names. Dotted path prefixes are stripped, so "entity.collection.field"
// is checked as "field". When the exact name-owner key exists the edge
// goes there; otherwise one fallback runs, matching nodes by their
// name attribute, and the edge is added only when exactly one node
// matches. Zero or several matches drop the edge, since a guessed
// property link is worse than none.
func (r *Resolver) PropertyEdge(g *graph.Graph, source, qualified, entity string, kind graph.Kind, link graph.LinkType, attrs map[string]string) bool {
	name := bareProperty(qualified)
	if name == "" {
		return false
	}

	key := graph.PropertyKey(name, entity)
	if g.HasNode(key) {
		g.AddEdge(source, key, kind, link, attrs)
		return true
	}

	matches := g.NodesByName(name)
	if len(matches) != 1 {
		if len(matches) > 1 {
			slog.Debug("ambiguous property reference dropped", "name", name, "source", source, "candidates", len(matches))
		}
		return false
	}
	g.AddEdge(source, matches[0].Key, kind, link, attrs)
	return true
}

// bareProperty strips any dotted path prefix from a qualified
// property reference.
func bareProperty(qualified string) string {
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}
