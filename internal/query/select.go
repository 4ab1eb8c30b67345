// Package query implements node selection and bounded traversal over
// a built cross-reference graph. Selection matches a case-insensitive
// regular expression against each node's serialized data; traversal
// expands parents or children to a configurable depth.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dmaclachlan/appgraph/internal/graph"
)

// ErrPattern reports an unusable search pattern.
var ErrPattern = errors.New("invalid pattern")

// patterns caches compiled search patterns across queries.
var patterns, _ = lru.New[string, *regexp.Regexp](128)

// Options controls selection behavior. The zero value searches every
// node kind and only node data.
type Options struct {
	// Ignore lists node kinds excluded from results and expansion.
	Ignore []string

	// IncludeEdges extends matching to each node's outgoing edges.
	IncludeEdges bool
}

// Match is one selected node with its annotated data.
type Match struct {
	Key  string
	Node *graph.Node

	// Data is the node's data plus the transient counts annotation.
	Data map[string]string
}

// Compile prepares a case-insensitive search pattern. The empty
// pattern is invalid.
func Compile(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrPattern)
	}
	if re, ok := patterns.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPattern, err)
	}
	patterns.Add(pattern, re)
	return re, nil
}

// Select returns the nodes whose serialized data matches pattern.
// Undefined nodes serialize to nothing, so they only turn up for
// patterns that match an empty string. Results are ordered with
// nameless nodes first, then by name, then by key.
func Select(g *graph.Graph, pattern string, opts Options) ([]Match, error) {
	re, err := Compile(pattern)
	if err != nil {
		return nil, err
	}

	ignore := ignoreSet(opts.Ignore)
	var matches []Match
	for _, key := range g.Keys() {
		node := g.Node(key)
		if ignore[string(node.Kind)] {
			continue
		}

		data := Annotate(g, key)
		haystack := Serialize(data)
		if opts.IncludeEdges {
			for _, edge := range g.Outgoing(key) {
				if ignore[string(edge.Kind)] {
					continue
				}
				haystack += "\n" + Serialize(edge.Data())
			}
		}

		if re.MatchString(haystack) {
			matches = append(matches, Match{Key: key, Node: node, Data: data})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		ni, iNamed := matches[i].Data["name"]
		nj, jNamed := matches[j].Data["name"]
		if iNamed != jNamed {
			return !iNamed
		}
		if ni != nj {
			return ni < nj
		}
		return matches[i].Key < matches[j].Key
	})
	return matches, nil
}

// Annotate returns the node's data plus a "counts" entry holding the
// distinct parent and child counts as "parents<children". Undefined
// nodes have no data and come back nil.
func Annotate(g *graph.Graph, key string) map[string]string {
	node := g.Node(key)
	if node == nil || !node.Defined() {
		return nil
	}

	data := node.Data()
	in, out := g.Degrees(key)
	data["counts"] = fmt.Sprintf("%d<%d", in, out)
	return data
}

// Serialize renders a data bag for matching: each "key: value" pair
// joined with ", ", keys sorted for stable output.
func Serialize(data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + data[k]
	}
	return strings.Join(parts, ", ")
}

func ignoreSet(kinds []string) map[string]bool {
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}
