package markup

import "github.com/dmaclachlan/appgraph/internal/graph"

// Descriptor is one reference recovered from a markup element: the
// topic-mapped attributes plus the link type its table rule stamps.
// Keys can hold several values when an element repeats a topic, as a
// dashboard control hosting several workflow buttons does.
type Descriptor struct {
	// Tag is the namespace-stripped element tag.
	Tag string

	// Link is the link type for edges built from this descriptor,
	// empty when the table rule stamps none.
	Link graph.LinkType

	attrs map[string][]string
}

// Get returns the first value of a key.
func (d Descriptor) Get(key string) (string, bool) {
	values := d.attrs[key]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// All returns every value of a key, in document order.
func (d Descriptor) All(key string) []string {
	return d.attrs[key]
}

// Attrs flattens the descriptor to a single-valued bag, taking the
// first value of each key. This is the shape edge attributes use.
func (d Descriptor) Attrs() map[string]string {
	out := make(map[string]string, len(d.attrs))
	for key, values := range d.attrs {
		if len(values) > 0 {
			out[key] = values[0]
		}
	}
	return out
}

func (d *Descriptor) add(key, value string) {
	if d.attrs == nil {
		d.attrs = make(map[string][]string)
	}
	d.attrs[key] = append(d.attrs[key], value)
}

// merge folds another descriptor in, keeping existing values and
// appending ones not yet present.
func (d *Descriptor) merge(o Descriptor) {
	for key, values := range o.attrs {
		for _, v := range values {
			if !contains(d.attrs[key], v) {
				d.add(key, v)
			}
		}
	}
}

func contains(values []string, v string) bool {
	for _, have := range values {
		if have == v {
			return true
		}
	}
	return false
}
