// Package markup extracts cross references from the hierarchical
// markup documents embedded inside definition records: form layouts,
// workflow task graphs, dependency manifests, and condition
// expressions.
//
// A document is parsed once and retained; the finders walk the parsed
// tree. Which elements yield reference descriptors, and their shape,
// is fixed by a closed per-document Table. Namespace prefixes on
// element and attribute names are stripped, and attributes with empty
// values are treated as unset.
package markup

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmaclachlan/appgraph/internal/records"
)

// subtypeAttr discriminates control variants (TIL, SIM) on form
// markup.
const subtypeAttr = "Type"

// scopeAttr marks a list control as entity scoped.
const scopeAttr = "Entity"

// ScopeGlobal is the scope of list controls not bound to an entity.
const ScopeGlobal = "global"

// Doc is one parsed markup document.
type Doc struct {
	root  *element
	table Table
}

type element struct {
	tag      string
	attrs    []attr
	children []*element
}

type attr struct {
	name  string
	value string
}

func (e *element) get(name string) string {
	for _, a := range e.attrs {
		if a.name == name {
			return a.value
		}
	}
	return ""
}

// ListRef is one leaf reference recovered from a list control's nested
// markup, paired with the owning control's scope.
type ListRef struct {
	// Scope is ScopeGlobal or the entity the list is bound to.
	Scope string

	// Value is the referenced field or property name.
	Value string
}

// Parse parses a markup document against a descriptor table. Malformed
// markup is an error; the caller is expected to skip the record it
// came from.
func Parse(doc string, table Table) (*Doc, error) {
	root, err := parseTree(doc)
	if err != nil {
		return nil, err
	}
	return &Doc{root: root, table: table}, nil
}

// Find returns the reference descriptors of all elements matching tag,
// in document order. An optional subtype narrows to elements whose
// Type attribute matches. Tags without a table entry yield nothing.
func (d *Doc) Find(tag string, subtype ...string) []Descriptor {
	rule, ok := d.table[tag]
	if !ok {
		return nil
	}

	var out []Descriptor
	walk(d.root, func(el *element) {
		if el.tag != tag {
			return
		}
		if len(subtype) > 0 && el.get(subtypeAttr) != subtype[0] {
			return
		}
		if desc, ok := describe(el, rule); ok {
			out = append(out, desc)
		}
	})
	return out
}

// ByAttr aggregates descriptors across all elements carrying the named
// attribute, keyed by that attribute's value. Repeated occurrences of
// a key merge into the earlier descriptor instead of overwriting it.
func (d *Doc) ByAttr(key string) map[string]Descriptor {
	out := make(map[string]Descriptor)
	walk(d.root, func(el *element) {
		value := el.get(key)
		if value == "" {
			return
		}

		var desc Descriptor
		if rule, tabled := d.table[el.tag]; tabled {
			var ok bool
			if desc, ok = describe(el, rule); !ok {
				return
			}
		} else {
			desc = rawDescriptor(el)
		}

		if prev, seen := out[value]; seen {
			prev.merge(desc)
			out[value] = prev
		} else {
			out[value] = desc
		}
	})
	return out
}

// FindNested extracts leaf references from the secondary markup some
// elements embed in their own fields, such as a list control's column
// definitions. Every element carrying containerField has that field
// parsed as markup of its own; each nested element's target attribute
// value is returned, paired with the container's scope.
func (d *Doc) FindNested(containerField, target string) ([]ListRef, error) {
	var refs []ListRef
	var err error
	walk(d.root, func(el *element) {
		if err != nil {
			return
		}
		nested := el.get(containerField)
		if nested == "" {
			return
		}

		scope := el.get(scopeAttr)
		if scope == "" {
			scope = ScopeGlobal
		}

		root, perr := parseTree(nested)
		if perr != nil {
			err = fmt.Errorf("nested %s markup: %w", containerField, perr)
			return
		}
		walk(root, func(leaf *element) {
			if v := leaf.get(target); v != "" {
				refs = append(refs, ListRef{Scope: scope, Value: v})
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// walk visits el and its descendants in document order.
func walk(el *element, visit func(*element)) {
	visit(el)
	for _, child := range el.children {
		walk(child, visit)
	}
}

// describe builds the descriptor for one element. ok is false when the
// rule suppresses the element, such as a condition reference pointing
// at the null sentinel.
func describe(el *element, rule Rule) (Descriptor, bool) {
	desc := Descriptor{
		Tag:   el.tag,
		Link:  rule.Link,
		attrs: make(map[string][]string),
	}

	for _, a := range el.attrs {
		if friendly, ok := rule.Topics[a.name]; ok {
			desc.add(friendly, a.value)
		}
	}

	if rule.Placeholders {
		for _, child := range el.children {
			if child.tag != placeholderTag {
				continue
			}
			name, value := child.get("Name"), child.get("Value")
			if name == "" || value == "" {
				continue
			}
			if friendly, ok := placeholderTopics[name]; ok {
				desc.add(friendly, value)
			}
		}
	}

	if rule.NullRef != "" {
		targets := desc.attrs[rule.NullRef]
		if len(targets) > 0 && allZero(targets) {
			return Descriptor{}, false
		}
	}
	return desc, true
}

// rawDescriptor exposes an untabled element's attributes unmapped.
func rawDescriptor(el *element) Descriptor {
	desc := Descriptor{Tag: el.tag, attrs: make(map[string][]string)}
	for _, a := range el.attrs {
		desc.add(a.name, a.value)
	}
	return desc
}

func allZero(values []string) bool {
	for _, v := range values {
		if !records.IsZeroGUID(v) {
			return false
		}
	}
	return true
}

// parseTree decodes markup into an element tree, stripping namespaces
// from element and attribute names and dropping empty attributes.
func parseTree(doc string) (*element, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))

	var root *element
	var stack []*element
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing markup: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{tag: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" || a.Value == "" {
					continue
				}
				el.attrs = append(el.attrs, attr{name: a.Name.Local, value: a.Value})
			}

			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("parsing markup: multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}

	if root == nil {
		return nil, errors.New("parsing markup: no root element")
	}
	if len(stack) != 0 {
		return nil, errors.New("parsing markup: unclosed element")
	}
	return root, nil
}
