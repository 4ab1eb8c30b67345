// Package records loads application definition records from a
// definition root and normalizes their raw fields behind friendly
// attribute names.
//
// A record is one YAML document. Its spec (config.ArtifactSpec) maps
// friendly names like "entity" to the raw field names the export
// format uses, so the rest of the program never touches raw names.
// Nested structures inside a record (formflow tasks, index fields) are
// wrapped as records of their own kind.
package records

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmaclachlan/appgraph/internal/config"
	"github.com/dmaclachlan/appgraph/internal/graph"
)

// Record is one loaded definition record.
type Record struct {
	// Path is the source file, empty for nested records.
	Path string

	// BaseName is the source file name without extension. Entities and
	// conditions are keyed by it.
	BaseName string

	spec *config.ArtifactSpec
	raw  map[string]any
}

// Load reads and parses one YAML record file.
func Load(path string, spec *config.ArtifactSpec) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing record %s: %w", path, err)
	}

	return &Record{
		Path:     path,
		BaseName: BaseName(path),
		spec:     spec,
		raw:      raw,
	}, nil
}

// Wrap makes a record out of a structure nested inside another record,
// such as one task out of a formflow's task list.
func Wrap(spec *config.ArtifactSpec, raw map[string]any) *Record {
	return &Record{spec: spec, raw: raw}
}

// Kind returns the record's artifact kind.
func (r *Record) Kind() graph.Kind {
	return r.spec.Kind
}

// Empty reports whether the record parsed to no fields at all.
func (r *Record) Empty() bool {
	return len(r.raw) == 0
}

// Get returns the scalar value of a friendly attribute. Names with no
// mapping pass through as raw field names. ok is false when the value
// is absent, structured, or empty. The "guid" attribute comes back in
// canonical form.
func (r *Record) Get(name string) (string, bool) {
	value, ok := formatScalar(r.raw[r.rawKey(name)])
	if !ok {
		return "", false
	}
	if name == "guid" {
		value = CanonicalGUID(value)
	}
	return value, true
}

// List returns the value of a friendly attribute as a list. Single
// values come back as a one-element list, which some exports use for
// single-item collections.
func (r *Record) List(name string) []any {
	switch v := r.raw[r.rawKey(name)].(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}

// Map returns the value of a friendly attribute as a nested mapping,
// or nil when it is absent or not a mapping.
func (r *Record) Map(name string) map[string]any {
	m, _ := r.raw[r.rawKey(name)].(map[string]any)
	return m
}

// RawField exposes the raw field name behind a friendly attribute, for
// callers that must reach into nested raw structures themselves.
func (r *Record) RawField(name string) string {
	return r.rawKey(name)
}

// rawKey follows the field mapping; unmapped names pass through.
func (r *Record) rawKey(name string) string {
	if rawKey, ok := r.spec.Fields[name]; ok {
		return rawKey
	}
	return name
}

// Attrs derives the node attribute bag: every mapped friendly name
// whose raw value is a non-empty scalar. Structured payloads (task
// lists, markup documents) stay out of the bag.
func (r *Record) Attrs() map[string]string {
	attrs := make(map[string]string, len(r.spec.Fields))
	for name := range r.spec.Fields {
		if value, ok := r.Get(name); ok {
			attrs[name] = value
		}
	}
	return attrs
}

// formatScalar renders a raw YAML scalar as a string. Structured and
// empty values report ok false.
func formatScalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case time.Time:
		return t.Format(time.RFC3339), true
	default:
		return "", false
	}
}
