// Package config provides the artifact-type settings for appgraph.
//
// Settings describe, per artifact kind, where its records live under a
// definition root, how raw record fields map to friendly attribute
// names, and how nodes of that kind are rendered. Compiled-in defaults
// cover the standard studio export layout; a root may override or
// extend them with an appgraph.yaml file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/dmaclachlan/appgraph/internal/graph"
)

// OverrideFile is the per-root settings override, relative to the
// definition root.
const OverrideFile = "appgraph.yaml"

// ArtifactSpec describes one artifact kind.
type ArtifactSpec struct {
	// Kind is the node kind records of this spec produce. Set from the
	// map key on load.
	Kind graph.Kind `yaml:"-"`

	// Path is the record glob relative to the definition root. Empty
	// for kinds that only occur nested inside other records (tasks,
	// tiles) or as edges (links).
	Path string `yaml:"path,omitempty"`

	// Fields maps friendly attribute names to raw record field names.
	Fields map[string]string `yaml:"fields,omitempty"`

	// Display lists the attribute keys shown when rendering, in order.
	Display []string `yaml:"display,omitempty"`

	// Color is the terminal color hint for this kind.
	Color string `yaml:"color,omitempty"`

	// Matchers holds, for the test kind only, a regex per referenced
	// kind; capture group one is the referenced display name. Patterns
	// are applied case-insensitively.
	Matchers map[string]string `yaml:"matchers,omitempty"`
}

// Settings is the full configuration for one definition root.
type Settings struct {
	// Artifacts is keyed by kind name.
	Artifacts map[string]*ArtifactSpec `yaml:"artifacts"`

	// CacheDir is the cache directory name under the definition root.
	CacheDir string `yaml:"cache,omitempty"`

	// MaxLevel is the default traversal expansion depth; 0 expands
	// without bound.
	MaxLevel int `yaml:"max_level,omitempty"`
}

// Default returns the compiled-in settings.
func Default() *Settings {
	s := &Settings{
		CacheDir: ".appgraph",
		MaxLevel: 1,
		Artifacts: map[string]*ArtifactSpec{
			"entity": {
				Path: "Entities/*.yaml",
				Fields: map[string]string{
					"name":       "name",
					"properties": "properties",
				},
				Display: []string{"type", "name", "counts"},
				Color:   "magenta",
			},
			"metadata": {
				Path: "Entities/Metadata/*.yaml",
				Fields: map[string]string{
					"name":      "entityName",
					"data":      "entityData",
					"read_only": "readOnly",
					"condition": "conditionId",
				},
				Display: []string{"type", "name", "counts"},
				Color:   "magenta",
			},
			"index": {
				Path: "Entities/Indexes/*.yaml",
				Fields: map[string]string{
					"name":   "IDX_Name",
					"entity": "IDX_EntityType",
					"fields": "IDX_Fields",
				},
				Display: []string{"type", "name", "entity", "field", "property", "counts"},
				Color:   "hi-cyan",
			},
			"indexfield": {
				Fields: map[string]string{
					"field":    "IDXF_FieldName",
					"property": "IDXF_PropertyPath",
				},
			},
			"rule": {
				Fields: map[string]string{
					"guid":          "ruleId",
					"property_type": "ruleType",
					"rule_type":     "methodName",
					"conditions":    "conditionIds",
				},
			},
			"aggregation": {
				Fields: map[string]string{
					"name":      "name",
					"property":  "property",
					"condition": "conditionId",
				},
			},
			"flowcondition": {
				Fields: map[string]string{
					"condition": "VWT_ConditionId",
					"guid":      "VWT_PK",
				},
			},
			"image": {
				Path: "Images/*.yaml",
				Fields: map[string]string{
					"guid":   "IMG_PK",
					"name":   "IMG_Name",
					"file":   "IMG_FileName",
					"active": "IMG_IsActive",
				},
				Display: []string{"type", "name", "counts"},
				Color:   "yellow",
			},
			"sound": {
				Path: "Sounds/*.yaml",
				Fields: map[string]string{
					"guid": "SND_PK",
					"name": "SND_Name",
					"file": "SND_FileName",
				},
				Display: []string{"type", "name", "counts"},
				Color:   "grey",
			},
			"condition": {
				Path: "Conditions/*.yaml",
				Fields: map[string]string{
					"name":       "CND_Name",
					"entity":     "CND_EntityType",
					"active":     "CND_IsActive",
					"expression": "CND_Expression",
				},
				Display: []string{"type", "name", "entity", "active", "counts"},
				Color:   "hi-yellow",
			},
			"formflow": {
				Path: "Formflows/*.yaml",
				Fields: map[string]string{
					"guid":        "VM_PK",
					"name":        "VM_Name",
					"entity":      "VM_EntityType",
					"active":      "VM_IsActive",
					"form_factor": "VM_FormFactor",
					"image":       "VM_ImageId",
					"data":        "VM_Data",
					"tasks":       "VM_Tasks",
					"conditions":  "VM_Conditions",
				},
				Display: []string{"type", "name", "entity", "active", "form_factor", "counts"},
				Color:   "green",
			},
			"task": {
				Fields: map[string]string{
					"task":     "VMT_ItemType",
					"name":     "VMT_Name",
					"active":   "VMT_IsActive",
					"template": "VMT_FormID",
					"formflow": "VMT_JumpToID",
					"command":  "VMT_CommandRuleName",
				},
				Display: []string{"type", "task", "name"},
				Color:   "green",
			},
			"template": {
				Path: "Templates/*.yaml",
				Fields: map[string]string{
					"guid":         "VZ_PK",
					"name":         "VZ_FormID",
					"entity":       "VZ_EntityType",
					"active":       "VZ_IsActive",
					"data":         "VZ_FormData",
					"dependencies": "VZ_Dependencies",
				},
				Display: []string{"type", "name", "entity", "active", "counts"},
				Color:   "cyan",
			},
			"tile": {
				Display: []string{"type", "name", "description", "warning", "entity", "counts"},
				Color:   "blue",
			},
			"module": {
				Path: "Modules/*.yaml",
				Fields: map[string]string{
					"guid":     "MOD_PK",
					"name":     "MOD_Name",
					"code":     "MOD_Code",
					"template": "MOD_LandingPage",
				},
				Display: []string{"type", "name", "code", "counts"},
				Color:   "hi-blue",
			},
			"property": {
				Display: []string{"type", "name", "entity", "rule_type", "counts"},
				Color:   "hi-magenta",
			},
			"command": {
				Display: []string{"type", "name", "entity", "rule_type", "counts"},
				Color:   "red",
			},
			"test": {
				Path: "Tests/*.feature",
				Matchers: map[string]string{
					"template": `(?:form|page) "([^"]+)"`,
					"formflow": `(?:process|flow) "([^"]+)"`,
					"module":   `module "([^"]+)"`,
				},
				Display: []string{"type", "name", "counts"},
				Color:   "hi-green",
			},
			"link": {
				Display: []string{"type", "link_type", "name", "counts"},
				Color:   "white",
			},
		},
	}
	for name, spec := range s.Artifacts {
		spec.Kind = graph.Kind(name)
	}
	return s
}

// Load returns the settings for a definition root: the defaults, with
// any appgraph.yaml in the root merged over them. A kind present in
// the override replaces the default spec for that kind wholesale.
func Load(root string) (*Settings, error) {
	s := Default()

	path := filepath.Join(root, OverrideFile)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, s.validate()
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}

	var override Settings
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}

	if override.CacheDir != "" {
		s.CacheDir = override.CacheDir
	}
	if override.MaxLevel != 0 {
		s.MaxLevel = override.MaxLevel
	}
	for name, spec := range override.Artifacts {
		spec.Kind = graph.Kind(name)
		s.Artifacts[name] = spec
	}

	return s, s.validate()
}

// Spec returns the spec for kind, or nil if it is not configured.
func (s *Settings) Spec(kind graph.Kind) *ArtifactSpec {
	return s.Artifacts[string(kind)]
}

// FileSpecs returns the specs that are backed by record files.
func (s *Settings) FileSpecs() []*ArtifactSpec {
	var specs []*ArtifactSpec
	for _, spec := range s.Artifacts {
		if spec.Path != "" {
			specs = append(specs, spec)
		}
	}
	return specs
}

// Display returns the display key list for kind, or nil when the kind
// is unknown and every attribute should be shown.
func (s *Settings) Display(kind string) []string {
	if spec, ok := s.Artifacts[kind]; ok {
		return spec.Display
	}
	return nil
}

// Color returns the color name for kind, falling back to white.
func (s *Settings) Color(kind string) string {
	if spec, ok := s.Artifacts[kind]; ok && spec.Color != "" {
		return spec.Color
	}
	return "white"
}

// validate rejects settings that would fail later in a build: matcher
// patterns must compile.
func (s *Settings) validate() error {
	for name, spec := range s.Artifacts {
		for kind, pattern := range spec.Matchers {
			if _, err := regexp.Compile("(?i)" + pattern); err != nil {
				return fmt.Errorf("artifact %s: matcher %s: %w", name, kind, err)
			}
		}
	}
	return nil
}
