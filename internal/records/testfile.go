package records

import (
	"fmt"
	"os"
	"regexp"
)

// TestFile is one parsed business test definition. Tests are plain
// text; references to other artifacts are recovered by matching the
// configured per-kind patterns against the whole file.
type TestFile struct {
	// Name is the file base name, which keys the test node.
	Name string

	refs map[string][]string
}

// LoadTestFile scans one test file with the given matchers, keyed by
// referenced kind. Capture group one of each pattern is the referenced
// display name; patterns apply case-insensitively.
func LoadTestFile(path string, matchers map[string]string) (*TestFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading test %s: %w", path, err)
	}

	t := &TestFile{
		Name: BaseName(path),
		refs: make(map[string][]string, len(matchers)),
	}
	for kind, pattern := range matchers {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("test matcher %s: %w", kind, err)
		}

		seen := make(map[string]bool)
		for _, m := range re.FindAllStringSubmatch(string(content), -1) {
			if len(m) < 2 || m[1] == "" || seen[m[1]] {
				continue
			}
			seen[m[1]] = true
			t.refs[kind] = append(t.refs[kind], m[1])
		}
	}
	return t, nil
}

// Refs returns the referenced display names for one kind, in first
// appearance order.
func (t *TestFile) Refs(kind string) []string {
	return t.refs[kind]
}
