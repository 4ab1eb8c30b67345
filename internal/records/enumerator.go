package records

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/dmaclachlan/appgraph/internal/config"
	"github.com/dmaclachlan/appgraph/internal/graph"
)

// File is one record file found under a definition root.
type File struct {
	// Path is the absolute file path.
	Path string

	// RelPath is the path relative to the definition root.
	RelPath string

	// Spec is the artifact spec whose glob matched the file.
	Spec *config.ArtifactSpec
}

// Patterns ignored in every root, in addition to .gitignore.
var defaultIgnorePatterns = []string{
	".git/",
	".DS_Store",
	"Thumbs.db",
}

// IgnoreMatcher builds the ignore matcher Enumerate applies: the
// default patterns, the cache directory, and the root's .gitignore.
func IgnoreMatcher(root string, settings *config.Settings) (gitignore.Matcher, error) {
	patterns, err := loadGitignore(root)
	if err != nil {
		return nil, err
	}

	ignored := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns)+1+len(patterns))
	for _, p := range defaultIgnorePatterns {
		ignored = append(ignored, gitignore.ParsePattern(p, nil))
	}
	ignored = append(ignored, gitignore.ParsePattern(settings.CacheDir+"/", nil))
	ignored = append(ignored, patterns...)
	return gitignore.NewMatcher(ignored), nil
}

// MatchesSpec reports whether relPath is a record file some artifact
// spec claims.
func MatchesSpec(settings *config.Settings, relPath string) bool {
	return matchSpec(settings.FileSpecs(), relPath) != nil
}

// Enumerate walks a definition root and buckets every record file by
// artifact kind. Files matched by .gitignore or inside the cache
// directory are skipped. Buckets come back sorted by relative path.
func Enumerate(root string, settings *config.Settings) (map[graph.Kind][]File, error) {
	matcher, err := IgnoreMatcher(root, settings)
	if err != nil {
		return nil, err
	}

	specs := settings.FileSpecs()
	sort.Slice(specs, func(i, j int) bool { return specs[i].Path < specs[j].Path })

	files := make(map[graph.Kind][]File)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if relPath != "." && matcher.Match(splitPath(relPath), true) {
				return filepath.SkipDir
			}
			return nil
		}

		if matcher.Match(splitPath(relPath), false) {
			return nil
		}

		spec := matchSpec(specs, relPath)
		if spec == nil {
			return nil
		}

		files[spec.Kind] = append(files[spec.Kind], File{
			Path:    p,
			RelPath: relPath,
			Spec:    spec,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, bucket := range files {
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].RelPath < bucket[j].RelPath })
	}
	return files, nil
}

// matchSpec returns the first spec whose glob matches relPath. Globs
// do not cross path separators, so at most one spec can match.
func matchSpec(specs []*config.ArtifactSpec, relPath string) *config.ArtifactSpec {
	slashed := filepath.ToSlash(relPath)
	for _, spec := range specs {
		if ok, err := path.Match(spec.Path, slashed); err == nil && ok {
			return spec
		}
	}
	return nil
}

// loadGitignore loads .gitignore patterns from the definition root.
func loadGitignore(root string) ([]gitignore.Pattern, error) {
	gitignorePath := filepath.Join(root, ".gitignore")

	content, err := os.ReadFile(gitignorePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, nil
}

// splitPath breaks a path into the component form gitignore matching
// expects.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
