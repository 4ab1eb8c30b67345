package records

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// zeroGUID is the canonical form of the all-zero identifier some
// records use to mean "no reference".
const zeroGUID = "00000000-0000-0000-0000-000000000000"

// CanonicalGUID normalizes an identifier for use as a graph key:
// recognized UUID forms (hyphenated, braced, bare hex) come back
// hyphenated and lowercase, anything else is lowercased as-is.
func CanonicalGUID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if u, err := uuid.Parse(s); err == nil {
		return u.String()
	}
	return strings.ToLower(s)
}

// IsZeroGUID reports whether s is empty or the all-zero identifier.
func IsZeroGUID(s string) bool {
	c := CanonicalGUID(s)
	return c == "" || c == zeroGUID
}

// BaseName returns the file name of path without its final extension.
// Record files are keyed by this.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
