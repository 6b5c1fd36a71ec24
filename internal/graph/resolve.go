package graph

import (
	"path"
	"strings"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
)

// Resolve maps a raw link target to a normalized vault path, relative
// to the note containing the link. The rule is a simplifying
// heuristic, not a vault-wide name index:
//
//   - a leading / is vault-root absolute
//   - anything containing / is relative to the source note's directory
//   - a bare name is sibling-relative (same directory as the source)
//
// External targets and targets escaping the vault root resolve to
// ("", false). Resolution is deterministic in (raw, source).
func Resolve(raw, source string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || parser.IsExternal(raw) {
		return "", false
	}
	raw = strings.TrimSuffix(raw, ".md")

	var resolved string
	if strings.HasPrefix(raw, "/") {
		resolved = strings.TrimPrefix(raw, "/")
	} else {
		resolved = path.Join(path.Dir(source), raw)
	}

	resolved = models.NormalizePath(resolved)
	if resolved == "" || strings.HasPrefix(resolved, "../") {
		return "", false
	}
	return resolved, true
}
