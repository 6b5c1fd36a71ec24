package vault

import (
	"path"
	"strings"

	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
)

// rewriteReferrers rewrites every link in the given referrer notes
// that resolves to oldPath. A non-empty newPath retargets the links; an
// empty one removes them (replaced by display text). Each referrer is
// processed independently; failures become error records.
func (s *Service) rewriteReferrers(referrers []string, oldPath, newPath string) ([]string, []models.OperationError) {
	var updated []string
	var errs []models.OperationError
	for _, ref := range referrers {
		data, err := s.store.Read(ref)
		if err != nil {
			errs = append(errs, models.OperationError{Path: ref, Operation: "read", Message: err.Error()})
			continue
		}
		fm, body := parser.SplitFrontmatter(data)
		rewritten, changed := retargetBody(body, ref, oldPath, newPath)
		if !changed {
			continue
		}
		raw, err := parser.Stringify(fm, rewritten)
		if err != nil {
			errs = append(errs, models.OperationError{Path: ref, Operation: "rewrite", Message: err.Error()})
			continue
		}
		if err := s.store.Write(ref, raw); err != nil {
			errs = append(errs, models.OperationError{Path: ref, Operation: "write", Message: err.Error()})
			continue
		}
		s.content.Delete(ref)
		s.notify(EventUpdated, ref)
		updated = append(updated, ref)
	}
	return updated, errs
}

// retargetBody splices every link of body (a note at source) that
// resolves to oldPath. With a newPath it is rewritten in place,
// preserving display text; without one it collapses to its display
// text. Matching is by resolved target, so relative and absolute raw
// forms are all caught.
func retargetBody(body, source, oldPath, newPath string) (string, bool) {
	links := parser.ExtractAllLinks(body)
	changed := false
	for i := len(links) - 1; i >= 0; i-- {
		l := links[i]
		if l.Kind == models.LinkExternal {
			continue
		}
		resolved, ok := graph.Resolve(l.Target, source)
		if !ok || resolved != oldPath {
			continue
		}
		var repl string
		if newPath == "" {
			repl = linkDisplay(l)
		} else {
			repl = renderRetargeted(l, rawTargetFor(source, newPath))
		}
		body = body[:l.Start] + repl + body[l.End:]
		changed = true
	}
	return body, changed
}

// rawTargetFor picks the raw form for a rewritten link: the bare stem
// when the new note sits next to the source, a vault-absolute path
// otherwise.
func rawTargetFor(source, newPath string) string {
	if path.Dir(source) == path.Dir(newPath) {
		return models.Stem(newPath)
	}
	return "/" + strings.TrimSuffix(newPath, ".md")
}

func renderRetargeted(l models.Link, raw string) string {
	if l.Kind == models.LinkWiki {
		if l.Display != "" {
			return "[[" + raw + "|" + l.Display + "]]"
		}
		return "[[" + raw + "]]"
	}
	return "[" + l.Display + "](" + raw + ")"
}

func linkDisplay(l models.Link) string {
	if l.Display != "" {
		return l.Display
	}
	if l.Kind == models.LinkWiki {
		return l.Target
	}
	return ""
}
