// Package parser provides the pure text transforms over Markdown
// notes: frontmatter splitting and stringifying, tag extraction,
// wikilink and Markdown-link extraction, and link rewriting. It never
// performs I/O.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/othala/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[([^\[\]]+?)\]\]`)
	mdLinkRe   = regexp.MustCompile(`\[([^\[\]]*)\]\(([^()\s]+)\)`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z0-9][A-Za-z0-9_/-]*)`)
	headingRe  = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
)

// Result holds the output of parsing a Markdown note.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Links       []models.Link
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, body, links, and tags from raw bytes.
// path supplies the title fallback (filename stem).
func Parse(path string, data []byte) *Result {
	fm, body := SplitFrontmatter(data)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       ExtractAllLinks(body),
		Tags:        ExtractTags(body, fm),
		Title:       Title(fm, path),
	}
}

// SplitFrontmatter separates a leading YAML block (between --- lines)
// from the Markdown body. Without a frontmatter block, or with YAML
// that fails to parse, the whole input is body and the map is nil.
func SplitFrontmatter(data []byte) (map[string]interface{}, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter — treat everything as body.
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// Stringify is the inverse of SplitFrontmatter. An empty frontmatter
// map yields body unchanged — round-tripping a note with no metadata
// must be lossless, so no empty --- block is ever emitted.
func Stringify(fm map[string]interface{}, body string) ([]byte, error) {
	if len(fm) == 0 {
		return []byte(body), nil
	}
	block, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("parser: marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(block)
	buf.WriteString("---\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// ExtractTags returns the sorted union of frontmatter tags and inline
// #tags. A scalar frontmatter "tags" value is coerced to a single-item
// list; leading # on frontmatter entries is stripped.
func ExtractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})

	add := func(tag string) {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag != "" {
			seen[tag] = struct{}{}
		}
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case string:
			add(v)
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		seen[m[1]] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ExtractWikiLinks returns [[target]] and [[target|display]] links in
// byte-offset order. Targets that are empty after trimming are skipped.
func ExtractWikiLinks(body string) []models.Link {
	var out []models.Link
	for _, m := range wikilinkRe.FindAllStringSubmatchIndex(body, -1) {
		raw := body[m[2]:m[3]]
		target, display := raw, ""
		if i := strings.Index(raw, "|"); i >= 0 {
			target, display = raw[:i], raw[i+1:]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		out = append(out, models.Link{
			Kind:    models.LinkWiki,
			Target:  target,
			Display: display,
			Start:   m[0],
			End:     m[1],
		})
	}
	return out
}

// ExtractMarkdownLinks returns [display](target) links in byte-offset
// order. Targets starting with http:// or https:// are tagged external.
func ExtractMarkdownLinks(body string) []models.Link {
	var out []models.Link
	for _, m := range mdLinkRe.FindAllStringSubmatchIndex(body, -1) {
		display := body[m[2]:m[3]]
		target := body[m[4]:m[5]]
		kind := models.LinkMarkdown
		if IsExternal(target) {
			kind = models.LinkExternal
		}
		out = append(out, models.Link{
			Kind:    kind,
			Target:  target,
			Display: display,
			Start:   m[0],
			End:     m[1],
		})
	}
	return out
}

// ExtractAllLinks merges wiki and Markdown links, ordered by ascending
// byte offset in the body.
func ExtractAllLinks(body string) []models.Link {
	out := append(ExtractWikiLinks(body), ExtractMarkdownLinks(body)...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// IsExternal reports whether a link target points outside the vault.
func IsExternal(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

// UpdateLinks rewrites every link whose raw target equals oldTarget
// (with or without a .md suffix) to point at newTarget, preserving
// display text. Applying it a second time is a no-op: nothing matches
// once every occurrence has been rewritten.
func UpdateLinks(body, oldTarget, newTarget string) string {
	return rewriteLinks(body, oldTarget, func(l models.Link) string {
		return renderLink(l, newTarget)
	})
}

// RemoveLink replaces every link to target with its display text (or
// nothing), used when repairing links to deleted notes.
func RemoveLink(body, target string) string {
	return rewriteLinks(body, target, func(l models.Link) string {
		if l.Display != "" {
			return l.Display
		}
		if l.Kind == models.LinkWiki {
			return l.Target
		}
		return ""
	})
}

// rewriteLinks splices replacement text over every matching link,
// walking matches in reverse so earlier offsets stay valid.
func rewriteLinks(body, target string, render func(models.Link) string) string {
	matches := matchesTarget(target)
	links := ExtractAllLinks(body)
	for i := len(links) - 1; i >= 0; i-- {
		l := links[i]
		if l.Kind == models.LinkExternal || !matches(l.Target) {
			continue
		}
		body = body[:l.Start] + render(l) + body[l.End:]
	}
	return body
}

func matchesTarget(target string) func(string) bool {
	stripped := strings.TrimSuffix(target, ".md")
	return func(raw string) bool {
		return raw == target || raw == stripped || strings.TrimSuffix(raw, ".md") == stripped
	}
}

func renderLink(l models.Link, newTarget string) string {
	switch l.Kind {
	case models.LinkWiki:
		if l.Display != "" {
			return "[[" + newTarget + "|" + l.Display + "]]"
		}
		return "[[" + newTarget + "]]"
	default:
		return "[" + l.Display + "](" + newTarget + ")"
	}
}

// Title returns the frontmatter title if present, otherwise the
// filename stem.
func Title(fm map[string]interface{}, path string) string {
	if fm != nil {
		if t, ok := fm["title"].(string); ok && t != "" {
			return t
		}
	}
	return models.Stem(path)
}

// Heading is one section header of a note body.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Headings returns every Markdown heading in order of appearance.
func Headings(body string) []Heading {
	var out []Heading
	for _, m := range headingRe.FindAllStringSubmatch(body, -1) {
		out = append(out, Heading{Level: len(m[1]), Text: strings.TrimSpace(m[2])})
	}
	return out
}

// Summary returns the first maxLen runes of the body with headings,
// link markup, and blank lines reduced to plain text.
func Summary(body string, maxLen int) string {
	text := headingRe.ReplaceAllString(body, "$2")
	text = wikilinkRe.ReplaceAllStringFunc(text, func(s string) string {
		inner := strings.Trim(s, "[]")
		if i := strings.Index(inner, "|"); i >= 0 {
			return inner[i+1:]
		}
		return inner
	})
	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if maxLen > 0 && len(runes) > maxLen {
		return string(runes[:maxLen]) + "…"
	}
	return text
}
