// Package models defines the domain types for Othala.
package models

import (
	"path"
	"strings"
	"time"
)

// Note represents a parsed Markdown file in the vault.
type Note struct {
	Path        string                 `json:"path"`
	Content     []byte                 `json:"-"`
	Body        string                 `json:"body"`
	Frontmatter map[string]interface{} `json:"frontmatter,omitempty"`
	Title       string                 `json:"title,omitempty"`
	Links       []Link                 `json:"links,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Checksum    string                 `json:"checksum"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LinkKind distinguishes the reference syntaxes found in note bodies.
type LinkKind string

const (
	// LinkWiki is a [[target]] or [[target|display]] reference.
	LinkWiki LinkKind = "wiki"
	// LinkMarkdown is a [display](target) reference to another note.
	LinkMarkdown LinkKind = "markdown"
	// LinkExternal is a [display](http...) reference; recorded, never resolved.
	LinkExternal LinkKind = "external"
)

// Link is a single reference extracted from a note body.
// Start and End are byte offsets of the whole link token in the body.
type Link struct {
	Kind    LinkKind `json:"kind"`
	Target  string   `json:"target"`
	Display string   `json:"display,omitempty"`
	Source  string   `json:"source,omitempty"`
	Start   int      `json:"start"`
	End     int      `json:"end"`
}

// OperationError records a per-document failure inside a batch operation.
// Batches accumulate these instead of aborting (partial-failure semantics).
type OperationError struct {
	Path      string `json:"path,omitempty"`
	Operation string `json:"operation,omitempty"`
	Message   string `json:"message"`
}

// NormalizePath canonicalizes a logical note path: forward slashes,
// no leading slash, and a guaranteed .md suffix. "foo" and "foo.md"
// denote the same document.
func NormalizePath(p string) string {
	p = strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/")
	p = path.Clean(p)
	if p == "." || p == "/" || p == "" {
		return ""
	}
	if !strings.HasSuffix(p, ".md") {
		p += ".md"
	}
	return p
}

// Stem returns the filename of a note path without directory or extension.
func Stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
