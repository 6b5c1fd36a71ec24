// Package vault coordinates storage, the bounded caches, the link
// graph, and the duplicate detector behind one service type. All
// mutation paths funnel through here so that cache and graph
// invalidation can never be skipped.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/cache"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/similarity"
	"github.com/starford/othala/internal/storage"
)

// Event kinds published to the notifier on mutations. These originate
// only from the service's own writes; there is no filesystem watching.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventRenamed = "renamed"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Links       []models.Link  `json:"links"`
	Backlinks   []string       `json:"backlinks"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Service is the core coordinator. Every mutation invalidates the
// content-cache entries it touches, clears the query cache, and marks
// the graph stale.
type Service struct {
	store   storage.Provider
	content *cache.Cache[[]byte]
	queries *cache.Cache[[]byte]
	graph   *graph.Engine
	detect  *similarity.Detector
	notify  func(kind, path string)
}

// NewService wires the service. The graph engine reads through the
// service's content cache.
func NewService(store storage.Provider, content, queries *cache.Cache[[]byte], detect *similarity.Detector) *Service {
	s := &Service{
		store:   store,
		content: content,
		queries: queries,
		detect:  detect,
		notify:  func(string, string) {},
	}
	s.graph = graph.NewEngine(store, s.readCached)
	return s
}

// SetNotify installs a mutation-event callback (the SSE broker).
func (s *Service) SetNotify(fn func(kind, path string)) {
	if fn != nil {
		s.notify = fn
	}
}

// Graph exposes the engine for the query surfaces.
func (s *Service) Graph() *graph.Engine { return s.graph }

// Detector exposes the duplicate detector for the query surfaces.
func (s *Service) Detector() *similarity.Detector { return s.detect }

// readCached is the read-through content path: cache hit, or disk read
// followed by a best-effort cache populate. Caching is an optimization
// only — an oversized note simply stays uncached.
func (s *Service) readCached(path string) ([]byte, error) {
	if data, ok := s.content.Get(path); ok {
		return data, nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	s.content.Set(path, data, int64(len(data)))
	return data, nil
}

// GetNote reads a note through the content cache, parses it, and
// enriches it with backlinks.
func (s *Service) GetNote(ctx context.Context, path string) (*NoteDetail, error) {
	path = models.NormalizePath(path)
	data, err := s.readCached(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildDetail(ctx, path, data)
}

// CreateNote writes a new note. Creating over an existing path is a
// conflict, not an overwrite.
func (s *Service) CreateNote(ctx context.Context, path string, content []byte) (*NoteDetail, error) {
	path = models.NormalizePath(path)
	if s.store.Exists(path) {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	s.invalidate(path)
	s.notify(EventCreated, path)
	return s.buildDetail(ctx, path, content)
}

// UpdateNote replaces a note's content wholesale. A non-empty ifMatch
// checksum enforces optimistic concurrency.
func (s *Service) UpdateNote(ctx context.Context, path string, content []byte, ifMatch string) (*NoteDetail, error) {
	path = models.NormalizePath(path)
	existing, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	s.invalidate(path)
	s.notify(EventUpdated, path)
	return s.buildDetail(ctx, path, content)
}

// UpdateFrontmatter merges fields into a note's frontmatter, leaving
// the body untouched. Setting a field to nil removes it.
func (s *Service) UpdateFrontmatter(ctx context.Context, path string, fields map[string]any) (*NoteDetail, error) {
	path = models.NormalizePath(path)
	data, err := s.readCached(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	fm, body := parser.SplitFrontmatter(data)
	if fm == nil {
		fm = make(map[string]any)
	}
	for k, v := range fields {
		if v == nil {
			delete(fm, k)
		} else {
			fm[k] = v
		}
	}
	raw, err := parser.Stringify(fm, body)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(path, raw); err != nil {
		return nil, err
	}
	s.invalidate(path)
	s.notify(EventUpdated, path)
	return s.buildDetail(ctx, path, raw)
}

// DeleteNote removes a note. With cleanupRefs set, links pointing at
// it in other notes are replaced by their display text first; failures
// there are reported per referrer, never blocking the delete.
func (s *Service) DeleteNote(ctx context.Context, path string, cleanupRefs bool) (*BatchResult[[]string], error) {
	path = models.NormalizePath(path)
	if !s.store.Exists(path) {
		return nil, apperr.ErrNotFound
	}

	var cleaned []string
	var errs []models.OperationError
	var referrers []string
	if cleanupRefs {
		var err error
		referrers, _, err = s.graph.Backlinks(ctx, path)
		if err != nil {
			return nil, err
		}
		cleaned, errs = s.rewriteReferrers(referrers, path, "")
	}

	if err := s.store.Delete(path); err != nil {
		return nil, err
	}
	s.invalidate(path)
	s.notify(EventDeleted, path)
	return newBatchResult(cleaned, errs, len(referrers)), nil
}

// RenameResult reports a rename and the referrers rewritten for it.
type RenameResult struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	UpdatedRefs []string `json:"updated_refs"`
}

// RenameNote moves a note to a new path. With updateRefs set, every
// note linking to the old path is rewritten to point at the new one.
// Per-referrer rewrite failures are accumulated, not fatal.
func (s *Service) RenameNote(ctx context.Context, oldPath, newPath string, updateRefs bool) (*BatchResult[RenameResult], error) {
	oldPath = models.NormalizePath(oldPath)
	newPath = models.NormalizePath(newPath)
	if !s.store.Exists(oldPath) {
		return nil, apperr.ErrNotFound
	}
	if s.store.Exists(newPath) {
		return nil, apperr.ErrAlreadyExists
	}

	// Referrers must come from the pre-rename graph.
	var referrers []string
	if updateRefs {
		var err error
		referrers, _, err = s.graph.Backlinks(ctx, oldPath)
		if err != nil {
			return nil, err
		}
	}

	if err := s.store.Move(oldPath, newPath); err != nil {
		return nil, err
	}
	s.content.Delete(oldPath)
	s.invalidate(newPath)

	updated, errs := s.rewriteReferrers(referrers, oldPath, newPath)
	s.notify(EventRenamed, newPath)

	res := RenameResult{From: oldPath, To: newPath, UpdatedRefs: updated}
	return newBatchResult(res, errs, len(referrers)), nil
}

// ListNotes lists note metadata under dir ("" for the whole vault).
func (s *Service) ListNotes(_ context.Context, dir string) ([]models.NoteMetadata, error) {
	return s.store.List(dir)
}

// invalidate is the single invalidation hook behind every mutation:
// drop the content-cache entry for the path, clear derived query
// results, and mark the graph stale.
func (s *Service) invalidate(path string) {
	s.content.Delete(path)
	s.queries.Clear()
	s.graph.Invalidate()
}

func (s *Service) buildDetail(ctx context.Context, path string, data []byte) (*NoteDetail, error) {
	res := parser.Parse(path, data)
	backlinks, _, err := s.graph.Backlinks(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("vault: backlinks for %s: %w", path, err)
	}
	return &NoteDetail{
		Path:        path,
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        res.Tags,
		Frontmatter: res.Frontmatter,
		Links:       nonNilSlice(res.Links),
		Backlinks:   nonNilSlice(backlinks),
		UpdatedAt:   time.Now(),
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
