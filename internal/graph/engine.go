// Package graph builds and queries the forward/backward link model
// over the whole vault. The built graph is a snapshot: any mutation
// invalidates it wholesale and the next query triggers a full rebuild.
// Incremental patching is deliberately avoided — a rename can rewrite
// links in arbitrarily many other notes, so whole-graph invalidation
// is the only cheap way to stay correct.
package graph

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/storage"
)

// buildConcurrency bounds in-flight note reads during a rebuild,
// capping open file descriptors while still overlapping I/O.
const buildConcurrency = 16

// buildState is the explicit lifecycle of the cached graph. A separate
// state (rather than a nil or empty map sentinel) keeps "never built"
// and "built over an empty vault" distinguishable.
type buildState int

const (
	stateUninitialized buildState = iota
	stateBuilt
	stateStale
)

// Node is one note in the graph with its degree counts and metadata.
type Node struct {
	Path      string   `json:"path"`
	Title     string   `json:"title"`
	Tags      []string `json:"tags"`
	OutDegree int      `json:"out_degree"`
	InDegree  int      `json:"in_degree"`
}

// Graph is an immutable snapshot of the vault's link structure.
type Graph struct {
	order    []string // listing order, drives stable tie-breaks
	nodes    map[string]*Node
	forward  map[string][]string
	backward map[string][]string
	// Errs accumulates per-note read/parse failures; a failed note is
	// kept in the graph with no outgoing links.
	Errs []models.OperationError
}

// ReadFunc supplies note content; the vault service injects its
// cache-backed reader here.
type ReadFunc func(path string) ([]byte, error)

// Engine owns the lazily built graph snapshot and its invalidation.
type Engine struct {
	mu    sync.Mutex
	store storage.Provider
	read  ReadFunc
	state buildState
	graph *Graph
}

// NewEngine creates an engine over store. A nil read falls back to
// uncached storage reads.
func NewEngine(store storage.Provider, read ReadFunc) *Engine {
	if read == nil {
		read = store.Read
	}
	return &Engine{store: store, read: read}
}

// Invalidate marks the cached graph stale. Every mutation path of the
// vault service calls this; the next query rebuilds.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.state = stateStale
	e.mu.Unlock()
}

// ensure returns the current graph, rebuilding when uninitialized or
// stale. The only fatal failure is listing the vault itself; per-note
// failures are folded into the snapshot's error list.
func (e *Engine) ensure(ctx context.Context) (*Graph, error) {
	if e.state == stateBuilt {
		return e.graph, nil
	}
	g, err := e.build(ctx)
	if err != nil {
		return nil, err
	}
	e.graph = g
	e.state = stateBuilt
	return g, nil
}

// parsed is the pass-1 result for one note.
type parsed struct {
	meta  models.NoteMetadata
	title string
	tags  []string
	links []models.Link
	err   error
}

// build constructs the snapshot in two passes: read/parse every note
// and collect resolved forward links, then invert them into backlinks.
func (e *Engine) build(ctx context.Context) (*Graph, error) {
	metas, err := e.store.List("")
	if err != nil {
		return nil, fmt.Errorf("graph: list vault: %w", err)
	}

	// Pass 1: parallel reads, bounded; results land at their listing
	// index so assembly order stays deterministic.
	results := make([]parsed, len(metas))
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(buildConcurrency)
	for i, meta := range metas {
		eg.Go(func() error {
			p := parsed{meta: meta}
			data, err := e.read(meta.Path)
			if err != nil {
				// The note stays in the graph with no outgoing links.
				p.err = err
				p.title = parser.Title(nil, meta.Path)
			} else {
				res := parser.Parse(meta.Path, data)
				p.title = res.Title
				p.tags = res.Tags
				p.links = res.Links
			}
			results[i] = p
			return nil
		})
	}
	_ = eg.Wait() // workers never return errors; failures ride in results

	g := &Graph{
		nodes:    make(map[string]*Node, len(metas)),
		forward:  make(map[string][]string, len(metas)),
		backward: make(map[string][]string),
	}

	for _, p := range results {
		src := p.meta.Path
		g.order = append(g.order, src)
		node := &Node{Path: src, Title: p.title, Tags: p.tags}
		g.nodes[src] = node

		if p.err != nil {
			g.Errs = append(g.Errs, models.OperationError{
				Path:      src,
				Operation: "read",
				Message:   p.err.Error(),
			})
			continue
		}

		seen := make(map[string]struct{})
		for _, l := range p.links {
			target, ok := Resolve(l.Target, src)
			if !ok || target == src {
				continue // external, broken, or self-loop
			}
			if _, dup := seen[target]; dup {
				continue
			}
			seen[target] = struct{}{}
			g.forward[src] = append(g.forward[src], target)
		}
		node.OutDegree = len(g.forward[src])
	}

	// Pass 2: invert forward edges, preserving insertion order.
	for _, src := range g.order {
		for _, target := range g.forward[src] {
			g.backward[target] = append(g.backward[target], src)
		}
	}
	for target, sources := range g.backward {
		if node, ok := g.nodes[target]; ok {
			node.InDegree = len(sources)
		}
	}

	return g, nil
}
