package graph

import (
	"context"
	"sort"

	"github.com/starford/othala/internal/models"
)

// Connection describes one note reached during a connections
// expansion: its neighbours and the hop count at which BFS first
// reached it (the shortest hop distance, since every edge weighs 1).
type Connection struct {
	Backlinks    []string `json:"backlinks"`
	ForwardLinks []string `json:"forward_links"`
	Depth        int      `json:"depth"`
}

// ConnectedNote is one entry of the most-connected ranking.
type ConnectedNote struct {
	Path         string `json:"path"`
	Connections  int    `json:"connections"`
	Backlinks    int    `json:"backlinks"`
	ForwardLinks int    `json:"forward_links"`
}

// Statistics summarizes the whole graph.
type Statistics struct {
	TotalNotes         int             `json:"total_notes"`
	TotalLinks         int             `json:"total_links"`
	OrphanedNotes      []string        `json:"orphaned_notes"`
	MostConnectedNotes []ConnectedNote `json:"most_connected_notes"`
	AverageConnections float64         `json:"average_connections"`
}

// hubCount is how many top-degree notes Statistics reports.
const hubCount = 10

// Backlinks returns the notes linking to path, in pass-2 insertion
// order (callers must not assume lexicographic order).
func (e *Engine) Backlinks(ctx context.Context, path string) ([]string, []models.OperationError, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, err := e.ensure(ctx)
	if err != nil {
		return nil, nil, err
	}
	return append([]string(nil), g.backward[models.NormalizePath(path)]...), g.Errs, nil
}

// ForwardLinks returns the resolved outgoing link targets of path.
func (e *Engine) ForwardLinks(ctx context.Context, path string) ([]string, []models.OperationError, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, err := e.ensure(ctx)
	if err != nil {
		return nil, nil, err
	}
	return append([]string(nil), g.forward[models.NormalizePath(path)]...), g.Errs, nil
}

// Orphans returns every note with no links in either direction, in
// listing order. An empty vault yields an empty result, not an error.
func (e *Engine) Orphans(ctx context.Context) ([]string, []models.OperationError, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, err := e.ensure(ctx)
	if err != nil {
		return nil, nil, err
	}
	return g.orphans(), g.Errs, nil
}

func (g *Graph) orphans() []string {
	out := []string{}
	for _, p := range g.order {
		if len(g.forward[p]) == 0 && len(g.backward[p]) == 0 {
			out = append(out, p)
		}
	}
	return out
}

// Connections expands from path up to depth hops, following edges in
// both directions. Standard BFS visited-set discipline: each note is
// recorded once, at the depth it was first reached.
func (e *Engine) Connections(ctx context.Context, path string, depth int) (map[string]Connection, []models.OperationError, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, err := e.ensure(ctx)
	if err != nil {
		return nil, nil, err
	}

	start := models.NormalizePath(path)
	out := make(map[string]Connection)
	if _, ok := g.nodes[start]; !ok {
		return out, g.Errs, nil
	}

	type hop struct {
		path  string
		depth int
	}
	visited := map[string]struct{}{start: {}}
	queue := []hop{{start, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		out[cur.path] = Connection{
			Backlinks:    append([]string{}, g.backward[cur.path]...),
			ForwardLinks: append([]string{}, g.forward[cur.path]...),
			Depth:        cur.depth,
		}
		if cur.depth == depth {
			continue
		}
		for _, next := range append(append([]string{}, g.forward[cur.path]...), g.backward[cur.path]...) {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, hop{next, cur.depth + 1})
		}
	}
	return out, g.Errs, nil
}

// MostConnected ranks notes by total degree, descending, ties broken
// by listing order (stable sort).
func (e *Engine) MostConnected(ctx context.Context, limit int) ([]ConnectedNote, []models.OperationError, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, err := e.ensure(ctx)
	if err != nil {
		return nil, nil, err
	}
	return g.mostConnected(limit), g.Errs, nil
}

func (g *Graph) mostConnected(limit int) []ConnectedNote {
	ranked := make([]ConnectedNote, 0, len(g.order))
	for _, p := range g.order {
		n := g.nodes[p]
		ranked = append(ranked, ConnectedNote{
			Path:         p,
			Connections:  n.OutDegree + n.InDegree,
			Backlinks:    n.InDegree,
			ForwardLinks: n.OutDegree,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Connections > ranked[j].Connections
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// ShortestPath runs BFS over forward edges only (links are directed)
// and returns the full note sequence from source to target inclusive.
// source == target trivially yields a single-element path; an
// unreachable target yields an empty path, never an error.
func (e *Engine) ShortestPath(ctx context.Context, source, target string) ([]string, []models.OperationError, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, err := e.ensure(ctx)
	if err != nil {
		return nil, nil, err
	}

	src := models.NormalizePath(source)
	dst := models.NormalizePath(target)
	if _, ok := g.nodes[src]; !ok {
		return []string{}, g.Errs, nil
	}
	if src == dst {
		return []string{src}, g.Errs, nil
	}

	prev := map[string]string{}
	visited := map[string]struct{}{src: {}}
	queue := []string{src}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.forward[cur] {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			prev[next] = cur
			if next == dst {
				return unwind(prev, src, dst), g.Errs, nil
			}
			queue = append(queue, next)
		}
	}
	return []string{}, g.Errs, nil
}

func unwind(prev map[string]string, src, dst string) []string {
	path := []string{dst}
	for cur := dst; cur != src; cur = prev[cur] {
		path = append(path, prev[cur])
	}
	// Reverse into source→target order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Stats computes vault-wide graph statistics.
func (e *Engine) Stats(ctx context.Context) (Statistics, []models.OperationError, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, err := e.ensure(ctx)
	if err != nil {
		return Statistics{}, nil, err
	}

	total := 0
	for _, targets := range g.forward {
		total += len(targets)
	}
	avg := 0.0
	if len(g.order) > 0 {
		avg = float64(total*2) / float64(len(g.order))
	}
	return Statistics{
		TotalNotes:         len(g.order),
		TotalLinks:         total,
		OrphanedNotes:      g.orphans(),
		MostConnectedNotes: g.mostConnected(hubCount),
		AverageConnections: avg,
	}, g.Errs, nil
}
