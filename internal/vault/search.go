package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/othala/internal/cache"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
)

const (
	// scanConcurrency bounds in-flight reads during vault-wide scans,
	// capping descriptors and memory while overlapping I/O.
	scanConcurrency = 12

	// largeFileBytes is the size above which text scans stream line by
	// line instead of buffering the whole file.
	largeFileBytes = 5 << 20
)

// SearchHit is one matching line of a text scan.
type SearchHit struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// SearchText scans every note for a substring (or regex) match. This
// is a plain scan, not an index: results are cached in the query cache
// and invalidated by any mutation. Per-note read failures are
// accumulated; the scan never aborts.
func (s *Service) SearchText(ctx context.Context, pattern string, useRegex bool) (*BatchResult[[]SearchHit], error) {
	var re *regexp.Regexp
	if useRegex {
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("vault: bad search pattern: %w", err)
		}
	}

	cacheKey := fmt.Sprintf("search:%v:%s", useRegex, pattern)
	if cached, ok := queryCached[[]SearchHit](s.queries, cacheKey); ok {
		return newBatchResult(cached, nil, len(cached)), nil
	}

	metas, err := s.store.List("")
	if err != nil {
		return nil, err
	}

	match := func(line string) bool {
		if re != nil {
			return re.MatchString(line)
		}
		return strings.Contains(line, pattern)
	}

	type scanOut struct {
		hits []SearchHit
		err  *models.OperationError
	}
	results := make([]scanOut, len(metas))

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(scanConcurrency)
	for i, meta := range metas {
		eg.Go(func() error {
			hits, err := s.scanNote(meta, match)
			if err != nil {
				results[i] = scanOut{err: &models.OperationError{
					Path:      meta.Path,
					Operation: "search",
					Message:   err.Error(),
				}}
				return nil
			}
			results[i] = scanOut{hits: hits}
			return nil
		})
	}
	_ = eg.Wait()

	hits := []SearchHit{}
	var errs []models.OperationError
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, *r.err)
			continue
		}
		hits = append(hits, r.hits...)
	}

	if len(errs) == 0 {
		queryStore(s.queries, cacheKey, hits)
	}
	return newBatchResult(hits, errs, len(metas)), nil
}

// scanNote matches line by line. Files above the large-file threshold
// are streamed and never buffered whole; smaller ones go through the
// content cache.
func (s *Service) scanNote(meta models.NoteMetadata, match func(string) bool) ([]SearchHit, error) {
	var hits []SearchHit
	if meta.Size > largeFileBytes {
		err := s.store.ReadLines(meta.Path, func(line string, n int) error {
			if match(line) {
				hits = append(hits, SearchHit{Path: meta.Path, Line: n, Text: line})
			}
			return nil
		})
		return hits, err
	}

	data, err := s.readCached(meta.Path)
	if err != nil {
		return nil, err
	}
	for n, line := range strings.Split(string(data), "\n") {
		if match(line) {
			hits = append(hits, SearchHit{Path: meta.Path, Line: n + 1, Text: line})
		}
	}
	return hits, nil
}

// VaultStats aggregates vault-wide note statistics.
type VaultStats struct {
	TotalNotes int            `json:"total_notes"`
	TotalBytes int64          `json:"total_bytes"`
	TagCounts  map[string]int `json:"tag_counts"`
}

// Stats computes note counts, total size, and the tag histogram with
// the same bounded-concurrency, partial-failure discipline as search.
func (s *Service) Stats(ctx context.Context) (*BatchResult[VaultStats], error) {
	const cacheKey = "stats"
	if cached, ok := queryCached[VaultStats](s.queries, cacheKey); ok {
		return newBatchResult(cached, nil, cached.TotalNotes), nil
	}

	metas, err := s.store.List("")
	if err != nil {
		return nil, err
	}

	stats := VaultStats{TagCounts: make(map[string]int)}
	var mu sync.Mutex
	var errs []models.OperationError

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(scanConcurrency)
	for _, meta := range metas {
		eg.Go(func() error {
			data, err := s.readCached(meta.Path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Failed notes still count toward size via metadata.
				errs = append(errs, models.OperationError{
					Path:      meta.Path,
					Operation: "stats",
					Message:   err.Error(),
				})
				return nil
			}
			res := parser.Parse(meta.Path, data)
			for _, tag := range res.Tags {
				stats.TagCounts[tag]++
			}
			return nil
		})
	}
	_ = eg.Wait()

	stats.TotalNotes = len(metas)
	for _, m := range metas {
		stats.TotalBytes += m.Size
	}

	if len(errs) == 0 {
		queryStore(s.queries, cacheKey, stats)
	}
	return newBatchResult(stats, errs, len(metas)), nil
}

// CacheStats reports both cache instances.
type CacheStats struct {
	Content cache.Stats `json:"content"`
	Queries cache.Stats `json:"queries"`
}

// CacheStatistics returns accounting numbers for both caches.
func (s *Service) CacheStatistics() CacheStats {
	return CacheStats{
		Content: s.content.GetStats(),
		Queries: s.queries.GetStats(),
	}
}

// queryCached loads a serialized query result. Any failure is a miss:
// caching is an optimization, never a correctness dependency.
func queryCached[T any](c *cache.Cache[[]byte], key string) (T, bool) {
	var out T
	data, ok := c.Get(key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		c.Delete(key)
		return out, false
	}
	return out, true
}

// queryStore serializes and caches a query result; serialization
// failure silently degrades to "not cached".
func queryStore[T any](c *cache.Cache[[]byte], key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(key, data, int64(len(data)))
}
