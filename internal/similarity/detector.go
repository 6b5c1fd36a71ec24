package similarity

import (
	"context"
	"strings"

	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/storage"
)

// MatchType records which signal produced a similarity score.
type MatchType string

const (
	MatchContent MatchType = "content"
	MatchTitle   MatchType = "title"
)

// Match is a scored note pair.
type Match struct {
	PathA string    `json:"path_a"`
	PathB string    `json:"path_b"`
	Score float64   `json:"score"`
	Type  MatchType `json:"type"`
}

// Group is one cluster of near-duplicate notes found by a scan. The
// first path is the anchor; every member scored at or above the
// threshold against it.
type Group struct {
	Paths []string  `json:"paths"`
	Score float64   `json:"score"`
	Type  MatchType `json:"type"`
}

// Detector runs similarity comparisons against vault files.
type Detector struct {
	store storage.Provider
	opts  Options
}

// NewDetector creates a detector over store. Zero fields of opts take
// the package-constant defaults.
func NewDetector(store storage.Provider, opts Options) *Detector {
	return &Detector{store: store, opts: opts.withDefaults()}
}

// CompareNotes scores two notes. Content similarity is always
// computed; when withTitle is set, filename-stem similarity
// (case-insensitive) is computed the same way and the higher of the
// two scores wins, tagged with its source.
func (d *Detector) CompareNotes(ctx context.Context, pathA, pathB string, withTitle bool) (Match, error) {
	pathA = models.NormalizePath(pathA)
	pathB = models.NormalizePath(pathB)
	m := Match{PathA: pathA, PathB: pathB, Type: MatchContent}

	score, err := d.contentScore(pathA, pathB)
	if err != nil {
		return m, err
	}
	m.Score = score

	if withTitle {
		titleScore := d.opts.compare(
			strings.ToLower(models.Stem(pathA)),
			strings.ToLower(models.Stem(pathB)),
		)
		if titleScore > m.Score {
			m.Score = titleScore
			m.Type = MatchTitle
		}
	}
	return m, nil
}

// contentScore applies the size-tiered strategy: hash comparison for
// files over the direct ceiling, string comparison otherwise.
func (d *Detector) contentScore(pathA, pathB string) (float64, error) {
	infoA, err := d.store.Stat(pathA)
	if err != nil {
		return 0, err
	}
	infoB, err := d.store.Stat(pathB)
	if err != nil {
		return 0, err
	}

	if infoA.Size > d.opts.DirectCompareCeiling || infoB.Size > d.opts.DirectCompareCeiling {
		return d.hashScore(pathA, pathB, infoA.Size, infoB.Size)
	}

	a, err := d.store.Read(pathA)
	if err != nil {
		return 0, err
	}
	b, err := d.store.Read(pathB)
	if err != nil {
		return 0, err
	}
	return d.opts.compare(string(a), string(b)), nil
}

// hashScore never reads full content into a diff. Sizes further apart
// than the proximity gate already prove inequality, so the hash cost
// is skipped entirely; otherwise equality of streaming digests scores
// 1, anything else 0.
func (d *Detector) hashScore(pathA, pathB string, sizeA, sizeB int64) (float64, error) {
	avg := float64(sizeA+sizeB) / 2
	if avg == 0 {
		return 1.0, nil
	}
	diff := float64(sizeA - sizeB)
	if diff < 0 {
		diff = -diff
	}
	if diff/avg >= d.opts.SizeProximityGate {
		return 0, nil
	}

	absA, err := d.store.Abs(pathA)
	if err != nil {
		return 0, err
	}
	absB, err := d.store.Abs(pathB)
	if err != nil {
		return 0, err
	}
	hashA, err := checksum.File(absA)
	if err != nil {
		return 0, err
	}
	hashB, err := checksum.File(absB)
	if err != nil {
		return 0, err
	}
	if hashA == hashB {
		return 1.0, nil
	}
	return 0, nil
}

// FindDuplicates scans every note pair and partitions matches into
// groups. Each note anchors at most one group: once grouped it is not
// reconsidered, so transitive-but-uneven chains may group
// asymmetrically. That is an accepted approximation — the scan yields
// a partition, not a full similarity graph. A failing pair is recorded
// and skipped, never aborting the scan.
func (d *Detector) FindDuplicates(ctx context.Context, threshold float64, withTitle bool) ([]Group, []models.OperationError, error) {
	if threshold <= 0 {
		threshold = d.opts.Threshold
	}

	metas, err := d.store.List("")
	if err != nil {
		return nil, nil, err
	}

	var groups []Group
	var errs []models.OperationError
	scanned := make(map[string]bool, len(metas))

	for i, anchor := range metas {
		if scanned[anchor.Path] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return groups, errs, err
		}

		group := Group{Paths: []string{anchor.Path}, Score: 1.0, Type: MatchContent}
		for _, other := range metas[i+1:] {
			if scanned[other.Path] {
				continue
			}
			m, err := d.CompareNotes(ctx, anchor.Path, other.Path, withTitle)
			if err != nil {
				errs = append(errs, models.OperationError{
					Path:      other.Path,
					Operation: "compare",
					Message:   err.Error(),
				})
				continue
			}
			if m.Score >= threshold {
				group.Paths = append(group.Paths, other.Path)
				if m.Score < group.Score {
					group.Score = m.Score
				}
				group.Type = m.Type
				scanned[other.Path] = true
			}
		}

		if len(group.Paths) > 1 {
			scanned[anchor.Path] = true
			groups = append(groups, group)
		}
	}
	return groups, errs, nil
}
