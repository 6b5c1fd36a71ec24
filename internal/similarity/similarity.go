// Package similarity decides whether two notes are near-duplicates
// without ever materializing an unbounded edit-distance matrix. The
// comparison strategy is tiered strictly by size; the tier thresholds
// are load-bearing performance limits, not tuning suggestions.
package similarity

// Comparison tiers. All values are overridable per Options.
const (
	// DirectCompareCeiling is the largest file (bytes) whose full
	// content may be loaded for string diffing. Anything bigger is
	// only compared via streaming hashes.
	DirectCompareCeiling = 50 * 1024

	// LevenshteinCeiling is the longest string (characters) fed to the
	// full O(n·m) dynamic-programming matrix. Longer inputs use the
	// sampled-window fallback.
	LevenshteinCeiling = 1000

	// SampleWindow and SampleCount configure the sampled fallback:
	// SampleCount equally spaced windows of SampleWindow characters,
	// each diffed exactly, averaged.
	SampleWindow = 500
	SampleCount  = 5

	// SizeProximityGate gates the hash tier: hashes are only computed
	// when the two sizes differ by less than this fraction of their
	// average, since differing sizes already prove inequality.
	SizeProximityGate = 0.1

	// LengthRatioGate short-circuits the sampled tier to 0 when the
	// shorter string is less than this fraction of the longer.
	LengthRatioGate = 0.5

	// Sampled-tier blend weights for length ratio vs. averaged window
	// similarity.
	lengthRatioWeight = 0.3
	windowWeight      = 0.7

	// DefaultThreshold is the duplicate-scan cutoff.
	DefaultThreshold = 0.8
)

// Options carries the tier thresholds for a detector. Zero values fall
// back to the package constants.
type Options struct {
	DirectCompareCeiling int64
	LevenshteinCeiling   int
	SampleWindow         int
	SampleCount          int
	SizeProximityGate    float64
	LengthRatioGate      float64
	Threshold            float64
}

func (o Options) withDefaults() Options {
	if o.DirectCompareCeiling == 0 {
		o.DirectCompareCeiling = DirectCompareCeiling
	}
	if o.LevenshteinCeiling == 0 {
		o.LevenshteinCeiling = LevenshteinCeiling
	}
	if o.SampleWindow == 0 {
		o.SampleWindow = SampleWindow
	}
	if o.SampleCount == 0 {
		o.SampleCount = SampleCount
	}
	if o.SizeProximityGate == 0 {
		o.SizeProximityGate = SizeProximityGate
	}
	if o.LengthRatioGate == 0 {
		o.LengthRatioGate = LengthRatioGate
	}
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// Levenshtein computes exact edit distance using two rolling rows, so
// space is O(min) rather than O(n·m).
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, min(cur[j-1]+1, prev[j-1]+cost))
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// Ratio converts edit distance to a [0,1] similarity score. Two empty
// strings are identical (1.0).
func Ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1.0
	}
	return float64(longest-Levenshtein(a, b)) / float64(longest)
}

// Compare scores two strings, choosing full Levenshtein or the sampled
// fallback by length. Scores are symmetric and Compare(s, s) == 1.
func Compare(a, b string) float64 {
	return Options{}.withDefaults().compare(a, b)
}

func (o Options) compare(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len([]rune(a)) > o.LevenshteinCeiling || len([]rune(b)) > o.LevenshteinCeiling {
		return o.sampled(a, b)
	}
	return Ratio(a, b)
}

// sampled approximates similarity for long strings: length-ratio gate,
// then exact diffs inside SampleCount equally spaced windows, blended
// with the length ratio.
func (o Options) sampled(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	shorter, longer := la, lb
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if longer == 0 {
		return 1.0
	}
	lengthRatio := float64(shorter) / float64(longer)
	if lengthRatio < o.LengthRatioGate {
		return 0
	}

	var total float64
	for i := 0; i < o.SampleCount; i++ {
		offA := windowOffset(la, o.SampleWindow, o.SampleCount, i)
		offB := windowOffset(lb, o.SampleWindow, o.SampleCount, i)
		wa := window(ra, offA, o.SampleWindow)
		wb := window(rb, offB, o.SampleWindow)
		total += Ratio(wa, wb)
	}
	avg := total / float64(o.SampleCount)

	return lengthRatioWeight*lengthRatio + windowWeight*avg
}

// windowOffset spreads window i of n evenly across a string of length l.
func windowOffset(l, size, n, i int) int {
	if l <= size || n <= 1 {
		return 0
	}
	return (l - size) * i / (n - 1)
}

func window(r []rune, off, size int) string {
	if off >= len(r) {
		return ""
	}
	end := off + size
	if end > len(r) {
		end = len(r)
	}
	return string(r[off:end])
}
