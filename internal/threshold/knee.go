package threshold

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Knee sorts scores descending and returns the score immediately after the
// largest drop between neighbours. The first of several equal drops wins.
func Knee(scores []float64) (float64, error) {
	if len(scores) < 2 {
		return 0, eris.New("knee: need at least two scores")
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	best, drop := 0, -1.0
	for i := 0; i+1 < len(sorted); i++ {
		if d := sorted[i] - sorted[i+1]; d > drop {
			best, drop = i, d
		}
	}
	return sorted[best+1], nil
}
