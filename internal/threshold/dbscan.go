package threshold

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/kairuizhang035-crypto/yinguo/internal/stats"
)

// noise is the DBSCAN label of a point in no cluster.
const noise = -1

// DBSCAN labels one-dimensional points. A point is a core point when at least
// minPoints points (itself included) lie within eps. Clusters are numbered
// from 0 in the order their first core point appears in values; border points
// join the first cluster that reaches them.
func DBSCAN(ctx context.Context, values []float64, eps float64, minPoints int) ([]int, error) {
	n := len(values)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = noise
	}

	// Neighbourhoods in one dimension are contiguous runs of the sorted order.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })
	sorted := make([]float64, n)
	for r, i := range order {
		sorted[r] = values[i]
	}
	neighbours := func(i int) []int {
		lo := sort.SearchFloat64s(sorted, values[i]-eps)
		hi := sort.Search(n, func(r int) bool { return sorted[r] > values[i]+eps })
		return order[lo:hi]
	}

	core := make([]bool, n)
	for i := range values {
		core[i] = len(neighbours(i)) >= minPoints
	}

	cluster := 0
	for i := range values {
		if labels[i] != noise || !core[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "dbscan: cancelled")
		}
		labels[i] = cluster
		stack := []int{i}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !core[p] {
				continue
			}
			for _, q := range neighbours(p) {
				if labels[q] == noise {
					labels[q] = cluster
					stack = append(stack, q)
				}
			}
		}
		cluster++
	}
	return labels, nil
}

// Cluster standardizes scores, runs DBSCAN, and returns the minimum score of
// the cluster with the highest mean score. Ties go to the lowest label. It
// fails when fewer than two distinct labels (noise counts as a label) appear.
func Cluster(ctx context.Context, scores []float64, eps float64, minPoints int) (float64, error) {
	labels, err := DBSCAN(ctx, stats.Standardize(scores), eps, minPoints)
	if err != nil {
		return 0, err
	}

	distinct := make(map[int]bool)
	sums := make(map[int]float64)
	counts := make(map[int]int)
	mins := make(map[int]float64)
	maxLabel := noise
	for i, l := range labels {
		distinct[l] = true
		if l == noise {
			continue
		}
		sums[l] += scores[i]
		counts[l]++
		if m, ok := mins[l]; !ok || scores[i] < m {
			mins[l] = scores[i]
		}
		if l > maxLabel {
			maxLabel = l
		}
	}
	if len(distinct) < 2 {
		return 0, eris.Errorf("cluster: only %d distinct label(s)", len(distinct))
	}

	best, bestMean := noise, math.Inf(-1)
	for l := 0; l <= maxLabel; l++ {
		if mean := sums[l] / float64(counts[l]); mean > bestMean {
			best, bestMean = l, mean
		}
	}
	if best == noise {
		return 0, eris.New("cluster: no cluster found")
	}
	return mins[best], nil
}
