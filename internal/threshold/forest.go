package threshold

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"

	"github.com/kairuizhang035-crypto/yinguo/internal/stats"
)

const eulerGamma = 0.5772156649

// Forest is a one-dimensional isolation forest.
type Forest struct {
	Trees         int
	MaxSamples    int
	Contamination float64
	Seed          uint64
}

type node struct {
	split       float64
	left, right *node
	size        int
}

// Threshold fits the forest to scores and returns the minimum score among the
// inliers. The inlier cut is the contamination quantile of the sample scores.
func (f Forest) Threshold(ctx context.Context, scores []float64) (float64, error) {
	samples, err := f.ScoreSamples(ctx, scores)
	if err != nil {
		return 0, err
	}
	offset := stats.Percentile(samples, f.Contamination)

	threshold, found := math.Inf(1), false
	for i, s := range samples {
		if s >= offset && scores[i] < threshold {
			threshold, found = scores[i], true
		}
	}
	if !found {
		return 0, eris.New("outlier: no inliers")
	}
	return threshold, nil
}

// ScoreSamples returns the negated anomaly score of every point: lower values
// are more anomalous. The same inputs and seed always give the same result.
func (f Forest) ScoreSamples(ctx context.Context, values []float64) ([]float64, error) {
	n := len(values)
	if n == 0 {
		return nil, eris.New("outlier: no samples")
	}
	if f.Trees <= 0 {
		return nil, eris.Errorf("outlier: invalid tree count %d", f.Trees)
	}
	psi := n
	if f.MaxSamples > 0 && f.MaxSamples < n {
		psi = f.MaxSamples
	}
	limit := int(math.Ceil(math.Log2(math.Max(float64(psi), 2))))

	rng := rand.New(rand.NewPCG(f.Seed, f.Seed))
	depths := make([]float64, n)
	sample := make([]float64, psi)
	for t := 0; t < f.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "outlier: cancelled")
		}
		perm := rng.Perm(n)
		for i := 0; i < psi; i++ {
			sample[i] = values[perm[i]]
		}
		root := grow(rng, sample, 0, limit)
		for i, v := range values {
			depths[i] += pathLength(root, v, 0)
		}
	}

	norm := averagePathLength(psi)
	out := make([]float64, n)
	for i := range depths {
		mean := depths[i] / float64(f.Trees)
		out[i] = -math.Pow(2, -mean/norm)
	}
	return out, nil
}

// grow builds an isolation tree over xs. It reorders xs in place.
func grow(rng *rand.Rand, xs []float64, depth, limit int) *node {
	if depth >= limit || len(xs) <= 1 {
		return &node{size: len(xs)}
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if lo == hi {
		return &node{size: len(xs)}
	}
	split := lo + rng.Float64()*(hi-lo)

	// Partition: values <= split go left.
	i := 0
	for j := range xs {
		if xs[j] <= split {
			xs[i], xs[j] = xs[j], xs[i]
			i++
		}
	}
	return &node{
		split: split,
		left:  grow(rng, xs[:i], depth+1, limit),
		right: grow(rng, xs[i:], depth+1, limit),
		size:  len(xs),
	}
}

func pathLength(n *node, v float64, depth int) float64 {
	for n.left != nil {
		if v <= n.split {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(n.size)
}

// averagePathLength is the expected path length of an unsuccessful search in
// a binary search tree of n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
