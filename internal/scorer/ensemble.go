package scorer

import (
	"sort"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
)

// Combiner merges dimension scores into the ensemble score.
type Combiner struct {
	weights Weights
}

// NewCombiner validates weights and returns a combiner. Invalid weights are a
// ConfigurationError.
func NewCombiner(weights map[string]float64) (*Combiner, error) {
	w, err := ValidateWeights(weights)
	if err != nil {
		return nil, err
	}
	return &Combiner{weights: w}, nil
}

// Weights returns the validated weight vector.
func (c *Combiner) Weights() Weights { return c.weights }

// Combine returns the weighted sum of d, summed in model.Dimensions order and
// clamped to [0,1].
func (c *Combiner) Combine(d model.DimensionScores) float64 {
	var s float64
	for i, dim := range model.Dimensions {
		s += c.weights[i] * d.Get(dim)
	}
	return clamp01(s)
}

// Apply sets the Ensemble field of every edge.
func (c *Combiner) Apply(edges []model.ScoredEdge) {
	for i := range edges {
		edges[i].Ensemble = c.Combine(edges[i].Dimensions)
	}
}

// Rank returns a copy of edges sorted by descending ensemble score. Equal
// scores keep their input order.
func Rank(edges []model.ScoredEdge) []model.ScoredEdge {
	ranked := make([]model.ScoredEdge, len(edges))
	copy(ranked, edges)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Ensemble > ranked[j].Ensemble
	})
	return ranked
}
