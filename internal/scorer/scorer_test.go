package scorer

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairuizhang035-crypto/yinguo/internal/config"
	"github.com/kairuizhang035-crypto/yinguo/internal/ingest"
	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/resilience"
)

type fixedNet float64

func (f fixedNet) EdgeScore(model.EdgeKey) float64 { return float64(f) }

func fiveProducers() []ingest.Producer {
	return []ingest.Producer{
		{Index: 0, Name: "pc", Category: model.CategoryConstraintBased, Weight: 1},
		{Index: 1, Name: "hc", Category: model.CategoryScoreBased, Weight: 1},
		{Index: 2, Name: "ges", Category: model.CategoryEquivalenceSearch, Weight: 1},
		{Index: 3, Name: "tree", Category: model.CategoryTreeStructured, Weight: 1},
		{Index: 4, Name: "expert", Category: model.CategoryExpertGuided, Weight: 1},
	}
}

// evidence builds an Evidence from (edge, producer) observations.
func evidence(producers []ingest.Producer, obs map[model.EdgeKey][]string, order []model.EdgeKey) *ingest.Evidence {
	cat := make(map[string]model.ProducerCategory)
	for _, p := range producers {
		cat[p.Name] = p.Category
	}
	ev := &ingest.Evidence{
		Producers:   producers,
		Keys:        order,
		Rows:        make(map[model.EdgeKey][]model.EvidenceRow),
		Appearances: make(map[model.EdgeKey]int),
	}
	for _, k := range order {
		for _, name := range obs[k] {
			ev.Rows[k] = append(ev.Rows[k], model.EvidenceRow{
				Edge: k, Producer: name, Category: cat[name], Support: 0.8, Validated: true,
			})
			ev.Appearances[k]++
		}
	}
	return ev
}

var (
	ab = model.EdgeKey{Source: "A", Target: "B"}
	bc = model.EdgeKey{Source: "B", Target: "C"}
	cd = model.EdgeKey{Source: "C", Target: "D"}
)

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights map[string]float64
		wantErr string
	}{
		{"defaults", config.DefaultDimensionWeights(), ""},
		{"significance weighted", map[string]float64{"frequency": 0.5, "significance": 0.5}, ""},
		{"unknown dimension", map[string]float64{"frequency": 0.5, "novelty": 0.5}, `unknown dimension "novelty"`},
		{"negative weight", map[string]float64{"frequency": 1.2, "diversity": -0.2}, "diversity weight must be >= 0"},
		{"sum above one", map[string]float64{"frequency": 0.6, "diversity": 0.6}, "weights should sum to 1"},
		{"empty", map[string]float64{}, "weights should sum to 1"},
		{"within tolerance", map[string]float64{"frequency": 0.5000004, "diversity": 0.4999998}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateWeights(tt.weights)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, resilience.IsConfiguration(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWeightsGet(t *testing.T) {
	w, err := ValidateWeights(config.DefaultDimensionWeights())
	require.NoError(t, err)
	assert.InDelta(t, 0.30, w.Get(model.DimFrequency), 1e-12)
	assert.InDelta(t, 0.20, w.Get(model.DimNetworkPosition), 1e-12)
	assert.Zero(t, w.Get(model.DimSignificance))
}

func TestScore_AllProducersAgree(t *testing.T) {
	producers := fiveProducers()
	ev := evidence(producers, map[model.EdgeKey][]string{
		ab: {"pc", "hc", "ges", "tree", "expert"},
	}, []model.EdgeKey{ab})

	edges, err := NewDimensionScorer(producers, 2).Score(context.Background(), ev, fixedNet(0.5))
	require.NoError(t, err)
	require.Len(t, edges, 1)

	e := edges[0]
	assert.Equal(t, 5, e.SupportCount)
	assert.Equal(t, 5, e.Appearances)
	assert.Equal(t, []string{"pc", "hc", "ges", "tree", "expert"}, e.Producers)
	assert.InDelta(t, 0.8, e.MeanSupport, 1e-12)
	assert.InDelta(t, 1.0, e.Dimensions.Frequency, 1e-12)
	assert.InDelta(t, 1.0, e.Dimensions.Diversity, 1e-12)
	assert.InDelta(t, 1.0, e.Dimensions.Consistency, 1e-12)
	assert.InDelta(t, 0.5, e.Dimensions.NetworkPosition, 1e-12)
	// A single edge has zero spread: z = 0.
	assert.InDelta(t, 0.5, e.Dimensions.Significance, 1e-12)

	c, err := NewCombiner(config.DefaultDimensionWeights())
	require.NoError(t, err)
	c.Apply(edges)
	assert.InDelta(t, 0.9, edges[0].Ensemble, 1e-12)
	assert.GreaterOrEqual(t, edges[0].Ensemble, 0.8)
}

func TestScore_Dimensions(t *testing.T) {
	producers := fiveProducers()
	producers[0].Weight = 3
	producers[1].Category = model.CategoryConstraintBased
	ev := evidence(producers, map[model.EdgeKey][]string{
		ab: {"pc", "hc"},
		bc: {"ges"},
		cd: {"ges"},
	}, []model.EdgeKey{ab, bc, cd})

	edges, err := NewDimensionScorer(producers, 1).Score(context.Background(), ev, nil)
	require.NoError(t, err)
	require.Len(t, edges, 3)

	abScores := edges[0].Dimensions
	assert.InDelta(t, 2.0/5, abScores.Frequency, 1e-12)
	assert.InDelta(t, 1.0/4, abScores.Diversity, 1e-12, "pc and hc share a category")
	assert.InDelta(t, 4.0/7, abScores.Consistency, 1e-12)
	assert.InDelta(t, 0.5, abScores.NetworkPosition, 1e-12, "no network falls back to neutral")

	mean := 4.0 / 3
	std := math.Sqrt(((2-mean)*(2-mean) + 2*(1-mean)*(1-mean)) / 3)
	assert.InDelta(t, 1/(1+math.Exp(-(2-mean)/std)), abScores.Significance, 1e-12)
	assert.Less(t, edges[1].Dimensions.Significance, 0.5)
}

func TestScore_Bounds(t *testing.T) {
	producers := fiveProducers()
	ev := evidence(producers, map[model.EdgeKey][]string{
		ab: {"pc", "hc", "ges", "tree", "expert"},
		bc: {"pc"},
		cd: {},
	}, []model.EdgeKey{ab, bc, cd})
	ev.Appearances[ab] = 1000

	for _, net := range []NetworkPosition{fixedNet(-3), fixedNet(7), fixedNet(math.NaN()), fixedNet(math.Inf(1))} {
		edges, err := NewDimensionScorer(producers, 4).Score(context.Background(), ev, net)
		require.NoError(t, err)
		c, err := NewCombiner(map[string]float64{
			"frequency": 0.2, "diversity": 0.2, "consistency": 0.2, "network_position": 0.2, "significance": 0.2,
		})
		require.NoError(t, err)
		c.Apply(edges)
		for _, e := range edges {
			for _, d := range model.Dimensions {
				v := e.Dimensions.Get(d)
				assert.GreaterOrEqual(t, v, 0.0, "%s %s", e.Edge, d)
				assert.LessOrEqual(t, v, 1.0, "%s %s", e.Edge, d)
			}
			assert.GreaterOrEqual(t, e.Ensemble, 0.0)
			assert.LessOrEqual(t, e.Ensemble, 1.0)
		}
	}
}

func TestScore_NoProducers(t *testing.T) {
	ev := &ingest.Evidence{
		Keys:        []model.EdgeKey{ab},
		Rows:        map[model.EdgeKey][]model.EvidenceRow{},
		Appearances: map[model.EdgeKey]int{ab: 1},
	}
	edges, err := NewDimensionScorer(nil, 1).Score(context.Background(), ev, nil)
	require.NoError(t, err)
	d := edges[0].Dimensions
	assert.Zero(t, d.Frequency)
	assert.Zero(t, d.Diversity)
	assert.Zero(t, d.Consistency)
	assert.InDelta(t, 0.5, d.NetworkPosition, 1e-12)
}

func TestScore_RemovingProducerNeverIncreases(t *testing.T) {
	producers := fiveProducers()
	obs := map[model.EdgeKey][]string{
		ab: {"pc", "hc", "ges"},
		bc: {"pc", "tree"},
		cd: {"hc", "expert"},
	}
	order := []model.EdgeKey{ab, bc, cd}
	s := NewDimensionScorer(producers, 2)

	full, err := s.Score(context.Background(), evidence(producers, obs, order), fixedNet(0.5))
	require.NoError(t, err)

	for _, removed := range producers {
		t.Run(removed.Name, func(t *testing.T) {
			reduced := make(map[model.EdgeKey][]string)
			for k, names := range obs {
				for _, n := range names {
					if n != removed.Name {
						reduced[k] = append(reduced[k], n)
					}
				}
			}
			got, err := s.Score(context.Background(), evidence(producers, reduced, order), fixedNet(0.5))
			require.NoError(t, err)
			for i := range got {
				assert.LessOrEqual(t, got[i].Dimensions.Frequency, full[i].Dimensions.Frequency)
				assert.LessOrEqual(t, got[i].Dimensions.Diversity, full[i].Dimensions.Diversity)
				assert.LessOrEqual(t, got[i].Dimensions.Consistency, full[i].Dimensions.Consistency)
			}
		})
	}
}

func TestScore_Cancelled(t *testing.T) {
	producers := fiveProducers()
	ev := evidence(producers, map[model.EdgeKey][]string{ab: {"pc"}}, []model.EdgeKey{ab})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDimensionScorer(producers, 1).Score(ctx, ev, nil)
	require.Error(t, err)
}

func TestCombine(t *testing.T) {
	c, err := NewCombiner(config.DefaultDimensionWeights())
	require.NoError(t, err)

	tests := []struct {
		name string
		dims model.DimensionScores
		want float64
	}{
		{"all zero", model.DimensionScores{}, 0},
		{"all one", model.DimensionScores{Frequency: 1, Diversity: 1, Consistency: 1, NetworkPosition: 1, Significance: 1}, 1},
		{"significance ignored by default", model.DimensionScores{Significance: 1}, 0},
		{"mixed", model.DimensionScores{Frequency: 0.4, Diversity: 0.2, Consistency: 0.6, NetworkPosition: 0.5}, 0.12 + 0.05 + 0.15 + 0.10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, c.Combine(tt.dims), 1e-12)
		})
	}

	_, err = NewCombiner(map[string]float64{"frequency": 2})
	require.Error(t, err)
}

func TestRank(t *testing.T) {
	edges := []model.ScoredEdge{
		{Edge: ab, Ensemble: 0.4},
		{Edge: bc, Ensemble: 0.9},
		{Edge: cd, Ensemble: 0.4},
		{Edge: model.EdgeKey{Source: "D", Target: "E"}, Ensemble: 0.6},
	}
	ranked := Rank(edges)

	assert.Equal(t, bc, ranked[0].Edge)
	assert.Equal(t, "D", ranked[1].Edge.Source)
	assert.Equal(t, ab, ranked[2].Edge, "ties keep insertion order")
	assert.Equal(t, cd, ranked[3].Edge)
	assert.Equal(t, ab, edges[0].Edge, "input untouched")
}
