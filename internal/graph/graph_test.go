package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
)

func keys(pairs ...string) []model.EdgeKey {
	var ks []model.EdgeKey
	for i := 0; i+1 < len(pairs); i += 2 {
		ks = append(ks, model.EdgeKey{Source: pairs[i], Target: pairs[i+1]})
	}
	return ks
}

func TestBuild(t *testing.T) {
	g := Build(keys("A", "B", "B", "C", "A", "B", "C", "C"))

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, "A", g.Node(0))
	assert.Equal(t, "C", g.Node(2))
	i, ok := g.Index("B")
	require.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = g.Index("Z")
	assert.False(t, ok)
	assert.InDelta(t, 4.0/3, g.MeanDegree(), 1e-12)
}

func TestCompute_Chain(t *testing.T) {
	g := Build(keys("A", "B", "B", "C"))
	c := Compute(g)

	tests := []struct {
		name    string
		measure Measure
		want    []float64
	}{
		{"degree", Degree, []float64{0.5, 1, 0.5}},
		{"betweenness", Betweenness, []float64{0, 0.5, 0}},
		{"closeness", Closeness, []float64{0, 0.5, 2.0 / 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, want := range tt.want {
				assert.InDelta(t, want, c.Value(tt.measure, i), 1e-9, "node %s", g.Node(i))
			}
		})
	}

	var sum float64
	for i := 0; i < g.Len(); i++ {
		sum += c.Value(PageRank, i)
	}
	assert.InDelta(t, 1, sum, 1e-6)
	assert.Greater(t, c.Value(PageRank, 2), c.Value(PageRank, 1))
	assert.Greater(t, c.Value(PageRank, 1), c.Value(PageRank, 0))

	// On an acyclic chain the mass drains toward the sink.
	assert.Empty(t, c.Undefined)
	assert.InDelta(t, 1, c.Value(Eigenvector, 2), 1e-3)
	assert.Less(t, c.Value(Eigenvector, 0), c.Value(Eigenvector, 1))
}

func TestCompute_Cycle(t *testing.T) {
	g := Build(keys("A", "B", "B", "C", "C", "A"))
	c := Compute(g)
	require.Empty(t, c.Undefined)

	for i := 0; i < g.Len(); i++ {
		assert.InDelta(t, 1, c.Value(Degree, i), 1e-9)
		assert.InDelta(t, 0.5, c.Value(Betweenness, i), 1e-9)
		assert.InDelta(t, 2.0/3, c.Value(Closeness, i), 1e-9)
		assert.InDelta(t, 1.0/3, c.Value(PageRank, i), 1e-9)
		assert.InDelta(t, 1/math.Sqrt(3), c.Value(Eigenvector, i), 1e-9)
	}

	got := c.EdgeScore(model.EdgeKey{Source: "A", Target: "B"})
	assert.InDelta(t, 0.25+0.125+0.2*2.0/3+0.2/3+0.1/math.Sqrt(3), got, 1e-9)
}

func TestCompute_Degenerate(t *testing.T) {
	t.Run("empty graph", func(t *testing.T) {
		g := Build(nil)
		c := Compute(g)
		assert.Len(t, c.Undefined, len(Measures))
		assert.Equal(t, Neutral, c.EdgeScore(model.EdgeKey{Source: "A", Target: "B"}))
	})

	t.Run("disconnected pairs", func(t *testing.T) {
		g := Build(keys("A", "B", "C", "D"))
		c := Compute(g)
		for _, k := range keys("A", "B", "C", "D") {
			s := c.EdgeScore(k)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
		assert.InDelta(t,
			c.EdgeScore(model.EdgeKey{Source: "A", Target: "B"}),
			c.EdgeScore(model.EdgeKey{Source: "C", Target: "D"}), 1e-12)
	})

	t.Run("unknown edge is neutral", func(t *testing.T) {
		g := Build(keys("A", "B"))
		c := Compute(g)
		assert.Equal(t, Neutral, c.EdgeScore(model.EdgeKey{Source: "A", Target: "Q"}))
	})
}

func TestCompute_Deterministic(t *testing.T) {
	ks := keys("A", "B", "B", "C", "C", "D", "A", "D", "D", "E", "B", "E")
	g := Build(ks)
	first := Compute(g)
	second := Compute(Build(ks))
	for _, k := range ks {
		assert.Equal(t, first.EdgeScore(k), second.EdgeScore(k))
	}
}
