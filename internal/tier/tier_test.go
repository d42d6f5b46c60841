package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairuizhang035-crypto/yinguo/internal/config"
	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/resilience"
)

func defaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(config.DefaultTiers())
	require.NoError(t, err)
	return c
}

func TestClassify(t *testing.T) {
	c := defaultClassifier(t)

	tests := []struct {
		name      string
		score     float64
		support   int
		frequency int
		want      model.Tier
	}{
		{"all producers agree", 0.9, 5, 5, model.TierPlatinum},
		{"platinum boundary", 0.8, 4, 3, model.TierPlatinum},
		{"high score low support", 0.95, 3, 3, model.TierGold},
		{"gold boundary", 0.65, 3, 2, model.TierGold},
		{"just below gold score", 0.6499999, 3, 2, model.TierSilver},
		{"silver boundary", 0.5, 2, 2, model.TierSilver},
		{"single appearance", 0.9, 2, 1, model.TierBronze},
		{"bronze boundary", 0.3, 1, 1, model.TierBronze},
		{"below bronze score", 0.29, 5, 5, model.TierNone},
		{"no support", 0.9, 0, 4, model.TierNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.score, tt.support, tt.frequency))
		})
	}
}

func TestClassify_Monotone(t *testing.T) {
	c := defaultClassifier(t)
	scores := []float64{0, 0.25, 0.3, 0.45, 0.5, 0.6, 0.65, 0.75, 0.8, 1}

	for _, s := range scores {
		for sup := 0; sup <= 5; sup++ {
			for freq := 0; freq <= 5; freq++ {
				base := c.Classify(s, sup, freq).Rank()
				for _, ds := range scores {
					if ds < s {
						continue
					}
					assert.GreaterOrEqual(t, c.Classify(ds, sup, freq).Rank(), base)
				}
				assert.GreaterOrEqual(t, c.Classify(s, sup+1, freq).Rank(), base)
				assert.GreaterOrEqual(t, c.Classify(s, sup, freq+1).Rank(), base)
			}
		}
	}
}

func TestClassify_ConfiguredThresholds(t *testing.T) {
	rules := config.DefaultTiers()
	rules[0].MinScore = 0.95
	c, err := NewClassifier(rules)
	require.NoError(t, err)
	assert.Equal(t, model.TierGold, c.Classify(0.9, 5, 5))
}

func TestNewClassifier_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]config.TierRule) []config.TierRule
		wantErr string
	}{
		{"unknown tier", func(r []config.TierRule) []config.TierRule {
			return append(r, config.TierRule{Name: "diamond"})
		}, `unknown tier "diamond"`},
		{"missing tier", func(r []config.TierRule) []config.TierRule {
			return r[:3]
		}, `missing rule for tier "bronze"`},
		{"duplicate", func(r []config.TierRule) []config.TierRule {
			return append(r, r[0])
		}, `duplicate tier "platinum"`},
		{"score out of range", func(r []config.TierRule) []config.TierRule {
			r[1].MinScore = 1.5
			return r
		}, "gold min_score must be between 0 and 1"},
		{"negative support", func(r []config.TierRule) []config.TierRule {
			r[2].MinSupport = -1
			return r
		}, "silver min_support"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClassifier(tt.mutate(config.DefaultTiers()))
			require.Error(t, err)
			assert.True(t, resilience.IsConfiguration(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyAndCounts(t *testing.T) {
	c := defaultClassifier(t)
	edges := []model.ScoredEdge{
		{Edge: model.EdgeKey{Source: "A", Target: "B"}, Ensemble: 0.9, SupportCount: 5, Appearances: 5},
		{Edge: model.EdgeKey{Source: "B", Target: "C"}, Ensemble: 0.1, SupportCount: 1, Appearances: 1},
		{Edge: model.EdgeKey{Source: "C", Target: "D"}, Ensemble: 0.55, SupportCount: 2, Appearances: 2},
	}
	c.Apply(edges)

	assert.Equal(t, model.TierPlatinum, edges[0].Tier)
	assert.Equal(t, model.TierNone, edges[1].Tier)
	assert.Equal(t, model.TierSilver, edges[2].Tier)

	counts := Counts(edges)
	assert.Equal(t, 1, counts[model.TierPlatinum])
	assert.Equal(t, 0, counts[model.TierGold])
	assert.Equal(t, 1, counts[model.TierNone])

	tiered := Tiered(edges)
	require.Len(t, tiered, 2)
	assert.Equal(t, "C", tiered[1].Edge.Source)
}
