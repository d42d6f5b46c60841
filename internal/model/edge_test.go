package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEdgeKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    EdgeKey
		wantErr bool
	}{
		{name: "ascii arrow", input: "A->B", want: EdgeKey{Source: "A", Target: "B"}},
		{name: "unicode arrow", input: "疾病_高血压→药物_氨氯地平", want: EdgeKey{Source: "疾病_高血压", Target: "药物_氨氯地平"}},
		{name: "padded", input: "  A  ->  B ", want: EdgeKey{Source: "A", Target: "B"}},
		{name: "path is not an edge", input: "A->B->C", wantErr: true},
		{name: "missing target", input: "A->", wantErr: true},
		{name: "no arrow", input: "AB", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEdgeKey(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEdgeKey_StringRoundTrip(t *testing.T) {
	k := EdgeKey{Source: "lab_hba1c", Target: "disease_diabetes"}
	got, err := ParseEdgeKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, got)
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"A", "M", "B"}, SplitPath("A -> M → B"))
	assert.Empty(t, SplitPath(""))
}

func TestProducerCategory_Valid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, ProducerCategory("bayesian_magic").Valid())
}

func TestTier_Rank(t *testing.T) {
	assert.Greater(t, TierPlatinum.Rank(), TierGold.Rank())
	assert.Greater(t, TierGold.Rank(), TierSilver.Rank())
	assert.Greater(t, TierSilver.Rank(), TierBronze.Rank())
	assert.Greater(t, TierBronze.Rank(), TierNone.Rank())
}

func TestDimensionDefault(t *testing.T) {
	assert.Equal(t, 0.0, DimensionDefault(DimFrequency))
	assert.Equal(t, 0.0, DimensionDefault(DimDiversity))
	assert.Equal(t, 0.0, DimensionDefault(DimConsistency))
	assert.Equal(t, 0.5, DimensionDefault(DimNetworkPosition))
	assert.Equal(t, 0.5, DimensionDefault(DimSignificance))
}

func TestTriangulationRecord_StrongestWeakest(t *testing.T) {
	r := TriangulationRecord{
		Contributions: map[Pillar]float64{
			PillarStructural: 0.30,
			PillarParameter:  0.20,
			PillarMediation:  0.05,
			PillarExpert:     0.12,
		},
	}
	assert.Equal(t, PillarStructural, r.StrongestPillar())
	assert.Equal(t, PillarMediation, r.WeakestPillar())
}
