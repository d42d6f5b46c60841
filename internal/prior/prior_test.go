package prior

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/resilience"
)

func edge(s, t string) model.EdgeKey {
	return model.EdgeKey{Source: s, Target: t}
}

func TestDefault(t *testing.T) {
	p := Default()

	tests := []struct {
		name         string
		edge         model.EdgeKey
		plausibility float64
		mediation    float64
	}{
		{name: "disease to drug", edge: edge("疾病_高血压", "药物_氨氯地平"), plausibility: 0.95, mediation: 0.9},
		{name: "disease to lab", edge: edge("疾病_糖尿病", "检验_糖化血红蛋白"), plausibility: 0.90, mediation: 0.7},
		{name: "lab to disease", edge: edge("检验_血糖", "疾病_糖尿病"), plausibility: 0.85, mediation: 0.7},
		{name: "drug to lab", edge: edge("药物_二甲双胍", "检验_血糖"), plausibility: 0.80, mediation: 0.4},
		{name: "lab to drug", edge: edge("检验_血钾", "药物_螺内酯"), plausibility: 0.70, mediation: 0.6},
		{name: "drug to disease", edge: edge("药物_x", "疾病_y"), plausibility: 0.60, mediation: 0.4},
		{name: "english prefixes", edge: edge("disease_flu", "drug_oseltamivir"), plausibility: 0.95, mediation: 0.9},
		{name: "unknown pair", edge: edge("gene_x", "disease_y"), plausibility: 0.5, mediation: 0.4},
		{name: "no prefix", edge: edge("A", "B"), plausibility: 0.5, mediation: 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.plausibility, p.PairPlausibility(tt.edge), 1e-12)
			assert.InDelta(t, tt.mediation, p.MediationPrior(tt.edge), 1e-12)
		})
	}
}

func TestCategory(t *testing.T) {
	p := Default()
	assert.Equal(t, "disease", p.Category("疾病_高血压"))
	assert.Equal(t, "gene", p.Category("GENE_brca1"))
	assert.Equal(t, "", p.Category("plain"))
	assert.Equal(t, "", p.Category("_leading"))

	p.WithSeparator(":")
	assert.Equal(t, "drug", p.Category("drug:aspirin"))
	assert.Equal(t, "", p.Category("drug_aspirin"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "priors.yaml")
	body := `
aliases:
  g: gene
plausibility:
  - {source: gene, target: protein, weight: 0.8}
default_plausibility: 0.3
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	p, err := LoadFile(path, "_")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, p.PairPlausibility(edge("g_tp53", "protein_p53")), 1e-12)
	assert.InDelta(t, 0.3, p.PairPlausibility(edge("disease_a", "drug_b")), 1e-12)
	// Mediation section omitted: defaults retained.
	assert.InDelta(t, 0.4, p.DefaultMediation, 1e-12)
	assert.InDelta(t, 0.9, p.MediationPrior(edge("disease_a", "drug_b")), 1e-12)
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("mediation:\n  - {source: a, target: b, weight: 1.5}\n"), 0o644))
	_, err := LoadFile(bad, "_")
	require.Error(t, err)
	assert.True(t, resilience.IsConfiguration(err))

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("plausibility: [:::"), 0o644))
	_, err = LoadFile(broken, "_")
	require.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "absent.yaml"), "_")
	require.Error(t, err)
}
