package report

import (
	"github.com/kairuizhang035-crypto/yinguo/internal/engine"
	"github.com/kairuizhang035-crypto/yinguo/internal/graph"
	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/stats"
	"github.com/kairuizhang035-crypto/yinguo/internal/tier"
)

// Summary is the content of summary.json.
type Summary struct {
	TotalEdges     int                     `json:"total_edges"`
	TieredEdges    int                     `json:"tiered_edges"`
	CoreEdges      int                     `json:"core_edges"`
	TierCounts     map[model.Tier]int      `json:"tier_counts"`
	Threshold      model.ThresholdEstimate `json:"threshold"`
	AboveThreshold int                     `json:"above_threshold"`
	Rejections     map[string]int          `json:"rejections"`

	Ensemble        stats.Summary `json:"ensemble"`
	Confidence      stats.Summary `json:"joint_confidence"`
	Quality         stats.Summary `json:"data_quality"`
	QualityAdjusted stats.Summary `json:"quality_adjusted_confidence"`

	Pillars           map[model.Pillar]stats.Summary            `json:"pillars"`
	PillarCoverage    map[model.Pillar]Coverage                 `json:"pillar_coverage"`
	PillarCorrelation map[model.Pillar]map[model.Pillar]float64 `json:"pillar_correlation"`
	ConfidenceBands   []stats.Band                              `json:"confidence_bands"`
	QualityBands      []stats.Band                              `json:"quality_bands"`

	Graph     GraphStats             `json:"graph"`
	Producers []model.ProducerStatus `json:"producers"`
}

// Coverage counts how many tiered edges had direct evidence for a pillar.
type Coverage struct {
	Observed  int     `json:"observed"`
	Estimated int     `json:"estimated"`
	Rate      float64 `json:"rate"`
}

// GraphStats describes the induced candidate graph.
type GraphStats struct {
	Nodes             int             `json:"nodes"`
	Edges             int             `json:"edges"`
	MeanDegree        float64         `json:"mean_degree"`
	UndefinedMeasures []graph.Measure `json:"undefined_measures"`
}

var confidenceBands = []stats.Band{
	{Name: "low", Lo: 0, Hi: 0.6},
	{Name: "medium", Lo: 0.6, Hi: 0.8},
	{Name: "high", Lo: 0.8, Hi: 1},
}

var qualityBands = []stats.Band{
	{Name: "poor", Lo: 0, Hi: 0.5},
	{Name: "fair", Lo: 0.5, Hi: 0.75},
	{Name: "good", Lo: 0.75, Hi: 1},
}

// BuildSummary aggregates a finished batch.
func BuildSummary(b *engine.Batch) Summary {
	s := Summary{
		TotalEdges:        len(b.Scored),
		TieredEdges:       len(b.Tiered),
		CoreEdges:         len(b.Core),
		TierCounts:        tier.Counts(b.Scored),
		Threshold:         b.Threshold,
		Rejections:        map[string]int{},
		Pillars:           make(map[model.Pillar]stats.Summary, len(model.Pillars)),
		PillarCoverage:    make(map[model.Pillar]Coverage, len(model.Pillars)),
		PillarCorrelation: make(map[model.Pillar]map[model.Pillar]float64, len(model.Pillars)),
		Producers:         b.Statuses(),
	}

	ensemble := make([]float64, len(b.Scored))
	for i, e := range b.Scored {
		ensemble[i] = e.Ensemble
		if e.Ensemble >= b.Threshold.Final {
			s.AboveThreshold++
		}
	}
	s.Ensemble = stats.Summarize(ensemble)

	n := len(b.Records)
	joint := make([]float64, n)
	quality := make([]float64, n)
	adjusted := make([]float64, n)
	pillar := make(map[model.Pillar][]float64, len(model.Pillars))
	for i, r := range b.Records {
		joint[i] = r.Joint
		quality[i] = r.DataQuality
		adjusted[i] = r.QualityAdjusted
		if r.RejectedBy != model.RejectNone {
			s.Rejections[string(r.RejectedBy)]++
		}
		for _, p := range model.Pillars {
			ps := r.Pillar(p)
			pillar[p] = append(pillar[p], ps.Value)
			c := s.PillarCoverage[p]
			if ps.Estimated {
				c.Estimated++
			} else {
				c.Observed++
			}
			s.PillarCoverage[p] = c
		}
	}
	s.Confidence = stats.Summarize(joint)
	s.Quality = stats.Summarize(quality)
	s.QualityAdjusted = stats.Summarize(adjusted)
	s.ConfidenceBands = stats.CountBands(joint, confidenceBands)
	s.QualityBands = stats.CountBands(quality, qualityBands)

	for _, p := range model.Pillars {
		s.Pillars[p] = stats.Summarize(pillar[p])
		c := s.PillarCoverage[p]
		if n > 0 {
			c.Rate = float64(c.Observed) / float64(n)
		}
		s.PillarCoverage[p] = c

		row := make(map[model.Pillar]float64, len(model.Pillars))
		for _, q := range model.Pillars {
			if p == q {
				row[q] = 1
				continue
			}
			row[q] = stats.Correlation(pillar[p], pillar[q])
		}
		s.PillarCorrelation[p] = row
	}

	if b.Graph != nil {
		s.Graph = GraphStats{
			Nodes:      b.Graph.Len(),
			Edges:      b.Graph.EdgeCount(),
			MeanDegree: b.Graph.MeanDegree(),
		}
	}
	if b.Centrality != nil {
		s.Graph.UndefinedMeasures = b.Centrality.Undefined
	}
	return s
}
