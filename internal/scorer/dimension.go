package scorer

import (
	"context"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/kairuizhang035-crypto/yinguo/internal/ingest"
	"github.com/kairuizhang035-crypto/yinguo/internal/model"
)

// NetworkPosition scores an edge by the position of its endpoints in the
// candidate graph.
type NetworkPosition interface {
	EdgeScore(k model.EdgeKey) float64
}

// DimensionScorer computes the five dimension scores for every edge of a batch.
type DimensionScorer struct {
	producers   []ingest.Producer
	byName      map[string]uint32
	catIndex    map[model.ProducerCategory]uint32
	totalWeight float64
	concurrency int
}

// NewDimensionScorer prepares denominators from the configured producers.
// Producers whose tables are missing still count, so a missing table can
// only lower an edge's frequency, diversity and consistency.
func NewDimensionScorer(producers []ingest.Producer, concurrency int) *DimensionScorer {
	s := &DimensionScorer{
		producers:   producers,
		byName:      make(map[string]uint32, len(producers)),
		catIndex:    make(map[model.ProducerCategory]uint32),
		concurrency: concurrency,
	}
	if s.concurrency <= 0 {
		s.concurrency = 4
	}
	for i, p := range producers {
		s.byName[p.Name] = uint32(i)
		if _, ok := s.catIndex[p.Category]; !ok {
			s.catIndex[p.Category] = uint32(len(s.catIndex))
		}
		s.totalWeight += p.Weight
	}
	return s
}

// observation is the set of producers and categories that reported an edge.
type observation struct {
	producers  *roaring.Bitmap
	categories *roaring.Bitmap
	weight     float64
}

func (s *DimensionScorer) observe(rows []model.EvidenceRow) observation {
	obs := observation{producers: roaring.New(), categories: roaring.New()}
	for _, r := range rows {
		pi, ok := s.byName[r.Producer]
		if !ok || obs.producers.Contains(pi) {
			continue
		}
		obs.producers.Add(pi)
		obs.categories.Add(s.catIndex[s.producers[pi].Category])
		obs.weight += s.producers[pi].Weight
	}
	return obs
}

// Score returns one ScoredEdge per key of ev, in ev.Keys order. Ensemble and
// Tier are left for later stages.
func (s *DimensionScorer) Score(ctx context.Context, ev *ingest.Evidence, net NetworkPosition) ([]model.ScoredEdge, error) {
	counts := make([]float64, len(ev.Keys))
	for i, k := range ev.Keys {
		counts[i] = float64(ev.Appearances[k])
	}
	mean, std := appearanceStats(counts)

	out := make([]model.ScoredEdge, len(ev.Keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, k := range ev.Keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = s.scoreEdge(k, ev.Rows[k], ev.Appearances[k], mean, std, net)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "scorer: score dimensions")
	}

	zap.L().Info("scorer: dimensions computed",
		zap.Int("edges", len(out)),
		zap.Int("producers", len(s.producers)),
		zap.Float64("appearance_mean", mean),
		zap.Float64("appearance_std", std),
	)
	return out, nil
}

func (s *DimensionScorer) scoreEdge(k model.EdgeKey, rows []model.EvidenceRow, appearances int, mean, std float64, net NetworkPosition) model.ScoredEdge {
	obs := s.observe(rows)

	se := model.ScoredEdge{
		Edge:         k,
		SupportCount: int(obs.producers.GetCardinality()),
		Appearances:  appearances,
	}
	it := obs.producers.Iterator()
	for it.HasNext() {
		se.Producers = append(se.Producers, s.producers[it.Next()].Name)
	}
	if len(rows) > 0 {
		var sum float64
		for _, r := range rows {
			sum += r.Support
		}
		se.MeanSupport = sum / float64(len(rows))
	}

	se.Dimensions = model.DimensionScores{
		Frequency:       finalize(model.DimFrequency, ratio(float64(obs.producers.GetCardinality()), float64(len(s.producers)))),
		Diversity:       finalize(model.DimDiversity, ratio(float64(obs.categories.GetCardinality()), float64(len(s.catIndex)))),
		Consistency:     finalize(model.DimConsistency, ratio(obs.weight, s.totalWeight)),
		NetworkPosition: finalize(model.DimNetworkPosition, networkScore(net, k)),
		Significance:    finalize(model.DimSignificance, significance(float64(appearances), mean, std)),
	}
	return se
}

// appearanceStats returns the population mean and standard deviation of the
// appearance counts. A zero deviation is reported as 1.
func appearanceStats(counts []float64) (mean, std float64) {
	if len(counts) == 0 {
		return 0, 1
	}
	mean, std = stat.PopMeanStdDev(counts, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	return mean, std
}

// significance squashes the z-score of an appearance count into (0,1).
func significance(count, mean, std float64) float64 {
	z := (count - mean) / std
	return 1 / (1 + math.Exp(-z))
}

func networkScore(net NetworkPosition, k model.EdgeKey) float64 {
	if net == nil {
		return math.NaN()
	}
	return net.EdgeScore(k)
}

// ratio returns NaN when the denominator is not positive, so the caller
// substitutes the dimension default.
func ratio(num, den float64) float64 {
	if den <= 0 {
		return math.NaN()
	}
	return num / den
}

// finalize replaces a non-finite value with d's default and clamps to [0,1].
func finalize(d model.Dimension, v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = model.DimensionDefault(d)
	}
	return clamp01(v)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
