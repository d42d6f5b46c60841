// Package engine runs one evidence-fusion batch: ingestion, Stage A scoring
// and tiering, and Stage B triangulation.
package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kairuizhang035-crypto/yinguo/internal/config"
	"github.com/kairuizhang035-crypto/yinguo/internal/graph"
	"github.com/kairuizhang035-crypto/yinguo/internal/ingest"
	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/prior"
	"github.com/kairuizhang035-crypto/yinguo/internal/scorer"
	"github.com/kairuizhang035-crypto/yinguo/internal/threshold"
	"github.com/kairuizhang035-crypto/yinguo/internal/tier"
	"github.com/kairuizhang035-crypto/yinguo/internal/tracing"
	"github.com/kairuizhang035-crypto/yinguo/internal/triangulate"
)

const defaultConcurrency = 8

// Batch holds everything one run derives. Each field is written once, in
// stage order, and nothing outside the Batch is mutated.
type Batch struct {
	Evidence   *ingest.Evidence
	Parameters *ingest.ParameterEvidence
	Mediation  *ingest.MediationEvidence
	Prior      *prior.Table

	Graph      *graph.Graph
	Centrality *graph.Centrality

	// Scored is in ingestion order; Ranked is sorted by ensemble score.
	Scored    []model.ScoredEdge
	Ranked    []model.ScoredEdge
	Threshold model.ThresholdEstimate
	Tiered    []model.ScoredEdge

	Records []model.TriangulationRecord
	Core    []model.TriangulationRecord
}

// Statuses returns the producer statuses followed by the score-table statuses.
func (b *Batch) Statuses() []model.ProducerStatus {
	var out []model.ProducerStatus
	if b.Evidence != nil {
		out = append(out, b.Evidence.Statuses...)
	}
	if b.Parameters != nil {
		out = append(out, b.Parameters.Statuses...)
	}
	if b.Mediation != nil {
		out = append(out, b.Mediation.Statuses...)
	}
	return out
}

// Engine holds the validated, batch-independent configuration. One Engine
// may run several batches concurrently.
type Engine struct {
	cfg         config.FusionConfig
	loader      ingest.TableLoader
	ingestor    *ingest.Ingestor
	combiner    *scorer.Combiner
	classifier  *tier.Classifier
	selector    *threshold.Selector
	prior       *prior.Table
	concurrency int
}

// New validates every weight set, the tier table, and the prior table. Any
// problem is a ConfigurationError and no edge is scored.
func New(cfg config.FusionConfig, loader ingest.TableLoader) (*Engine, error) {
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = defaultConcurrency
	}

	in, err := ingest.NewIngestor(loader, cfg.Producers, conc)
	if err != nil {
		return nil, err
	}
	comb, err := scorer.NewCombiner(cfg.Scoring.Weights)
	if err != nil {
		return nil, err
	}
	cls, err := tier.NewClassifier(cfg.Tiers)
	if err != nil {
		return nil, err
	}
	if _, err := triangulate.ValidateWeights(cfg.Triangulation.Weights); err != nil {
		return nil, err
	}

	pr := prior.Default().WithSeparator(cfg.EntitySeparator)
	if cfg.PriorFile != "" {
		if pr, err = prior.LoadFile(cfg.PriorFile, cfg.EntitySeparator); err != nil {
			return nil, err
		}
	}

	return &Engine{
		cfg:         cfg,
		loader:      loader,
		ingestor:    in,
		combiner:    comb,
		classifier:  cls,
		selector:    threshold.NewSelector(cfg.Threshold, cfg.Seed),
		prior:       pr,
		concurrency: conc,
	}, nil
}

// Check loads every table without scoring. The returned batch holds only
// evidence and statuses.
func (e *Engine) Check(ctx context.Context) (*Batch, error) {
	b := &Batch{Prior: e.prior}
	if err := e.stage(ctx, "ingest", func(ctx context.Context) ([]attribute.KeyValue, error) {
		return e.ingest(ctx, b)
	}); err != nil {
		return nil, err
	}
	return b, nil
}

// Run executes a full batch.
func (e *Engine) Run(ctx context.Context) (*Batch, error) {
	b := &Batch{Prior: e.prior}

	stages := []struct {
		name string
		fn   func(ctx context.Context) ([]attribute.KeyValue, error)
	}{
		{"ingest", func(ctx context.Context) ([]attribute.KeyValue, error) {
			return e.ingest(ctx, b)
		}},
		{"centrality", func(context.Context) ([]attribute.KeyValue, error) {
			b.Graph = graph.Build(b.Evidence.Keys)
			b.Centrality = graph.Compute(b.Graph)
			return []attribute.KeyValue{
				attribute.Int("nodes", b.Graph.Len()),
				attribute.Int("edges", b.Graph.EdgeCount()),
				attribute.Int("undefined_measures", len(b.Centrality.Undefined)),
			}, nil
		}},
		{"score", func(ctx context.Context) ([]attribute.KeyValue, error) {
			ds := scorer.NewDimensionScorer(b.Evidence.Producers, e.concurrency)
			scored, err := ds.Score(ctx, b.Evidence, b.Centrality)
			if err != nil {
				return nil, err
			}
			e.combiner.Apply(scored)
			b.Scored = scored
			return []attribute.KeyValue{attribute.Int("edges", len(scored))}, nil
		}},
		{"threshold", func(ctx context.Context) ([]attribute.KeyValue, error) {
			scores := make([]float64, len(b.Scored))
			for i, s := range b.Scored {
				scores[i] = s.Ensemble
			}
			b.Threshold = e.selector.Select(ctx, scores)
			return []attribute.KeyValue{attribute.Float64("final", b.Threshold.Final)}, nil
		}},
		{"tier", func(context.Context) ([]attribute.KeyValue, error) {
			e.classifier.Apply(b.Scored)
			b.Ranked = scorer.Rank(b.Scored)
			b.Tiered = tier.Tiered(b.Ranked)
			return []attribute.KeyValue{attribute.Int("tiered", len(b.Tiered))}, nil
		}},
		{"triangulate", func(ctx context.Context) ([]attribute.KeyValue, error) {
			return e.triangulate(ctx, b)
		}},
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "engine: cancelled before %s", s.name)
		}
		if err := e.stage(ctx, s.name, s.fn); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (e *Engine) ingest(ctx context.Context, b *Batch) ([]attribute.KeyValue, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ev, err := e.ingestor.Ingest(gctx)
		b.Evidence = ev
		return err
	})
	g.Go(func() error {
		pe, err := ingest.LoadParameterTables(gctx, e.loader, e.cfg.ParameterTables)
		b.Parameters = pe
		return err
	})
	g.Go(func() error {
		me, err := ingest.LoadMediationTables(gctx, e.loader, e.cfg.MediationTables)
		b.Mediation = me
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return []attribute.KeyValue{
		attribute.Int("edges", len(b.Evidence.Keys)),
		attribute.Int("parameter_edges", len(b.Parameters.ByEdge)),
		attribute.Int("mediation_paths", len(b.Mediation.Paths)),
	}, nil
}

func (e *Engine) triangulate(ctx context.Context, b *Batch) ([]attribute.KeyValue, error) {
	agg, err := triangulate.NewAggregator(e.cfg.Triangulation, triangulate.Sources{
		Evidence:   b.Evidence,
		Parameters: b.Parameters,
		Mediation:  b.Mediation,
		Prior:      b.Prior,
	})
	if err != nil {
		return nil, err
	}

	records := make([]model.TriangulationRecord, len(b.Tiered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, se := range b.Tiered {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = agg.Record(se)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "engine: triangulate")
	}

	f := triangulate.Filter{
		Confidence: e.cfg.Triangulation.ConfidenceThreshold,
		Quality:    e.cfg.Triangulation.QualityThreshold,
	}
	b.Records = records
	b.Core = f.Apply(records)
	return []attribute.KeyValue{
		attribute.Int("records", len(records)),
		attribute.Int("core", len(b.Core)),
	}, nil
}

// stage runs fn inside a span and logs its duration.
func (e *Engine) stage(ctx context.Context, name string, fn func(ctx context.Context) ([]attribute.KeyValue, error)) error {
	ctx, span := tracing.Tracer().Start(ctx, "fusion."+name)
	defer span.End()

	start := time.Now()
	attrs, err := fn(ctx)
	duration := time.Since(start).Milliseconds()
	span.SetAttributes(attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		zap.L().Error("engine: stage failed",
			zap.String("stage", name),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return eris.Wrapf(err, "engine: %s", name)
	}
	zap.L().Info("engine: stage complete",
		zap.String("stage", name),
		zap.Int64("duration_ms", duration),
	)
	return nil
}
