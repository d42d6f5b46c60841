// Package threshold derives one batch-wide ensemble cutoff from three
// independent unsupervised heuristics.
package threshold

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kairuizhang035-crypto/yinguo/internal/config"
	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/resilience"
)

// errTooFew marks an input below a heuristic's minimum sample count. It
// selects the default without being treated as a failure.
var errTooFew = eris.New("too few samples")

// Selector runs the knee, clustering, and outlier heuristics.
type Selector struct {
	cfg  config.ThresholdConfig
	seed uint64
}

// NewSelector returns a selector. seed drives the isolation forest.
func NewSelector(cfg config.ThresholdConfig, seed uint64) *Selector {
	return &Selector{cfg: cfg, seed: seed}
}

// Select computes the three candidates and their mean. It never fails: each
// heuristic that cannot produce a value contributes its default, and the
// reason is recorded on the estimate.
func (s *Selector) Select(ctx context.Context, scores []float64) model.ThresholdEstimate {
	est := model.ThresholdEstimate{
		Knee: s.run(ctx, "knee", 0, s.cfg.KneeDefault, func(context.Context) (float64, error) {
			if len(scores) < s.cfg.KneeMinSamples {
				return 0, errTooFew
			}
			return Knee(scores)
		}),
		Cluster: s.run(ctx, "cluster", s.cfg.Budget, s.cfg.ClusterDefault, func(ctx context.Context) (float64, error) {
			if len(scores) < s.cfg.ClusterMinSamples {
				return 0, errTooFew
			}
			return Cluster(ctx, scores, s.cfg.ClusterEps, s.cfg.ClusterMinPoints)
		}),
		Outlier: s.run(ctx, "outlier", s.cfg.Budget, s.cfg.OutlierDefault, func(ctx context.Context) (float64, error) {
			if len(scores) < s.cfg.OutlierMinSamples {
				return 0, errTooFew
			}
			f := Forest{
				Trees:         s.cfg.Trees,
				MaxSamples:    s.cfg.MaxSamples,
				Contamination: s.cfg.Contamination,
				Seed:          s.seed,
			}
			return f.Threshold(ctx, scores)
		}),
	}
	est.Final = (est.Knee.Value + est.Cluster.Value + est.Outlier.Value) / 3

	zap.L().Info("threshold: selected",
		zap.Int("scores", len(scores)),
		zap.Float64("knee", est.Knee.Value),
		zap.Float64("cluster", est.Cluster.Value),
		zap.Float64("outlier", est.Outlier.Value),
		zap.Float64("final", est.Final),
	)
	return est
}

func (s *Selector) run(ctx context.Context, name string, budget time.Duration, def float64, fn func(context.Context) (float64, error)) model.HeuristicEstimate {
	v, err := resilience.Guard(ctx, name, budget, fn)
	if err == nil {
		return model.HeuristicEstimate{Value: v}
	}
	if errors.Is(err, errTooFew) {
		return model.HeuristicEstimate{Value: def, Fallback: true, Reason: "insufficient samples"}
	}
	zap.L().Warn("threshold: heuristic failed, using default",
		zap.String("heuristic", name),
		zap.Float64("default", def),
		zap.Error(err),
	)
	return model.HeuristicEstimate{Value: def, Fallback: true, Reason: err.Error()}
}
