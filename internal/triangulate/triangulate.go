// Package triangulate combines four evidence pillars into a joint confidence
// for every tiered edge and selects the core edge set.
package triangulate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/kairuizhang035-crypto/yinguo/internal/config"
	"github.com/kairuizhang035-crypto/yinguo/internal/ingest"
	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/prior"
	"github.com/kairuizhang035-crypto/yinguo/internal/resilience"
)

const weightTolerance = 1e-6

// Weights is a validated pillar weight vector in model.Pillars order.
type Weights [4]float64

// ValidateWeights checks pillar names, non-negativity, and that the weights
// sum to 1.
func ValidateWeights(w map[string]float64) (Weights, error) {
	var errs []string
	var out Weights

	known := make(map[string]int, len(model.Pillars))
	for i, p := range model.Pillars {
		known[string(p)] = i
	}
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum float64
	for _, name := range names {
		v := w[name]
		sum += v
		i, ok := known[name]
		if !ok {
			errs = append(errs, fmt.Sprintf("unknown pillar %q", name))
			continue
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", name))
			continue
		}
		out[i] = v
	}
	if math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.6f", sum))
	}

	if len(errs) > 0 {
		return Weights{}, resilience.NewConfigurationError(
			eris.Errorf("triangulate: weight validation failed: %s", strings.Join(errs, "; ")), errs...)
	}
	return out, nil
}

// Sources is the batch evidence the aggregator reads. Any field may be nil.
type Sources struct {
	Evidence   *ingest.Evidence
	Parameters *ingest.ParameterEvidence
	Mediation  *ingest.MediationEvidence
	Prior      *prior.Table
}

// Aggregator computes triangulation records.
type Aggregator struct {
	cfg     config.TriangulationConfig
	weights Weights
	src     Sources
}

// NewAggregator validates the pillar weights and binds the batch sources.
func NewAggregator(cfg config.TriangulationConfig, src Sources) (*Aggregator, error) {
	w, err := ValidateWeights(cfg.Weights)
	if err != nil {
		return nil, err
	}
	if src.Prior == nil {
		src.Prior = prior.Default()
	}
	return &Aggregator{cfg: cfg, weights: w, src: src}, nil
}

// Record builds the triangulation record of one tiered edge. Core decisions
// are left to Filter.
func (a *Aggregator) Record(e model.ScoredEdge) model.TriangulationRecord {
	pillars := map[model.Pillar]model.PillarScore{
		model.PillarStructural: {Value: clamp01(e.Ensemble), Detail: fmt.Sprintf("tier=%s", e.Tier)},
		model.PillarParameter:  a.parameter(e),
		model.PillarMediation:  a.mediation(e.Edge),
		model.PillarExpert:     a.expert(e.Edge),
	}

	rec := model.TriangulationRecord{
		Edge:          e.Edge,
		Tier:          e.Tier,
		Pillars:       pillars,
		Contributions: make(map[model.Pillar]float64, len(model.Pillars)),
	}
	for i, p := range model.Pillars {
		c := a.weights[i] * pillars[p].Value
		rec.Contributions[p] = c
		rec.Joint += c
	}
	rec.Joint = clamp01(rec.Joint)
	rec.DataQuality = a.quality(pillars)
	rec.QualityAdjusted = rec.Joint * rec.DataQuality
	return rec
}

func (a *Aggregator) parameter(e model.ScoredEdge) model.PillarScore {
	if a.src.Parameters != nil {
		if st := a.src.Parameters.ByEdge[e.Edge]; st != nil && st.Rows > 0 {
			return model.PillarScore{
				Value:  clamp01(st.Mean()),
				Detail: fmt.Sprintf("rows=%d methods=%s", st.Rows, strings.Join(st.Methods, "|")),
			}
		}
	}
	return model.PillarScore{
		Value:     clamp01(e.Ensemble * a.cfg.ParameterFallbackFactor),
		Estimated: true,
		Detail:    "structural fallback",
	}
}

func (a *Aggregator) mediation(k model.EdgeKey) model.PillarScore {
	if a.src.Mediation != nil {
		if idx := a.src.Mediation.ByEdge[k]; len(idx) > 0 {
			best := math.Inf(-1)
			var bestPath string
			for _, i := range idx {
				p := a.src.Mediation.Paths[i]
				s := p.Significance * a.cfg.NonSignificantFactor
				if p.Significant {
					s = p.Significance * (1 + math.Abs(p.Effect))
				}
				if s > best {
					best, bestPath = s, strings.Join(p.Nodes, "->")
				}
			}
			return model.PillarScore{
				Value:  clamp01(best),
				Detail: fmt.Sprintf("paths=%d best=%s", len(idx), bestPath),
			}
		}
	}
	return model.PillarScore{
		Value:     clamp01(a.src.Prior.MediationPrior(k)),
		Estimated: true,
		Detail:    "category prior",
	}
}

func (a *Aggregator) expert(k model.EdgeKey) model.PillarScore {
	observed := false
	if a.src.Evidence != nil {
		for _, r := range a.src.Evidence.Rows[k] {
			if r.Category == model.CategoryExpertGuided {
				observed = true
				break
			}
		}
	}
	plaus := a.src.Prior.PairPlausibility(k)
	w := a.cfg.ExpertObservedWeight
	v := (1 - w) * plaus
	if observed {
		v += w
	}
	return model.PillarScore{
		Value:     clamp01(v),
		Estimated: !observed,
		Detail:    fmt.Sprintf("observed=%t plausibility=%.2f", observed, plaus),
	}
}

// quality averages one point for the structural pillar with a penalty term
// per pillar lacking direct evidence.
func (a *Aggregator) quality(p map[model.Pillar]model.PillarScore) float64 {
	q := 1.0
	q += term(p[model.PillarParameter], a.cfg.MissingParameterQuality)
	q += term(p[model.PillarMediation], a.cfg.MissingMediationQuality)
	q += term(p[model.PillarExpert], a.cfg.MissingExpertQuality)
	return q / 4
}

func term(s model.PillarScore, missing float64) float64 {
	if s.Estimated {
		return missing
	}
	return 1
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
