// Package tier assigns discrete quality tiers to scored edges.
package tier

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/kairuizhang035-crypto/yinguo/internal/config"
	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/resilience"
)

type rule struct {
	tier         model.Tier
	minScore     float64
	minSupport   int
	minFrequency int
}

// Classifier evaluates tier rules platinum first. Rule thresholds come from
// configuration; the evaluation order does not.
type Classifier struct {
	rules []rule
}

// NewClassifier builds a classifier from the configured table. Every tier in
// model.Tiers needs exactly one rule.
func NewClassifier(rules []config.TierRule) (*Classifier, error) {
	var errs []string
	byName := make(map[string]config.TierRule, len(rules))
	for _, r := range rules {
		if !model.Tier(r.Name).Assignable() {
			errs = append(errs, fmt.Sprintf("unknown tier %q", r.Name))
			continue
		}
		if _, dup := byName[r.Name]; dup {
			errs = append(errs, fmt.Sprintf("duplicate tier %q", r.Name))
			continue
		}
		if r.MinScore < 0 || r.MinScore > 1 {
			errs = append(errs, fmt.Sprintf("%s min_score must be between 0 and 1", r.Name))
		}
		if r.MinSupport < 0 || r.MinFrequency < 0 {
			errs = append(errs, fmt.Sprintf("%s min_support and min_frequency must be >= 0", r.Name))
		}
		byName[r.Name] = r
	}

	c := &Classifier{}
	for _, t := range model.Tiers {
		r, ok := byName[string(t)]
		if !ok {
			errs = append(errs, fmt.Sprintf("missing rule for tier %q", t))
			continue
		}
		c.rules = append(c.rules, rule{
			tier:         t,
			minScore:     r.MinScore,
			minSupport:   r.MinSupport,
			minFrequency: r.MinFrequency,
		})
	}

	if len(errs) > 0 {
		return nil, resilience.NewConfigurationError(
			eris.Errorf("tier: config validation failed: %s", strings.Join(errs, "; ")), errs...)
	}
	return c, nil
}

// Classify returns the first tier whose thresholds are all met, or TierNone.
func (c *Classifier) Classify(score float64, support, frequency int) model.Tier {
	for _, r := range c.rules {
		if score >= r.minScore && support >= r.minSupport && frequency >= r.minFrequency {
			return r.tier
		}
	}
	return model.TierNone
}

// Apply sets the Tier of every edge from its ensemble score, distinct
// producer count, and raw appearance count.
func (c *Classifier) Apply(edges []model.ScoredEdge) {
	for i := range edges {
		e := &edges[i]
		e.Tier = c.Classify(e.Ensemble, e.SupportCount, e.Appearances)
	}
}

// Counts tallies edges per tier, TierNone included.
func Counts(edges []model.ScoredEdge) map[model.Tier]int {
	counts := make(map[model.Tier]int, len(model.Tiers)+1)
	for _, t := range append([]model.Tier{model.TierNone}, model.Tiers...) {
		counts[t] = 0
	}
	for _, e := range edges {
		counts[e.Tier]++
	}
	return counts
}

// Tiered returns the edges with a tier other than TierNone, in input order.
func Tiered(edges []model.ScoredEdge) []model.ScoredEdge {
	var out []model.ScoredEdge
	for _, e := range edges {
		if e.Tier != model.TierNone {
			out = append(out, e)
		}
	}
	return out
}
