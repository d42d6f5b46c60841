package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
)

// Adapter converts a producer's raw support value into a normalized support
// in [0,1]. ok is false when the raw value is empty or does not satisfy the
// category's domain; such rows still count as observations.
type Adapter interface {
	Normalize(raw string) (support float64, ok bool)
}

// AdapterFor returns the adapter for a declared category.
func AdapterFor(c model.ProducerCategory) (Adapter, error) {
	switch c {
	case model.CategoryConstraintBased:
		return pValueAdapter{}, nil
	case model.CategoryScoreBased, model.CategoryEquivalenceSearch, model.CategoryTreeStructured:
		return gainAdapter{}, nil
	case model.CategoryExpertGuided:
		return confidenceAdapter{}, nil
	}
	return nil, eris.Errorf("ingest: no adapter for category %q", c)
}

// pValueAdapter reads a conditional-independence test p-value. Small
// p-values mean strong evidence of dependence.
type pValueAdapter struct{}

func (pValueAdapter) Normalize(raw string) (float64, bool) {
	p, ok := parseFinite(raw)
	if !ok || p < 0 || p > 1 {
		return 0, false
	}
	return 1 - p, true
}

// gainAdapter reads a non-negative improvement: a score delta for score and
// equivalence searches, conditional mutual information for tree learners.
type gainAdapter struct{}

func (gainAdapter) Normalize(raw string) (float64, bool) {
	g, ok := parseFinite(raw)
	if !ok || g < 0 {
		return 0, false
	}
	return 1 - math.Exp(-g), true
}

// confidenceAdapter reads a stated confidence already in [0,1].
type confidenceAdapter struct{}

func (confidenceAdapter) Normalize(raw string) (float64, bool) {
	c, ok := parseFinite(raw)
	if !ok || c < 0 || c > 1 {
		return 0, false
	}
	return c, true
}

func parseFinite(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
