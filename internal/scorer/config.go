// Package scorer computes the five per-edge dimension scores and merges them
// into one ensemble score.
package scorer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/resilience"
)

// weightTolerance is the allowed distance of a weight sum from 1.
const weightTolerance = 1e-6

// Weights is a validated dimension weight vector in model.Dimensions order.
type Weights [5]float64

// Get returns the weight of d.
func (w Weights) Get(d model.Dimension) float64 {
	for i, dim := range model.Dimensions {
		if dim == d {
			return w[i]
		}
	}
	return 0
}

// WeightSum returns the sum of all weights in w, in sorted key order.
func WeightSum(w map[string]float64) float64 {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)
	var sum float64
	for _, name := range names {
		sum += w[name]
	}
	return sum
}

// ValidateWeights checks that every key names a dimension, every weight is
// non-negative, and the weights sum to 1. Dimensions absent from the map get
// weight 0.
func ValidateWeights(w map[string]float64) (Weights, error) {
	var errs []string
	var out Weights

	known := make(map[string]int, len(model.Dimensions))
	for i, d := range model.Dimensions {
		known[string(d)] = i
	}

	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := w[name]
		i, ok := known[name]
		if !ok {
			errs = append(errs, fmt.Sprintf("unknown dimension %q", name))
			continue
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", name))
			continue
		}
		out[i] = v
	}

	if sum := WeightSum(w); math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.6f", sum))
	}

	if len(errs) > 0 {
		return Weights{}, resilience.NewConfigurationError(
			eris.Errorf("scorer: weight validation failed: %s", strings.Join(errs, "; ")), errs...)
	}
	return out, nil
}
