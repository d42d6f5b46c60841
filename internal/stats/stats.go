// Package stats summarizes score distributions for the batch summary.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes one distribution. Std is the population deviation.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
}

// Summarize computes a Summary. An empty input yields the zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := sortedCopy(values)
	mean, std := stat.PopMeanStdDev(values, nil)
	return Summary{
		Count:  len(values),
		Mean:   mean,
		Std:    std,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Median: percentileSorted(sorted, 0.5),
		P25:    percentileSorted(sorted, 0.25),
		P75:    percentileSorted(sorted, 0.75),
		P90:    percentileSorted(sorted, 0.90),
	}
}

// Percentile returns the p-th quantile (p in [0,1]) with linear
// interpolation between closest ranks. An empty input returns 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return percentileSorted(sortedCopy(values), p)
}

func percentileSorted(sorted []float64, p float64) float64 {
	p = math.Max(0, math.Min(1, p))
	index := p * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

// Correlation returns the Pearson correlation of x and y. Undefined
// correlations (fewer than two points, a constant series) are reported as 0.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// Standardize returns (x - mean) / std using the population deviation. A
// zero deviation leaves the values centred but unscaled.
func Standardize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}

// Band counts values falling in [Lo, Hi).
type Band struct {
	Name  string  `json:"name"`
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// CountBands fills the Count of each band. The last band's upper bound is
// inclusive.
func CountBands(values []float64, bands []Band) []Band {
	out := make([]Band, len(bands))
	copy(out, bands)
	for _, v := range values {
		for i := range out {
			last := i == len(out)-1
			if v >= out[i].Lo && (v < out[i].Hi || (last && v <= out[i].Hi)) {
				out[i].Count++
				break
			}
		}
	}
	return out
}
