package model

// Dimension names a Stage A scoring dimension.
type Dimension string

const (
	DimFrequency       Dimension = "frequency"
	DimDiversity       Dimension = "diversity"
	DimConsistency     Dimension = "consistency"
	DimNetworkPosition Dimension = "network_position"
	DimSignificance    Dimension = "significance"
)

// Dimensions lists every dimension in the fixed summation order.
var Dimensions = []Dimension{
	DimFrequency,
	DimDiversity,
	DimConsistency,
	DimNetworkPosition,
	DimSignificance,
}

// DimensionDefault is the imputed value used when a dimension cannot be computed.
func DimensionDefault(d Dimension) float64 {
	switch d {
	case DimNetworkPosition, DimSignificance:
		return 0.5
	default:
		return 0
	}
}

// DimensionScores holds the five per-edge scores, each in [0,1].
type DimensionScores struct {
	Frequency       float64 `json:"frequency"`
	Diversity       float64 `json:"diversity"`
	Consistency     float64 `json:"consistency"`
	NetworkPosition float64 `json:"network_position"`
	Significance    float64 `json:"significance"`
}

// Get returns the score for d.
func (s DimensionScores) Get(d Dimension) float64 {
	switch d {
	case DimFrequency:
		return s.Frequency
	case DimDiversity:
		return s.Diversity
	case DimConsistency:
		return s.Consistency
	case DimNetworkPosition:
		return s.NetworkPosition
	case DimSignificance:
		return s.Significance
	}
	return 0
}

// Tier is the discrete quality tier assigned in Stage A.
type Tier string

const (
	TierPlatinum Tier = "platinum"
	TierGold     Tier = "gold"
	TierSilver   Tier = "silver"
	TierBronze   Tier = "bronze"
	TierNone     Tier = "none"
)

// Tiers lists the assignable tiers in evaluation order, highest first.
var Tiers = []Tier{TierPlatinum, TierGold, TierSilver, TierBronze}

// Assignable reports whether t is one of Tiers.
func (t Tier) Assignable() bool {
	return t.Rank() > 0
}

// Rank orders tiers: platinum=4 down to none=0.
func (t Tier) Rank() int {
	switch t {
	case TierPlatinum:
		return 4
	case TierGold:
		return 3
	case TierSilver:
		return 2
	case TierBronze:
		return 1
	}
	return 0
}

// ScoredEdge is a candidate edge with its Stage A results.
type ScoredEdge struct {
	Edge         EdgeKey         `json:"edge"`
	Producers    []string        `json:"producers"`
	SupportCount int             `json:"support_count"`
	Appearances  int             `json:"appearances"`
	MeanSupport  float64         `json:"mean_support"`
	Dimensions   DimensionScores `json:"dimensions"`
	Ensemble     float64         `json:"ensemble"`
	Tier         Tier            `json:"tier"`
}

// HeuristicEstimate is one threshold candidate.
type HeuristicEstimate struct {
	Value    float64 `json:"value"`
	Fallback bool    `json:"fallback"`
	Reason   string  `json:"reason,omitempty"`
}

// ThresholdEstimate is the batch-wide cutoff and its three candidates.
type ThresholdEstimate struct {
	Knee    HeuristicEstimate `json:"knee"`
	Cluster HeuristicEstimate `json:"cluster"`
	Outlier HeuristicEstimate `json:"outlier"`
	Final   float64           `json:"final"`
}
