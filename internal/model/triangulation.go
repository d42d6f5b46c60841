package model

// Pillar names one of the four triangulation evidence pillars.
type Pillar string

const (
	PillarStructural Pillar = "structural"
	PillarParameter  Pillar = "parameter"
	PillarMediation  Pillar = "mediation"
	PillarExpert     Pillar = "expert"
)

// Pillars lists the pillars in reporting order.
var Pillars = []Pillar{PillarStructural, PillarParameter, PillarMediation, PillarExpert}

// PillarScore is one pillar's value. Estimated marks a fallback value used
// because the pillar had no evidence for the edge.
type PillarScore struct {
	Value     float64 `json:"value"`
	Estimated bool    `json:"estimated"`
	Detail    string  `json:"detail,omitempty"`
}

// RejectGate records which core gate rejected an edge.
type RejectGate string

const (
	RejectNone       RejectGate = ""
	RejectConfidence RejectGate = "confidence"
	RejectQuality    RejectGate = "quality"
	RejectBoth       RejectGate = "both"
)

// TriangulationRecord is the Stage B result for one tiered edge.
type TriangulationRecord struct {
	Edge            EdgeKey                `json:"edge"`
	Tier            Tier                   `json:"tier"`
	Pillars         map[Pillar]PillarScore `json:"pillars"`
	Contributions   map[Pillar]float64     `json:"contributions"`
	Joint           float64                `json:"joint_confidence"`
	DataQuality     float64                `json:"data_quality"`
	QualityAdjusted float64                `json:"quality_adjusted_confidence"`
	Core            bool                   `json:"core"`
	RejectedBy      RejectGate             `json:"rejected_by,omitempty"`
}

// Pillar returns the score of p, or a zero value when absent.
func (r TriangulationRecord) Pillar(p Pillar) PillarScore {
	return r.Pillars[p]
}

// StrongestPillar returns the pillar with the largest contribution.
// Ties resolve in reporting order.
func (r TriangulationRecord) StrongestPillar() Pillar {
	best := PillarStructural
	for _, p := range Pillars {
		if r.Contributions[p] > r.Contributions[best] {
			best = p
		}
	}
	return best
}

// WeakestPillar returns the pillar with the smallest contribution.
func (r TriangulationRecord) WeakestPillar() Pillar {
	worst := PillarStructural
	for _, p := range Pillars {
		if r.Contributions[p] < r.Contributions[worst] {
			worst = p
		}
	}
	return worst
}
