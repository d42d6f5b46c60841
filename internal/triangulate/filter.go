package triangulate

import "github.com/kairuizhang035-crypto/yinguo/internal/model"

// Filter is the dual-gate core edge filter. Both gates are inclusive.
type Filter struct {
	Confidence float64
	Quality    float64
}

// Decide sets Core and RejectedBy on rec.
func (f Filter) Decide(rec *model.TriangulationRecord) {
	confOK := rec.Joint >= f.Confidence
	qualOK := rec.DataQuality >= f.Quality
	rec.Core = confOK && qualOK
	switch {
	case rec.Core:
		rec.RejectedBy = model.RejectNone
	case !confOK && !qualOK:
		rec.RejectedBy = model.RejectBoth
	case !confOK:
		rec.RejectedBy = model.RejectConfidence
	default:
		rec.RejectedBy = model.RejectQuality
	}
}

// Apply decides every record and returns the core records in input order.
func (f Filter) Apply(recs []model.TriangulationRecord) []model.TriangulationRecord {
	var core []model.TriangulationRecord
	for i := range recs {
		f.Decide(&recs[i])
		if recs[i].Core {
			core = append(core, recs[i])
		}
	}
	return core
}
