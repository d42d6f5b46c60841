// Package store persists the run ledger: one row per fusion batch plus the
// triangulation records it produced.
package store

import (
	"context"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// EdgeRecord is one persisted triangulation record.
type EdgeRecord struct {
	RunID           string     `json:"run_id"`
	Source          string     `json:"source"`
	Target          string     `json:"target"`
	Tier            model.Tier `json:"tier"`
	Ensemble        float64    `json:"ensemble"`
	Joint           float64    `json:"joint_confidence"`
	DataQuality     float64    `json:"data_quality"`
	QualityAdjusted float64    `json:"quality_adjusted_confidence"`
	Core            bool       `json:"core"`
	RejectedBy      string     `json:"rejected_by,omitempty"`
}

// Store defines the persistence interface for the run ledger.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, fingerprint, outputDir string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary []byte) error
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Edges
	SaveEdges(ctx context.Context, runID string, edges []EdgeRecord) error
	ListEdges(ctx context.Context, runID string, coreOnly bool) ([]EdgeRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(filter RunFilter) int {
	if filter.Limit <= 0 {
		return defaultListLimit
	}
	return filter.Limit
}

// EdgeRecords flattens triangulation records for persistence. ensemble maps
// each edge to its Stage A ensemble score.
func EdgeRecords(runID string, recs []model.TriangulationRecord, ensemble map[model.EdgeKey]float64) []EdgeRecord {
	out := make([]EdgeRecord, len(recs))
	for i, r := range recs {
		out[i] = EdgeRecord{
			RunID:           runID,
			Source:          r.Edge.Source,
			Target:          r.Edge.Target,
			Tier:            r.Tier,
			Ensemble:        ensemble[r.Edge],
			Joint:           r.Joint,
			DataQuality:     r.DataQuality,
			QualityAdjusted: r.QualityAdjusted,
			Core:            r.Core,
			RejectedBy:      string(r.RejectedBy),
		}
	}
	return out
}
