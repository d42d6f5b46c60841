package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "abc123", "out")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "abc123", got.ConfigFingerprint)
	assert.Equal(t, "out", got.OutputDir)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.Summary)
}

func TestSQLite_CompleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "fp", "out")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, run.ID, []byte(`{"core_edges":3}`)))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.JSONEq(t, `{"core_edges":3}`, string(got.Summary))
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "fp", "out")
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, errors.New("engine: ingest: boom")))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "engine: ingest: boom", got.Error)
}

func TestSQLite_UnknownRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")

	err = st.CompleteRun(ctx, "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: missing")

	err = st.FailRun(ctx, "missing", nil)
	require.Error(t, err)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := st.CreateRun(ctx, "fp", "out")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}
	require.NoError(t, st.CompleteRun(ctx, ids[0], []byte(`{}`)))
	require.NoError(t, st.FailRun(ctx, ids[1], errors.New("x")))

	tests := []struct {
		name   string
		filter RunFilter
		want   int
	}{
		{"all", RunFilter{}, 3},
		{"complete", RunFilter{Status: model.RunStatusComplete}, 1},
		{"failed", RunFilter{Status: model.RunStatusFailed}, 1},
		{"running", RunFilter{Status: model.RunStatusRunning}, 1},
		{"limit", RunFilter{Limit: 2}, 2},
		{"offset", RunFilter{Limit: 10, Offset: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := st.ListRuns(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, runs, tt.want)
		})
	}
}

func TestSQLite_Edges(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "fp", "out")
	require.NoError(t, err)

	edges := []EdgeRecord{
		{Source: "A", Target: "B", Tier: model.TierGold, Ensemble: 0.8, Joint: 0.7, DataQuality: 0.9, QualityAdjusted: 0.63, Core: true},
		{Source: "B", Target: "C", Tier: model.TierBronze, Ensemble: 0.4, Joint: 0.5, DataQuality: 0.4, QualityAdjusted: 0.2, RejectedBy: "both"},
	}
	require.NoError(t, st.SaveEdges(ctx, run.ID, edges))

	all, err := st.ListEdges(ctx, run.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].Source)
	assert.Equal(t, run.ID, all[0].RunID)
	assert.Equal(t, model.TierGold, all[0].Tier)
	assert.True(t, all[0].Core)
	assert.Equal(t, "both", all[1].RejectedBy)

	core, err := st.ListEdges(ctx, run.ID, true)
	require.NoError(t, err)
	require.Len(t, core, 1)
	assert.Equal(t, "B", core[0].Target)

	require.Error(t, st.SaveEdges(ctx, run.ID, edges[:1]), "duplicate edge")
}

func TestEdgeRecords(t *testing.T) {
	key := model.EdgeKey{Source: "A", Target: "B"}
	recs := []model.TriangulationRecord{{
		Edge:            key,
		Tier:            model.TierSilver,
		Joint:           0.6,
		DataQuality:     0.7,
		QualityAdjusted: 0.42,
		RejectedBy:      model.RejectQuality,
	}}

	out := EdgeRecords("run-1", recs, map[model.EdgeKey]float64{key: 0.55})
	require.Len(t, out, 1)
	assert.Equal(t, EdgeRecord{
		RunID:           "run-1",
		Source:          "A",
		Target:          "B",
		Tier:            model.TierSilver,
		Ensemble:        0.55,
		Joint:           0.6,
		DataQuality:     0.7,
		QualityAdjusted: 0.42,
		RejectedBy:      "quality",
	}, out[0])
}
