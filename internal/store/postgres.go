package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/kairuizhang035-crypto/yinguo/internal/db"
	"github.com/kairuizhang035-crypto/yinguo/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const runColumns = `id, status, config_fingerprint, output_dir, summary, error, created_at, updated_at`

var edgeColumns = []string{
	"run_id", "source", "target", "tier", "ensemble",
	"joint_confidence", "data_quality", "quality_adjusted_confidence", "core", "rejected_by",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status             TEXT NOT NULL DEFAULT 'running',
	config_fingerprint TEXT NOT NULL,
	output_dir         TEXT NOT NULL,
	summary            JSONB,
	error              TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_edges (
	run_id                      TEXT NOT NULL REFERENCES runs(id),
	source                      TEXT NOT NULL,
	target                      TEXT NOT NULL,
	tier                        TEXT NOT NULL,
	ensemble                    DOUBLE PRECISION NOT NULL,
	joint_confidence            DOUBLE PRECISION NOT NULL,
	data_quality                DOUBLE PRECISION NOT NULL,
	quality_adjusted_confidence DOUBLE PRECISION NOT NULL,
	core                        BOOLEAN NOT NULL,
	rejected_by                 TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, source, target)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(config_fingerprint);
CREATE INDEX IF NOT EXISTS idx_run_edges_core ON run_edges(run_id, core);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, fingerprint, outputDir string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, config_fingerprint, output_dir, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(model.RunStatusRunning), fingerprint, outputDir, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:                id,
		Status:            model.RunStatusRunning,
		ConfigFingerprint: fingerprint,
		OutputDir:         outputDir,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary []byte) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), summary, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`,
		runID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: get run %s: run not found", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveEdges(ctx context.Context, runID string, edges []EdgeRecord) error {
	rows := make([][]any, len(edges))
	for i, e := range edges {
		rows[i] = []any{
			runID, e.Source, e.Target, string(e.Tier), e.Ensemble,
			e.Joint, e.DataQuality, e.QualityAdjusted, e.Core, e.RejectedBy,
		}
	}
	if _, err := db.CopyFrom(ctx, s.pool, "run_edges", edgeColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: save edges for run %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListEdges(ctx context.Context, runID string, coreOnly bool) ([]EdgeRecord, error) {
	query := `SELECT run_id, source, target, tier, ensemble, joint_confidence, data_quality, quality_adjusted_confidence, core, rejected_by
		FROM run_edges WHERE run_id = $1`
	if coreOnly {
		query += ` AND core`
	}
	query += ` ORDER BY quality_adjusted_confidence DESC, source, target`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list edges")
	}
	defer rows.Close()

	var edges []EdgeRecord
	for rows.Next() {
		var e EdgeRecord
		var tier string
		if err := rows.Scan(&e.RunID, &e.Source, &e.Target, &tier, &e.Ensemble,
			&e.Joint, &e.DataQuality, &e.QualityAdjusted, &e.Core, &e.RejectedBy); err != nil {
			return nil, eris.Wrap(err, "postgres: scan edge")
		}
		e.Tier = model.Tier(tier)
		edges = append(edges, e)
	}
	return edges, eris.Wrap(rows.Err(), "postgres: list edges iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var summary []byte

	if err := row.Scan(&r.ID, &status, &r.ConfigFingerprint, &r.OutputDir, &summary, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if len(summary) > 0 {
		r.Summary = summary
	}
	return &r, nil
}
