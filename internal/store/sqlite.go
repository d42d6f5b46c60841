package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	status             TEXT NOT NULL DEFAULT 'running',
	config_fingerprint TEXT NOT NULL,
	output_dir         TEXT NOT NULL,
	summary            TEXT,
	error              TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_edges (
	run_id                      TEXT NOT NULL REFERENCES runs(id),
	source                      TEXT NOT NULL,
	target                      TEXT NOT NULL,
	tier                        TEXT NOT NULL,
	ensemble                    REAL NOT NULL,
	joint_confidence            REAL NOT NULL,
	data_quality                REAL NOT NULL,
	quality_adjusted_confidence REAL NOT NULL,
	core                        INTEGER NOT NULL,
	rejected_by                 TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, source, target)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(config_fingerprint);
CREATE INDEX IF NOT EXISTS idx_run_edges_core ON run_edges(run_id, core);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, fingerprint, outputDir string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, config_fingerprint, output_dir, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(model.RunStatusRunning), fingerprint, outputDir, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(summary), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, config_fingerprint, output_dir, summary, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, config_fingerprint, output_dir, summary, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveEdges(ctx context.Context, runID string, edges []EdgeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save edges")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_edges (run_id, source, target, tier, ensemble, joint_confidence, data_quality, quality_adjusted_confidence, core, rejected_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save edges")
	}
	defer stmt.Close() //nolint:errcheck

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx,
			runID, e.Source, e.Target, string(e.Tier), e.Ensemble,
			e.Joint, e.DataQuality, e.QualityAdjusted, e.Core, e.RejectedBy,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert edge %s->%s", e.Source, e.Target)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save edges")
}

func (s *SQLiteStore) ListEdges(ctx context.Context, runID string, coreOnly bool) ([]EdgeRecord, error) {
	query := `SELECT run_id, source, target, tier, ensemble, joint_confidence, data_quality, quality_adjusted_confidence, core, rejected_by
		FROM run_edges WHERE run_id = ?`
	if coreOnly {
		query += ` AND core = 1`
	}
	query += ` ORDER BY quality_adjusted_confidence DESC, source, target`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list edges")
	}
	defer rows.Close() //nolint:errcheck

	var edges []EdgeRecord
	for rows.Next() {
		var e EdgeRecord
		var tier string
		if err := rows.Scan(&e.RunID, &e.Source, &e.Target, &tier, &e.Ensemble,
			&e.Joint, &e.DataQuality, &e.QualityAdjusted, &e.Core, &e.RejectedBy); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan edge")
		}
		e.Tier = model.Tier(tier)
		edges = append(edges, e)
	}
	return edges, eris.Wrap(rows.Err(), "sqlite: list edges iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var summary sql.NullString

	err := row.Scan(&r.ID, &r.Status, &r.ConfigFingerprint, &r.OutputDir, &summary, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if summary.Valid && summary.String != "" {
		r.Summary = []byte(summary.String)
	}
	return &r, nil
}
