// Package store persists pipeline results in PostgreSQL so that decision
// tables and per-drug summaries survive service restarts and can be queried
// by downstream reporting.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/clinsight/ade-signal-pipeline/internal/pipeline"
	"github.com/clinsight/ade-signal-pipeline/pkg/postgres"
)

// Store persists pipeline run results.
//
// It requires the following tables:
//
//	CREATE TABLE ade_runs (
//	    run_id      TEXT PRIMARY KEY,
//	    started_at  TIMESTAMPTZ NOT NULL,
//	    duration_ms BIGINT NOT NULL,
//	    summary     JSONB NOT NULL,
//	    saved_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
//	CREATE TABLE ade_decisions (
//	    id            BIGSERIAL PRIMARY KEY,
//	    run_id        TEXT NOT NULL REFERENCES ade_runs(run_id),
//	    drug_text     TEXT NOT NULL,
//	    ade_text      TEXT NOT NULL,
//	    source_id     TEXT NOT NULL,
//	    drug_key      TEXT NOT NULL,
//	    ade_key       TEXT NOT NULL,
//	    drug_score    INT NOT NULL,
//	    ade_score     INT NOT NULL,
//	    is_consistent BOOLEAN NOT NULL,
//	    ref_found     BOOLEAN NOT NULL,
//	    kept          BOOLEAN NOT NULL,
//	    filter_reason TEXT NOT NULL
//	);
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// RunRecord is a persisted run header with its summary.
type RunRecord struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	DurationMs int64            `json:"duration_ms"`
	Summary    pipeline.Summary `json:"summary"`
}

// New creates a result store over the given Postgres client.
func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "result-store"),
	}
}

// SaveRun persists the run header, summary, and full decision table in one
// transaction.
func (s *Store) SaveRun(ctx context.Context, result *pipeline.Result) error {
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ade_runs (run_id, started_at, duration_ms, summary) VALUES ($1, $2, $3, $4)`,
			result.RunID, result.StartedAt, result.DurationMs, summary,
		)
		if err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO ade_decisions
			   (run_id, drug_text, ade_text, source_id, drug_key, ade_key,
			    drug_score, ade_score, is_consistent, ref_found, kept, filter_reason)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		)
		if err != nil {
			return fmt.Errorf("preparing decision insert: %w", err)
		}
		defer stmt.Close()

		for _, d := range result.Decisions {
			_, err := stmt.ExecContext(ctx,
				result.RunID,
				d.DrugText, d.ADEText, d.SourceID,
				d.ResolvedDrug(), d.ResolvedADE(),
				d.DrugMatchScore, d.ADEMatchScore,
				d.IsConsistent, d.ReferenceMatchFound,
				d.Kept, d.Reason,
			)
			if err != nil {
				return fmt.Errorf("inserting decision: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("run persisted",
		"run_id", result.RunID,
		"decisions", len(result.Decisions),
		"kept", result.Summary.Kept,
	)
	return nil
}

// LatestRun loads the most recently saved run header. Returns nil, nil when
// no runs have been persisted yet.
func (s *Store) LatestRun(ctx context.Context) (*RunRecord, error) {
	var rec RunRecord
	var summary []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT run_id, started_at, duration_ms, summary
		   FROM ade_runs ORDER BY saved_at DESC LIMIT 1`,
	).Scan(&rec.RunID, &rec.StartedAt, &rec.DurationMs, &summary)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}
	if err := json.Unmarshal(summary, &rec.Summary); err != nil {
		return nil, fmt.Errorf("unmarshaling summary: %w", err)
	}
	return &rec, nil
}

// KeptByDrug returns the persisted kept-mention counts per drug across all
// runs, for longitudinal reporting.
func (s *Store) KeptByDrug(ctx context.Context, limit int) (map[string]int, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT drug_key, COUNT(*) FROM ade_decisions
		  WHERE kept GROUP BY drug_key ORDER BY COUNT(*) DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying kept by drug: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var drug string
		var n int
		if err := rows.Scan(&drug, &n); err != nil {
			return nil, fmt.Errorf("scanning kept row: %w", err)
		}
		counts[drug] = n
	}
	return counts, rows.Err()
}
