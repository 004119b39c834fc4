package indexer

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ovillellas/hexrd/internal/config"
	"github.com/ovillellas/hexrd/internal/monitoring"
)

//go:embed schema.sql
var runSchemaSQL string

// Run is one recorded indexing invocation.
type Run struct {
	RunID        string
	AnalysisName string
	StartedAt    time.Time
	Seeded       bool
}

// RunStore persists indexing runs for reproducibility: the full parameter
// set, timing and result counts of every invocation.
type RunStore struct {
	db *sql.DB
}

// NewRunStore wraps an existing database connection, ensuring the schema
// exists. The caller retains ownership of db.
func NewRunStore(db *sql.DB) (*RunStore, error) {
	if _, err := db.Exec(runSchemaSQL); err != nil {
		return nil, fmt.Errorf("run store: apply schema: %w", err)
	}
	return &RunStore{db: db}, nil
}

// StartRun records the beginning of an indexing run, capturing the complete
// configuration as JSON.
func (s *RunStore) StartRun(cfg *config.Config, seeded bool) (*Run, error) {
	params, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("run store: serialize params: %w", err)
	}
	run := &Run{
		RunID:        uuid.NewString(),
		AnalysisName: cfg.AnalysisName,
		StartedAt:    time.Now(),
		Seeded:       seeded,
	}
	_, err = s.db.Exec(
		`INSERT INTO indexer_run (run_id, analysis_name, started_unix_nanos, seeded, params_json)
		 VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.AnalysisName, run.StartedAt.UnixNano(), boolToInt(seeded), string(params),
	)
	if err != nil {
		return nil, fmt.Errorf("run store: insert run: %w", err)
	}
	monitoring.Logf("[RunStore] Started run %s for analysis %q (seeded=%v)", run.RunID, run.AnalysisName, seeded)
	return run, nil
}

// CompleteRun marks a run finished and stores its result counts.
func (s *RunStore) CompleteRun(run *Run, nTrials, nAbove, nClusters int) error {
	_, err := s.db.Exec(
		`UPDATE indexer_run SET completed_unix_nanos = ?, n_trials = ?, n_above = ?, n_clusters = ?
		 WHERE run_id = ?`,
		time.Now().UnixNano(), nTrials, nAbove, nClusters, run.RunID,
	)
	if err != nil {
		return fmt.Errorf("run store: complete run %s: %w", run.RunID, err)
	}
	monitoring.Logf("[RunStore] Completed run %s: %d trials, %d above threshold, %d clusters in %.2fs",
		run.RunID, nTrials, nAbove, nClusters, time.Since(run.StartedAt).Seconds())
	return nil
}

// FailRun marks a run failed with the fatal error text.
func (s *RunStore) FailRun(run *Run, runErr error) error {
	_, err := s.db.Exec(
		`UPDATE indexer_run SET completed_unix_nanos = ?, error = ? WHERE run_id = ?`,
		time.Now().UnixNano(), runErr.Error(), run.RunID,
	)
	if err != nil {
		return fmt.Errorf("run store: fail run %s: %w", run.RunID, err)
	}
	monitoring.Logf("[RunStore] Failed run %s: %v", run.RunID, runErr)
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
