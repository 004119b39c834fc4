package indexer

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ovillellas/hexrd/internal/config"
)

func openRunStore(t *testing.T) (*RunStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := NewRunStore(db)
	require.NoError(t, err)
	return s, db
}

func TestRunStoreCompleteRun(t *testing.T) {
	s, db := openRunStore(t)
	cfg := config.Default()
	cfg.AnalysisName = "test_scan"

	run, err := s.StartRun(cfg, true)
	require.NoError(t, err)
	require.NotEmpty(t, run.RunID)
	require.NoError(t, s.CompleteRun(run, 500, 42, 3))

	var (
		name, params           string
		seeded, trials, nAbove int
		nClusters              int
		completed              sql.NullInt64
		errText                sql.NullString
	)
	err = db.QueryRow(
		`SELECT analysis_name, params_json, seeded, n_trials, n_above, n_clusters, completed_unix_nanos, error
		 FROM indexer_run WHERE run_id = ?`, run.RunID,
	).Scan(&name, &params, &seeded, &trials, &nAbove, &nClusters, &completed, &errText)
	require.NoError(t, err)

	require.Equal(t, "test_scan", name)
	require.Equal(t, 1, seeded)
	require.Equal(t, 500, trials)
	require.Equal(t, 42, nAbove)
	require.Equal(t, 3, nClusters)
	require.True(t, completed.Valid, "completion timestamp missing")
	require.False(t, errText.Valid, "completed run should have no error")
	require.True(t, strings.Contains(params, "test_scan"),
		"params snapshot does not embed the configuration")
}

func TestRunStoreFailRun(t *testing.T) {
	s, db := openRunStore(t)
	run, err := s.StartRun(config.Default(), false)
	require.NoError(t, err)
	require.NoError(t, s.FailRun(run, errors.New("scoring blew up")))

	var errText sql.NullString
	require.NoError(t,
		db.QueryRow(`SELECT error FROM indexer_run WHERE run_id = ?`, run.RunID).Scan(&errText))
	require.True(t, errText.Valid)
	require.Contains(t, errText.String, "scoring blew up")
}

func TestRunStoreDistinctRunIDs(t *testing.T) {
	s, _ := openRunStore(t)
	a, err := s.StartRun(config.Default(), true)
	require.NoError(t, err)
	b, err := s.StartRun(config.Default(), true)
	require.NoError(t, err)
	require.NotEqual(t, a.RunID, b.RunID)
}
