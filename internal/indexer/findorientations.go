package indexer

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ovillellas/hexrd/internal/config"
	"github.com/ovillellas/hexrd/internal/crystal"
	"github.com/ovillellas/hexrd/internal/etaome"
	"github.com/ovillellas/hexrd/internal/monitoring"
	"github.com/ovillellas/hexrd/internal/report"
	"github.com/ovillellas/hexrd/internal/rotations"
)

// Dependencies are the external collaborators of FindOrientations. Zero
// values select the defaults: maps from the SQLite cache in the working
// directory, the built-in paint grid scorer, and a time-seeded random
// source.
type Dependencies struct {
	Maps   *etaome.EtaOmeMaps
	Scorer CompletenessScorer
	RNG    *rand.Rand
	DB     *sql.DB
}

// Result is the outcome of one indexing run.
type Result struct {
	RunID         string
	Seeded        bool
	Trials        []rotations.Quat
	Completeness  []float64
	Centroids     []rotations.Quat
	Assignment    []int
	AlgorithmUsed string
}

// FindOrientations runs the full indexing pipeline: acquire maps, choose the
// search mode, score trial orientations, estimate clustering parameters
// (seeded mode), cluster and persist the results.
func FindOrientations(cfg *config.Config, deps Dependencies) (*Result, error) {
	workDir := cfg.WorkingDir
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("find orientations: create working dir: %w", err)
	}
	monitoring.Logf("[FindOrientations] Beginning analysis %q", cfg.AnalysisName)

	db := deps.DB
	if db == nil {
		var err error
		db, err = sql.Open("sqlite", filepath.Join(workDir, cfg.FindOrientations.OrientationMaps.File))
		if err != nil {
			return nil, fmt.Errorf("find orientations: open analysis database: %w", err)
		}
		defer db.Close()
	}
	runs, err := NewRunStore(db)
	if err != nil {
		return nil, err
	}

	// AcquireMaps
	maps := deps.Maps
	if maps == nil {
		store, err := etaome.NewStore(db)
		if err != nil {
			return nil, err
		}
		maps, err = store.LoadLatest()
		if err != nil {
			return nil, fmt.Errorf("find orientations: no eta-omega maps available (generate maps first): %w", err)
		}
	}
	if err := maps.Validate(); err != nil {
		return nil, fmt.Errorf("find orientations: %w", err)
	}

	// SelectSearchMode: an unreadable grid file selects the seeded path, it
	// is not an error.
	fo := &cfg.FindOrientations
	trials, seeded := selectTrialOrientations(cfg)
	if seeded {
		if len(fo.SeedSearch.HKLSeeds) == 0 {
			return nil, fmt.Errorf("find orientations: seeded search requires seed_search.hkl_seeds")
		}
		trials, err = GenerateOrientationFibers(maps, fo.Threshold, fo.SeedSearch.HKLSeeds, fo.SeedSearch.FiberNdiv)
		if err != nil {
			return nil, err
		}
	}
	if len(trials) == 0 {
		return nil, fmt.Errorf("find orientations: no trial orientations generated")
	}

	run, err := runs.StartRun(cfg, seeded)
	if err != nil {
		return nil, err
	}
	res, err := runPipeline(cfg, maps, trials, seeded, deps, workDir)
	if err != nil {
		if ferr := runs.FailRun(run, err); ferr != nil {
			monitoring.Logf("[FindOrientations] Could not record failure: %v", ferr)
		}
		return nil, err
	}
	res.RunID = run.RunID
	res.Seeded = seeded
	if err := runs.CompleteRun(run, len(trials), countAbove(res.Completeness, fo.Clustering.Completeness), len(res.Centroids)); err != nil {
		monitoring.Logf("[FindOrientations] Could not record completion: %v", err)
	}
	return res, nil
}

// selectTrialOrientations probes the quaternion grid file. It returns the
// parsed grid with seeded=false, or nil with seeded=true when no usable
// grid is supplied.
func selectTrialOrientations(cfg *config.Config) ([]rotations.Quat, bool) {
	path := cfg.FindOrientations.UseQuaternionGrid
	if path == "" {
		monitoring.Logf("[FindOrientations] No quaternion grid configured; using seeded search")
		return nil, true
	}
	quats, err := loadQuaternionGrid(path)
	if err != nil {
		monitoring.Logf("[FindOrientations] Quaternion grid %s unusable (%v); defaulting to seeded search", path, err)
		return nil, true
	}
	monitoring.Logf("[FindOrientations] Using %s for full quaternion grid search (%d orientations)", path, len(quats))
	return quats, false
}

// loadQuaternionGrid parses a whitespace-delimited text file with one unit
// quaternion per row.
func loadQuaternionGrid(path string) ([]rotations.Quat, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var quats []rotations.Quat
	for ln, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: expected 4 columns, got %d", ln+1, len(fields))
		}
		var q rotations.Quat
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", ln+1, err)
			}
			q[i] = v
		}
		quats = append(quats, q.Normalize())
	}
	if len(quats) == 0 {
		return nil, fmt.Errorf("no orientations in file")
	}
	return quats, nil
}

func runPipeline(cfg *config.Config, maps *etaome.EtaOmeMaps, trials []rotations.Quat, seeded bool, deps Dependencies, workDir string) (*Result, error) {
	fo := &cfg.FindOrientations

	if cfg.AsciiOutput && seeded {
		if err := writeQuatFile(filepath.Join(workDir, "trial_orientations.dat"), trials); err != nil {
			return nil, err
		}
	}

	// ScoreCandidates
	scorer := deps.Scorer
	if scorer == nil {
		scorer = PaintGridScorer{}
	}
	monitoring.Logf("[FindOrientations] Running paint grid on %d trial orientations (%d workers)",
		len(trials), cfg.NCPUs())
	start := time.Now()
	compl, err := scorer.Score(trials, maps, ScoreOptions{
		EtaRanges: cfg.EtaRangesRad(),
		OmeTol:    cfg.OmegaToleranceRad(),
		EtaTol:    cfg.EtaToleranceRad(),
		OmePeriod: cfg.OmegaPeriodRad(),
		Threshold: fo.Threshold,
		NCPUs:     cfg.NCPUs(),
	})
	if err != nil {
		return nil, fmt.Errorf("find orientations: completeness scoring: %w", err)
	}
	monitoring.Logf("[FindOrientations] Scoring done in %v", time.Since(start))

	if cfg.AsciiOutput {
		if err := writeFloatFile(filepath.Join(workDir, "completeness.dat"), compl); err != nil {
			return nil, err
		}
	} else {
		if err := writeScoredOrientations(filepath.Join(workDir, "scored_orientations.dat"), trials, compl); err != nil {
			return nil, err
		}
	}

	// EstimateParameters (seeded only)
	minSamples := fo.Clustering.ExhaustiveMinSamples
	if seeded {
		rng := deps.RNG
		if rng == nil {
			rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		omeMin, omeMax := maps.OmeRange()
		seedHKLIDs := make([]int, 0, len(fo.SeedSearch.HKLSeeds))
		for _, s := range fo.SeedSearch.HKLSeeds {
			seedHKLIDs = append(seedHKLIDs, maps.HKLIDs[s])
		}
		est := EstimateNeighborhood(maps.PlaneData, crystal.DetectorGeometry{
			OmeMin:    omeMin,
			OmeMax:    omeMax,
			EtaRanges: cfg.EtaRangesRad(),
		}, seedHKLIDs, NeighborhoodOptions{
			CompletenessThreshold: fo.Clustering.Completeness,
			RNG:                   rng,
		})
		minSamples = est.MinSamples
	}

	// Cluster
	cres, err := RunCluster(compl, trials, maps.PlaneData.Laue, ClusterOptions{
		Algorithm:       fo.Clustering.Algorithm,
		RadiusDeg:       fo.Clustering.Radius,
		MinCompleteness: fo.Clustering.Completeness,
		MinSamples:      minSamples,
	})
	if err != nil {
		return nil, err
	}

	// Persist
	if len(cres.Assignment) > 0 {
		if err := writeClusterFile(filepath.Join(workDir, "clusters.dat"), cres.Assignment); err != nil {
			return nil, err
		}
	}
	if err := writeQuatFile(filepath.Join(workDir, "accepted_orientations.dat"), cres.Centroids); err != nil {
		return nil, err
	}
	reportPath := filepath.Join(workDir, cfg.AnalysisName+"_report.html")
	if err := report.WriteRunReport(reportPath, compl, cres.Assignment); err != nil {
		monitoring.Logf("[FindOrientations] Could not write HTML report: %v", err)
	}

	return &Result{
		Trials:        trials,
		Completeness:  compl,
		Centroids:     cres.Centroids,
		Assignment:    cres.Assignment,
		AlgorithmUsed: cres.Algorithm,
	}, nil
}

func countAbove(compl []float64, threshold float64) int {
	n := 0
	for _, c := range compl {
		if c > threshold {
			n++
		}
	}
	return n
}

// writeQuatFile writes one quaternion per row, four tab-separated columns in
// high-precision scientific notation. This layout is a stable on-disk
// contract consumed by downstream grain fitting.
func writeQuatFile(path string, quats []rotations.Quat) error {
	var b strings.Builder
	for _, q := range quats {
		fmt.Fprintf(&b, "%.18e\t%.18e\t%.18e\t%.18e\n", q[0], q[1], q[2], q[3])
	}
	return writeFileLogged(path, b.String())
}

func writeFloatFile(path string, vals []float64) error {
	var b strings.Builder
	for _, v := range vals {
		fmt.Fprintf(&b, "%.18e\n", v)
	}
	return writeFileLogged(path, b.String())
}

// writeScoredOrientations stacks each trial orientation with its
// completeness: five tab-separated columns per row.
func writeScoredOrientations(path string, quats []rotations.Quat, compl []float64) error {
	var b strings.Builder
	for i, q := range quats {
		fmt.Fprintf(&b, "%.18e\t%.18e\t%.18e\t%.18e\t%.18e\n", q[0], q[1], q[2], q[3], compl[i])
	}
	return writeFileLogged(path, b.String())
}

// writeClusterFile writes one fixed-width integer label per row.
func writeClusterFile(path string, assignment []int) error {
	var b strings.Builder
	for _, id := range assignment {
		fmt.Fprintf(&b, "%5d\n", id)
	}
	return writeFileLogged(path, b.String())
}

func writeFileLogged(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("find orientations: write %s: %w", path, err)
	}
	monitoring.Logf("[FindOrientations] Wrote %s", path)
	return nil
}
