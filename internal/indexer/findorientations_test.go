package indexer

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ovillellas/hexrd/internal/config"
	"github.com/ovillellas/hexrd/internal/etaome"
	"github.com/ovillellas/hexrd/internal/rotations"
)

// stubScorer returns a fixed completeness per orientation.
type stubScorer struct {
	value float64
}

func (s stubScorer) Score(quats []rotations.Quat, _ *etaome.EtaOmeMaps, _ ScoreOptions) ([]float64, error) {
	out := make([]float64, len(quats))
	for i := range out {
		out[i] = s.value
	}
	return out, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.AnalysisName = "itest"
	cfg.WorkingDir = t.TempDir()
	cfg.Multiprocessing = 1
	cfg.FindOrientations.Threshold = 1
	cfg.FindOrientations.Clustering.Algorithm = "sym-dbscan"
	cfg.FindOrientations.Clustering.Radius = 5
	cfg.FindOrientations.Clustering.Completeness = 0.5
	cfg.FindOrientations.Clustering.ExhaustiveMinSamples = 2
	return cfg
}

func writeGridFile(t *testing.T, quats []rotations.Quat) string {
	t.Helper()
	var b strings.Builder
	for _, q := range quats {
		fmt.Fprintf(&b, "%g %g %g %g\n", q[0], q[1], q[2], q[3])
	}
	path := filepath.Join(t.TempDir(), "quat_grid.dat")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write grid: %v", err)
	}
	return path
}

func TestFindOrientationsExhaustiveGrid(t *testing.T) {
	cfg := testConfig(t)
	cfg.FindOrientations.UseQuaternionGrid = writeGridFile(t, twoGroups())

	res, err := FindOrientations(cfg, Dependencies{
		Maps:   makeMaps(t),
		Scorer: stubScorer{value: 1},
	})
	if err != nil {
		t.Fatalf("FindOrientations: %v", err)
	}
	if res.Seeded {
		t.Error("grid search reported as seeded")
	}
	if res.RunID == "" {
		t.Error("missing run id")
	}
	if len(res.Trials) != 10 {
		t.Errorf("got %d trials, want the 10 grid rows", len(res.Trials))
	}
	if len(res.Centroids) != 2 {
		t.Errorf("got %d centroids, want 2 (assignment %v)", len(res.Centroids), res.Assignment)
	}
	if res.AlgorithmUsed != "sym-dbscan" {
		t.Errorf("AlgorithmUsed = %q", res.AlgorithmUsed)
	}

	for _, f := range []string{"scored_orientations.dat", "clusters.dat", "accepted_orientations.dat", "itest_report.html"} {
		if _, err := os.Stat(filepath.Join(cfg.WorkingDir, f)); err != nil {
			t.Errorf("output %s missing: %v", f, err)
		}
	}

	// the accepted file carries one row of four columns per centroid
	raw, err := os.ReadFile(filepath.Join(cfg.WorkingDir, "accepted_orientations.dat"))
	if err != nil {
		t.Fatalf("read accepted orientations: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("accepted_orientations.dat has %d rows, want 2", len(lines))
	}
	if n := len(strings.Fields(lines[0])); n != 4 {
		t.Errorf("accepted orientation row has %d columns, want 4", n)
	}
}

func TestFindOrientationsUnreadableGridFallsBackToSeeded(t *testing.T) {
	cfg := testConfig(t)
	cfg.FindOrientations.UseQuaternionGrid = filepath.Join(t.TempDir(), "missing.dat")
	cfg.FindOrientations.SeedSearch.HKLSeeds = []int{0}
	cfg.FindOrientations.SeedSearch.FiberNdiv = 60

	m := makeMaps(t)
	m.Maps[0].Set(10, 20, 5)

	res, err := FindOrientations(cfg, Dependencies{
		Maps:   m,
		Scorer: stubScorer{value: 1},
		RNG:    rand.New(rand.NewSource(9)),
	})
	if err != nil {
		t.Fatalf("FindOrientations: %v", err)
	}
	if !res.Seeded {
		t.Error("unusable grid file must select the seeded path")
	}
	if len(res.Trials) == 0 {
		t.Error("seeded search produced no trial orientations")
	}
}

func TestFindOrientationsSeededAsciiOutputs(t *testing.T) {
	cfg := testConfig(t)
	cfg.AsciiOutput = true
	cfg.FindOrientations.SeedSearch.HKLSeeds = []int{0}
	cfg.FindOrientations.SeedSearch.FiberNdiv = 60

	m := makeMaps(t)
	m.Maps[0].Set(10, 20, 5)
	m.Maps[0].Set(10, 21, 5)

	res, err := FindOrientations(cfg, Dependencies{
		Maps:   m,
		Scorer: stubScorer{value: 0}, // nothing qualifies for clustering
		RNG:    rand.New(rand.NewSource(9)),
	})
	if err != nil {
		t.Fatalf("FindOrientations: %v", err)
	}
	if len(res.Centroids) != 0 {
		t.Errorf("zero completeness should yield no clusters, got %d", len(res.Centroids))
	}

	for _, f := range []string{"trial_orientations.dat", "completeness.dat", "accepted_orientations.dat"} {
		if _, err := os.Stat(filepath.Join(cfg.WorkingDir, f)); err != nil {
			t.Errorf("ascii output %s missing: %v", f, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.WorkingDir, "scored_orientations.dat")); err == nil {
		t.Error("scored_orientations.dat written despite ascii mode")
	}
}

func TestFindOrientationsSeededRequiresSeeds(t *testing.T) {
	cfg := testConfig(t)
	cfg.FindOrientations.SeedSearch.HKLSeeds = nil
	if _, err := FindOrientations(cfg, Dependencies{Maps: makeMaps(t)}); err == nil {
		t.Error("expected error when seeded search has no seeds")
	}
}

func TestFindOrientationsNoMapsAnywhere(t *testing.T) {
	cfg := testConfig(t)
	_, err := FindOrientations(cfg, Dependencies{})
	if err == nil {
		t.Fatal("expected error with no maps injected and an empty cache")
	}
	if !strings.Contains(err.Error(), "generate maps first") {
		t.Errorf("error should tell the user to generate maps, got: %v", err)
	}
}

func TestLoadQuaternionGrid(t *testing.T) {
	path := writeGridFile(t, []rotations.Quat{
		{2, 0, 0, 0}, // not normalized on disk
		{0, 1, 0, 0},
	})
	quats, err := loadQuaternionGrid(path)
	if err != nil {
		t.Fatalf("loadQuaternionGrid: %v", err)
	}
	if len(quats) != 2 {
		t.Fatalf("got %d orientations, want 2", len(quats))
	}
	if math.Abs(quats[0].Norm()-1) > 1e-12 {
		t.Errorf("rows must be normalized on load, got norm %v", quats[0].Norm())
	}

	bad := filepath.Join(t.TempDir(), "bad.dat")
	os.WriteFile(bad, []byte("1 0 0\n"), 0o644)
	if _, err := loadQuaternionGrid(bad); err == nil {
		t.Error("expected error for a row with three columns")
	}

	empty := filepath.Join(t.TempDir(), "empty.dat")
	os.WriteFile(empty, []byte("\n\n"), 0o644)
	if _, err := loadQuaternionGrid(empty); err == nil {
		t.Error("expected error for a file with no rows")
	}
}
