package indexer

import (
	"math"
	"sort"
	"testing"

	"github.com/ovillellas/hexrd/internal/rotations"
)

func TestBuiltinStrategiesSeparateTwoGroups(t *testing.T) {
	quats := twoGroups()
	for _, name := range GetSupportedClusteringAlgorithms() {
		t.Run(name, func(t *testing.T) {
			s, ok := DefaultRegistry.Lookup(name)
			if !ok {
				t.Fatalf("strategy %q not registered", name)
			}
			labels, err := s.Cluster(quats, rotations.Cubic, 5.0, 2)
			if err != nil {
				t.Fatalf("Cluster: %v", err)
			}
			assertTwoGroupLabels(t, labels)
		})
	}
}

// the symmetry-aware strategies must treat crystallographically equivalent
// orientations as identical
func TestSymStrategiesMergeEquivalents(t *testing.T) {
	zAxis := [3]float64{0, 0, 1}
	base := rotations.FromAngleAxis(10*math.Pi/180, zAxis)
	// 100 degrees about z is a cubic 90-degree operator away from 10 degrees
	equiv := rotations.FromAngleAxis(100*math.Pi/180, zAxis)
	far := rotations.FromAngleAxis(45*math.Pi/180, zAxis)
	quats := []rotations.Quat{base, equiv, far}

	for _, name := range []string{"sym-dbscan", "fclusterdata"} {
		s, _ := DefaultRegistry.Lookup(name)
		labels, err := s.Cluster(quats, rotations.Cubic, 5.0, 2)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if labels[0] != labels[1] {
			t.Errorf("%s: equivalent orientations split: %v", name, labels)
		}
		if labels[2] == labels[0] && labels[2] != 0 {
			t.Errorf("%s: distant orientation merged: %v", name, labels)
		}
	}
}

// the quaternion projection strategies must treat q and -q as identical
func TestQuatImStrategiesMergeAntipodes(t *testing.T) {
	q := rotations.FromAngleAxis(20*math.Pi/180, [3]float64{1, 1, 0})
	quats := []rotations.Quat{q, q.Neg()}

	for _, name := range []string{"qim-dbscan", "qim-fclusterdata"} {
		s, _ := DefaultRegistry.Lookup(name)
		labels, err := s.Cluster(quats, rotations.Cubic, 1.0, 2)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if labels[0] != labels[1] || labels[0] <= 0 {
			t.Errorf("%s: antipodal pair split: %v", name, labels)
		}
	}
}

func TestFclusterIgnoresMinSamples(t *testing.T) {
	// a lone orientation can never satisfy a density minimum, yet hierarchical
	// clustering still assigns it a cluster
	quats := []rotations.Quat{
		rotations.Identity,
		rotations.FromAngleAxis(40*math.Pi/180, [3]float64{0, 0, 1}),
	}
	s, _ := DefaultRegistry.Lookup("fclusterdata")
	labels, err := s.Cluster(quats, rotations.Cubic, 5.0, 100)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	for i, l := range labels {
		if l <= 0 {
			t.Errorf("orientation %d labeled %d, want a positive cluster id", i, l)
		}
	}
}

func TestDefaultRegistryFallbackChains(t *testing.T) {
	want := map[string]string{
		"qim-dbscan":        "",
		"homochoric-dbscan": "sym-dbscan",
		"sym-dbscan":        "fclusterdata",
		"fclusterdata":      "",
		"qim-fclusterdata":  "fclusterdata",
	}
	for name, fb := range want {
		s, ok := DefaultRegistry.Lookup(name)
		if !ok {
			t.Errorf("strategy %q missing", name)
			continue
		}
		if s.Fallback != fb {
			t.Errorf("strategy %q fallback = %q, want %q", name, s.Fallback, fb)
		}
		if !s.Available() {
			t.Errorf("built-in strategy %q reports unavailable", name)
		}
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	names := GetSupportedClusteringAlgorithms()
	if len(names) != 5 {
		t.Fatalf("got %d algorithms, want 5: %v", len(names), names)
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("names not sorted: %v", names)
	}
}

func TestNewRegistryDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate strategy name")
		}
	}()
	NewRegistry([]Strategy{
		{Name: "dup", Cluster: clusterFcluster},
		{Name: "dup", Cluster: clusterFcluster},
	})
}
