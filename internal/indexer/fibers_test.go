package indexer

import (
	"math"
	"testing"

	"github.com/ovillellas/hexrd/internal/crystal"
)

func TestGenerateOrientationFibersFromBlob(t *testing.T) {
	m := makeMaps(t)
	// one 2x2 blob in the map of the first seed reflection
	m.Maps[0].Set(10, 20, 5)
	m.Maps[0].Set(10, 21, 5)
	m.Maps[0].Set(11, 20, 5)
	m.Maps[0].Set(11, 21, 5)

	qfib, err := GenerateOrientationFibers(m, 1, []int{0}, 60)
	if err != nil {
		t.Fatalf("GenerateOrientationFibers: %v", err)
	}
	if len(qfib) == 0 {
		t.Fatal("blob produced no fiber orientations")
	}

	// every fiber member must map a symmetry equivalent of the seed's
	// lattice direction onto the scattering vector of the blob centroid
	pd := m.PlaneData
	hklID := m.HKLIDs[0]
	omeC, etaC := m.BinCenter(10.5, 20.5)
	gVec := crystal.AnglesToGVec(pd.TTh[hklID], etaC, omeC)

	for _, q := range qfib {
		if math.Abs(q.Norm()-1) > 1e-9 {
			t.Fatalf("fiber orientation not unit: %v", q)
		}
		best := math.Inf(1)
		for _, c := range pd.EquivDirections(hklID) {
			v := q.Rotate(c)
			d := math.Hypot(math.Hypot(v[0]-gVec[0], v[1]-gVec[1]), v[2]-gVec[2])
			if d < best {
				best = d
			}
		}
		if best > 1e-9 {
			t.Fatalf("fiber orientation misses the scattering vector by %v", best)
		}
	}
}

func TestGenerateOrientationFibersTwoBlobsConcatenate(t *testing.T) {
	m := makeMaps(t)
	m.Maps[0].Set(5, 10, 5)
	m.Maps[0].Set(25, 50, 5)

	one, err := GenerateOrientationFibers(m, 1, []int{0}, 30)
	if err != nil {
		t.Fatalf("GenerateOrientationFibers: %v", err)
	}

	m2 := makeMaps(t)
	m2.Maps[0].Set(5, 10, 5)
	two, err := GenerateOrientationFibers(m2, 1, []int{0}, 30)
	if err != nil {
		t.Fatalf("GenerateOrientationFibers: %v", err)
	}

	if len(one) <= len(two) {
		t.Errorf("two blobs produced %d orientations, one blob %d", len(one), len(two))
	}
}

func TestGenerateOrientationFibersNoBlobs(t *testing.T) {
	m := makeMaps(t)
	qfib, err := GenerateOrientationFibers(m, 1, []int{0, 1}, 60)
	if err != nil {
		t.Fatalf("GenerateOrientationFibers: %v", err)
	}
	if len(qfib) != 0 {
		t.Errorf("empty maps produced %d orientations", len(qfib))
	}
}

func TestGenerateOrientationFibersDegenerateCentroid(t *testing.T) {
	m := makeMaps(t)
	// a negative threshold labels the all-zero grid as one blob whose total
	// weight is zero; it must be skipped, not crash or contribute
	qfib, err := GenerateOrientationFibers(m, -1, []int{0}, 60)
	if err != nil {
		t.Fatalf("GenerateOrientationFibers: %v", err)
	}
	if len(qfib) != 0 {
		t.Errorf("degenerate blob contributed %d orientations", len(qfib))
	}
}

func TestGenerateOrientationFibersBadInputs(t *testing.T) {
	m := makeMaps(t)
	if _, err := GenerateOrientationFibers(m, 1, []int{5}, 60); err == nil {
		t.Error("expected error for seed index outside map collection")
	}
	if _, err := GenerateOrientationFibers(m, 1, []int{0}, 0); err == nil {
		t.Error("expected error for non-positive fiber_ndiv")
	}
}
