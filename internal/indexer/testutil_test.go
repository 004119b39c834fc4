package indexer

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/ovillellas/hexrd/internal/crystal"
	"github.com/ovillellas/hexrd/internal/etaome"
	"github.com/ovillellas/hexrd/internal/rotations"
)

func makePlaneData(t *testing.T) *crystal.PlaneData {
	t.Helper()
	pd, err := crystal.NewPlaneData(
		[]crystal.HKL{{H: 1}, {H: 1, K: 1}, {H: 1, K: 1, L: 1}},
		[]float64{0.35, 0.50, 0.62},
		mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}),
		rotations.Cubic,
		1.54,
	)
	if err != nil {
		t.Fatalf("NewPlaneData: %v", err)
	}
	return pd
}

// makeMaps builds an empty full-circle map collection over the first two
// reflections: omega in [-pi, pi) with 36 bins, eta likewise with 72 bins.
func makeMaps(t *testing.T) *etaome.EtaOmeMaps {
	t.Helper()
	m := &etaome.EtaOmeMaps{
		PlaneData: makePlaneData(t),
		HKLIDs:    []int{0, 1},
		Maps:      []*mat.Dense{mat.NewDense(36, 72, nil), mat.NewDense(36, 72, nil)},
		OmeEdges:  binEdges(-math.Pi, math.Pi, 36),
		EtaEdges:  binEdges(-math.Pi, math.Pi, 72),
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("map fixture invalid: %v", err)
	}
	return m
}

func binEdges(lo, hi float64, n int) []float64 {
	out := make([]float64, n+1)
	step := (hi - lo) / float64(n)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// paintOrientation marks every predicted spot of q in the map collection with
// the given intensity, so q scores a completeness of 1 against the result.
func paintOrientation(m *etaome.EtaOmeMaps, q rotations.Quat, intensity float64) {
	for _, s := range crystal.PredictSpots(m.PlaneData, q) {
		idx := m.MapIndex(s.HKLID)
		if idx < 0 {
			continue
		}
		r := int(math.Floor((crystal.MapAngle(s.Ome, m.OmeEdges[0]) - m.OmeEdges[0]) / m.DeltaOme()))
		c := int(math.Floor((crystal.MapAngle(s.Eta, m.EtaEdges[0]) - m.EtaEdges[0]) / m.DeltaEta()))
		rows, cols := m.Maps[idx].Dims()
		if r >= rows {
			r = rows - 1
		}
		if c >= cols {
			c = cols - 1
		}
		m.Maps[idx].Set(r, c, intensity)
	}
}

// twoGroups returns ten orientations forming two tight bundles 30 degrees
// apart about z, five members each, with sub-degree internal spread.
func twoGroups() []rotations.Quat {
	zAxis := [3]float64{0, 0, 1}
	var quats []rotations.Quat
	for _, base := range []float64{0, 30} {
		for i := 0; i < 5; i++ {
			angle := (base + 0.1*float64(i)) * math.Pi / 180
			quats = append(quats, rotations.FromAngleAxis(angle, zAxis))
		}
	}
	return quats
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func assertTwoGroupLabels(t *testing.T, labels []int) {
	t.Helper()
	if len(labels) != 10 {
		t.Fatalf("got %d labels, want 10", len(labels))
	}
	for i := 1; i < 5; i++ {
		if labels[i] != labels[0] {
			t.Fatalf("first bundle split: %v", labels)
		}
		if labels[5+i] != labels[5] {
			t.Fatalf("second bundle split: %v", labels)
		}
	}
	if labels[0] == labels[5] {
		t.Fatalf("bundles merged: %v", labels)
	}
	if labels[0] <= 0 || labels[5] <= 0 {
		t.Fatalf("bundle labeled as noise: %v", labels)
	}
}
