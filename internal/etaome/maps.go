// Package etaome holds the per-reflection eta-omega intensity maps that the
// orientation indexer consumes: one 2D histogram of diffraction intensity per
// seed reflection, binned over the rotation (omega) and azimuthal (eta)
// angles, together with blob labeling, a SQLite-backed cache and plotting
// diagnostics.
package etaome

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ovillellas/hexrd/internal/crystal"
)

// edgeTol is the relative tolerance when checking uniform bin spacing.
const edgeTol = 1e-9

// EtaOmeMaps is a read-only collection of eta-omega intensity maps sharing
// one angular grid. Maps[i] holds the histogram of reflection HKLIDs[i],
// with rows indexed by omega bin and columns by eta bin.
type EtaOmeMaps struct {
	PlaneData *crystal.PlaneData
	HKLIDs    []int
	Maps      []*mat.Dense
	OmeEdges  []float64 // len = omega bins + 1, radians, uniform increasing
	EtaEdges  []float64 // len = eta bins + 1, radians, uniform increasing
}

// DeltaOme returns the omega bin width.
func (m *EtaOmeMaps) DeltaOme() float64 {
	return m.OmeEdges[1] - m.OmeEdges[0]
}

// DeltaEta returns the eta bin width.
func (m *EtaOmeMaps) DeltaEta() float64 {
	return m.EtaEdges[1] - m.EtaEdges[0]
}

// OmeRange returns the full swept omega interval.
func (m *EtaOmeMaps) OmeRange() (float64, float64) {
	return m.OmeEdges[0], m.OmeEdges[len(m.OmeEdges)-1]
}

// BinCenter converts fractional (omega bin, eta bin) coordinates to angles
// using the cell-center convention.
func (m *EtaOmeMaps) BinCenter(omeBin, etaBin float64) (ome, eta float64) {
	ome = m.OmeEdges[0] + (0.5+omeBin)*m.DeltaOme()
	eta = m.EtaEdges[0] + (0.5+etaBin)*m.DeltaEta()
	return ome, eta
}

// MapIndex returns the position of reflection id within HKLIDs, or -1.
func (m *EtaOmeMaps) MapIndex(hklID int) int {
	for i, id := range m.HKLIDs {
		if id == hklID {
			return i
		}
	}
	return -1
}

// Validate checks the structural invariants: consistent dimensions and
// uniformly spaced, strictly increasing bin edges on both axes.
func (m *EtaOmeMaps) Validate() error {
	if m.PlaneData == nil {
		return fmt.Errorf("eta-ome maps: missing plane data")
	}
	if len(m.Maps) != len(m.HKLIDs) {
		return fmt.Errorf("eta-ome maps: %d maps but %d hkl ids", len(m.Maps), len(m.HKLIDs))
	}
	if err := checkEdges("omega", m.OmeEdges); err != nil {
		return err
	}
	if err := checkEdges("eta", m.EtaEdges); err != nil {
		return err
	}
	nOme, nEta := len(m.OmeEdges)-1, len(m.EtaEdges)-1
	for i, g := range m.Maps {
		r, c := g.Dims()
		if r != nOme || c != nEta {
			return fmt.Errorf("eta-ome maps: map %d is %dx%d, grid is %dx%d", i, r, c, nOme, nEta)
		}
	}
	for _, id := range m.HKLIDs {
		if id < 0 || id >= m.PlaneData.NumHKLs() {
			return fmt.Errorf("eta-ome maps: hkl id %d outside reflection table", id)
		}
	}
	return nil
}

func checkEdges(axis string, edges []float64) error {
	if len(edges) < 2 {
		return fmt.Errorf("eta-ome maps: %s axis needs at least one bin", axis)
	}
	step := edges[1] - edges[0]
	if step <= 0 {
		return fmt.Errorf("eta-ome maps: %s edges not increasing", axis)
	}
	for i := 1; i < len(edges); i++ {
		d := edges[i] - edges[i-1]
		if math.Abs(d-step) > edgeTol*math.Max(1, math.Abs(step)) {
			return fmt.Errorf("eta-ome maps: %s edges not uniform at index %d", axis, i)
		}
	}
	return nil
}
