package crystal

import (
	"math"

	"github.com/ovillellas/hexrd/internal/rotations"
)

// DetectorGeometry describes the angular coverage of an acquisition: the
// omega interval swept during rotation and the eta arcs not shadowed by the
// detector or beam stop. All angles are radians.
type DetectorGeometry struct {
	OmeMin, OmeMax float64
	EtaRanges      [][2]float64 // empty means full azimuthal coverage
	TThMax         float64      // two-theta cutoff; 0 means no limit
}

// InOmega reports whether ome falls inside the swept rotation interval,
// comparing on the period starting at OmeMin.
func (g DetectorGeometry) InOmega(ome float64) bool {
	return MapAngle(ome, g.OmeMin) <= g.OmeMax
}

// InEta reports whether eta falls inside any accepted azimuthal arc. Arcs
// are (start, end) pairs with end > start; an arc spanning a full turn or
// more accepts everything.
func (g DetectorGeometry) InEta(eta float64) bool {
	if len(g.EtaRanges) == 0 {
		return true
	}
	for _, r := range g.EtaRanges {
		span := r[1] - r[0]
		if span >= 2*math.Pi {
			return true
		}
		if MapAngle(eta, r[0])-r[0] <= span {
			return true
		}
	}
	return false
}

// SimulateGVecs predicts which reflections a grain with the given
// orientation produces inside the detector coverage, returning one hkl id
// per predicted spot. Reflections past the two-theta cutoff, outside the
// omega sweep or outside the accepted eta arcs are dropped.
func SimulateGVecs(pd *PlaneData, geom DetectorGeometry, q rotations.Quat) []int {
	var ids []int
	for _, s := range PredictSpots(pd, q) {
		if geom.TThMax > 0 && pd.TTh[s.HKLID] > geom.TThMax {
			continue
		}
		if !geom.InOmega(s.Ome) {
			continue
		}
		if !geom.InEta(s.Eta) {
			continue
		}
		ids = append(ids, s.HKLID)
	}
	return ids
}
