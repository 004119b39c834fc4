// Package indexer implements orientation indexing from eta-omega diffraction
// maps: seeding trial orientations from labeled intensity blobs, scoring them
// for completeness, clustering the survivors and averaging each cluster into
// one representative orientation.
package indexer

import (
	"fmt"
	"math"

	"github.com/ovillellas/hexrd/internal/crystal"
	"github.com/ovillellas/hexrd/internal/etaome"
	"github.com/ovillellas/hexrd/internal/monitoring"
	"github.com/ovillellas/hexrd/internal/rotations"
)

// fiberDedupTol collapses fiber samples whose quaternion components agree to
// this tolerance after symmetry reduction.
const fiberDedupTol = 1e-8

// GenerateOrientationFibers seeds trial orientations from the intensity
// blobs of the selected maps. seedIDs index into m.HKLIDs. For every blob
// above threshold it computes the intensity-weighted centroid, converts it
// to a measured scattering vector via the map's angular grid, and emits the
// discrete fiber of orientations mapping the reflection's lattice direction
// onto that vector.
//
// A reflection with no blobs contributes nothing; a blob with a degenerate
// centroid is skipped and reported. The result concatenates fibers per blob,
// then per seed reflection, preserving order.
func GenerateOrientationFibers(m *etaome.EtaOmeMaps, threshold float64, seedIDs []int, fiberNdiv int) ([]rotations.Quat, error) {
	if fiberNdiv < 1 {
		return nil, fmt.Errorf("generate fibers: fiber_ndiv must be >= 1, got %d", fiberNdiv)
	}
	pd := m.PlaneData

	var qfib []rotations.Quat
	for _, seed := range seedIDs {
		if seed < 0 || seed >= len(m.HKLIDs) {
			return nil, fmt.Errorf("generate fibers: seed index %d outside map collection (have %d maps)", seed, len(m.HKLIDs))
		}
		hklID := m.HKLIDs[seed]
		grid := m.Maps[seed]

		labels, nSpots := etaome.Label(grid, threshold)
		coms := etaome.CenterOfMass(grid, labels, nSpots)
		monitoring.Logf("[FiberGenerator] Reflection %s: %d spots above %.3g",
			pd.HKLs[hklID], nSpots, threshold)

		for spot, com := range coms {
			if math.IsNaN(com[0]) || math.IsNaN(com[1]) {
				monitoring.Logf("[FiberGenerator] Reflection %s: skipping spot %d with degenerate centroid",
					pd.HKLs[hklID], spot+1)
				continue
			}
			omeC, etaC := m.BinCenter(com[0], com[1])
			gVec := crystal.AnglesToGVec(pd.TTh[hklID], etaC, omeC)

			fiber := rotations.DiscreteFiber(pd.CVec(hklID), gVec, fiberNdiv, pd.Laue)
			qfib = append(qfib, rotations.UniqueQuats(fiber, fiberDedupTol)...)
		}
	}
	return qfib, nil
}
