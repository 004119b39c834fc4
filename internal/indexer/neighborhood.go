package indexer

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ovillellas/hexrd/internal/crystal"
	"github.com/ovillellas/hexrd/internal/monitoring"
	"github.com/ovillellas/hexrd/internal/rotations"
)

// DefaultNeighborhoodTrials is the number of random orientations simulated
// by the neighborhood estimator.
const DefaultNeighborhoodTrials = 100

// NeighborhoodOptions parameterizes EstimateNeighborhood.
type NeighborhoodOptions struct {
	// NTrials is the number of simulated random grains; 0 selects
	// DefaultNeighborhoodTrials.
	NTrials int
	// CompletenessThreshold scales the expected seed reflection count into a
	// usable minimum neighborhood size.
	CompletenessThreshold float64
	// RNG drives the random orientation draw; inject a seeded source for
	// reproducible simulations. Nil selects a time-seeded source.
	RNG *rand.Rand
}

// NeighborhoodEstimate is the result of the Monte Carlo simulation.
type NeighborhoodEstimate struct {
	// MinSamples feeds the clustering dispatch; never below 2 so density
	// clustering stays well defined.
	MinSamples int
	// MeanReflPerGrain is the rounded mean number of reflections a random
	// grain produces inside the detector coverage, reported for diagnostics.
	MeanReflPerGrain int
}

// EstimateNeighborhood simulates the diffraction of uniformly random
// orientations to estimate how many fiber samples a real grain should
// contribute, which sets the density clustering neighborhood size. seedIDs
// are reflection table ids (the same ids the fibers were seeded from).
func EstimateNeighborhood(pd *crystal.PlaneData, geom crystal.DetectorGeometry, seedIDs []int, opts NeighborhoodOptions) NeighborhoodEstimate {
	n := opts.NTrials
	if n <= 0 {
		n = DefaultNeighborhoodTrials
	}
	rng := opts.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	isSeed := make(map[int]bool, len(seedIDs))
	for _, id := range seedIDs {
		isSeed[id] = true
	}

	reflPerGrain := make([]float64, n)
	seedReflPerGrain := make([]float64, n)
	for i, q := range rotations.RandomQuats(n, rng) {
		ids := crystal.SimulateGVecs(pd, geom, q)
		reflPerGrain[i] = float64(len(ids))
		for _, id := range ids {
			if isSeed[id] {
				seedReflPerGrain[i]++
			}
		}
	}

	// A fractional neighborhood size still excludes the next-lower integer
	// point count, so round up rather than truncate.
	minSamples := int(math.Ceil(opts.CompletenessThreshold * math.Floor(stat.Mean(seedReflPerGrain, nil))))
	if minSamples < 2 {
		minSamples = 2
	}
	meanRPG := int(math.Round(stat.Mean(reflPerGrain, nil)))

	monitoring.Logf("[Neighborhood] Mean reflections per grain: %d (from %d trials)", meanRPG, n)
	monitoring.Logf("[Neighborhood] Neighborhood size estimate: %d points", minSamples)
	return NeighborhoodEstimate{MinSamples: minSamples, MeanReflPerGrain: meanRPG}
}
