package indexer

import (
	"math"
	"runtime"
	"sync"

	"github.com/ovillellas/hexrd/internal/crystal"
	"github.com/ovillellas/hexrd/internal/etaome"
	"github.com/ovillellas/hexrd/internal/rotations"
)

// ScoreOptions parameterizes completeness scoring. Angles are radians.
type ScoreOptions struct {
	// EtaRanges are the accepted azimuth arcs; empty means full coverage.
	EtaRanges [][2]float64
	// OmeTol and EtaTol are the matching half-windows around each predicted
	// spot position.
	OmeTol, EtaTol float64
	// OmePeriod is the wrapping interval for rotation angles.
	OmePeriod [2]float64
	// Threshold is the map intensity a bin must exceed to count as a hit.
	Threshold float64
	// NCPUs is the parallelism degree; 0 selects all cores.
	NCPUs int
}

// CompletenessScorer scores trial orientations against eta-omega maps,
// returning one completeness fraction in [0, 1] per orientation, in input
// order.
type CompletenessScorer interface {
	Score(quats []rotations.Quat, m *etaome.EtaOmeMaps, opts ScoreOptions) ([]float64, error)
}

// PaintGridScorer is the built-in completeness scorer: for every trial
// orientation it predicts the (omega, eta) positions of all reflections
// present in the map collection and reports the fraction whose neighborhood
// in the corresponding map exceeds the intensity threshold.
//
// Orientations are scored independently, so the work is spread over a worker
// pool; results are positionally assigned and deterministic regardless of
// parallelism.
type PaintGridScorer struct{}

// Score implements CompletenessScorer.
func (PaintGridScorer) Score(quats []rotations.Quat, m *etaome.EtaOmeMaps, opts ScoreOptions) ([]float64, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	nWorkers := opts.NCPUs
	if nWorkers <= 0 {
		nWorkers = runtime.NumCPU()
	}
	if nWorkers > len(quats) {
		nWorkers = len(quats)
	}

	compl := make([]float64, len(quats))
	if len(quats) == 0 {
		return compl, nil
	}

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < nWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				compl[i] = scoreOne(quats[i], m, opts)
			}
		}()
	}
	for i := range quats {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return compl, nil
}

func scoreOne(q rotations.Quat, m *etaome.EtaOmeMaps, opts ScoreOptions) float64 {
	pd := m.PlaneData
	predicted, hits := 0, 0
	for _, s := range crystal.PredictSpots(pd, q) {
		mapIdx := m.MapIndex(s.HKLID)
		if mapIdx < 0 {
			continue
		}
		if !etaAllowed(s.Eta, opts.EtaRanges) {
			continue
		}
		start := m.OmeEdges[0]
		if opts.OmePeriod[1] > opts.OmePeriod[0] {
			start = opts.OmePeriod[0]
		}
		ome := crystal.MapAngle(s.Ome, start)
		if ome < m.OmeEdges[0] || ome > m.OmeEdges[len(m.OmeEdges)-1] {
			continue
		}
		predicted++
		if windowAboveThreshold(m, mapIdx, ome, s.Eta, opts) {
			hits++
		}
	}
	if predicted == 0 {
		return 0
	}
	return float64(hits) / float64(predicted)
}

func etaAllowed(eta float64, ranges [][2]float64) bool {
	if len(ranges) == 0 {
		return true
	}
	for _, r := range ranges {
		span := r[1] - r[0]
		if span >= 2*math.Pi {
			return true
		}
		if crystal.MapAngle(eta, r[0])-r[0] <= span {
			return true
		}
	}
	return false
}

// windowAboveThreshold checks the map bins within the (omega, eta) tolerance
// window around a predicted spot. The eta axis wraps when the grid covers
// the full circle.
func windowAboveThreshold(m *etaome.EtaOmeMaps, mapIdx int, ome, eta float64, opts ScoreOptions) bool {
	grid := m.Maps[mapIdx]
	rows, cols := grid.Dims()
	dOme, dEta := m.DeltaOme(), m.DeltaEta()

	r0 := int(math.Floor((ome - opts.OmeTol - m.OmeEdges[0]) / dOme))
	r1 := int(math.Floor((ome + opts.OmeTol - m.OmeEdges[0]) / dOme))
	if r0 < 0 {
		r0 = 0
	}
	if r1 >= rows {
		r1 = rows - 1
	}

	etaWrapped := crystal.MapAngle(eta, m.EtaEdges[0])
	c0 := int(math.Floor((etaWrapped - opts.EtaTol - m.EtaEdges[0]) / dEta))
	c1 := int(math.Floor((etaWrapped + opts.EtaTol - m.EtaEdges[0]) / dEta))

	etaSpan := m.EtaEdges[len(m.EtaEdges)-1] - m.EtaEdges[0]
	fullCircle := math.Abs(etaSpan-2*math.Pi) < 1e-9

	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			cc := c
			if fullCircle {
				cc = ((c % cols) + cols) % cols
			} else if c < 0 || c >= cols {
				continue
			}
			if grid.At(r, cc) > opts.Threshold {
				return true
			}
		}
	}
	return false
}
