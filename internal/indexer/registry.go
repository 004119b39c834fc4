package indexer

import (
	"fmt"
	"math"
	"sort"

	"github.com/ovillellas/hexrd/internal/rotations"
)

// ClusterFunc groups orientations closer than radiusDeg degrees of
// misorientation, treating antipodal and crystal symmetry equivalence as
// identity under its metric. It returns one label per orientation: positive
// cluster ids (not necessarily contiguous), 0 for noise where the algorithm
// supports it.
type ClusterFunc func(qfib []rotations.Quat, sym rotations.LaueGroup, radiusDeg float64, minSamples int) ([]int, error)

// Strategy describes one registered clustering algorithm. Available is a
// capability query evaluated at dispatch time; a strategy whose backing
// implementation is not usable in this build reports false and dispatch
// substitutes Fallback (when declared).
type Strategy struct {
	Name      string
	Fallback  string // empty means no fallback
	Available func() bool
	Cluster   ClusterFunc
}

// UnavailableError signals that a strategy's backend cannot run. Dispatch
// recovers from it by substituting the declared fallback; it is fatal only
// when the fallback chain is exhausted.
type UnavailableError struct {
	Strategy string
	Reason   string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("clustering strategy %q unavailable: %s", e.Strategy, e.Reason)
}

// Registry is an immutable name -> strategy table built once at startup.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds a registry from a strategy table. A duplicate name is a
// programming error and panics; this fires at process start for the built-in
// table, never mid-run.
func NewRegistry(strategies []Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		if _, dup := r.strategies[s.Name]; dup {
			panic(fmt.Sprintf("indexer: duplicate clustering strategy %q", s.Name))
		}
		if s.Available == nil {
			s.Available = func() bool { return true }
		}
		r.strategies[s.Name] = s
	}
	return r
}

// Lookup returns the named strategy.
func (r *Registry) Lookup(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Names lists the registered strategy names in sorted order. The YAML layer
// uses this to validate the configured algorithm.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in strategies. It is constructed at load
// time and treated as read-only.
var DefaultRegistry = NewRegistry([]Strategy{
	{Name: "qim-dbscan", Cluster: clusterQuatImDBSCAN},
	{Name: "homochoric-dbscan", Fallback: "sym-dbscan", Cluster: clusterHomochoricDBSCAN},
	{Name: "sym-dbscan", Fallback: "fclusterdata", Cluster: clusterSymDBSCAN},
	{Name: "fclusterdata", Cluster: clusterFcluster},
	{Name: "qim-fclusterdata", Fallback: "fclusterdata", Cluster: clusterQuatImFcluster},
})

// GetSupportedClusteringAlgorithms lists the algorithms accepted in
// configuration files.
func GetSupportedClusteringAlgorithms() []string {
	return DefaultRegistry.Names()
}

func radiansOf(deg float64) float64 {
	return deg * math.Pi / 180
}

// quatImPoints projects orientations to the imaginary parts of their
// non-negative-hemisphere representatives. Euclidean distance between two
// such projections is sin of half the rotation between them, which makes
// eps = sin(radius/2) the consistent neighborhood size.
func quatImPoints(qfib []rotations.Quat) [][3]float64 {
	pts := make([][3]float64, len(qfib))
	for i, q := range qfib {
		p := q.FixSign()
		pts[i] = [3]float64{p[1], p[2], p[3]}
	}
	return pts
}

func euclidean3(pts [][3]float64) distFunc {
	return func(i, j int) float64 {
		dx := pts[i][0] - pts[j][0]
		dy := pts[i][1] - pts[j][1]
		dz := pts[i][2] - pts[j][2]
		return math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
}

// clusterQuatImDBSCAN: density clustering on the imaginary quaternion
// projection with eps = sin(radius/2).
func clusterQuatImDBSCAN(qfib []rotations.Quat, _ rotations.LaueGroup, radiusDeg float64, minSamples int) ([]int, error) {
	pts := quatImPoints(qfib)
	eps := math.Sin(0.5 * radiansOf(radiusDeg))
	return dbscanLabels(len(qfib), eps, minSamples, euclidean3(pts)), nil
}

// clusterHomochoricDBSCAN: density clustering in homochoric (equal-volume)
// coordinates with eps = radius in radians.
func clusterHomochoricDBSCAN(qfib []rotations.Quat, _ rotations.LaueGroup, radiusDeg float64, minSamples int) ([]int, error) {
	pts := make([][3]float64, len(qfib))
	for i, q := range qfib {
		pts[i] = q.Homochoric()
	}
	return dbscanLabels(len(qfib), radiansOf(radiusDeg), minSamples, euclidean3(pts)), nil
}

// misorientationMatrix precomputes the symmetry-aware pairwise distances.
func misorientationMatrix(qfib []rotations.Quat, sym rotations.LaueGroup) distFunc {
	n := len(qfib)
	d := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := rotations.Misorientation(qfib[i], qfib[j], sym)
			d[i*n+j] = v
			d[j*n+i] = v
		}
	}
	return func(i, j int) float64 { return d[i*n+j] }
}

// clusterSymDBSCAN: density clustering on the precomputed crystallographic
// misorientation matrix with eps = radius in radians.
func clusterSymDBSCAN(qfib []rotations.Quat, sym rotations.LaueGroup, radiusDeg float64, minSamples int) ([]int, error) {
	dist := misorientationMatrix(qfib, sym)
	return dbscanLabels(len(qfib), radiansOf(radiusDeg), minSamples, dist), nil
}

// clusterFcluster: hierarchical single-linkage clustering with the
// symmetry-aware misorientation metric, cut flat at radius radians. Assigns
// every orientation to a cluster (no noise) and ignores minSamples.
func clusterFcluster(qfib []rotations.Quat, sym rotations.LaueGroup, radiusDeg float64, _ int) ([]int, error) {
	dist := misorientationMatrix(qfib, sym)
	return singleLinkageLabels(len(qfib), radiansOf(radiusDeg), dist), nil
}

// clusterQuatImFcluster: hierarchical single-linkage clustering on the
// imaginary quaternion projection, cut flat at sin(radius/2).
func clusterQuatImFcluster(qfib []rotations.Quat, _ rotations.LaueGroup, radiusDeg float64, _ int) ([]int, error) {
	pts := quatImPoints(qfib)
	cutoff := math.Sin(0.5 * radiansOf(radiusDeg))
	return singleLinkageLabels(len(qfib), cutoff, euclidean3(pts)), nil
}
