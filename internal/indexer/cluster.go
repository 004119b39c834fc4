package indexer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ovillellas/hexrd/internal/monitoring"
	"github.com/ovillellas/hexrd/internal/rotations"
)

// ClusterOptions parameterizes one clustering dispatch.
type ClusterOptions struct {
	// Algorithm names the strategy to try first.
	Algorithm string
	// RadiusDeg is the misorientation radius in degrees.
	RadiusDeg float64
	// MinCompleteness filters the orientation pool before clustering.
	MinCompleteness float64
	// MinSamples is the neighborhood size for density strategies.
	MinSamples int
	// Registry overrides the strategy table; nil selects DefaultRegistry.
	Registry *Registry
}

// ClusterResult is the outcome of RunCluster.
type ClusterResult struct {
	// Centroids holds one averaged orientation per cluster, ordered by
	// ascending cluster id.
	Centroids []rotations.Quat
	// Assignment labels each selected orientation: 0 is noise, positive ids
	// are clusters. Ids need not be contiguous.
	Assignment []int
	// Selected holds the pool indices of the orientations that passed the
	// completeness filter, in pool order.
	Selected []int
	// Algorithm is the strategy that actually ran; empty when clustering was
	// bypassed (zero or one qualifying orientation).
	Algorithm string
	// Substituted is true when at least one fallback substitution occurred.
	Substituted bool
}

// RunCluster reduces a scored orientation pool to cluster centroids.
//
// Orientations with completeness strictly above MinCompleteness are fed to
// the configured strategy. Zero qualifying orientations yield an empty
// result; exactly one bypasses the algorithm and becomes its own cluster.
// When a strategy reports itself unavailable its declared fallback is
// substituted and the substitution is logged; exhausting the chain, or
// naming an unknown strategy, is a fatal error reporting the attempted
// chain.
func RunCluster(compl []float64, qfib []rotations.Quat, sym rotations.LaueGroup, opts ClusterOptions) (*ClusterResult, error) {
	if len(compl) != len(qfib) {
		return nil, fmt.Errorf("run cluster: %d completeness values for %d orientations", len(compl), len(qfib))
	}
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry
	}

	start := time.Now()

	var selected []int
	for i, c := range compl {
		if c > opts.MinCompleteness {
			selected = append(selected, i)
		}
	}

	res := &ClusterResult{Selected: selected}
	switch len(selected) {
	case 0:
		monitoring.Logf("[RunCluster] No orientations above %.1f%% completeness; nothing to cluster",
			100*opts.MinCompleteness)
		return res, nil
	case 1:
		// short circuit: a single orientation is its own cluster
		res.Centroids = []rotations.Quat{qfib[selected[0]].FixSign()}
		res.Assignment = []int{1}
		return res, nil
	}

	sub := make([]rotations.Quat, len(selected))
	for i, idx := range selected {
		sub[i] = qfib[idx]
	}
	monitoring.Logf("[RunCluster] Feeding %d orientations above %.1f%% to clustering",
		len(sub), 100*opts.MinCompleteness)

	assignment, used, substituted, err := dispatch(reg, opts.Algorithm, sub, sym, opts.RadiusDeg, opts.MinSamples)
	if err != nil {
		return nil, err
	}
	res.Assignment = assignment
	res.Algorithm = used
	res.Substituted = substituted

	monitoring.Logf("[RunCluster] Clustering done in %v, computing centroids", time.Since(start))
	res.Centroids = ComputeCentroids(sub, assignment, sym)
	monitoring.Logf("[RunCluster] Found %d orientation clusters with >%.1f%% completeness and %.2f deg radius",
		len(res.Centroids), 100*opts.MinCompleteness, opts.RadiusDeg)
	return res, nil
}

// dispatch walks the fallback chain starting at algorithm until a strategy
// runs or the chain dead-ends.
func dispatch(reg *Registry, algorithm string, qfib []rotations.Quat, sym rotations.LaueGroup, radiusDeg float64, minSamples int) (labels []int, used string, substituted bool, err error) {
	var attempted []string
	tried := make(map[string]bool)
	name := algorithm
	for {
		if tried[name] {
			return nil, "", substituted, fmt.Errorf(
				"run cluster: fallback chain revisits %q (attempted chain: %s)",
				name, strings.Join(attempted, " -> "))
		}
		tried[name] = true
		attempted = append(attempted, name)
		s, ok := reg.Lookup(name)
		if !ok {
			return nil, "", substituted, fmt.Errorf(
				"run cluster: clustering %q not recognized (attempted chain: %s; supported: %s)",
				name, strings.Join(attempted, " -> "), strings.Join(reg.Names(), ", "))
		}

		var unavailable *UnavailableError
		if !s.Available() {
			unavailable = &UnavailableError{Strategy: name, Reason: "backend not present"}
		} else {
			monitoring.Logf("[RunCluster] Trying %q over %d orientations", name, len(qfib))
			labels, err = s.Cluster(qfib, sym, radiusDeg, minSamples)
			if err == nil {
				return labels, name, substituted, nil
			}
			if !errors.As(err, &unavailable) {
				return nil, "", substituted, fmt.Errorf("run cluster: strategy %q: %w", name, err)
			}
		}

		// unavailable: substitute the declared fallback, observably
		if s.Fallback == "" {
			return nil, "", substituted, fmt.Errorf(
				"run cluster: %s; no fallback declared (attempted chain: %s)",
				unavailable.Error(), strings.Join(attempted, " -> "))
		}
		monitoring.Logf("[RunCluster] %s; falling back to %q", unavailable.Error(), s.Fallback)
		substituted = true
		name = s.Fallback
	}
}

// ComputeCentroids averages the members of each cluster into one orientation
// using symmetry-aware quaternion averaging. Cluster id 0 (noise) is
// ignored; output order follows ascending cluster id. A single-member
// cluster averages to that member.
func ComputeCentroids(qfib []rotations.Quat, assignment []int, sym rotations.LaueGroup) []rotations.Quat {
	seen := make(map[int]bool)
	var ids []int
	for _, id := range assignment {
		if id > 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	centroids := make([]rotations.Quat, 0, len(ids))
	for _, id := range ids {
		var members []rotations.Quat
		for i, a := range assignment {
			if a == id {
				members = append(members, qfib[i])
			}
		}
		centroids = append(centroids, rotations.QuatAverage(members, sym))
	}
	return centroids
}
