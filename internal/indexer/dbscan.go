package indexer

// distFunc returns the distance between points i and j of the data set being
// clustered. Implementations must be symmetric.
type distFunc func(i, j int) float64

// dbscanLabels performs density-based clustering over n points with an
// arbitrary metric. It returns one label per point: 0 for noise, positive
// ids for clusters. minSamples counts the point itself, matching the usual
// DBSCAN convention.
func dbscanLabels(n int, eps float64, minSamples int, dist distFunc) []int {
	const (
		unvisited = 0
		noise     = -1
	)
	labels := make([]int, n)
	clusterID := 0

	regionQuery := func(i int) []int {
		var neighbors []int
		for j := 0; j < n; j++ {
			if dist(i, j) <= eps {
				neighbors = append(neighbors, j)
			}
		}
		return neighbors
	}

	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		neighbors := regionQuery(i)
		if len(neighbors) < minSamples {
			labels[i] = noise
			continue
		}

		clusterID++
		labels[i] = clusterID
		// queue-based expansion; neighbors grows as core points are found
		for j := 0; j < len(neighbors); j++ {
			idx := neighbors[j]
			if labels[idx] == noise {
				labels[idx] = clusterID // noise becomes a border point
			}
			if labels[idx] != unvisited {
				continue
			}
			labels[idx] = clusterID
			more := regionQuery(idx)
			if len(more) >= minSamples {
				neighbors = append(neighbors, more...)
			}
		}
	}

	for i, l := range labels {
		if l == noise {
			labels[i] = 0
		}
	}
	return labels
}

// singleLinkageLabels performs agglomerative clustering with single linkage
// and a flat distance cutoff. Cutting a single-linkage dendrogram at the
// cutoff is equivalent to the connected components of the graph joining
// every pair closer than the cutoff, which is how it is computed here. Every
// point receives a positive cluster id; there is no noise label.
func singleLinkageLabels(n int, cutoff float64, dist distFunc) []int {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if dist(i, j) <= cutoff {
				union(i, j)
			}
		}
	}

	labels := make([]int, n)
	next := 0
	roots := make(map[int]int, n)
	for i := 0; i < n; i++ {
		r := find(i)
		id, ok := roots[r]
		if !ok {
			next++
			id = next
			roots[r] = id
		}
		labels[i] = id
	}
	return labels
}
