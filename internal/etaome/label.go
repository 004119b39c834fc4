package etaome

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Label assigns connected component ids to the cells of grid whose intensity
// exceeds threshold, using 8-connectivity. It returns a row-major label
// array (0 = background, components numbered from 1) and the component
// count.
func Label(grid *mat.Dense, threshold float64) ([]int, int) {
	rows, cols := grid.Dims()
	labels := make([]int, rows*cols)
	next := 0

	var stack [][2]int
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if labels[r*cols+c] != 0 || grid.At(r, c) <= threshold {
				continue
			}
			next++
			labels[r*cols+c] = next
			stack = append(stack[:0], [2]int{r, c})
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for dr := -1; dr <= 1; dr++ {
					for dc := -1; dc <= 1; dc++ {
						nr, nc := p[0]+dr, p[1]+dc
						if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
							continue
						}
						if labels[nr*cols+nc] != 0 || grid.At(nr, nc) <= threshold {
							continue
						}
						labels[nr*cols+nc] = next
						stack = append(stack, [2]int{nr, nc})
					}
				}
			}
		}
	}
	return labels, next
}

// CenterOfMass computes the intensity-weighted centroid of each labeled
// component in fractional (row, col) bin coordinates. Component i (1-based)
// lands in slot i-1. A component with non-positive total weight gets NaN
// coordinates and is expected to be skipped by the caller.
func CenterOfMass(grid *mat.Dense, labels []int, n int) [][2]float64 {
	rows, cols := grid.Dims()
	wsum := make([]float64, n)
	rsum := make([]float64, n)
	csum := make([]float64, n)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			l := labels[r*cols+c]
			if l == 0 {
				continue
			}
			w := grid.At(r, c)
			wsum[l-1] += w
			rsum[l-1] += w * float64(r)
			csum[l-1] += w * float64(c)
		}
	}

	coms := make([][2]float64, n)
	for i := 0; i < n; i++ {
		if wsum[i] <= 0 {
			coms[i] = [2]float64{math.NaN(), math.NaN()}
			continue
		}
		coms[i] = [2]float64{rsum[i] / wsum[i], csum[i] / wsum[i]}
	}
	return coms
}
