// Package crystal holds the crystallographic inputs of the indexer: the
// reflection table of a material (plane data), detector angular coverage and
// the forward diffraction model that predicts where a given orientation
// produces spots in (omega, eta) space.
//
// Frames and conventions: the incident beam travels along -z in the lab
// frame, the omega rotation axis is +y, and an orientation quaternion maps
// crystal frame vectors into the sample frame. The unit scattering vector of
// a reflection with Bragg angle theta and azimuth eta is
//
//	g_lab = (cos(theta)cos(eta), cos(theta)sin(eta), sin(theta))
package crystal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ovillellas/hexrd/internal/rotations"
)

// HKL is a Miller index triple.
type HKL struct {
	H, K, L int
}

func (h HKL) String() string {
	return fmt.Sprintf("(%d %d %d)", h.H, h.K, h.L)
}

// PlaneData is the reflection table of a material: Miller indices, their
// Bragg angles, the reciprocal lattice matrix and the Laue symmetry group.
// Instances are read-only after construction.
type PlaneData struct {
	HKLs       []HKL
	TTh        []float64 // two-theta per reflection, radians
	Laue       rotations.LaueGroup
	Wavelength float64 // angstrom, informational

	bMat *mat.Dense // 3x3 reciprocal lattice matrix

	// unit crystal directions of each hkl and their symmetry-distinct
	// equivalents, precomputed at construction
	cVecs  [][3]float64
	equivs [][][3]float64
}

// NewPlaneData builds a PlaneData from Miller indices, per-reflection
// two-theta angles (radians) and a 3x3 reciprocal lattice matrix B. The
// symmetry-equivalent scattering directions of every reflection are
// precomputed under the given Laue group.
func NewPlaneData(hkls []HKL, tth []float64, bMat *mat.Dense, laue rotations.LaueGroup, wavelength float64) (*PlaneData, error) {
	if len(hkls) != len(tth) {
		return nil, fmt.Errorf("plane data: %d hkls but %d two-theta values", len(hkls), len(tth))
	}
	r, c := bMat.Dims()
	if r != 3 || c != 3 {
		return nil, fmt.Errorf("plane data: B matrix must be 3x3, got %dx%d", r, c)
	}

	pd := &PlaneData{
		HKLs:       hkls,
		TTh:        tth,
		Laue:       laue,
		Wavelength: wavelength,
		bMat:       mat.DenseCopyOf(bMat),
		cVecs:      make([][3]float64, len(hkls)),
		equivs:     make([][][3]float64, len(hkls)),
	}
	for i, h := range hkls {
		v := pd.latticeVector(h)
		n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
		if n == 0 {
			return nil, fmt.Errorf("plane data: reflection %s maps to the zero vector", h)
		}
		pd.cVecs[i] = [3]float64{v[0] / n, v[1] / n, v[2] / n}
		pd.equivs[i] = equivalentDirections(pd.cVecs[i], laue)
	}
	return pd, nil
}

// latticeVector returns B * hkl in crystal Cartesian coordinates.
func (pd *PlaneData) latticeVector(h HKL) [3]float64 {
	v := mat.NewVecDense(3, []float64{float64(h.H), float64(h.K), float64(h.L)})
	var out mat.VecDense
	out.MulVec(pd.bMat, v)
	return [3]float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// BMat returns a copy of the reciprocal lattice matrix.
func (pd *PlaneData) BMat() *mat.Dense {
	return mat.DenseCopyOf(pd.bMat)
}

// CVec returns the unit crystal direction of reflection i.
func (pd *PlaneData) CVec(i int) [3]float64 {
	return pd.cVecs[i]
}

// EquivDirections returns the symmetry-distinct unit crystal directions
// equivalent to reflection i under the Laue group. The slice is shared and
// must not be modified.
func (pd *PlaneData) EquivDirections(i int) [][3]float64 {
	return pd.equivs[i]
}

// NumHKLs returns the number of reflections in the table.
func (pd *PlaneData) NumHKLs() int {
	return len(pd.HKLs)
}

// equivalentDirections applies every symmetry operator (and inversion, since
// g and -g diffract identically under Friedel's law) to c, discarding
// duplicates.
func equivalentDirections(c [3]float64, laue rotations.LaueGroup) [][3]float64 {
	const tol = 1e-8
	var out [][3]float64
	add := func(v [3]float64) {
		for _, u := range out {
			if math.Abs(u[0]-v[0]) < tol && math.Abs(u[1]-v[1]) < tol && math.Abs(u[2]-v[2]) < tol {
				return
			}
		}
		out = append(out, v)
	}
	for _, s := range laue.Operators() {
		v := s.Rotate(c)
		add(v)
		add([3]float64{-v[0], -v[1], -v[2]})
	}
	return out
}

// AnglesToGVec converts diffraction angles (two-theta, eta, omega), all in
// radians, to the unit scattering vector in the sample frame.
func AnglesToGVec(tth, eta, ome float64) [3]float64 {
	theta := 0.5 * tth
	gLab := [3]float64{
		math.Cos(theta) * math.Cos(eta),
		math.Cos(theta) * math.Sin(eta),
		math.Sin(theta),
	}
	// sample frame: undo the omega rotation about +y
	return rotYT(gLab, ome)
}

// rotYT applies the transpose (inverse) of the +y rotation by ome.
func rotYT(v [3]float64, ome float64) [3]float64 {
	c, s := math.Cos(ome), math.Sin(ome)
	return [3]float64{
		c*v[0] - s*v[2],
		v[1],
		s*v[0] + c*v[2],
	}
}

// rotY applies the +y rotation by ome.
func rotY(v [3]float64, ome float64) [3]float64 {
	c, s := math.Cos(ome), math.Sin(ome)
	return [3]float64{
		c*v[0] + s*v[2],
		v[1],
		-s*v[0] + c*v[2],
	}
}

// MapAngle wraps angle into the half-open interval [start, start+2*pi).
func MapAngle(angle, start float64) float64 {
	twoPi := 2 * math.Pi
	a := math.Mod(angle-start, twoPi)
	if a < 0 {
		a += twoPi
	}
	return start + a
}

// omegaEtaSolutions solves for the rotation angles at which the sample-frame
// direction v satisfies the Bragg condition for two-theta tth. There are
// zero, one or two solutions; each returns its (omega, eta) pair with omega
// in (-pi, pi].
func omegaEtaSolutions(v [3]float64, tth float64) [][2]float64 {
	sinTheta := math.Sin(0.5 * tth)
	c := math.Hypot(v[0], v[2])
	if c < sinTheta {
		return nil
	}

	phi := math.Atan2(v[0], v[2])
	var alpha float64
	if c > 0 {
		ratio := sinTheta / c
		if ratio > 1 {
			ratio = 1
		}
		alpha = math.Acos(ratio)
	}

	sols := make([][2]float64, 0, 2)
	for _, ome := range []float64{alpha - phi, -alpha - phi} {
		ome = MapAngle(ome, -math.Pi)
		g := rotY(v, ome)
		eta := math.Atan2(g[1], g[0])
		sols = append(sols, [2]float64{ome, eta})
		if alpha == 0 {
			break // degenerate: both branches coincide
		}
	}
	return sols
}

// Spot is one predicted diffraction event for a trial orientation.
type Spot struct {
	HKLID int     // index into the PlaneData reflection table
	Ome   float64 // rotation angle, radians, in (-pi, pi]
	Eta   float64 // azimuth, radians, in (-pi, pi]
}

// PredictSpots runs the forward model: for every reflection and every
// symmetry-equivalent scattering direction it solves the rotation condition
// and returns all predicted (omega, eta) events for orientation q.
func PredictSpots(pd *PlaneData, q rotations.Quat) []Spot {
	var spots []Spot
	for i := range pd.HKLs {
		for _, c := range pd.equivs[i] {
			v := q.Rotate(c)
			for _, sol := range omegaEtaSolutions(v, pd.TTh[i]) {
				spots = append(spots, Spot{HKLID: i, Ome: sol[0], Eta: sol[1]})
			}
		}
	}
	return spots
}
