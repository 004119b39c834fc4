// Package rotations provides the quaternion algebra, crystal symmetry
// operator tables and fiber construction used by the orientation indexer.
//
// Quaternions are stored scalar-first as [4]float64 and are kept unit-norm
// by construction. Two unit quaternions q and -q describe the same physical
// rotation; functions that compare or reduce orientations treat them as
// equivalent.
package rotations

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats/scalar"
)

// Quat is a unit quaternion, scalar component first: (w, x, y, z).
type Quat [4]float64

// Identity is the no-rotation quaternion.
var Identity = Quat{1, 0, 0, 0}

// Norm returns the Euclidean norm of q.
func (q Quat) Norm() float64 {
	return math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
}

// Normalize returns q scaled to unit norm. A zero quaternion is returned
// unchanged.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	if n == 0 {
		return q
	}
	return Quat{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

// Conjugate returns the quaternion conjugate, which for unit quaternions is
// the inverse rotation.
func (q Quat) Conjugate() Quat {
	return Quat{q[0], -q[1], -q[2], -q[3]}
}

// Neg returns -q, the antipodal representative of the same rotation.
func (q Quat) Neg() Quat {
	return Quat{-q[0], -q[1], -q[2], -q[3]}
}

// FixSign returns the representative of {q, -q} with non-negative scalar
// part. Ties (w == 0) keep the input sign.
func (q Quat) FixSign() Quat {
	if q[0] < 0 {
		return q.Neg()
	}
	return q
}

// Dot returns the 4-vector dot product of two quaternions.
func (q Quat) Dot(p Quat) float64 {
	return q[0]*p[0] + q[1]*p[1] + q[2]*p[2] + q[3]*p[3]
}

// Mul returns the Hamilton product q*p, i.e. the rotation p followed by q.
func (q Quat) Mul(p Quat) Quat {
	return Quat{
		q[0]*p[0] - q[1]*p[1] - q[2]*p[2] - q[3]*p[3],
		q[0]*p[1] + q[1]*p[0] + q[2]*p[3] - q[3]*p[2],
		q[0]*p[2] - q[1]*p[3] + q[2]*p[0] + q[3]*p[1],
		q[0]*p[3] + q[1]*p[2] - q[2]*p[1] + q[3]*p[0],
	}
}

// FromAngleAxis builds the unit quaternion for a rotation of angle radians
// about the (not necessarily unit) axis. A zero axis yields the identity.
func FromAngleAxis(angle float64, axis [3]float64) Quat {
	n := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
	if n == 0 {
		return Identity
	}
	s := math.Sin(0.5*angle) / n
	return Quat{math.Cos(0.5 * angle), s * axis[0], s * axis[1], s * axis[2]}
}

// AngleAxis decomposes a unit quaternion into its rotation angle in [0, pi]
// and unit axis. The identity maps to angle 0 with an arbitrary fixed axis.
func (q Quat) AngleAxis() (float64, [3]float64) {
	p := q.FixSign()
	w := p[0]
	if w > 1 {
		w = 1
	}
	angle := 2 * math.Acos(w)
	s := math.Sqrt(p[1]*p[1] + p[2]*p[2] + p[3]*p[3])
	if s == 0 {
		return 0, [3]float64{1, 0, 0}
	}
	return angle, [3]float64{p[1] / s, p[2] / s, p[3] / s}
}

// RotMat returns the 3x3 rotation matrix of q in row-major order.
func (q Quat) RotMat() [9]float64 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}

// Rotate applies the rotation q to vector v.
func (q Quat) Rotate(v [3]float64) [3]float64 {
	m := q.RotMat()
	return [3]float64{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// Homochoric maps q to equal-volume (homochoric) coordinates. The mapping
// sends a rotation of angle w about unit axis n to n * (3/4*(w - sin w))^(1/3),
// so Euclidean distance in the image approximates misorientation angle for
// small separations.
func (q Quat) Homochoric() [3]float64 {
	angle, axis := q.AngleAxis()
	r := math.Cbrt(0.75 * (angle - math.Sin(angle)))
	return [3]float64{r * axis[0], r * axis[1], r * axis[2]}
}

// RandomQuats draws n orientations uniformly over SO(3) by normalizing
// 4-vectors of independent standard normals. The caller supplies the random
// source so simulations are reproducible.
func RandomQuats(n int, rng *rand.Rand) []Quat {
	out := make([]Quat, n)
	for i := range out {
		q := Quat{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		for q.Norm() == 0 {
			q = Quat{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		}
		out[i] = q.Normalize().FixSign()
	}
	return out
}

// UniqueQuats collapses near-identical quaternions, keeping first
// occurrences in order. Two quaternions are considered identical when all
// four components agree within tol after sign fixing.
func UniqueQuats(quats []Quat, tol float64) []Quat {
	out := make([]Quat, 0, len(quats))
	for _, q := range quats {
		q = q.FixSign()
		dup := false
		for _, u := range out {
			if scalar.EqualWithinAbs(q[0], u[0], tol) &&
				scalar.EqualWithinAbs(q[1], u[1], tol) &&
				scalar.EqualWithinAbs(q[2], u[2], tol) &&
				scalar.EqualWithinAbs(q[3], u[3], tol) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, q)
		}
	}
	return out
}
