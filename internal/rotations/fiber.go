package rotations

import "math"

func norm3(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func unit3(v [3]float64) [3]float64 {
	n := norm3(v)
	if n == 0 {
		return v
	}
	return [3]float64{v[0] / n, v[1] / n, v[2] / n}
}

func cross3(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// anyPerpendicular returns a unit vector perpendicular to v.
func anyPerpendicular(v [3]float64) [3]float64 {
	ref := [3]float64{1, 0, 0}
	if math.Abs(v[0]) > math.Abs(v[1]) {
		ref = [3]float64{0, 1, 0}
	}
	return unit3(cross3(v, ref))
}

// alignVectors returns a rotation mapping unit vector c onto unit vector s.
// Antiparallel inputs rotate pi about an arbitrary perpendicular axis.
func alignVectors(c, s [3]float64) Quat {
	d := dot3(c, s)
	switch {
	case d >= 1:
		return Identity
	case d <= -1:
		return FromAngleAxis(math.Pi, anyPerpendicular(c))
	}
	return FromAngleAxis(math.Acos(d), cross3(c, s))
}

// ToFundamental returns the symmetry representative of q inside the
// fundamental zone of sym, chosen as the equivalent with the largest scalar
// component (smallest rotation angle).
func ToFundamental(q Quat, sym LaueGroup) Quat {
	best := q.FixSign()
	for _, s := range sym.Operators() {
		e := q.Mul(s).FixSign()
		if e[0] > best[0] {
			best = e
		}
	}
	return best
}

// DiscreteFiber samples the one-parameter family of orientations that map
// the crystal direction cVec onto the sample direction sVec.
//
// The fiber is the base alignment rotation composed with ndiv equally spaced
// rotations about sVec. Every returned orientation is reduced to the
// fundamental zone of sym; near-duplicate samples produced by that reduction
// survive here and are collapsed by the caller with UniqueQuats.
func DiscreteFiber(cVec, sVec [3]float64, ndiv int, sym LaueGroup) []Quat {
	if ndiv < 1 {
		ndiv = 1
	}
	c := unit3(cVec)
	s := unit3(sVec)
	base := alignVectors(c, s)

	fiber := make([]Quat, 0, ndiv)
	for i := 0; i < ndiv; i++ {
		t := 2 * math.Pi * float64(i) / float64(ndiv)
		q := FromAngleAxis(t, s).Mul(base).Normalize()
		fiber = append(fiber, ToFundamental(q, sym))
	}
	return fiber
}
