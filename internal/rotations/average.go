package rotations

import "math"

// Misorientation returns the smallest rotation angle in radians separating
// two orientations, minimized over the crystal symmetry operators of sym and
// over antipodal equivalence (q and -q are the same rotation).
//
// Orientations map crystal frame vectors into the sample frame, so symmetry
// operators compose on the crystal side: q is equivalent to q*s for every
// operator s.
func Misorientation(q1, q2 Quat, sym LaueGroup) float64 {
	inv := q1.Conjugate()
	best := -1.0
	for _, s := range sym.Operators() {
		c := math.Abs(inv.Mul(q2.Mul(s))[0])
		if c > best {
			best = c
		}
	}
	if best > 1 {
		best = 1
	}
	return 2 * math.Acos(best)
}

// nearestEquivalent returns the symmetry- and sign-equivalent representative
// of q closest to ref in the 4-vector sense.
func nearestEquivalent(q, ref Quat, sym LaueGroup) Quat {
	best := q
	bestDot := math.Inf(-1)
	for _, s := range sym.Operators() {
		e := q.Mul(s)
		d := e.Dot(ref)
		if d < 0 {
			e = e.Neg()
			d = -d
		}
		if d > bestDot {
			bestDot = d
			best = e
		}
	}
	return best
}

// QuatAverage computes the symmetry-aware mean of a set of orientations.
//
// Each member is first replaced by its symmetry-equivalent representative
// nearest to a reference (initially the first member, then the running mean)
// so the arithmetic 4-vector mean is crystallographically meaningful. The
// result is re-normalized to unit length. A single-member input is returned
// unchanged apart from sign fixing.
func QuatAverage(quats []Quat, sym LaueGroup) Quat {
	if len(quats) == 0 {
		return Identity
	}
	if len(quats) == 1 {
		return quats[0].FixSign()
	}

	ref := quats[0].FixSign()
	var mean Quat
	// Two passes: the second re-centers on the first pass mean, which
	// stabilizes clusters that straddle a fundamental zone boundary.
	for pass := 0; pass < 2; pass++ {
		var sum Quat
		for _, q := range quats {
			e := nearestEquivalent(q, ref, sym)
			sum[0] += e[0]
			sum[1] += e[1]
			sum[2] += e[2]
			sum[3] += e[3]
		}
		mean = sum.Normalize().FixSign()
		ref = mean
	}
	return mean
}
