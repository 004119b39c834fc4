package rotations

import (
	"fmt"
	"math"
)

// LaueGroup identifies one of the eleven Laue classes by its proper rotation
// subgroup. Only the rotational part matters for orientation equivalence, so
// the enum collapses to the seven distinct proper point groups.
type LaueGroup int

const (
	Triclinic    LaueGroup = iota // 1 operator
	Monoclinic                    // 2 operators
	Orthorhombic                  // 4 operators
	Trigonal                      // 6 operators
	Tetragonal                    // 8 operators
	Hexagonal                     // 12 operators
	Cubic                         // 24 operators
)

func (g LaueGroup) String() string {
	switch g {
	case Triclinic:
		return "triclinic"
	case Monoclinic:
		return "monoclinic"
	case Orthorhombic:
		return "orthorhombic"
	case Trigonal:
		return "trigonal"
	case Tetragonal:
		return "tetragonal"
	case Hexagonal:
		return "hexagonal"
	case Cubic:
		return "cubic"
	default:
		return fmt.Sprintf("LaueGroup(%d)", int(g))
	}
}

// ParseLaueGroup maps a config string to a LaueGroup.
func ParseLaueGroup(s string) (LaueGroup, error) {
	for g := Triclinic; g <= Cubic; g++ {
		if g.String() == s {
			return g, nil
		}
	}
	return Triclinic, fmt.Errorf("unknown Laue group %q", s)
}

// axis-angle generator entry for a symmetry operator table.
type symGen struct {
	angle float64
	axis  [3]float64
}

func buildOps(gens []symGen) []Quat {
	ops := make([]Quat, len(gens))
	for i, g := range gens {
		ops[i] = FromAngleAxis(g.angle, g.axis).FixSign()
	}
	return ops
}

var symTables = map[LaueGroup][]Quat{
	Triclinic: {Identity},

	// 2-fold about b.
	Monoclinic: buildOps([]symGen{
		{0, [3]float64{0, 0, 1}},
		{math.Pi, [3]float64{0, 1, 0}},
	}),

	// 222: 2-folds about a, b, c.
	Orthorhombic: buildOps([]symGen{
		{0, [3]float64{0, 0, 1}},
		{math.Pi, [3]float64{1, 0, 0}},
		{math.Pi, [3]float64{0, 1, 0}},
		{math.Pi, [3]float64{0, 0, 1}},
	}),

	// 32: 3-fold about c, 2-folds in the basal plane.
	Trigonal: buildOps([]symGen{
		{0, [3]float64{0, 0, 1}},
		{2 * math.Pi / 3, [3]float64{0, 0, 1}},
		{4 * math.Pi / 3, [3]float64{0, 0, 1}},
		{math.Pi, [3]float64{1, 0, 0}},
		{math.Pi, [3]float64{-0.5, math.Sqrt(3) / 2, 0}},
		{math.Pi, [3]float64{-0.5, -math.Sqrt(3) / 2, 0}},
	}),

	// 422: 4-fold about c, 2-folds about a, b and the face diagonals.
	Tetragonal: buildOps([]symGen{
		{0, [3]float64{0, 0, 1}},
		{math.Pi / 2, [3]float64{0, 0, 1}},
		{math.Pi, [3]float64{0, 0, 1}},
		{3 * math.Pi / 2, [3]float64{0, 0, 1}},
		{math.Pi, [3]float64{1, 0, 0}},
		{math.Pi, [3]float64{0, 1, 0}},
		{math.Pi, [3]float64{1, 1, 0}},
		{math.Pi, [3]float64{1, -1, 0}},
	}),

	// 622: 6-fold about c plus six basal 2-folds.
	Hexagonal: buildOps([]symGen{
		{0, [3]float64{0, 0, 1}},
		{math.Pi / 3, [3]float64{0, 0, 1}},
		{2 * math.Pi / 3, [3]float64{0, 0, 1}},
		{math.Pi, [3]float64{0, 0, 1}},
		{4 * math.Pi / 3, [3]float64{0, 0, 1}},
		{5 * math.Pi / 3, [3]float64{0, 0, 1}},
		{math.Pi, [3]float64{1, 0, 0}},
		{math.Pi, [3]float64{math.Sqrt(3) / 2, 0.5, 0}},
		{math.Pi, [3]float64{0.5, math.Sqrt(3) / 2, 0}},
		{math.Pi, [3]float64{0, 1, 0}},
		{math.Pi, [3]float64{-0.5, math.Sqrt(3) / 2, 0}},
		{math.Pi, [3]float64{-math.Sqrt(3) / 2, 0.5, 0}},
	}),

	// 432: the 24 proper rotations of the cube.
	Cubic: buildOps([]symGen{
		{0, [3]float64{0, 0, 1}},
		// 4-fold axes: <100>
		{math.Pi / 2, [3]float64{1, 0, 0}},
		{math.Pi, [3]float64{1, 0, 0}},
		{3 * math.Pi / 2, [3]float64{1, 0, 0}},
		{math.Pi / 2, [3]float64{0, 1, 0}},
		{math.Pi, [3]float64{0, 1, 0}},
		{3 * math.Pi / 2, [3]float64{0, 1, 0}},
		{math.Pi / 2, [3]float64{0, 0, 1}},
		{math.Pi, [3]float64{0, 0, 1}},
		{3 * math.Pi / 2, [3]float64{0, 0, 1}},
		// 3-fold axes: <111>
		{2 * math.Pi / 3, [3]float64{1, 1, 1}},
		{4 * math.Pi / 3, [3]float64{1, 1, 1}},
		{2 * math.Pi / 3, [3]float64{-1, 1, 1}},
		{4 * math.Pi / 3, [3]float64{-1, 1, 1}},
		{2 * math.Pi / 3, [3]float64{1, -1, 1}},
		{4 * math.Pi / 3, [3]float64{1, -1, 1}},
		{2 * math.Pi / 3, [3]float64{1, 1, -1}},
		{4 * math.Pi / 3, [3]float64{1, 1, -1}},
		// 2-fold axes: <110>
		{math.Pi, [3]float64{1, 1, 0}},
		{math.Pi, [3]float64{1, -1, 0}},
		{math.Pi, [3]float64{1, 0, 1}},
		{math.Pi, [3]float64{1, 0, -1}},
		{math.Pi, [3]float64{0, 1, 1}},
		{math.Pi, [3]float64{0, 1, -1}},
	}),
}

// Operators returns the quaternion symmetry operators of the group. The
// returned slice is shared; callers must not modify it.
func (g LaueGroup) Operators() []Quat {
	ops, ok := symTables[g]
	if !ok {
		return symTables[Triclinic]
	}
	return ops
}
