// Zou-He prescribed-velocity boundary nodes. Unknown post-stream populations
// of a boundary node are rebuilt from the known ones and the imposed velocity
// by bouncing back the non-equilibrium part.

package sim

import (
	"errors"
	"fmt"
)

// ErrNotOnBoundary is returned when registering a node that lies on no edge.
var ErrNotOnBoundary = errors.New("node is not on a lattice edge")

// Side ids.
const (
	SideRight = iota
	SideTop
	SideLeft
	SideBottom
)

// ValueNode is a boundary node with a prescribed velocity. ID is a side id
// (SideRight..SideBottom) when Corner is false and a corner id
// (CornerBottomLeft..CornerTopRight) when it is true.
type ValueNode struct {
	X, Y     int
	N        int // row-major index
	Velocity Vec2
	Corner   bool
	ID       int
}

type beta int

const (
	betaNone beta = iota
	beta1
	beta2
	beta3
)

// coeff is k*beta_b; betaNone means zero.
type coeff struct {
	b beta
	k float64
}

const noSource Direction = -1

// zouHeTerm rebuilds one unknown population:
// f[target] = f[source] + diff*d + cx*rho*ux + cy*rho*uy
type zouHeTerm struct {
	target, source Direction
	diff           float64
	cx, cy         coeff
}

type sideFormula struct {
	single     [3]Direction // rest and tangential populations
	double     [3]Direction // known populations leaving through the side
	axis       int          // velocity component normal to the side
	sign       float64      // density denominator is 1 + sign*u[axis]/c
	diffPlus   Direction    // d = 0.5*(f[diffPlus] - f[diffMinus])
	diffMinus  Direction
	inward     [2]int // offset of the interior neighbour, used with normal flow
	terms      [3]zouHeTerm
}

type cornerFormula struct {
	neighbours [2][2]int // adjacent edge nodes whose densities are averaged
	terms      [5]zouHeTerm
}

// The tangential correction changes sign from side to side; this follows the
// Zou-He derivation for each orientation.
var sideFormulas = [4]sideFormula{
	SideRight: {
		single: [3]Direction{Rest, North, South}, double: [3]Direction{East, NorthEast, SouthEast},
		axis: 0, sign: +1, diffPlus: South, diffMinus: North, inward: [2]int{-1, 0},
		terms: [3]zouHeTerm{
			{West, East, 0, coeff{beta1, -2}, coeff{}},
			{NorthWest, SouthEast, +1, coeff{beta3, -1}, coeff{beta2, +1}},
			{SouthWest, NorthEast, -1, coeff{beta3, -1}, coeff{beta2, -1}},
		},
	},
	SideTop: {
		single: [3]Direction{Rest, East, West}, double: [3]Direction{North, NorthEast, NorthWest},
		axis: 1, sign: +1, diffPlus: East, diffMinus: West, inward: [2]int{0, -1},
		terms: [3]zouHeTerm{
			{South, North, 0, coeff{}, coeff{beta1, -2}},
			{SouthWest, NorthEast, +1, coeff{beta2, -1}, coeff{beta3, -1}},
			{SouthEast, NorthWest, -1, coeff{beta2, +1}, coeff{beta3, -1}},
		},
	},
	SideLeft: {
		single: [3]Direction{Rest, North, South}, double: [3]Direction{West, NorthWest, SouthWest},
		axis: 0, sign: -1, diffPlus: South, diffMinus: North, inward: [2]int{+1, 0},
		terms: [3]zouHeTerm{
			{East, West, 0, coeff{beta1, +2}, coeff{}},
			{NorthEast, SouthWest, +1, coeff{beta3, +1}, coeff{beta2, +1}},
			{SouthEast, NorthWest, -1, coeff{beta3, +1}, coeff{beta2, -1}},
		},
	},
	SideBottom: {
		single: [3]Direction{Rest, East, West}, double: [3]Direction{South, SouthWest, SouthEast},
		axis: 1, sign: -1, diffPlus: West, diffMinus: East, inward: [2]int{0, +1},
		terms: [3]zouHeTerm{
			{North, South, 0, coeff{}, coeff{beta1, +2}},
			{NorthEast, SouthWest, +1, coeff{beta2, +1}, coeff{beta3, +1}},
			{NorthWest, SouthEast, -1, coeff{beta2, -1}, coeff{beta3, +1}},
		},
	},
}

var cornerFormulas = [4]cornerFormula{
	CornerBottomLeft: {
		neighbours: [2][2]int{{0, 1}, {1, 0}},
		terms: [5]zouHeTerm{
			{East, West, 0, coeff{beta1, +2}, coeff{}},
			{North, South, 0, coeff{}, coeff{beta1, +2}},
			{NorthEast, SouthWest, 0, coeff{beta1, +0.5}, coeff{beta1, +0.5}},
			{NorthWest, noSource, 0, coeff{beta3, -0.5}, coeff{beta3, +0.5}},
			{SouthEast, noSource, 0, coeff{beta3, +0.5}, coeff{beta3, -0.5}},
		},
	},
	CornerBottomRight: {
		neighbours: [2][2]int{{0, 1}, {-1, 0}},
		terms: [5]zouHeTerm{
			{West, East, 0, coeff{beta1, -2}, coeff{}},
			{North, South, 0, coeff{}, coeff{beta1, +2}},
			{NorthWest, SouthEast, 0, coeff{beta1, -0.5}, coeff{beta1, +0.5}},
			{NorthEast, noSource, 0, coeff{beta3, +0.5}, coeff{beta3, +0.5}},
			{SouthWest, noSource, 0, coeff{beta3, -0.5}, coeff{beta3, -0.5}},
		},
	},
	CornerTopLeft: {
		neighbours: [2][2]int{{0, -1}, {1, 0}},
		terms: [5]zouHeTerm{
			{East, West, 0, coeff{beta1, +2}, coeff{}},
			{South, North, 0, coeff{}, coeff{beta1, -2}},
			{SouthEast, NorthWest, 0, coeff{beta1, +0.5}, coeff{beta1, -0.5}},
			{NorthEast, noSource, 0, coeff{beta3, +0.5}, coeff{beta3, +0.5}},
			{SouthWest, noSource, 0, coeff{beta3, -0.5}, coeff{beta3, -0.5}},
		},
	},
	CornerTopRight: {
		neighbours: [2][2]int{{0, -1}, {-1, 0}},
		terms: [5]zouHeTerm{
			{West, East, 0, coeff{beta1, -2}, coeff{}},
			{South, North, 0, coeff{}, coeff{beta1, -2}},
			{SouthWest, NorthEast, 0, coeff{beta1, -0.5}, coeff{beta1, -0.5}},
			{NorthWest, noSource, 0, coeff{beta3, -0.5}, coeff{beta3, +0.5}},
			{SouthEast, noSource, 0, coeff{beta3, +0.5}, coeff{beta3, -0.5}},
		},
	},
}

// ZouHeNodes manages the prescribed-velocity nodes of one distribution field.
type ZouHeNodes struct {
	Nodes []ValueNode

	lm         *LatticeModel
	cm         *CollisionModel
	normalFlow bool
	betas      [4]float64 // indexed by beta; betas[betaNone] = 0
}

// NewZouHeNodes creates an empty node set. cm supplies the densities used at
// corner nodes.
func NewZouHeNodes(lm *LatticeModel, cm *CollisionModel) *ZouHeNodes {
	c := lm.Speed()
	csSqr := c * c / 3.0
	zh := &ZouHeNodes{lm: lm, cm: cm}
	zh.betas[beta1] = c / csSqr / 9.0
	zh.betas[beta2] = 0.5 / c
	zh.betas[beta3] = zh.betas[beta2] - zh.betas[beta1]
	return zh
}

// Betas returns the three reconstruction coefficients.
func (zh *ZouHeNodes) Betas() (b1, b2, b3 float64) {
	return zh.betas[beta1], zh.betas[beta2], zh.betas[beta3]
}

// AddNode registers (x, y) with prescribed velocity (ux, uy). A node on two
// edges is a corner; a node on one edge is a side node.
func (zh *ZouHeNodes) AddNode(x, y int, ux, uy float64) error {
	nx, ny := zh.lm.NumCols(), zh.lm.NumRows()
	if !zh.lm.Contains(x, y) {
		return fmt.Errorf("zou-he node (%d, %d) outside %dx%d lattice: %w", x, y, nx, ny, ErrNotOnBoundary)
	}
	left, right := x == 0, x == nx-1
	bottom, top := y == 0, y == ny-1

	node := ValueNode{X: x, Y: y, N: zh.lm.Index(x, y), Velocity: Vec2{ux, uy}}
	switch {
	case (top || bottom) && (left || right):
		node.Corner = true
		node.ID = CornerBottomLeft
		if right {
			node.ID += 1
		}
		if top {
			node.ID += 2
		}
	case right:
		node.ID = SideRight
	case top:
		node.ID = SideTop
	case left:
		node.ID = SideLeft
	case bottom:
		node.ID = SideBottom
	default:
		return fmt.Errorf("zou-he node (%d, %d): %w", x, y, ErrNotOnBoundary)
	}
	zh.Nodes = append(zh.Nodes, node)
	return nil
}

// AddSideNode registers (x, y) as a node of the given side even where it also
// touches a second edge. The lid uses it for the ends of the top row, which
// are not corners since left and right wrap around.
func (zh *ZouHeNodes) AddSideNode(x, y, side int, ux, uy float64) error {
	if side < SideRight || side > SideBottom {
		return fmt.Errorf("%w: unknown side %d", ErrInvalidConfig, side)
	}
	nx, ny := zh.lm.NumCols(), zh.lm.NumRows()
	onSide := [4]bool{
		SideRight:  x == nx-1,
		SideTop:    y == ny-1,
		SideLeft:   x == 0,
		SideBottom: y == 0,
	}
	if !zh.lm.Contains(x, y) || !onSide[side] {
		return fmt.Errorf("zou-he node (%d, %d) not on side %d: %w", x, y, side, ErrNotOnBoundary)
	}
	zh.Nodes = append(zh.Nodes, ValueNode{X: x, Y: y, N: zh.lm.Index(x, y), Velocity: Vec2{ux, uy}, ID: side})
	return nil
}

// ToggleNormalFlow makes side nodes take their velocity from the interior
// neighbour instead of the registered value.
func (zh *ZouHeNodes) ToggleNormalFlow() {
	zh.normalFlow = true
}

// NormalFlow reports whether side nodes read the live velocity field.
func (zh *ZouHeNodes) NormalFlow() bool { return zh.normalFlow }

// UpdateNodes rebuilds the unknown populations of every registered node of
// the post-stream field df.
func (zh *ZouHeNodes) UpdateNodes(df []Populations) {
	for _, node := range zh.Nodes {
		if node.Corner {
			zh.updateCorner(df, node)
		} else {
			zh.updateSide(df, node)
		}
	}
}

func (zh *ZouHeNodes) value(c coeff) float64 {
	return c.k * zh.betas[c.b]
}

func (zh *ZouHeNodes) apply(f *Populations, t zouHeTerm, d float64, v Vec2) {
	var base float64
	if t.source != noSource {
		base = f[t.source]
	}
	f[t.target] = base + t.diff*d + zh.value(t.cx)*v[0] + zh.value(t.cy)*v[1]
}

func (zh *ZouHeNodes) updateSide(df []Populations, node ValueNode) {
	if node.ID < SideRight || node.ID > SideBottom {
		panic(fmt.Sprintf("zou-he: %d is not a side", node.ID))
	}
	sf := &sideFormulas[node.ID]
	f := &df[node.N]

	vel := node.Velocity
	if zh.normalFlow {
		vel = zh.lm.U[zh.lm.Index(node.X+sf.inward[0], node.Y+sf.inward[1])]
	}
	single := f[sf.single[0]] + f[sf.single[1]] + f[sf.single[2]]
	double := f[sf.double[0]] + f[sf.double[1]] + f[sf.double[2]]
	rho := (single + 2.0*double) / (1.0 + sf.sign*vel[sf.axis]/zh.lm.Speed())
	d := 0.5 * (f[sf.diffPlus] - f[sf.diffMinus])
	v := vel.Scale(rho)
	for _, t := range sf.terms {
		zh.apply(f, t, d, v)
	}
}

func (zh *ZouHeNodes) updateCorner(df []Populations, node ValueNode) {
	if node.ID < CornerBottomLeft || node.ID > CornerTopRight {
		panic(fmt.Sprintf("zou-he: %d is not a corner", node.ID))
	}
	cf := &cornerFormulas[node.ID]
	f := &df[node.N]

	a := zh.lm.Index(node.X+cf.neighbours[0][0], node.Y+cf.neighbours[0][1])
	b := zh.lm.Index(node.X+cf.neighbours[1][0], node.Y+cf.neighbours[1][1])
	rho := 0.5 * (zh.cm.Rho[a] + zh.cm.Rho[b])
	v := node.Velocity.Scale(rho)
	for _, t := range cf.terms {
		zh.apply(f, t, 0, v)
	}
	for i := East; i < NumDirections; i++ {
		rho -= f[i]
	}
	f[Rest] = rho
}
