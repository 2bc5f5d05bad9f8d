// Defines the D2Q9 lattice model: discrete directions, velocity vectors,
// quadrature weights, lattice speed and the per-node velocity field.

package sim

import "fmt"

// Direction indexes one of the nine discrete velocities of the D2Q9 stencil.
//
//	6  2  5
//	 \ | /
//	3--0--1
//	 / | \
//	7  4  8
type Direction int

const (
	Rest Direction = iota
	East
	North
	West
	South
	NorthEast
	NorthWest
	SouthWest
	SouthEast
)

// NumDirections is the number of discrete velocities of the stencil.
const NumDirections = 9

var directionNames = [NumDirections]string{"rest", "E", "N", "W", "S", "NE", "NW", "SW", "SE"}

func (d Direction) String() string {
	if d < 0 || d >= NumDirections {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

var opposite = [NumDirections]Direction{Rest, West, South, East, North, SouthWest, SouthEast, NorthEast, NorthWest}

// Opposite returns the direction pointing the other way.
func (d Direction) Opposite() Direction {
	return opposite[d]
}

// offsets are the unit lattice steps (dx, dy) of each direction.
var offsets = [NumDirections][2]int{
	{0, 0}, {1, 0}, {0, 1}, {-1, 0}, {0, -1}, {1, 1}, {-1, 1}, {-1, -1}, {1, -1},
}

// Offset returns the unit lattice step of the direction.
func (d Direction) Offset() (dx, dy int) {
	return offsets[d][0], offsets[d][1]
}

// Populations holds one node's distribution, indexed by Direction.
type Populations [NumDirections]float64

// Sum returns the zeroth moment of the node.
func (p *Populations) Sum() float64 {
	var s float64
	for _, v := range p {
		s += v
	}
	return s
}

// Vec2 is a two-component vector (x, y).
type Vec2 [2]float64

// Dot returns the inner product of v and o.
func (v Vec2) Dot(o Vec2) float64 {
	return v[0]*o[0] + v[1]*o[1]
}

// Scale returns v multiplied by k.
func (v Vec2) Scale(k float64) Vec2 {
	return Vec2{v[0] * k, v[1] * k}
}

var d2q9Weights = Populations{
	4.0 / 9.0,
	1.0 / 9.0, 1.0 / 9.0, 1.0 / 9.0, 1.0 / 9.0,
	1.0 / 36.0, 1.0 / 36.0, 1.0 / 36.0, 1.0 / 36.0,
}

// LatticeModel is the geometry shared by every collision model and the
// simulator of a run: grid dimensions, space and time steps, the discrete
// velocity set and the macroscopic velocity field.
type LatticeModel struct {
	rows, cols int
	dx, dt     float64
	c          float64 // lattice speed dx/dt
	csSqr      float64 // speed of sound squared, c^2/3

	E [NumDirections]Vec2 // discrete velocities, scaled by c
	W Populations         // quadrature weights

	// U is the velocity of every node, row-major. The momentum equation
	// rewrites it each step; the scalar equation reads it for advection.
	U []Vec2
}

// NewLatticeD2Q9 creates a lattice whose nodes all start with velocity u0.
func NewLatticeD2Q9(rows, cols int, dx, dt float64, u0 Vec2) (*LatticeModel, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: lattice must have positive dimensions, got %dx%d", ErrInvalidConfig, cols, rows)
	}
	u := make([]Vec2, rows*cols)
	for n := range u {
		u[n] = u0
	}
	return NewLatticeD2Q9Field(rows, cols, dx, dt, u)
}

// NewLatticeD2Q9Field creates a lattice with a per-node initial velocity.
// The slice is owned by the lattice afterwards.
func NewLatticeD2Q9Field(rows, cols int, dx, dt float64, u []Vec2) (*LatticeModel, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: lattice must have positive dimensions, got %dx%d", ErrInvalidConfig, cols, rows)
	}
	if dx <= 0 || dt <= 0 {
		return nil, fmt.Errorf("%w: space and time steps must be positive, got dx=%g dt=%g", ErrInvalidConfig, dx, dt)
	}
	if len(u) != rows*cols {
		return nil, fmt.Errorf("%w: velocity field has %d nodes, lattice has %d", ErrInvalidConfig, len(u), rows*cols)
	}
	c := dx / dt
	lm := &LatticeModel{
		rows:  rows,
		cols:  cols,
		dx:    dx,
		dt:    dt,
		c:     c,
		csSqr: c * c / 3.0,
		W:     d2q9Weights,
		U:     u,
	}
	for i := range lm.E {
		lm.E[i] = Vec2{float64(offsets[i][0]) * c, float64(offsets[i][1]) * c}
	}
	return lm, nil
}

func (lm *LatticeModel) NumRows() int  { return lm.rows }
func (lm *LatticeModel) NumCols() int  { return lm.cols }
func (lm *LatticeModel) NumNodes() int { return lm.rows * lm.cols }

// SpaceStep returns dx.
func (lm *LatticeModel) SpaceStep() float64 { return lm.dx }

// TimeStep returns dt.
func (lm *LatticeModel) TimeStep() float64 { return lm.dt }

// Speed returns the lattice speed c = dx/dt.
func (lm *LatticeModel) Speed() float64 { return lm.c }

// SoundSpeedSqr returns cs^2 = c^2/3.
func (lm *LatticeModel) SoundSpeedSqr() float64 { return lm.csSqr }

// Index returns the row-major index of node (x, y).
func (lm *LatticeModel) Index(x, y int) int { return y*lm.cols + x }

// Coords returns the (x, y) position of node n.
func (lm *LatticeModel) Coords(n int) (x, y int) { return n % lm.cols, n / lm.cols }

// Contains reports whether (x, y) lies inside the grid.
func (lm *LatticeModel) Contains(x, y int) bool {
	return x >= 0 && x < lm.cols && y >= 0 && y < lm.rows
}
