// Implements the BGK collision engine shared by the momentum and scalar
// equations: equilibrium, zeroth moment, obstacle skipping and relaxation.

package sim

import "fmt"

// NodeState is the local state a source strategy sees when distributing its
// contribution over the directions of one node.
type NodeState struct {
	Rho float64
	U   Vec2
	Tau float64
}

// SourceStrategy supplies the per-direction source term of a collision model.
// Term returns S_i for node n; the collision step adds dt*S_i.
type SourceStrategy interface {
	Term(n int, i Direction, st NodeState) float64
}

// ForceField is implemented by sources that act as a body force on the
// momentum equation. The simulator uses it for the half-step velocity
// correction u = (sum(e_i f_i) + dt F/2) / rho.
type ForceField interface {
	Force(n int) Vec2
}

// Equation labels which transport equation a collision model solves.
type Equation string

const (
	EquationMomentum Equation = "ns"
	EquationScalar   Equation = "cd"
)

// CollisionModel relaxes a distribution field toward its local equilibrium.
// The momentum and scalar variants share this type and differ only in the
// SourceStrategy they are composed with.
type CollisionModel struct {
	Equation Equation
	Edf      []Populations // equilibrium distribution, recomputed by ComputeEq
	Rho      []float64     // zeroth moment per node

	lm     *LatticeModel
	skip   []bool
	tau    float64
	source SourceStrategy
}

// NewCollisionModel builds a collision model for transport coefficient k
// (kinematic viscosity or diffusivity). rho0 must hold one density per node;
// use UniformDensity for a constant start. source may be nil.
func NewCollisionModel(eq Equation, lm *LatticeModel, k float64, rho0 []float64, source SourceStrategy) (*CollisionModel, error) {
	if lm == nil {
		return nil, fmt.Errorf("%w: collision model needs a lattice", ErrInvalidConfig)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: transport coefficient must be positive, got %g", ErrInvalidConfig, k)
	}
	if len(rho0) != lm.NumNodes() {
		return nil, fmt.Errorf("%w: initial density has %d values, lattice has %d nodes", ErrInvalidConfig, len(rho0), lm.NumNodes())
	}
	cm := &CollisionModel{
		Equation: eq,
		Edf:      make([]Populations, lm.NumNodes()),
		Rho:      append([]float64(nil), rho0...),
		lm:       lm,
		skip:     make([]bool, lm.NumNodes()),
		tau:      0.5 + k/(lm.SoundSpeedSqr()*lm.TimeStep()),
		source:   source,
	}
	cm.ComputeEq()
	return cm, nil
}

// NewCollisionNS builds the momentum (Navier-Stokes) collision model.
func NewCollisionNS(lm *LatticeModel, viscosity float64, rho0 []float64, force *BodyForce) (*CollisionModel, error) {
	var src SourceStrategy
	if force != nil {
		src = force
	}
	return NewCollisionModel(EquationMomentum, lm, viscosity, rho0, src)
}

// NewCollisionCD builds the scalar (convection-diffusion) collision model.
func NewCollisionCD(lm *LatticeModel, diffusivity float64, rho0 []float64, source *ScalarSource) (*CollisionModel, error) {
	var src SourceStrategy
	if source != nil {
		src = source
	}
	return NewCollisionModel(EquationScalar, lm, diffusivity, rho0, src)
}

// UniformDensity returns a density slice of n copies of rho.
func UniformDensity(n int, rho float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rho
	}
	return out
}

// Tau returns the dimensionless relaxation time.
func (cm *CollisionModel) Tau() float64 { return cm.tau }

// Lattice returns the lattice the model was built on.
func (cm *CollisionModel) Lattice() *LatticeModel { return cm.lm }

// Source returns the source strategy, or nil.
func (cm *CollisionModel) Source() SourceStrategy { return cm.source }

// ComputeEq recomputes the equilibrium distribution of every non-skipped node
// from the current density and the lattice velocity field.
func (cm *CollisionModel) ComputeEq() {
	c2 := cm.lm.c * cm.lm.c
	c4 := c2 * c2
	for n := range cm.Edf {
		if cm.skip[n] {
			continue
		}
		u := cm.lm.U[n]
		uSqr := u.Dot(u)
		for i := range cm.Edf[n] {
			eu := cm.lm.E[i].Dot(u)
			cm.Edf[n][i] = cm.lm.W[i] * cm.Rho[n] * (1.0 + 3.0*eu/c2 + 4.5*eu*eu/c4 - 1.5*uSqr/c2)
		}
	}
}

// ComputeRho returns the zeroth moment of every node of df.
func (cm *CollisionModel) ComputeRho(df []Populations) []float64 {
	out := make([]float64, len(df))
	for n := range df {
		out[n] = df[n].Sum()
	}
	return out
}

// AddNodeToSkip excludes node n from equilibrium and relaxation.
func (cm *CollisionModel) AddNodeToSkip(n int) {
	cm.skip[n] = true
}

// ClearSkipped makes every node take part in equilibrium and relaxation
// again.
func (cm *CollisionModel) ClearSkipped() {
	clear(cm.skip)
}

// IsSkipped reports whether node n is excluded.
func (cm *CollisionModel) IsSkipped(n int) bool {
	return cm.skip[n]
}

// Collide relaxes df toward Edf in place and, when withSource is set, adds
// dt times the source term. Each node only reads its own populations.
func (cm *CollisionModel) Collide(df []Populations, withSource bool) {
	dt := cm.lm.dt
	src := cm.source
	if !withSource {
		src = nil
	}
	for n := range df {
		if cm.skip[n] {
			continue
		}
		st := NodeState{Rho: cm.Rho[n], U: cm.lm.U[n], Tau: cm.tau}
		for i := range df[n] {
			df[n][i] -= (df[n][i] - cm.Edf[n][i]) / cm.tau
			if src != nil {
				df[n][i] += dt * src.Term(n, Direction(i), st)
			}
		}
	}
}
