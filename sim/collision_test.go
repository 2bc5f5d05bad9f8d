package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeEq_AtRest_EqualsWeightedDensity(t *testing.T) {
	// GIVEN a lattice at rest and density 1.3 everywhere
	lm := newTestLattice(t, 3, 4)
	cm, err := NewCollisionNS(lm, 0.1, UniformDensity(lm.NumNodes(), 1.3), nil)
	require.NoError(t, err)

	// THEN every equilibrium population is w_i * rho
	for n := range cm.Edf {
		for i := range cm.Edf[n] {
			assert.InDelta(t, lm.W[i]*1.3, cm.Edf[n][i], 1e-15)
		}
	}
}

func TestComputeEq_Moments(t *testing.T) {
	// GIVEN a moving fluid
	u := Vec2{0.7, -0.4}
	lm, err := NewLatticeD2Q9(2, 2, 0.1, 0.01, u)
	require.NoError(t, err)
	cm, err := NewCollisionNS(lm, 0.1, UniformDensity(4, 0.9), nil)
	require.NoError(t, err)

	// THEN the equilibrium carries the density and momentum
	for n := range cm.Edf {
		var m Vec2
		for i := range cm.Edf[n] {
			m[0] += lm.E[i][0] * cm.Edf[n][i]
			m[1] += lm.E[i][1] * cm.Edf[n][i]
		}
		assert.InDelta(t, 0.9, cm.Edf[n].Sum(), 1e-12)
		assert.InDelta(t, 0.9*u[0], m[0], 1e-12)
		assert.InDelta(t, 0.9*u[1], m[1], 1e-12)
	}
}

func TestNewCollisionModel_Tau(t *testing.T) {
	lm := newTestLattice(t, 2, 2)
	cm, err := NewCollisionCD(lm, 0.2, UniformDensity(4, 0), nil)
	require.NoError(t, err)
	// tau = 0.5 + k / (cs^2 dt) = 0.5 + 0.2 / (100/3 * 0.01)
	assert.InDelta(t, 1.1, cm.Tau(), 1e-12)
	assert.Equal(t, EquationScalar, cm.Equation)
	assert.Nil(t, cm.Source())
}

func TestNewCollisionModel_InvalidParameters(t *testing.T) {
	lm := newTestLattice(t, 2, 3)
	tests := []struct {
		name string
		lm   *LatticeModel
		k    float64
		rho  []float64
	}{
		{"nil lattice", nil, 0.1, UniformDensity(6, 1)},
		{"zero viscosity", lm, 0, UniformDensity(6, 1)},
		{"negative viscosity", lm, -0.1, UniformDensity(6, 1)},
		{"density too short", lm, 0.1, UniformDensity(5, 1)},
		{"density too long", lm, 0.1, UniformDensity(7, 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCollisionModel(EquationMomentum, tc.lm, tc.k, tc.rho, nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestComputeRho_ZerothMoment(t *testing.T) {
	lm := newTestLattice(t, 2, 2)
	cm := newTestNS(t, lm, nil)
	df := patternField(4)
	rho := cm.ComputeRho(df)
	for n := range df {
		// populations of node n are 9n+1 .. 9n+9
		assert.InDelta(t, float64(81*n+45), rho[n], 1e-12)
	}
}

func TestCollide_AtEquilibrium_IsFixedPoint(t *testing.T) {
	lm := newTestLattice(t, 3, 3)
	cm := newTestNS(t, lm, nil)
	df := append([]Populations(nil), cm.Edf...)
	cm.Collide(df, true)
	assert.Equal(t, cm.Edf, df)
}

func TestCollide_RelaxesByOneOverTau(t *testing.T) {
	lm := newTestLattice(t, 1, 1)
	cm := newTestNS(t, lm, nil)
	df := []Populations{cm.Edf[0]}
	df[0][East] += 0.3
	cm.Collide(df, false)
	assert.InDelta(t, cm.Edf[0][East]+0.3*(1-1/cm.Tau()), df[0][East], 1e-15)
}

func TestAddNodeToSkip_Idempotent_SkippedNodeUntouched(t *testing.T) {
	// GIVEN a node skipped twice
	lm := newTestLattice(t, 2, 2)
	cm := newTestNS(t, lm, nil)
	cm.AddNodeToSkip(1)
	cm.AddNodeToSkip(1)
	assert.True(t, cm.IsSkipped(1))
	assert.False(t, cm.IsSkipped(0))

	// WHEN colliding a non-equilibrium field
	df := patternField(4)
	before := df[1]
	cm.Collide(df, true)

	// THEN the skipped node keeps its populations
	assert.Equal(t, before, df[1])
	assert.NotEqual(t, patternField(4)[0], df[0])
}

func TestClearSkipped(t *testing.T) {
	lm := newTestLattice(t, 2, 2)
	cm := newTestNS(t, lm, nil)
	cm.AddNodeToSkip(0)
	cm.AddNodeToSkip(3)

	cm.ClearSkipped()

	for n := 0; n < 4; n++ {
		assert.False(t, cm.IsSkipped(n), "node %d", n)
	}
}

func TestCollide_ScalarSource_AddsRateTimesDt(t *testing.T) {
	// GIVEN a scalar source of rate 50 at node (1, 1)
	lm := newTestLattice(t, 3, 3)
	src, err := NewScalarSource(lm, [][2]int{{1, 1}}, []float64{50})
	require.NoError(t, err)
	cm := newTestCD(t, lm, src)
	df := append([]Populations(nil), cm.Edf...)

	// WHEN colliding with and without the source
	cm.Collide(df, false)
	assert.InDelta(t, 0, totalMass(df), 1e-15)
	cm.Collide(df, true)

	// THEN the node gains dt*q spread by the weights
	n := lm.Index(1, 1)
	assert.InDelta(t, 50*lm.TimeStep(), df[n].Sum(), 1e-12)
	assert.InDelta(t, 50*lm.TimeStep()*lm.W[North], df[n][North], 1e-15)
	assert.InDelta(t, 50*lm.TimeStep(), totalMass(df), 1e-12)
}
