package sim

import (
	"testing"
)

// newTestLattice builds a lattice with dx = 0.1, dt = 0.01 (c = 10) at rest.
func newTestLattice(t *testing.T, rows, cols int) *LatticeModel {
	t.Helper()
	lm, err := NewLatticeD2Q9(rows, cols, 0.1, 0.01, Vec2{})
	if err != nil {
		t.Fatalf("NewLatticeD2Q9: %v", err)
	}
	return lm
}

func newTestNS(t *testing.T, lm *LatticeModel, force *BodyForce) *CollisionModel {
	t.Helper()
	cm, err := NewCollisionNS(lm, 0.1, UniformDensity(lm.NumNodes(), 1.0), force)
	if err != nil {
		t.Fatalf("NewCollisionNS: %v", err)
	}
	return cm
}

func newTestCD(t *testing.T, lm *LatticeModel, src *ScalarSource) *CollisionModel {
	t.Helper()
	cm, err := NewCollisionCD(lm, 0.1, UniformDensity(lm.NumNodes(), 0.0), src)
	if err != nil {
		t.Fatalf("NewCollisionCD: %v", err)
	}
	return cm
}

// patternField fills every population with a distinct value so that any
// misrouted population shows up.
func patternField(n int) []Populations {
	df := make([]Populations, n)
	for k := range df {
		for i := range df[k] {
			df[k][i] = float64(k*NumDirections+i) + 1
		}
	}
	return df
}

func totalMass(df []Populations) float64 {
	var m float64
	for k := range df {
		m += df[k].Sum()
	}
	return m
}

// equilibrium returns the equilibrium populations of (rho, u) on lm.
func equilibrium(lm *LatticeModel, rho float64, u Vec2) Populations {
	c2 := lm.Speed() * lm.Speed()
	var p Populations
	for i := range p {
		eu := lm.E[i].Dot(u)
		p[i] = lm.W[i] * rho * (1 + 3*eu/c2 + 4.5*eu*eu/(c2*c2) - 1.5*u.Dot(u)/c2)
	}
	return p
}
