package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZouHeNodes_Betas(t *testing.T) {
	lm := newTestLattice(t, 4, 4)
	zh := NewZouHeNodes(lm, newTestNS(t, lm, nil))
	b1, b2, b3 := zh.Betas()
	assert.InDelta(t, 1.0/30.0, b1, 1e-15)
	assert.InDelta(t, 0.05, b2, 1e-15)
	assert.InDelta(t, 0.05-1.0/30.0, b3, 1e-15)
}

func TestZouHeNodes_AddNode_Classification(t *testing.T) {
	lm := newTestLattice(t, 4, 4)
	tests := []struct {
		x, y   int
		corner bool
		id     int
	}{
		{3, 1, false, SideRight},
		{1, 3, false, SideTop},
		{0, 1, false, SideLeft},
		{1, 0, false, SideBottom},
		{0, 0, true, CornerBottomLeft},
		{3, 0, true, CornerBottomRight},
		{0, 3, true, CornerTopLeft},
		{3, 3, true, CornerTopRight},
	}
	for _, tc := range tests {
		zh := NewZouHeNodes(lm, newTestNS(t, lm, nil))
		require.NoError(t, zh.AddNode(tc.x, tc.y, 0.1, 0))
		require.Len(t, zh.Nodes, 1)
		node := zh.Nodes[0]
		assert.Equal(t, tc.corner, node.Corner, "(%d, %d)", tc.x, tc.y)
		assert.Equal(t, tc.id, node.ID, "(%d, %d)", tc.x, tc.y)
		assert.Equal(t, lm.Index(tc.x, tc.y), node.N)
		assert.Equal(t, Vec2{0.1, 0}, node.Velocity)
	}
}

func TestZouHeNodes_AddNode_NotOnBoundary(t *testing.T) {
	lm := newTestLattice(t, 4, 4)
	zh := NewZouHeNodes(lm, newTestNS(t, lm, nil))
	assert.ErrorIs(t, zh.AddNode(1, 2, 0, 0), ErrNotOnBoundary)
	assert.ErrorIs(t, zh.AddNode(4, 0, 0, 0), ErrNotOnBoundary)
	assert.Empty(t, zh.Nodes)
}

func TestZouHeNodes_AddSideNode(t *testing.T) {
	lm := newTestLattice(t, 4, 4)
	zh := NewZouHeNodes(lm, newTestNS(t, lm, nil))
	require.NoError(t, zh.AddSideNode(0, 3, SideTop, 0.5, 0))
	assert.False(t, zh.Nodes[0].Corner)
	assert.Equal(t, SideTop, zh.Nodes[0].ID)

	assert.ErrorIs(t, zh.AddSideNode(1, 1, SideTop, 0, 0), ErrNotOnBoundary)
	assert.ErrorIs(t, zh.AddSideNode(3, 1, 9, 0, 0), ErrInvalidConfig)
	assert.Len(t, zh.Nodes, 1)
}

func TestZouHeNodes_Side_RecoversEquilibrium(t *testing.T) {
	lm := newTestLattice(t, 4, 4)
	u := Vec2{0.8, 0.5}
	tests := []struct {
		name string
		x, y int
	}{
		{"right", 3, 1},
		{"top", 1, 3},
		{"left", 0, 2},
		{"bottom", 2, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// GIVEN a side node whose known populations are at equilibrium
			zh := NewZouHeNodes(lm, newTestNS(t, lm, nil))
			require.NoError(t, zh.AddNode(tc.x, tc.y, u[0], u[1]))
			want := equilibrium(lm, 1.05, u)
			df := make([]Populations, lm.NumNodes())
			df[zh.Nodes[0].N] = want
			for _, term := range sideFormulas[zh.Nodes[0].ID].terms {
				df[zh.Nodes[0].N][term.target] = -1
			}

			// WHEN reconstructing the unknowns
			zh.UpdateNodes(df)

			// THEN the node is back at equilibrium with the prescribed velocity
			for i := range want {
				assert.InDelta(t, want[i], df[zh.Nodes[0].N][i], 1e-12, "direction %v", Direction(i))
			}
		})
	}
}

func TestZouHeNodes_Side_NormalFlowReadsInteriorVelocity(t *testing.T) {
	// GIVEN a right side node registered at rest and a moving interior neighbour
	lm := newTestLattice(t, 4, 4)
	zh := NewZouHeNodes(lm, newTestNS(t, lm, nil))
	require.NoError(t, zh.AddNode(3, 1, 0, 0))
	u := Vec2{0.5, 0.2}
	lm.U[lm.Index(2, 1)] = u
	zh.ToggleNormalFlow()
	assert.True(t, zh.NormalFlow())

	want := equilibrium(lm, 0.97, u)
	df := make([]Populations, lm.NumNodes())
	df[zh.Nodes[0].N] = want
	df[zh.Nodes[0].N][West] = 0

	// WHEN reconstructing
	zh.UpdateNodes(df)

	// THEN the interior velocity is imposed
	for i := range want {
		assert.InDelta(t, want[i], df[zh.Nodes[0].N][i], 1e-12, "direction %v", Direction(i))
	}
}

func TestZouHeNodes_Corner_DensityExact(t *testing.T) {
	lm := newTestLattice(t, 4, 4)
	corners := []struct {
		x, y int
		a, b [2]int
	}{
		{0, 0, [2]int{0, 1}, [2]int{1, 0}},
		{3, 0, [2]int{3, 1}, [2]int{2, 0}},
		{0, 3, [2]int{0, 2}, [2]int{1, 3}},
		{3, 3, [2]int{3, 2}, [2]int{2, 3}},
	}
	for _, tc := range corners {
		// GIVEN neighbour densities 1.2 and 1.4
		cm := newTestNS(t, lm, nil)
		cm.Rho[lm.Index(tc.a[0], tc.a[1])] = 1.2
		cm.Rho[lm.Index(tc.b[0], tc.b[1])] = 1.4
		zh := NewZouHeNodes(lm, cm)
		require.NoError(t, zh.AddNode(tc.x, tc.y, 0.6, -0.3))
		df := make([]Populations, lm.NumNodes())
		df[lm.Index(tc.x, tc.y)] = equilibrium(lm, 1.1, Vec2{0.2, 0.1})

		// WHEN reconstructing
		zh.UpdateNodes(df)

		// THEN the node total is the mean neighbour density
		assert.InDelta(t, 1.3, df[lm.Index(tc.x, tc.y)].Sum(), 1e-12, "corner (%d, %d)", tc.x, tc.y)
	}
}

func TestZouHeNodes_Corner_RecoversKnownDirections(t *testing.T) {
	// GIVEN a bottom-left corner whose incoming populations are at equilibrium
	lm := newTestLattice(t, 4, 4)
	cm := newTestNS(t, lm, nil)
	u := Vec2{0.6, 0.3}
	zh := NewZouHeNodes(lm, cm)
	require.NoError(t, zh.AddNode(0, 0, u[0], u[1]))
	want := equilibrium(lm, 1.0, u)
	df := make([]Populations, lm.NumNodes())
	df[0] = want
	df[0][East], df[0][North], df[0][NorthEast] = 0, 0, 0

	zh.UpdateNodes(df)

	// THEN the directly reflected populations match equilibrium
	assert.InDelta(t, want[East], df[0][East], 1e-12)
	assert.InDelta(t, want[North], df[0][North], 1e-12)
	assert.InDelta(t, want[NorthEast], df[0][NorthEast], 1e-12)
}

func TestZouHeNodes_UnknownID_Panics(t *testing.T) {
	lm := newTestLattice(t, 4, 4)
	zh := NewZouHeNodes(lm, newTestNS(t, lm, nil))
	df := make([]Populations, lm.NumNodes())

	zh.Nodes = []ValueNode{{X: 3, Y: 1, N: lm.Index(3, 1), ID: 7}}
	assert.Panics(t, func() { zh.UpdateNodes(df) })

	zh.Nodes = []ValueNode{{X: 0, Y: 0, Corner: true, ID: -1}}
	assert.Panics(t, func() { zh.UpdateNodes(df) })
}
