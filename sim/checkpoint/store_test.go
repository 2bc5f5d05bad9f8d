package checkpoint

import (
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-sim/lattice-sim/sim"
)

func openTestStore(t *testing.T, keep int) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true, Keep: keep})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// newChannel builds a forced 6x4 channel with both equations enabled.
func newChannel(t *testing.T, totalTime float64) *sim.Simulator {
	t.Helper()
	lm, err := sim.NewLatticeD2Q9(4, 6, 0.1, 0.01, sim.Vec2{})
	require.NoError(t, err)
	ns, err := sim.NewCollisionNS(lm, 0.1, sim.UniformDensity(lm.NumNodes(), 1), sim.NewUniformBodyForce(lm, sim.Vec2{0.5, 0}))
	require.NoError(t, err)
	src, err := sim.NewScalarSource(lm, [][2]int{{2, 1}}, []float64{1})
	require.NoError(t, err)
	cd, err := sim.NewCollisionCD(lm, 0.1, sim.UniformDensity(lm.NumNodes(), 0), src)
	require.NoError(t, err)
	s, err := sim.NewSimulator(sim.SimConfig{TotalTime: totalTime, NS: true, CD: true, Source: sim.SourceContinuous}, lm, ns, cd)
	require.NoError(t, err)
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)

	_, err = Open(Config{InMemory: true, Keep: -1})
	assert.Error(t, err)
}

func TestOpen_PersistentDirectory(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s.Save("run", &sim.State{Step: 3, Velocity: []sim.Vec2{{1, 2}}}))
	require.NoError(t, s.Close())

	// Reopening the same directory sees the saved checkpoint.
	s, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer s.Close()
	st, err := s.Latest("run")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Step)
	assert.Equal(t, []sim.Vec2{{1, 2}}, st.Velocity)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := openTestStore(t, 0)
	s := newChannel(t, 0.05)
	for k := 0; k < 3; k++ {
		s.TakeStep()
	}
	want := s.Snapshot()

	require.NoError(t, store.Save("a", want))
	got, err := store.Load("a", 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_LoadMissing(t *testing.T) {
	store := openTestStore(t, 0)
	_, err := store.Load("a", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Latest("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LatestPicksHighestStepOfRun(t *testing.T) {
	store := openTestStore(t, 0)
	for _, step := range []int{5, 100, 20} {
		require.NoError(t, store.Save("a", &sim.State{Step: step}))
	}
	// A run whose name extends "a" must not leak into its prefix scan.
	require.NoError(t, store.Save("ab", &sim.State{Step: 999}))
	require.NoError(t, store.Save("b", &sim.State{Step: 7}))

	st, err := store.Latest("a")
	require.NoError(t, err)
	assert.Equal(t, 100, st.Step)

	steps, err := store.Steps("a")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 20, 100}, steps)
}

func TestStore_RunNameExtendedWithSeparator(t *testing.T) {
	// GIVEN two runs where one name is the other plus ":fine", pruning on
	store := openTestStore(t, 2)
	require.NoError(t, store.Save("cavity", &sim.State{Step: 10}))
	require.NoError(t, store.Save("cavity:fine", &sim.State{Step: 3}))

	// WHEN the shorter run saves again
	require.NoError(t, store.Save("cavity", &sim.State{Step: 20}))

	// THEN each run only sees its own checkpoints
	st, err := store.Latest("cavity")
	require.NoError(t, err)
	assert.Equal(t, 20, st.Step)
	steps, err := store.Steps("cavity")
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20}, steps)

	st, err = store.Latest("cavity:fine")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Step)
	steps, err = store.Steps("cavity:fine")
	require.NoError(t, err)
	assert.Equal(t, []int{3}, steps)
}

func TestStore_KeepPrunesOldest(t *testing.T) {
	store := openTestStore(t, 2)
	for step := 1; step <= 4; step++ {
		require.NoError(t, store.Save("a", &sim.State{Step: step}))
	}
	steps, err := store.Steps("a")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, steps)
}

func TestStore_DetectsCorruption(t *testing.T) {
	store := openTestStore(t, 0)
	require.NoError(t, store.Save("a", &sim.State{Step: 1, RhoNS: []float64{1, 2, 3}}))

	// Flip a payload byte behind the store's back.
	require.NoError(t, store.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key("a", 1))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		data[len(data)-1] ^= 0xFF
		return txn.Set(key("a", 1), data)
	}))

	_, err := store.Load("a", 1)
	assert.True(t, errors.Is(err, ErrCorrupted), "got %v", err)

	require.NoError(t, store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key("a", 2), []byte{1, 2})
	}))
	_, err = store.Latest("a")
	assert.ErrorIs(t, err, ErrCorrupted)
}
