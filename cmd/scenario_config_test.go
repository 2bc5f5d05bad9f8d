package cmd

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-sim/lattice-sim/sim"
)

const minimalScenario = `
name: tiny
total_time: 0.05
lattice: {rows: 4, cols: 6, dx: 0.1, dt: 0.01}
momentum: {viscosity: 0.1, force: [1, 0]}
`

func TestParseScenario_Minimal(t *testing.T) {
	sc, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "tiny", sc.Name)
	assert.Equal(t, [2]float64{1, 0}, sc.Momentum.Force)
	assert.Nil(t, sc.Scalar)

	cfg := sc.SimConfig()
	assert.True(t, cfg.NS)
	assert.False(t, cfg.CD)
	assert.False(t, cfg.Lid)
	assert.False(t, cfg.HasObstacles)
	assert.False(t, cfg.SampleDistributions)
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	// GIVEN a scenario with a typo in a lattice key
	data := []byte(minimalScenario + "output: {sample_evry: 10}\n")

	// WHEN parsing strictly
	_, err := ParseScenario(data)

	// THEN the typo is an error, not a silently ignored field
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample_evry")
}

func TestParseScenario_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", `
total_time: 1
lattice: {rows: 4, cols: 4, dx: 0.1, dt: 0.01}
momentum: {viscosity: 0.1}`},
		{"zero total time", `
name: x
lattice: {rows: 4, cols: 4, dx: 0.1, dt: 0.01}
momentum: {viscosity: 0.1}`},
		{"negative dt", `
name: x
total_time: 1
lattice: {rows: 4, cols: 4, dx: 0.1, dt: -0.01}
momentum: {viscosity: 0.1}`},
		{"unknown topology", `
name: x
total_time: 1
topology: torus
lattice: {rows: 4, cols: 4, dx: 0.1, dt: 0.01}
momentum: {viscosity: 0.1}`},
		{"zero diffusivity", `
name: x
total_time: 1
lattice: {rows: 4, cols: 4, dx: 0.1, dt: 0.01}
scalar: {diffusivity: 0}`},
		{"unknown activation", `
name: x
total_time: 1
lattice: {rows: 4, cols: 4, dx: 0.1, dt: 0.01}
scalar: {diffusivity: 0.1, activation: sometimes}`},
		{"negative source position", `
name: x
total_time: 1
lattice: {rows: 4, cols: 4, dx: 0.1, dt: 0.01}
scalar: {diffusivity: 0.1, sources: [{x: -1, y: 0, strength: 1}]}`},
		{"no equation", `
name: x
total_time: 1
lattice: {rows: 4, cols: 4, dx: 0.1, dt: 0.01}`},
		{"obstacle not a pair", `
name: x
total_time: 1
lattice: {rows: 4, cols: 4, dx: 0.1, dt: 0.01}
momentum: {viscosity: 0.1}
obstacles: [[1, 2, 3]]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestScenario_Build(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: coupled
total_time: 0.1
topology: channel
lattice: {rows: 5, cols: 8, dx: 0.1, dt: 0.01}
momentum:
  viscosity: 0.1
  density: 2
  force: [1, 0]
  forces: [{x: 3, y: 2, force: [0, 0.5]}]
scalar:
  diffusivity: 0.05
  activation: continuous
  sources: [{x: 1, y: 1, strength: 3}]
lid: {speed: 0.5}
obstacles: [[6, 2]]
output: {sample_every: 5, distributions: true}
`))
	require.NoError(t, err)

	s, err := sc.Build()
	require.NoError(t, err)
	require.NotNil(t, s.NS)
	require.NotNil(t, s.CD)
	require.NotNil(t, s.Lid)
	assert.Equal(t, 10, s.NumSteps())
	assert.True(t, s.Obstacles[s.Lattice.Index(6, 2)])
	assert.Equal(t, sim.SourceContinuous, s.Config.Source)
	assert.Equal(t, 5, s.Config.SampleEvery)
	assert.True(t, s.Config.SampleDistributions)

	force, ok := s.NS.Source().(*sim.BodyForce)
	require.True(t, ok)
	assert.Equal(t, sim.Vec2{1, 0}, force.Force(s.Lattice.Index(0, 0)))
	assert.Equal(t, sim.Vec2{1, 0.5}, force.Force(s.Lattice.Index(3, 2)))

	source, ok := s.CD.Source().(*sim.ScalarSource)
	require.True(t, ok)
	assert.Equal(t, 3.0, source.Rate(s.Lattice.Index(1, 1)))
	assert.Equal(t, 2.0, s.NS.Rho[s.Lattice.Index(0, 0)])
}

func TestScenario_BuildRejectsOutOfRange(t *testing.T) {
	base := `
name: x
total_time: 1
lattice: {rows: 4, cols: 4, dx: 0.1, dt: 0.01}
`
	for name, extra := range map[string]string{
		"force":    "momentum: {viscosity: 0.1, forces: [{x: 9, y: 0, force: [1, 0]}]}",
		"source":   "scalar: {diffusivity: 0.1, sources: [{x: 0, y: 9, strength: 1}]}",
		"obstacle": "momentum: {viscosity: 0.1}\nobstacles: [[4, 0]]",
	} {
		t.Run(name, func(t *testing.T) {
			sc, err := ParseScenario([]byte(base + extra))
			require.NoError(t, err)
			_, err = sc.Build()
			assert.True(t, errors.Is(err, sim.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestScenario_NoForceMeansNoSource(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: x
total_time: 1
lattice: {rows: 4, cols: 4, dx: 0.1, dt: 0.01}
momentum: {viscosity: 0.1}
`))
	require.NoError(t, err)
	s, err := sc.Build()
	require.NoError(t, err)
	assert.Nil(t, s.NS.Source())
}

func TestLoadScenario_ShippedScenarios(t *testing.T) {
	paths, err := filepath.Glob("../scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			sc, err := LoadScenario(path)
			require.NoError(t, err)
			_, err = sc.Build()
			require.NoError(t, err)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
