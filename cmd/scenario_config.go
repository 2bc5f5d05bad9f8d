package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/lattice-sim/lattice-sim/sim"
)

var scenarioValidate = validator.New(validator.WithRequiredStructEnabled())

// Scenario is one run described in YAML.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Scenario struct {
	Name      string          `yaml:"name" validate:"required"`
	TotalTime float64         `yaml:"total_time" validate:"gt=0"`
	Topology  string          `yaml:"topology" validate:"omitempty,oneof=channel periodic"`
	Lattice   LatticeConfig   `yaml:"lattice"`
	Momentum  *MomentumConfig `yaml:"momentum"`
	Scalar    *ScalarConfig   `yaml:"scalar"`
	Lid       *LidConfig      `yaml:"lid"`
	Obstacles [][2]int        `yaml:"obstacles"`
	Output    OutputConfig    `yaml:"output"`
}

// LatticeConfig sizes the grid. Velocity is the initial velocity of every node.
type LatticeConfig struct {
	Rows     int        `yaml:"rows" validate:"gt=0"`
	Cols     int        `yaml:"cols" validate:"gt=0"`
	Dx       float64    `yaml:"dx" validate:"gt=0"`
	Dt       float64    `yaml:"dt" validate:"gt=0"`
	Velocity [2]float64 `yaml:"velocity"`
}

// MomentumConfig enables the Navier-Stokes equation. Force applies to every
// node; Forces adds point forces on top.
type MomentumConfig struct {
	Viscosity float64      `yaml:"viscosity" validate:"gt=0"`
	Density   float64      `yaml:"density" validate:"gte=0"` // 0 means 1
	Force     [2]float64   `yaml:"force"`
	Forces    []PointForce `yaml:"forces" validate:"dive"`
}

type PointForce struct {
	X     int        `yaml:"x" validate:"gte=0"`
	Y     int        `yaml:"y" validate:"gte=0"`
	Force [2]float64 `yaml:"force"`
}

// ScalarConfig enables the convection-diffusion equation.
type ScalarConfig struct {
	Diffusivity float64       `yaml:"diffusivity" validate:"gt=0"`
	Background  float64       `yaml:"background" validate:"gte=0"`
	Activation  string        `yaml:"activation" validate:"omitempty,oneof=instant continuous"`
	Sources     []PointSource `yaml:"sources" validate:"dive"`
}

type PointSource struct {
	X        int     `yaml:"x" validate:"gte=0"`
	Y        int     `yaml:"y" validate:"gte=0"`
	Strength float64 `yaml:"strength"`
}

type LidConfig struct {
	Speed float64 `yaml:"speed"`
}

// OutputConfig sets the sampling and checkpoint cadences in steps.
type OutputConfig struct {
	SampleEvery     int  `yaml:"sample_every" validate:"gte=0"`
	CheckpointEvery int  `yaml:"checkpoint_every" validate:"gte=0"`
	KeepCheckpoints int  `yaml:"keep_checkpoints" validate:"gte=0"`
	Distributions   bool `yaml:"distributions"` // include distribution fields in samples
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// ParseScenario decodes YAML with strict field checking: typos must cause
// errors.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := scenarioValidate.Struct(&sc); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if sc.Momentum == nil && sc.Scalar == nil {
		return nil, errors.New("validate: at least one of momentum and scalar must be set")
	}
	return &sc, nil
}

// SimConfig maps the scenario onto the solver's run parameters.
func (sc *Scenario) SimConfig() sim.SimConfig {
	cfg := sim.SimConfig{
		TotalTime:    sc.TotalTime,
		NS:           sc.Momentum != nil,
		CD:           sc.Scalar != nil,
		Topology:     sim.Topology(sc.Topology),
		Obstacles:    sc.Obstacles,
		HasObstacles: len(sc.Obstacles) > 0,
		SampleEvery:  sc.Output.SampleEvery,

		SampleDistributions: sc.Output.Distributions,
	}
	if sc.Lid != nil {
		cfg.Lid = true
		cfg.LidSpeed = sc.Lid.Speed
	}
	if sc.Scalar != nil {
		cfg.Source = sim.SourceActivation(sc.Scalar.Activation)
	}
	return cfg
}

// Build constructs the lattice, the enabled collision models and the
// simulator.
func (sc *Scenario) Build() (*sim.Simulator, error) {
	lc := sc.Lattice
	lm, err := sim.NewLatticeD2Q9(lc.Rows, lc.Cols, lc.Dx, lc.Dt, sim.Vec2(lc.Velocity))
	if err != nil {
		return nil, err
	}

	var ns, cd *sim.CollisionModel
	if m := sc.Momentum; m != nil {
		rho := m.Density
		if rho == 0 {
			rho = 1
		}
		force, err := sc.bodyForce(lm)
		if err != nil {
			return nil, err
		}
		ns, err = sim.NewCollisionNS(lm, m.Viscosity, sim.UniformDensity(lm.NumNodes(), rho), force)
		if err != nil {
			return nil, err
		}
	}
	if s := sc.Scalar; s != nil {
		positions := make([][2]int, len(s.Sources))
		strengths := make([]float64, len(s.Sources))
		for k, src := range s.Sources {
			positions[k] = [2]int{src.X, src.Y}
			strengths[k] = src.Strength
		}
		source, err := sim.NewScalarSource(lm, positions, strengths)
		if err != nil {
			return nil, err
		}
		cd, err = sim.NewCollisionCD(lm, s.Diffusivity, sim.UniformDensity(lm.NumNodes(), s.Background), source)
		if err != nil {
			return nil, err
		}
	}
	return sim.NewSimulator(sc.SimConfig(), lm, ns, cd)
}

// bodyForce returns nil when the scenario applies no force at all.
func (sc *Scenario) bodyForce(lm *sim.LatticeModel) (*sim.BodyForce, error) {
	m := sc.Momentum
	if m.Force == [2]float64{} && len(m.Forces) == 0 {
		return nil, nil
	}
	total := make(map[[2]int]sim.Vec2)
	for _, p := range m.Forces {
		if !lm.Contains(p.X, p.Y) {
			return nil, fmt.Errorf("%w: force position (%d, %d) outside lattice", sim.ErrInvalidConfig, p.X, p.Y)
		}
		f := total[[2]int{p.X, p.Y}]
		total[[2]int{p.X, p.Y}] = sim.Vec2{f[0] + p.Force[0], f[1] + p.Force[1]}
	}
	positions := make([][2]int, 0, lm.NumNodes())
	strengths := make([]sim.Vec2, 0, lm.NumNodes())
	for y := 0; y < lm.NumRows(); y++ {
		for x := 0; x < lm.NumCols(); x++ {
			f := total[[2]int{x, y}]
			positions = append(positions, [2]int{x, y})
			strengths = append(strengths, sim.Vec2{m.Force[0] + f[0], m.Force[1] + f[1]})
		}
	}
	return sim.NewBodyForce(lm, positions, strengths)
}
