package sim

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every construction-time validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Topology selects how the top and bottom edges of the grid behave.
// Left and right edges are always periodic.
type Topology string

const (
	// TopologyChannel applies bounceback (no-slip walls) at top and bottom.
	TopologyChannel Topology = "channel"
	// TopologyPeriodic wraps top and bottom as well, for fully periodic
	// benchmarks such as the Taylor-Green vortex.
	TopologyPeriodic Topology = "periodic"
)

// ValidTopologies is the set of recognized topology names.
var ValidTopologies = map[Topology]bool{"": true, TopologyChannel: true, TopologyPeriodic: true}

// SourceActivation selects when the scalar source is injected.
type SourceActivation string

const (
	// SourceInstant injects the scalar source on the first step only.
	SourceInstant SourceActivation = "instant"
	// SourceContinuous injects the scalar source on every step.
	SourceContinuous SourceActivation = "continuous"
)

// ValidSourceActivations is the set of recognized activation names.
var ValidSourceActivations = map[SourceActivation]bool{"": true, SourceInstant: true, SourceContinuous: true}

// SimConfig groups the parameters fixed for one run.
type SimConfig struct {
	TotalTime    float64          // simulated time, > 0
	LidSpeed     float64          // x-velocity of the top row when Lid is set; |LidSpeed| < c
	Obstacles    [][2]int         // obstacle node positions (x, y), used when HasObstacles is set
	NS           bool             // evolve the momentum equation
	CD           bool             // evolve the scalar equation
	Topology     Topology         // top/bottom edge behaviour, default channel
	Lid          bool             // impose LidSpeed on the top row with Zou-He nodes
	Source       SourceActivation // scalar source activation, default instant
	HasObstacles bool
	SampleEvery  int // ResultWriter cadence in steps; 0 disables sampling

	// SampleDistributions adds copies of the distribution fields to every
	// Sample.
	SampleDistributions bool
}

// Validate checks the run parameters against the lattice they will run on.
func (c SimConfig) Validate(lm *LatticeModel) error {
	if c.TotalTime <= 0 {
		return fmt.Errorf("%w: total time must be positive, got %g", ErrInvalidConfig, c.TotalTime)
	}
	if lm == nil || lm.NumNodes() == 0 || lm.TimeStep() <= 0 || lm.SpaceStep() <= 0 {
		return fmt.Errorf("%w: lattice dimensions and steps must be non-zero", ErrInvalidConfig)
	}
	if !c.NS && !c.CD {
		return fmt.Errorf("%w: at least one of the momentum and scalar equations must be enabled", ErrInvalidConfig)
	}
	if !ValidTopologies[c.Topology] {
		return fmt.Errorf("%w: unknown topology %q", ErrInvalidConfig, c.Topology)
	}
	if !ValidSourceActivations[c.Source] {
		return fmt.Errorf("%w: unknown source activation %q", ErrInvalidConfig, c.Source)
	}
	if c.SampleEvery < 0 {
		return fmt.Errorf("%w: sample cadence must be non-negative, got %d", ErrInvalidConfig, c.SampleEvery)
	}
	if c.Lid {
		if !c.NS {
			return fmt.Errorf("%w: lid boundary requires the momentum equation", ErrInvalidConfig)
		}
		if c.Topology == TopologyPeriodic {
			return fmt.Errorf("%w: lid boundary needs a channel topology", ErrInvalidConfig)
		}
	}
	if c.HasObstacles {
		for _, p := range c.Obstacles {
			if !lm.Contains(p[0], p[1]) {
				return fmt.Errorf("%w: obstacle (%d, %d) outside %dx%d lattice", ErrInvalidConfig, p[0], p[1], lm.NumCols(), lm.NumRows())
			}
		}
	}
	return nil
}

func (c SimConfig) topology() Topology {
	if c.Topology == "" {
		return TopologyChannel
	}
	return c.Topology
}

func (c SimConfig) sourceActivation() SourceActivation {
	if c.Source == "" {
		return SourceInstant
	}
	return c.Source
}
