package analytic

import (
	"context"

	"github.com/lattice-sim/lattice-sim/sim"
)

// PoiseuilleVelocity is the steady streamwise velocity at height y of a
// channel of width h driven by force density f with kinematic viscosity nu:
// f/(2 nu) * y (h - y).
func PoiseuilleVelocity(f, nu, h, y float64) float64 {
	return f / (2 * nu) * y * (h - y)
}

// Poiseuille drives a channel with a uniform body force until it is close to
// steady and compares every node's x-velocity with the parabola. The walls
// sit half a node outside the first and last rows.
type Poiseuille struct {
	Rows, Cols int
	Dx, Dt     float64
	Viscosity  float64
	Force      float64
	Steps      int
	Tolerance  float64
}

// DefaultPoiseuille is a 34x18 channel with F=10 and nu=0.2 run for 1000 steps.
func DefaultPoiseuille() *Poiseuille {
	return &Poiseuille{
		Rows: 18, Cols: 34, Dx: 0.0316, Dt: 0.001,
		Viscosity: 0.2, Force: 10, Steps: 1000, Tolerance: 0.025,
	}
}

func (b *Poiseuille) Name() string { return "poiseuille" }

// Build returns the simulator.
func (b *Poiseuille) Build() (*sim.Simulator, error) {
	lm, err := sim.NewLatticeD2Q9(b.Rows, b.Cols, b.Dx, b.Dt, sim.Vec2{})
	if err != nil {
		return nil, err
	}
	ns, err := sim.NewCollisionNS(lm, b.Viscosity, sim.UniformDensity(lm.NumNodes(), 1), sim.NewUniformBodyForce(lm, sim.Vec2{b.Force, 0}))
	if err != nil {
		return nil, err
	}
	return sim.NewSimulator(sim.SimConfig{
		TotalTime: float64(b.Steps) * b.Dt,
		NS:        true,
		Topology:  sim.TopologyChannel,
	}, lm, ns, nil)
}

// Exact is the analytical x-velocity of row y.
func (b *Poiseuille) Exact(y int) float64 {
	h := float64(b.Rows) * b.Dx
	return PoiseuilleVelocity(b.Force, b.Viscosity, h, (float64(y)+0.5)*b.Dx)
}

// Run evolves the channel and reports the worst error relative to the local
// analytical velocity.
func (b *Poiseuille) Run(ctx context.Context) (Report, error) {
	s, err := b.Build()
	if err != nil {
		return Report{}, err
	}
	if err := s.Run(ctx); err != nil {
		return Report{}, err
	}
	got := make([]float64, s.Lattice.NumNodes())
	want := make([]float64, len(got))
	for k := range got {
		_, y := s.Lattice.Coords(k)
		got[k] = s.Lattice.U[k][0]
		want[k] = b.Exact(y)
	}
	maxErr, l2, mean := compare(got, want, 0)
	return Report{
		Benchmark: b.Name(), Steps: s.StepCount,
		MaxError: maxErr, L2Error: l2, MeanError: mean, Tolerance: b.Tolerance,
	}, nil
}
