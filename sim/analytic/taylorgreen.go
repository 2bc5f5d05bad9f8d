package analytic

import (
	"context"
	"math"

	"github.com/lattice-sim/lattice-sim/sim"
)

// TaylorGreenVelocity is the decaying vortex
//
//	u = -u0 cos(kx) sin(ky) e^{-2 nu k^2 t}
//	v =  u0 sin(kx) cos(ky) e^{-2 nu k^2 t}
func TaylorGreenVelocity(u0, k, nu, x, y, t float64) sim.Vec2 {
	decay := math.Exp(-2 * nu * k * k * t)
	return sim.Vec2{
		-u0 * math.Cos(k*x) * math.Sin(k*y) * decay,
		u0 * math.Sin(k*x) * math.Cos(k*y) * decay,
	}
}

// TaylorGreenDensity is the density matching the vortex pressure at t=0:
// rho0 - rho0 u0^2/(4 cs^2) (cos 2kx + cos 2ky).
func TaylorGreenDensity(rho0, u0, k, csSqr, x, y float64) float64 {
	return rho0 - rho0*u0*u0/(4*csSqr)*(math.Cos(2*k*x)+math.Cos(2*k*y))
}

// TaylorGreen initialises one vortex period on a fully periodic square grid
// and compares the velocity field after Steps steps with the exact decay.
// Errors are relative to the decayed amplitude.
type TaylorGreen struct {
	Size      int
	Dx, Dt    float64
	Viscosity float64
	U0        float64
	Steps     int
	Tolerance float64
}

// DefaultTaylorGreen is a 32x32 vortex with u0=0.1 and tau=0.8.
func DefaultTaylorGreen() *TaylorGreen {
	return &TaylorGreen{
		Size: 32, Dx: 0.01, Dt: 0.001,
		Viscosity: 0.01, U0: 0.1, Steps: 100, Tolerance: 0.01,
	}
}

func (b *TaylorGreen) Name() string { return "taylor-green" }

func (b *TaylorGreen) wavenumber() float64 {
	return 2 * math.Pi / (float64(b.Size) * b.Dx)
}

// position of node coordinate i, at cell centres.
func (b *TaylorGreen) position(i int) float64 {
	return (float64(i) + 0.5) * b.Dx
}

// Build returns the simulator with the t=0 vortex imposed.
func (b *TaylorGreen) Build() (*sim.Simulator, error) {
	k := b.wavenumber()
	n := b.Size * b.Size
	u := make([]sim.Vec2, n)
	for idx := range u {
		x, y := b.position(idx%b.Size), b.position(idx/b.Size)
		u[idx] = TaylorGreenVelocity(b.U0, k, b.Viscosity, x, y, 0)
	}
	lm, err := sim.NewLatticeD2Q9Field(b.Size, b.Size, b.Dx, b.Dt, u)
	if err != nil {
		return nil, err
	}
	rho := make([]float64, n)
	for idx := range rho {
		x, y := b.position(idx%b.Size), b.position(idx/b.Size)
		rho[idx] = TaylorGreenDensity(1, b.U0, k, lm.SoundSpeedSqr(), x, y)
	}
	ns, err := sim.NewCollisionNS(lm, b.Viscosity, rho, nil)
	if err != nil {
		return nil, err
	}
	return sim.NewSimulator(sim.SimConfig{
		TotalTime: float64(b.Steps) * b.Dt,
		NS:        true,
		Topology:  sim.TopologyPeriodic,
	}, lm, ns, nil)
}

// Run evolves the vortex and compares both velocity components.
func (b *TaylorGreen) Run(ctx context.Context) (Report, error) {
	s, err := b.Build()
	if err != nil {
		return Report{}, err
	}
	if err := s.Run(ctx); err != nil {
		return Report{}, err
	}
	k := b.wavenumber()
	t := s.Time()
	n := s.Lattice.NumNodes()
	got := make([]float64, 2*n)
	want := make([]float64, 2*n)
	for idx := 0; idx < n; idx++ {
		x, y := s.Lattice.Coords(idx)
		exact := TaylorGreenVelocity(b.U0, k, b.Viscosity, b.position(x), b.position(y), t)
		got[2*idx], got[2*idx+1] = s.Lattice.U[idx][0], s.Lattice.U[idx][1]
		want[2*idx], want[2*idx+1] = exact[0], exact[1]
	}
	amplitude := b.U0 * math.Exp(-2*b.Viscosity*k*k*t)
	maxErr, l2, mean := compare(got, want, amplitude)
	return Report{
		Benchmark: b.Name(), Steps: s.StepCount,
		MaxError: maxErr, L2Error: l2, MeanError: mean, Tolerance: b.Tolerance,
	}, nil
}

// Amplitude projects the current velocity field onto the initial vortex
// shape; for an exact solution it equals e^{-2 nu k^2 t}.
func (b *TaylorGreen) Amplitude(s *sim.Simulator) float64 {
	k := b.wavenumber()
	var num, den float64
	for idx, u := range s.Lattice.U {
		x, y := s.Lattice.Coords(idx)
		shape := TaylorGreenVelocity(b.U0, k, b.Viscosity, b.position(x), b.position(y), 0)
		num += u.Dot(shape)
		den += shape.Dot(shape)
	}
	return num / den
}
