// sim/simulator.go
package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Sample is a copy of the macroscopic fields handed to a ResultWriter.
type Sample struct {
	Step          int
	Time          float64
	Rows, Cols    int
	Density       []float64 // momentum density, nil without the momentum equation
	Concentration []float64 // scalar field, nil without the scalar equation
	Velocity      []Vec2
	// DF and DG are the momentum and scalar distribution fields, set only
	// with SimConfig.SampleDistributions and an enabled equation.
	DF, DG []Populations
}

// ResultWriter persists samples of a run. Run does not close the writer.
type ResultWriter interface {
	Write(s Sample) error
	Close() error
}

// StepStats summarizes one completed step for observers.
type StepStats struct {
	Step     int
	Time     float64
	MassNS   float64 // total momentum density, 0 without the momentum equation
	MassCD   float64 // total scalar, 0 without the scalar equation
	MaxSpeed float64
}

// StepObserver is notified after every step of Run.
type StepObserver interface {
	ObserveStep(st StepStats)
}

// Simulator owns the distribution fields of one run and evolves them.
type Simulator struct {
	Config  SimConfig
	Lattice *LatticeModel
	NS      *CollisionModel // nil when the momentum equation is off
	CD      *CollisionModel // nil when the scalar equation is off

	// DF and DG are the momentum and scalar distribution fields.
	DF []Populations
	DG []Populations
	// BoundaryF and BoundaryG hold the halo values of the last step.
	BoundaryF *Boundary
	BoundaryG *Boundary

	Obstacles []bool
	Lid       *ZouHeNodes // nil unless Config.Lid
	StepCount int
	Metrics   *Metrics

	streamer  *Streamer
	writer    ResultWriter
	observers []StepObserver
}

// NewSimulator validates the configuration against the lattice and the
// collision models and prepares the initial fields. Both distribution fields
// start at their equilibrium. The lattice and models are shared, not copied:
// obstacle nodes get zero velocity on lm and are the only skipped nodes of
// ns and cd afterwards.
func NewSimulator(cfg SimConfig, lm *LatticeModel, ns, cd *CollisionModel) (*Simulator, error) {
	if err := cfg.Validate(lm); err != nil {
		return nil, err
	}
	if cfg.NS {
		if err := checkModel(ns, EquationMomentum, lm); err != nil {
			return nil, err
		}
	}
	if cfg.CD {
		if err := checkModel(cd, EquationScalar, lm); err != nil {
			return nil, err
		}
	}

	sim := &Simulator{
		Config:  cfg,
		Lattice: lm,
		Metrics: NewMetrics(),
	}
	if cfg.NS {
		sim.NS = ns
	}
	if cfg.CD {
		sim.CD = cd
	}

	// Models may come from an earlier run; their skip set is rebuilt from
	// this configuration's obstacles.
	for _, cm := range []*CollisionModel{sim.NS, sim.CD} {
		if cm != nil {
			cm.ClearSkipped()
		}
	}
	if cfg.HasObstacles {
		sim.Obstacles = make([]bool, lm.NumNodes())
		for _, p := range cfg.Obstacles {
			n := lm.Index(p[0], p[1])
			sim.Obstacles[n] = true
			lm.U[n] = Vec2{}
			if sim.NS != nil {
				sim.NS.AddNodeToSkip(n)
			}
			if sim.CD != nil {
				sim.CD.AddNodeToSkip(n)
			}
		}
	}
	sim.streamer = NewStreamer(lm, cfg.topology(), sim.Obstacles)

	if sim.NS != nil {
		sim.NS.ComputeEq()
		sim.DF = append([]Populations(nil), sim.NS.Edf...)
		sim.Metrics.InitialMassNS = mass(sim.NS.Rho)
	}
	if sim.CD != nil {
		sim.CD.ComputeEq()
		sim.DG = append([]Populations(nil), sim.CD.Edf...)
		sim.Metrics.InitialMassCD = mass(sim.CD.Rho)
	}

	if cfg.Lid {
		sim.Lid = NewZouHeNodes(lm, sim.NS)
		top := lm.NumRows() - 1
		for x := 0; x < lm.NumCols(); x++ {
			if err := sim.Lid.AddSideNode(x, top, SideTop, cfg.LidSpeed, 0); err != nil {
				return nil, err
			}
		}
	}
	return sim, nil
}

func checkModel(cm *CollisionModel, eq Equation, lm *LatticeModel) error {
	if cm == nil {
		return fmt.Errorf("%w: %s equation enabled without a collision model", ErrInvalidConfig, eq)
	}
	if cm.Equation != eq {
		return fmt.Errorf("%w: collision model solves %q, expected %q", ErrInvalidConfig, cm.Equation, eq)
	}
	if cm.Lattice() != lm {
		return fmt.Errorf("%w: %s collision model built on a different lattice", ErrInvalidConfig, eq)
	}
	return nil
}

// SetResultWriter installs the writer Run samples into.
func (sim *Simulator) SetResultWriter(w ResultWriter) {
	sim.writer = w
}

// AddObserver registers a per-step observer.
func (sim *Simulator) AddObserver(o StepObserver) {
	sim.observers = append(sim.observers, o)
}

// NumSteps is the number of steps Run performs, TotalTime/dt rounded to the
// nearest integer.
func (sim *Simulator) NumSteps() int {
	return int(math.Round(sim.Config.TotalTime / sim.Lattice.TimeStep()))
}

// Time returns the simulated time of the current step.
func (sim *Simulator) Time() float64 {
	return float64(sim.StepCount) * sim.Lattice.TimeStep()
}

// TakeStep advances every enabled equation by one time step. The momentum
// equation goes first so the scalar equilibrium sees the updated velocity.
func (sim *Simulator) TakeStep() {
	sim.StepCount++
	if sim.NS != nil {
		sim.stepNS()
	}
	if sim.CD != nil {
		sim.stepCD()
	}
}

func (sim *Simulator) stepNS() {
	sim.BoundaryF = sim.streamer.BoundaryCondition(sim.DF)
	df := sim.streamer.Stream(sim.DF, sim.BoundaryF)
	if sim.Lid != nil {
		sim.Lid.UpdateNodes(df)
	}
	sim.NS.Rho = sim.NS.ComputeRho(df)
	sim.updateVelocity(df)
	sim.NS.ComputeEq()
	sim.NS.Collide(df, true)
	sim.DF = df
}

func (sim *Simulator) stepCD() {
	sim.BoundaryG = sim.streamer.BoundaryCondition(sim.DG)
	dg := sim.streamer.Stream(sim.DG, sim.BoundaryG)
	sim.CD.Rho = sim.CD.ComputeRho(dg)
	sim.CD.ComputeEq()
	active := sim.Config.sourceActivation() == SourceContinuous || sim.StepCount == 1
	sim.CD.Collide(dg, active)
	sim.DG = dg
}

// updateVelocity takes the first moment of df over the density, with the
// half-step correction dt*F/2 when the momentum source is a body force.
// Obstacle and empty nodes are at rest.
func (sim *Simulator) updateVelocity(df []Populations) {
	lm := sim.Lattice
	force, _ := sim.NS.Source().(ForceField)
	half := 0.5 * lm.TimeStep()
	for n := range df {
		rho := sim.NS.Rho[n]
		if (sim.Obstacles != nil && sim.Obstacles[n]) || rho == 0 {
			lm.U[n] = Vec2{}
			continue
		}
		var m Vec2
		for i := range df[n] {
			m[0] += lm.E[i][0] * df[n][i]
			m[1] += lm.E[i][1] * df[n][i]
		}
		if force != nil {
			f := force.Force(n)
			m[0] += half * f[0]
			m[1] += half * f[1]
		}
		lm.U[n] = Vec2{m[0] / rho, m[1] / rho}
	}
}

// Stats summarizes the current step.
func (sim *Simulator) Stats() StepStats {
	st := StepStats{Step: sim.StepCount, Time: sim.Time(), MaxSpeed: maxSpeed(sim.Lattice.U)}
	if sim.NS != nil {
		st.MassNS = mass(sim.NS.Rho)
	}
	if sim.CD != nil {
		st.MassCD = mass(sim.CD.Rho)
	}
	return st
}

// Sample copies the current macroscopic fields.
func (sim *Simulator) Sample() Sample {
	s := Sample{
		Step:     sim.StepCount,
		Time:     sim.Time(),
		Rows:     sim.Lattice.NumRows(),
		Cols:     sim.Lattice.NumCols(),
		Velocity: append([]Vec2(nil), sim.Lattice.U...),
	}
	if sim.NS != nil {
		s.Density = append([]float64(nil), sim.NS.Rho...)
	}
	if sim.CD != nil {
		s.Concentration = append([]float64(nil), sim.CD.Rho...)
	}
	if sim.Config.SampleDistributions {
		if sim.NS != nil {
			s.DF = append([]Populations(nil), sim.DF...)
		}
		if sim.CD != nil {
			s.DG = append([]Populations(nil), sim.DG...)
		}
	}
	return s
}

func (sim *Simulator) write() error {
	if sim.writer == nil {
		return nil
	}
	if err := sim.writer.Write(sim.Sample()); err != nil {
		return fmt.Errorf("writing sample at step %d: %w", sim.StepCount, err)
	}
	return nil
}

// Run steps until NumSteps is reached. ctx is checked between steps only.
// With a writer and a positive SampleEvery, the initial state and every
// SampleEvery-th step are written. A restored simulator resumes from its
// step counter.
func (sim *Simulator) Run(ctx context.Context) error {
	total := sim.NumSteps()
	start := time.Now()
	logrus.Infof("[step %07d] Simulation started: %dx%d lattice, %d steps, tau_ns=%s tau_cd=%s",
		sim.StepCount, sim.Lattice.NumCols(), sim.Lattice.NumRows(), total, tauString(sim.NS), tauString(sim.CD))

	sampling := sim.writer != nil && sim.Config.SampleEvery > 0
	if sampling && sim.StepCount == 0 {
		if err := sim.write(); err != nil {
			return err
		}
	}
	for sim.StepCount < total {
		if err := ctx.Err(); err != nil {
			sim.finish(start)
			return err
		}
		sim.TakeStep()
		st := sim.Stats()
		if math.IsNaN(st.MassNS) || math.IsInf(st.MassNS, 0) || math.IsNaN(st.MassCD) || math.IsInf(st.MassCD, 0) {
			logrus.Warnf("[step %07d] non-finite total mass (ns=%g cd=%g)", st.Step, st.MassNS, st.MassCD)
		}
		sim.Metrics.observe(st)
		for _, o := range sim.observers {
			o.ObserveStep(st)
		}
		if sampling && sim.StepCount%sim.Config.SampleEvery == 0 {
			logrus.Debugf("[step %07d] sample t=%g max|u|=%g", st.Step, st.Time, st.MaxSpeed)
			if err := sim.write(); err != nil {
				return err
			}
		}
	}
	sim.finish(start)
	logrus.Infof("[step %07d] Simulation ended", sim.StepCount)
	return nil
}

func (sim *Simulator) finish(start time.Time) {
	sim.Metrics.WallTime += time.Since(start)
	sim.Metrics.Steps = sim.StepCount
	sim.Metrics.SimulatedTime = sim.Time()
	if sim.NS != nil {
		sim.Metrics.FinalMassNS = mass(sim.NS.Rho)
	}
	if sim.CD != nil {
		sim.Metrics.FinalMassCD = mass(sim.CD.Rho)
	}
}

func tauString(cm *CollisionModel) string {
	if cm == nil {
		return "off"
	}
	return fmt.Sprintf("%.4f", cm.Tau())
}

// State is everything needed to resume a run at a step boundary.
type State struct {
	Step     int
	DF, DG   []Populations
	RhoNS    []float64
	RhoCD    []float64
	Velocity []Vec2
}

// Snapshot copies the evolving state of the run.
func (sim *Simulator) Snapshot() *State {
	st := &State{
		Step:     sim.StepCount,
		DF:       append([]Populations(nil), sim.DF...),
		DG:       append([]Populations(nil), sim.DG...),
		Velocity: append([]Vec2(nil), sim.Lattice.U...),
	}
	if sim.NS != nil {
		st.RhoNS = append([]float64(nil), sim.NS.Rho...)
	}
	if sim.CD != nil {
		st.RhoCD = append([]float64(nil), sim.CD.Rho...)
	}
	return st
}

// Restore reinstates a snapshot taken from a simulator with the same
// configuration.
func (sim *Simulator) Restore(st *State) error {
	nodes := sim.Lattice.NumNodes()
	if len(st.Velocity) != nodes {
		return fmt.Errorf("%w: snapshot velocity has %d nodes, lattice has %d", ErrInvalidConfig, len(st.Velocity), nodes)
	}
	if sim.NS != nil && (len(st.DF) != nodes || len(st.RhoNS) != nodes) {
		return fmt.Errorf("%w: snapshot lacks the momentum field", ErrInvalidConfig)
	}
	if sim.CD != nil && (len(st.DG) != nodes || len(st.RhoCD) != nodes) {
		return fmt.Errorf("%w: snapshot lacks the scalar field", ErrInvalidConfig)
	}
	sim.StepCount = st.Step
	copy(sim.Lattice.U, st.Velocity)
	if sim.NS != nil {
		sim.DF = append([]Populations(nil), st.DF...)
		sim.NS.Rho = append([]float64(nil), st.RhoNS...)
		sim.NS.ComputeEq()
	}
	if sim.CD != nil {
		sim.DG = append([]Populations(nil), st.DG...)
		sim.CD.Rho = append([]float64(nil), st.RhoCD...)
		sim.CD.ComputeEq()
	}
	return nil
}
