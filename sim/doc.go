// Package sim provides the lattice-Boltzmann solver core for coupled
// momentum (Navier-Stokes) and scalar (convection-diffusion) transport on a
// 2D D2Q9 grid.
//
// # Reading Guide
//
// Start with these files to understand one time step:
//   - lattice.go: directions, velocity vectors, weights and the velocity field
//   - collision.go: equilibrium, zeroth moment and BGK relaxation with a source
//   - stream.go: halo assembly and pull streaming, wall and obstacle bounceback
//   - simulator.go: the step order and the run loop
//
// zouhe.go holds the prescribed-velocity boundary used by the lid, and
// source.go the two source strategies (Guo body force, scalar injection).
//
// # Architecture
//
// The sim package defines the solver and its extension interfaces;
// implementations of the outer surfaces live in sub-packages:
//   - sim/output/: ResultWriter implementations (VTK files, SQLite)
//   - sim/checkpoint/: Badger-backed snapshot store and step recorder
//   - sim/telemetry/: Prometheus StepObserver
//   - sim/analytic/: closed-form solutions, benchmark scenarios, error norms
//
// # Key Interfaces
//
//   - SourceStrategy: per-direction source term of a collision model
//   - ForceField: body force read by the velocity moment
//   - ResultWriter: receives sampled macroscopic fields
//   - StepObserver: receives per-step statistics
//
// A run is single-goroutine and deterministic. Distinct Simulators share no
// state and may run concurrently.
package sim
