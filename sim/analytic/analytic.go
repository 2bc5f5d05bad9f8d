// Package analytic holds closed-form solutions and the benchmark scenarios
// that compare the solver against them: point-source diffusion, forced
// Poiseuille flow, and the decaying Taylor-Green vortex.
package analytic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Report is the outcome of one benchmark. MaxError is the worst pointwise
// error normalised by the benchmark's reference scale.
type Report struct {
	Benchmark string
	Steps     int
	MaxError  float64
	L2Error   float64 // ||sim - exact|| / ||exact||
	MeanError float64 // mean absolute error, unnormalised
	Tolerance float64

	// MaxAbsError is the worst unnormalised error, checked against
	// AbsTolerance when that is positive.
	MaxAbsError  float64
	AbsTolerance float64
}

// Passed reports whether MaxError is within Tolerance and, when set,
// MaxAbsError within AbsTolerance.
func (r Report) Passed() bool {
	if r.AbsTolerance > 0 && r.MaxAbsError > r.AbsTolerance {
		return false
	}
	return r.MaxError <= r.Tolerance
}

func (r Report) String() string {
	status := "PASS"
	if !r.Passed() {
		status = "FAIL"
	}
	out := fmt.Sprintf("%-12s %s steps=%d max=%.4f%% l2=%.4f%% mean=%.3g tol=%.2f%%",
		r.Benchmark, status, r.Steps, 100*r.MaxError, 100*r.L2Error, r.MeanError, 100*r.Tolerance)
	if r.AbsTolerance > 0 {
		out += fmt.Sprintf(" abs=%.3g abs_tol=%.3g", r.MaxAbsError, r.AbsTolerance)
	}
	return out
}

// Benchmark builds a scenario, runs it and compares against its exact
// solution.
type Benchmark interface {
	Name() string
	Run(ctx context.Context) (Report, error)
}

// Default returns the standard benchmark set.
func Default() []Benchmark {
	return []Benchmark{DefaultDiffusion(), DefaultPoiseuille(), DefaultTaylorGreen()}
}

// Select picks benchmarks by name. An empty list selects all of them.
func Select(names []string) ([]Benchmark, error) {
	all := Default()
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]Benchmark, len(all))
	for _, b := range all {
		byName[b.Name()] = b
	}
	var out []Benchmark
	for _, name := range names {
		b, ok := byName[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown benchmark %q; valid: %s", name, strings.Join(Names(), ", "))
		}
		out = append(out, b)
	}
	return out, nil
}

// Names lists the standard benchmark names, sorted.
func Names() []string {
	var names []string
	for _, b := range Default() {
		names = append(names, b.Name())
	}
	sort.Strings(names)
	return names
}

// compare fills the error norms of got against want. scale normalises the
// pointwise maximum; zero means normalise each point by |want|.
func compare(got, want []float64, scale float64) (maxErr, l2, mean float64) {
	diff := make([]float64, len(got))
	floats.SubTo(diff, got, want)
	abs := make([]float64, len(diff))
	for i, d := range diff {
		abs[i] = math.Abs(d)
	}
	if scale > 0 {
		maxErr = floats.Max(abs) / scale
	} else {
		for i, a := range abs {
			maxErr = max(maxErr, a/math.Abs(want[i]))
		}
	}
	if norm := floats.Norm(want, 2); norm > 0 {
		l2 = floats.Norm(diff, 2) / norm
	}
	return maxErr, l2, stat.Mean(abs, nil)
}
