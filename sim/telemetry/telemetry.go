// Package telemetry exports solver progress as Prometheus metrics. The
// Observer is a sim.StepObserver; its registry can be written to a
// node-exporter textfile at the end of a run.
package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lattice-sim/lattice-sim/sim"
)

// ErrRegistrationFailed is returned when a collector cannot be registered.
var ErrRegistrationFailed = errors.New("metric registration failed")

// Config names the metrics and picks the registry they live in.
type Config struct {
	Namespace string               // default "lattice_sim"
	Subsystem string               // default "solver"
	Registry  *prometheus.Registry // default: a fresh registry
	RunLabel  string               // constant "run" label, optional
}

// Observer records per-step solver statistics.
type Observer struct {
	registry *prometheus.Registry

	steps        prometheus.Counter
	step         prometheus.Gauge
	simTime      prometheus.Gauge
	mass         *prometheus.GaugeVec
	maxSpeed     prometheus.Gauge
	stepDuration prometheus.Histogram

	last time.Time
}

// NewObserver registers the solver collectors.
func NewObserver(cfg Config) (*Observer, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = "lattice_sim"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "solver"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	var constLabels prometheus.Labels
	if cfg.RunLabel != "" {
		constLabels = prometheus.Labels{"run": cfg.RunLabel}
	}

	o := &Observer{
		registry: cfg.Registry,
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, ConstLabels: constLabels,
			Name: "steps_total",
			Help: "Time steps completed",
		}),
		step: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, ConstLabels: constLabels,
			Name: "step",
			Help: "Index of the last completed step",
		}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, ConstLabels: constLabels,
			Name: "simulated_time",
			Help: "Simulated time of the last completed step",
		}),
		mass: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, ConstLabels: constLabels,
			Name: "total_mass",
			Help: "Zeroth moment summed over the grid, by equation",
		}, []string{"equation"}),
		maxSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, ConstLabels: constLabels,
			Name: "max_speed",
			Help: "Largest velocity magnitude on the grid",
		}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, ConstLabels: constLabels,
			Name:    "step_duration_seconds",
			Help:    "Wall time between consecutive steps",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
	}

	for _, c := range []prometheus.Collector{o.steps, o.step, o.simTime, o.mass, o.maxSpeed, o.stepDuration} {
		if err := cfg.Registry.Register(c); err != nil {
			return nil, errors.Join(ErrRegistrationFailed, err)
		}
	}
	return o, nil
}

// Registry returns the registry holding the solver metrics.
func (o *Observer) Registry() *prometheus.Registry { return o.registry }

// ObserveStep implements sim.StepObserver.
func (o *Observer) ObserveStep(st sim.StepStats) {
	now := time.Now()
	if !o.last.IsZero() {
		o.stepDuration.Observe(now.Sub(o.last).Seconds())
	}
	o.last = now

	o.steps.Inc()
	o.step.Set(float64(st.Step))
	o.simTime.Set(st.Time)
	o.mass.WithLabelValues(string(sim.EquationMomentum)).Set(st.MassNS)
	o.mass.WithLabelValues(string(sim.EquationScalar)).Set(st.MassCD)
	o.maxSpeed.Set(st.MaxSpeed)
}

// WriteTextfile writes the registry in the text exposition format.
func (o *Observer) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, o.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
