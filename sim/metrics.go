// Tracks run-wide solver statistics such as mass drift and peak speed.

package sim

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Metrics aggregates statistics about the run for final reporting.
type Metrics struct {
	Steps         int           // steps taken, including any before a restore
	SimulatedTime float64       // Steps * dt
	WallTime      time.Duration // time spent in Run

	InitialMassNS float64 // total momentum density before the first step
	FinalMassNS   float64
	InitialMassCD float64 // total scalar before the first step
	FinalMassCD   float64

	PeakSpeed float64 // max |u| seen after any step
	PeakStep  int     // step at which PeakSpeed was reached
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) observe(st StepStats) {
	if st.MaxSpeed > m.PeakSpeed {
		m.PeakSpeed = st.MaxSpeed
		m.PeakStep = st.Step
	}
}

// MassDriftNS returns the relative change of total momentum density.
func (m *Metrics) MassDriftNS() float64 {
	return relDrift(m.InitialMassNS, m.FinalMassNS)
}

// MassDriftCD returns the relative change of total scalar.
func (m *Metrics) MassDriftCD() float64 {
	return relDrift(m.InitialMassCD, m.FinalMassCD)
}

func relDrift(initial, final float64) float64 {
	if initial == 0 {
		return final
	}
	return (final - initial) / initial
}

// Print displays aggregated metrics at the end of the run.
func (m *Metrics) Print() {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Steps                : %d\n", m.Steps)
	fmt.Printf("Simulated Time       : %.6g\n", m.SimulatedTime)
	fmt.Printf("Wall Time            : %s\n", m.WallTime.Round(time.Millisecond))
	if m.Steps > 0 && m.WallTime > 0 {
		fmt.Printf("Steps per Second     : %.1f\n", float64(m.Steps)/m.WallTime.Seconds())
	}
	if m.InitialMassNS != 0 {
		fmt.Printf("Mass NS (start/end)  : %.9g / %.9g (drift %.3e)\n", m.InitialMassNS, m.FinalMassNS, m.MassDriftNS())
	}
	if m.InitialMassCD != 0 || m.FinalMassCD != 0 {
		fmt.Printf("Mass CD (start/end)  : %.9g / %.9g\n", m.InitialMassCD, m.FinalMassCD)
	}
	fmt.Printf("Peak Speed           : %.6g (step %d)\n", m.PeakSpeed, m.PeakStep)
}

func mass(rho []float64) float64 {
	return floats.Sum(rho)
}

func maxSpeed(u []Vec2) float64 {
	var peak float64
	for _, v := range u {
		peak = math.Max(peak, math.Hypot(v[0], v[1]))
	}
	return peak
}
