package metrics

import (
	"math"

	"github.com/san-kum/forcesim/internal/dynamo"
)

// Kinetic sums 0.5*m*v^2 over non-fixed bodies.
func Kinetic(bodies []*dynamo.Body) float64 {
	ke := 0.0
	for _, b := range bodies {
		if b.Fixed {
			continue
		}
		ke += 0.5 * b.Mass * b.Velocity.MagnitudeSq()
	}
	return ke
}

// Potential is a flat-field approximation m*|g.y|*y over non-fixed bodies.
// Only the vertical gravity component counts.
func Potential(bodies []*dynamo.Body, gravity dynamo.Vec2) float64 {
	g := math.Abs(gravity.Y)
	pe := 0.0
	for _, b := range bodies {
		if b.Fixed {
			continue
		}
		pe += b.Mass * g * b.Position.Y
	}
	return pe
}

func Total(bodies []*dynamo.Body, gravity dynamo.Vec2) float64 {
	return Kinetic(bodies) + Potential(bodies, gravity)
}

// EnergyDrift tracks the largest relative deviation of total energy from the
// first observed frame.
type EnergyDrift struct {
	name     string
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(f *dynamo.Frame) {
	energy := f.Metrics.TotalEnergy
	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++

	if e.initial != 0 {
		drift := math.Abs(energy-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}

// MeanEnergy averages total energy over observed frames.
type MeanEnergy struct {
	name    string
	total   float64
	samples int
}

func NewMeanEnergy() *MeanEnergy {
	return &MeanEnergy{name: "energy"}
}

func (m *MeanEnergy) Name() string { return m.name }

func (m *MeanEnergy) Observe(f *dynamo.Frame) {
	m.total += f.Metrics.TotalEnergy
	m.samples++
}

func (m *MeanEnergy) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.total / float64(m.samples)
}

func (m *MeanEnergy) Reset() {
	m.total = 0
	m.samples = 0
}
