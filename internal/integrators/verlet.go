package integrators

import "github.com/san-kum/forcesim/internal/dynamo"

// Verlet is position Verlet. Velocity is not an input: motion comes from the
// displacement against the previous position, which the caller must carry
// between steps (the returned Previous). A missing previous position means zero
// initial displacement.
type Verlet struct{}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) Integrate(b *dynamo.Body, force dynamo.Vec2, dt float64, prev *dynamo.Vec2) dynamo.IntegrationState {
	if b.Fixed {
		return stationary(b)
	}

	x := b.Position
	xPrev := x
	if prev != nil {
		xPrev = *prev
	}

	acc := force.Scale(1 / b.Mass)
	displacement := x.Sub(xPrev).Scale(1 - b.Damping)
	next := x.Add(displacement).Add(acc.Scale(dt * dt))

	return dynamo.IntegrationState{
		Position: next,
		Velocity: next.Sub(x).Scale(1 / dt),
		Previous: &x,
	}
}
