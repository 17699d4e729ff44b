package integrators

import "github.com/san-kum/forcesim/internal/dynamo"

// Euler is semi-implicit: the damped new velocity moves the position.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Integrate(b *dynamo.Body, force dynamo.Vec2, dt float64, prev *dynamo.Vec2) dynamo.IntegrationState {
	if b.Fixed {
		return stationary(b)
	}

	acc := force.Scale(1 / b.Mass)
	vel := b.Velocity.Add(acc.Scale(dt)).Scale(1 - b.Damping)

	return dynamo.IntegrationState{
		Position: b.Position.Add(vel.Scale(dt)),
		Velocity: vel,
	}
}

func stationary(b *dynamo.Body) dynamo.IntegrationState {
	return dynamo.IntegrationState{Position: b.Position}
}
