package integrators

import "github.com/san-kum/forcesim/internal/dynamo"

// RK4 runs the classic four-stage weighting over position and velocity, but
// every stage samples the same net force: forces are not re-evaluated at the
// intermediate positions. With a constant acceleration this reduces to
// x + v*dt + a*dt^2/2, so under position-dependent forces (springs, repulsion)
// the error order is that of a midpoint step, not fourth order.
type RK4 struct{}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Integrate(b *dynamo.Body, force dynamo.Vec2, dt float64, prev *dynamo.Vec2) dynamo.IntegrationState {
	if b.Fixed {
		return stationary(b)
	}

	acc := force.Scale(1 / b.Mass)
	v := b.Velocity
	half := dt * 0.5

	k1x, k1v := v, acc
	k2x, k2v := v.Add(k1v.Scale(half)), acc
	k3x, k3v := v.Add(k2v.Scale(half)), acc
	k4x, k4v := v.Add(k3v.Scale(dt)), acc

	dt6 := dt / 6.0
	dx := k1x.Add(k2x.Scale(2)).Add(k3x.Scale(2)).Add(k4x).Scale(dt6)
	dv := k1v.Add(k2v.Scale(2)).Add(k3v.Scale(2)).Add(k4v).Scale(dt6)

	return dynamo.IntegrationState{
		Position: b.Position.Add(dx),
		Velocity: v.Add(dv).Scale(1 - b.Damping),
	}
}
