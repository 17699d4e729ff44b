package forces

import "github.com/san-kum/forcesim/internal/dynamo"

func springForce(b *dynamo.Body, env *Env) dynamo.Vec2 {
	var total dynamo.Vec2

	for _, s := range env.Springs {
		if !s.Touches(b.ID) {
			continue
		}
		other, ok := env.Body(s.Other(b.ID))
		if !ok || other == b {
			continue
		}

		delta := other.Position.Sub(b.Position)
		dist := delta.Magnitude()
		if dist < env.MinDistance {
			continue
		}

		stretch := (dist - s.RestLength) * s.Stiffness
		total = total.Add(delta.Normalize().Scale(stretch))
		total = total.Add(other.Velocity.Sub(b.Velocity).Scale(s.Damping))
	}

	return total
}

func repulsionForce(b *dynamo.Body, env *Env, strength float64) dynamo.Vec2 {
	var total dynamo.Vec2
	q := b.EffectiveCharge()

	for _, other := range env.Bodies {
		if other == b || other.ID == b.ID {
			continue
		}
		away := b.Position.Sub(other.Position)
		dist := away.Magnitude()
		if dist < env.MinDistance {
			continue
		}
		mag := strength * q * other.EffectiveCharge() / (dist * dist)
		total = total.Add(away.Normalize().Scale(mag))
	}

	return total
}

func attractionForce(b *dynamo.Body, env *Env, g float64) dynamo.Vec2 {
	var total dynamo.Vec2

	for _, other := range env.Bodies {
		if other == b || other.ID == b.ID {
			continue
		}
		toward := other.Position.Sub(b.Position)
		dist := toward.Magnitude()
		if dist < env.MinDistance {
			continue
		}
		mag := g * b.Mass * other.Mass / (dist * dist)
		total = total.Add(toward.Normalize().Scale(mag))
	}

	return total
}

func dragForce(b *dynamo.Body, env *Env, coefficient float64) dynamo.Vec2 {
	speed := b.Velocity.Magnitude()
	if speed < env.MinDistance {
		return dynamo.Vec2{}
	}
	return b.Velocity.Normalize().Scale(-coefficient * speed * speed)
}
