package engine

import (
	"github.com/san-kum/forcesim/internal/collision"
	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/forces"
	"github.com/san-kum/forcesim/internal/metrics"
)

type pairKey struct {
	lo, hi string
}

func makePair(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// Update advances the world by dt seconds, or by Config.TimeStep when dt is
// not positive. It does nothing at all while paused.
func (e *Engine) Update(dt float64) {
	if e.st.paused {
		return
	}
	start := e.now()
	cfg := &e.st.config
	if dt <= 0 {
		dt = cfg.TimeStep
	}

	bodies := e.orderedBodies()
	e.integrate(bodies, dt)

	checks, hits := 0, 0
	if cfg.CollisionEnabled {
		c, h := e.collide(bodies)
		checks += c
		hits += h
	}
	if cfg.Bounds != nil {
		c, h := e.confine(bodies)
		checks += c
		hits += h
	}

	e.remember(bodies, dt)
	e.st.time += dt

	e.metrics = dynamo.Metrics{
		FPS:             e.clock.Tick(),
		BodyCount:       len(e.st.bodies),
		SpringCount:     len(e.st.springs),
		CollisionChecks: checks,
		Collisions:      hits,
		TotalEnergy:     metrics.Total(bodies, cfg.Gravity),
		ComputeTime:     e.now().Sub(start),
	}
}

// integrate evaluates every force against the start-of-step state before any
// body moves, then advances the non-fixed bodies.
func (e *Engine) integrate(bodies []*dynamo.Body, dt float64) {
	cfg := &e.st.config
	env := forces.NewEnv(bodies, e.orderedSprings(), cfg.MinDistance)

	net := make([]dynamo.Vec2, len(bodies))
	for i, b := range bodies {
		if b.Fixed {
			continue
		}
		net[i] = forces.Net(e.st.forces, b, env)
	}

	damp := 1 - cfg.GlobalDamping
	for i, b := range bodies {
		if b.Fixed {
			continue
		}

		b.Velocity = b.Velocity.Scale(damp)
		prev := e.previous(b, dt, damp)
		next := e.integrator.Integrate(b, net[i], dt, &prev)

		b.Position = next.Position
		b.Velocity = next.Velocity
		if cfg.MaxVelocity > 0 {
			b.Velocity = b.Velocity.Limit(cfg.MaxVelocity)
		}
		b.Acceleration = net[i].Scale(1 / b.Mass)
	}
}

// previous is the position a Verlet step starts from. A body with no history
// is seeded from its velocity, so velocity set from outside the step carries.
func (e *Engine) previous(b *dynamo.Body, dt, damp float64) dynamo.Vec2 {
	if p, ok := e.history[b.ID]; ok {
		return b.Position.Sub(b.Position.Sub(p).Scale(damp))
	}
	return b.Position.Sub(b.Velocity.Scale(dt))
}

// remember stores each body's previous position as implied by its final
// velocity, after the clamp and every contact impulse of the step.
func (e *Engine) remember(bodies []*dynamo.Body, dt float64) {
	for _, b := range bodies {
		if b.Fixed {
			continue
		}
		e.history[b.ID] = b.Position.Sub(b.Velocity.Scale(dt))
	}
}

// collide rebuilds the broad phase and resolves each candidate pair at most
// once. Returns narrow-phase checks and resolved contacts.
func (e *Engine) collide(bodies []*dynamo.Body) (int, int) {
	e.hash.Clear()
	for _, b := range bodies {
		e.hash.Insert(b)
	}

	restitution := e.st.config.Restitution
	seen := make(map[pairKey]struct{})
	checks, hits := 0, 0

	for _, a := range bodies {
		for _, id := range e.hash.PotentialCollisions(a) {
			key := makePair(a.ID, id)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			b, ok := e.st.bodies[id]
			if !ok {
				continue
			}
			checks++
			if c := collision.CircleCircle(a, b); c != nil && collision.Resolve(c, restitution) {
				hits++
			}
		}
	}

	return checks, hits
}

func (e *Engine) confine(bodies []*dynamo.Body) (int, int) {
	bounds := e.st.config.Bounds
	restitution := e.st.config.Restitution
	checks, hits := 0, 0

	for _, b := range bodies {
		if b.Fixed {
			continue
		}
		checks++
		contacts := collision.CircleBounds(b, bounds.Min, bounds.Max)
		for i := range contacts {
			if collision.Resolve(&contacts[i], restitution) {
				hits++
			}
		}
	}

	return checks, hits
}

func (e *Engine) orderedBodies() []*dynamo.Body {
	out := make([]*dynamo.Body, 0, len(e.st.bodyOrder))
	for _, id := range e.st.bodyOrder {
		out = append(out, e.st.bodies[id])
	}
	return out
}

func (e *Engine) orderedSprings() []*dynamo.Spring {
	out := make([]*dynamo.Spring, 0, len(e.st.springOrder))
	for _, id := range e.st.springOrder {
		out = append(out, e.st.springs[id])
	}
	return out
}
