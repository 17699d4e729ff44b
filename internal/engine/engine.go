// Package engine is the per-frame physics orchestrator. An Engine owns every
// body, spring and force, and advances them one step per Update call.
//
// The per-frame API never returns errors and never panics on bad input:
// unknown ids are ignored, and degenerate geometry falls back to safe values.
// Physically meaningless input (zero or negative mass) propagates as Inf/NaN
// positions rather than being rejected.
//
// An Engine is not safe for concurrent use.
package engine

import (
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/forces"
	"github.com/san-kum/forcesim/internal/integrators"
	"github.com/san-kum/forcesim/internal/metrics"
	"github.com/san-kum/forcesim/internal/spatial"
)

// state is the single aggregate every step function works on.
type state struct {
	bodies      map[string]*dynamo.Body
	bodyOrder   []string
	springs     map[string]*dynamo.Spring
	springOrder []string
	forces      []forces.Force
	config      dynamo.Config
	time        float64
	paused      bool
}

type Engine struct {
	st state

	integrator dynamo.Integrator
	history    map[string]dynamo.Vec2
	hash       *spatial.Hash
	clock      *metrics.FrameClock
	metrics    dynamo.Metrics

	now    func() time.Time
	logger *log.Logger
}

type Option func(*Engine)

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces the wall clock used for FPS and compute-time metrics.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds an engine from the defaults overlaid with patch.
func New(patch dynamo.ConfigPatch, opts ...Option) *Engine {
	e := &Engine{
		st: state{
			bodies:  make(map[string]*dynamo.Body),
			springs: make(map[string]*dynamo.Spring),
			config:  dynamo.DefaultConfig().Apply(patch),
		},
		history: make(map[string]dynamo.Vec2),
		now:     time.Now,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(e)
	}

	integ, err := integrators.New(e.st.config.Integrator)
	if err != nil {
		e.logger.Warn("falling back to euler", "err", err)
		e.st.config.Integrator = dynamo.IntegratorEuler
		integ = integrators.NewEuler()
	}
	e.integrator = integ
	e.hash = spatial.NewHash(e.st.config.CellSize)
	e.clock = metrics.NewFrameClock(e.now)
	e.refreshCounts()

	return e
}

// AddBody stores a copy of b. An existing body with the same id is replaced
// in place.
func (e *Engine) AddBody(b dynamo.Body) {
	c := b.Clone()
	if _, ok := e.st.bodies[c.ID]; !ok {
		e.st.bodyOrder = append(e.st.bodyOrder, c.ID)
	}
	e.st.bodies[c.ID] = &c
	delete(e.history, c.ID)
	e.refreshCounts()
}

// RemoveBody deletes the body and every spring attached to it.
func (e *Engine) RemoveBody(id string) bool {
	if _, ok := e.st.bodies[id]; !ok {
		return false
	}
	delete(e.st.bodies, id)
	delete(e.history, id)
	e.st.bodyOrder = slices.DeleteFunc(e.st.bodyOrder, func(s string) bool { return s == id })

	purged := 0
	e.st.springOrder = slices.DeleteFunc(e.st.springOrder, func(sid string) bool {
		if e.st.springs[sid].Touches(id) {
			delete(e.st.springs, sid)
			purged++
			return true
		}
		return false
	})

	e.logger.Debug("body removed", "id", id, "springs", purged)
	e.refreshCounts()
	return true
}

// UpdateBody applies mutate to a copy of the body and stores the result. The
// id cannot be changed this way. The next step starts from the stored
// velocity.
func (e *Engine) UpdateBody(id string, mutate func(b *dynamo.Body)) bool {
	cur, ok := e.st.bodies[id]
	if !ok || mutate == nil {
		return false
	}

	next := cur.Clone()
	mutate(&next)
	next.ID = id
	delete(e.history, id)
	*cur = next
	return true
}

func (e *Engine) Body(id string) (dynamo.Body, bool) {
	b, ok := e.st.bodies[id]
	if !ok {
		return dynamo.Body{}, false
	}
	return b.Clone(), true
}

// Bodies returns copies of all bodies in insertion order.
func (e *Engine) Bodies() []dynamo.Body {
	out := make([]dynamo.Body, 0, len(e.st.bodyOrder))
	for _, id := range e.st.bodyOrder {
		out = append(out, e.st.bodies[id].Clone())
	}
	return out
}

func (e *Engine) AddSpring(s dynamo.Spring) {
	if _, ok := e.st.springs[s.ID]; !ok {
		e.st.springOrder = append(e.st.springOrder, s.ID)
	}
	e.st.springs[s.ID] = &s
	e.refreshCounts()
}

func (e *Engine) RemoveSpring(id string) bool {
	if _, ok := e.st.springs[id]; !ok {
		return false
	}
	delete(e.st.springs, id)
	e.st.springOrder = slices.DeleteFunc(e.st.springOrder, func(s string) bool { return s == id })
	e.refreshCounts()
	return true
}

func (e *Engine) Springs() []dynamo.Spring {
	out := make([]dynamo.Spring, 0, len(e.st.springOrder))
	for _, id := range e.st.springOrder {
		out = append(out, *e.st.springs[id])
	}
	return out
}

func (e *Engine) AddForce(f forces.Force) {
	e.st.forces = append(e.st.forces, f)
}

func (e *Engine) ClearForces() {
	e.st.forces = nil
}

func (e *Engine) Forces() []forces.Force {
	return slices.Clone(e.st.forces)
}

// UpdateConfig merges patch into the current configuration. A new integrator
// takes effect on the next step; an unknown one is logged and ignored.
func (e *Engine) UpdateConfig(patch dynamo.ConfigPatch) {
	next := e.st.config.Apply(patch)

	if next.Integrator != e.st.config.Integrator {
		integ, err := integrators.New(next.Integrator)
		if err != nil {
			e.logger.Warn("keeping current integrator", "current", e.st.config.Integrator, "err", err)
			next.Integrator = e.st.config.Integrator
		} else {
			e.logger.Debug("integrator switched", "from", e.st.config.Integrator, "to", next.Integrator)
			e.integrator = integ
			clear(e.history)
		}
	}
	if next.CellSize != e.st.config.CellSize {
		e.hash = spatial.NewHash(next.CellSize)
	}

	e.st.config = next
}

func (e *Engine) Pause()         { e.st.paused = true }
func (e *Engine) Resume()        { e.st.paused = false }
func (e *Engine) IsPaused() bool { return e.st.paused }

// Reset drops every body, spring and force, zeroes the clock and forgets
// integrator history. Configuration and the paused flag are kept.
func (e *Engine) Reset() {
	e.st.bodies = make(map[string]*dynamo.Body)
	e.st.bodyOrder = nil
	e.st.springs = make(map[string]*dynamo.Spring)
	e.st.springOrder = nil
	e.st.forces = nil
	e.st.time = 0
	clear(e.history)
	e.hash.Clear()
	e.clock.Reset()
	e.metrics = dynamo.Metrics{}
	e.logger.Debug("engine reset")
}

// ApplyImpulse changes the body's velocity by impulse/mass.
func (e *Engine) ApplyImpulse(id string, impulse dynamo.Vec2) {
	b, ok := e.st.bodies[id]
	if !ok || b.Fixed {
		return
	}
	b.Velocity = b.Velocity.Add(impulse.Scale(1 / b.Mass))
	delete(e.history, id)
}

// SetPosition teleports a body, fixed or not. Its position history is
// discarded so Verlet does not read the jump as velocity; the body keeps its
// current velocity.
func (e *Engine) SetPosition(id string, pos dynamo.Vec2) {
	b, ok := e.st.bodies[id]
	if !ok {
		return
	}
	b.Position = pos
	delete(e.history, id)
}

func (e *Engine) SetVelocity(id string, vel dynamo.Vec2) {
	b, ok := e.st.bodies[id]
	if !ok || b.Fixed {
		return
	}
	b.Velocity = vel
	delete(e.history, id)
}

func (e *Engine) Metrics() dynamo.Metrics { return e.metrics }
func (e *Engine) Config() dynamo.Config   { return e.st.config.Clone() }
func (e *Engine) Time() float64           { return e.st.time }

// Snapshot copies the current world into a frame.
func (e *Engine) Snapshot() dynamo.Frame {
	return dynamo.Frame{
		Time:    e.st.time,
		Bodies:  e.Bodies(),
		Metrics: e.metrics,
	}
}

func (e *Engine) refreshCounts() {
	e.metrics.BodyCount = len(e.st.bodies)
	e.metrics.SpringCount = len(e.st.springs)
}
