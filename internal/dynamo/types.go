package dynamo

import (
	"maps"
	"time"
)

// Body is a simulated point mass with a circular footprint.
type Body struct {
	ID           string         `json:"id" yaml:"id"`
	Position     Vec2           `json:"position" yaml:"position"`
	Velocity     Vec2           `json:"velocity" yaml:"velocity"`
	Acceleration Vec2           `json:"acceleration" yaml:"-"`
	Mass         float64        `json:"mass" yaml:"mass"`
	Radius       float64        `json:"radius" yaml:"radius"`
	Fixed        bool           `json:"fixed" yaml:"fixed"`
	Damping      float64        `json:"damping" yaml:"damping"`
	Charge       *float64       `json:"charge,omitempty" yaml:"charge,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// EffectiveCharge returns the body's charge, 1 when unset.
func (b *Body) EffectiveCharge() float64 {
	if b.Charge == nil {
		return 1
	}
	return *b.Charge
}

// Clone returns a copy that shares no mutable state with b.
func (b Body) Clone() Body {
	if b.Charge != nil {
		q := *b.Charge
		b.Charge = &q
	}
	if b.Metadata != nil {
		b.Metadata = maps.Clone(b.Metadata)
	}
	return b
}

// Spring connects two bodies by id. Direction does not matter.
type Spring struct {
	ID         string  `json:"id" yaml:"id"`
	BodyA      string  `json:"body_a" yaml:"body_a"`
	BodyB      string  `json:"body_b" yaml:"body_b"`
	RestLength float64 `json:"rest_length" yaml:"rest_length"`
	Stiffness  float64 `json:"stiffness" yaml:"stiffness"`
	Damping    float64 `json:"damping" yaml:"damping"`
}

// Touches reports whether the spring has id as one of its endpoints.
func (s *Spring) Touches(id string) bool {
	return s.BodyA == id || s.BodyB == id
}

// Other returns the endpoint opposite id.
func (s *Spring) Other(id string) string {
	if s.BodyA == id {
		return s.BodyB
	}
	return s.BodyA
}

type IntegratorKind string

const (
	IntegratorEuler  IntegratorKind = "euler"
	IntegratorVerlet IntegratorKind = "verlet"
	IntegratorRK4    IntegratorKind = "rk4"
)

// IntegrationState is the outcome of advancing one body by one step.
// Previous is set only by integrators that keep position history.
type IntegrationState struct {
	Position Vec2
	Velocity Vec2
	Previous *Vec2
}

type Integrator interface {
	Integrate(b *Body, force Vec2, dt float64, prev *Vec2) IntegrationState
}

type Bounds struct {
	Min Vec2 `json:"min" yaml:"min"`
	Max Vec2 `json:"max" yaml:"max"`
}

type Config struct {
	Gravity          Vec2           `json:"gravity" yaml:"gravity"`
	GlobalDamping    float64        `json:"global_damping" yaml:"global_damping"`
	CollisionEnabled bool           `json:"collision_enabled" yaml:"collision_enabled"`
	Bounds           *Bounds        `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	TimeStep         float64        `json:"time_step" yaml:"time_step"`
	MaxVelocity      float64        `json:"max_velocity" yaml:"max_velocity"`
	MinDistance      float64        `json:"min_distance" yaml:"min_distance"`
	Integrator       IntegratorKind `json:"integrator" yaml:"integrator"`
	Restitution      float64        `json:"restitution" yaml:"restitution"`
	CellSize         float64        `json:"cell_size" yaml:"cell_size"`
}

const (
	DefaultTimeStep      = 1.0 / 60.0
	DefaultGlobalDamping = 0.01
	DefaultMaxVelocity   = 1000.0
	DefaultMinDistance   = 1.0
	DefaultRestitution   = 0.8
	DefaultCellSize      = 50.0
)

func DefaultConfig() Config {
	return Config{
		Gravity:          Vec2{},
		GlobalDamping:    DefaultGlobalDamping,
		CollisionEnabled: true,
		TimeStep:         DefaultTimeStep,
		MaxVelocity:      DefaultMaxVelocity,
		MinDistance:      DefaultMinDistance,
		Integrator:       IntegratorEuler,
		Restitution:      DefaultRestitution,
		CellSize:         DefaultCellSize,
	}
}

// Clone returns a copy whose Bounds pointer is not shared with c.
func (c Config) Clone() Config {
	if c.Bounds != nil {
		b := *c.Bounds
		c.Bounds = &b
	}
	return c
}

// ConfigPatch carries a partial configuration. Nil fields are left untouched
// by Apply; ClearBounds removes any configured bounds.
type ConfigPatch struct {
	Gravity          *Vec2           `json:"gravity,omitempty" yaml:"gravity,omitempty"`
	GlobalDamping    *float64        `json:"global_damping,omitempty" yaml:"global_damping,omitempty"`
	CollisionEnabled *bool           `json:"collision_enabled,omitempty" yaml:"collision_enabled,omitempty"`
	Bounds           *Bounds         `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	ClearBounds      bool            `json:"clear_bounds,omitempty" yaml:"clear_bounds,omitempty"`
	TimeStep         *float64        `json:"time_step,omitempty" yaml:"time_step,omitempty"`
	MaxVelocity      *float64        `json:"max_velocity,omitempty" yaml:"max_velocity,omitempty"`
	MinDistance      *float64        `json:"min_distance,omitempty" yaml:"min_distance,omitempty"`
	Integrator       *IntegratorKind `json:"integrator,omitempty" yaml:"integrator,omitempty"`
	Restitution      *float64        `json:"restitution,omitempty" yaml:"restitution,omitempty"`
	CellSize         *float64        `json:"cell_size,omitempty" yaml:"cell_size,omitempty"`
}

func (c Config) Apply(p ConfigPatch) Config {
	out := c.Clone()
	if p.Gravity != nil {
		out.Gravity = *p.Gravity
	}
	if p.GlobalDamping != nil {
		out.GlobalDamping = *p.GlobalDamping
	}
	if p.CollisionEnabled != nil {
		out.CollisionEnabled = *p.CollisionEnabled
	}
	if p.ClearBounds {
		out.Bounds = nil
	}
	if p.Bounds != nil {
		b := *p.Bounds
		out.Bounds = &b
	}
	if p.TimeStep != nil {
		out.TimeStep = *p.TimeStep
	}
	if p.MaxVelocity != nil {
		out.MaxVelocity = *p.MaxVelocity
	}
	if p.MinDistance != nil {
		out.MinDistance = *p.MinDistance
	}
	if p.Integrator != nil {
		out.Integrator = *p.Integrator
	}
	if p.Restitution != nil {
		out.Restitution = *p.Restitution
	}
	if p.CellSize != nil {
		out.CellSize = *p.CellSize
	}
	return out
}

// Ptr is a convenience for filling ConfigPatch literals.
func Ptr[T any](v T) *T {
	return &v
}

type Metrics struct {
	FPS             float64       `json:"fps"`
	BodyCount       int           `json:"body_count"`
	SpringCount     int           `json:"spring_count"`
	CollisionChecks int           `json:"collision_checks"`
	Collisions      int           `json:"collisions"`
	TotalEnergy     float64       `json:"total_energy"`
	ComputeTime     time.Duration `json:"compute_time"`
}

// Frame is a snapshot of the world after one step.
type Frame struct {
	Time    float64 `json:"time"`
	Bodies  []Body  `json:"bodies"`
	Metrics Metrics `json:"metrics"`
}

type Metric interface {
	Name() string
	Observe(f *Frame)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(f *Frame)
}
