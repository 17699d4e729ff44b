// Package forces implements the force generators an engine sums into each
// body's net force. A Force is one of a closed set of variants plus a custom
// escape hatch; contributions from different forces simply add.
package forces

import (
	"fmt"

	"github.com/san-kum/forcesim/internal/dynamo"
)

type Kind string

const (
	KindGravity    Kind = "gravity"
	KindSpring     Kind = "spring"
	KindRepulsion  Kind = "repulsion"
	KindAttraction Kind = "attraction"
	KindDrag       Kind = "drag"
	KindCustom     Kind = "custom"
)

type variant int

const (
	uniformGravity variant = iota
	springNetwork
	coulombRepulsion
	nbodyGravity
	quadraticDrag
	centerAttraction
	customFunc
)

// Env is the read-only view of the world a force sees while the engine
// accumulates net forces.
type Env struct {
	Bodies      []*dynamo.Body
	Springs     []*dynamo.Spring
	MinDistance float64

	byID map[string]*dynamo.Body
}

func NewEnv(bodies []*dynamo.Body, springs []*dynamo.Spring, minDistance float64) *Env {
	byID := make(map[string]*dynamo.Body, len(bodies))
	for _, b := range bodies {
		byID[b.ID] = b
	}
	return &Env{
		Bodies:      bodies,
		Springs:     springs,
		MinDistance: minDistance,
		byID:        byID,
	}
}

func (e *Env) Body(id string) (*dynamo.Body, bool) {
	b, ok := e.byID[id]
	return b, ok
}

// Func is the signature of a caller-supplied force.
type Func func(b *dynamo.Body, env *Env) dynamo.Vec2

type Force struct {
	Name string

	kind     Kind
	variant  variant
	vector   dynamo.Vec2
	strength float64
	fn       Func
}

func (f Force) Kind() Kind { return f.kind }

// Apply returns this force's contribution on b. Fixed bodies always get zero.
func (f Force) Apply(b *dynamo.Body, env *Env) dynamo.Vec2 {
	if b.Fixed {
		return dynamo.Vec2{}
	}

	switch f.variant {
	case uniformGravity:
		return f.vector.Scale(b.Mass)
	case springNetwork:
		return springForce(b, env)
	case coulombRepulsion:
		return repulsionForce(b, env, f.strength)
	case nbodyGravity:
		return attractionForce(b, env, f.strength)
	case quadraticDrag:
		return dragForce(b, env, f.strength)
	case centerAttraction:
		return f.vector.Sub(b.Position).Scale(f.strength)
	case customFunc:
		if f.fn == nil {
			return dynamo.Vec2{}
		}
		return f.fn(b, env)
	}
	return dynamo.Vec2{}
}

func (f Force) String() string {
	if f.Name != "" {
		return fmt.Sprintf("%s(%s)", f.kind, f.Name)
	}
	return string(f.kind)
}

// Gravity applies the constant acceleration g to every body.
func Gravity(g dynamo.Vec2) Force {
	return Force{Name: "gravity", kind: KindGravity, variant: uniformGravity, vector: g}
}

// Springs applies every spring touching a body.
func Springs() Force {
	return Force{Name: "springs", kind: KindSpring, variant: springNetwork}
}

// Repulsion is a Coulomb-style pairwise push scaled by both bodies' charges.
func Repulsion(strength float64) Force {
	return Force{Name: "repulsion", kind: KindRepulsion, variant: coulombRepulsion, strength: strength}
}

// NBodyGravity is pairwise Newtonian attraction with constant G.
func NBodyGravity(g float64) Force {
	return Force{Name: "nbody", kind: KindAttraction, variant: nbodyGravity, strength: g}
}

// Drag opposes velocity with magnitude coefficient*speed^2.
func Drag(coefficient float64) Force {
	return Force{Name: "drag", kind: KindDrag, variant: quadraticDrag, strength: coefficient}
}

// CenterAttraction pulls each body toward center like a zero-length spring.
func CenterAttraction(center dynamo.Vec2, strength float64) Force {
	return Force{Name: "center", kind: KindAttraction, variant: centerAttraction, vector: center, strength: strength}
}

func Custom(name string, fn Func) Force {
	return Force{Name: name, kind: KindCustom, variant: customFunc, fn: fn}
}

// Net sums all forces acting on b.
func Net(fs []Force, b *dynamo.Body, env *Env) dynamo.Vec2 {
	var total dynamo.Vec2
	for _, f := range fs {
		total = total.Add(f.Apply(b, env))
	}
	return total
}
