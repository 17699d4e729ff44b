// Package collision holds the circle narrow phase and impulse resolution.
package collision

import (
	"math"

	"github.com/san-kum/forcesim/internal/dynamo"
)

const (
	// DefaultRestitution is the bounciness used when callers do not override it.
	DefaultRestitution = dynamo.DefaultRestitution

	correctionPercent = 0.8
	correctionSlop    = 0.01
)

// Result describes one contact. For a boundary contact BodyA and BodyB are the
// same body and Normal points back into the allowed region.
type Result struct {
	BodyA  *dynamo.Body
	BodyB  *dynamo.Body
	Normal dynamo.Vec2
	Depth  float64
	Point  dynamo.Vec2
}

func (r *Result) IsBoundary() bool {
	return r.BodyA == r.BodyB
}

// CircleCircle returns nil unless the circles overlap strictly.
func CircleCircle(a, b *dynamo.Body) *Result {
	delta := b.Position.Sub(a.Position)
	dist := delta.Magnitude()
	radii := a.Radius + b.Radius
	if dist >= radii {
		return nil
	}

	normal := dynamo.V(1, 0)
	if dist > 0 {
		normal = delta.Normalize()
	}
	depth := radii - dist

	return &Result{
		BodyA:  a,
		BodyB:  b,
		Normal: normal,
		Depth:  depth,
		Point:  a.Position.Add(normal.Scale(a.Radius - depth*0.5)),
	}
}

// CircleBounds tests each wall independently, so a body in a corner yields two
// results.
func CircleBounds(b *dynamo.Body, min, max dynamo.Vec2) []Result {
	var out []Result
	p, r := b.Position, b.Radius

	if p.X-r < min.X {
		out = append(out, wall(b, dynamo.V(1, 0), min.X-(p.X-r), dynamo.V(min.X, p.Y)))
	}
	if p.X+r > max.X {
		out = append(out, wall(b, dynamo.V(-1, 0), (p.X+r)-max.X, dynamo.V(max.X, p.Y)))
	}
	if p.Y-r < min.Y {
		out = append(out, wall(b, dynamo.V(0, 1), min.Y-(p.Y-r), dynamo.V(p.X, min.Y)))
	}
	if p.Y+r > max.Y {
		out = append(out, wall(b, dynamo.V(0, -1), (p.Y+r)-max.Y, dynamo.V(p.X, max.Y)))
	}

	return out
}

func wall(b *dynamo.Body, normal dynamo.Vec2, depth float64, point dynamo.Vec2) Result {
	return Result{BodyA: b, BodyB: b, Normal: normal, Depth: depth, Point: point}
}

// Resolve applies the contact response and reports whether any body changed.
// Fixed bodies are never moved.
func Resolve(c *Result, restitution float64) bool {
	if c.IsBoundary() {
		return resolveBoundary(c, restitution)
	}
	return resolvePair(c, restitution)
}

func resolveBoundary(c *Result, restitution float64) bool {
	b := c.BodyA
	if b.Fixed {
		return false
	}

	b.Position = b.Position.Add(c.Normal.Scale(c.Depth))

	vn := b.Velocity.Dot(c.Normal)
	if vn < 0 {
		b.Velocity = b.Velocity.Sub(c.Normal.Scale(vn * (1 + restitution)))
	}
	return true
}

func resolvePair(c *Result, restitution float64) bool {
	a, b := c.BodyA, c.BodyB
	if a.Fixed && b.Fixed {
		return false
	}

	vn := b.Velocity.Sub(a.Velocity).Dot(c.Normal)
	if vn > 0 {
		return false
	}

	j := -(1 + restitution) * vn / (a.Mass + b.Mass)
	if !a.Fixed {
		a.Velocity = a.Velocity.Sub(c.Normal.Scale(j * b.Mass))
	}
	if !b.Fixed {
		b.Velocity = b.Velocity.Add(c.Normal.Scale(j * a.Mass))
	}

	invA, invB := inverseMass(a), inverseMass(b)
	correction := math.Max(c.Depth-correctionSlop, 0) / (invA + invB) * correctionPercent
	shift := c.Normal.Scale(correction)
	a.Position = a.Position.Sub(shift.Scale(invA))
	b.Position = b.Position.Add(shift.Scale(invB))

	return true
}

func inverseMass(b *dynamo.Body) float64 {
	if b.Fixed || b.Mass == 0 {
		return 0
	}
	return 1 / b.Mass
}
