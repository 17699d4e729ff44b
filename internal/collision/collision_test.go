package collision

import (
	"math"
	"testing"

	"github.com/san-kum/forcesim/internal/dynamo"
)

func body(id string, x, y, r float64) *dynamo.Body {
	return &dynamo.Body{ID: id, Mass: 1, Radius: r, Position: dynamo.V(x, y)}
}

func TestCircleCircle(t *testing.T) {
	tests := []struct {
		name    string
		bx      float64
		collide bool
	}{
		{"overlapping", 15, true},
		{"touching", 20, false},
		{"apart", 25, false},
		{"deep", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := body("a", 0, 0, 10)
			b := body("b", tt.bx, 0, 10)
			got := CircleCircle(a, b)
			if (got != nil) != tt.collide {
				t.Fatalf("CircleCircle at distance %v: collide = %v, want %v", tt.bx, got != nil, tt.collide)
			}
			if got == nil {
				return
			}
			if got.Depth != 20-tt.bx {
				t.Errorf("depth = %v, want %v", got.Depth, 20-tt.bx)
			}
			if got.Normal != dynamo.V(1, 0) {
				t.Errorf("normal = %v, want {1 0}", got.Normal)
			}
		})
	}
}

func TestCircleCircleCoincident(t *testing.T) {
	a := body("a", 5, 5, 3)
	b := body("b", 5, 5, 2)
	got := CircleCircle(a, b)
	if got == nil {
		t.Fatal("coincident bodies must collide")
	}
	if math.Abs(got.Normal.Magnitude()-1) > 1e-12 {
		t.Errorf("normal %v is not a unit vector", got.Normal)
	}
	if got.Depth != 5 {
		t.Errorf("depth = %v, want 5", got.Depth)
	}
}

func TestCircleBoundsCorner(t *testing.T) {
	b := body("a", 2, 97, 5)
	got := CircleBounds(b, dynamo.V(0, 0), dynamo.V(100, 100))
	if len(got) != 2 {
		t.Fatalf("expected 2 wall contacts in a corner, got %d", len(got))
	}

	if got[0].Normal != dynamo.V(1, 0) || got[0].Depth != 3 {
		t.Errorf("left wall contact = %+v", got[0])
	}
	if got[1].Normal != dynamo.V(0, -1) || got[1].Depth != 2 {
		t.Errorf("bottom wall contact = %+v", got[1])
	}
	for _, c := range got {
		if !c.IsBoundary() {
			t.Error("wall contact must reference the body on both sides")
		}
	}

	inside := body("b", 50, 50, 5)
	if n := len(CircleBounds(inside, dynamo.V(0, 0), dynamo.V(100, 100))); n != 0 {
		t.Errorf("body inside bounds produced %d contacts", n)
	}
}

func TestResolveBoundary(t *testing.T) {
	b := body("a", -2, 50, 5)
	b.Velocity = dynamo.V(-10, 3)

	contacts := CircleBounds(b, dynamo.V(0, 0), dynamo.V(100, 100))
	if len(contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(contacts))
	}
	Resolve(&contacts[0], 0.5)

	if b.Position.X != 5 {
		t.Errorf("body not pushed out of wall: x = %v", b.Position.X)
	}
	if b.Velocity != dynamo.V(5, 3) {
		t.Errorf("velocity = %v, want {5 3}", b.Velocity)
	}
}

func TestResolveElasticSwap(t *testing.T) {
	a := body("a", 0, 0, 10)
	b := body("b", 15, 0, 10)
	a.Velocity = dynamo.V(4, 1)
	b.Velocity = dynamo.V(-6, 2)

	c := CircleCircle(a, b)
	if !Resolve(c, 1.0) {
		t.Fatal("approaching bodies were not resolved")
	}

	if a.Velocity != dynamo.V(-6, 1) {
		t.Errorf("a velocity = %v, want {-6 1}", a.Velocity)
	}
	if b.Velocity != dynamo.V(4, 2) {
		t.Errorf("b velocity = %v, want {4 2}", b.Velocity)
	}
	if a.Position.Distance(b.Position) <= 15 {
		t.Error("positional correction did not separate the bodies")
	}
}

func TestResolveSkipsSeparating(t *testing.T) {
	a := body("a", 0, 0, 10)
	b := body("b", 15, 0, 10)
	a.Velocity = dynamo.V(-1, 0)
	b.Velocity = dynamo.V(1, 0)

	if Resolve(CircleCircle(a, b), DefaultRestitution) {
		t.Error("separating bodies must not be resolved")
	}
	if a.Position != dynamo.V(0, 0) || b.Position != dynamo.V(15, 0) {
		t.Error("separating bodies were moved")
	}
}

func TestResolveFixed(t *testing.T) {
	wall := body("w", 0, 0, 10)
	wall.Fixed = true
	wall.Mass = 1e6
	ball := body("b", 15, 0, 10)
	ball.Velocity = dynamo.V(-5, 0)

	Resolve(CircleCircle(wall, ball), 1.0)

	if wall.Position != dynamo.V(0, 0) || !wall.Velocity.IsZero() {
		t.Errorf("fixed body changed: %+v", wall)
	}
	if ball.Velocity.X <= 0 {
		t.Errorf("ball did not bounce: %v", ball.Velocity)
	}
	wantX := 15 + (5-correctionSlop)*correctionPercent
	if math.Abs(ball.Position.X-wantX) > 1e-9 {
		t.Errorf("ball x = %v, want %v", ball.Position.X, wantX)
	}

	other := body("o", 5, 0, 10)
	other.Fixed = true
	if Resolve(CircleCircle(wall, other), 1.0) {
		t.Error("two fixed bodies must be skipped")
	}
}
