package dynamo

import (
	"math"
	"testing"
)

func TestVec2_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Vec2
		want Vec2
	}{
		{"zero", Vec2{}, Vec2{}},
		{"x axis", V(5, 0), V(1, 0)},
		{"3-4-5", V(3, 4), V(0.6, 0.8)},
		{"negative", V(0, -2), V(0, -1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if math.Abs(got.X-tt.want.X) > 1e-12 || math.Abs(got.Y-tt.want.Y) > 1e-12 {
				t.Errorf("Normalize(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestVec2_Arithmetic(t *testing.T) {
	a := V(1, 2)
	b := V(4, 6)

	if got := a.Add(b); got != V(5, 8) {
		t.Errorf("Add failed: got %v", got)
	}
	if got := b.Sub(a); got != V(3, 4) {
		t.Errorf("Sub failed: got %v", got)
	}
	if got := a.Scale(3); got != V(3, 6) {
		t.Errorf("Scale failed: got %v", got)
	}
	if got := a.Dot(b); got != 16 {
		t.Errorf("Dot failed: got %v", got)
	}
	if got := a.Distance(b); got != 5 {
		t.Errorf("Distance failed: got %v", got)
	}
	if got := V(3, 4).Magnitude(); got != 5 {
		t.Errorf("Magnitude failed: got %v", got)
	}
}

func TestVec2_Limit(t *testing.T) {
	short := V(1, 1)
	if got := short.Limit(10); got != short {
		t.Errorf("Limit changed a short vector: %v", got)
	}

	long := V(30, 40)
	got := long.Limit(5)
	if math.Abs(got.Magnitude()-5) > 1e-12 {
		t.Errorf("Limit magnitude = %v, want 5", got.Magnitude())
	}
	if math.Abs(got.X-3) > 1e-12 || math.Abs(got.Y-4) > 1e-12 {
		t.Errorf("Limit changed direction: %v", got)
	}
}

func TestVec2_IsValid(t *testing.T) {
	if !V(1, 2).IsValid() {
		t.Error("finite vector reported invalid")
	}
	if V(math.NaN(), 0).IsValid() {
		t.Error("NaN vector reported valid")
	}
	if V(0, math.Inf(1)).IsValid() {
		t.Error("Inf vector reported valid")
	}
}

func TestConfig_Apply(t *testing.T) {
	base := DefaultConfig()
	base.Bounds = &Bounds{Min: V(0, 0), Max: V(100, 100)}

	patched := base.Apply(ConfigPatch{
		Gravity:    Ptr(V(0, 9.81)),
		Integrator: Ptr(IntegratorVerlet),
	})

	if patched.Gravity != V(0, 9.81) {
		t.Errorf("gravity not applied: %v", patched.Gravity)
	}
	if patched.Integrator != IntegratorVerlet {
		t.Errorf("integrator not applied: %v", patched.Integrator)
	}
	if patched.TimeStep != base.TimeStep {
		t.Errorf("untouched field changed: %v", patched.TimeStep)
	}
	if patched.Bounds == base.Bounds {
		t.Error("bounds pointer shared with the source config")
	}

	cleared := patched.Apply(ConfigPatch{ClearBounds: true})
	if cleared.Bounds != nil {
		t.Error("ClearBounds did not remove bounds")
	}
}

func TestBody_CloneAndCharge(t *testing.T) {
	q := -2.0
	b := Body{ID: "a", Charge: &q, Metadata: map[string]any{"label": "root"}}

	c := b.Clone()
	*c.Charge = 5
	c.Metadata["label"] = "changed"

	if b.EffectiveCharge() != -2 {
		t.Errorf("clone shares charge: %v", b.EffectiveCharge())
	}
	if b.Metadata["label"] != "root" {
		t.Error("clone shares metadata")
	}
	if (&Body{}).EffectiveCharge() != 1 {
		t.Error("unset charge should default to 1")
	}
}
