package config

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/san-kum/forcesim/internal/dynamo"
)

// Presets builds a fresh scene on every call so callers may mutate the result.
var Presets = map[string]func() *Scene{
	"mindmap":         mindmap,
	"solar_system":    solarSystem,
	"benzene_ring":    benzeneRing,
	"billiards":       billiards,
	"spring_pendulum": springPendulum,
	"gas":             gas,
}

func GetPreset(name string) (*Scene, error) {
	build, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", dynamo.ErrUnknownPreset, name)
	}
	return build(), nil
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var canvas = dynamo.Bounds{Min: dynamo.V(0, 0), Max: dynamo.V(800, 600)}

func boxed() *dynamo.Bounds {
	b := canvas
	return &b
}

func mindmap() *Scene {
	center := dynamo.V(400, 300)
	s := &Scene{
		Name:        "mindmap",
		Description: "root idea with three branches settling into a force-directed layout",
		Duration:    20,
		Engine: dynamo.ConfigPatch{
			GlobalDamping: dynamo.Ptr(0.05),
			Bounds:        boxed(),
		},
		Forces: []ForceSpec{
			{Kind: "springs"},
			{Kind: "repulsion", Strength: 8000},
			{Kind: "center", Vector: center, Strength: 0.02},
		},
		Bodies: []dynamo.Body{
			{ID: "root", Position: center, Mass: 5, Radius: 30, Fixed: true,
				Metadata: map[string]any{"label": "Physics"}},
		},
	}

	branches := []string{"forces", "integrators", "collisions"}
	for i, name := range branches {
		angle := float64(i) * 2 * math.Pi / float64(len(branches))
		pos := center.Add(dynamo.V(math.Cos(angle), math.Sin(angle)).Scale(60))
		s.Bodies = append(s.Bodies, dynamo.Body{
			ID: name, Position: pos, Mass: 2, Radius: 20,
			Metadata: map[string]any{"label": name, "parent": "root"},
		})
		s.Springs = append(s.Springs, dynamo.Spring{
			ID: "root-" + name, BodyA: "root", BodyB: name, RestLength: 140, Stiffness: 2, Damping: 0.5,
		})

		for j := 0; j < 2; j++ {
			leaf := fmt.Sprintf("%s-%d", name, j+1)
			offset := dynamo.V(math.Cos(angle+float64(j)-0.5), math.Sin(angle+float64(j)-0.5)).Scale(30)
			s.Bodies = append(s.Bodies, dynamo.Body{
				ID: leaf, Position: pos.Add(offset), Mass: 1, Radius: 12,
				Metadata: map[string]any{"label": leaf, "parent": name},
			})
			s.Springs = append(s.Springs, dynamo.Spring{
				ID: name + "-" + leaf, BodyA: name, BodyB: leaf, RestLength: 70, Stiffness: 1.5, Damping: 0.3,
			})
		}
	}
	return s
}

func solarSystem() *Scene {
	const g, sunMass = 100.0, 1000.0
	sun := dynamo.V(400, 300)
	s := &Scene{
		Name:        "solar_system",
		Description: "planets on circular orbits around a fixed sun",
		Duration:    60,
		Engine: dynamo.ConfigPatch{
			GlobalDamping:    dynamo.Ptr(0.0),
			CollisionEnabled: dynamo.Ptr(false),
			Integrator:       dynamo.Ptr(dynamo.IntegratorRK4),
			MinDistance:      dynamo.Ptr(5.0),
		},
		Forces: []ForceSpec{{Kind: "nbody", Strength: g}},
		Bodies: []dynamo.Body{
			{ID: "sun", Position: sun, Mass: sunMass, Radius: 25, Fixed: true},
		},
	}

	planets := []struct {
		id     string
		dist   float64
		mass   float64
		radius float64
	}{
		{"mercury", 60, 0.05, 3},
		{"venus", 100, 0.8, 6},
		{"earth", 150, 1, 6},
		{"mars", 210, 0.1, 4},
	}
	for _, p := range planets {
		speed := math.Sqrt(g * sunMass / p.dist)
		s.Bodies = append(s.Bodies, dynamo.Body{
			ID:       p.id,
			Position: sun.Add(dynamo.V(p.dist, 0)),
			Velocity: dynamo.V(0, speed),
			Mass:     p.mass,
			Radius:   p.radius,
		})
	}
	return s
}

func benzeneRing() *Scene {
	const scale = 40.0
	center := dynamo.V(400, 300)
	s := &Scene{
		Name:        "benzene_ring",
		Description: "six carbons bonded in a ring, each with a hydrogen",
		Duration:    10,
		Engine: dynamo.ConfigPatch{
			CollisionEnabled: dynamo.Ptr(false),
		},
		Forces: []ForceSpec{{Kind: "springs"}},
	}

	for i := 0; i < 6; i++ {
		angle := float64(i) * math.Pi / 3
		dir := dynamo.V(math.Cos(angle), math.Sin(angle))
		c := fmt.Sprintf("C%d", i)
		h := fmt.Sprintf("H%d", i)
		s.Bodies = append(s.Bodies,
			dynamo.Body{ID: c, Position: center.Add(dir.Scale(1.4 * scale)), Mass: 12.011, Radius: 7,
				Metadata: map[string]any{"element": "C"}},
			dynamo.Body{ID: h, Position: center.Add(dir.Scale(2.5 * scale)), Mass: 1.008, Radius: 3,
				Metadata: map[string]any{"element": "H"}},
		)
		s.Springs = append(s.Springs, dynamo.Spring{
			ID: "CH" + fmt.Sprint(i), BodyA: c, BodyB: h, RestLength: 1.1 * scale, Stiffness: 400,
		})
	}
	for i := 0; i < 6; i++ {
		s.Springs = append(s.Springs, dynamo.Spring{
			ID:         fmt.Sprintf("CC%d", i),
			BodyA:      fmt.Sprintf("C%d", i),
			BodyB:      fmt.Sprintf("C%d", (i+1)%6),
			RestLength: 1.4 * scale,
			Stiffness:  600,
		})
	}
	return s
}

func billiards() *Scene {
	const r = 12.0
	s := &Scene{
		Name:        "billiards",
		Description: "cue ball breaking a rack of six",
		Duration:    10,
		Engine: dynamo.ConfigPatch{
			Bounds:        boxed(),
			Restitution:   dynamo.Ptr(0.95),
			GlobalDamping: dynamo.Ptr(0.002),
		},
		Forces: []ForceSpec{{Kind: "drag", Strength: 0.0005}},
		Bodies: []dynamo.Body{
			{ID: "cue", Position: dynamo.V(150, 300), Velocity: dynamo.V(600, 4), Mass: 1, Radius: r},
		},
	}

	n := 0
	for row := 0; row < 3; row++ {
		for k := 0; k <= row; k++ {
			n++
			x := 550 + float64(row)*2*r*math.Sqrt(3)/2
			y := 300 + (float64(k)-float64(row)/2)*2*r
			s.Bodies = append(s.Bodies, dynamo.Body{
				ID: fmt.Sprintf("ball%d", n), Position: dynamo.V(x, y), Mass: 1, Radius: r,
			})
		}
	}
	return s
}

func springPendulum() *Scene {
	g := dynamo.V(0, 300)
	return &Scene{
		Name:        "spring_pendulum",
		Description: "bob swinging from a fixed anchor on an elastic rod",
		Duration:    20,
		Engine: dynamo.ConfigPatch{
			Gravity:       &g,
			GlobalDamping: dynamo.Ptr(0.0),
			Integrator:    dynamo.Ptr(dynamo.IntegratorRK4),
		},
		Forces: []ForceSpec{{Kind: "gravity"}, {Kind: "springs"}},
		Bodies: []dynamo.Body{
			{ID: "anchor", Position: dynamo.V(400, 100), Mass: 1, Radius: 5, Fixed: true},
			{ID: "bob", Position: dynamo.V(550, 200), Mass: 2, Radius: 15},
		},
		Springs: []dynamo.Spring{
			{ID: "rod", BodyA: "anchor", BodyB: "bob", RestLength: 150, Stiffness: 40, Damping: 0.1},
		},
	}
}

func gas() *Scene {
	const count, r = 48, 6.0
	s := &Scene{
		Name:        "gas",
		Description: "particles bouncing in a box",
		Duration:    30,
		Seed:        DefaultSeed,
		Engine: dynamo.ConfigPatch{
			Bounds:        boxed(),
			GlobalDamping: dynamo.Ptr(0.0),
			Restitution:   dynamo.Ptr(1.0),
			CellSize:      dynamo.Ptr(4 * r),
		},
		Forces: []ForceSpec{},
	}

	rng := rand.New(rand.NewPCG(uint64(s.Seed), uint64(s.Seed)))
	cols := 8
	for i := 0; i < count; i++ {
		pos := dynamo.V(100+float64(i%cols)*80, 100+float64(i/cols)*70)
		angle := rng.Float64() * 2 * math.Pi
		speed := 50 + rng.Float64()*150
		s.Bodies = append(s.Bodies, dynamo.Body{
			ID:       fmt.Sprintf("p%02d", i),
			Position: pos,
			Velocity: dynamo.V(math.Cos(angle), math.Sin(angle)).Scale(speed),
			Mass:     1,
			Radius:   r,
		})
	}
	return s
}
