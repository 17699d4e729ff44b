package config

import (
	"fmt"
	"slices"

	"github.com/san-kum/forcesim/internal/dynamo"
)

var tunable = map[string]func(p *dynamo.ConfigPatch, cur dynamo.Config, v float64){
	"restitution":    func(p *dynamo.ConfigPatch, _ dynamo.Config, v float64) { p.Restitution = dynamo.Ptr(v) },
	"global_damping": func(p *dynamo.ConfigPatch, _ dynamo.Config, v float64) { p.GlobalDamping = dynamo.Ptr(v) },
	"time_step":      func(p *dynamo.ConfigPatch, _ dynamo.Config, v float64) { p.TimeStep = dynamo.Ptr(v) },
	"max_velocity":   func(p *dynamo.ConfigPatch, _ dynamo.Config, v float64) { p.MaxVelocity = dynamo.Ptr(v) },
	"min_distance":   func(p *dynamo.ConfigPatch, _ dynamo.Config, v float64) { p.MinDistance = dynamo.Ptr(v) },
	"cell_size":      func(p *dynamo.ConfigPatch, _ dynamo.Config, v float64) { p.CellSize = dynamo.Ptr(v) },
	"gravity_x": func(p *dynamo.ConfigPatch, cur dynamo.Config, v float64) {
		p.Gravity = dynamo.Ptr(dynamo.V(v, cur.Gravity.Y))
	},
	"gravity_y": func(p *dynamo.ConfigPatch, cur dynamo.Config, v float64) {
		p.Gravity = dynamo.Ptr(dynamo.V(cur.Gravity.X, v))
	},
}

// SetParam overrides one engine setting by name. Patch fields are replaced,
// never written through, so a shallow copy of a scene can be tuned without
// touching the original. Gravity only reaches bodies through a gravity force
// whose vector is left zero.
func (s *Scene) SetParam(name string, v float64) error {
	set, ok := tunable[name]
	if !ok {
		return fmt.Errorf("%w: %q (tunable: %v)", dynamo.ErrUnknownParam, name, Params())
	}
	set(&s.Engine, dynamo.DefaultConfig().Apply(s.Engine), v)
	return nil
}

// Params lists the names SetParam accepts.
func Params() []string {
	names := make([]string, 0, len(tunable))
	for name := range tunable {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
