package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
)

const DefaultPerturbation = 1e-6

type LyapunovConfig struct {
	Dt       float64
	Duration float64
	// Perturbation is the initial x offset of the first movable body. Zero
	// uses DefaultPerturbation.
	Perturbation float64
}

// renormalizeAbove is the growth factor over the initial separation at which
// the perturbed copy is pulled back.
const renormalizeAbove = 1e3

// LyapunovExponent estimates the largest Lyapunov exponent of a scene by the
// trajectory separation method. build is called twice and must return
// identical engines. Whenever the separation grows past renormalizeAbove times
// its initial value the growth is banked and the perturbed copy is pulled back,
// so the estimate is the total log growth divided by elapsed time. A positive
// value indicates chaos.
func LyapunovExponent(build func() (*engine.Engine, error), cfg LyapunovConfig) (float64, error) {
	if cfg.Dt <= 0 || cfg.Duration <= 0 {
		return 0, fmt.Errorf("%w: dt and duration must be positive", dynamo.ErrInvalidRun)
	}
	d0 := cfg.Perturbation
	if d0 <= 0 {
		d0 = DefaultPerturbation
	}

	ref, err := build()
	if err != nil {
		return 0, err
	}
	pert, err := build()
	if err != nil {
		return 0, err
	}

	target, ok := firstMovable(ref.Bodies())
	if !ok {
		return 0, fmt.Errorf("%w: no movable bodies", dynamo.ErrInvalidRun)
	}
	pert.SetPosition(target.ID, target.Position.Add(dynamo.V(d0, 0)))

	steps := max(int(cfg.Duration/cfg.Dt+0.5), 1)
	logSum := 0.0
	sep := d0
	for i := 0; i < steps; i++ {
		ref.Update(cfg.Dt)
		pert.Update(cfg.Dt)

		a, b := ref.Bodies(), pert.Bodies()
		sep = separation(a, b)
		if math.IsNaN(sep) || math.IsInf(sep, 0) {
			return 0, dynamo.ErrDiverged
		}

		if sep > d0*renormalizeAbove {
			logSum += math.Log(sep / d0)
			renormalize(pert, a, b, d0/sep)
			sep = d0
		}
	}
	if sep > 0 {
		logSum += math.Log(sep / d0)
	}

	return logSum / (float64(steps) * cfg.Dt), nil
}

func firstMovable(bodies []dynamo.Body) (dynamo.Body, bool) {
	for _, b := range bodies {
		if !b.Fixed {
			return b, true
		}
	}
	return dynamo.Body{}, false
}

// separation is the phase-space distance between two snapshots of the same
// scene, matched by position in insertion order.
func separation(a, b []dynamo.Body) float64 {
	sum := 0.0
	for i := range min(len(a), len(b)) {
		dp := b[i].Position.Sub(a[i].Position)
		dv := b[i].Velocity.Sub(a[i].Velocity)
		sum += dp.Dot(dp) + dv.Dot(dv)
	}
	return math.Sqrt(sum)
}

func renormalize(pert *engine.Engine, ref, cur []dynamo.Body, scale float64) {
	for i := range min(len(ref), len(cur)) {
		if cur[i].Fixed {
			continue
		}
		pos := ref[i].Position.Add(cur[i].Position.Sub(ref[i].Position).Scale(scale))
		vel := ref[i].Velocity.Add(cur[i].Velocity.Sub(ref[i].Velocity).Scale(scale))
		pert.SetPosition(cur[i].ID, pos)
		pert.SetVelocity(cur[i].ID, vel)
	}
}
