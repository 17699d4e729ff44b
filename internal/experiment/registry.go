package experiment

import (
	"context"

	"github.com/san-kum/forcesim/internal/config"
	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
	"github.com/san-kum/forcesim/internal/metrics"
	"github.com/san-kum/forcesim/internal/sim"
)

// StableSpeed is the speed below which a body counts as settled.
const StableSpeed = 2 * dynamo.DefaultMaxVelocity

// DefaultMetrics returns a fresh metric set. Metrics hold state, so every run
// needs its own.
func DefaultMetrics() []dynamo.Metric {
	return []dynamo.Metric{
		metrics.NewEnergyDrift(),
		metrics.NewMeanEnergy(),
		metrics.NewStability(StableSpeed),
		metrics.NewContactRate(),
	}
}

// Comparison is the outcome of one scene under one integrator.
type Comparison struct {
	Integrator dynamo.IntegratorKind
	Result     *sim.Result
}

// Compare runs the scene once per integrator concurrently. Every run gets its
// own engine built from the same scene.
func Compare(ctx context.Context, cfg Config, kinds []dynamo.IntegratorKind, opts ...engine.Option) ([]Comparison, error) {
	template := New(cfg, opts...)
	if err := template.Setup(nil); err != nil {
		return nil, err
	}
	runCfg := template.simConfig()

	build := func(i int) (*engine.Engine, error) {
		c := cfg
		c.Integrator = kinds[i]
		exp := New(c, opts...)
		if err := exp.Setup(nil); err != nil {
			return nil, err
		}
		return exp.Simulator().Engine(), nil
	}

	results, err := sim.NewEnsemble(build, len(kinds), DefaultMetrics).Run(ctx, runCfg)
	if err != nil {
		return nil, err
	}

	out := make([]Comparison, len(kinds))
	for i, res := range results {
		out[i] = Comparison{Integrator: kinds[i], Result: res}
	}
	return out, nil
}

// ScenePreset is a convenience for resolving a preset scene into a Config.
func ScenePreset(name string) (Config, error) {
	scene, err := config.GetPreset(name)
	if err != nil {
		return Config{}, err
	}
	return Config{Scene: scene}, nil
}
