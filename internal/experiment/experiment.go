// Package experiment prepares headless runs of a scene: it applies run
// overrides, builds the engine and attaches the default metrics.
package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/forcesim/internal/config"
	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
	"github.com/san-kum/forcesim/internal/integrators"
	"github.com/san-kum/forcesim/internal/sim"
	"github.com/san-kum/forcesim/internal/storage"
)

var ErrNotSetup = errors.New("forcesim: experiment not set up")

// Config describes one run. Zero values keep what the scene says: an empty
// Integrator keeps the scene's integrator, Dt <= 0 uses the engine time step
// and Duration <= 0 uses the scene duration.
type Config struct {
	Scene         *config.Scene
	Integrator    dynamo.IntegratorKind
	Dt            float64
	Duration      float64
	Seed          int64
	RecordEvery   int
	ValidateState bool
}

type Experiment struct {
	cfg       Config
	opts      []engine.Option
	simulator *sim.Simulator
}

func New(cfg Config, opts ...engine.Option) *Experiment {
	return &Experiment{cfg: cfg, opts: opts}
}

// Setup builds the engine and attaches metrics. It also resolves the run
// parameters, so Params is meaningful only after Setup succeeds.
func (e *Experiment) Setup(metrics []dynamo.Metric) error {
	if e.cfg.Scene == nil {
		return fmt.Errorf("%w: no scene", dynamo.ErrInvalidRun)
	}

	scene := *e.cfg.Scene
	if e.cfg.Integrator != "" {
		if _, err := integrators.New(e.cfg.Integrator); err != nil {
			return err
		}
		scene.Engine.Integrator = dynamo.Ptr(e.cfg.Integrator)
	}

	eng, err := scene.Build(e.opts...)
	if err != nil {
		return err
	}

	engCfg := eng.Config()
	if e.cfg.Dt <= 0 {
		e.cfg.Dt = engCfg.TimeStep
	}
	if e.cfg.Duration <= 0 {
		e.cfg.Duration = scene.Duration
	}
	if e.cfg.Seed == 0 {
		e.cfg.Seed = scene.Seed
	}
	e.cfg.Integrator = engCfg.Integrator

	e.simulator = sim.New(eng)
	for _, m := range metrics {
		e.simulator.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, ErrNotSetup
	}
	return e.simulator.Run(ctx, e.simConfig())
}

func (e *Experiment) simConfig() sim.Config {
	return sim.Config{
		Dt:            e.cfg.Dt,
		Duration:      e.cfg.Duration,
		RecordEvery:   e.cfg.RecordEvery,
		ValidateState: e.cfg.ValidateState,
	}
}

// Params returns the resolved run parameters in the form storage records.
func (e *Experiment) Params() storage.RunParams {
	return storage.RunParams{
		Scene:      e.cfg.Scene.Name,
		Integrator: e.cfg.Integrator,
		Dt:         e.cfg.Dt,
		Duration:   e.cfg.Duration,
		Seed:       e.cfg.Seed,
	}
}

// Simulator returns the underlying simulator for adding observers.
func (e *Experiment) Simulator() *sim.Simulator {
	return e.simulator
}
