// Package automation runs scripted batches of scenes, parameter sweeps and
// Monte Carlo trials on top of experiments.
package automation

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"slices"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/forcesim/internal/config"
	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
	"github.com/san-kum/forcesim/internal/experiment"
	"github.com/san-kum/forcesim/internal/sim"
	"github.com/san-kum/forcesim/internal/storage"
)

// Scenario defines a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep names a scene by preset or by file, plus run overrides.
type ScenarioStep struct {
	Preset      string             `yaml:"preset,omitempty"`
	Config      string             `yaml:"config,omitempty"`
	Integrator  string             `yaml:"integrator,omitempty"`
	Duration    float64            `yaml:"duration,omitempty"`
	Dt          float64            `yaml:"dt,omitempty"`
	RecordEvery int                `yaml:"record_every,omitempty"`
	Params      map[string]float64 `yaml:"params,omitempty"`
	SaveAs      string             `yaml:"save_as,omitempty"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrInvalidScene, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%w: scenario %q has no steps", dynamo.ErrInvalidScene, scenario.Name)
	}
	for i, step := range scenario.Steps {
		if (step.Preset == "") == (step.Config == "") {
			return nil, fmt.Errorf("%w: step %d needs exactly one of preset or config", dynamo.ErrInvalidScene, i+1)
		}
	}

	return &scenario, nil
}

func (s ScenarioStep) scene() (*config.Scene, error) {
	var (
		scene *config.Scene
		err   error
	)
	if s.Config != "" {
		scene, err = config.Load(s.Config)
	} else {
		scene, err = config.GetPreset(s.Preset)
	}
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := scene.SetParam(k, s.Params[k]); err != nil {
			return nil, err
		}
	}
	return scene, nil
}

// Runner carries what every automated run shares.
type Runner struct {
	Logger  *log.Logger
	Options []engine.Option
}

func (r Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.New(io.Discard)
	}
	return r.Logger
}

// StepResult pairs a finished run with the parameters storage records.
type StepResult struct {
	Params storage.RunParams
	Result *sim.Result
}

// RunScenario executes the steps in order and stops at the first failure,
// returning the results gathered so far.
func (r Runner) RunScenario(ctx context.Context, scenario *Scenario) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		scene, err := step.scene()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		r.logger().Info("running step", "step", i+1, "total", len(scenario.Steps), "scene", scene.Name)

		exp := experiment.New(experiment.Config{
			Scene:       scene,
			Integrator:  dynamo.IntegratorKind(step.Integrator),
			Dt:          step.Dt,
			Duration:    step.Duration,
			RecordEvery: step.RecordEvery,
		}, r.Options...)
		if err := exp.Setup(experiment.DefaultMetrics()); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		params := exp.Params()
		if step.SaveAs != "" {
			params.Scene = step.SaveAs
		}
		results = append(results, StepResult{Params: params, Result: result})
	}

	return results, nil
}

// ParameterSweep varies one tunable scene parameter evenly between Min and
// Max inclusive.
type ParameterSweep struct {
	Scene      *config.Scene
	Integrator dynamo.IntegratorKind
	Param      string
	Min        float64
	Max        float64
	NumSteps   int
	Dt         float64
	Duration   float64
}

type SweepResult struct {
	Value       float64
	EnergyDrift float64
	MinEnergy   float64
	MaxEnergy   float64
	Stability   float64
	Contacts    float64
}

func (r Runner) RunSweep(ctx context.Context, sweep ParameterSweep) ([]SweepResult, error) {
	if sweep.Scene == nil || sweep.NumSteps < 1 {
		return nil, fmt.Errorf("%w: sweep needs a scene and at least one step", dynamo.ErrInvalidRun)
	}

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.Max - sweep.Min) / float64(sweep.NumSteps-1)
	}

	results := make([]SweepResult, 0, sweep.NumSteps)
	for i := 0; i < sweep.NumSteps; i++ {
		val := sweep.Min + float64(i)*paramStep

		scene := *sweep.Scene
		if err := scene.SetParam(sweep.Param, val); err != nil {
			return nil, err
		}

		exp := experiment.New(experiment.Config{
			Scene:      &scene,
			Integrator: sweep.Integrator,
			Dt:         sweep.Dt,
			Duration:   sweep.Duration,
		}, r.Options...)
		if err := exp.Setup(experiment.DefaultMetrics()); err != nil {
			return nil, err
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return nil, err
		}

		lo, hi := energyRange(result.Frames)
		results = append(results, SweepResult{
			Value:       val,
			EnergyDrift: result.EnergyDrift,
			MinEnergy:   lo,
			MaxEnergy:   hi,
			Stability:   result.Metrics["stability"],
			Contacts:    result.Metrics["contact_rate"],
		})

		r.logger().Debug("sweep", "step", i+1, "total", sweep.NumSteps, sweep.Param, val)
	}

	return results, nil
}

func energyRange(frames []dynamo.Frame) (float64, float64) {
	if len(frames) == 0 {
		return 0, 0
	}
	lo, hi := frames[0].Metrics.TotalEnergy, frames[0].Metrics.TotalEnergy
	for _, f := range frames {
		lo = min(lo, f.Metrics.TotalEnergy)
		hi = max(hi, f.Metrics.TotalEnergy)
	}
	return lo, hi
}

// MonteCarloConfig jitters every movable body's start position by up to
// Perturbation along each axis.
type MonteCarloConfig struct {
	Scene        *config.Scene
	Integrator   dynamo.IntegratorKind
	Perturbation float64
	NumTrials    int
	Dt           float64
	Duration     float64
	Seed         int64
}

type MonteCarloResult struct {
	Trial       int
	EnergyDrift float64
	Stable      bool
}

// escapeLimit is how far from the origin a body may end up before the trial
// counts as unstable.
const escapeLimit = 1e6

// RunMonteCarlo runs the trials concurrently. Trial i draws from a generator
// seeded with (Seed, i), so results do not depend on scheduling.
func (r Runner) RunMonteCarlo(ctx context.Context, cfg MonteCarloConfig) ([]MonteCarloResult, error) {
	if cfg.Scene == nil || cfg.NumTrials < 1 {
		return nil, fmt.Errorf("%w: monte carlo needs a scene and at least one trial", dynamo.ErrInvalidRun)
	}

	base := experiment.Config{Scene: cfg.Scene, Integrator: cfg.Integrator, Dt: cfg.Dt, Duration: cfg.Duration, ValidateState: true}
	template := experiment.New(base, r.Options...)
	if err := template.Setup(nil); err != nil {
		return nil, err
	}
	params := template.Params()

	build := func(i int) (*engine.Engine, error) {
		rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(i)))
		scene := *cfg.Scene
		scene.Bodies = slices.Clone(cfg.Scene.Bodies)
		for j := range scene.Bodies {
			if scene.Bodies[j].Fixed {
				continue
			}
			jitter := dynamo.V((rng.Float64()*2-1)*cfg.Perturbation, (rng.Float64()*2-1)*cfg.Perturbation)
			scene.Bodies[j].Position = scene.Bodies[j].Position.Add(jitter)
		}

		c := base
		c.Scene = &scene
		exp := experiment.New(c, r.Options...)
		if err := exp.Setup(nil); err != nil {
			return nil, err
		}
		return exp.Simulator().Engine(), nil
	}

	runs, err := sim.NewEnsemble(build, cfg.NumTrials, nil).Run(ctx, sim.Config{
		Dt:            params.Dt,
		Duration:      params.Duration,
		RecordEvery:   math.MaxInt32,
		ValidateState: true,
	})
	if err != nil {
		return nil, err
	}

	results := make([]MonteCarloResult, len(runs))
	for i, res := range runs {
		results[i] = MonteCarloResult{
			Trial:       i,
			EnergyDrift: res.EnergyDrift,
			Stable:      len(res.Errors) == 0 && bounded(res.Final().Bodies),
		}
	}
	r.logger().Info("monte carlo complete", "trials", cfg.NumTrials)

	return results, nil
}

func bounded(bodies []dynamo.Body) bool {
	for _, b := range bodies {
		if b.Position.Magnitude() > escapeLimit {
			return false
		}
	}
	return true
}

// MonteCarloStats counts stable and unstable trials.
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
