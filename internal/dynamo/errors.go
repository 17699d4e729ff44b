package dynamo

import "errors"

// Domain errors for the packages around the engine. The engine itself never
// returns these from its per-frame API.
var (
	// ErrUnknownIntegrator indicates an integrator name outside euler, verlet and rk4.
	ErrUnknownIntegrator = errors.New("forcesim: unknown integrator")

	// ErrUnknownForce indicates a force kind that cannot be built from a scene file.
	ErrUnknownForce = errors.New("forcesim: unknown force kind")

	// ErrUnknownPreset indicates a preset scene name that is not registered.
	ErrUnknownPreset = errors.New("forcesim: unknown preset")

	// ErrInvalidScene indicates a scene description that cannot be loaded.
	ErrInvalidScene = errors.New("forcesim: invalid scene")

	// ErrUnknownParam indicates a tunable scene parameter that does not exist.
	ErrUnknownParam = errors.New("forcesim: unknown parameter")

	// ErrInvalidRun indicates run parameters that cannot drive a simulation.
	ErrInvalidRun = errors.New("forcesim: invalid run parameters")

	// ErrDiverged indicates a body state became NaN or Inf.
	ErrDiverged = errors.New("forcesim: simulation diverged (NaN or Inf detected)")
)
