package integrators

import (
	"fmt"
	"slices"

	"github.com/san-kum/forcesim/internal/dynamo"
)

var registry = map[dynamo.IntegratorKind]func() dynamo.Integrator{
	dynamo.IntegratorEuler:  func() dynamo.Integrator { return NewEuler() },
	dynamo.IntegratorVerlet: func() dynamo.Integrator { return NewVerlet() },
	dynamo.IntegratorRK4:    func() dynamo.Integrator { return NewRK4() },
}

func New(kind dynamo.IntegratorKind) (dynamo.Integrator, error) {
	fn, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", dynamo.ErrUnknownIntegrator, kind)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, string(k))
	}
	slices.Sort(names)
	return names
}
