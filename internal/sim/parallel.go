package sim

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
)

// Builder creates the engine for run i. Every run gets its own engine, so
// runs share no state.
type Builder func(i int) (*engine.Engine, error)

// Ensemble runs independent simulations concurrently, one goroutine per run.
type Ensemble struct {
	build   Builder
	numRuns int
	metrics func() []dynamo.Metric
}

// NewEnsemble prepares numRuns runs. newMetrics, when set, is called once per
// run so metric state is never shared between goroutines.
func NewEnsemble(build Builder, numRuns int, newMetrics func() []dynamo.Metric) *Ensemble {
	return &Ensemble{build: build, numRuns: numRuns, metrics: newMetrics}
}

func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, e.numRuns)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			eng, err := e.build(i)
			if err != nil {
				return err
			}

			s := New(eng)
			if e.metrics != nil {
				for _, m := range e.metrics() {
					s.AddMetric(m)
				}
			}

			res, err := s.Run(ctx, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
