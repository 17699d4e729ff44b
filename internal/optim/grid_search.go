// Package optim searches scene parameter grids for the values that minimize
// a run metric.
package optim

import (
	"context"
	"fmt"
	"maps"
	"math"

	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/experiment"
)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

// NewGridSearch tries every combination of ranges[i] for params[i].
func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search runs base once per grid point and returns the point with the lowest
// value of metricName. Context errors abort the search; a failing grid point
// is skipped. It is an error if no point produced the metric.
func (g *GridSearch) Search(ctx context.Context, base experiment.Config, metricName string) (map[string]float64, float64, error) {
	if base.Scene == nil {
		return nil, 0, fmt.Errorf("%w: no scene", dynamo.ErrInvalidRun)
	}
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("%w: %d params but %d ranges", dynamo.ErrInvalidRun, len(g.paramNames), len(g.ranges))
	}

	best := math.Inf(1)
	var bestParams map[string]float64

	err := g.searchRecursive(ctx, 0, make(map[string]float64), base, metricName, &best, &bestParams)
	if err != nil {
		return nil, 0, err
	}
	if bestParams == nil {
		return nil, 0, fmt.Errorf("%w: no grid point produced metric %q", dynamo.ErrInvalidRun, metricName)
	}

	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base experiment.Config,
	metricName string,
	best *float64,
	bestParams *map[string]float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		val, ok, err := evaluate(ctx, base, current, metricName)
		if err != nil {
			return err
		}
		if ok && val < *best {
			*best = val
			*bestParams = maps.Clone(current)
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := maps.Clone(current)
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, base, metricName, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}

// evaluate reports ok=false for a grid point that could not run. Only
// context errors are returned.
func evaluate(ctx context.Context, base experiment.Config, params map[string]float64, metricName string) (float64, bool, error) {
	scene := *base.Scene
	for name, v := range params {
		if err := scene.SetParam(name, v); err != nil {
			return 0, false, nil
		}
	}

	cfg := base
	cfg.Scene = &scene
	exp := experiment.New(cfg)
	if err := exp.Setup(experiment.DefaultMetrics()); err != nil {
		return 0, false, nil
	}

	result, err := exp.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		return 0, false, nil
	}
	if len(result.Errors) > 0 {
		return 0, false, nil
	}

	val, ok := result.Metrics[metricName]
	if !ok || math.IsNaN(val) {
		return 0, false, nil
	}
	return val, true, nil
}
