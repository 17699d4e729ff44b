// Package sim drives an engine headlessly for a fixed duration, feeding each
// frame to metrics and observers and recording the trajectory.
package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
	"github.com/san-kum/forcesim/internal/metrics"
)

type Simulator struct {
	eng       *engine.Engine
	metrics   []dynamo.Metric
	observers []dynamo.Observer
}

func New(eng *engine.Engine) *Simulator {
	return &Simulator{
		eng:       eng,
		metrics:   make([]dynamo.Metric, 0),
		observers: make([]dynamo.Observer, 0),
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }
func (s *Simulator) Engine() *engine.Engine        { return s.eng }

func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	start := time.Now()
	steps := cfg.Steps()
	every := max(cfg.RecordEvery, 1)
	result := &Result{
		Frames:  make([]dynamo.Frame, 0, steps/every+1),
		Times:   make([]float64, 0, steps/every+1),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	first := s.eng.Snapshot()
	first.Metrics.TotalEnergy = energyOf(s.eng)
	result.Frames = append(result.Frames, first)
	result.Times = append(result.Times, first.Time)
	initialEnergy := first.Metrics.TotalEnergy

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		s.eng.Update(cfg.Dt)
		frame := s.eng.Snapshot()
		result.StepsTaken++

		if cfg.ValidateState {
			if id, ok := firstInvalid(frame.Bodies); ok {
				err := StepError{Time: frame.Time, Step: i, Body: id, Message: "invalid state (NaN/Inf)"}
				result.Errors = append(result.Errors, err)
				break
			}
		}

		for _, m := range s.metrics {
			m.Observe(&frame)
		}
		for _, obs := range s.observers {
			obs.OnStep(&frame)
		}

		if (i+1)%every == 0 || i == steps-1 {
			result.Frames = append(result.Frames, frame)
			result.Times = append(result.Times, frame.Time)
		}
	}

	finalEnergy := s.eng.Metrics().TotalEnergy
	if initialEnergy != 0 {
		result.EnergyDrift = math.Abs(finalEnergy-initialEnergy) / math.Abs(initialEnergy)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	result.Elapsed = time.Since(start)

	return result, nil
}

// RunWithCallback steps until the duration elapses, the context is done, or
// callback returns false.
func (s *Simulator) RunWithCallback(ctx context.Context, cfg Config, callback func(*dynamo.Frame) bool) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	for i, steps := 0, cfg.Steps(); i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.eng.Update(cfg.Dt)
		frame := s.eng.Snapshot()

		if cfg.ValidateState {
			if id, ok := firstInvalid(frame.Bodies); ok {
				return StepError{Time: frame.Time, Step: i, Body: id, Message: "invalid state (NaN/Inf)"}
			}
		}
		if !callback(&frame) {
			return nil
		}
	}

	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrInvalidRun, cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", dynamo.ErrInvalidRun, cfg.Duration)
	}
	if cfg.RecordEvery < 0 {
		return fmt.Errorf("%w: record interval must not be negative", dynamo.ErrInvalidRun)
	}
	return nil
}

func firstInvalid(bodies []dynamo.Body) (string, bool) {
	for i := range bodies {
		if !bodies[i].Position.IsValid() || !bodies[i].Velocity.IsValid() {
			return bodies[i].ID, true
		}
	}
	return "", false
}

func energyOf(eng *engine.Engine) float64 {
	bodies := eng.Bodies()
	ptrs := make([]*dynamo.Body, len(bodies))
	for i := range bodies {
		ptrs[i] = &bodies[i]
	}
	return metrics.Total(ptrs, eng.Config().Gravity)
}
