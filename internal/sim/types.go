package sim

import (
	"fmt"
	"time"

	"github.com/san-kum/forcesim/internal/dynamo"
)

type Config struct {
	Dt       float64
	Duration float64
	// RecordEvery keeps one frame out of every n steps. Zero or one keeps all.
	RecordEvery   int
	ValidateState bool
}

func (c Config) Steps() int {
	return int(c.Duration/c.Dt + 0.5)
}

type Result struct {
	Frames      []dynamo.Frame
	Times       []float64
	Metrics     map[string]float64
	StepsTaken  int
	EnergyDrift float64
	Errors      []error
	// Elapsed is the wall-clock time the run took.
	Elapsed     time.Duration
}

// Final returns the last recorded frame.
func (r *Result) Final() dynamo.Frame {
	if len(r.Frames) == 0 {
		return dynamo.Frame{}
	}
	return r.Frames[len(r.Frames)-1]
}

// StepError reports the step at which a run stopped.
type StepError struct {
	Time    float64
	Step    int
	Body    string
	Message string
}

func (e StepError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("step %d (t=%.4f) body %s: %s", e.Step, e.Time, e.Body, e.Message)
	}
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}

func (e StepError) Unwrap() error {
	return dynamo.ErrDiverged
}
