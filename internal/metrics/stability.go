package metrics

import "github.com/san-kum/forcesim/internal/dynamo"

// Stability is the fraction of frames in which every body stayed finite and
// under the speed threshold. It also remembers the fastest finite speed seen.
type Stability struct {
	name      string
	threshold float64
	bad       int
	frames    int
	peak      float64
}

func NewStability(threshold float64) *Stability {
	return &Stability{name: "stability", threshold: threshold}
}

func (s *Stability) Name() string { return s.name }

func (s *Stability) Observe(f *dynamo.Frame) {
	s.frames++
	violated := false
	for i := range f.Bodies {
		b := &f.Bodies[i]
		if !b.Position.IsValid() || !b.Velocity.IsValid() {
			violated = true
			continue
		}
		speed := b.Velocity.Magnitude()
		s.peak = max(s.peak, speed)
		if speed > s.threshold {
			violated = true
		}
	}
	if violated {
		s.bad++
	}
}

func (s *Stability) Value() float64 {
	if s.frames == 0 {
		return 1
	}
	return 1 - float64(s.bad)/float64(s.frames)
}

// Peak is the highest finite body speed observed since the last Reset.
func (s *Stability) Peak() float64 { return s.peak }

func (s *Stability) Reset() {
	s.bad = 0
	s.frames = 0
	s.peak = 0
}
