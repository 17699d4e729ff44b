package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
	"github.com/san-kum/forcesim/internal/forces"
)

const (
	DefaultDuration = 10.0
	DefaultSeed     = 1
)

// Scene is everything needed to populate an engine: its configuration, the
// force stack, and the initial bodies and springs.
type Scene struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Duration    float64            `yaml:"duration"`
	Seed        int64              `yaml:"seed,omitempty"`
	Engine      dynamo.ConfigPatch `yaml:"engine"`
	Forces      []ForceSpec        `yaml:"forces"`
	Bodies      []dynamo.Body      `yaml:"bodies"`
	Springs     []dynamo.Spring    `yaml:"springs,omitempty"`
}

// ForceSpec names one force by the same name the forces package gives it.
// Vector is used by gravity and center, Strength by the others.
type ForceSpec struct {
	Kind     string      `yaml:"kind"`
	Vector   dynamo.Vec2 `yaml:"vector,omitempty"`
	Strength float64     `yaml:"strength,omitempty"`
}

func DefaultScene() *Scene {
	return &Scene{
		Name:     "untitled",
		Duration: DefaultDuration,
		Seed:     DefaultSeed,
	}
}

func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a yaml scene over the defaults and validates it.
func Parse(data []byte) (*Scene, error) {
	s := DefaultScene()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrInvalidScene, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func Save(path string, s *Scene) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (s *Scene) Validate() error {
	ids := make(map[string]struct{}, len(s.Bodies))
	for i, b := range s.Bodies {
		if b.ID == "" {
			return fmt.Errorf("%w: body %d has no id", dynamo.ErrInvalidScene, i)
		}
		if _, dup := ids[b.ID]; dup {
			return fmt.Errorf("%w: duplicate body id %q", dynamo.ErrInvalidScene, b.ID)
		}
		if b.Mass <= 0 {
			return fmt.Errorf("%w: body %q mass must be positive", dynamo.ErrInvalidScene, b.ID)
		}
		if b.Radius < 0 {
			return fmt.Errorf("%w: body %q radius is negative", dynamo.ErrInvalidScene, b.ID)
		}
		ids[b.ID] = struct{}{}
	}

	for _, sp := range s.Springs {
		for _, end := range []string{sp.BodyA, sp.BodyB} {
			if _, ok := ids[end]; !ok {
				return fmt.Errorf("%w: spring %q references unknown body %q", dynamo.ErrInvalidScene, sp.ID, end)
			}
		}
	}

	for _, fs := range s.Forces {
		if _, err := fs.Build(dynamo.Vec2{}); err != nil {
			return fmt.Errorf("%w: %v", dynamo.ErrInvalidScene, err)
		}
	}

	if s.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", dynamo.ErrInvalidScene)
	}
	return nil
}

// Build turns the spec into a force. A gravity spec with a zero vector takes
// the engine's configured gravity.
func (fs ForceSpec) Build(gravity dynamo.Vec2) (forces.Force, error) {
	switch fs.Kind {
	case "gravity":
		if fs.Vector.IsZero() {
			return forces.Gravity(gravity), nil
		}
		return forces.Gravity(fs.Vector), nil
	case "springs":
		return forces.Springs(), nil
	case "repulsion":
		return forces.Repulsion(fs.Strength), nil
	case "nbody":
		return forces.NBodyGravity(fs.Strength), nil
	case "drag":
		return forces.Drag(fs.Strength), nil
	case "center":
		return forces.CenterAttraction(fs.Vector, fs.Strength), nil
	default:
		return forces.Force{}, fmt.Errorf("%w: %q", dynamo.ErrUnknownForce, fs.Kind)
	}
}

// Build creates an engine populated with the scene.
func (s *Scene) Build(opts ...engine.Option) (*engine.Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	eng := engine.New(s.Engine, opts...)
	gravity := eng.Config().Gravity
	for _, fs := range s.Forces {
		f, err := fs.Build(gravity)
		if err != nil {
			return nil, err
		}
		eng.AddForce(f)
	}
	for _, b := range s.Bodies {
		eng.AddBody(b)
	}
	for _, sp := range s.Springs {
		eng.AddSpring(sp)
	}
	return eng, nil
}
