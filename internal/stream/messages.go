package stream

import (
	"errors"
	"fmt"

	"github.com/san-kum/forcesim/internal/config"
	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
	"github.com/san-kum/forcesim/internal/forces"
)

// Client message types.
const (
	CmdPause        = "pause"
	CmdResume       = "resume"
	CmdReset        = "reset"
	CmdAddBody      = "add_body"
	CmdRemoveBody   = "remove_body"
	CmdSetGravity   = "set_gravity"
	CmdLoadPreset   = "load_preset"
	CmdApplyImpulse = "apply_impulse"
	CmdSetPosition  = "set_position"
	CmdSetVelocity  = "set_velocity"
)

var (
	errUnknownCommand = errors.New("unknown command")
	errMissingField   = errors.New("missing field")
)

// Command is a client request. Which fields matter depends on Type.
type Command struct {
	Type   string       `json:"type"`
	BodyID string       `json:"body_id,omitempty"`
	Body   *dynamo.Body `json:"body,omitempty"`
	Vector *dynamo.Vec2 `json:"vector,omitempty"`
	Preset string       `json:"preset,omitempty"`
}

type FrameMessage struct {
	Type      string         `json:"type"`
	Timestamp float64        `json:"timestamp"`
	Time      float64        `json:"time"`
	Paused    bool           `json:"paused"`
	Bodies    []dynamo.Body  `json:"bodies"`
	Metrics   dynamo.Metrics `json:"metrics"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Error   string `json:"error"`
}

// apply runs cmd against eng. load_preset returns the replacement engine.
func apply(eng *engine.Engine, cmd Command, opts []engine.Option) (*engine.Engine, error) {
	switch cmd.Type {
	case CmdPause:
		eng.Pause()
	case CmdResume:
		eng.Resume()
	case CmdReset:
		eng.Reset()
	case CmdAddBody:
		if cmd.Body == nil || cmd.Body.ID == "" {
			return eng, fmt.Errorf("%s: %w: body", cmd.Type, errMissingField)
		}
		eng.AddBody(*cmd.Body)
	case CmdRemoveBody:
		if !eng.RemoveBody(cmd.BodyID) {
			return eng, fmt.Errorf("%s: no body %q", cmd.Type, cmd.BodyID)
		}
	case CmdSetGravity:
		if cmd.Vector == nil {
			return eng, fmt.Errorf("%s: %w: vector", cmd.Type, errMissingField)
		}
		setGravity(eng, *cmd.Vector)
	case CmdLoadPreset:
		scene, err := config.GetPreset(cmd.Preset)
		if err != nil {
			return eng, err
		}
		return scene.Build(opts...)
	case CmdApplyImpulse, CmdSetPosition, CmdSetVelocity:
		if cmd.Vector == nil {
			return eng, fmt.Errorf("%s: %w: vector", cmd.Type, errMissingField)
		}
		if _, ok := eng.Body(cmd.BodyID); !ok {
			return eng, fmt.Errorf("%s: no body %q", cmd.Type, cmd.BodyID)
		}
		switch cmd.Type {
		case CmdApplyImpulse:
			eng.ApplyImpulse(cmd.BodyID, *cmd.Vector)
		case CmdSetPosition:
			eng.SetPosition(cmd.BodyID, *cmd.Vector)
		default:
			eng.SetVelocity(cmd.BodyID, *cmd.Vector)
		}
	default:
		return eng, fmt.Errorf("%w %q", errUnknownCommand, cmd.Type)
	}
	return eng, nil
}

// setGravity updates the configured gravity and swaps the uniform gravity
// force for one matching it.
func setGravity(eng *engine.Engine, g dynamo.Vec2) {
	eng.UpdateConfig(dynamo.ConfigPatch{Gravity: &g})

	kept := eng.Forces()
	eng.ClearForces()
	for _, f := range kept {
		if f.Kind() != forces.KindGravity {
			eng.AddForce(f)
		}
	}
	if !g.IsZero() {
		eng.AddForce(forces.Gravity(g))
	}
}
