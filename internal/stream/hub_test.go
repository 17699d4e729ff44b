package stream

import (
	"context"
	"errors"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
	"github.com/san-kum/forcesim/internal/forces"
)

type incoming struct {
	Type    string        `json:"type"`
	Time    float64       `json:"time"`
	Paused  bool          `json:"paused"`
	Bodies  []dynamo.Body `json:"bodies"`
	Command string        `json:"command"`
	Error   string        `json:"error"`
}

func movingEngine() *engine.Engine {
	eng := engine.New(dynamo.ConfigPatch{})
	eng.AddBody(dynamo.Body{ID: "a", Mass: 1, Radius: 5, Velocity: dynamo.V(10, 0)})
	return eng
}

func startHub(t *testing.T, eng *engine.Engine) (*Hub, *websocket.Conn, context.CancelFunc, chan error) {
	t.Helper()

	hub := NewHub(eng, HubConfig{Tick: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		cancel()
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})

	return hub, conn, cancel, done
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(incoming) bool) incoming {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var msg incoming
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
	t.Fatal("no matching message before deadline")
	return incoming{}
}

func send(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestHubSendsSnapshotThenSteps(t *testing.T) {
	_, conn, _, _ := startHub(t, movingEngine())

	first := readUntil(t, conn, func(m incoming) bool { return m.Type == "frame" })
	if first.Time != 0 {
		t.Errorf("initial frame time = %v, want 0", first.Time)
	}
	if len(first.Bodies) != 1 || first.Bodies[0].ID != "a" {
		t.Fatalf("initial bodies = %+v", first.Bodies)
	}

	later := readUntil(t, conn, func(m incoming) bool { return m.Type == "frame" && m.Time > 0 })
	if later.Bodies[0].Position.X <= 0 {
		t.Errorf("body did not move: %+v", later.Bodies[0])
	}
}

func TestHubPauseAndAddBody(t *testing.T) {
	_, conn, _, _ := startHub(t, movingEngine())
	readUntil(t, conn, func(m incoming) bool { return m.Type == "frame" })

	send(t, conn, Command{Type: CmdPause})
	paused := readUntil(t, conn, func(m incoming) bool { return m.Type == "frame" && m.Paused })

	send(t, conn, Command{Type: CmdAddBody, Body: &dynamo.Body{ID: "b", Mass: 1, Radius: 5, Position: dynamo.V(100, 0)}})
	added := readUntil(t, conn, func(m incoming) bool { return m.Type == "frame" && len(m.Bodies) == 2 })
	if added.Time != paused.Time {
		t.Errorf("time advanced while paused: %v -> %v", paused.Time, added.Time)
	}

	send(t, conn, Command{Type: CmdResume})
	readUntil(t, conn, func(m incoming) bool { return m.Type == "frame" && m.Time > paused.Time })
}

func TestHubRejectsBadCommands(t *testing.T) {
	_, conn, _, _ := startHub(t, movingEngine())
	readUntil(t, conn, func(m incoming) bool { return m.Type == "frame" })

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	send(t, conn, Command{Type: "warp"})

	msg := readUntil(t, conn, func(m incoming) bool { return m.Type == "error" })
	if msg.Command != "warp" || !strings.Contains(msg.Error, "unknown command") {
		t.Errorf("unexpected error message %+v", msg)
	}
}

func TestHubLoadPreset(t *testing.T) {
	_, conn, _, _ := startHub(t, movingEngine())
	readUntil(t, conn, func(m incoming) bool { return m.Type == "frame" })

	send(t, conn, Command{Type: CmdLoadPreset, Preset: "billiards"})
	msg := readUntil(t, conn, func(m incoming) bool { return m.Type == "frame" && len(m.Bodies) == 7 })
	if msg.Bodies[0].ID != "cue" {
		t.Errorf("first body = %s, want cue", msg.Bodies[0].ID)
	}

	send(t, conn, Command{Type: CmdLoadPreset, Preset: "nope"})
	errMsg := readUntil(t, conn, func(m incoming) bool { return m.Type == "error" })
	if !strings.Contains(errMsg.Error, "unknown preset") {
		t.Errorf("error = %q", errMsg.Error)
	}
}

func TestHubStopsOnCancel(t *testing.T) {
	_, conn, cancel, done := startHub(t, movingEngine())
	readUntil(t, conn, func(m incoming) bool { return m.Type == "frame" })

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Errorf("expected normal closure, got %v", err)
			}
			return
		}
	}
}

func TestHubPausesDivergedWorld(t *testing.T) {
	eng := engine.New(dynamo.ConfigPatch{})
	eng.AddBody(dynamo.Body{ID: "a", Mass: 1, Radius: 5, Position: dynamo.V(math.Inf(1), 0)})
	hub, conn, cancel, done := startHub(t, eng)

	msg := readUntil(t, conn, func(m incoming) bool { return m.Type == "error" })
	if msg.Command != "frame" || !strings.Contains(msg.Error, "diverged") {
		t.Errorf("unexpected error message %+v", msg)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	if !hub.Engine().IsPaused() {
		t.Error("diverged engine kept running")
	}
}

func TestSwapRecomputesTick(t *testing.T) {
	h := NewHub(movingEngine(), HubConfig{})
	if want := tickFor(movingEngine()); h.tick != want {
		t.Fatalf("tick = %v, want %v", h.tick, want)
	}

	coarse := func() *engine.Engine {
		return engine.New(dynamo.ConfigPatch{TimeStep: dynamo.Ptr(0.01)})
	}
	if !h.swap(coarse()) {
		t.Error("swap did not report a tick change")
	}
	if h.tick != 10*time.Millisecond {
		t.Errorf("tick = %v, want 10ms", h.tick)
	}
	if h.swap(coarse()) {
		t.Error("same time step reported as a change")
	}

	fixed := NewHub(movingEngine(), HubConfig{Tick: 5 * time.Millisecond})
	if fixed.swap(coarse()) || fixed.tick != 5*time.Millisecond {
		t.Errorf("configured tick changed to %v", fixed.tick)
	}
}

func TestApply(t *testing.T) {
	vec := func(x, y float64) *dynamo.Vec2 { v := dynamo.V(x, y); return &v }

	tests := []struct {
		name    string
		cmd     Command
		wantErr bool
		check   func(t *testing.T, eng *engine.Engine)
	}{
		{"pause", Command{Type: CmdPause}, false, func(t *testing.T, eng *engine.Engine) {
			if !eng.IsPaused() {
				t.Error("engine not paused")
			}
		}},
		{"reset", Command{Type: CmdReset}, false, func(t *testing.T, eng *engine.Engine) {
			if len(eng.Bodies()) != 0 {
				t.Error("bodies survived reset")
			}
		}},
		{"add body without id", Command{Type: CmdAddBody, Body: &dynamo.Body{Mass: 1}}, true, nil},
		{"remove body", Command{Type: CmdRemoveBody, BodyID: "a"}, false, func(t *testing.T, eng *engine.Engine) {
			if _, ok := eng.Body("a"); ok {
				t.Error("body a still present")
			}
		}},
		{"remove unknown body", Command{Type: CmdRemoveBody, BodyID: "zz"}, true, nil},
		{"impulse", Command{Type: CmdApplyImpulse, BodyID: "a", Vector: vec(0, 5)}, false, func(t *testing.T, eng *engine.Engine) {
			b, _ := eng.Body("a")
			if b.Velocity != dynamo.V(10, 5) {
				t.Errorf("velocity = %v", b.Velocity)
			}
		}},
		{"set position", Command{Type: CmdSetPosition, BodyID: "a", Vector: vec(3, 4)}, false, func(t *testing.T, eng *engine.Engine) {
			b, _ := eng.Body("a")
			if b.Position != dynamo.V(3, 4) {
				t.Errorf("position = %v", b.Position)
			}
		}},
		{"set velocity", Command{Type: CmdSetVelocity, BodyID: "a", Vector: vec(0, 0)}, false, func(t *testing.T, eng *engine.Engine) {
			b, _ := eng.Body("a")
			if !b.Velocity.IsZero() {
				t.Errorf("velocity = %v", b.Velocity)
			}
		}},
		{"set velocity without vector", Command{Type: CmdSetVelocity, BodyID: "a"}, true, nil},
		{"set velocity unknown body", Command{Type: CmdSetVelocity, BodyID: "zz", Vector: vec(1, 1)}, true, nil},
		{"gravity without vector", Command{Type: CmdSetGravity}, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := movingEngine()
			next, err := apply(eng, tt.cmd, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if next != eng {
				t.Error("engine replaced by a non-preset command")
			}
			if tt.check != nil {
				tt.check(t, next)
			}
		})
	}
}

func TestSetGravityReplacesUniformGravity(t *testing.T) {
	eng := movingEngine()
	eng.AddForce(forces.Gravity(dynamo.V(0, 1)))
	eng.AddForce(forces.Drag(0.1))

	setGravity(eng, dynamo.V(0, -5))

	fs := eng.Forces()
	if len(fs) != 2 {
		t.Fatalf("forces = %v", fs)
	}
	if fs[0].Kind() != forces.KindDrag || fs[1].Kind() != forces.KindGravity {
		t.Errorf("unexpected force order %v", fs)
	}
	if eng.Config().Gravity != dynamo.V(0, -5) {
		t.Errorf("config gravity = %v", eng.Config().Gravity)
	}

	setGravity(eng, dynamo.Vec2{})
	if len(eng.Forces()) != 1 {
		t.Errorf("zero gravity should remove the force, got %v", eng.Forces())
	}
}
