// Package stream broadcasts engine frames to websocket clients and applies
// their commands. One goroutine owns the engine; connections talk to it over
// channels.
package stream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

type HubConfig struct {
	Logger *log.Logger
	// Tick is the interval between steps. Zero uses the engine's time step.
	Tick time.Duration
	// EngineOptions are passed to engines built by load_preset.
	EngineOptions []engine.Option
}

type Hub struct {
	eng       *engine.Engine
	logger    *log.Logger
	tick      time.Duration
	fixedTick bool
	opts     []engine.Option
	upgrader websocket.Upgrader
	now      func() time.Time

	register   chan *client
	unregister chan *client
	commands   chan envelope
	done       chan struct{}

	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type envelope struct {
	cmd  Command
	from *client
}

func NewHub(eng *engine.Engine, cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	tick := cfg.Tick
	if tick <= 0 {
		tick = tickFor(eng)
	}

	return &Hub{
		eng:       eng,
		logger:    logger,
		tick:      tick,
		fixedTick: cfg.Tick > 0,
		opts:      cfg.EngineOptions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		now:        time.Now,
		register:   make(chan *client),
		unregister: make(chan *client),
		commands:   make(chan envelope),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
}

// Run owns the engine until ctx is done. The world only advances while at
// least one client is connected.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	h.logger.Info("stream started", "tick", h.tick)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			h.logger.Info("stream stopped")
			return ctx.Err()

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Info("client connected", "remote", c.conn.RemoteAddr(), "clients", len(h.clients))
			h.sendTo(c, h.frame())

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.logger.Info("client disconnected", "remote", c.conn.RemoteAddr(), "clients", len(h.clients))
			}

		case env := <-h.commands:
			next, err := apply(h.eng, env.cmd, h.opts)
			if err != nil {
				h.logger.Warn("command rejected", "type", env.cmd.Type, "err", err)
				h.sendTo(env.from, h.encode(ErrorMessage{Type: "error", Command: env.cmd.Type, Error: err.Error()}))
				continue
			}
			if next != h.eng {
				h.logger.Info("preset loaded", "preset", env.cmd.Preset, "bodies", len(next.Bodies()))
				if h.swap(next) {
					ticker.Reset(h.tick)
				}
			}
			h.logger.Debug("command applied", "type", env.cmd.Type)
			h.broadcast(h.frame())

		case <-ticker.C:
			if len(h.clients) == 0 || h.eng.IsPaused() {
				continue
			}
			h.eng.Update(0)
			h.broadcast(h.frame())
		}
	}
}

// ServeHTTP upgrades the request and pumps messages until the connection or
// the hub goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			h.logger.Warn("discarding malformed message", "remote", c.conn.RemoteAddr(), "err", err)
			continue
		}

		select {
		case h.commands <- envelope{cmd: cmd, from: c}:
		case <-h.done:
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func tickFor(eng *engine.Engine) time.Duration {
	return time.Duration(eng.Config().TimeStep * float64(time.Second))
}

// swap installs next and reports whether the tick interval changed.
func (h *Hub) swap(next *engine.Engine) bool {
	h.eng = next
	if h.fixedTick {
		return false
	}
	tick := tickFor(next)
	if tick <= 0 || tick == h.tick {
		return false
	}
	h.logger.Debug("tick changed", "from", h.tick, "to", tick)
	h.tick = tick
	return true
}

// frame encodes the current world. JSON has no Inf or NaN, so a diverged
// world pauses the engine and yields an error message instead.
func (h *Hub) frame() []byte {
	snap := h.eng.Snapshot()
	data, err := json.Marshal(FrameMessage{
		Type:      "frame",
		Timestamp: float64(h.now().UnixNano()) / float64(time.Second),
		Time:      snap.Time,
		Paused:    h.eng.IsPaused(),
		Bodies:    snap.Bodies,
		Metrics:   snap.Metrics,
	})
	if err == nil {
		return data
	}

	if !h.eng.IsPaused() {
		h.logger.Error("pausing diverged simulation", "time", snap.Time, "err", err)
		h.eng.Pause()
	}
	return h.encode(ErrorMessage{Type: "error", Command: "frame", Error: dynamo.ErrDiverged.Error()})
}

func (h *Hub) encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encode failed", "err", err)
		return nil
	}
	return data
}

func (h *Hub) broadcast(msg []byte) {
	for c := range h.clients {
		h.sendTo(c, msg)
	}
}

// sendTo queues msg for c and drops clients that cannot keep up.
func (h *Hub) sendTo(c *client, msg []byte) {
	if msg == nil {
		return
	}
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("dropping slow client", "remote", c.conn.RemoteAddr())
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
}

// Engine returns the engine currently owned by the hub. Only safe to use
// after Run has returned.
func (h *Hub) Engine() *engine.Engine {
	return h.eng
}
