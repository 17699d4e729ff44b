package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/engine"
	"github.com/san-kum/forcesim/internal/metrics"
)

const (
	historyCapacity = 600
	sparkWidth      = 40
	stableSpeed     = 2 * dynamo.DefaultMaxVelocity
)

type TickMsg time.Time

// Rebuild returns a fresh engine for the scene being shown.
type Rebuild func() (*engine.Engine, error)

// Model steps an engine once per tick and keeps the metric history shown by
// View.
type Model struct {
	eng     *engine.Engine
	scene   string
	rebuild Rebuild
	tick    time.Duration

	drift     *metrics.EnergyDrift
	stability *metrics.Stability
	contacts  *metrics.ContactRate

	energyHistory []float64
	fpsHistory    []float64
	theme         int
	showHelp      bool
	err           error
}

func NewModel(eng *engine.Engine, scene string, rebuild Rebuild) Model {
	return Model{
		eng:           eng,
		scene:         scene,
		rebuild:       rebuild,
		tick:          time.Duration(eng.Config().TimeStep * float64(time.Second)),
		drift:         metrics.NewEnergyDrift(),
		stability:     metrics.NewStability(stableSpeed),
		contacts:      metrics.NewContactRate(),
		energyHistory: make([]float64, 0, historyCapacity),
		fpsHistory:    make([]float64, 0, historyCapacity),
	}
}

// WithTheme switches to the named theme. Unknown names keep the current one.
func (m Model) WithTheme(name string) Model {
	if i, ok := themeIndex(name); ok {
		m.theme = i
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return m.nextTick()
}

func (m Model) nextTick() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.eng.IsPaused() {
				m.eng.Resume()
			} else {
				m.eng.Pause()
			}
		case "r":
			m.reset()
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if !m.eng.IsPaused() {
			m.step()
		}
		return m, m.nextTick()
	}
	return m, nil
}

func (m *Model) step() {
	m.eng.Update(0)
	frame := m.eng.Snapshot()

	m.drift.Observe(&frame)
	m.stability.Observe(&frame)
	m.contacts.Observe(&frame)

	m.energyHistory = appendCapped(m.energyHistory, frame.Metrics.TotalEnergy)
	m.fpsHistory = appendCapped(m.fpsHistory, frame.Metrics.FPS)
}

func (m *Model) reset() {
	if m.rebuild == nil {
		return
	}
	eng, err := m.rebuild()
	if err != nil {
		m.err = err
		return
	}
	m.eng = eng
	m.err = nil
	m.drift.Reset()
	m.stability.Reset()
	m.contacts.Reset()
	m.energyHistory = m.energyHistory[:0]
	m.fpsHistory = m.fpsHistory[:0]
}

func appendCapped(xs []float64, v float64) []float64 {
	xs = append(xs, v)
	if len(xs) > historyCapacity {
		xs = xs[1:]
	}
	return xs
}

func (m Model) View() string {
	p := paletteFor(Themes[m.theme])
	mt := m.eng.Metrics()
	cfg := m.eng.Config()

	status := p.running.Render("RUNNING")
	if m.eng.IsPaused() {
		status = p.paused.Render("PAUSED")
	}

	var s strings.Builder
	s.WriteString(p.title.Render(strings.ToUpper(m.scene)) + "  " + status + "\n")

	row := func(label, value string) {
		s.WriteString(p.label.Render(label) + p.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", m.eng.Time()))
	row("Integrator", string(cfg.Integrator))
	row("FPS", fmt.Sprintf("%.1f", mt.FPS))
	row("Step cost", mt.ComputeTime.String())
	row("Bodies", fmt.Sprintf("%d", mt.BodyCount))
	row("Springs", fmt.Sprintf("%d", mt.SpringCount))
	row("Checks", fmt.Sprintf("%d", mt.CollisionChecks))
	row("Contacts", fmt.Sprintf("%d (avg %.2f)", mt.Collisions, m.contacts.Value()))
	row("Energy", fmt.Sprintf("%.3f", mt.TotalEnergy))
	row("Drift", fmt.Sprintf("%.2f%%", m.drift.Value()*100))
	row("Peak speed", fmt.Sprintf("%.1f", m.stability.Peak()))
	s.WriteString(p.label.Render("Stability") + p.progressBar(m.stability.Value(), 20) + "\n")
	s.WriteString(p.label.Render("FPS trend") + p.sparkline(m.fpsHistory, sparkWidth) + "\n")

	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(6), asciigraph.Width(50), asciigraph.Caption("Total energy"))
		s.WriteString(p.graph.Render(chart) + "\n")
	}

	if m.err != nil {
		s.WriteString(p.low.Render("rebuild failed: "+m.err.Error()) + "\n")
	}

	if m.showHelp {
		s.WriteString(p.hint.Render("space pause/resume · r rebuild · t theme (" + Themes[m.theme].Name + ") · ? help · q quit"))
	} else {
		s.WriteString(p.hint.Render("? help"))
	}

	return p.panel.Render(s.String())
}

// Run shows the dashboard until the user quits.
func Run(eng *engine.Engine, scene, theme string, rebuild Rebuild) error {
	m := NewModel(eng, scene, rebuild).WithTheme(theme)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
