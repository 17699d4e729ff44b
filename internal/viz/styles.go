package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type palette struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	running lipgloss.Style
	paused  lipgloss.Style
	hint    lipgloss.Style
	panel   lipgloss.Style
	graph   lipgloss.Style
	high    lipgloss.Style
	mid     lipgloss.Style
	low     lipgloss.Style
}

func paletteFor(t Theme) palette {
	return palette{
		title:   lipgloss.NewStyle().Bold(true).Foreground(t.Secondary).MarginBottom(1),
		label:   lipgloss.NewStyle().Foreground(t.Muted).Width(14),
		value:   lipgloss.NewStyle().Foreground(t.Text).Bold(true),
		running: lipgloss.NewStyle().Bold(true).Foreground(t.Success),
		paused:  lipgloss.NewStyle().Bold(true).Foreground(t.Warning),
		hint:    lipgloss.NewStyle().Foreground(t.Muted).Italic(true).MarginTop(1),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 2),
		graph: lipgloss.NewStyle().Foreground(t.Primary).Padding(1, 0),
		high:  lipgloss.NewStyle().Foreground(t.Success),
		mid:   lipgloss.NewStyle().Foreground(t.Warning),
		low:   lipgloss.NewStyle().Foreground(t.Error),
	}
}

// progressBar fills width cells in proportion to frac, colored by level.
func (p palette) progressBar(frac float64, width int) string {
	filled := int(frac * float64(width))
	filled = min(max(filled, 0), width)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case frac > 0.8:
		return p.high.Render(bar)
	case frac > 0.4:
		return p.mid.Render(bar)
	default:
		return p.low.Render(bar)
	}
}

// sparkline renders the most recent width values, scaled to their own range.
func (p palette) sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var out strings.Builder
	for _, v := range values {
		norm := (v - lo) / span
		idx := min(max(int(norm*float64(len(chars)-1)), 0), len(chars)-1)

		c := string(chars[idx])
		switch {
		case norm > 0.7:
			out.WriteString(p.high.Render(c))
		case norm > 0.3:
			out.WriteString(p.mid.Render(c))
		default:
			out.WriteString(p.low.Render(c))
		}
	}
	return out.String()
}
