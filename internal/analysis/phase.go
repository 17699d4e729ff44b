package analysis

import (
	"strings"

	"github.com/san-kum/forcesim/internal/dynamo"
)

type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
)

type Point struct {
	X, Y float64
}

// BodyPhase collects one body's (position, velocity) pairs along axis from
// recorded frames. Frames without the body are skipped.
func BodyPhase(frames []dynamo.Frame, id string, axis Axis) []Point {
	points := make([]Point, 0, len(frames))
	for _, f := range frames {
		for _, b := range f.Bodies {
			if b.ID != id {
				continue
			}
			if axis == AxisY {
				points = append(points, Point{X: b.Position.Y, Y: b.Velocity.Y})
			} else {
				points = append(points, Point{X: b.Position.X, Y: b.Velocity.X})
			}
			break
		}
	}
	return points
}

// PortraitASCII plots points on a width by height character grid with a
// 10% margin, drawing the axes where they cross the visible area.
func PortraitASCII(points []Point, width, height int) string {
	if len(points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points {
		minX = min(minX, p.X)
		maxX = max(maxX, p.X)
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	col := func(x float64) int { return int((x - minX) / rangeX * float64(width-1)) }
	row := func(y float64) int { return height - 1 - int((y-minY)/rangeY*float64(height-1)) }

	for _, p := range points {
		r, c := row(p.Y), col(p.X)
		if r >= 0 && r < height && c >= 0 && c < width {
			canvas[r][c] = '•'
		}
	}

	if minX <= 0 && maxX >= 0 {
		c := col(0)
		for r := 0; r < height; r++ {
			if canvas[r][c] == ' ' {
				canvas[r][c] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		r := row(0)
		for c := 0; c < width; c++ {
			if canvas[r][c] == ' ' {
				canvas[r][c] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, r := range canvas {
		sb.WriteString(string(r))
		sb.WriteRune('\n')
	}
	return sb.String()
}
