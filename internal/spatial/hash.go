// Package spatial provides the uniform-grid broad phase used to cull
// collision pairs.
package spatial

import (
	"math"
	"slices"

	"github.com/san-kum/forcesim/internal/dynamo"
)

type cellKey struct {
	x, y int
}

const (
	// maxSpan is the most cells a body may cover along one axis before it is
	// kept out of the grid.
	maxSpan = 64
	// maxCoord keeps floored coordinates exactly representable as int.
	maxCoord = 1 << 52
)

type box struct {
	minX, minY, maxX, maxY float64
}

func boxOf(b *dynamo.Body) box {
	return box{
		minX: b.Position.X - b.Radius,
		minY: b.Position.Y - b.Radius,
		maxX: b.Position.X + b.Radius,
		maxY: b.Position.Y + b.Radius,
	}
}

func (a box) overlaps(o box) bool {
	return a.minX <= o.maxX && o.minX <= a.maxX && a.minY <= o.maxY && o.minY <= a.maxY
}

type entry struct {
	id  string
	box box
}

// Hash is an unbounded uniform grid keyed by floored cell coordinates. It is
// meant to be cleared and rebuilt every step; there is no incremental update.
//
// Bodies wider than maxSpan cells are not gridded. They are matched against
// every query by bounding box, so one huge body costs O(n) per step instead
// of O(radius^2) cells.
type Hash struct {
	cellSize    float64
	invCellSize float64
	cells       map[cellKey][]string

	entries   []entry
	oversized []entry
}

func NewHash(cellSize float64) *Hash {
	if cellSize <= 0 {
		cellSize = dynamo.DefaultCellSize
	}
	return &Hash{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cells:       make(map[cellKey][]string),
	}
}

func (h *Hash) CellSize() float64 { return h.cellSize }

// Clear empties every cell. Cell slices keep their capacity for the next
// rebuild.
func (h *Hash) Clear() {
	for k, ids := range h.cells {
		h.cells[k] = ids[:0]
	}
	h.entries = h.entries[:0]
	h.oversized = h.oversized[:0]
}

// Insert adds b to every cell its bounding square overlaps, or to the
// oversized list when that square is too wide.
func (h *Hash) Insert(b *dynamo.Body) {
	if !placeable(b) {
		return
	}
	e := entry{id: b.ID, box: boxOf(b)}
	h.entries = append(h.entries, e)

	r, ok := h.span(e.box)
	if !ok {
		h.oversized = append(h.oversized, e)
		return
	}
	r.each(func(k cellKey) {
		h.cells[k] = append(h.cells[k], b.ID)
	})
}

// PotentialCollisions returns the ids sharing at least one cell with b, plus
// oversized bodies whose bounding box overlaps b's, excluding b itself, in
// sorted order.
func (h *Hash) PotentialCollisions(b *dynamo.Body) []string {
	if !placeable(b) {
		return []string{}
	}
	bb := boxOf(b)
	seen := make(map[string]struct{})
	add := func(id string) {
		if id != b.ID {
			seen[id] = struct{}{}
		}
	}

	if r, ok := h.span(bb); ok {
		r.each(func(k cellKey) {
			for _, id := range h.cells[k] {
				add(id)
			}
		})
		for _, e := range h.oversized {
			if e.box.overlaps(bb) {
				add(e.id)
			}
		}
	} else {
		for _, e := range h.entries {
			if e.box.overlaps(bb) {
				add(e.id)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Occupied returns the number of non-empty cells.
func (h *Hash) Occupied() int {
	n := 0
	for _, ids := range h.cells {
		if len(ids) > 0 {
			n++
		}
	}
	return n
}

// Oversized returns the number of bodies kept out of the grid.
func (h *Hash) Oversized() int {
	return len(h.oversized)
}

// placeable rejects diverged bodies, which have no meaningful cell.
func placeable(b *dynamo.Body) bool {
	return b.Position.IsValid() && !math.IsNaN(b.Radius) && !math.IsInf(b.Radius, 0)
}

type cellRange struct {
	minX, minY, maxX, maxY int
}

func (r cellRange) each(fn func(cellKey)) {
	for cy := r.minY; cy <= r.maxY; cy++ {
		for cx := r.minX; cx <= r.maxX; cx++ {
			fn(cellKey{cx, cy})
		}
	}
}

// span reports false when the box spans more than maxSpan cells on an
// axis or lies beyond integer cell coordinates.
func (h *Hash) span(bb box) (cellRange, bool) {
	if (bb.maxX-bb.minX)*h.invCellSize > maxSpan || (bb.maxY-bb.minY)*h.invCellSize > maxSpan {
		return cellRange{}, false
	}
	for _, v := range []float64{bb.minX, bb.minY, bb.maxX, bb.maxY} {
		if math.Abs(v*h.invCellSize) > maxCoord {
			return cellRange{}, false
		}
	}
	return cellRange{
		minX: h.coord(bb.minX),
		minY: h.coord(bb.minY),
		maxX: h.coord(bb.maxX),
		maxY: h.coord(bb.maxY),
	}, true
}

func (h *Hash) coord(v float64) int {
	return int(math.Floor(v * h.invCellSize))
}
