// Package spatial provides the broad-phase index used for marble collisions
// and area-of-effect queries.
//
// Structures store integer indices (not pointers) into the caller's slice
// and keep their backing arrays between ticks to minimize GC pressure.
package spatial

import (
	"math"
)

// Grid is a uniform bucket grid. Marbles grow when they absorb a kill, so
// entries are inserted into every cell their circle overlaps rather than the
// cell containing their center.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col])
type Grid struct {
	cellSize    float64
	invCellSize float64
	cols, rows  int
	cells       [][]uint32

	scratch []uint32
	// seen de-duplicates query results; stamp avoids clearing it per query
	seen  []uint32
	stamp uint32
}

// NewGrid creates a grid covering width x height.
// cellSize should be close to the typical marble diameter.
func NewGrid(width, height, cellSize float64, maxEntities int) *Grid {
	if cellSize <= 0 {
		cellSize = 64
	}
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	for i := range cells {
		cells[i] = make([]uint32, 0, 4)
	}

	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 32),
		seen:        make([]uint32, maxEntities),
	}
}

// Clear resets all cells without releasing their memory.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds entity id as a circle at (x, y) with radius r.
func (g *Grid) Insert(id uint32, x, y, r float64) {
	minCol, maxCol, minRow, maxRow := g.span(x, y, r)
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			idx := row*g.cols + col
			g.cells[idx] = append(g.cells[idx], id)
		}
	}
	if int(id) >= len(g.seen) {
		grown := make([]uint32, int(id)+1)
		copy(grown, g.seen)
		g.seen = grown
	}
}

// QueryRadius returns every entity whose cells overlap the circle at
// (cx, cy). Each id appears at most once.
//
// IMPORTANT: The returned slice is reused on subsequent calls.
// Candidates may lie outside the radius; the caller does the narrow phase.
func (g *Grid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]
	g.stamp++
	if g.stamp == 0 {
		for i := range g.seen {
			g.seen[i] = 0
		}
		g.stamp = 1
	}

	minCol, maxCol, minRow, maxRow := g.span(cx, cy, radius)
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			for _, id := range g.cells[row*g.cols+col] {
				if g.seen[id] == g.stamp {
					continue
				}
				g.seen[id] = g.stamp
				g.scratch = append(g.scratch, id)
			}
		}
	}
	return g.scratch
}

func (g *Grid) span(x, y, r float64) (minCol, maxCol, minRow, maxRow int) {
	minCol = clamp(int((x-r)*g.invCellSize), 0, g.cols-1)
	maxCol = clamp(int((x+r)*g.invCellSize), 0, g.cols-1)
	minRow = clamp(int((y-r)*g.invCellSize), 0, g.rows-1)
	maxRow = clamp(int((y+r)*g.invCellSize), 0, g.rows-1)
	return
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Dimensions returns the grid dimensions.
func (g *Grid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}
