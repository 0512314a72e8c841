// Package pathing precomputes exact hop distances between every pair of
// cells on a planet grid and answers distance queries in constant time.
package pathing

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nstehr/rangerbot/model"
)

// DistType holds a hop count.
type DistType = uint16

// MaxCells bounds the grid. The table holds MaxCells² entries and
// Infinity must stay inside DistType.
const MaxCells = 50 * 50

// ErrGridTooLarge is returned by CheckSize for grids over MaxCells.
var ErrGridTooLarge = errors.New("grid too large")

// CheckSize rejects grids the all-pairs table cannot hold.
func CheckSize(rows, cols int) error {
	if rows < 1 || cols < 1 || rows*cols > MaxCells {
		return fmt.Errorf("%dx%d (at most %d cells): %w", rows, cols, MaxCells, ErrGridTooLarge)
	}
	return nil
}

// Finder owns the all-pairs distance table for one planet.
type Finder struct {
	rows     int
	cols     int
	infinity DistType
	dist     []DistType // dist[from*cells + to]
	computed bool
}

// New sizes a finder for a rows x cols grid. The table is empty until
// ComputeAllPairs or LoadTable fills it.
func New(rows, cols int) *Finder {
	return &Finder{
		rows:     rows,
		cols:     cols,
		infinity: DistType((rows + 2) * (cols + 2)),
	}
}

// ForMap sizes a finder for m.
func ForMap(m *model.PlanetMap) *Finder {
	return New(m.Height, m.Width)
}

func (f *Finder) Rows() int { return f.rows }
func (f *Finder) Cols() int { return f.cols }

// Cells is rows*cols.
func (f *Finder) Cells() int { return f.rows * f.cols }

// Infinity is strictly greater than any real hop distance on this grid.
func (f *Finder) Infinity() DistType { return f.infinity }

// Ready reports whether the table has been computed or loaded.
func (f *Finder) Ready() bool { return f.computed }

// Index maps (row, col) to a linear cell index. Inputs are not checked;
// call InBounds first.
func (f *Finder) Index(row, col int) int {
	return row*f.cols + col
}

// IndexOf is Index for a Cell.
func (f *Finder) IndexOf(c model.Cell) int {
	return f.Index(c.Row, c.Col)
}

// CellAt inverts Index.
func (f *Finder) CellAt(index int) model.Cell {
	return model.Cell{Row: index / f.cols, Col: index % f.cols}
}

// InBounds reports whether c lies on the grid.
func (f *Finder) InBounds(c model.Cell) bool {
	return c.Row >= 0 && c.Col >= 0 && c.Row < f.rows && c.Col < f.cols
}

// Dist returns the hop distance from a to b, or Infinity when b cannot be
// reached, either endpoint is impassable, or the table is not ready.
// Both cells must be in bounds.
func (f *Finder) Dist(a, b model.Cell) DistType {
	return f.DistIndex(f.IndexOf(a), f.IndexOf(b))
}

// DistIndex is Dist over linear indices.
func (f *Finder) DistIndex(from, to int) DistType {
	if !f.computed {
		return f.infinity
	}
	return f.dist[from*f.Cells()+to]
}

// Reachable reports whether b can be reached from a.
func (f *Finder) Reachable(a, b model.Cell) bool {
	return f.Dist(a, b) < f.infinity
}

// ComputeAllPairs runs one breadth-first expansion per passable source. Step
// cost is uniform, so expanding frontier by frontier assigns exact hop
// distances in O(V) per source and O(V^2) overall. Impassable sources keep
// their whole row at Infinity. Grids failing CheckSize are left not Ready.
func (f *Finder) ComputeAllPairs(passable []bool) {
	if err := CheckSize(f.rows, f.cols); err != nil {
		slog.Error("distance table not computed", "error", err)
		return
	}
	start := time.Now()
	cells := f.Cells()
	f.dist = make([]DistType, cells*cells)
	for i := range f.dist {
		f.dist[i] = f.infinity
	}

	frontier := make([]int, 0, cells)
	next := make([]int, 0, cells)
	for src := 0; src < cells; src++ {
		frontier, next = f.bfs(src, passable, frontier[:0], next[:0])
	}
	f.computed = true

	slog.Info("all pairs shortest path computed",
		"rows", f.rows,
		"cols", f.cols,
		"elapsed", time.Since(start),
	)
}

func (f *Finder) bfs(src int, passable []bool, frontier, next []int) ([]int, []int) {
	if !passable[src] {
		return frontier, next
	}
	row := f.dist[src*f.Cells() : (src+1)*f.Cells()]
	row[src] = 0
	frontier = append(frontier, src)

	for level := DistType(1); len(frontier) > 0; level++ {
		for _, cur := range frontier {
			c := f.CellAt(cur)
			for _, d := range model.Compass {
				n := c.Add(d)
				if !f.InBounds(n) {
					continue
				}
				ni := f.IndexOf(n)
				if row[ni] != f.infinity || !passable[ni] {
					continue
				}
				row[ni] = level
				next = append(next, ni)
			}
		}
		frontier, next = next, frontier[:0]
	}
	return frontier, next
}
