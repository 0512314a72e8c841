// Package resources tracks karbonite at two resolutions: per cell, and per
// coarse block of cells. Blocks with karbonite left are indexed so the
// nearest one can be found without scanning the whole grid.
package resources

import (
	"fmt"

	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/pathing"
)

// DefaultBlockSize is the side of a coarse block in cells.
const DefaultBlockSize = 5

// Block is one coarse block with its current representative cell.
type Block struct {
	ID   int
	Rep  model.Cell
	Sum  int
	Dist pathing.DistType // from the query origin; set by NearestBlockWithResource
}

// Map is the karbonite cache for one planet.
type Map struct {
	finder     *pathing.Finder
	size       int
	coarseRows int
	coarseCols int

	fine     []int // by fine cell index
	sums     []int // by block id
	reps     []int // fine index of each block's representative
	active   []bool
	nActive  int
	total    int
	schedule model.StrikeSchedule
}

// New sizes a map to the finder's grid. A blockSize below 1 falls back to
// DefaultBlockSize.
func New(finder *pathing.Finder, blockSize int) *Map {
	if blockSize < 1 {
		blockSize = DefaultBlockSize
	}
	cr := (finder.Rows() + blockSize - 1) / blockSize
	cc := (finder.Cols() + blockSize - 1) / blockSize
	m := &Map{
		finder:     finder,
		size:       blockSize,
		coarseRows: cr,
		coarseCols: cc,
		fine:       make([]int, finder.Cells()),
		sums:       make([]int, cr*cc),
		reps:       make([]int, cr*cc),
		active:     make([]bool, cr*cc),
	}
	for id := range m.reps {
		m.reps[id] = m.firstCell(id)
	}
	return m
}

// InitializeFromMap seeds fine amounts from the planet's starting deposits.
func (m *Map) InitializeFromMap(pm *model.PlanetMap) error {
	if pm.Height != m.finder.Rows() || pm.Width != m.finder.Cols() {
		return fmt.Errorf("planet map is %dx%d, resource map is %dx%d",
			pm.Height, pm.Width, m.finder.Rows(), m.finder.Cols())
	}
	m.reset()
	for i, amount := range pm.Karbonite {
		m.fine[i] = amount
		m.total += amount
		m.sums[m.blockOfIndex(i)] += amount
	}
	for id := range m.sums {
		m.rescan(id)
		m.setActive(id, m.sums[id] > 0)
	}
	return nil
}

// InitializeEmpty zeroes the map and records the strike schedule that
// ApplyScheduledEvent will replay.
func (m *Map) InitializeEmpty(schedule model.StrikeSchedule) {
	m.reset()
	m.schedule = schedule
}

func (m *Map) reset() {
	clear(m.fine)
	clear(m.sums)
	clear(m.active)
	for id := range m.reps {
		m.reps[id] = m.firstCell(id)
	}
	m.nActive = 0
	m.total = 0
}

// ApplyScheduledEvent adds the karbonite of the strike scheduled for round,
// if any, and reports it.
func (m *Map) ApplyScheduledEvent(round int) (model.Strike, bool) {
	s, ok := m.schedule.At(round)
	if !ok || !m.finder.InBounds(s.Cell) || s.Amount <= 0 {
		return s, false
	}
	i := m.finder.IndexOf(s.Cell)
	m.set(i, m.fine[i]+s.Amount)
	return s, true
}

// ConsumeAtCell removes up to amount karbonite from c and returns how much
// was actually removed.
func (m *Map) ConsumeAtCell(c model.Cell, amount int) int {
	if amount <= 0 || !m.finder.InBounds(c) {
		return 0
	}
	i := m.finder.IndexOf(c)
	taken := min(m.fine[i], amount)
	if taken > 0 {
		m.set(i, m.fine[i]-taken)
	}
	return taken
}

// Reconcile overwrites the cached amount at c with an authoritative
// observation and returns the change. With mayBeUnchanged set, a zero
// change returns early.
func (m *Map) Reconcile(c model.Cell, observed int, mayBeUnchanged bool) int {
	if !m.finder.InBounds(c) {
		return 0
	}
	if observed < 0 {
		observed = 0
	}
	i := m.finder.IndexOf(c)
	delta := observed - m.fine[i]
	if mayBeUnchanged && delta == 0 {
		return 0
	}
	m.set(i, observed)
	return delta
}

// set moves fine cell i to amount and keeps block sums, representatives,
// the active index and the total consistent.
func (m *Map) set(i, amount int) {
	old := m.fine[i]
	if old == amount {
		return
	}
	id := m.blockOfIndex(i)
	m.fine[i] = amount
	m.sums[id] += amount - old
	m.total += amount - old

	rep := m.reps[id]
	switch {
	case i == rep && amount < old:
		m.rescan(id)
	case amount > m.fine[rep] || (amount == m.fine[rep] && i < rep):
		m.reps[id] = i
	}
	m.setActive(id, m.sums[id] > 0)
}

func (m *Map) setActive(id int, on bool) {
	if m.active[id] == on {
		return
	}
	m.active[id] = on
	if on {
		m.nActive++
	} else {
		m.nActive--
	}
}

// rescan picks the maximum cell of a block, first in row-major order on ties.
func (m *Map) rescan(id int) {
	best := -1
	m.eachCell(id, func(i int) {
		if best < 0 || m.fine[i] > m.fine[best] {
			best = i
		}
	})
	m.reps[id] = best
}

func (m *Map) eachCell(id int, fn func(i int)) {
	br, bc := id/m.coarseCols, id%m.coarseCols
	for r := br * m.size; r < min((br+1)*m.size, m.finder.Rows()); r++ {
		for c := bc * m.size; c < min((bc+1)*m.size, m.finder.Cols()); c++ {
			fn(m.finder.Index(r, c))
		}
	}
}

func (m *Map) firstCell(id int) int {
	br, bc := id/m.coarseCols, id%m.coarseCols
	return m.finder.Index(br*m.size, bc*m.size)
}

func (m *Map) blockOfIndex(i int) int {
	c := m.finder.CellAt(i)
	return (c.Row/m.size)*m.coarseCols + c.Col/m.size
}

// NearestBlockWithResource returns the indexed block whose representative
// is closest to from by hop distance. Ties go to the lower block id and
// unreachable blocks are never returned.
func (m *Map) NearestBlockWithResource(from model.Cell) (Block, bool) {
	if m.nActive == 0 || !m.finder.InBounds(from) {
		return Block{}, false
	}
	src := m.finder.IndexOf(from)
	best := Block{ID: -1, Dist: m.finder.Infinity()}
	for id, on := range m.active {
		if !on {
			continue
		}
		d := m.finder.DistIndex(src, m.reps[id])
		if d < best.Dist {
			best = Block{ID: id, Rep: m.finder.CellAt(m.reps[id]), Sum: m.sums[id], Dist: d}
		}
	}
	return best, best.ID >= 0
}

// AmountAt returns the cached karbonite at c.
func (m *Map) AmountAt(c model.Cell) int {
	if !m.finder.InBounds(c) {
		return 0
	}
	return m.fine[m.finder.IndexOf(c)]
}

// BlockOf returns the block id containing c.
func (m *Map) BlockOf(c model.Cell) int {
	return (c.Row/m.size)*m.coarseCols + c.Col/m.size
}

// BlockSum returns the karbonite left in block id.
func (m *Map) BlockSum(id int) int {
	if id < 0 || id >= len(m.sums) {
		return 0
	}
	return m.sums[id]
}

// BlockCells lists the cells of block id in row-major order.
func (m *Map) BlockCells(id int) []model.Cell {
	var cells []model.Cell
	m.eachCell(id, func(i int) { cells = append(cells, m.finder.CellAt(i)) })
	return cells
}

// HasResourceInBlockOf reports whether c's block is indexed.
func (m *Map) HasResourceInBlockOf(c model.Cell) bool {
	if !m.finder.InBounds(c) {
		return false
	}
	return m.active[m.BlockOf(c)]
}

// IsActive reports whether block id is indexed.
func (m *Map) IsActive(id int) bool {
	return id >= 0 && id < len(m.active) && m.active[id]
}

func (m *Map) Total() int { return m.total }

// ActiveBlocks lists indexed block ids in ascending order.
func (m *Map) ActiveBlocks() []int {
	ids := make([]int, 0, m.nActive)
	for id, on := range m.active {
		if on {
			ids = append(ids, id)
		}
	}
	return ids
}

// Exhausted is true once no block holds karbonite.
func (m *Map) Exhausted() bool { return m.nActive == 0 }

func (m *Map) BlockSize() int { return m.size }
