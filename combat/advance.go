package combat

import (
	"github.com/nstehr/rangerbot/model"
)

// Patrol is a loop of passable cells around a rectangle one third in from
// each border. Safe units on the away planet walk it together.
type Patrol struct {
	route []model.Cell
	next  int
	every int
}

// NewPatrol traces the rectangle clockwise from its bottom-left corner. The
// route may be empty on maps where no edge cell is passable.
func NewPatrol(pm *model.PlanetMap, advanceEvery int) *Patrol {
	left, right := pm.Width/3, 2*pm.Width/3
	bottom, top := pm.Height/3, 2*pm.Height/3

	p := &Patrol{every: max(1, advanceEvery)}
	add := func(row, col int) {
		c := model.Cell{Row: row, Col: col}
		if pm.IsPassable(c) {
			p.route = append(p.route, c)
		}
	}
	for c := left; c < right; c++ {
		add(bottom, c)
	}
	for r := bottom; r < top; r++ {
		add(r, right)
	}
	for c := right; c > left; c-- {
		add(top, c)
	}
	for r := top; r > bottom; r-- {
		add(r, left)
	}
	return p
}

// Route returns the loop.
func (p *Patrol) Route() []model.Cell { return p.route }

// Target returns the current waypoint for round and moves to the next one
// every few rounds.
func (p *Patrol) Target(round int) (model.Cell, bool) {
	if len(p.route) == 0 {
		return model.Cell{}, false
	}
	if p.next >= len(p.route) {
		p.next = 0
	}
	c := p.route[p.next]
	if round%p.every == 0 {
		p.next++
	}
	return c, true
}

// EnemyStart picks one of the enemy's starting cells on pm, rotating to the
// next one every cycle rounds.
func EnemyStart(pm *model.PlanetMap, us model.Team, round, cycle int) (model.Cell, bool) {
	var starts []model.Cell
	for _, u := range pm.InitialUnits {
		if u.Team != us {
			starts = append(starts, u.Cell())
		}
	}
	if len(starts) == 0 {
		return model.Cell{}, false
	}
	return starts[(round/max(1, cycle))%len(starts)], true
}
