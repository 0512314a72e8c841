// Package combat decides which friendly units are in danger and what they
// do about it.
package combat

import (
	"github.com/nstehr/rangerbot/host"
	"github.com/nstehr/rangerbot/model"
)

// EnemySet is the turn's snapshot of visible enemy units. Entries that die
// during the turn are dropped the next time Live walks past them.
type EnemySet struct {
	h     host.State
	units []model.Unit
}

// NewEnemySet snapshots every visible unit not on the host's team.
func NewEnemySet(h host.State) *EnemySet {
	me := h.Team()
	var units []model.Unit
	for _, u := range h.Units() {
		if u.Team != me {
			units = append(units, u)
		}
	}
	return &EnemySet{h: h, units: units}
}

// All returns the snapshot without liveness checks.
func (e *EnemySet) All() []model.Unit { return e.units }

func (e *EnemySet) Len() int { return len(e.units) }

// Live calls fn for every enemy the host still knows about and removes the
// rest from the set in place.
func (e *EnemySet) Live(fn func(model.Unit)) {
	kept := e.units[:0]
	for _, u := range e.units {
		if !e.h.HasUnit(u.ID) {
			continue
		}
		kept = append(kept, u)
		fn(u)
	}
	clear(e.units[len(kept):])
	e.units = kept
}

// Locator resolves where a unit effectively stands.
type Locator func(model.Unit) (model.Cell, bool)

// HostLocator places garrisoned units on their structure's cell. Units in
// space have no location.
func HostLocator(h host.State) Locator {
	return func(u model.Unit) (model.Cell, bool) {
		switch u.Location.Kind {
		case model.OnMap:
			return u.Cell(), true
		case model.InGarrison:
			s, ok := h.Unit(u.Location.Structure)
			if !ok || !s.OnMap() {
				return model.Cell{}, false
			}
			return s.Cell(), true
		}
		return model.Cell{}, false
	}
}
