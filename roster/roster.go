// Package roster holds the per-turn snapshot of friendly units.
package roster

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nstehr/rangerbot/model"
)

// ErrDuplicateUnit is returned by Add for an id already in the roster.
var ErrDuplicateUnit = errors.New("unit already in roster")

// Roster indexes friendly units by id and by type. It is rebuilt every turn.
type Roster struct {
	ByID   map[int]model.Unit
	ByType map[model.UnitType][]int
}

// Build snapshots units, preserving their order within each type.
func Build(units []model.Unit) *Roster {
	r := &Roster{
		ByID:   make(map[int]model.Unit, len(units)),
		ByType: make(map[model.UnitType][]int),
	}
	for _, u := range units {
		if _, dup := r.ByID[u.ID]; dup {
			continue
		}
		r.ByID[u.ID] = u
		r.ByType[u.Type] = append(r.ByType[u.Type], u.ID)
	}
	return r
}

// Add records a unit created this turn.
func (r *Roster) Add(u model.Unit) error {
	if _, dup := r.ByID[u.ID]; dup {
		return fmt.Errorf("add unit %d: %w", u.ID, ErrDuplicateUnit)
	}
	r.ByID[u.ID] = u
	r.ByType[u.Type] = append(r.ByType[u.Type], u.ID)
	return nil
}

// Refresh replaces the snapshot of a known unit. Unknown ids are ignored.
func (r *Roster) Refresh(u model.Unit) {
	if _, ok := r.ByID[u.ID]; ok {
		r.ByID[u.ID] = u
	}
}

// Remove drops a unit, e.g. after it left the planet.
func (r *Roster) Remove(id int) {
	u, ok := r.ByID[id]
	if !ok {
		return
	}
	delete(r.ByID, id)
	r.ByType[u.Type] = slices.DeleteFunc(r.ByType[u.Type], func(x int) bool { return x == id })
}

func (r *Roster) Get(id int) (model.Unit, bool) {
	u, ok := r.ByID[id]
	return u, ok
}

func (r *Roster) Count(t model.UnitType) int { return len(r.ByType[t]) }

// IDs returns a copy of the ids of type t so callers may mutate the roster
// while iterating.
func (r *Roster) IDs(t model.UnitType) []int {
	return slices.Clone(r.ByType[t])
}

// Len is the number of units in the roster.
func (r *Roster) Len() int { return len(r.ByID) }

// Counts returns the number of units per type.
func (r *Roster) Counts() map[model.UnitType]int {
	out := make(map[model.UnitType]int, len(r.ByType))
	for t, ids := range r.ByType {
		out[t] = len(ids)
	}
	return out
}
