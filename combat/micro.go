package combat

import (
	"log/slog"
	"math"

	"github.com/nstehr/rangerbot/host"
	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/movement"
)

// Tactician runs micro for endangered units.
type Tactician struct {
	Host    host.Controller
	Stepper *movement.Stepper
	Locate  Locator
	Params  Params
}

// NewTactician wires a tactician to h.
func NewTactician(h host.Controller, s *movement.Stepper, p Params) *Tactician {
	return &Tactician{Host: h, Stepper: s, Locate: HostLocator(h), Params: p}
}

// Engage runs the worker or combat micro for each endangered unit.
func (t *Tactician) Engage(endangered []model.Unit, enemies *EnemySet) {
	for _, u := range endangered {
		if u.Type == model.Worker {
			t.MicroWorker(u, enemies)
		} else {
			t.Micro(u, enemies)
		}
	}
}

// MicroWorker moves a worker directly away from the nearest enemy that
// could hit it after one step. Workers never attack.
func (t *Tactician) MicroWorker(w model.Unit, enemies *EnemySet) bool {
	us, ok := t.Locate(w)
	if !ok {
		return false
	}
	closest := math.MaxInt
	var threat model.Cell
	found := false
	enemies.Live(func(e model.Unit) {
		them, ok := t.Locate(e)
		if !ok {
			return
		}
		d := model.DistSq(us, them)
		if d < closest && d <= t.Params.FleeRange[e.Type] {
			closest, threat, found = d, them, true
		}
	})
	if !found {
		return false
	}
	return t.Stepper.PathInDirection(w, model.DirectionTo(threat, us))
}

// Micro picks a target for a combat unit and attacks it when possible.
// In-range damage dealers come first, weakest first, then other in-range
// enemies, weakest first. Otherwise the unit steps toward the closest enemy
// and attacks it if the step brought it into range.
func (t *Tactician) Micro(u model.Unit, enemies *EnemySet) bool {
	us, ok := t.Locate(u)
	if !ok {
		return false
	}

	var (
		weakestAttacker, weakestOther *model.Unit
		closest                       *model.Unit
		closestCell                   model.Cell
		closestDist                   = math.MaxInt
	)
	enemies.Live(func(e model.Unit) {
		them, ok := t.Locate(e)
		if !ok {
			return
		}
		d := model.DistSq(us, them)
		if d <= u.AttackRange {
			if e.DealsDamage() {
				if weakestAttacker == nil || e.Health < weakestAttacker.Health {
					weakestAttacker = &e
				}
			} else if weakestOther == nil || e.Health < weakestOther.Health {
				weakestOther = &e
			}
		}
		if d < closestDist {
			closest, closestCell, closestDist = &e, them, d
		}
	})
	if closest == nil {
		return false
	}

	var target *model.Unit
	inRange := false
	switch {
	case weakestAttacker != nil:
		target, inRange = weakestAttacker, true
	case weakestOther != nil:
		target, inRange = weakestOther, true
	default:
		target = closest
		if closestDist <= u.AttackRange {
			inRange = true
		} else {
			t.Stepper.PathNaively(u, closestCell)
			if fresh, ok := t.Host.Unit(u.ID); ok && fresh.OnMap() {
				u = fresh
				inRange = model.DistSq(fresh.Cell(), closestCell) <= u.AttackRange
			}
		}
	}

	if !inRange || u.AttackHeat >= model.HeatLimit || !t.Host.CanAttack(u.ID, target.ID) {
		return false
	}
	if err := t.Host.Attack(u.ID, target.ID); err != nil {
		slog.Debug("attack rejected", "unit", u.ID, "target", target.ID, "error", err)
		return false
	}
	slog.Debug("attacked", "unit", u.ID, "target", target.ID, "targetType", target.Type)
	return true
}
