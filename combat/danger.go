package combat

import (
	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/roster"
)

// Params holds the tunable combat constants.
type Params struct {
	// StructureThreat is the range² assumed for enemy structures, since a
	// robot may leave their garrison at any time.
	StructureThreat int
	// FleeRange is the range² within which a worker runs from an enemy of
	// the given type: attack range plus one step.
	FleeRange map[model.UnitType]int
}

func DefaultParams() Params {
	return Params{
		StructureThreat: 50,
		FleeRange: map[model.UnitType]int{
			model.Ranger: 72,
			model.Mage:   45,
			model.Knight: 5,
		},
	}
}

// Threatens reports whether enemy e threatens a friendly unit of type ut
// standing at us with attack range² ourRange. Both sides are assumed to
// take one step toward each other.
func (p Params) Threatens(ut model.UnitType, us model.Cell, ourRange int, e model.Unit, them model.Cell) bool {
	if ut == model.Worker && (e.Type.IsStructure() || e.Type == model.Worker || e.Type == model.Healer) {
		return false
	}
	one := us.Add(model.DirectionTo(us, them))
	two := one.Add(model.DirectionTo(one, them))
	d := model.DistSq(two, them)

	enemyRange := e.AttackRange
	if e.Type.IsStructure() {
		enemyRange = p.StructureThreat
	}
	return d <= ourRange || d <= enemyRange
}

// Classify splits the roster's robots into safe and endangered. Structures
// are skipped and safe workers are left out entirely so they keep working.
func (p Params) Classify(r *roster.Roster, enemies *EnemySet, locate Locator) (safe, endangered []model.Unit) {
	for _, t := range model.AllUnitTypes {
		if t.IsStructure() {
			continue
		}
		for _, id := range r.ByType[t] {
			u := r.ByID[id]
			us, ok := locate(u)
			if !ok {
				continue
			}
			inDanger := false
			for _, e := range enemies.All() {
				them, ok := locate(e)
				if !ok {
					continue
				}
				if p.Threatens(u.Type, us, u.AttackRange, e, them) {
					inDanger = true
					break
				}
			}
			switch {
			case inDanger:
				endangered = append(endangered, u)
			case u.Type != model.Worker:
				safe = append(safe, u)
			}
		}
	}
	return safe, endangered
}
