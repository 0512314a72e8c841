package rules

import (
	"strings"

	"github.com/nstehr/rangerbot/model"
)

// GoalEnv is the state a goal rule can see. Its methods are callable from
// expr conditions.
type GoalEnv struct {
	Counts       map[model.UnitType]int
	Bank         int // karbonite in hand
	MapKarbonite int // karbonite left on the map
	Turn         int
	LandingSites int
	Doctrine     Doctrine
}

// Count returns the number of friendly units of the named type.
func (e GoalEnv) Count(t string) int {
	return e.Counts[model.UnitType(strings.ToLower(t))]
}

// Army counts friendly knights, rangers, mages and healers.
func (e GoalEnv) Army() int {
	return e.Count("knight") + e.Count("ranger") + e.Count("mage") + e.Count("healer")
}

func (e GoalEnv) Karbonite() int { return e.Bank }

func (e GoalEnv) TotalKarbonite() int { return e.MapKarbonite }

func (e GoalEnv) Round() int { return e.Turn }

// Cost is the karbonite needed for one unit of the named type: the
// blueprint cost for structures and the factory cost for robots.
func (e GoalEnv) Cost(t string) int {
	ut := model.UnitType(strings.ToLower(t))
	s := model.StatsFor(ut)
	if ut.IsStructure() {
		return s.BlueprintCost
	}
	return s.FactoryCost
}

// WorkerTarget is how many workers the map's karbonite can keep busy.
func (e GoalEnv) WorkerTarget() int {
	d := e.Doctrine
	if d.KarbonitePerWorker <= 0 {
		return d.MinWorkers
	}
	return max(d.MinWorkers, min(d.MaxWorkers, e.MapKarbonite/d.KarbonitePerWorker))
}

func (e GoalEnv) HasLandingSites() bool { return e.LandingSites > 0 }

// RocketRound is the first round rockets may be built.
func (e GoalEnv) RocketRound() int { return e.Doctrine.RocketRound }
