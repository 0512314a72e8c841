package agent

import (
	"log/slog"

	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/roster"
	"github.com/nstehr/rangerbot/rules"
)

// turnReport collects what happened during a turn for the summary.
type turnReport struct {
	goal       rules.Goal
	enemies    int
	endangered []model.Unit
	finished   []int
	launches   []launch
	skipped    bool
}

type launch struct {
	rocket int
	dest   model.Cell
	cargo  []int
}

// producedBy maps goals to the robot a factory builds for them.
var producedBy = []struct {
	goal rules.GoalName
	unit model.UnitType
}{
	{rules.BuildKnights, model.Knight},
	{rules.BuildRangers, model.Ranger},
	{rules.BuildMages, model.Mage},
	{rules.BuildHealers, model.Healer},
}

func (b *Bot) earthTurn(round int, low bool) turnReport {
	if round == b.Config.Bot.LandingReadRound {
		b.landing = b.Messenger.ReadLandingCells(model.Mars)
		slog.Info("landing cells received", "round", round, "count", len(b.landing))
	}

	r := roster.Build(b.Host.MyUnits())
	var rep turnReport
	rep.goal = b.Goals.Evaluate(b.goalEnv(r, round))

	b.unloadAll(r, model.Factory)

	if rep.goal.Has(rules.BuildFactories) {
		b.Builds.Blueprint(r, model.Factory, b.step.Dirs)
	}
	if rep.goal.Has(rules.BuildRockets) {
		b.Builds.Blueprint(r, model.Rocket, b.step.Dirs)
	}
	rep.finished = b.Builds.Execute()
	b.Builds.Reassign(r, b.step)

	if rep.goal.Has(rules.BuildWorkers) {
		b.replicateOrProduceWorkers(r)
	}
	for _, p := range producedBy {
		if rep.goal.Has(p.goal) {
			b.produce(r, p.unit)
		}
	}

	if rep.goal.Has(rules.GoToMars) {
		rep.launches = b.loadAndLaunch(r)
	}
	rep.enemies, rep.endangered = b.fight(r, round, !low && rep.goal.Has(rules.Attack))
	if !low {
		b.collectKarbonite(r)
	}
	return rep
}

func (b *Bot) marsTurn(round int, low bool) turnReport {
	r := roster.Build(b.Host.MyUnits())
	if s, ok := b.Karbonite.ApplyScheduledEvent(round); ok {
		slog.Debug("karbonite strike", "round", round, "cell", s.Cell, "amount", s.Amount)
	}

	var rep turnReport
	b.unloadAll(r, model.Rocket)
	rep.enemies, rep.endangered = b.fight(r, round, !low)
	if !low {
		b.collectKarbonite(r)
	}
	return rep
}

func (b *Bot) goalEnv(r *roster.Roster, round int) rules.GoalEnv {
	return rules.GoalEnv{
		Counts:       r.Counts(),
		Bank:         b.Host.Karbonite(),
		MapKarbonite: b.Karbonite.Total(),
		Turn:         round,
		LandingSites: len(b.landing),
	}
}

// unloadAll empties every structure of type t through the turn's shuffled
// directions and refreshes the roster entries of the units let out.
func (b *Bot) unloadAll(r *roster.Roster, t model.UnitType) {
	for _, id := range r.IDs(t) {
		s, ok := r.Get(id)
		if !ok {
			continue
		}
		inside := len(s.Garrison)
		for _, d := range b.step.Dirs {
			if inside == 0 {
				break
			}
			if !b.Host.CanUnload(id, d) {
				continue
			}
			if err := b.Host.Unload(id, d); err != nil {
				slog.Debug("unload rejected", "structure", id, "direction", d, "error", err)
				continue
			}
			inside--
		}
		for _, uid := range s.Garrison {
			if u, ok := b.Host.Unit(uid); ok {
				r.Refresh(u)
			}
		}
	}
}

// replicateOrProduceWorkers clones workers while karbonite lasts. A factory
// is only used when no worker is left to replicate.
func (b *Bot) replicateOrProduceWorkers(r *roster.Roster) {
	karb := b.Host.Karbonite()
	if karb >= model.ReplicateCost {
		var born []model.Unit
		for _, id := range r.IDs(model.Worker) {
			w, ok := b.Host.Unit(id)
			if !ok || !w.OnMap() || w.AbilityHeat >= model.HeatLimit {
				continue
			}
			for _, d := range b.step.Dirs {
				if !b.Host.CanReplicate(id, d) {
					continue
				}
				if err := b.Host.Replicate(id, d); err != nil {
					slog.Debug("replicate rejected", "worker", id, "error", err)
					continue
				}
				karb -= model.ReplicateCost
				if child, ok := b.Host.SenseUnitAt(w.Cell().Add(d)); ok {
					born = append(born, child)
				}
				break
			}
			if karb < model.ReplicateCost {
				break
			}
		}
		for _, u := range born {
			if err := r.Add(u); err != nil {
				slog.Warn("replicated worker already known", "unit", u.ID, "error", err)
			}
		}
	}
	if r.Count(model.Worker) == 0 {
		b.produce(r, model.Worker)
	}
}

// produce queues a robot of type t in every idle built factory while
// karbonite lasts.
func (b *Bot) produce(r *roster.Roster, t model.UnitType) {
	cost := model.StatsFor(t).FactoryCost
	karb := b.Host.Karbonite()
	if karb < cost {
		return
	}
	for _, id := range r.IDs(model.Factory) {
		f, ok := b.Host.Unit(id)
		if !ok || !f.StructureBuilt || f.FactoryProducing || len(f.Garrison) >= model.GarrisonCapacity {
			continue
		}
		if !b.Host.CanProduce(id, t) {
			continue
		}
		if err := b.Host.Produce(id, t); err != nil {
			slog.Debug("produce rejected", "factory", id, "type", t, "error", err)
			continue
		}
		slog.Debug("production started", "factory", id, "type", t)
		karb -= cost
		if karb < cost {
			break
		}
	}
}

// loadRadiusSq is how far from a rocket robots are called in.
const loadRadiusSq = 8

// loadAndLaunch fills built rockets with nearby robots and launches full
// ones at the next landing cell. Robots not yet adjacent walk toward the
// rocket.
func (b *Bot) loadAndLaunch(r *roster.Roster) []launch {
	if len(b.landing) == 0 {
		return nil
	}
	var out []launch
	for _, id := range r.IDs(model.Rocket) {
		rk, ok := b.Host.Unit(id)
		if !ok || !rk.OnMap() || !rk.StructureBuilt {
			continue
		}
		space := model.GarrisonCapacity - len(rk.Garrison)
		if space > 0 {
			for _, u := range b.Host.MyUnits() {
				if space == 0 {
					break
				}
				if u.Type.IsStructure() || !u.OnMap() || model.DistSq(u.Cell(), rk.Cell()) > loadRadiusSq {
					continue
				}
				if b.Host.CanLoad(id, u.ID) {
					if err := b.Host.Load(id, u.ID); err != nil {
						slog.Debug("load rejected", "rocket", id, "unit", u.ID, "error", err)
						continue
					}
					space--
					continue
				}
				b.step.PathNaively(u, rk.Cell())
			}
		}
		if space > 0 || len(b.landing) == 0 {
			continue
		}

		dest := b.landing[0]
		if !b.Host.CanLaunch(id, dest) {
			continue
		}
		loaded, _ := b.Host.Unit(id)
		if err := b.Host.Launch(id, dest); err != nil {
			slog.Debug("launch rejected", "rocket", id, "dest", dest, "error", err)
			continue
		}
		b.landing = b.landing[1:]
		out = append(out, launch{rocket: id, dest: dest, cargo: loaded.Garrison})
		b.departed[id] = true
		r.Remove(id)
		for _, uid := range loaded.Garrison {
			b.departed[uid] = true
			r.Remove(uid)
		}
		slog.Info("rocket launched", "rocket", id, "dest", dest, "cargo", len(loaded.Garrison))
	}
	return out
}
