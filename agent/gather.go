package agent

import (
	"log/slog"

	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/roster"
)

// harvestDirs is the order in which a worker looks for karbonite around
// itself, its own cell last.
var harvestDirs = append(model.Compass[:], model.Center)

// collectKarbonite sends every idle worker to harvest. Workers with nothing
// in reach explore their block when it still has karbonite, head for the
// nearest block that does otherwise, and wander as a last resort; then
// they try harvesting again from where they ended up.
func (b *Bot) collectKarbonite(r *roster.Roster) {
	if b.Karbonite.Exhausted() {
		return
	}
	for _, id := range r.IDs(model.Worker) {
		w, ok := b.Host.Unit(id)
		if !ok || w.WorkerHasActed || !w.OnMap() {
			continue
		}
		if b.harvest(w) {
			continue
		}
		if w.MovementHeat >= model.HeatLimit {
			continue
		}
		if b.Karbonite.Exhausted() {
			return
		}

		moved := false
		if b.Karbonite.HasResourceInBlockOf(w.Cell()) {
			for steps := 2; steps <= 4 && !moved; steps++ {
				for _, d := range b.step.Dirs {
					target := w.Cell().AddMultiple(d, steps)
					if b.Finder.InBounds(target) && b.Karbonite.AmountAt(target) > 0 {
						b.step.MoveToward(w, target)
						moved = true
						break
					}
				}
			}
		} else if blk, ok := b.Karbonite.NearestBlockWithResource(w.Cell()); ok {
			b.step.MoveToward(w, blk.Rep)
			moved = true
		}
		if !moved {
			b.step.StepAnywhere(w)
		}

		if fresh, ok := b.Host.Unit(id); ok && fresh.OnMap() {
			b.harvest(fresh)
		}
	}
}

// harvest takes karbonite from the richest cell around w. Cached amounts
// are checked against the host before choosing.
func (b *Bot) harvest(w model.Unit) bool {
	best, bestDir := 0, model.Center
	for _, d := range harvestDirs {
		c := w.Cell().Add(d)
		if !b.Finder.InBounds(c) || b.Karbonite.AmountAt(c) == 0 {
			continue
		}
		b.Karbonite.Reconcile(c, b.Host.KarboniteAt(c), true)
		if k := b.Karbonite.AmountAt(c); k > best {
			best, bestDir = k, d
		}
	}
	if best == 0 || !b.Host.CanHarvest(w.ID, bestDir) {
		return false
	}
	if err := b.Host.Harvest(w.ID, bestDir); err != nil {
		slog.Debug("harvest rejected", "worker", w.ID, "direction", bestDir, "error", err)
		return false
	}
	b.Karbonite.ConsumeAtCell(w.Cell().Add(bestDir), w.HarvestAmount)
	return true
}
