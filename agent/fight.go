package agent

import (
	"github.com/nstehr/rangerbot/combat"
	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/roster"
)

// fight micro-manages endangered units and, when advance is set, walks the
// safe ones toward the enemy: their starting cells on Earth, the patrol
// loop on Mars. It returns the number of visible enemies and the units
// that were in danger.
func (b *Bot) fight(r *roster.Roster, round int, advance bool) (int, []model.Unit) {
	enemies := combat.NewEnemySet(b.Host)
	safe, endangered := b.tactics.Params.Classify(r, enemies, b.tactics.Locate)
	b.tactics.Engage(endangered, enemies)
	if !advance {
		return enemies.Len(), endangered
	}

	var target model.Cell
	var ok bool
	if b.Host.Planet() == model.Earth {
		target, ok = combat.EnemyStart(b.Map, b.Host.Team(), round, b.Config.Bot.AdvanceCycle)
	} else {
		target, ok = b.patrol.Target(round)
	}
	if !ok {
		return enemies.Len(), endangered
	}
	for _, u := range safe {
		if fresh, ok := b.Host.Unit(u.ID); ok {
			b.step.MoveToward(fresh, target)
		}
	}
	return enemies.Len(), endangered
}
