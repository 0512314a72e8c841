package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nstehr/rangerbot/config"
	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/sim"
)

// LocalResult is the outcome of a simulated match.
type LocalResult struct {
	Winner model.Team // empty on a draw
	Rounds int
	Census map[model.Team]map[model.UnitType]int
	Bank   map[model.Team]int
}

// NewLocal builds one bot per team and planet of g, all sharing cfg.
func NewLocal(g *sim.Game, cfg config.Config, opts ...Option) ([]*Bot, error) {
	var bots []*Bot
	for _, team := range []model.Team{model.Red, model.Blue} {
		for _, planet := range []model.Planet{model.Earth, model.Mars} {
			b, err := New(g.Player(team, planet), cfg, opts...)
			if err != nil {
				return nil, fmt.Errorf("%s on %s: %w", team, planet, err)
			}
			bots = append(bots, b)
		}
	}
	return bots, nil
}

// Outcome reports the state of g as a result. Winner is only set once the
// game is over.
func Outcome(g *sim.Game) LocalResult {
	_, winner := g.Over()
	return LocalResult{
		Winner: winner,
		Rounds: g.Round() - 1,
		Census: g.Census(),
		Bank:   map[model.Team]int{model.Red: g.Bank(model.Red), model.Blue: g.Bank(model.Blue)},
	}
}

// RunLocal plays bots against g until the game ends or ctx is done. Every
// bot takes its turn before the round advances.
func RunLocal(ctx context.Context, g *sim.Game, bots []*Bot) (LocalResult, error) {
	for _, b := range bots {
		if err := b.BeforeLoop(); err != nil {
			return LocalResult{}, err
		}
	}
	for {
		if over, _ := g.Over(); over {
			res := Outcome(g)
			slog.Info("match finished", "winner", res.Winner, "rounds", res.Rounds)
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return Outcome(g), err
		}
		for _, b := range bots {
			b.Turn()
		}
		g.AdvanceRound()
	}
}
