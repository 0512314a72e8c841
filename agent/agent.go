package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/nstehr/rangerbot/combat"
	"github.com/nstehr/rangerbot/config"
	"github.com/nstehr/rangerbot/construction"
	"github.com/nstehr/rangerbot/host"
	"github.com/nstehr/rangerbot/messenger"
	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/movement"
	"github.com/nstehr/rangerbot/pathing"
	"github.com/nstehr/rangerbot/resources"
	"github.com/nstehr/rangerbot/rules"
	"github.com/nstehr/rangerbot/telemetry"
)

// Bot owns the decision-making for one team on one planet. Everything it
// remembers between turns lives here.
type Bot struct {
	Host      host.Controller
	Config    config.Config
	Match     string
	Map       *model.PlanetMap
	Finder    *pathing.Finder
	Karbonite *resources.Map
	Builds    *construction.Scheduler
	Goals     *rules.Engine
	Messenger *messenger.Messenger
	Recorder  telemetry.Recorder

	step    *movement.Stepper
	tactics *combat.Tactician
	patrol  *combat.Patrol
	rng     *rand.Rand

	extra    []*rules.Rule
	phase    int
	landing  []model.Cell
	prev     *turnSummary
	departed map[int]bool
}

// Option customizes a Bot.
type Option func(*Bot)

// WithRecorder sends every turn summary to r.
func WithRecorder(r telemetry.Recorder) Option {
	return func(b *Bot) { b.Recorder = r }
}

// WithMatchID tags recorded turns with id.
func WithMatchID(id string) Option {
	return func(b *Bot) { b.Match = id }
}

func New(h host.Controller, cfg config.Config, opts ...Option) (*Bot, error) {
	pm := h.StartingMap(h.Planet())
	if pm == nil {
		return nil, fmt.Errorf("no starting map for %s", h.Planet())
	}
	extra, err := rules.FromSpecs(cfg.Goals.Rules)
	if err != nil {
		return nil, fmt.Errorf("goal rules: %w", err)
	}
	engine, err := rules.ForDoctrine(cfg.Goals.Doctrine, extra...)
	if err != nil {
		return nil, fmt.Errorf("compile goals: %w", err)
	}
	seed := cfg.Bot.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	if err := pathing.CheckSize(pm.Height, pm.Width); err != nil {
		return nil, fmt.Errorf("%s map: %w", h.Planet(), err)
	}
	f := pathing.ForMap(pm)
	b := &Bot{
		Host:      h,
		Config:    cfg,
		Map:       pm,
		Finder:    f,
		Karbonite: resources.New(f, cfg.Resources.BlockSize),
		Builds:    construction.New(h, f, cfg.ConstructionParams()),
		Goals:     engine,
		Messenger: messenger.New(h),
		rng:       rand.New(rand.NewPCG(seed, seed>>1|1)),
		extra:     extra,
		departed:  make(map[int]bool),
	}
	b.step = movement.New(h, f, movement.Directions(model.Compass))
	b.tactics = combat.NewTactician(h, b.step, cfg.CombatParams())
	b.patrol = combat.NewPatrol(pm, cfg.Bot.PatrolEvery)
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// BeforeLoop does the one-off work before round 1: the distance table, the
// karbonite cache, research on Earth and landing cells on Mars.
func (b *Bot) BeforeLoop() error {
	start := time.Now()
	cached := b.Finder.LoadOrCompute(b.Config.Pathing.CacheDir, b.Map.Passable)

	switch b.Host.Planet() {
	case model.Earth:
		if err := b.Karbonite.InitializeFromMap(b.Map); err != nil {
			return fmt.Errorf("seed karbonite: %w", err)
		}
		queue, err := b.Config.ResearchQueue()
		if err != nil {
			return err
		}
		for _, t := range queue {
			if !b.Host.QueueResearch(t) {
				slog.Warn("research not queued", "type", t)
			}
		}
	case model.Mars:
		// Mars starts bare; only strikes add karbonite.
		b.Karbonite.InitializeEmpty(b.Host.StrikeSchedule())
		cells := b.chooseLandingCells()
		if err := b.Messenger.SendLandingCells(cells); err != nil {
			return fmt.Errorf("landing cells: %w", err)
		}
		slog.Info("landing cells sent", "count", len(cells))
	}

	slog.Info("ready",
		"planet", b.Host.Planet(),
		"team", b.Host.Team(),
		"size", fmt.Sprintf("%dx%d", b.Map.Width, b.Map.Height),
		"cachedTable", cached,
		"karbonite", b.Karbonite.Total(),
		"blocks", len(b.Karbonite.ActiveBlocks()),
		"elapsed", time.Since(start),
	)
	return nil
}

// chooseLandingCells samples passable cells on a grid of multiples of 3 so
// rockets landing on them cannot crush each other.
func (b *Bot) chooseLandingCells() []model.Cell {
	w, h := b.Map.Width/3, b.Map.Height/3
	if w == 0 || h == 0 {
		return nil
	}
	var cells []model.Cell
	seen := make(map[model.Cell]bool)
	for tries := 0; tries < 3*messenger.MaxLandingCells && len(cells) < messenger.MaxLandingCells; tries++ {
		c := model.Cell{Row: 3 * b.rng.IntN(h), Col: 3 * b.rng.IntN(w)}
		if !b.Map.IsPassable(c) || seen[c] {
			continue
		}
		seen[c] = true
		cells = append(cells, c)
	}
	return cells
}

// Turn plays one round.
func (b *Bot) Turn() {
	start := time.Now()
	round := b.Host.Round()
	b.step.Dirs = movement.Shuffle(b.rng)
	b.applyPhases(round)

	low := b.Host.TimeLeftMs() < b.Config.Bot.LowTimeMs
	var rep turnReport
	if b.Host.Planet() == model.Earth {
		rep = b.earthTurn(round, low)
	} else {
		rep = b.marsTurn(round, low)
	}
	rep.skipped = low
	b.finishTurn(round, rep, time.Since(start))
}

// applyPhases swaps in every doctrine phase whose round has come.
func (b *Bot) applyPhases(round int) {
	phases := b.Config.Goals.Phases
	for b.phase < len(phases) && round >= phases[b.phase].FromRound {
		d := phases[b.phase].Doctrine
		b.phase++
		if err := b.Goals.Swap(d, append(rules.CompileDoctrine(d), b.extra...)); err != nil {
			slog.Error("doctrine phase rejected", "round", round, "doctrine", d.Name, "error", err)
		}
	}
}

// Run plays turns until the host reports the game is over or ctx ends.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.BeforeLoop(); err != nil {
		return err
	}
	for ctx.Err() == nil {
		b.Turn()
		if err := b.Host.NextTurn(); err != nil {
			if errors.Is(err, host.ErrGameOver) {
				slog.Info("game over", "planet", b.Map.Planet)
				return nil
			}
			return fmt.Errorf("next turn: %w", err)
		}
	}
	return nil
}
