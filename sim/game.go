// Package sim is an in-memory two-planet game engine. It implements
// host.Controller for each (team, planet) pair so the bot can be played
// locally and tested without a remote engine.
package sim

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/nstehr/rangerbot/host"
	"github.com/nstehr/rangerbot/model"
)

// Options tunes the simulated rules.
type Options struct {
	StartingKarbonite int
	Income            int // karbonite per team per round
	ProductionRounds  int // rounds a factory needs to finish a robot
	FlightRounds      int // rocket travel time
	AbilityCooldown   int // heat a worker gains from replicating
	TimeLeftMs        int // reported to players every turn
	MaxRounds         int
}

// DefaultOptions mirrors the stock game rules closely enough for play-testing.
func DefaultOptions() Options {
	return Options{
		StartingKarbonite: 100,
		Income:            10,
		ProductionRounds:  5,
		FlightRounds:      50,
		AbilityCooldown:   50,
		TimeLeftMs:        10000,
		MaxRounds:         1000,
	}
}

type production struct {
	unit model.UnitType
	done int // round on which the robot appears in the garrison
}

type flight struct {
	rocket int
	dest   model.Cell
	planet model.Planet
	lands  int
}

// Game holds the full engine state. It is safe for concurrent use by the
// players it hands out.
type Game struct {
	mu sync.Mutex

	opts     Options
	round    int
	maps     map[model.Planet]*model.PlanetMap
	karb     map[model.Planet][]int
	units    map[int]*model.Unit
	occupant map[model.Planet]map[model.Cell]int
	bank     map[model.Team]int
	arrays   map[model.Team]map[model.Planet][]int
	research map[model.Team][]model.UnitType
	strikes  model.StrikeSchedule
	building map[int]production
	flights  []flight
	launched map[int]bool
	nextID   int
}

// NewGame places the match's starting units and gives both teams their
// starting karbonite.
func NewGame(m *model.Match, opts Options) *Game {
	g := &Game{
		opts:     opts,
		round:    1,
		maps:     map[model.Planet]*model.PlanetMap{model.Earth: m.Earth, model.Mars: m.Mars},
		karb:     make(map[model.Planet][]int),
		units:    make(map[int]*model.Unit),
		occupant: map[model.Planet]map[model.Cell]int{model.Earth: {}, model.Mars: {}},
		bank:     map[model.Team]int{model.Red: opts.StartingKarbonite, model.Blue: opts.StartingKarbonite},
		arrays:   make(map[model.Team]map[model.Planet][]int),
		research: make(map[model.Team][]model.UnitType),
		strikes:  m.Strikes,
		building: make(map[int]production),
		launched: make(map[int]bool),
	}
	for p, pm := range g.maps {
		g.karb[p] = slices.Clone(pm.Karbonite)
	}
	for _, team := range []model.Team{model.Red, model.Blue} {
		g.arrays[team] = map[model.Planet][]int{
			model.Earth: make([]int, host.TeamArrayLen),
			model.Mars:  make([]int, host.TeamArrayLen),
		}
	}
	for _, u := range m.Earth.InitialUnits {
		g.spawn(u.Type, u.Team, u.Location).StructureBuilt = true
	}
	return g
}

// Player returns the controller for team on planet.
func (g *Game) Player(team model.Team, planet model.Planet) *Player {
	return &Player{g: g, team: team, planet: planet}
}

// Round returns the current round, starting at 1.
func (g *Game) Round() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.round
}

// Over reports whether the game has ended and the winner, if any.
func (g *Game) Over() (bool, model.Team) {
	g.mu.Lock()
	defer g.mu.Unlock()
	alive := map[model.Team]int{}
	for _, u := range g.units {
		alive[u.Team]++
	}
	switch {
	case alive[model.Red] == 0 && alive[model.Blue] == 0:
		return true, ""
	case alive[model.Red] == 0:
		return true, model.Blue
	case alive[model.Blue] == 0:
		return true, model.Red
	case g.round > g.opts.MaxRounds:
		return true, ""
	}
	return false, ""
}

// Census counts units per team and type.
func (g *Game) Census() map[model.Team]map[model.UnitType]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := map[model.Team]map[model.UnitType]int{model.Red: {}, model.Blue: {}}
	for _, u := range g.units {
		out[u.Team][u.Type]++
	}
	return out
}

// Bank returns a team's karbonite.
func (g *Game) Bank(team model.Team) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bank[team]
}

// Research returns the research queued by a team, in order.
func (g *Game) Research(team model.Team) []model.UnitType {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.research[team])
}

// AdvanceRound ends the round: heat decays, workers may act again,
// factories deliver, rockets land, the scheduled strike hits Mars and both
// teams collect income.
func (g *Game) AdvanceRound() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.round++
	for _, u := range g.units {
		u.MovementHeat = max(0, u.MovementHeat-model.HeatLimit)
		u.AttackHeat = max(0, u.AttackHeat-model.HeatLimit)
		u.AbilityHeat = max(0, u.AbilityHeat-model.HeatLimit)
		u.WorkerHasActed = false
	}

	for id, p := range g.building {
		if g.round < p.done {
			continue
		}
		f, ok := g.units[id]
		if !ok {
			delete(g.building, id)
			continue
		}
		if len(f.Garrison) >= model.GarrisonCapacity {
			continue
		}
		r := g.spawn(p.unit, f.Team, g.garrisonLoc(f))
		f.Garrison = append(f.Garrison, r.ID)
		f.FactoryProducing = false
		delete(g.building, id)
	}

	remaining := g.flights[:0]
	for _, fl := range g.flights {
		if g.round < fl.lands {
			remaining = append(remaining, fl)
			continue
		}
		g.land(fl)
	}
	g.flights = remaining

	if s, ok := g.strikes.At(g.round); ok {
		pm := g.maps[model.Mars]
		if pm.InBounds(s.Cell) {
			g.karb[model.Mars][s.Cell.Row*pm.Width+s.Cell.Col] += s.Amount
		}
	}

	for team := range g.bank {
		g.bank[team] += g.opts.Income
	}
}

func (g *Game) land(fl flight) {
	r, ok := g.units[fl.rocket]
	if !ok {
		return
	}
	if victim, ok := g.occupant[fl.planet][fl.dest]; ok {
		slog.Debug("rocket landed on unit", "rocket", r.ID, "victim", victim)
		g.destroy(victim)
	}
	r.Location = model.MapLocation(fl.planet, fl.dest)
	g.occupant[fl.planet][fl.dest] = r.ID
	for _, id := range r.Garrison {
		if u, ok := g.units[id]; ok {
			u.Location = g.garrisonLoc(r)
		}
	}
}

func (g *Game) garrisonLoc(structure *model.Unit) model.Location {
	loc := model.GarrisonLocation(structure.ID)
	loc.Planet = structure.Location.Planet
	return loc
}

func (g *Game) spawn(t model.UnitType, team model.Team, loc model.Location) *model.Unit {
	g.nextID++
	u := model.NewUnit(g.nextID, t, team, loc)
	g.units[u.ID] = &u
	if loc.Kind == model.OnMap {
		g.occupant[loc.Planet][loc.Cell] = u.ID
	}
	return &u
}

func (g *Game) destroy(id int) {
	u, ok := g.units[id]
	if !ok {
		return
	}
	delete(g.units, id)
	delete(g.building, id)
	if u.Location.Kind == model.OnMap {
		delete(g.occupant[u.Location.Planet], u.Location.Cell)
	}
	if u.Location.Kind == model.InGarrison {
		if s, ok := g.units[u.Location.Structure]; ok {
			s.Garrison = slices.DeleteFunc(s.Garrison, func(x int) bool { return x == id })
		}
	}
	for _, inner := range u.Garrison {
		g.destroy(inner)
	}
}

func (g *Game) karbIndex(p model.Planet, c model.Cell) (int, bool) {
	pm := g.maps[p]
	if !pm.InBounds(c) {
		return 0, false
	}
	return c.Row*pm.Width + c.Col, true
}

func (g *Game) occupiable(p model.Planet, c model.Cell) bool {
	if !g.maps[p].IsPassable(c) {
		return false
	}
	_, taken := g.occupant[p][c]
	return !taken
}

func snapshot(u *model.Unit) model.Unit {
	cp := *u
	cp.Garrison = slices.Clone(u.Garrison)
	return cp
}
