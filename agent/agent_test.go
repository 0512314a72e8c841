package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/nstehr/rangerbot/config"
	"github.com/nstehr/rangerbot/messenger"
	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/pathing"
	"github.com/nstehr/rangerbot/roster"
	"github.com/nstehr/rangerbot/rules"
	"github.com/nstehr/rangerbot/sim"
	"github.com/nstehr/rangerbot/telemetry"
)

// earthMap builds an Earth map from rows listed bottom-up:
//
//	'#' rock, '*' 20 karbonite, 'W' red worker, 'R' red ranger,
//	'F' red factory, 'T' red rocket, 'K' blue knight.
func earthMap(rows ...string) *model.PlanetMap {
	pm := model.NewPlanetMap(model.Earth, len(rows[0]), len(rows))
	put := func(t model.UnitType, team model.Team, c model.Cell) {
		pm.InitialUnits = append(pm.InitialUnits, model.NewUnit(0, t, team, model.MapLocation(model.Earth, c)))
	}
	for r, line := range rows {
		for col, ch := range line {
			c := model.Cell{Row: r, Col: col}
			switch ch {
			case '#':
				pm.SetPassable(c, false)
			case '*':
				pm.SetKarbonite(c, 20)
			case 'W':
				put(model.Worker, model.Red, c)
			case 'R':
				put(model.Ranger, model.Red, c)
			case 'F':
				put(model.Factory, model.Red, c)
			case 'T':
				put(model.Rocket, model.Red, c)
			case 'K':
				put(model.Knight, model.Blue, c)
			}
		}
	}
	return pm
}

func newGame(earth *model.PlanetMap, opts sim.Options) *sim.Game {
	return sim.NewGame(&model.Match{Earth: earth, Mars: model.NewPlanetMap(model.Mars, 6, 6)}, opts)
}

func testConfig() config.Config {
	c := config.Default()
	c.Bot.Seed = 42
	return c
}

func poorOptions() sim.Options {
	o := sim.DefaultOptions()
	o.StartingKarbonite = 0
	o.Income = 0
	return o
}

type turns struct{ got []telemetry.Turn }

func (r *turns) Record(t telemetry.Turn) error { r.got = append(r.got, t); return nil }
func (r *turns) Close() error                  { return nil }

func newBot(t *testing.T, g *sim.Game, planet model.Planet, cfg config.Config, opts ...Option) *Bot {
	t.Helper()
	b, err := New(g.Player(model.Red, planet), cfg, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.BeforeLoop(); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestBeforeLoopEarth(t *testing.T) {
	g := newGame(earthMap(
		"W.....",
		"..*...",
		"......",
		".....*",
	), poorOptions())
	b := newBot(t, g, model.Earth, testConfig())

	if !b.Finder.Ready() {
		t.Error("distance table not computed")
	}
	if got := b.Karbonite.Total(); got != 40 {
		t.Errorf("karbonite total = %d, want 40", got)
	}
	research := g.Research(model.Red)
	want := []model.UnitType{
		model.Worker, model.Ranger, model.Mage, model.Rocket, model.Mage, model.Mage,
		model.Rocket, model.Rocket, model.Mage, model.Worker, model.Worker, model.Worker,
	}
	if len(research) != len(want) {
		t.Fatalf("research = %v", research)
	}
	for i := range want {
		if research[i] != want[i] {
			t.Errorf("research[%d] = %s, want %s", i, research[i], want[i])
		}
	}
}

func TestBeforeLoopMarsSendsLandingCells(t *testing.T) {
	mars := model.NewPlanetMap(model.Mars, 12, 12)
	mars.SetPassable(model.Cell{Row: 1, Col: 1}, false)
	g := sim.NewGame(&model.Match{Earth: earthMap("W....."), Mars: mars}, poorOptions())
	newBot(t, g, model.Mars, testConfig())

	cells := messenger.New(g.Player(model.Red, model.Earth)).ReadLandingCells(model.Mars)
	if len(cells) == 0 || len(cells) > messenger.MaxLandingCells {
		t.Fatalf("got %d landing cells", len(cells))
	}
	seen := map[model.Cell]bool{}
	for _, c := range cells {
		if c.Row%3 != 0 || c.Col%3 != 0 {
			t.Errorf("%v is not on the 3-grid", c)
		}
		if !mars.IsPassable(c) {
			t.Errorf("%v is impassable", c)
		}
		if seen[c] {
			t.Errorf("%v repeated", c)
		}
		seen[c] = true
	}
}

func TestBeforeLoopMarsStartsEmpty(t *testing.T) {
	mars := model.NewPlanetMap(model.Mars, 12, 12)
	mars.SetKarbonite(model.Cell{Row: 4, Col: 4}, 50)
	m := &model.Match{
		Earth:   earthMap("W....."),
		Mars:    mars,
		Strikes: model.StrikeSchedule{3: {Cell: model.Cell{Row: 2, Col: 2}, Amount: 10}},
	}
	g := sim.NewGame(m, poorOptions())
	b := newBot(t, g, model.Mars, testConfig())

	if got := b.Karbonite.Total(); got != 0 {
		t.Fatalf("karbonite after BeforeLoop = %d, want 0", got)
	}
	if _, ok := b.Karbonite.ApplyScheduledEvent(3); !ok {
		t.Fatal("strike on round 3 not applied")
	}
	if got := b.Karbonite.Total(); got != 10 {
		t.Errorf("karbonite after strike = %d, want 10", got)
	}
}

func TestEndangeredUnitsFightWithoutAttackGoal(t *testing.T) {
	g := newGame(earthMap("R.K..."), poorOptions())
	b := newBot(t, g, model.Earth, testConfig())
	idle, err := rules.NewEngine(rules.DefaultDoctrine(), nil)
	if err != nil {
		t.Fatal(err)
	}
	b.Goals = idle

	rep := b.earthTurn(1, false)
	if rep.goal.Has(rules.Attack) {
		t.Fatal("attack goal raised by an empty rule set")
	}
	if len(rep.endangered) != 1 || rep.endangered[0].Type != model.Ranger {
		t.Fatalf("endangered = %+v", rep.endangered)
	}
	knight, ok := g.Player(model.Blue, model.Earth).SenseUnitAt(model.Cell{Col: 2})
	if !ok || knight.Health >= knight.MaxHealth {
		t.Errorf("knight not attacked: %+v", knight)
	}
}

func TestNewRejectsOversizeMap(t *testing.T) {
	earth := model.NewPlanetMap(model.Earth, 51, 50)
	earth.InitialUnits = []model.Unit{model.NewUnit(0, model.Worker, model.Red, model.MapLocation(model.Earth, model.Cell{}))}
	g := newGame(earth, poorOptions())
	if _, err := New(g.Player(model.Red, model.Earth), testConfig()); !errors.Is(err, pathing.ErrGridTooLarge) {
		t.Fatalf("err = %v, want ErrGridTooLarge", err)
	}
}

func TestChooseLandingCellsAllRock(t *testing.T) {
	mars := model.NewPlanetMap(model.Mars, 9, 9)
	for i := range mars.Passable {
		mars.Passable[i] = false
	}
	g := sim.NewGame(&model.Match{Earth: earthMap("W....."), Mars: mars}, poorOptions())
	b, err := New(g.Player(model.Red, model.Mars), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if cells := b.chooseLandingCells(); len(cells) != 0 {
		t.Errorf("landing cells on solid rock: %v", cells)
	}
}

func TestWorkerHarvestsAdjacentDeposit(t *testing.T) {
	g := newGame(earthMap(
		"W*....",
		"......",
		"......",
	), poorOptions())
	rec := &turns{}
	b := newBot(t, g, model.Earth, testConfig(), WithRecorder(rec), WithMatchID("m1"))

	b.Turn()

	if got := g.Bank(model.Red); got != 3 {
		t.Errorf("bank = %d, want 3", got)
	}
	if got := b.Karbonite.AmountAt(model.Cell{Row: 0, Col: 1}); got != 17 {
		t.Errorf("cached karbonite = %d, want 17", got)
	}
	if len(rec.got) != 1 {
		t.Fatalf("recorded %d turns", len(rec.got))
	}
	tr := rec.got[0]
	if tr.Match != "m1" || tr.Round != 1 || tr.Units[model.Worker] != 1 || tr.Skipped {
		t.Errorf("recorded turn = %+v", tr)
	}
}

func TestLowTimeSkipsGathering(t *testing.T) {
	opts := poorOptions()
	opts.TimeLeftMs = 10
	g := newGame(earthMap("W*...."), opts)
	rec := &turns{}
	b := newBot(t, g, model.Earth, testConfig(), WithRecorder(rec))

	b.Turn()

	if got := g.Bank(model.Red); got != 0 {
		t.Errorf("bank = %d, want 0 on a low-time turn", got)
	}
	if len(rec.got) != 1 || !rec.got[0].Skipped {
		t.Errorf("turn not marked skipped: %+v", rec.got)
	}
}

func TestWorkerWalksToDistantDeposit(t *testing.T) {
	g := newGame(earthMap("W......*"), poorOptions())
	b := newBot(t, g, model.Earth, testConfig())

	for range 16 {
		b.Turn()
		g.AdvanceRound()
	}
	if got := g.Bank(model.Red); got == 0 {
		t.Error("worker never reached the deposit")
	}
}

func TestReplicateWorkers(t *testing.T) {
	opts := poorOptions()
	opts.StartingKarbonite = 100
	g := newGame(earthMap(
		".....",
		".....",
		"..W..",
		".....",
	), opts)
	b := newBot(t, g, model.Earth, testConfig())
	r := roster.Build(b.Host.MyUnits())

	b.replicateOrProduceWorkers(r)

	if got := r.Count(model.Worker); got != 2 {
		t.Errorf("roster workers = %d, want 2", got)
	}
	if got := g.Census()[model.Red][model.Worker]; got != 2 {
		t.Errorf("census workers = %d, want 2", got)
	}
	if got := g.Bank(model.Red); got != 100-model.ReplicateCost {
		t.Errorf("bank = %d", got)
	}
}

func TestFactoryProducesWorkerWhenNoneLeft(t *testing.T) {
	opts := poorOptions()
	opts.StartingKarbonite = 100
	g := newGame(earthMap(
		".....",
		"..F..",
		".....",
	), opts)
	b := newBot(t, g, model.Earth, testConfig())
	r := roster.Build(b.Host.MyUnits())
	factory := r.IDs(model.Factory)[0]

	b.replicateOrProduceWorkers(r)

	f, _ := b.Host.Unit(factory)
	if !f.FactoryProducing {
		t.Fatal("factory is not producing")
	}
	if got := g.Bank(model.Red); got != 100-model.StatsFor(model.Worker).FactoryCost {
		t.Errorf("bank = %d", got)
	}

	for range sim.DefaultOptions().ProductionRounds {
		g.AdvanceRound()
	}
	r = roster.Build(b.Host.MyUnits())
	b.unloadAll(r, model.Factory)
	w, ok := r.Get(r.IDs(model.Worker)[0])
	if !ok || !w.OnMap() {
		t.Errorf("produced worker not unloaded: %+v", w)
	}
}

func TestProduceRespectsBank(t *testing.T) {
	opts := poorOptions()
	opts.StartingKarbonite = 60
	g := newGame(earthMap(
		"F..F..",
		"......",
	), opts)
	b := newBot(t, g, model.Earth, testConfig())
	r := roster.Build(b.Host.MyUnits())

	b.produce(r, model.Ranger)

	busy := 0
	for _, id := range r.IDs(model.Factory) {
		if f, _ := b.Host.Unit(id); f.FactoryProducing {
			busy++
		}
	}
	if busy != 1 {
		t.Errorf("%d factories busy, want 1", busy)
	}
	if got := g.Bank(model.Red); got != 20 {
		t.Errorf("bank = %d, want 20", got)
	}
}

func TestLoadAndLaunch(t *testing.T) {
	g := newGame(earthMap(
		".......",
		".......",
		"..RRR..",
		"..RTR..",
		"..RRR..",
		".......",
	), poorOptions())
	b := newBot(t, g, model.Earth, testConfig())
	b.landing = []model.Cell{{Row: 3, Col: 3}}
	r := roster.Build(b.Host.MyUnits())
	rocket := r.IDs(model.Rocket)[0]

	launches := b.loadAndLaunch(r)

	if len(launches) != 1 || len(launches[0].cargo) != model.GarrisonCapacity {
		t.Fatalf("launches = %+v", launches)
	}
	if len(b.landing) != 0 {
		t.Errorf("landing cell not consumed: %v", b.landing)
	}
	if len(b.departed) != model.GarrisonCapacity+1 {
		t.Errorf("departed = %v", b.departed)
	}
	if r.Count(model.Rocket) != 0 || r.Count(model.Ranger) != 0 {
		t.Errorf("roster still holds launched units: %v", r.Counts())
	}
	if u, _ := b.Host.Unit(rocket); u.Location.Kind != model.InSpace {
		t.Errorf("rocket location = %+v", u.Location)
	}

	// The next turn must not report the passengers as lost.
	b.prev = &turnSummary{units: map[int]model.UnitType{rocket: model.Rocket}}
	for _, id := range launches[0].cargo {
		b.prev.units[id] = model.Ranger
	}
	cur := takeSummary(2, b.Host.MyUnits(), turnReport{}, false)
	for _, e := range detectEvents(b.prev, cur, turnReport{}, b.departed) {
		if e.Kind == EventUnitLost {
			t.Errorf("launched units reported lost: %+v", e)
		}
	}

	for range sim.DefaultOptions().FlightRounds {
		g.AdvanceRound()
	}
	mb := newBot(t, g, model.Mars, testConfig())
	mb.Turn()
	onMars := 0
	for _, u := range mb.Host.MyUnits() {
		if u.Type == model.Ranger && u.OnMap() {
			onMars++
		}
	}
	if onMars == 0 {
		t.Error("no ranger unloaded on Mars")
	}
}

func TestNoLaunchWithoutLandingCells(t *testing.T) {
	g := newGame(earthMap(
		".....",
		".RTR.",
		".....",
	), poorOptions())
	b := newBot(t, g, model.Earth, testConfig())
	if got := b.loadAndLaunch(roster.Build(b.Host.MyUnits())); got != nil {
		t.Errorf("launched without landing cells: %+v", got)
	}
}

func TestDoctrinePhaseSwap(t *testing.T) {
	cfg := testConfig()
	late := rules.DefaultDoctrine()
	late.Name = "late"
	late.RocketRound = 1
	cfg.Goals.Phases = []config.Phase{{FromRound: 3, Doctrine: late}}
	g := newGame(earthMap("W....."), poorOptions())
	b := newBot(t, g, model.Earth, cfg)

	b.Turn()
	g.AdvanceRound()
	if got := b.Goals.Doctrine().Name; got != rules.DefaultDoctrine().Name {
		t.Fatalf("doctrine swapped early: %s", got)
	}
	b.Turn()
	g.AdvanceRound()
	b.Turn()
	if got := b.Goals.Doctrine().Name; got != "late" {
		t.Errorf("doctrine = %s, want late", got)
	}
}

func TestRunLocal(t *testing.T) {
	earth := earthMap(
		"W.*.......",
		"..........",
		"....*.....",
		"..........",
		"..........",
		".......*..",
		"..........",
		".........K",
	)
	opts := sim.DefaultOptions()
	opts.MaxRounds = 30
	g := sim.NewGame(&model.Match{Earth: earth, Mars: model.NewPlanetMap(model.Mars, 9, 9)}, opts)
	bots, err := NewLocal(g, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(bots) != 4 {
		t.Fatalf("got %d bots", len(bots))
	}
	res, err := RunLocal(context.Background(), g, bots)
	if err != nil {
		t.Fatal(err)
	}
	if res.Rounds < 1 || res.Rounds > 30 {
		t.Errorf("rounds = %d", res.Rounds)
	}
}

func TestRunLocalCancelled(t *testing.T) {
	g := newGame(earthMap("W....K"), sim.DefaultOptions())
	bots, err := NewLocal(g, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunLocal(ctx, g, bots); err == nil {
		t.Error("expected context error")
	}
}
