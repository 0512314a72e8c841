package construction

import (
	"testing"

	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/movement"
	"github.com/nstehr/rangerbot/pathing"
	"github.com/nstehr/rangerbot/roster"
	"github.com/nstehr/rangerbot/sim"
)

func TestEstimate(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name           string
		h, w, b, t     int
		f1, f2, better int
	}{
		{"one worker, nearby helper", 40, 1, 5, 2, 8, 5, 3},
		{"one worker, slow helper", 40, 1, 5, 8, 8, 8, 0},
		{"unstaffed site", 40, 0, 5, 2, 38, 5, 33},
		{"helper arrives after finish", 10, 2, 5, 3, 1, 3, -2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f1, f2, imp := p.Estimate(tc.h, tc.w, tc.b, tc.t)
			if f1 != tc.f1 || f2 != tc.f2 || imp != tc.better {
				t.Errorf("Estimate = (%d, %d, %d), want (%d, %d, %d)", f1, f2, imp, tc.f1, tc.f2, tc.better)
			}
		})
	}
}

func TestTravelTurns(t *testing.T) {
	p := DefaultParams()
	const inf = pathing.DistType(100)
	if got, ok := p.TravelTurns(1, inf, 20, 0); !ok || got != 2 {
		t.Errorf("TravelTurns(1) = %d %v, want 2 true", got, ok)
	}
	if got, ok := p.TravelTurns(4, inf, 20, 10); !ok || got != 10 {
		t.Errorf("TravelTurns(4, heat 10) = %d %v, want 10 true", got, ok)
	}
	if _, ok := p.TravelTurns(inf, inf, 20, 0); ok {
		t.Error("unreachable site should not be estimated")
	}
}

type fixture struct {
	g     *sim.Game
	red   *sim.Player
	sched *Scheduler
	step  *movement.Stepper
}

func newFixture(t *testing.T, units ...model.Unit) *fixture {
	t.Helper()
	earth := model.NewPlanetMap(model.Earth, 10, 10)
	earth.InitialUnits = units
	g := sim.NewGame(&model.Match{Earth: earth, Mars: model.NewPlanetMap(model.Mars, 2, 2)}, sim.DefaultOptions())
	red := g.Player(model.Red, model.Earth)
	f := pathing.ForMap(earth)
	f.ComputeAllPairs(earth.Passable)
	return &fixture{
		g:     g,
		red:   red,
		sched: New(red, f, DefaultParams()),
		step:  movement.New(red, f, movement.Directions(model.Compass)),
	}
}

func worker(row, col int) model.Unit {
	return model.NewUnit(0, model.Worker, model.Red, model.MapLocation(model.Earth, model.Cell{Row: row, Col: col}))
}

func TestBlueprintCreatesSite(t *testing.T) {
	fx := newFixture(t, worker(5, 5), worker(0, 0))
	r := roster.Build(fx.red.MyUnits())
	for range 10 {
		fx.g.AdvanceRound()
	}

	placed := fx.sched.Blueprint(r, model.Factory, movement.Directions(model.Compass))
	if len(placed) != 1 {
		t.Fatalf("placed %d sites, want 1 (karbonite %d)", len(placed), fx.red.Karbonite())
	}
	site := placed[0]
	if r.Count(model.Factory) != 1 {
		t.Error("blueprint should be added to the roster")
	}
	if got := fx.sched.Workers(site); len(got) != 1 || got[0] != r.IDs(model.Worker)[0] {
		t.Errorf("site workers = %v", got)
	}
	if !fx.sched.IsTasked(r.IDs(model.Worker)[0]) {
		t.Error("placing worker should be tasked")
	}
}

func TestExecuteBuildsAndReleases(t *testing.T) {
	fx := newFixture(t, worker(5, 5))
	for range 10 {
		fx.g.AdvanceRound()
	}
	r := roster.Build(fx.red.MyUnits())
	site := fx.sched.Blueprint(r, model.Factory, movement.Directions(model.Compass))[0]
	w := r.IDs(model.Worker)[0]

	rounds := 0
	for {
		fx.g.AdvanceRound()
		rounds++
		if done := fx.sched.Execute(); len(done) == 1 {
			if done[0] != site {
				t.Fatalf("finished %v, want %d", done, site)
			}
			break
		}
		if rounds > 100 {
			t.Fatal("factory never finished")
		}
	}
	// 300 hp, starts at 75, 5 per round.
	if rounds != 45 {
		t.Errorf("finished after %d rounds, want 45", rounds)
	}
	if fx.sched.IsTasked(w) || len(fx.sched.Sites()) != 0 {
		t.Error("finished site should release its worker and be forgotten")
	}
}

func TestExecuteDropsWanderingWorker(t *testing.T) {
	fx := newFixture(t, worker(5, 5))
	for range 10 {
		fx.g.AdvanceRound()
	}
	r := roster.Build(fx.red.MyUnits())
	site := fx.sched.Blueprint(r, model.Factory, movement.Directions(model.Compass))[0]
	w := r.IDs(model.Worker)[0]

	fx.g.AdvanceRound()
	// North is where the site is; walk south twice.
	fx.red.Move(w, model.South)
	fx.g.AdvanceRound()
	fx.g.AdvanceRound()
	fx.red.Move(w, model.South)

	fx.sched.Execute()
	if fx.sched.IsTasked(w) {
		t.Error("non-adjacent worker should be released")
	}
	if got := fx.sched.Workers(site); len(got) != 0 {
		t.Errorf("site workers = %v, want none", got)
	}
}

func TestReassignJoinsNearbySite(t *testing.T) {
	fx := newFixture(t, worker(5, 5), worker(5, 8))
	for range 10 {
		fx.g.AdvanceRound()
	}
	r := roster.Build(fx.red.MyUnits())
	ids := r.IDs(model.Worker)
	builder, helper := ids[0], ids[1]

	if err := fx.red.Blueprint(builder, model.Factory, model.East); err != nil {
		t.Fatalf("Blueprint: %v", err)
	}
	site, _ := fx.red.SenseUnitAt(model.Cell{Row: 5, Col: 6})
	fx.sched.AddSite(site.ID, builder)

	fx.g.AdvanceRound()
	fx.sched.Reassign(r, fx.step)
	if !fx.sched.IsTasked(helper) {
		moved, _ := fx.red.Unit(helper)
		t.Fatalf("helper at %v not tasked", moved.Cell())
	}
	if got := fx.sched.Workers(site.ID); len(got) != 2 {
		t.Errorf("site workers = %v, want 2", got)
	}
}

func TestReassignTravelsTowardDistantSite(t *testing.T) {
	fx := newFixture(t, worker(0, 0), worker(9, 9))
	for range 10 {
		fx.g.AdvanceRound()
	}
	r := roster.Build(fx.red.MyUnits())
	ids := r.IDs(model.Worker)
	if err := fx.red.Blueprint(ids[0], model.Factory, model.North); err != nil {
		t.Fatalf("Blueprint: %v", err)
	}
	site, _ := fx.red.SenseUnitAt(model.Cell{Row: 1, Col: 0})
	fx.sched.AddSite(site.ID, ids[0])

	// 225 missing health with one worker: 45 turns left. The far worker is
	// 9 hops away, about 20 turns, which still pays off.
	fx.sched.Reassign(r, fx.step)
	moved, _ := fx.red.Unit(ids[1])
	if moved.Cell() == (model.Cell{Row: 9, Col: 9}) {
		t.Error("far worker should head for the site")
	}
	if fx.sched.IsTasked(ids[1]) {
		t.Error("far worker is not on site yet")
	}
}
