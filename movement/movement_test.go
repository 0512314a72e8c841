package movement

import (
	"math/rand/v2"
	"testing"

	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/pathing"
	"github.com/nstehr/rangerbot/sim"
)

// world builds an Earth map from rows listed bottom-up ('#' is rock, 'W' a
// red worker, 'K' a blue knight) and returns red's controller and a stepper
// with a computed table.
func world(t *testing.T, rows ...string) (*sim.Player, *Stepper) {
	t.Helper()
	earth := model.NewPlanetMap(model.Earth, len(rows[0]), len(rows))
	for r, line := range rows {
		for c, ch := range line {
			cell := model.Cell{Row: r, Col: c}
			switch ch {
			case '#':
				earth.SetPassable(cell, false)
			case 'W':
				earth.InitialUnits = append(earth.InitialUnits,
					model.NewUnit(0, model.Worker, model.Red, model.MapLocation(model.Earth, cell)))
			case 'K':
				earth.InitialUnits = append(earth.InitialUnits,
					model.NewUnit(0, model.Knight, model.Blue, model.MapLocation(model.Earth, cell)))
			}
		}
	}
	g := sim.NewGame(&model.Match{Earth: earth, Mars: model.NewPlanetMap(model.Mars, 2, 2)}, sim.DefaultOptions())
	red := g.Player(model.Red, model.Earth)
	f := pathing.ForMap(earth)
	f.ComputeAllPairs(earth.Passable)
	return red, New(red, f, Directions(model.Compass))
}

func firstWorker(t *testing.T, p *sim.Player) model.Unit {
	t.Helper()
	for _, u := range p.MyUnits() {
		if u.Type == model.Worker {
			return u
		}
	}
	t.Fatal("no worker")
	return model.Unit{}
}

func TestShuffleIsPermutation(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		d := Shuffle(rng)
		seen := map[model.Direction]bool{}
		for _, x := range d {
			if x == model.Center || seen[x] {
				t.Fatalf("bad permutation %v", d)
			}
			seen[x] = true
		}
	}
}

func TestPathToGoesAroundWall(t *testing.T) {
	red, s := world(t,
		".....",
		"W.#..",
		"..#..",
		"..#..",
		".....",
	)
	// Bottom row is row 0, so the worker starts at (1,0). The gap in the
	// wall is at the top (row 4) and the bottom (row 0).
	w := firstWorker(t, red)
	target := model.Cell{Row: 1, Col: 4}
	before := s.Finder.Dist(w.Cell(), target)
	if !s.PathTo(w, target) {
		t.Fatal("PathTo did not move")
	}
	w, _ = red.Unit(w.ID)
	if got := s.Finder.Dist(w.Cell(), target); got != before-1 {
		t.Errorf("distance after step = %d, want %d", got, before-1)
	}
}

func TestPathToRefusesWhenHot(t *testing.T) {
	red, s := world(t, "W...")
	w := firstWorker(t, red)
	if !s.PathTo(w, model.Cell{Col: 3}) {
		t.Fatal("first step should succeed")
	}
	w, _ = red.Unit(w.ID)
	if s.PathTo(w, model.Cell{Col: 3}) {
		t.Error("step with heat 20 should be refused")
	}
}

func TestPathToUnreachable(t *testing.T) {
	red, s := world(t,
		"W#.",
		".#.",
	)
	w := firstWorker(t, red)
	if s.PathTo(w, model.Cell{Row: 0, Col: 2}) {
		t.Error("PathTo moved toward an unreachable cell")
	}
}

func TestPathNaivelyBendsAroundBlocker(t *testing.T) {
	red, s := world(t,
		"...",
		"WK.",
		"...",
	)
	w := firstWorker(t, red)
	if !s.PathNaively(w, model.Cell{Row: 1, Col: 2}) {
		t.Fatal("PathNaively did not move")
	}
	w, _ = red.Unit(w.ID)
	// East is blocked by the knight; +1 rotation (southeast) comes first.
	if w.Cell() != (model.Cell{Row: 0, Col: 1}) {
		t.Errorf("worker at %v, want (0,1)", w.Cell())
	}
}

func TestMoveTowardAdjacentUsesNaive(t *testing.T) {
	red, s := world(t, "W..")
	w := firstWorker(t, red)
	if !s.MoveToward(w, model.Cell{Col: 1}) {
		t.Fatal("MoveToward did not move")
	}
	w, _ = red.Unit(w.ID)
	if w.Cell() != (model.Cell{Col: 1}) {
		t.Errorf("worker at %v, want (0,1)", w.Cell())
	}
}

func TestMoveTowardWithoutTableWalksNaively(t *testing.T) {
	red, s := world(t, "W....")
	s.Finder = pathing.New(1, 5)
	w := firstWorker(t, red)
	if s.PathTo(w, model.Cell{Col: 4}) {
		t.Fatal("PathTo moved without a table")
	}
	if !s.MoveToward(w, model.Cell{Col: 4}) {
		t.Fatal("MoveToward did not move")
	}
	w, _ = red.Unit(w.ID)
	if w.Cell() != (model.Cell{Col: 1}) {
		t.Errorf("worker at %v, want (0,1)", w.Cell())
	}
}

func TestMoveTowardFarUsesTable(t *testing.T) {
	red, s := world(t,
		".....",
		"W.#..",
		"..#..",
		"..#..",
		".....",
	)
	w := firstWorker(t, red)
	target := model.Cell{Row: 1, Col: 4}
	before := s.Finder.Dist(w.Cell(), target)
	if !s.MoveToward(w, target) {
		t.Fatal("MoveToward did not move")
	}
	w, _ = red.Unit(w.ID)
	if got := s.Finder.Dist(w.Cell(), target); got != before-1 {
		t.Errorf("distance after step = %d, want %d", got, before-1)
	}
}

func TestStepAnywhere(t *testing.T) {
	red, s := world(t,
		"#.",
		"W#",
	)
	w := firstWorker(t, red)
	if !s.StepAnywhere(w) {
		t.Fatal("StepAnywhere did not move")
	}
	w, _ = red.Unit(w.ID)
	if w.Cell() != (model.Cell{Row: 0, Col: 1}) {
		t.Errorf("worker at %v, want (0,1)", w.Cell())
	}
}
