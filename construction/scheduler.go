package construction

import (
	"log/slog"
	"slices"

	"github.com/nstehr/rangerbot/host"
	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/movement"
	"github.com/nstehr/rangerbot/pathing"
	"github.com/nstehr/rangerbot/roster"
)

// Scheduler tracks construction sites and the workers tasked to them. It
// lives for the whole game.
type Scheduler struct {
	host   host.Controller
	finder *pathing.Finder
	params Params

	sites  map[int][]int // site id -> worker ids, in assignment order
	order  []int         // site ids in creation order
	tasked map[int]int   // worker id -> site id
}

func New(h host.Controller, f *pathing.Finder, p Params) *Scheduler {
	return &Scheduler{
		host:   h,
		finder: f,
		params: p,
		sites:  make(map[int][]int),
		tasked: make(map[int]int),
	}
}

// AddSite registers a structure under construction and optionally a first
// worker.
func (s *Scheduler) AddSite(site int, workers ...int) {
	if _, ok := s.sites[site]; !ok {
		s.order = append(s.order, site)
		s.sites[site] = nil
	}
	for _, w := range workers {
		s.assign(w, site)
	}
}

func (s *Scheduler) assign(worker, site int) {
	s.sites[site] = append(s.sites[site], worker)
	s.tasked[worker] = site
}

func (s *Scheduler) removeSite(site int) {
	for _, w := range s.sites[site] {
		delete(s.tasked, w)
	}
	delete(s.sites, site)
	s.order = slices.DeleteFunc(s.order, func(x int) bool { return x == site })
}

// Sites returns the site ids in creation order.
func (s *Scheduler) Sites() []int { return slices.Clone(s.order) }

// Workers returns the workers on a site.
func (s *Scheduler) Workers(site int) []int { return slices.Clone(s.sites[site]) }

// IsTasked reports whether a worker is assigned to a site.
func (s *Scheduler) IsTasked(worker int) bool {
	_, ok := s.tasked[worker]
	return ok
}

// Execute has every assigned, adjacent worker build its site. Sites that
// vanished are forgotten, dead or wandering workers are released, and
// finished sites release all their workers. It returns the sites finished
// this turn.
func (s *Scheduler) Execute() []int {
	var finished []int
	for _, site := range slices.Clone(s.order) {
		su, ok := s.host.Unit(site)
		if !ok {
			slog.Debug("construction site lost", "site", site)
			s.removeSite(site)
			continue
		}
		if su.StructureBuilt {
			finished = append(finished, site)
			continue
		}

		kept := s.sites[site][:0]
		done := false
		for i, w := range s.sites[site] {
			if done {
				kept = append(kept, s.sites[site][i:]...)
				break
			}
			wu, ok := s.host.Unit(w)
			if !ok || !wu.OnMap() || !model.IsAdjacent(wu.Cell(), su.Cell()) {
				delete(s.tasked, w)
				continue
			}
			kept = append(kept, w)
			if wu.WorkerHasActed || !s.host.CanBuild(w, site) {
				continue
			}
			if err := s.host.Build(w, site); err != nil {
				slog.Debug("build rejected", "worker", w, "site", site, "error", err)
				continue
			}
			if fresh, ok := s.host.Unit(site); ok && fresh.StructureBuilt {
				finished = append(finished, site)
				done = true
			}
		}
		s.sites[site] = kept
	}
	for _, site := range finished {
		slog.Info("structure finished", "site", site, "workers", len(s.sites[site]))
		s.removeSite(site)
	}
	return finished
}

// Reassign sends idle workers to the site where one more pair of hands
// shortens the finish time the most. A worker joins the site once it is
// within one hop.
func (s *Scheduler) Reassign(r *roster.Roster, step *movement.Stepper) {
	if len(s.order) == 0 {
		return
	}
	for _, w := range r.IDs(model.Worker) {
		if s.IsTasked(w) {
			continue
		}
		wu, ok := s.host.Unit(w)
		if !ok || !wu.OnMap() {
			continue
		}
		site, siteCell, ok := s.bestSite(wu)
		if !ok {
			continue
		}
		dist := s.finder.Dist(wu.Cell(), siteCell)
		if dist > 1 {
			step.MoveToward(wu, siteCell)
			if fresh, ok := s.host.Unit(w); ok {
				r.Refresh(fresh)
				wu = fresh
			}
			if !wu.OnMap() {
				continue
			}
			dist = s.finder.Dist(wu.Cell(), siteCell)
		}
		if dist <= 1 {
			slog.Debug("worker joins site", "worker", w, "site", site)
			s.assign(w, site)
		}
	}
}

func (s *Scheduler) bestSite(wu model.Unit) (int, model.Cell, bool) {
	best := s.params.MinImprovement
	bestSite, bestCell, found := 0, model.Cell{}, false
	for _, site := range s.order {
		su, ok := s.host.Unit(site)
		if !ok || !su.OnMap() {
			continue
		}
		t, reachable := s.params.TravelTurns(s.finder.Dist(wu.Cell(), su.Cell()), s.finder.Infinity(), wu.MovementCooldown, wu.MovementHeat)
		if !reachable {
			continue
		}
		f1, _, improvement := s.params.Estimate(su.MaxHealth-su.Health, len(s.sites[site]), wu.BuildHealth, t)
		if t >= f1 || t > s.params.MaxTravel {
			continue
		}
		if improvement > best {
			best, bestSite, bestCell, found = improvement, site, su.Cell(), true
		}
	}
	return bestSite, bestCell, found
}

// Blueprint has untasked workers place a structure of type t in the first
// legal direction of dirs and staffs the new site with that worker. It
// returns the new site ids.
func (s *Scheduler) Blueprint(r *roster.Roster, t model.UnitType, dirs movement.Directions) []int {
	if s.host.Karbonite() < model.StatsFor(t).BlueprintCost {
		return nil
	}
	var placed []int
	for _, w := range r.IDs(model.Worker) {
		if s.IsTasked(w) {
			continue
		}
		wu, ok := r.Get(w)
		if !ok || !wu.OnMap() {
			continue
		}
		for _, d := range dirs {
			if !s.host.CanBlueprint(w, t, d) {
				continue
			}
			if err := s.host.Blueprint(w, t, d); err != nil {
				slog.Debug("blueprint rejected", "worker", w, "type", t, "error", err)
				continue
			}
			site, ok := s.host.SenseUnitAt(wu.Cell().Add(d))
			if !ok {
				break
			}
			if err := r.Add(site); err != nil {
				slog.Warn("blueprint already in roster", "site", site.ID, "error", err)
			}
			s.AddSite(site.ID, w)
			placed = append(placed, site.ID)
			slog.Info("blueprint placed", "type", t, "site", site.ID, "worker", w, "cell", site.Cell())
			break
		}
	}
	return placed
}
