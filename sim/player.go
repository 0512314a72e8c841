package sim

import (
	"slices"

	"github.com/nstehr/rangerbot/host"
	"github.com/nstehr/rangerbot/model"
)

// Player is one team's view of one planet.
type Player struct {
	g      *Game
	team   model.Team
	planet model.Planet
}

var _ host.Controller = (*Player)(nil)

func (p *Player) Round() int           { return p.g.Round() }
func (p *Player) Planet() model.Planet { return p.planet }
func (p *Player) Team() model.Team     { return p.team }
func (p *Player) TimeLeftMs() int      { return p.g.opts.TimeLeftMs }

// NextTurn is a no-op; the driver calls Game.AdvanceRound once every player
// has taken its turn.
func (p *Player) NextTurn() error { return nil }

func (p *Player) Karbonite() int {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	return p.g.bank[p.team]
}

func (p *Player) here(u *model.Unit) bool {
	return u.Location.Kind != model.InSpace && u.Location.Planet == p.planet
}

func (p *Player) sortedIDs() []int {
	ids := make([]int, 0, len(p.g.units))
	for id := range p.g.units {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (p *Player) MyUnits() []model.Unit {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	var out []model.Unit
	for _, id := range p.sortedIDs() {
		u := p.g.units[id]
		if u.Team == p.team && p.here(u) {
			out = append(out, snapshot(u))
		}
	}
	return out
}

func (p *Player) Units() []model.Unit {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	var out []model.Unit
	for _, id := range p.sortedIDs() {
		if u := p.g.units[id]; p.here(u) {
			out = append(out, snapshot(u))
		}
	}
	return out
}

// visible returns a unit this player may see: any unit on its planet and
// its own units anywhere.
func (p *Player) visible(id int) (*model.Unit, bool) {
	u, ok := p.g.units[id]
	if !ok || (!p.here(u) && u.Team != p.team) {
		return nil, false
	}
	return u, true
}

// own returns a friendly unit on this planet that the player may command.
func (p *Player) own(id int) (*model.Unit, bool) {
	u, ok := p.g.units[id]
	if !ok || u.Team != p.team || !p.here(u) {
		return nil, false
	}
	return u, true
}

func (p *Player) Unit(id int) (model.Unit, bool) {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	u, ok := p.visible(id)
	if !ok {
		return model.Unit{}, false
	}
	return snapshot(u), true
}

func (p *Player) HasUnit(id int) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	_, ok := p.visible(id)
	return ok
}

func (p *Player) SenseUnitAt(c model.Cell) (model.Unit, bool) {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	id, ok := p.g.occupant[p.planet][c]
	if !ok {
		return model.Unit{}, false
	}
	return snapshot(p.g.units[id]), true
}

func (p *Player) KarboniteAt(c model.Cell) int {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	i, ok := p.g.karbIndex(p.planet, c)
	if !ok {
		return 0
	}
	return p.g.karb[p.planet][i]
}

func (p *Player) IsOccupiable(c model.Cell) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	return p.g.occupiable(p.planet, c)
}

func (p *Player) StartingMap(pl model.Planet) *model.PlanetMap {
	return p.g.maps[pl]
}

func (p *Player) StrikeSchedule() model.StrikeSchedule {
	return p.g.strikes
}

func (p *Player) TeamArray(pl model.Planet) []int {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	return slices.Clone(p.g.arrays[p.team][pl])
}

func (p *Player) WriteTeamArray(index, value int) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	arr := p.g.arrays[p.team][p.planet]
	if index < 0 || index >= len(arr) {
		return host.Reject("write team array", 0, "index %d out of range", index)
	}
	arr[index] = value
	return nil
}

func (p *Player) QueueResearch(t model.UnitType) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	p.g.research[p.team] = append(p.g.research[p.team], t)
	return true
}

// The check* helpers return the reason an action is illegal, or "" when it
// may proceed. Callers hold the lock.

func (p *Player) checkMove(id int, d model.Direction) string {
	u, ok := p.own(id)
	switch {
	case !ok:
		return "unknown unit"
	case !u.Type.IsRobot():
		return "structures cannot move"
	case !u.OnMap():
		return "not on the map"
	case u.MovementHeat >= model.HeatLimit:
		return "movement heat too high"
	case d == model.Center:
		return "no direction"
	case !p.g.occupiable(p.planet, u.Cell().Add(d)):
		return "destination blocked"
	}
	return ""
}

func (p *Player) CanMove(unit int, d model.Direction) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	return p.checkMove(unit, d) == ""
}

func (p *Player) Move(unit int, d model.Direction) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if why := p.checkMove(unit, d); why != "" {
		return host.Reject("move", unit, "%s", why)
	}
	u := p.g.units[unit]
	delete(p.g.occupant[p.planet], u.Cell())
	u.Location.Cell = u.Cell().Add(d)
	p.g.occupant[p.planet][u.Cell()] = u.ID
	u.MovementHeat += u.MovementCooldown
	return nil
}

func (p *Player) checkAttack(id, target int) string {
	u, ok := p.own(id)
	if !ok {
		return "unknown unit"
	}
	t, ok := p.g.units[target]
	switch {
	case !ok || !p.here(t) || !t.OnMap():
		return "target not on the map"
	case !u.DealsDamage():
		return "unit cannot attack"
	case !u.OnMap():
		return "not on the map"
	case u.AttackHeat >= model.HeatLimit:
		return "attack heat too high"
	case t.Team == u.Team:
		return "friendly target"
	case model.DistSq(u.Cell(), t.Cell()) > u.AttackRange:
		return "target out of range"
	}
	return ""
}

func (p *Player) CanAttack(unit, target int) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	return p.checkAttack(unit, target) == ""
}

func (p *Player) Attack(unit, target int) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if why := p.checkAttack(unit, target); why != "" {
		return host.Reject("attack", unit, "%s", why)
	}
	u, t := p.g.units[unit], p.g.units[target]
	u.AttackHeat += model.StatsFor(u.Type).AttackCooldown
	t.Health -= u.Damage
	if t.Health <= 0 {
		p.g.destroy(target)
	}
	return nil
}

func (p *Player) checkBlueprint(id int, t model.UnitType, d model.Direction) string {
	u, ok := p.own(id)
	switch {
	case !ok:
		return "unknown unit"
	case u.Type != model.Worker:
		return "only workers place blueprints"
	case !t.IsStructure():
		return "not a structure"
	case p.planet != model.Earth:
		return "structures are built on earth"
	case !u.OnMap():
		return "not on the map"
	case u.WorkerHasActed:
		return "worker already acted"
	case p.g.bank[p.team] < model.StatsFor(t).BlueprintCost:
		return "not enough karbonite"
	case d == model.Center || !p.g.occupiable(p.planet, u.Cell().Add(d)):
		return "site blocked"
	}
	return ""
}

func (p *Player) CanBlueprint(worker int, t model.UnitType, d model.Direction) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	return p.checkBlueprint(worker, t, d) == ""
}

func (p *Player) Blueprint(worker int, t model.UnitType, d model.Direction) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if why := p.checkBlueprint(worker, t, d); why != "" {
		return host.Reject("blueprint", worker, "%s", why)
	}
	w := p.g.units[worker]
	p.g.bank[p.team] -= model.StatsFor(t).BlueprintCost
	s := p.g.spawn(t, p.team, model.MapLocation(p.planet, w.Cell().Add(d)))
	s.Health = max(1, s.MaxHealth/4)
	s.StructureBuilt = false
	w.WorkerHasActed = true
	return nil
}

func (p *Player) checkBuild(id, site int) string {
	w, ok := p.own(id)
	if !ok {
		return "unknown unit"
	}
	s, ok := p.own(site)
	switch {
	case !ok:
		return "unknown site"
	case w.Type != model.Worker:
		return "only workers build"
	case !w.OnMap() || !s.OnMap():
		return "not on the map"
	case w.WorkerHasActed:
		return "worker already acted"
	case !s.Type.IsStructure() || s.StructureBuilt:
		return "nothing to build"
	case !model.IsAdjacent(w.Cell(), s.Cell()):
		return "site not adjacent"
	}
	return ""
}

func (p *Player) CanBuild(worker, site int) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	return p.checkBuild(worker, site) == ""
}

func (p *Player) Build(worker, site int) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if why := p.checkBuild(worker, site); why != "" {
		return host.Reject("build", worker, "%s", why)
	}
	w, s := p.g.units[worker], p.g.units[site]
	w.WorkerHasActed = true
	s.Health = min(s.MaxHealth, s.Health+w.BuildHealth)
	if s.Health == s.MaxHealth {
		s.StructureBuilt = true
	}
	return nil
}

func (p *Player) checkHarvest(id int, d model.Direction) string {
	w, ok := p.own(id)
	switch {
	case !ok:
		return "unknown unit"
	case w.Type != model.Worker:
		return "only workers harvest"
	case !w.OnMap():
		return "not on the map"
	case w.WorkerHasActed:
		return "worker already acted"
	}
	i, ok := p.g.karbIndex(p.planet, w.Cell().Add(d))
	if !ok || p.g.karb[p.planet][i] == 0 {
		return "no karbonite"
	}
	return ""
}

func (p *Player) CanHarvest(worker int, d model.Direction) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	return p.checkHarvest(worker, d) == ""
}

func (p *Player) Harvest(worker int, d model.Direction) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if why := p.checkHarvest(worker, d); why != "" {
		return host.Reject("harvest", worker, "%s", why)
	}
	w := p.g.units[worker]
	i, _ := p.g.karbIndex(p.planet, w.Cell().Add(d))
	taken := min(w.HarvestAmount, p.g.karb[p.planet][i])
	p.g.karb[p.planet][i] -= taken
	p.g.bank[p.team] += taken
	w.WorkerHasActed = true
	return nil
}

func (p *Player) checkReplicate(id int, d model.Direction) string {
	w, ok := p.own(id)
	switch {
	case !ok:
		return "unknown unit"
	case w.Type != model.Worker:
		return "only workers replicate"
	case !w.OnMap():
		return "not on the map"
	case w.AbilityHeat >= model.HeatLimit:
		return "ability heat too high"
	case p.g.bank[p.team] < model.ReplicateCost:
		return "not enough karbonite"
	case d == model.Center || !p.g.occupiable(p.planet, w.Cell().Add(d)):
		return "destination blocked"
	}
	return ""
}

func (p *Player) CanReplicate(worker int, d model.Direction) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	return p.checkReplicate(worker, d) == ""
}

func (p *Player) Replicate(worker int, d model.Direction) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if why := p.checkReplicate(worker, d); why != "" {
		return host.Reject("replicate", worker, "%s", why)
	}
	w := p.g.units[worker]
	p.g.bank[p.team] -= model.ReplicateCost
	w.AbilityHeat += p.g.opts.AbilityCooldown
	w.WorkerHasActed = true
	p.g.spawn(model.Worker, p.team, model.MapLocation(p.planet, w.Cell().Add(d)))
	return nil
}

func (p *Player) checkProduce(id int, t model.UnitType) string {
	f, ok := p.own(id)
	switch {
	case !ok:
		return "unknown unit"
	case f.Type != model.Factory:
		return "only factories produce"
	case !f.StructureBuilt:
		return "factory not built"
	case f.FactoryProducing:
		return "factory busy"
	case !t.IsRobot():
		return "factories produce robots"
	case len(f.Garrison) >= model.GarrisonCapacity:
		return "garrison full"
	case p.g.bank[p.team] < model.StatsFor(t).FactoryCost:
		return "not enough karbonite"
	}
	return ""
}

func (p *Player) CanProduce(factory int, t model.UnitType) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	return p.checkProduce(factory, t) == ""
}

func (p *Player) Produce(factory int, t model.UnitType) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if why := p.checkProduce(factory, t); why != "" {
		return host.Reject("produce", factory, "%s", why)
	}
	f := p.g.units[factory]
	p.g.bank[p.team] -= model.StatsFor(t).FactoryCost
	f.FactoryProducing = true
	p.g.building[factory] = production{unit: t, done: p.g.round + p.g.opts.ProductionRounds}
	return nil
}

func (p *Player) checkLoad(structure, robot int) string {
	s, ok := p.own(structure)
	if !ok {
		return "unknown unit"
	}
	r, ok := p.own(robot)
	switch {
	case !ok:
		return "unknown robot"
	case s.Type != model.Rocket:
		return "only rockets load"
	case !s.StructureBuilt || !s.OnMap():
		return "rocket not ready"
	case !r.Type.IsRobot() || !r.OnMap():
		return "robot not on the map"
	case r.MovementHeat >= model.HeatLimit:
		return "movement heat too high"
	case len(s.Garrison) >= model.GarrisonCapacity:
		return "garrison full"
	case !model.IsAdjacent(s.Cell(), r.Cell()):
		return "robot not adjacent"
	}
	return ""
}

func (p *Player) CanLoad(structure, robot int) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	return p.checkLoad(structure, robot) == ""
}

func (p *Player) Load(structure, robot int) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if why := p.checkLoad(structure, robot); why != "" {
		return host.Reject("load", structure, "%s", why)
	}
	s, r := p.g.units[structure], p.g.units[robot]
	delete(p.g.occupant[p.planet], r.Cell())
	r.Location = p.g.garrisonLoc(s)
	r.MovementHeat += r.MovementCooldown
	s.Garrison = append(s.Garrison, r.ID)
	return nil
}

func (p *Player) checkUnload(structure int, d model.Direction) string {
	s, ok := p.own(structure)
	switch {
	case !ok:
		return "unknown unit"
	case !s.Type.IsStructure() || !s.StructureBuilt || !s.OnMap():
		return "structure not ready"
	case len(s.Garrison) == 0:
		return "garrison empty"
	case d == model.Center || !p.g.occupiable(p.planet, s.Cell().Add(d)):
		return "destination blocked"
	}
	if r := p.g.units[s.Garrison[0]]; r.MovementHeat >= model.HeatLimit {
		return "movement heat too high"
	}
	return ""
}

func (p *Player) CanUnload(structure int, d model.Direction) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	return p.checkUnload(structure, d) == ""
}

func (p *Player) Unload(structure int, d model.Direction) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if why := p.checkUnload(structure, d); why != "" {
		return host.Reject("unload", structure, "%s", why)
	}
	s := p.g.units[structure]
	r := p.g.units[s.Garrison[0]]
	s.Garrison = s.Garrison[1:]
	r.Location = model.MapLocation(p.planet, s.Cell().Add(d))
	p.g.occupant[p.planet][r.Cell()] = r.ID
	r.MovementHeat += r.MovementCooldown
	return nil
}

func (p *Player) checkLaunch(rocket int, dest model.Cell) string {
	r, ok := p.own(rocket)
	switch {
	case !ok:
		return "unknown unit"
	case r.Type != model.Rocket:
		return "not a rocket"
	case !r.StructureBuilt || !r.OnMap():
		return "rocket not ready"
	case p.g.launched[rocket]:
		return "rocket already flown"
	case !p.g.maps[p.planet.Other()].IsPassable(dest):
		return "landing site impassable"
	}
	return ""
}

func (p *Player) CanLaunch(rocket int, dest model.Cell) bool {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	return p.checkLaunch(rocket, dest) == ""
}

func (p *Player) Launch(rocket int, dest model.Cell) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if why := p.checkLaunch(rocket, dest); why != "" {
		return host.Reject("launch", rocket, "%s", why)
	}
	r := p.g.units[rocket]
	delete(p.g.occupant[p.planet], r.Cell())
	r.Location = model.Location{Kind: model.InSpace}
	for _, id := range r.Garrison {
		p.g.units[id].Location = model.Location{Kind: model.InSpace}
	}
	p.g.launched[rocket] = true
	p.g.flights = append(p.g.flights, flight{
		rocket: rocket,
		dest:   dest,
		planet: p.planet.Other(),
		lands:  p.g.round + p.g.opts.FlightRounds,
	})
	return nil
}
