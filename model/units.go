package model

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// UnitType identifies one of the seven unit kinds.
type UnitType string

const (
	Worker  UnitType = "worker"
	Knight  UnitType = "knight"
	Ranger  UnitType = "ranger"
	Mage    UnitType = "mage"
	Healer  UnitType = "healer"
	Factory UnitType = "factory"
	Rocket  UnitType = "rocket"
)

// AllUnitTypes lists every unit type in a stable order.
var AllUnitTypes = []UnitType{Worker, Knight, Ranger, Mage, Healer, Factory, Rocket}

// IsStructure is true for factories and rockets.
func (t UnitType) IsStructure() bool {
	return t == Factory || t == Rocket
}

// IsRobot is true for every non-structure type.
func (t UnitType) IsRobot() bool {
	return !t.IsStructure()
}

// ParseUnitType matches a unit type name case-insensitively. On failure the
// error names the closest known type.
func ParseUnitType(name string) (UnitType, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	best, bestDist := UnitType(""), -1
	for _, t := range AllUnitTypes {
		if n == string(t) {
			return t, nil
		}
		d := levenshtein.ComputeDistance(n, string(t))
		if bestDist < 0 || d < bestDist {
			best, bestDist = t, d
		}
	}
	if bestDist >= 0 && bestDist <= 2 {
		return "", fmt.Errorf("unknown unit type %q (did you mean %q?)", name, best)
	}
	return "", fmt.Errorf("unknown unit type %q", name)
}

// Team is one of the two players.
type Team string

const (
	Red  Team = "red"
	Blue Team = "blue"
)

// Other returns the opposing team.
func (t Team) Other() Team {
	if t == Red {
		return Blue
	}
	return Red
}

// Planet is Earth (home) or Mars (away).
type Planet string

const (
	Earth Planet = "earth"
	Mars  Planet = "mars"
)

// Other returns the other planet.
func (p Planet) Other() Planet {
	if p == Earth {
		return Mars
	}
	return Earth
}

// UnitStats are the static per-type numbers the host uses.
type UnitStats struct {
	MaxHealth        int
	Damage           int // negative for healers
	AttackRange      int // squared
	MovementCooldown int
	AttackCooldown   int
	BuildHealth      int
	HarvestAmount    int
	FactoryCost      int // karbonite to produce from a factory
	BlueprintCost    int // karbonite to place as a blueprint
}

// HeatLimit is the heat below which a unit may move, attack or use an ability.
const HeatLimit = 10

// ReplicateCost is the karbonite a worker spends to replicate.
const ReplicateCost = 60

// GarrisonCapacity is the number of robots a factory or rocket can hold.
const GarrisonCapacity = 8

var stats = map[UnitType]UnitStats{
	Worker:  {MaxHealth: 100, MovementCooldown: 20, BuildHealth: 5, HarvestAmount: 3, FactoryCost: 50},
	Knight:  {MaxHealth: 250, Damage: 80, AttackRange: 2, MovementCooldown: 15, AttackCooldown: 20, FactoryCost: 40},
	Ranger:  {MaxHealth: 200, Damage: 40, AttackRange: 50, MovementCooldown: 20, AttackCooldown: 20, FactoryCost: 40},
	Mage:    {MaxHealth: 80, Damage: 60, AttackRange: 30, MovementCooldown: 20, AttackCooldown: 20, FactoryCost: 40},
	Healer:  {MaxHealth: 100, Damage: -10, AttackRange: 30, MovementCooldown: 25, AttackCooldown: 10, FactoryCost: 40},
	Factory: {MaxHealth: 300, BlueprintCost: 200},
	Rocket:  {MaxHealth: 200, BlueprintCost: 150},
}

// StatsFor returns the stats of t; unknown types get zero stats.
func StatsFor(t UnitType) UnitStats {
	return stats[t]
}

// LocationKind says where a unit currently is.
type LocationKind string

const (
	OnMap      LocationKind = "map"
	InGarrison LocationKind = "garrison"
	InSpace    LocationKind = "space"
)

// Location is a unit's position: on a planet cell, inside a structure, or in
// transit between planets.
type Location struct {
	Kind      LocationKind `json:"kind"`
	Planet    Planet       `json:"planet,omitempty"`
	Cell      Cell         `json:"cell"`
	Structure int          `json:"structure,omitempty"`
}

// MapLocation builds an on-map location.
func MapLocation(p Planet, c Cell) Location {
	return Location{Kind: OnMap, Planet: p, Cell: c}
}

// GarrisonLocation builds an in-garrison location.
func GarrisonLocation(structureID int) Location {
	return Location{Kind: InGarrison, Structure: structureID}
}

// Unit is a point-in-time snapshot of one unit. It goes stale as soon as any
// action touches the underlying unit and must be re-fetched before reuse.
type Unit struct {
	ID               int      `json:"id"`
	Type             UnitType `json:"type"`
	Team             Team     `json:"team"`
	Location         Location `json:"location"`
	Health           int      `json:"health"`
	MaxHealth        int      `json:"maxHealth"`
	MovementHeat     int      `json:"movementHeat"`
	AttackHeat       int      `json:"attackHeat"`
	AbilityHeat      int      `json:"abilityHeat"`
	MovementCooldown int      `json:"movementCooldown"`
	AttackRange      int      `json:"attackRange"`
	Damage           int      `json:"damage"`
	WorkerHasActed   bool     `json:"workerHasActed,omitempty"`
	BuildHealth      int      `json:"buildHealth,omitempty"`
	HarvestAmount    int      `json:"harvestAmount,omitempty"`
	StructureBuilt   bool     `json:"structureBuilt,omitempty"`
	Garrison         []int    `json:"garrison,omitempty"`
	FactoryProducing bool     `json:"factoryProducing,omitempty"`
}

func (u Unit) TypeName() string { return string(u.Type) }

// OnMap reports whether the unit stands on the open grid.
func (u Unit) OnMap() bool { return u.Location.Kind == OnMap }

// InGarrison reports whether the unit is loaded in a structure.
func (u Unit) InGarrison() bool { return u.Location.Kind == InGarrison }

// Cell returns the unit's grid cell; only meaningful when OnMap.
func (u Unit) Cell() Cell { return u.Location.Cell }

// DealsDamage is true for robots with a positive attack.
func (u Unit) DealsDamage() bool { return u.Type.IsRobot() && u.Damage > 0 }

// NewUnit fills a snapshot from the static stats of t.
func NewUnit(id int, t UnitType, team Team, loc Location) Unit {
	s := StatsFor(t)
	return Unit{
		ID:               id,
		Type:             t,
		Team:             team,
		Location:         loc,
		Health:           s.MaxHealth,
		MaxHealth:        s.MaxHealth,
		MovementCooldown: s.MovementCooldown,
		AttackRange:      s.AttackRange,
		Damage:           s.Damage,
		BuildHealth:      s.BuildHealth,
		HarvestAmount:    s.HarvestAmount,
		StructureBuilt:   t.IsRobot(),
	}
}
