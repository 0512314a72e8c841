package ipc

import "github.com/nstehr/rangerbot/model"

// Call methods. Each maps to one host.Controller method.
const (
	MethodRound          = "round"
	MethodTimeLeftMs     = "time_left_ms"
	MethodKarbonite      = "karbonite"
	MethodMyUnits        = "my_units"
	MethodUnits          = "units"
	MethodUnit           = "unit"
	MethodHasUnit        = "has_unit"
	MethodSenseUnitAt    = "sense_unit_at"
	MethodKarboniteAt    = "karbonite_at"
	MethodIsOccupiable   = "is_occupiable"
	MethodStartingMap    = "starting_map"
	MethodStrikeSchedule = "strike_schedule"
	MethodTeamArray      = "team_array"

	MethodCanMove      = "can_move"
	MethodMove         = "move"
	MethodCanAttack    = "can_attack"
	MethodAttack       = "attack"
	MethodCanBlueprint = "can_blueprint"
	MethodBlueprint    = "blueprint"
	MethodCanBuild     = "can_build"
	MethodBuild        = "build"
	MethodCanHarvest   = "can_harvest"
	MethodHarvest      = "harvest"
	MethodCanReplicate = "can_replicate"
	MethodReplicate    = "replicate"
	MethodCanProduce   = "can_produce"
	MethodProduce      = "produce"
	MethodCanLoad      = "can_load"
	MethodLoad         = "load"
	MethodCanUnload    = "can_unload"
	MethodUnload       = "unload"
	MethodCanLaunch    = "can_launch"
	MethodLaunch       = "launch"

	MethodWriteTeamArray = "write_team_array"
	MethodQueueResearch  = "queue_research"
	MethodNextTurn       = "next_turn"
)

type UnitArgs struct {
	Unit int `json:"unit"`
}

type CellArgs struct {
	Cell model.Cell `json:"cell"`
}

type PlanetArgs struct {
	Planet model.Planet `json:"planet"`
}

// UnitDirArgs serves move, harvest, replicate and unload.
type UnitDirArgs struct {
	Unit int             `json:"unit"`
	Dir  model.Direction `json:"dir"`
}

// UnitPairArgs serves attack, build and load.
type UnitPairArgs struct {
	Unit  int `json:"unit"`
	Other int `json:"other"`
}

// UnitTypeArgs serves blueprint and produce; Dir is unused by produce.
type UnitTypeArgs struct {
	Unit int             `json:"unit"`
	Type model.UnitType  `json:"type"`
	Dir  model.Direction `json:"dir,omitempty"`
}

type LaunchArgs struct {
	Rocket int        `json:"rocket"`
	Dest   model.Cell `json:"dest"`
}

type TeamArrayArgs struct {
	Index int `json:"index"`
	Value int `json:"value"`
}

type ResearchArgs struct {
	Type model.UnitType `json:"type"`
}
