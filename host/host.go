// Package host defines the boundary between the bot and the game engine.
// The engine is authoritative: every action is gated by its paired Can*
// query and any snapshot read before an action is stale afterwards.
package host

import (
	"errors"
	"fmt"

	"github.com/nstehr/rangerbot/model"
)

// ErrUnknownUnit is returned for actions naming a unit the engine does not
// know or the caller cannot see.
var ErrUnknownUnit = errors.New("unknown unit")

// ErrGameOver is returned by NextTurn once the match has ended.
var ErrGameOver = errors.New("game over")

// RejectedError is an action the engine refused.
type RejectedError struct {
	Action string
	Unit   int
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s by unit %d rejected: %s", e.Action, e.Unit, e.Reason)
}

// Reject builds a RejectedError.
func Reject(action string, unit int, format string, args ...any) error {
	return &RejectedError{Action: action, Unit: unit, Reason: fmt.Sprintf(format, args...)}
}

// IsRejected reports whether err is an engine rejection.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// State is the read side of the engine for one player.
type State interface {
	Round() int
	Planet() model.Planet
	Team() model.Team
	TimeLeftMs() int
	Karbonite() int

	// MyUnits returns every friendly unit on this planet, including units
	// inside garrisons.
	MyUnits() []model.Unit
	// Units returns every unit visible on this planet.
	Units() []model.Unit
	Unit(id int) (model.Unit, bool)
	HasUnit(id int) bool
	SenseUnitAt(c model.Cell) (model.Unit, bool)
	KarboniteAt(c model.Cell) int
	IsOccupiable(c model.Cell) bool

	StartingMap(p model.Planet) *model.PlanetMap
	StrikeSchedule() model.StrikeSchedule
	// TeamArray returns the shared integer array last written by this team
	// on planet p.
	TeamArray(p model.Planet) []int
}

// Actions pairs each engine action with its legality check.
type Actions interface {
	CanMove(unit int, d model.Direction) bool
	Move(unit int, d model.Direction) error

	CanAttack(unit, target int) bool
	Attack(unit, target int) error

	CanBlueprint(worker int, t model.UnitType, d model.Direction) bool
	Blueprint(worker int, t model.UnitType, d model.Direction) error

	CanBuild(worker, site int) bool
	Build(worker, site int) error

	CanHarvest(worker int, d model.Direction) bool
	Harvest(worker int, d model.Direction) error

	CanReplicate(worker int, d model.Direction) bool
	Replicate(worker int, d model.Direction) error

	CanProduce(factory int, t model.UnitType) bool
	Produce(factory int, t model.UnitType) error

	CanLoad(structure, robot int) bool
	Load(structure, robot int) error

	CanUnload(structure int, d model.Direction) bool
	Unload(structure int, d model.Direction) error

	CanLaunch(rocket int, dest model.Cell) bool
	Launch(rocket int, dest model.Cell) error

	WriteTeamArray(index, value int) error
	QueueResearch(t model.UnitType) bool
}

// Controller is everything a player can do through the engine.
type Controller interface {
	State
	Actions
	// NextTurn ends the player's turn and blocks until the next one.
	NextTurn() error
}

// TeamArrayLen is the number of slots in a team array.
const TeamArrayLen = 100
