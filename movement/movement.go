// Package movement turns a target cell into a single legal step for a unit.
package movement

import (
	"log/slog"
	"math/rand/v2"

	"github.com/nstehr/rangerbot/host"
	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/pathing"
)

// Directions is an ordering of the 8 compass directions.
type Directions [8]model.Direction

// Shuffle returns a random permutation of the compass. One permutation is
// drawn per turn and used by every movement decision in that turn.
func Shuffle(rng *rand.Rand) Directions {
	d := Directions(model.Compass)
	rng.Shuffle(len(d), func(i, j int) { d[i], d[j] = d[j], d[i] })
	return d
}

// rotations is the order in which naive movement tries to bend around
// obstacles.
var rotations = [...]int{0, 1, -1, 2, -2, 3, -3}

// Stepper moves units one cell per call.
type Stepper struct {
	Host      host.Controller
	Finder    *pathing.Finder
	Dirs      Directions
	HeatLimit int
}

// New builds a stepper with the default heat limit.
func New(h host.Controller, f *pathing.Finder, dirs Directions) *Stepper {
	return &Stepper{Host: h, Finder: f, Dirs: dirs, HeatLimit: model.HeatLimit}
}

func (s *Stepper) ready(u model.Unit) bool {
	return u.OnMap() && u.MovementHeat < s.HeatLimit
}

func (s *Stepper) move(u model.Unit, d model.Direction) bool {
	if err := s.Host.Move(u.ID, d); err != nil {
		slog.Debug("move rejected", "unit", u.ID, "direction", d, "error", err)
		return false
	}
	return true
}

// PathTo takes the legal step that minimizes the precomputed hop distance
// to target. Ties keep the earlier direction in Dirs and steps onto cells
// that cannot reach target are never taken.
func (s *Stepper) PathTo(u model.Unit, target model.Cell) bool {
	if !s.ready(u) || s.Finder == nil || !s.Finder.Ready() || !s.Finder.InBounds(target) {
		return false
	}
	best := s.Finder.Infinity()
	bestDir := model.Center
	for _, d := range s.Dirs {
		next := u.Cell().Add(d)
		if !s.Finder.InBounds(next) {
			continue
		}
		dist := s.Finder.Dist(next, target)
		if dist >= best || !s.Host.CanMove(u.ID, d) {
			continue
		}
		best, bestDir = dist, d
	}
	if bestDir == model.Center {
		return false
	}
	return s.move(u, bestDir)
}

// PathNaively heads along the bearing to target, bending up to 135° around
// obstacles.
func (s *Stepper) PathNaively(u model.Unit, target model.Cell) bool {
	if !u.OnMap() {
		return false
	}
	d := model.DirectionTo(u.Cell(), target)
	if d == model.Center {
		return false
	}
	return s.PathInDirection(u, d)
}

// PathInDirection tries d, then its neighbours alternating clockwise and
// counter-clockwise.
func (s *Stepper) PathInDirection(u model.Unit, d model.Direction) bool {
	if !s.ready(u) || d == model.Center {
		return false
	}
	for _, r := range rotations {
		dd := d.Rotate(r)
		if s.Host.CanMove(u.ID, dd) {
			return s.move(u, dd)
		}
	}
	return false
}

// MoveToward uses the distance table when it exists and the target is not
// adjacent, and naive movement otherwise.
func (s *Stepper) MoveToward(u model.Unit, target model.Cell) bool {
	if s.Finder != nil && s.Finder.Ready() && !model.IsAdjacent(u.Cell(), target) {
		return s.PathTo(u, target)
	}
	return s.PathNaively(u, target)
}

// StepAnywhere takes the first legal direction in Dirs.
func (s *Stepper) StepAnywhere(u model.Unit) bool {
	if !s.ready(u) {
		return false
	}
	for _, d := range s.Dirs {
		if s.Host.CanMove(u.ID, d) {
			return s.move(u, d)
		}
	}
	return false
}
