// Package construction assigns workers to structures under construction and
// drives the build actions.
package construction

import (
	"math"

	"github.com/nstehr/rangerbot/pathing"
)

// Params are the constants of the completion-time model.
type Params struct {
	// UnstaffedPenalty is added to the finish estimate of a site nobody is
	// working on.
	UnstaffedPenalty int
	// MaxTravel is the longest trip, in turns, a worker makes to help.
	MaxTravel int
	// TravelFactor inflates the travel estimate to account for detours.
	TravelFactor float64
	// MinImprovement is the number of turns a reassignment has to save,
	// exclusive.
	MinImprovement int
}

func DefaultParams() Params {
	return Params{
		UnstaffedPenalty: 30,
		MaxTravel:        30,
		TravelFactor:     1.1,
		MinImprovement:   2,
	}
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Estimate compares a site's finish time with its current workers (f1)
// against the finish time if one more worker arrives in t turns (f2).
// h is the missing health, w the number of workers on site and b the build
// health each adds per turn. An unstaffed site is treated as staffed by one
// worker plus UnstaffedPenalty turns.
func (p Params) Estimate(h, w, b, t int) (f1, f2, improvement int) {
	if b <= 0 {
		return 0, 0, 0
	}
	if w == 0 {
		w = 1
		f1 = p.UnstaffedPenalty
	}
	f1 += ceilDiv(h, w*b)
	f2 = t + ceilDiv(h-w*b*t, (w+1)*b)
	return f1, f2, f1 - f2
}

// TravelTurns estimates how long a worker needs to cover dist hops. ok is
// false when the site is unreachable.
func (p Params) TravelTurns(dist pathing.DistType, inf pathing.DistType, movementCooldown, movementHeat int) (turns int, ok bool) {
	if dist >= inf {
		return 0, false
	}
	est := p.TravelFactor * (float64(dist)*float64(movementCooldown)/10 + float64(movementHeat)/10)
	return int(math.Round(est)), true
}
