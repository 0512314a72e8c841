package rules

import (
	"fmt"
	"strings"
)

// GoalName names one goal flag.
type GoalName string

const (
	BuildFactories GoalName = "build_factories"
	BuildWorkers   GoalName = "build_workers"
	BuildKnights   GoalName = "build_knights"
	BuildRangers   GoalName = "build_rangers"
	BuildMages     GoalName = "build_mages"
	BuildHealers   GoalName = "build_healers"
	BuildRockets   GoalName = "build_rockets"
	Attack         GoalName = "attack"
	GoToMars       GoalName = "go_to_mars"
)

var allGoals = []GoalName{
	BuildFactories, BuildWorkers, BuildKnights, BuildRangers, BuildMages,
	BuildHealers, BuildRockets, Attack, GoToMars,
}

// ParseGoal accepts a goal name in any case, with dashes or underscores.
func ParseGoal(s string) (GoalName, error) {
	n := GoalName(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, g := range allGoals {
		if g == n {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown goal %q", s)
}

// Goal is the set of things the bot wants to do this turn.
type Goal struct {
	BuildFactories bool
	BuildWorkers   bool
	BuildKnights   bool
	BuildRangers   bool
	BuildMages     bool
	BuildHealers   bool
	BuildRockets   bool
	Attack         bool
	GoToMars       bool
}

// Set raises one flag.
func (g *Goal) Set(n GoalName) {
	switch n {
	case BuildFactories:
		g.BuildFactories = true
	case BuildWorkers:
		g.BuildWorkers = true
	case BuildKnights:
		g.BuildKnights = true
	case BuildRangers:
		g.BuildRangers = true
	case BuildMages:
		g.BuildMages = true
	case BuildHealers:
		g.BuildHealers = true
	case BuildRockets:
		g.BuildRockets = true
	case Attack:
		g.Attack = true
	case GoToMars:
		g.GoToMars = true
	}
}

// Has reports whether a flag is raised.
func (g Goal) Has(n GoalName) bool {
	switch n {
	case BuildFactories:
		return g.BuildFactories
	case BuildWorkers:
		return g.BuildWorkers
	case BuildKnights:
		return g.BuildKnights
	case BuildRangers:
		return g.BuildRangers
	case BuildMages:
		return g.BuildMages
	case BuildHealers:
		return g.BuildHealers
	case BuildRockets:
		return g.BuildRockets
	case Attack:
		return g.Attack
	case GoToMars:
		return g.GoToMars
	}
	return false
}

// Names lists the raised flags.
func (g Goal) Names() []string {
	var out []string
	for _, n := range allGoals {
		if g.Has(n) {
			out = append(out, string(n))
		}
	}
	return out
}

func (g Goal) String() string { return strings.Join(g.Names(), ",") }
