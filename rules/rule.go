package rules

import (
	"github.com/expr-lang/expr/vm"
)

// ActionFunc raises goals when a rule's condition is true.
type ActionFunc func(env GoalEnv, g *Goal)

// Rule is a condition → action pair. The engine evaluates rules by priority
// and uses Category + Exclusive so that mutually exclusive production
// choices never fire together.
type Rule struct {
	Name         string      // human-readable identifier
	Priority     int         // higher = evaluated first
	Category     string      // grouping for exclusive semantics
	Exclusive    bool        // if true, blocks lower-priority rules in same category
	ConditionSrc string      // expr source
	program      *vm.Program // compiled bytecode
	Action       ActionFunc
}

// Raise returns an action that sets the named goals.
func Raise(goals ...GoalName) ActionFunc {
	return func(_ GoalEnv, g *Goal) {
		for _, n := range goals {
			g.Set(n)
		}
	}
}
