package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine runs compiled goal rules once per turn.
// Rules fire in priority order; exclusive rules block lower-priority rules
// in the same category, so one army choice is made per turn.
type Engine struct {
	mu       sync.RWMutex
	rules    []*Rule
	doctrine Doctrine

	lastIdle int
}

// NewEngine compiles all rule conditions into expr bytecode and sorts by priority.
func NewEngine(d Doctrine, rules []*Rule) (*Engine, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	d.Validate()
	return &Engine{rules: compiled, doctrine: d, lastIdle: -1000}, nil
}

// ForDoctrine builds an engine from CompileDoctrine(d) plus any extra rules.
func ForDoctrine(d Doctrine, extra ...*Rule) (*Engine, error) {
	return NewEngine(d, append(CompileDoctrine(d), extra...))
}

// Evaluate returns the goals raised by the current rule set. env.Doctrine is
// filled in from the engine.
func (e *Engine) Evaluate(env GoalEnv) Goal {
	e.mu.RLock()
	rules := e.rules
	env.Doctrine = e.doctrine
	e.mu.RUnlock()

	var g Goal
	fired := make(map[string]bool) // category → exclusive rule already fired
	anyFired := false
	for _, r := range rules {
		if fired[r.Category] {
			continue
		}

		result, err := vm.Run(r.program, env)
		if err != nil {
			slog.Warn("rule condition error", "rule", r.Name, "error", err)
			continue
		}

		match, ok := result.(bool)
		if !ok || !match {
			continue
		}

		anyFired = true
		slog.Debug("rule fired", "rule", r.Name, "priority", r.Priority, "category", r.Category)
		r.Action(env, &g)

		if r.Exclusive {
			fired[r.Category] = true
		}
	}

	if !anyFired {
		e.logIdleDiagnostics(env)
	}
	return g
}

// Swap atomically replaces the doctrine and rule set. Compiles first; if
// compilation fails the old rules remain active.
func (e *Engine) Swap(d Doctrine, newRules []*Rule) error {
	compiled, err := compileRules(newRules)
	if err != nil {
		return err
	}
	d.Validate()
	names := make([]string, len(compiled))
	for i, r := range compiled {
		names[i] = r.Name
	}
	e.mu.Lock()
	e.rules = compiled
	e.doctrine = d
	e.mu.Unlock()
	slog.Info("rule set swapped", "doctrine", d.Name, "count", len(compiled), "rules", names)
	return nil
}

// Doctrine returns the active doctrine.
func (e *Engine) Doctrine() Doctrine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doctrine
}

// RuleNames lists the active rules in evaluation order.
func (e *Engine) RuleNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// logIdleDiagnostics helps debug "why isn't the bot doing anything?".
// Throttled to once every 100 rounds.
func (e *Engine) logIdleDiagnostics(env GoalEnv) {
	if env.Turn-e.lastIdle < 100 {
		return
	}
	e.lastIdle = env.Turn
	slog.Warn("idle diagnostics",
		"round", env.Turn,
		"karbonite", env.Bank,
		"mapKarbonite", env.MapKarbonite,
		"workers", env.Count("worker"),
		"factories", env.Count("factory"),
	)
}

func compileRules(rules []*Rule) ([]*Rule, error) {
	for _, r := range rules {
		if r.Action == nil {
			return nil, fmt.Errorf("rule %q has no action", r.Name)
		}
		prog, err := expr.Compile(r.ConditionSrc, expr.Env(GoalEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Name, err)
		}
		r.program = prog
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	return rules, nil
}
