package rules

import "fmt"

// CompileDoctrine generates the goal rule set for d. Conditions are built
// with fmt.Sprintf from validated integers so they always compile.
func CompileDoctrine(d Doctrine) []*Rule {
	d.Validate()
	var rules []*Rule

	rules = append(rules, &Rule{
		Name:         "attack",
		Priority:     100,
		Category:     "combat",
		Exclusive:    true,
		ConditionSrc: `true`,
		Action:       Raise(Attack),
	})

	rules = append(rules, &Rule{
		Name:         "build-workers",
		Priority:     900,
		Category:     "workers",
		Exclusive:    true,
		ConditionSrc: `Count("worker") < WorkerTarget()`,
		Action:       Raise(BuildWorkers),
	})

	rules = append(rules, &Rule{
		Name:         "build-factories",
		Priority:     800,
		Category:     "factories",
		Exclusive:    true,
		ConditionSrc: `Count("factory") < 1 || Karbonite() >= Cost("factory")`,
		Action:       Raise(BuildFactories),
	})

	// --- Army (one choice per turn) ---

	rules = append(rules, &Rule{
		Name:         "build-mages",
		Priority:     700,
		Category:     "army",
		Exclusive:    true,
		ConditionSrc: fmt.Sprintf(`Count("factory") >= 1 && Count("worker") * %d > Count("ranger") && Count("ranger") > %d * Count("mage")`, d.RangersPerWorker, d.RangersPerMage),
		Action:       Raise(BuildMages),
	})

	if d.RangersPerKnight > 0 {
		rules = append(rules, &Rule{
			Name:         "build-knights",
			Priority:     695,
			Category:     "army",
			Exclusive:    true,
			ConditionSrc: fmt.Sprintf(`Count("factory") >= 1 && Count("worker") * %d > Count("ranger") && Count("ranger") > %d * Count("knight")`, d.RangersPerWorker, d.RangersPerKnight),
			Action:       Raise(BuildKnights),
		})
	}

	if d.RangersPerHealer > 0 {
		rules = append(rules, &Rule{
			Name:         "build-healers",
			Priority:     694,
			Category:     "army",
			Exclusive:    true,
			ConditionSrc: fmt.Sprintf(`Count("factory") >= 1 && Count("worker") * %d > Count("ranger") && Count("ranger") > %d * Count("healer")`, d.RangersPerWorker, d.RangersPerHealer),
			Action:       Raise(BuildHealers),
		})
	}

	rules = append(rules, &Rule{
		Name:         "build-rangers",
		Priority:     690,
		Category:     "army",
		Exclusive:    true,
		ConditionSrc: fmt.Sprintf(`Count("factory") >= 1 && Count("worker") * %d > Count("ranger")`, d.RangersPerWorker),
		Action:       Raise(BuildRangers),
	})

	// Enough rangers for now; grow the economy instead.
	rules = append(rules, &Rule{
		Name:         "workers-over-army",
		Priority:     680,
		Category:     "army",
		Exclusive:    true,
		ConditionSrc: `Count("factory") >= 1`,
		Action:       Raise(BuildWorkers),
	})

	// --- Mars ---

	if d.RocketRound > 0 {
		rules = append(rules, &Rule{
			Name:         "build-rockets",
			Priority:     600,
			Category:     "rockets",
			Exclusive:    true,
			ConditionSrc: fmt.Sprintf(`Round() >= RocketRound() && HasLandingSites() && Count("rocket") * %d < %d + Count("ranger")`, d.RangersPerRocket, d.RangersPerRocket),
			Action:       Raise(BuildRockets),
		})

		rules = append(rules, &Rule{
			Name:         "go-to-mars",
			Priority:     590,
			Category:     "mars",
			Exclusive:    true,
			ConditionSrc: `Round() >= RocketRound() && HasLandingSites() && Count("rocket") > 0`,
			Action:       Raise(GoToMars),
		})
	}

	return rules
}

// RuleSpec is a rule written in the config file.
type RuleSpec struct {
	Name      string   `yaml:"name"`
	Priority  int      `yaml:"priority"`
	Category  string   `yaml:"category"`
	Exclusive bool     `yaml:"exclusive"`
	When      string   `yaml:"when"`
	Raise     []string `yaml:"raise"`
}

// FromSpecs converts config rules. Conditions are compiled later by the
// engine; goal names are checked here.
func FromSpecs(specs []RuleSpec) ([]*Rule, error) {
	out := make([]*Rule, 0, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("rule with condition %q has no name", s.When)
		}
		if len(s.Raise) == 0 {
			return nil, fmt.Errorf("rule %q raises no goals", s.Name)
		}
		goals := make([]GoalName, 0, len(s.Raise))
		for _, r := range s.Raise {
			g, err := ParseGoal(r)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", s.Name, err)
			}
			goals = append(goals, g)
		}
		cat := s.Category
		if cat == "" {
			cat = s.Name
		}
		out = append(out, &Rule{
			Name:         s.Name,
			Priority:     s.Priority,
			Category:     cat,
			Exclusive:    s.Exclusive,
			ConditionSrc: s.When,
			Action:       Raise(goals...),
		})
	}
	return out, nil
}
