package rules

import (
	"testing"

	"github.com/expr-lang/expr"
)

func TestValidateClamps(t *testing.T) {
	d := Doctrine{MinWorkers: -3, MaxWorkers: 0, RangersPerWorker: 0, RangersPerRocket: -1, RocketRound: -5}
	d.Validate()
	if d.MinWorkers != 1 || d.MaxWorkers != 1 {
		t.Errorf("workers = [%d, %d], want [1, 1]", d.MinWorkers, d.MaxWorkers)
	}
	if d.RangersPerWorker != 1 || d.RangersPerRocket != 1 || d.RocketRound != 0 {
		t.Errorf("clamped doctrine = %+v", d)
	}
}

func TestCompileDoctrineVariants(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Doctrine)
		present []string
		absent  []string
	}{
		{"default", func(*Doctrine) {}, []string{"build-rangers", "build-rockets"}, []string{"build-knights", "build-healers"}},
		{"no rockets", func(d *Doctrine) { d.RocketRound = 0 }, nil, []string{"build-rockets", "go-to-mars"}},
		{"mixed army", func(d *Doctrine) { d.RangersPerKnight = 3; d.RangersPerHealer = 6 }, []string{"build-knights", "build-healers"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := DefaultDoctrine()
			tc.mutate(&d)
			rules := CompileDoctrine(d)
			names := map[string]bool{}
			for _, r := range rules {
				names[r.Name] = true
				if _, err := expr.Compile(r.ConditionSrc, expr.Env(GoalEnv{}), expr.AsBool()); err != nil {
					t.Errorf("rule %q failed to compile: %v\ncondition: %s", r.Name, err, r.ConditionSrc)
				}
			}
			for _, n := range tc.present {
				if !names[n] {
					t.Errorf("rule %q missing", n)
				}
			}
			for _, n := range tc.absent {
				if names[n] {
					t.Errorf("rule %q should not be generated", n)
				}
			}
		})
	}
}

func TestParseGoal(t *testing.T) {
	for _, s := range []string{"attack", "GO-TO-MARS", " build_rangers "} {
		if _, err := ParseGoal(s); err != nil {
			t.Errorf("ParseGoal(%q): %v", s, err)
		}
	}
	if _, err := ParseGoal("retreat"); err == nil {
		t.Error("ParseGoal(retreat) should fail")
	}
}
