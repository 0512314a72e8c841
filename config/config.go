// Package config loads the bot's YAML tuning file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nstehr/rangerbot/combat"
	"github.com/nstehr/rangerbot/construction"
	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/resources"
	"github.com/nstehr/rangerbot/rules"
	"github.com/nstehr/rangerbot/sim"
)

type Config struct {
	Bot          BotConfig          `yaml:"bot"`
	Construction ConstructionConfig `yaml:"construction"`
	Resources    ResourcesConfig    `yaml:"resources"`
	Combat       CombatConfig       `yaml:"combat"`
	Pathing      PathingConfig      `yaml:"pathing"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Goals        GoalsConfig        `yaml:"goals"`
	Sim          SimConfig          `yaml:"sim"`
}

type BotConfig struct {
	LogLevel string `yaml:"log_level"`
	Seed     uint64 `yaml:"seed"` // 0 picks a random seed
	// LowTimeMs: below this much time left, skip advancing and gathering.
	LowTimeMs        int      `yaml:"low_time_ms"`
	LandingReadRound int      `yaml:"landing_read_round"`
	AdvanceCycle     int      `yaml:"advance_cycle"` // rounds per enemy start location
	PatrolEvery      int      `yaml:"patrol_every"`  // rounds per patrol waypoint
	Research         []string `yaml:"research"`
}

type ConstructionConfig struct {
	UnstaffedPenalty int     `yaml:"unstaffed_penalty"`
	MaxTravel        int     `yaml:"max_travel"`
	TravelFactor     float64 `yaml:"travel_factor"`
	MinImprovement   int     `yaml:"min_improvement"`
}

type ResourcesConfig struct {
	BlockSize int `yaml:"block_size"`
}

type CombatConfig struct {
	StructureThreat int            `yaml:"structure_threat"`
	FleeRange       map[string]int `yaml:"flee_range"`
}

type PathingConfig struct {
	CacheDir string `yaml:"cache_dir"`
}

type TelemetryConfig struct {
	TurnLog string `yaml:"turn_log"` // zstd JSONL, empty disables
	Index   string `yaml:"index"`    // SQLite, empty disables
}

type GoalsConfig struct {
	Doctrine rules.Doctrine   `yaml:"doctrine"`
	Rules    []rules.RuleSpec `yaml:"rules"`
	Phases   []Phase          `yaml:"phases"`
}

// Phase switches to another doctrine from a given round on.
type Phase struct {
	FromRound int            `yaml:"from_round"`
	Doctrine  rules.Doctrine `yaml:"doctrine"`
}

// UnmarshalYAML starts a phase doctrine from the defaults so a phase only
// names the fields it changes.
func (p *Phase) UnmarshalYAML(n *yaml.Node) error {
	type raw Phase
	r := raw{Doctrine: rules.DefaultDoctrine()}
	if err := n.Decode(&r); err != nil {
		return err
	}
	*p = Phase(r)
	return nil
}

type SimConfig struct {
	StartingKarbonite int `yaml:"starting_karbonite"`
	Income            int `yaml:"income"`
	ProductionRounds  int `yaml:"production_rounds"`
	FlightRounds      int `yaml:"flight_rounds"`
	MaxRounds         int `yaml:"max_rounds"`
}

// Default returns the tuning the bot ships with.
func Default() Config {
	cp := construction.DefaultParams()
	cb := combat.DefaultParams()
	so := sim.DefaultOptions()
	flee := make(map[string]int, len(cb.FleeRange))
	for t, r := range cb.FleeRange {
		flee[string(t)] = r
	}
	return Config{
		Bot: BotConfig{
			LogLevel:         "info",
			LowTimeMs:        1000,
			LandingReadRound: 55,
			AdvanceCycle:     100,
			PatrolEvery:      4,
			Research: []string{
				"worker", "ranger", "mage", "rocket", "mage", "mage",
				"rocket", "rocket", "mage", "worker", "worker", "worker",
			},
		},
		Construction: ConstructionConfig{
			UnstaffedPenalty: cp.UnstaffedPenalty,
			MaxTravel:        cp.MaxTravel,
			TravelFactor:     cp.TravelFactor,
			MinImprovement:   cp.MinImprovement,
		},
		Resources: ResourcesConfig{BlockSize: resources.DefaultBlockSize},
		Combat:    CombatConfig{StructureThreat: cb.StructureThreat, FleeRange: flee},
		Goals:     GoalsConfig{Doctrine: rules.DefaultDoctrine()},
		Sim: SimConfig{
			StartingKarbonite: so.StartingKarbonite,
			Income:            so.Income,
			ProductionRounds:  so.ProductionRounds,
			FlightRounds:      so.FlightRounds,
			MaxRounds:         so.MaxRounds,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLevel(c.Bot.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Bot.LowTimeMs < 0 {
		errs = append(errs, fmt.Errorf("bot.low_time_ms must be >= 0, got %d", c.Bot.LowTimeMs))
	}
	if c.Bot.AdvanceCycle < 1 || c.Bot.PatrolEvery < 1 {
		errs = append(errs, errors.New("bot.advance_cycle and bot.patrol_every must be >= 1"))
	}
	if _, err := c.ResearchQueue(); err != nil {
		errs = append(errs, err)
	}
	if c.Resources.BlockSize < 1 {
		errs = append(errs, fmt.Errorf("resources.block_size must be >= 1, got %d", c.Resources.BlockSize))
	}
	if c.Construction.TravelFactor <= 0 {
		errs = append(errs, fmt.Errorf("construction.travel_factor must be > 0, got %g", c.Construction.TravelFactor))
	}
	if c.Construction.MaxTravel < 0 {
		errs = append(errs, fmt.Errorf("construction.max_travel must be >= 0, got %d", c.Construction.MaxTravel))
	}
	for name := range c.Combat.FleeRange {
		if _, err := model.ParseUnitType(name); err != nil {
			errs = append(errs, fmt.Errorf("combat.flee_range: %w", err))
		}
	}
	if _, err := rules.FromSpecs(c.Goals.Rules); err != nil {
		errs = append(errs, fmt.Errorf("goals.rules: %w", err))
	}
	if !sort.SliceIsSorted(c.Goals.Phases, func(i, j int) bool {
		return c.Goals.Phases[i].FromRound < c.Goals.Phases[j].FromRound
	}) {
		errs = append(errs, errors.New("goals.phases must be ordered by from_round"))
	}
	return errors.Join(errs...)
}

// ResearchQueue parses bot.research.
func (c *Config) ResearchQueue() ([]model.UnitType, error) {
	out := make([]model.UnitType, 0, len(c.Bot.Research))
	for _, name := range c.Bot.Research {
		t, err := model.ParseUnitType(name)
		if err != nil {
			return nil, fmt.Errorf("bot.research: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Config) ConstructionParams() construction.Params {
	return construction.Params{
		UnstaffedPenalty: c.Construction.UnstaffedPenalty,
		MaxTravel:        c.Construction.MaxTravel,
		TravelFactor:     c.Construction.TravelFactor,
		MinImprovement:   c.Construction.MinImprovement,
	}
}

func (c *Config) CombatParams() combat.Params {
	p := combat.Params{StructureThreat: c.Combat.StructureThreat, FleeRange: make(map[model.UnitType]int)}
	for name, r := range c.Combat.FleeRange {
		if t, err := model.ParseUnitType(name); err == nil {
			p.FleeRange[t] = r
		}
	}
	return p
}

func (c *Config) SimOptions() sim.Options {
	o := sim.DefaultOptions()
	o.StartingKarbonite = c.Sim.StartingKarbonite
	o.Income = c.Sim.Income
	o.ProductionRounds = c.Sim.ProductionRounds
	o.FlightRounds = c.Sim.FlightRounds
	o.MaxRounds = c.Sim.MaxRounds
	return o
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("bot.log_level: %w", err)
	}
	return l, nil
}
