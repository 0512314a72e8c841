package model

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const matchSchemaURL = "https://rangerbot.local/match.schema.json"

//go:embed match.schema.json
var matchSchemaSrc string

var (
	matchSchemaOnce sync.Once
	matchSchema     *jsonschema.Schema
	matchSchemaErr  error
)

func compiledMatchSchema() (*jsonschema.Schema, error) {
	matchSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(matchSchemaURL, bytes.NewReader([]byte(matchSchemaSrc))); err != nil {
			matchSchemaErr = err
			return
		}
		matchSchema, matchSchemaErr = c.Compile(matchSchemaURL)
	})
	return matchSchema, matchSchemaErr
}

// Match is a complete game setup: both planet maps, the starting units on
// Earth and the Mars strike schedule.
type Match struct {
	Earth   *PlanetMap
	Mars    *PlanetMap
	Strikes StrikeSchedule
}

// Map returns the map of planet p.
func (m *Match) Map(p Planet) *PlanetMap {
	if p == Mars {
		return m.Mars
	}
	return m.Earth
}

type matchFile struct {
	Earth   planetFile   `json:"earth"`
	Mars    planetFile   `json:"mars"`
	Units   []unitFile   `json:"units"`
	Strikes []strikeFile `json:"strikes"`
}

type planetFile struct {
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Rows      []string      `json:"rows"`
	Karbonite []depositFile `json:"karbonite"`
}

type depositFile struct {
	Row    int `json:"row"`
	Col    int `json:"col"`
	Amount int `json:"amount"`
}

type unitFile struct {
	Team string `json:"team"`
	Type string `json:"type"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
}

type strikeFile struct {
	Round  int `json:"round"`
	Row    int `json:"row"`
	Col    int `json:"col"`
	Amount int `json:"amount"`
}

// LoadMatch reads and validates a JSON match file.
func LoadMatch(path string) (*Match, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read match: %w", err)
	}
	return ParseMatch(raw)
}

// ParseMatch validates raw against the match schema and decodes it. Rows are
// listed bottom-up: rows[0] is row 0. '.' is passable, '#' is not.
func ParseMatch(raw []byte) (*Match, error) {
	schema, err := compiledMatchSchema()
	if err != nil {
		return nil, fmt.Errorf("compile match schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal match: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate match: %w", err)
	}

	var mf matchFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}

	earth, err := mf.Earth.toMap(Earth)
	if err != nil {
		return nil, err
	}
	mars, err := mf.Mars.toMap(Mars)
	if err != nil {
		return nil, err
	}

	for i, u := range mf.Units {
		c := Cell{Row: u.Row, Col: u.Col}
		if !earth.IsPassable(c) {
			return nil, fmt.Errorf("unit %d at %v is not on passable earth terrain", i, c)
		}
		earth.InitialUnits = append(earth.InitialUnits,
			NewUnit(i+1, UnitType(u.Type), Team(u.Team), MapLocation(Earth, c)))
	}

	strikes := make(StrikeSchedule, len(mf.Strikes))
	for _, s := range mf.Strikes {
		c := Cell{Row: s.Row, Col: s.Col}
		if !mars.InBounds(c) {
			return nil, fmt.Errorf("strike on round %d at %v is off the mars map", s.Round, c)
		}
		strikes[s.Round] = Strike{Cell: c, Amount: s.Amount}
	}

	return &Match{Earth: earth, Mars: mars, Strikes: strikes}, nil
}

func (pf planetFile) toMap(p Planet) (*PlanetMap, error) {
	if len(pf.Rows) != pf.Height {
		return nil, fmt.Errorf("%s: %d rows, want %d", p, len(pf.Rows), pf.Height)
	}
	m := NewPlanetMap(p, pf.Width, pf.Height)
	for r, line := range pf.Rows {
		if len(line) != pf.Width {
			return nil, fmt.Errorf("%s: row %d has %d cells, want %d", p, r, len(line), pf.Width)
		}
		for c := 0; c < len(line); c++ {
			m.SetPassable(Cell{Row: r, Col: c}, line[c] == '.')
		}
	}
	for _, d := range pf.Karbonite {
		c := Cell{Row: d.Row, Col: d.Col}
		if !m.InBounds(c) {
			return nil, fmt.Errorf("%s: deposit at %v is off the map", p, c)
		}
		m.SetKarbonite(c, d.Amount)
	}
	return m, nil
}
