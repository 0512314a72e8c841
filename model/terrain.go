package model

// PlanetMap is the static description of one planet. Passability is fixed
// for the whole game.
type PlanetMap struct {
	Planet       Planet
	Width        int    // columns
	Height       int    // rows
	Passable     []bool // row-major: Passable[row*Width + col]
	Karbonite    []int  // initial karbonite, row-major
	InitialUnits []Unit
}

// NewPlanetMap returns an all-passable, karbonite-free map.
func NewPlanetMap(p Planet, width, height int) *PlanetMap {
	m := &PlanetMap{
		Planet:    p,
		Width:     width,
		Height:    height,
		Passable:  make([]bool, width*height),
		Karbonite: make([]int, width*height),
	}
	for i := range m.Passable {
		m.Passable[i] = true
	}
	return m
}

// InBounds reports whether c lies on the map.
func (m *PlanetMap) InBounds(c Cell) bool {
	return c.Row >= 0 && c.Col >= 0 && c.Row < m.Height && c.Col < m.Width
}

// IsPassable returns false for out-of-bounds cells.
func (m *PlanetMap) IsPassable(c Cell) bool {
	if !m.InBounds(c) {
		return false
	}
	return m.Passable[c.Row*m.Width+c.Col]
}

// InitialKarbonite returns 0 for out-of-bounds cells.
func (m *PlanetMap) InitialKarbonite(c Cell) int {
	if !m.InBounds(c) {
		return 0
	}
	return m.Karbonite[c.Row*m.Width+c.Col]
}

// SetPassable marks c; out-of-bounds cells are ignored.
func (m *PlanetMap) SetPassable(c Cell, passable bool) {
	if m.InBounds(c) {
		m.Passable[c.Row*m.Width+c.Col] = passable
	}
}

// SetKarbonite sets the initial deposit at c; out-of-bounds cells are ignored.
func (m *PlanetMap) SetKarbonite(c Cell, amount int) {
	if m.InBounds(c) {
		m.Karbonite[c.Row*m.Width+c.Col] = amount
	}
}

// Strike is one scheduled karbonite drop on the away planet.
type Strike struct {
	Cell   Cell `json:"cell"`
	Amount int  `json:"amount"`
}

// StrikeSchedule maps a round to the strike landing on it. It is known in
// full at game start.
type StrikeSchedule map[int]Strike

// At returns the strike for round, if any.
func (s StrikeSchedule) At(round int) (Strike, bool) {
	st, ok := s[round]
	return st, ok
}
