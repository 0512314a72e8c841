package model

import "math"

// Cell is a (row, column) position on a planet grid. Row grows northward.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Add returns the neighbouring cell one step in direction d.
func (c Cell) Add(d Direction) Cell {
	dr, dc := d.Delta()
	return Cell{Row: c.Row + dr, Col: c.Col + dc}
}

// AddMultiple steps n times in direction d.
func (c Cell) AddMultiple(d Direction, n int) Cell {
	dr, dc := d.Delta()
	return Cell{Row: c.Row + n*dr, Col: c.Col + n*dc}
}

// DistSq returns the squared euclidean distance between two cells.
func DistSq(a, b Cell) int {
	dr := a.Row - b.Row
	dc := a.Col - b.Col
	return dr*dr + dc*dc
}

// IsAdjacent reports whether b is one of the 8 neighbours of a, or a itself.
func IsAdjacent(a, b Cell) bool {
	return DistSq(a, b) <= 2
}

// Direction is one of the 8 compass directions, or Center.
type Direction int

const (
	North Direction = iota
	Northeast
	East
	Southeast
	South
	Southwest
	West
	Northwest
	Center
)

// Compass lists the 8 non-center directions clockwise from North.
var Compass = [8]Direction{North, Northeast, East, Southeast, South, Southwest, West, Northwest}

var directionNames = [...]string{"north", "northeast", "east", "southeast", "south", "southwest", "west", "northwest", "center"}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return "invalid"
	}
	return directionNames[d]
}

// Delta returns the (row, col) offset of one step in d.
func (d Direction) Delta() (int, int) {
	switch d {
	case North:
		return 1, 0
	case Northeast:
		return 1, 1
	case East:
		return 0, 1
	case Southeast:
		return -1, 1
	case South:
		return -1, 0
	case Southwest:
		return -1, -1
	case West:
		return 0, -1
	case Northwest:
		return 1, -1
	}
	return 0, 0
}

// Rotate turns d clockwise by n 45° steps; negative n turns counter-clockwise.
// Center is returned unchanged.
func (d Direction) Rotate(n int) Direction {
	if d == Center {
		return Center
	}
	return Direction(((int(d)+n)%8 + 8) % 8)
}

// Opposite returns the direction pointing the other way.
func (d Direction) Opposite() Direction {
	return d.Rotate(4)
}

// DirectionTo returns the compass octant closest to the bearing from a to b.
func DirectionTo(from, to Cell) Direction {
	dr := float64(to.Row - from.Row)
	dc := float64(to.Col - from.Col)
	if dr == 0 && dc == 0 {
		return Center
	}
	// Bearing measured clockwise from north.
	angle := math.Atan2(dc, dr)
	octant := int(math.Round(angle / (math.Pi / 4)))
	return North.Rotate(octant)
}
