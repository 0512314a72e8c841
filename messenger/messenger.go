// Package messenger passes landing cells from the away planet to the home
// planet through the team array.
package messenger

import (
	"fmt"

	"github.com/nstehr/rangerbot/host"
	"github.com/nstehr/rangerbot/model"
)

// MaxLandingCells is the most cells one message carries.
const MaxLandingCells = 30

// Messenger encodes landing cells as slot 0 = count followed by (col, row)
// pairs.
type Messenger struct {
	h host.Controller
}

func New(h host.Controller) *Messenger {
	return &Messenger{h: h}
}

// SendLandingCells writes up to MaxLandingCells cells to this planet's
// team array.
func (m *Messenger) SendLandingCells(cells []model.Cell) error {
	if len(cells) > MaxLandingCells {
		return fmt.Errorf("send landing cells: %d cells exceeds capacity %d", len(cells), MaxLandingCells)
	}
	if err := m.h.WriteTeamArray(0, len(cells)); err != nil {
		return fmt.Errorf("send landing cells: %w", err)
	}
	for i, c := range cells {
		if err := m.h.WriteTeamArray(2*i+1, c.Col); err != nil {
			return fmt.Errorf("send landing cells: %w", err)
		}
		if err := m.h.WriteTeamArray(2*i+2, c.Row); err != nil {
			return fmt.Errorf("send landing cells: %w", err)
		}
	}
	return nil
}

// ReadLandingCells decodes the cells last written on planet p. A corrupt
// count is clamped to what the array can hold.
func (m *Messenger) ReadLandingCells(p model.Planet) []model.Cell {
	arr := m.h.TeamArray(p)
	if len(arr) == 0 {
		return nil
	}
	n := min(max(arr[0], 0), MaxLandingCells, (len(arr)-1)/2)
	cells := make([]model.Cell, 0, n)
	for i := 0; i < n; i++ {
		cells = append(cells, model.Cell{Row: arr[2*i+2], Col: arr[2*i+1]})
	}
	return cells
}
