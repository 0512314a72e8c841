package agent

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/telemetry"
)

// EventKind identifies something worth noticing between two turns.
type EventKind string

const (
	EventUnitLost           EventKind = "unit_lost"
	EventStructureFinished  EventKind = "structure_finished"
	EventRocketLaunched     EventKind = "rocket_launched"
	EventKarboniteExhausted EventKind = "karbonite_exhausted"
	EventUnderAttack        EventKind = "under_attack"
	EventFirstContact       EventKind = "first_contact"
)

// Event is detected by diffing consecutive turn summaries.
type Event struct {
	Kind   EventKind
	Round  int
	Detail string
}

func (e Event) String() string { return fmt.Sprintf("%s: %s", e.Kind, e.Detail) }

// turnSummary captures the diffable state at the end of a turn.
type turnSummary struct {
	round      int
	units      map[int]model.UnitType
	endangered map[int]bool
	enemies    int
	exhausted  bool
}

func takeSummary(round int, units []model.Unit, rep turnReport, exhausted bool) turnSummary {
	s := turnSummary{
		round:      round,
		units:      make(map[int]model.UnitType, len(units)),
		endangered: make(map[int]bool, len(rep.endangered)),
		enemies:    rep.enemies,
		exhausted:  exhausted,
	}
	for _, u := range units {
		s.units[u.ID] = u.Type
	}
	for _, u := range rep.endangered {
		s.endangered[u.ID] = true
	}
	return s
}

// detectEvents compares cur against prev. Units in departed left the planet
// on purpose and are not counted as lost. Returns nil on the first turn.
func detectEvents(prev *turnSummary, cur turnSummary, rep turnReport, departed map[int]bool) []Event {
	if prev == nil {
		return nil
	}
	var events []Event

	lost := make(map[model.UnitType]int)
	for id, t := range prev.units {
		if _, ok := cur.units[id]; !ok && !departed[id] {
			lost[t]++
		}
	}
	if len(lost) > 0 {
		events = append(events, Event{Kind: EventUnitLost, Round: cur.round, Detail: formatCounts(lost)})
	}

	for _, site := range rep.finished {
		events = append(events, Event{
			Kind:   EventStructureFinished,
			Round:  cur.round,
			Detail: fmt.Sprintf("%s %d", cur.units[site], site),
		})
	}

	for _, l := range rep.launches {
		events = append(events, Event{
			Kind:   EventRocketLaunched,
			Round:  cur.round,
			Detail: fmt.Sprintf("rocket %d to (%d,%d) with %d units", l.rocket, l.dest.Col, l.dest.Row, len(l.cargo)),
		})
	}

	if cur.exhausted && !prev.exhausted {
		events = append(events, Event{Kind: EventKarboniteExhausted, Round: cur.round, Detail: "no karbonite left on the map"})
	}

	newly := 0
	for id := range cur.endangered {
		if !prev.endangered[id] {
			newly++
		}
	}
	if newly > 0 {
		events = append(events, Event{
			Kind:   EventUnderAttack,
			Round:  cur.round,
			Detail: fmt.Sprintf("%d units newly in danger, %d in total", newly, len(cur.endangered)),
		})
	}

	if prev.enemies == 0 && cur.enemies > 0 {
		events = append(events, Event{
			Kind:   EventFirstContact,
			Round:  cur.round,
			Detail: fmt.Sprintf("%d enemies visible", cur.enemies),
		})
	}
	return events
}

// formatCounts renders counts as "2 worker, 1 ranger" in unit type order.
func formatCounts(counts map[model.UnitType]int) string {
	parts := make([]string, 0, len(counts))
	for _, t := range model.AllUnitTypes {
		if n := counts[t]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, t))
		}
	}
	return strings.Join(parts, ", ")
}

// finishTurn logs the turn, diffs it against the previous one and hands the
// summary to the recorder.
func (b *Bot) finishTurn(round int, rep turnReport, elapsed time.Duration) {
	units := b.Host.MyUnits()
	cur := takeSummary(round, units, rep, b.Karbonite.Exhausted())
	events := detectEvents(b.prev, cur, rep, b.departed)
	b.prev = &cur

	counts := make(map[model.UnitType]int)
	for _, u := range units {
		counts[u.Type]++
	}
	for _, e := range events {
		slog.Info("turn event", "round", e.Round, "kind", e.Kind, "detail", e.Detail)
	}
	slog.Info("turn",
		"round", round,
		"planet", b.Host.Planet(),
		"karbonite", b.Host.Karbonite(),
		"mapKarbonite", b.Karbonite.Total(),
		"units", counts,
		"enemies", rep.enemies,
		"endangered", len(rep.endangered),
		"goals", rep.goal.String(),
		"skipped", rep.skipped,
		"elapsed", elapsed,
	)

	if b.Recorder == nil {
		return
	}
	t := telemetry.Turn{
		Match:        b.Match,
		Round:        round,
		Planet:       b.Host.Planet(),
		Team:         b.Host.Team(),
		Karbonite:    b.Host.Karbonite(),
		MapKarbonite: b.Karbonite.Total(),
		Units:        counts,
		Enemies:      rep.enemies,
		Endangered:   len(rep.endangered),
		Sites:        len(b.Builds.Sites()),
		Goals:        rep.goal.Names(),
		Skipped:      rep.skipped,
		ElapsedUs:    elapsed.Microseconds(),
	}
	for _, e := range events {
		t.Events = append(t.Events, e.String())
	}
	if err := b.Recorder.Record(t); err != nil {
		slog.Warn("turn not recorded", "round", round, "error", err)
	}
}

