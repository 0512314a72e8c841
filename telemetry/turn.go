// Package telemetry records one summary per bot turn to a compressed JSONL
// log and a SQLite index.
package telemetry

import (
	"errors"

	"github.com/google/uuid"

	"github.com/nstehr/rangerbot/model"
)

// Turn is the per-turn summary a bot emits.
type Turn struct {
	Match        string                 `json:"match"`
	Round        int                    `json:"round"`
	Planet       model.Planet           `json:"planet"`
	Team         model.Team             `json:"team"`
	Karbonite    int                    `json:"karbonite"`
	MapKarbonite int                    `json:"mapKarbonite"`
	Units        map[model.UnitType]int `json:"units"`
	Enemies      int                    `json:"enemies"`
	Endangered   int                    `json:"endangered"`
	Sites        int                    `json:"sites"`
	Goals        []string               `json:"goals,omitempty"`
	Events       []string               `json:"events,omitempty"`
	Skipped      bool                   `json:"skipped,omitempty"`
	ElapsedUs    int64                  `json:"elapsedUs"`
}

// Recorder receives turn summaries.
type Recorder interface {
	Record(t Turn) error
	Close() error
}

// NewMatchID returns a fresh match identifier.
func NewMatchID() string { return uuid.NewString() }

type multi []Recorder

// Multi fans every turn out to each non-nil recorder.
func Multi(rs ...Recorder) Recorder {
	var m multi
	for _, r := range rs {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m multi) Record(t Turn) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Record(t))
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

// Discard drops every turn.
type Discard struct{}

func (Discard) Record(Turn) error { return nil }
func (Discard) Close() error      { return nil }
