package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nstehr/rangerbot/agent"
	"github.com/nstehr/rangerbot/config"
	"github.com/nstehr/rangerbot/ipc"
	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/sim"
)

func TestParseSeat(t *testing.T) {
	tests := []struct {
		team, planet string
		wantErr      bool
	}{
		{"red", "earth", false},
		{"blue", "mars", false},
		{"green", "earth", true},
		{"red", "venus", true},
	}
	for _, tt := range tests {
		t.Run(tt.team+"/"+tt.planet, func(t *testing.T) {
			team, planet, err := parseSeat(tt.team, tt.planet)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if err == nil && (string(team) != tt.team || string(planet) != tt.planet) {
				t.Errorf("got %s/%s", team, planet)
			}
		})
	}
}

func dialRetry(ctx context.Context, addr string) (ipc.Transport, error) {
	for {
		tr, err := ipc.Dial(ctx, addr)
		if err == nil {
			return tr, nil
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHostMatchWithRemoteSeat(t *testing.T) {
	earth := model.NewPlanetMap(model.Earth, 8, 8)
	earth.SetKarbonite(model.Cell{Row: 1, Col: 1}, 30)
	earth.InitialUnits = []model.Unit{
		model.NewUnit(0, model.Worker, model.Red, model.MapLocation(model.Earth, model.Cell{Row: 0, Col: 0})),
		model.NewUnit(0, model.Worker, model.Blue, model.MapLocation(model.Earth, model.Cell{Row: 7, Col: 7})),
	}
	m := &model.Match{Earth: earth, Mars: model.NewPlanetMap(model.Mars, 4, 4)}

	cfg := config.Default()
	cfg.Bot.Seed = 7
	cfg.Sim.MaxRounds = 5
	g := sim.NewGame(m, cfg.SimOptions())

	bots, err := agent.NewLocal(g, cfg)
	if err != nil {
		t.Fatal(err)
	}
	var local []*agent.Bot
	for _, b := range bots {
		if b.Host.Team() != model.Blue || b.Host.Planet() != model.Earth {
			local = append(local, b)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	addr := "unix://" + filepath.Join(t.TempDir(), "host.sock")

	type played struct {
		notices int
		err     error
	}
	remote := make(chan played, 1)
	go func() {
		var p played
		tr, err := dialRetry(ctx, addr)
		if err != nil {
			p.err = err
			remote <- p
			return
		}
		c := ipc.NewClient(tr)
		defer c.Close()
		c.RegisterHandler(ipc.TypeNotice, func(ipc.Envelope) (*ipc.Envelope, error) {
			p.notices++
			return nil, nil
		})
		if _, p.err = c.Handshake(); p.err == nil {
			var b *agent.Bot
			if b, p.err = agent.New(c, cfg); p.err == nil {
				p.err = b.Run(ctx)
			}
		}
		remote <- p
	}()

	res, err := hostMatch(ctx, addr, g, local, ipc.HelloMessage{Team: model.Blue, Planet: model.Earth})
	if err != nil {
		t.Fatal(err)
	}
	if res.Rounds != 5 {
		t.Errorf("rounds = %d", res.Rounds)
	}

	p := <-remote
	if p.err != nil {
		t.Fatalf("remote: %v", p.err)
	}
	if p.notices != 4 {
		t.Errorf("notices = %d, want 4", p.notices)
	}
	if res.Census[model.Blue][model.Worker] < 1 {
		t.Errorf("blue census = %v", res.Census[model.Blue])
	}
}
