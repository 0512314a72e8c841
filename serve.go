package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nstehr/rangerbot/agent"
	"github.com/nstehr/rangerbot/host"
	"github.com/nstehr/rangerbot/ipc"
	"github.com/nstehr/rangerbot/sim"
)

// remoteSeat hands turns to the one remote player. The player's NextTurn
// blocks in endTurn until the driver has advanced the round.
type remoteSeat struct {
	claimed atomic.Bool
	joined  chan struct{}
	left    chan struct{}
	ended   chan struct{}
	next    chan error
	once    sync.Once
}

func newRemoteSeat() *remoteSeat {
	return &remoteSeat{
		joined: make(chan struct{}),
		left:   make(chan struct{}),
		ended:  make(chan struct{}),
		next:   make(chan error, 1),
	}
}

func (s *remoteSeat) endTurn(ctx context.Context) error {
	select {
	case s.ended <- struct{}{}:
	case <-ctx.Done():
		return host.ErrGameOver
	}
	select {
	case err := <-s.next:
		return err
	case <-ctx.Done():
		return host.ErrGameOver
	}
}

// handle serves the first peer to connect; later peers are turned away.
func (s *remoteSeat) handle(ctx context.Context, g *sim.Game, hello ipc.HelloMessage) func(ipc.Transport) {
	return func(t ipc.Transport) {
		if !s.claimed.CompareAndSwap(false, true) {
			slog.Warn("seat already taken, dropping peer")
			return
		}
		defer s.once.Do(func() { close(s.left) })

		srv := ipc.NewServer(g.Player(hello.Team, hello.Planet), hello)
		srv.OnNextTurn(func() error {
			if err := s.endTurn(ctx); err != nil {
				return err
			}
			return ipc.Notify(t, g.Round(), "round started")
		})
		close(s.joined)
		if err := srv.Serve(t); err != nil {
			slog.Error("remote seat failed", "error", err)
		}
	}
}

// hostMatch waits for the remote player, then runs rounds until the game
// ends. A player that disconnects forfeits its remaining turns.
func hostMatch(ctx context.Context, addr string, g *sim.Game, bots []*agent.Bot, hello ipc.HelloMessage) (agent.LocalResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	seat := newRemoteSeat()
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- ipc.Listen(ctx, addr, seat.handle(ctx, g, hello))
	}()

	for _, b := range bots {
		if err := b.BeforeLoop(); err != nil {
			return agent.LocalResult{}, err
		}
	}

	slog.Info("waiting for remote player", "addr", addr, "team", hello.Team, "planet", hello.Planet)
	select {
	case <-seat.joined:
	case err := <-listenErr:
		return agent.LocalResult{}, err
	case <-ctx.Done():
		return agent.LocalResult{}, ctx.Err()
	}

	remote := true
	for {
		if over, _ := g.Over(); over {
			res := agent.Outcome(g)
			slog.Info("match finished", "winner", res.Winner, "rounds", res.Rounds)
			return res, nil
		}
		for _, b := range bots {
			b.Turn()
		}
		if remote {
			select {
			case <-seat.ended:
			case <-seat.left:
				slog.Warn("remote player left, continuing without it", "round", g.Round())
				remote = false
			case <-ctx.Done():
				return agent.Outcome(g), ctx.Err()
			}
		}
		g.AdvanceRound()
		if remote {
			var err error
			if over, _ := g.Over(); over {
				err = host.ErrGameOver
			}
			seat.next <- err
		}
	}
}
