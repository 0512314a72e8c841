package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/gorilla/websocket"
	"github.com/nstehr/rangerbot/host"
)

// Server exposes one player's host.Controller to a remote Client.
type Server struct {
	h          host.Controller
	hello      HelloMessage
	onNextTurn func() error
}

func NewServer(h host.Controller, hello HelloMessage) *Server {
	return &Server{h: h, hello: hello}
}

// OnNextTurn installs fn to run when the client ends its turn. It should
// block until the next round starts and return host.ErrGameOver once the
// match is finished.
func (s *Server) OnNextTurn(fn func() error) {
	s.onNextTurn = fn
}

// Serve greets the client and answers its calls until it disconnects.
func (s *Server) Serve(t Transport) error {
	hello, err := NewEnvelope(TypeHello, s.hello)
	if err != nil {
		return err
	}
	if err := t.Write(hello); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}
	env, err := t.Read()
	if err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	if env.Type != TypeAck {
		return fmt.Errorf("expected ack, got %q", env.Type)
	}
	slog.Info("client joined", "team", s.hello.Team, "planet", s.hello.Planet)

	for {
		env, err := t.Read()
		if err != nil {
			if isDisconnect(err) {
				slog.Info("client left", "team", s.hello.Team, "planet", s.hello.Planet)
				return nil
			}
			return fmt.Errorf("read call: %w", err)
		}
		if env.Type != TypeCall {
			slog.Warn("ignoring message", "type", env.Type)
			continue
		}
		var call CallMessage
		if err := json.Unmarshal(env.Data, &call); err != nil {
			slog.Error("failed to unmarshal call", "error", err)
			continue
		}

		data, callErr := s.dispatch(call)
		res := ResultMessage{ID: call.ID, Error: errorInfo(callErr)}
		if callErr == nil && data != nil {
			raw, err := json.Marshal(data)
			if err != nil {
				res.Error = errorInfo(fmt.Errorf("marshal %s result: %w", call.Method, err))
			} else {
				res.Data = raw
			}
		}
		out, err := NewEnvelope(TypeResult, res)
		if err != nil {
			return err
		}
		if err := t.Write(out); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
}

func isDisconnect(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed)
}

// Notify pushes a notice to the client outside the call flow.
func Notify(t Transport, round int, text string) error {
	env, err := NewEnvelope(TypeNotice, NoticeMessage{Round: round, Text: text})
	if err != nil {
		return err
	}
	return t.Write(env)
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, errors.New("missing arguments")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("bad arguments: %w", err)
	}
	return v, nil
}

// dispatch runs one call. Lookups that miss return a nil result so the
// client sees the zero value and ok=false.
func (s *Server) dispatch(call CallMessage) (any, error) {
	h := s.h
	switch call.Method {
	case MethodRound:
		return h.Round(), nil
	case MethodTimeLeftMs:
		return h.TimeLeftMs(), nil
	case MethodKarbonite:
		return h.Karbonite(), nil
	case MethodMyUnits:
		return h.MyUnits(), nil
	case MethodUnits:
		return h.Units(), nil
	case MethodUnit:
		a, err := decode[UnitArgs](call.Args)
		if err != nil {
			return nil, err
		}
		if u, ok := h.Unit(a.Unit); ok {
			return u, nil
		}
		return nil, nil
	case MethodHasUnit:
		a, err := decode[UnitArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return h.HasUnit(a.Unit), nil
	case MethodSenseUnitAt:
		a, err := decode[CellArgs](call.Args)
		if err != nil {
			return nil, err
		}
		if u, ok := h.SenseUnitAt(a.Cell); ok {
			return u, nil
		}
		return nil, nil
	case MethodKarboniteAt:
		a, err := decode[CellArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return h.KarboniteAt(a.Cell), nil
	case MethodIsOccupiable:
		a, err := decode[CellArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return h.IsOccupiable(a.Cell), nil
	case MethodStartingMap:
		a, err := decode[PlanetArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return h.StartingMap(a.Planet), nil
	case MethodStrikeSchedule:
		return h.StrikeSchedule(), nil
	case MethodTeamArray:
		a, err := decode[PlanetArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return h.TeamArray(a.Planet), nil

	case MethodCanMove, MethodMove, MethodCanHarvest, MethodHarvest,
		MethodCanReplicate, MethodReplicate, MethodCanUnload, MethodUnload:
		a, err := decode[UnitDirArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return s.unitDir(call.Method, a)
	case MethodCanAttack, MethodAttack, MethodCanBuild, MethodBuild, MethodCanLoad, MethodLoad:
		a, err := decode[UnitPairArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return s.unitPair(call.Method, a)
	case MethodCanBlueprint:
		a, err := decode[UnitTypeArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return h.CanBlueprint(a.Unit, a.Type, a.Dir), nil
	case MethodBlueprint:
		a, err := decode[UnitTypeArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return nil, h.Blueprint(a.Unit, a.Type, a.Dir)
	case MethodCanProduce:
		a, err := decode[UnitTypeArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return h.CanProduce(a.Unit, a.Type), nil
	case MethodProduce:
		a, err := decode[UnitTypeArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return nil, h.Produce(a.Unit, a.Type)
	case MethodCanLaunch:
		a, err := decode[LaunchArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return h.CanLaunch(a.Rocket, a.Dest), nil
	case MethodLaunch:
		a, err := decode[LaunchArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return nil, h.Launch(a.Rocket, a.Dest)
	case MethodWriteTeamArray:
		a, err := decode[TeamArrayArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return nil, h.WriteTeamArray(a.Index, a.Value)
	case MethodQueueResearch:
		a, err := decode[ResearchArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return h.QueueResearch(a.Type), nil
	case MethodNextTurn:
		if err := h.NextTurn(); err != nil {
			return nil, err
		}
		if s.onNextTurn != nil {
			return nil, s.onNextTurn()
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unknown method %q", call.Method)
}

func (s *Server) unitDir(method string, a UnitDirArgs) (any, error) {
	h := s.h
	switch method {
	case MethodCanMove:
		return h.CanMove(a.Unit, a.Dir), nil
	case MethodMove:
		return nil, h.Move(a.Unit, a.Dir)
	case MethodCanHarvest:
		return h.CanHarvest(a.Unit, a.Dir), nil
	case MethodHarvest:
		return nil, h.Harvest(a.Unit, a.Dir)
	case MethodCanReplicate:
		return h.CanReplicate(a.Unit, a.Dir), nil
	case MethodReplicate:
		return nil, h.Replicate(a.Unit, a.Dir)
	case MethodCanUnload:
		return h.CanUnload(a.Unit, a.Dir), nil
	default:
		return nil, h.Unload(a.Unit, a.Dir)
	}
}

func (s *Server) unitPair(method string, a UnitPairArgs) (any, error) {
	h := s.h
	switch method {
	case MethodCanAttack:
		return h.CanAttack(a.Unit, a.Other), nil
	case MethodAttack:
		return nil, h.Attack(a.Unit, a.Other)
	case MethodCanBuild:
		return h.CanBuild(a.Unit, a.Other), nil
	case MethodBuild:
		return nil, h.Build(a.Unit, a.Other)
	case MethodCanLoad:
		return h.CanLoad(a.Unit, a.Other), nil
	default:
		return nil, h.Load(a.Unit, a.Other)
	}
}
