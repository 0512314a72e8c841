package ipc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nstehr/rangerbot/host"
	"github.com/nstehr/rangerbot/model"
)

// Handler processes a received envelope. Return nil to send no reply.
type Handler func(env Envelope) (*Envelope, error)

// Client is a host.Controller backed by a remote Server. Calls are
// synchronous; envelopes other than results that arrive while a call waits
// go to the registered handlers. The first transport failure is sticky:
// queries return zero values, actions return the error, and NextTurn
// reports it.
type Client struct {
	t        Transport
	handlers map[string]Handler

	mu     sync.Mutex
	nextID uint64
	err    error

	hello   HelloMessage
	maps    map[model.Planet]*model.PlanetMap
	strikes model.StrikeSchedule
}

var _ host.Controller = (*Client)(nil)

func NewClient(t Transport) *Client {
	return &Client{
		t:        t,
		handlers: make(map[string]Handler),
		maps:     make(map[model.Planet]*model.PlanetMap),
	}
}

func (c *Client) RegisterHandler(msgType string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// Handshake waits for the server's hello and acknowledges it.
func (c *Client) Handshake() (HelloMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	env, err := c.t.Read()
	if err != nil {
		return HelloMessage{}, c.fail(fmt.Errorf("read hello: %w", err))
	}
	if env.Type != TypeHello {
		return HelloMessage{}, c.fail(fmt.Errorf("expected hello, got %q", env.Type))
	}
	if err := json.Unmarshal(env.Data, &c.hello); err != nil {
		return HelloMessage{}, c.fail(fmt.Errorf("unmarshal hello: %w", err))
	}
	ack, err := NewEnvelope(TypeAck, AckMessage{Status: "ok"})
	if err != nil {
		return HelloMessage{}, err
	}
	if err := c.t.Write(ack); err != nil {
		return HelloMessage{}, c.fail(fmt.Errorf("write ack: %w", err))
	}
	slog.Info("seat assigned", "team", c.hello.Team, "planet", c.hello.Planet, "match", c.hello.Match)
	return c.hello, nil
}

// Err returns the sticky transport error, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Close() error { return c.t.Close() }

// fail records err as sticky. Callers hold mu.
func (c *Client) fail(err error) error {
	if c.err == nil {
		c.err = err
		slog.Error("connection to host lost", "error", err)
	}
	return c.err
}

// call runs one request and decodes the result into out. Engine errors in
// the result are returned without poisoning the client.
func (c *Client) call(method string, args, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}

	c.nextID++
	id := c.nextID
	msg := CallMessage{ID: id, Method: method}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("marshal %s args: %w", method, err)
		}
		msg.Args = raw
	}
	env, err := NewEnvelope(TypeCall, msg)
	if err != nil {
		return err
	}
	if err := c.t.Write(env); err != nil {
		return c.fail(fmt.Errorf("call %s: %w", method, err))
	}

	for {
		env, err := c.t.Read()
		if err != nil {
			return c.fail(fmt.Errorf("await %s: %w", method, err))
		}
		if env.Type != TypeResult {
			c.dispatch(env)
			continue
		}
		var res ResultMessage
		if err := json.Unmarshal(env.Data, &res); err != nil {
			return c.fail(fmt.Errorf("unmarshal result: %w", err))
		}
		if res.ID != id {
			slog.Warn("dropping stale result", "id", res.ID, "want", id)
			continue
		}
		if res.Error != nil {
			return res.Error.Err()
		}
		if out != nil && len(res.Data) > 0 {
			if err := json.Unmarshal(res.Data, out); err != nil {
				return fmt.Errorf("unmarshal %s result: %w", method, err)
			}
		}
		return nil
	}
}

// dispatch hands a non-result envelope to its handler. Callers hold mu.
func (c *Client) dispatch(env Envelope) {
	handler, ok := c.handlers[env.Type]
	if !ok {
		slog.Warn("no handler for message type", "type", env.Type)
		return
	}
	resp, err := handler(env)
	if err != nil {
		slog.Error("handler error", "type", env.Type, "error", err)
		return
	}
	if resp != nil {
		if err := c.t.Write(*resp); err != nil {
			c.fail(fmt.Errorf("send %s: %w", resp.Type, err))
		}
	}
}

// query runs a call whose failure can only be reported through Err.
func (c *Client) query(method string, args, out any) {
	if err := c.call(method, args, out); err != nil {
		slog.Debug("query failed", "method", method, "error", err)
	}
}

func (c *Client) boolCall(method string, args any) bool {
	var ok bool
	c.query(method, args, &ok)
	return ok
}

func (c *Client) Round() int {
	var n int
	c.query(MethodRound, nil, &n)
	return n
}

func (c *Client) Planet() model.Planet { return c.hello.Planet }
func (c *Client) Team() model.Team     { return c.hello.Team }

func (c *Client) TimeLeftMs() int {
	var n int
	c.query(MethodTimeLeftMs, nil, &n)
	return n
}

func (c *Client) Karbonite() int {
	var n int
	c.query(MethodKarbonite, nil, &n)
	return n
}

func (c *Client) MyUnits() []model.Unit {
	var us []model.Unit
	c.query(MethodMyUnits, nil, &us)
	return us
}

func (c *Client) Units() []model.Unit {
	var us []model.Unit
	c.query(MethodUnits, nil, &us)
	return us
}

func (c *Client) Unit(id int) (model.Unit, bool) {
	var u *model.Unit
	c.query(MethodUnit, UnitArgs{Unit: id}, &u)
	if u == nil {
		return model.Unit{}, false
	}
	return *u, true
}

func (c *Client) HasUnit(id int) bool {
	return c.boolCall(MethodHasUnit, UnitArgs{Unit: id})
}

func (c *Client) SenseUnitAt(cell model.Cell) (model.Unit, bool) {
	var u *model.Unit
	c.query(MethodSenseUnitAt, CellArgs{Cell: cell}, &u)
	if u == nil {
		return model.Unit{}, false
	}
	return *u, true
}

func (c *Client) KarboniteAt(cell model.Cell) int {
	var n int
	c.query(MethodKarboniteAt, CellArgs{Cell: cell}, &n)
	return n
}

func (c *Client) IsOccupiable(cell model.Cell) bool {
	return c.boolCall(MethodIsOccupiable, CellArgs{Cell: cell})
}

// StartingMap is fetched once per planet; maps never change.
func (c *Client) StartingMap(p model.Planet) *model.PlanetMap {
	c.mu.Lock()
	pm, ok := c.maps[p]
	c.mu.Unlock()
	if ok {
		return pm
	}
	if err := c.call(MethodStartingMap, PlanetArgs{Planet: p}, &pm); err != nil || pm == nil {
		return nil
	}
	c.mu.Lock()
	c.maps[p] = pm
	c.mu.Unlock()
	return pm
}

func (c *Client) StrikeSchedule() model.StrikeSchedule {
	c.mu.Lock()
	s := c.strikes
	c.mu.Unlock()
	if s != nil {
		return s
	}
	if err := c.call(MethodStrikeSchedule, nil, &s); err != nil {
		return nil
	}
	if s == nil {
		s = model.StrikeSchedule{}
	}
	c.mu.Lock()
	c.strikes = s
	c.mu.Unlock()
	return s
}

func (c *Client) TeamArray(p model.Planet) []int {
	var arr []int
	c.query(MethodTeamArray, PlanetArgs{Planet: p}, &arr)
	return arr
}

func (c *Client) CanMove(unit int, d model.Direction) bool {
	return c.boolCall(MethodCanMove, UnitDirArgs{Unit: unit, Dir: d})
}

func (c *Client) Move(unit int, d model.Direction) error {
	return c.call(MethodMove, UnitDirArgs{Unit: unit, Dir: d}, nil)
}

func (c *Client) CanAttack(unit, target int) bool {
	return c.boolCall(MethodCanAttack, UnitPairArgs{Unit: unit, Other: target})
}

func (c *Client) Attack(unit, target int) error {
	return c.call(MethodAttack, UnitPairArgs{Unit: unit, Other: target}, nil)
}

func (c *Client) CanBlueprint(worker int, t model.UnitType, d model.Direction) bool {
	return c.boolCall(MethodCanBlueprint, UnitTypeArgs{Unit: worker, Type: t, Dir: d})
}

func (c *Client) Blueprint(worker int, t model.UnitType, d model.Direction) error {
	return c.call(MethodBlueprint, UnitTypeArgs{Unit: worker, Type: t, Dir: d}, nil)
}

func (c *Client) CanBuild(worker, site int) bool {
	return c.boolCall(MethodCanBuild, UnitPairArgs{Unit: worker, Other: site})
}

func (c *Client) Build(worker, site int) error {
	return c.call(MethodBuild, UnitPairArgs{Unit: worker, Other: site}, nil)
}

func (c *Client) CanHarvest(worker int, d model.Direction) bool {
	return c.boolCall(MethodCanHarvest, UnitDirArgs{Unit: worker, Dir: d})
}

func (c *Client) Harvest(worker int, d model.Direction) error {
	return c.call(MethodHarvest, UnitDirArgs{Unit: worker, Dir: d}, nil)
}

func (c *Client) CanReplicate(worker int, d model.Direction) bool {
	return c.boolCall(MethodCanReplicate, UnitDirArgs{Unit: worker, Dir: d})
}

func (c *Client) Replicate(worker int, d model.Direction) error {
	return c.call(MethodReplicate, UnitDirArgs{Unit: worker, Dir: d}, nil)
}

func (c *Client) CanProduce(factory int, t model.UnitType) bool {
	return c.boolCall(MethodCanProduce, UnitTypeArgs{Unit: factory, Type: t})
}

func (c *Client) Produce(factory int, t model.UnitType) error {
	return c.call(MethodProduce, UnitTypeArgs{Unit: factory, Type: t}, nil)
}

func (c *Client) CanLoad(structure, robot int) bool {
	return c.boolCall(MethodCanLoad, UnitPairArgs{Unit: structure, Other: robot})
}

func (c *Client) Load(structure, robot int) error {
	return c.call(MethodLoad, UnitPairArgs{Unit: structure, Other: robot}, nil)
}

func (c *Client) CanUnload(structure int, d model.Direction) bool {
	return c.boolCall(MethodCanUnload, UnitDirArgs{Unit: structure, Dir: d})
}

func (c *Client) Unload(structure int, d model.Direction) error {
	return c.call(MethodUnload, UnitDirArgs{Unit: structure, Dir: d}, nil)
}

func (c *Client) CanLaunch(rocket int, dest model.Cell) bool {
	return c.boolCall(MethodCanLaunch, LaunchArgs{Rocket: rocket, Dest: dest})
}

func (c *Client) Launch(rocket int, dest model.Cell) error {
	return c.call(MethodLaunch, LaunchArgs{Rocket: rocket, Dest: dest}, nil)
}

func (c *Client) WriteTeamArray(index, value int) error {
	return c.call(MethodWriteTeamArray, TeamArrayArgs{Index: index, Value: value}, nil)
}

func (c *Client) QueueResearch(t model.UnitType) bool {
	return c.boolCall(MethodQueueResearch, ResearchArgs{Type: t})
}

// NextTurn blocks until the server starts the next round.
func (c *Client) NextTurn() error {
	return c.call(MethodNextTurn, nil, nil)
}
