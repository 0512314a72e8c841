package ipc

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nstehr/rangerbot/host"
	"github.com/nstehr/rangerbot/model"
	"github.com/nstehr/rangerbot/sim"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	env, err := NewEnvelope(TypeNotice, NoticeMessage{Round: 7, Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteEnvelope(&buf, env); err != nil {
		t.Fatal(err)
	}
	if got := binary.LittleEndian.Uint32(buf.Bytes()[:4]); int(got) != buf.Len()-4 {
		t.Errorf("prefix = %d, payload = %d", got, buf.Len()-4)
	}
	got, err := ReadEnvelope(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != TypeNotice || string(got.Data) != string(env.Data) {
		t.Errorf("got %+v, want %+v", got, env)
	}
}

func TestReadEnvelopeRejectsBadLength(t *testing.T) {
	for _, n := range []uint32{0, MaxFrameSize + 1} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			var buf bytes.Buffer
			_ = binary.Write(&buf, binary.LittleEndian, n)
			if _, err := ReadEnvelope(&buf); err == nil || !strings.Contains(err.Error(), "invalid message length") {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestWriteEnvelopeRejectsOversize(t *testing.T) {
	env, _ := NewEnvelope(TypeNotice, NoticeMessage{Text: strings.Repeat("x", MaxFrameSize)})
	var buf bytes.Buffer
	if err := WriteEnvelope(&buf, env); err == nil {
		t.Fatal("expected error")
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes", buf.Len())
	}
}

func TestErrorInfoRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"rejected", host.Reject("move", 4, "blocked"), func(err error) bool {
			var re *host.RejectedError
			return errors.As(err, &re) && re.Action == "move" && re.Unit == 4 && re.Reason == "blocked"
		}},
		{"unknown unit", fmt.Errorf("unit 9: %w", host.ErrUnknownUnit), func(err error) bool {
			return errors.Is(err, host.ErrUnknownUnit)
		}},
		{"game over", host.ErrGameOver, func(err error) bool { return errors.Is(err, host.ErrGameOver) }},
		{"other", errors.New("boom"), func(err error) bool { return err.Error() == "boom" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorInfo(tt.err).Err(); !tt.check(got) {
				t.Errorf("got %v", got)
			}
		})
	}
	if errorInfo(nil) != nil {
		t.Error("nil error should have no wire form")
	}
}

// testGame has a red worker in the corner of a 4x4 Earth with rock to its east.
func testGame() *sim.Game {
	earth := model.NewPlanetMap(model.Earth, 4, 4)
	earth.SetPassable(model.Cell{Row: 0, Col: 1}, false)
	earth.SetKarbonite(model.Cell{Row: 1, Col: 0}, 12)
	earth.InitialUnits = []model.Unit{
		model.NewUnit(0, model.Worker, model.Red, model.MapLocation(model.Earth, model.Cell{})),
	}
	return sim.NewGame(&model.Match{Earth: earth, Mars: model.NewPlanetMap(model.Mars, 3, 3)}, sim.DefaultOptions())
}

// servePipe connects a Client to a Server for h over an in-memory pipe.
func servePipe(t *testing.T, h host.Controller, hook func() error) *Client {
	t.Helper()
	a, b := net.Pipe()
	srv := NewServer(h, HelloMessage{Match: "m1", Team: h.Team(), Planet: h.Planet()})
	if hook != nil {
		srv.OnNextTurn(hook)
	}
	done := make(chan error, 1)
	go func() {
		defer a.Close()
		done <- srv.Serve(NewStream(a))
	}()
	c := NewClient(NewStream(b))
	t.Cleanup(func() {
		c.Close()
		if err := <-done; err != nil {
			t.Errorf("serve: %v", err)
		}
	})
	hello, err := c.Handshake()
	if err != nil {
		t.Fatal(err)
	}
	if hello.Match != "m1" {
		t.Errorf("match = %q", hello.Match)
	}
	return c
}

func TestClientQueriesAndActions(t *testing.T) {
	g := testGame()
	c := servePipe(t, g.Player(model.Red, model.Earth), nil)

	if c.Team() != model.Red || c.Planet() != model.Earth {
		t.Errorf("seat = %s/%s", c.Team(), c.Planet())
	}
	if c.Round() != 1 {
		t.Errorf("round = %d", c.Round())
	}
	if c.Karbonite() != sim.DefaultOptions().StartingKarbonite {
		t.Errorf("karbonite = %d", c.Karbonite())
	}
	units := c.MyUnits()
	if len(units) != 1 || units[0].Type != model.Worker {
		t.Fatalf("units = %+v", units)
	}
	id := units[0].ID

	if u, ok := c.Unit(id); !ok || u.Cell() != (model.Cell{}) {
		t.Errorf("unit = %+v, %v", u, ok)
	}
	if _, ok := c.Unit(id + 100); ok {
		t.Error("unknown unit reported present")
	}
	if _, ok := c.SenseUnitAt(model.Cell{Row: 3, Col: 3}); ok {
		t.Error("empty cell reported occupied")
	}
	if c.KarboniteAt(model.Cell{Row: 1, Col: 0}) != 12 {
		t.Errorf("karbonite at = %d", c.KarboniteAt(model.Cell{Row: 1, Col: 0}))
	}
	if c.IsOccupiable(model.Cell{Row: 0, Col: 1}) {
		t.Error("rock reported occupiable")
	}

	if c.CanMove(id, model.East) {
		t.Error("can move into rock")
	}
	err := c.Move(id, model.East)
	var re *host.RejectedError
	if !errors.As(err, &re) || re.Action != "move" || re.Unit != id {
		t.Fatalf("move err = %v", err)
	}
	if c.Err() != nil {
		t.Errorf("rejection poisoned client: %v", c.Err())
	}
	if err := c.Move(id, model.North); err != nil {
		t.Fatal(err)
	}
	if u, _ := c.Unit(id); u.Cell() != (model.Cell{Row: 1, Col: 0}) {
		t.Errorf("after move at %+v", u.Cell())
	}

	if err := c.WriteTeamArray(3, 42); err != nil {
		t.Fatal(err)
	}
	if arr := c.TeamArray(model.Earth); len(arr) != host.TeamArrayLen || arr[3] != 42 {
		t.Errorf("team array = %v", arr)
	}
	if !c.QueueResearch(model.Ranger) {
		t.Error("research not queued")
	}
	if got := g.Research(model.Red); len(got) != 1 || got[0] != model.Ranger {
		t.Errorf("research = %v", got)
	}
}

func TestClientCachesStaticData(t *testing.T) {
	g := testGame()
	c := servePipe(t, g.Player(model.Red, model.Earth), nil)

	pm := c.StartingMap(model.Earth)
	if pm == nil || pm.Width != 4 || pm.IsPassable(model.Cell{Row: 0, Col: 1}) {
		t.Fatalf("map = %+v", pm)
	}
	if c.StartingMap(model.Earth) != pm {
		t.Error("map fetched twice")
	}
	if mars := c.StartingMap(model.Mars); mars == nil || mars.Width != 3 {
		t.Errorf("mars = %+v", mars)
	}
	if s := c.StrikeSchedule(); s == nil || len(s) != 0 {
		t.Errorf("strikes = %v", s)
	}
}

func TestNextTurnHook(t *testing.T) {
	g := testGame()
	calls := 0
	c := servePipe(t, g.Player(model.Red, model.Earth), func() error {
		calls++
		if calls > 2 {
			return host.ErrGameOver
		}
		g.AdvanceRound()
		return nil
	})

	for range 2 {
		if err := c.NextTurn(); err != nil {
			t.Fatal(err)
		}
	}
	if c.Round() != 3 {
		t.Errorf("round = %d", c.Round())
	}
	if err := c.NextTurn(); !errors.Is(err, host.ErrGameOver) {
		t.Errorf("err = %v", err)
	}
}

func TestClientDispatchesNotices(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	c := NewClient(NewStream(b))
	defer c.Close()

	var notices []NoticeMessage
	c.RegisterHandler(TypeNotice, func(env Envelope) (*Envelope, error) {
		n, err := decode[NoticeMessage](env.Data)
		notices = append(notices, n)
		return nil, err
	})

	go func() {
		srv := NewStream(a)
		env, err := srv.Read()
		if err != nil {
			return
		}
		call, _ := decode[CallMessage](env.Data)
		_ = Notify(srv, 5, "round started")
		res, _ := NewEnvelope(TypeResult, ResultMessage{ID: call.ID, Data: []byte("5")})
		_ = srv.Write(res)
	}()

	if got := c.Round(); got != 5 {
		t.Errorf("round = %d", got)
	}
	if len(notices) != 1 || notices[0].Text != "round started" {
		t.Errorf("notices = %+v", notices)
	}
}

func TestClientErrorIsSticky(t *testing.T) {
	a, b := net.Pipe()
	c := NewClient(NewStream(b))
	defer c.Close()
	a.Close()

	if c.Round() != 0 {
		t.Error("round from closed peer")
	}
	first := c.Err()
	if first == nil {
		t.Fatal("expected sticky error")
	}
	if err := c.Move(1, model.North); err != first || host.IsRejected(err) {
		t.Errorf("move err = %v", err)
	}
	if err := c.NextTurn(); err != first {
		t.Errorf("next turn err = %v", err)
	}
}

func TestWebsocketTransport(t *testing.T) {
	g := testGame()
	srv := NewServer(g.Player(model.Red, model.Earth), HelloMessage{Team: model.Red, Planet: model.Earth})
	served := make(chan error, 1)
	ts := httptest.NewServer(WebsocketHandler(func(tr Transport) { served <- srv.Serve(tr) }))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, err := Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"))
	if err != nil {
		t.Fatal(err)
	}
	c := NewClient(tr)
	if _, err := c.Handshake(); err != nil {
		t.Fatal(err)
	}
	if c.Round() != 1 || len(c.MyUnits()) != 1 {
		t.Errorf("round = %d", c.Round())
	}
	c.Close()

	select {
	case err := <-served:
		if err != nil {
			t.Errorf("serve: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("server did not see the close")
	}
}

func TestDialRejectsUnknownScheme(t *testing.T) {
	if _, err := Dial(context.Background(), "http://localhost"); err == nil {
		t.Fatal("expected error")
	}
}
