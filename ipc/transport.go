package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport moves whole envelopes between two peers.
type Transport interface {
	Read() (Envelope, error)
	Write(env Envelope) error
	Close() error
}

type streamTransport struct {
	conn net.Conn
	wmu  sync.Mutex
}

// NewStream frames envelopes over a byte stream such as a unix or tcp socket.
func NewStream(conn net.Conn) Transport {
	return &streamTransport{conn: conn}
}

func (s *streamTransport) Read() (Envelope, error) { return ReadEnvelope(s.conn) }

func (s *streamTransport) Write(env Envelope) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return WriteEnvelope(s.conn, env)
}

func (s *streamTransport) Close() error { return s.conn.Close() }

type wsTransport struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// NewWebsocket sends one envelope per text message.
func NewWebsocket(conn *websocket.Conn) Transport {
	conn.SetReadLimit(MaxFrameSize)
	return &wsTransport{conn: conn}
}

func (w *wsTransport) Read() (Envelope, error) {
	_, msg, err := w.conn.ReadMessage()
	if err != nil {
		return Envelope{}, fmt.Errorf("read message: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

func (w *wsTransport) Write(env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	w.wmu.Lock()
	defer w.wmu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := w.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return net.ErrClosed
		}
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (w *wsTransport) Close() error {
	w.wmu.Lock()
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	w.wmu.Unlock()
	return w.conn.Close()
}

// Dial connects to unix://path, tcp://host:port, ws://host/path or
// wss://host/path.
func Dial(ctx context.Context, addr string) (Transport, error) {
	switch {
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
		conn, resp, err := d.DialContext(ctx, addr, http.Header{})
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return NewWebsocket(conn), nil
	case strings.HasPrefix(addr, "unix://"), strings.HasPrefix(addr, "tcp://"):
		network, target, _ := strings.Cut(addr, "://")
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, target)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return NewStream(conn), nil
	}
	return nil, fmt.Errorf("unsupported address %q (want unix://, tcp://, ws:// or wss://)", addr)
}

// WebsocketHandler upgrades every request and hands the transport to
// handle. The transport is closed when handle returns.
func WebsocketHandler(handle func(Transport)) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		t := NewWebsocket(conn)
		defer t.Close()
		handle(t)
	})
}

// Listen accepts peers on addr until ctx is done, calling handle for each
// one on its own goroutine. Addresses take the same forms as Dial; ws://
// serves the websocket on the URL's path.
func Listen(ctx context.Context, addr string, handle func(Transport)) error {
	if strings.HasPrefix(addr, "ws://") {
		u, err := url.Parse(addr)
		if err != nil {
			return fmt.Errorf("parse %s: %w", addr, err)
		}
		path := u.Path
		if path == "" {
			path = "/"
		}
		mux := http.NewServeMux()
		mux.Handle(path, WebsocketHandler(handle))
		srv := &http.Server{Addr: u.Host, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		slog.Info("listening for websocket peers", "addr", u.Host, "path", path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	network, target, ok := strings.Cut(addr, "://")
	if !ok || (network != "unix" && network != "tcp") {
		return fmt.Errorf("unsupported address %q (want unix://, tcp:// or ws://)", addr)
	}
	if network == "unix" {
		// Unix sockets leave behind a file on unclean shutdown; remove it so we can rebind.
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("clean up socket %s: %w", target, err)
		}
		defer os.Remove(target)
	}
	listener, err := net.Listen(network, target)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	slog.Info("listening", "network", network, "addr", target)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("failed to accept connection", "error", err)
				continue
			}
		}
		slog.Info("new connection accepted", "remote", conn.RemoteAddr())
		go func() {
			t := NewStream(conn)
			defer t.Close()
			handle(t)
		}()
	}
}
