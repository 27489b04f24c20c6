package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// testServer is a minimal realtime endpoint: it records every envelope it
// receives, acks leave_game, and lets tests push events to the client.
type testServer struct {
	ts *httptest.Server

	mu       sync.Mutex
	dials    int
	received []Envelope
	conn     *websocket.Conn
	ackLeave bool
}

func newTestServer(t *testing.T, ackLeave bool) *testServer {
	t.Helper()
	s := &testServer{ackLeave: ackLeave}
	s.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.dials++
		s.conn = conn
		s.mu.Unlock()

		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			s.mu.Lock()
			s.received = append(s.received, env)
			ack := s.ackLeave && env.Event == EventLeaveGame
			s.mu.Unlock()
			if ack {
				frame, _ := json.Marshal(Envelope{Event: EventLeaveAck})
				_ = conn.Write(context.Background(), websocket.MessageText, frame)
			}
		}
	}))
	t.Cleanup(s.ts.Close)
	return s
}

func (s *testServer) url() string {
	return "ws" + strings.TrimPrefix(s.ts.URL, "http")
}

func (s *testServer) push(t *testing.T, event string, payload any) {
	t.Helper()
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		t.Fatalf("no client connected")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	frame, _ := json.Marshal(Envelope{Event: event, Data: data})
	if err := conn.Write(context.Background(), websocket.MessageText, frame); err != nil {
		t.Fatalf("push: %v", err)
	}
}

// dropClient severs the server side of the websocket. httptest's
// CloseClientConnections does not reach hijacked connections, so the
// upgraded conn has to be closed directly.
func (s *testServer) dropClient(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			_ = conn.CloseNow()
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no client connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *testServer) waitReceived(t *testing.T, event string, within time.Duration) Envelope {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		for _, env := range s.received {
			if env.Event == event {
				s.mu.Unlock()
				return env
			}
		}
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("server never received %s", event)
	return Envelope{}
}

func TestConnect_IsIdempotent(t *testing.T) {
	srv := newTestServer(t, true)
	c := NewClient(srv.url(), nil)
	defer c.Close()

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("second connect: %v", err)
	}

	srv.mu.Lock()
	dials := srv.dials
	srv.mu.Unlock()
	if dials != 1 {
		t.Fatalf("want exactly one underlying connection, got %d", dials)
	}
}

func TestJoin_EmitsJoinGame(t *testing.T) {
	srv := newTestServer(t, true)
	c := NewClient(srv.url(), nil)
	defer c.Close()

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Join(ctx, "g1", "p1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	env := srv.waitReceived(t, EventJoinGame, time.Second)
	var p JoinPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode join: %v", err)
	}
	if p.GameID != "g1" || p.PlayerID != "p1" {
		t.Fatalf("join payload off: %+v", p)
	}
}

func TestSubscribe_DispatchesAndCancels(t *testing.T) {
	srv := newTestServer(t, true)
	c := NewClient(srv.url(), nil)
	defer c.Close()

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	got := make(chan json.RawMessage, 4)
	sub := c.Subscribe(EventGameQuestion, func(data json.RawMessage) {
		got <- data
	})

	srv.push(t, EventGameQuestion, map[string]any{"id": "q1"})
	select {
	case data := <-got:
		var q struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &q); err != nil || q.ID != "q1" {
			t.Fatalf("bad dispatch payload: %s (%v)", data, err)
		}
	case <-time.After(time.Second):
		t.Fatalf("handler never ran")
	}

	sub.Cancel()
	srv.push(t, EventGameQuestion, map[string]any{"id": "q2"})
	select {
	case data := <-got:
		t.Fatalf("cancelled handler still ran: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLeave_WaitsForAck(t *testing.T) {
	srv := newTestServer(t, true)
	c := NewClient(srv.url(), nil)
	defer c.Close()

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	lctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.Leave(lctx, "g1", "p1", "alice"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	env := srv.waitReceived(t, EventLeaveGame, time.Second)
	var p LeavePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode leave: %v", err)
	}
	if p.Username != "alice" {
		t.Fatalf("leave payload off: %+v", p)
	}
}

func TestLeave_TimesOutWithoutAck(t *testing.T) {
	srv := newTestServer(t, false)
	c := NewClient(srv.url(), nil)
	defer c.Close()

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	lctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := c.Leave(lctx, "g1", "p1", "alice")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("leave not bounded by ctx: %v", elapsed)
	}
}

func TestLeave_NoopWhenDisconnected(t *testing.T) {
	c := NewClient("ws://127.0.0.1:0", nil)
	if err := c.Leave(context.Background(), "g1", "p1", "alice"); err != nil {
		t.Fatalf("leave on disconnected channel must be a no-op, got %v", err)
	}
}

func TestOnDisconnect_FiresOnServerClose(t *testing.T) {
	srv := newTestServer(t, true)
	c := NewClient(srv.url(), nil)

	dropped := make(chan struct{})
	c.OnDisconnect(func(error) { close(dropped) })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	srv.dropClient(t)

	select {
	case <-dropped:
	case <-time.After(time.Second):
		t.Fatalf("disconnect hook never fired")
	}
	if c.Connected() {
		t.Fatalf("client still marked connected")
	}
}
