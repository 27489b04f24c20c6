package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Handler receives the raw payload of a subscribed event.
type Handler func(data json.RawMessage)

// Client is the one realtime connection of the process. It is constructed
// once at startup and passed to every consumer; Connect is idempotent so a
// second consumer reuses the live connection instead of opening another.
type Client struct {
	url string
	log *zap.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	connected    bool
	subs         map[string]map[int]Handler
	nextSub      int
	leaveAck     chan struct{}
	onDisconnect func(error)
}

func NewClient(url string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		url:  url,
		log:  log,
		subs: make(map[string]map[int]Handler),
	}
}

// OnDisconnect registers a hook called once when the read loop dies. There
// is no automatic reconnect; what to do about a dropped connection is the
// caller's decision.
func (c *Client) OnDisconnect(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// Connect opens the websocket if no live connection exists and returns
// immediately otherwise.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial realtime server: %w", err)
	}
	c.conn = conn
	c.connected = true
	go c.readLoop(conn)
	c.log.Info("realtime channel connected", zap.String("url", c.url))
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Subscription is the explicit handle returned by Subscribe; Cancel removes
// the handler deterministically.
type Subscription struct {
	client *Client
	event  string
	id     int
}

func (s *Subscription) Cancel() {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	if hs := s.client.subs[s.event]; hs != nil {
		delete(hs, s.id)
	}
}

// Subscribe registers a handler for an incoming event. Handlers run on the
// read-loop goroutine, in arrival order.
func (c *Client) Subscribe(event string, h Handler) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs[event] == nil {
		c.subs[event] = make(map[int]Handler)
	}
	c.nextSub++
	c.subs[event][c.nextSub] = h
	return &Subscription{client: c, event: event, id: c.nextSub}
}

// Join announces the local player in the game's room. Fire-and-forget: the
// server does not confirm, subsequent events simply start arriving.
func (c *Client) Join(ctx context.Context, gameID, playerID string) error {
	return c.Emit(ctx, EventJoinGame, JoinPayload{GameID: gameID, PlayerID: playerID})
}

// Leave announces departure and blocks until the server acknowledges or ctx
// expires. When the channel is already disconnected Leave is a no-op; the
// caller clears local state regardless.
func (c *Client) Leave(ctx context.Context, gameID, playerID, username string) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	ack := make(chan struct{})
	c.leaveAck = ack
	c.mu.Unlock()

	err := c.Emit(ctx, EventLeaveGame, LeavePayload{GameID: gameID, PlayerID: playerID, Username: username})
	if err != nil {
		return err
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("leave not acknowledged: %w", ctx.Err())
	}
}

// Emit sends one event frame. No acknowledgment, no retry.
func (c *Client) Emit(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()
	if !connected {
		return errors.New("realtime channel disconnected")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

// Close tears the connection down without ceremony.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.connected = false
	c.conn = nil
	c.mu.Unlock()
	if !connected {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn("bad frame on realtime channel", zap.Error(err))
			continue
		}
		if env.Event == EventLeaveAck {
			c.mu.Lock()
			if c.leaveAck != nil {
				close(c.leaveAck)
				c.leaveAck = nil
			}
			c.mu.Unlock()
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.subs[env.Event]))
	for _, h := range c.subs[env.Event] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(env.Data)
	}
}

func (c *Client) handleDisconnect(conn *websocket.Conn, err error) {
	c.mu.Lock()
	// A stale loop from a previous connection must not clobber a newer one.
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.conn = nil
	if c.leaveAck != nil {
		close(c.leaveAck)
		c.leaveAck = nil
	}
	fn := c.onDisconnect
	c.mu.Unlock()

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
	default:
		c.log.Warn("realtime channel dropped", zap.Error(err))
	}
	if fn != nil {
		fn(err)
	}
}
