package game

import (
	"context"
	"encoding/json"

	"github.com/quizlink/quizlink-client/internal/realtime"
	"github.com/quizlink/quizlink-client/internal/session"
)

// Backend is the HTTP surface the controller calls out to. *api.Client
// satisfies it; tests substitute fakes.
type Backend interface {
	CreateGame(ctx context.Context, g session.Game) (string, error)
	InitiateGame(ctx context.Context, gameID string) error
	SendInviteResponse(ctx context.Context, gameID, playerID, action string) error
}

// CancelFunc tears down one event subscription.
type CancelFunc func()

// Channel is the realtime connection as the controller sees it.
type Channel interface {
	Connect(ctx context.Context) error
	Join(ctx context.Context, gameID, playerID string) error
	Leave(ctx context.Context, gameID, playerID, username string) error
	Emit(ctx context.Context, event string, payload any) error
	Subscribe(event string, h func(json.RawMessage)) CancelFunc
	OnDisconnect(fn func(error))
}

// Navigator is the routing hook the controller drives on teardown.
type Navigator interface {
	Home()
}

// NopNavigator is the default when no navigation is wired.
type NopNavigator struct{}

func (NopNavigator) Home() {}

type realtimeChannel struct{ c *realtime.Client }

// NewChannel adapts the realtime client to the Channel port.
func NewChannel(c *realtime.Client) Channel { return realtimeChannel{c: c} }

func (r realtimeChannel) Connect(ctx context.Context) error { return r.c.Connect(ctx) }

func (r realtimeChannel) Join(ctx context.Context, gameID, playerID string) error {
	return r.c.Join(ctx, gameID, playerID)
}

func (r realtimeChannel) Leave(ctx context.Context, gameID, playerID, username string) error {
	return r.c.Leave(ctx, gameID, playerID, username)
}

func (r realtimeChannel) Emit(ctx context.Context, event string, payload any) error {
	return r.c.Emit(ctx, event, payload)
}

func (r realtimeChannel) Subscribe(event string, h func(json.RawMessage)) CancelFunc {
	sub := r.c.Subscribe(event, h)
	return sub.Cancel
}

func (r realtimeChannel) OnDisconnect(fn func(error)) { r.c.OnDisconnect(fn) }
