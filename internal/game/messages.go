package game

import (
	"encoding/json"

	"github.com/quizlink/quizlink-client/internal/engine"
	"github.com/quizlink/quizlink-client/internal/push"
)

type Msg interface{ isGameMsg() }

// User actions, posted by the UI layer.

type Start struct{}

func (Start) isGameMsg() {}

type Accept struct{}

func (Accept) isGameMsg() {}

type Decline struct{}

func (Decline) isGameMsg() {}

type Select struct{ Option string }

func (Select) isGameMsg() {}

type Exit struct{}

func (Exit) isGameMsg() {}

// Push carries a decoded push notification into the roster.
type Push struct{ Note push.Notification }

func (Push) isGameMsg() {}

// Subscribe registers an outbox that receives every state snapshot,
// starting with the current one.
type Subscribe struct {
	ID     string
	Outbox chan Snapshot
}

func (Subscribe) isGameMsg() {}

type Unsubscribe struct{ ID string }

func (Unsubscribe) isGameMsg() {}

// GetState reflects internal state without data races; test-only.
type GetState struct{ Reply chan View }

func (GetState) isGameMsg() {}

type Shutdown struct{}

func (Shutdown) isGameMsg() {}

// Internal results posted back into the inbox by effect goroutines.

type gameCreated struct{ id string }

func (gameCreated) isGameMsg() {}

type createFailed struct{ err error }

func (createFailed) isGameMsg() {}

type inviteResult struct {
	action string
	err    error
}

func (inviteResult) isGameMsg() {}

type channelEvent struct {
	name string
	data json.RawMessage
}

func (channelEvent) isGameMsg() {}

type channelDown struct{ err error }

func (channelDown) isGameMsg() {}

type timerFired struct {
	kind timerKind
	gen  int
}

func (timerFired) isGameMsg() {}

type teardownDone struct{}

func (teardownDone) isGameMsg() {}

type timerKind int

const (
	timerIntro timerKind = iota
	timerOpen
)

// Snapshot is what subscribers receive after every state change. Notice is
// a transient, user-dismissable message attached to the change that caused
// it (transport failures only).
type Snapshot struct {
	Version int
	State   engine.State
	Notice  string
}

// View is the race-free test window into the controller.
type View struct {
	Version        int
	NumSubscribers int
	State          engine.State
}
