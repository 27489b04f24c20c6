// Package game runs the client-side lifecycle of one multiplayer quiz
// session: lobby and invites, game creation, the realtime question flow,
// and teardown. All state lives in one goroutine fed by a typed message
// inbox; transitions are delegated to the pure engine and the returned
// effects are interpreted here.
package game

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/quizlink/quizlink-client/internal/config"
	"github.com/quizlink/quizlink-client/internal/engine"
	"github.com/quizlink/quizlink-client/internal/push"
	"github.com/quizlink/quizlink-client/internal/realtime"
	"github.com/quizlink/quizlink-client/internal/session"
)

// Deps are the collaborators the controller drives. Store and Backend and
// Channel are required; Mirror and Nav are optional.
type Deps struct {
	Store   *session.Store
	Mirror  *session.Mirror
	Backend Backend
	Channel Channel
	Nav     Navigator
	Timings config.Timings
	Log     *zap.Logger
}

type Controller struct {
	inbox   chan Msg
	state   engine.State
	version int
	subs    map[string]chan Snapshot

	// localID never changes after construction; effect goroutines read it
	// instead of reaching into state the loop is rewriting.
	localID string

	deps Deps
	log  *zap.Logger

	timer    *time.Timer
	timerGen int

	subCancels []CancelFunc
	joined     bool

	clearOnTeardown  bool
	goHomeOnTeardown bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController starts the actor for the session currently in the store.
// The local player must already be rostered; their entry (and the
// creator's) is marked ready up front.
func NewController(parent context.Context, localID string, deps Deps) (*Controller, error) {
	g, ok := deps.Store.Current()
	if !ok {
		return nil, engine.ErrNoSession
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Nav == nil {
		deps.Nav = NopNavigator{}
	}
	if deps.Timings == (config.Timings{}) {
		deps.Timings = config.DefaultTimings()
	}

	ctx, cancel := context.WithCancel(parent)
	c := &Controller{
		inbox:   make(chan Msg, 64),
		state:   engine.NewState(g, localID),
		subs:    make(map[string]chan Snapshot),
		localID: localID,
		deps:    deps,
		log:     deps.Log,
		ctx:     ctx,
		cancel:  cancel,
	}
	deps.Store.Set(c.state.Game)
	deps.Channel.OnDisconnect(func(err error) {
		c.post(channelDown{err: err})
	})

	go c.loop()
	return c, nil
}

// Inbox is where the UI layer, push router, and tests send messages.
func (c *Controller) Inbox() chan<- Msg { return c.inbox }

func (c *Controller) loop() {
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Subscribe:
				c.subs[msg.ID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: c.version, State: c.state}

			case Unsubscribe:
				delete(c.subs, msg.ID)

			case GetState:
				msg.Reply <- View{Version: c.version, NumSubscribers: len(c.subs), State: c.state}

			case Shutdown:
				c.shutdown()
				return

			case teardownDone:
				c.finishTeardown()
				return

			default:
				c.handle(m)
			}
		}
	}
}

// handle translates one message into an engine command, applies it, and
// interprets the effects.
func (c *Controller) handle(m Msg) {
	var cmd engine.Command
	notice := ""

	switch msg := m.(type) {
	case Start:
		cmd = engine.Command{Type: engine.CmdStartGame}
	case Accept:
		cmd = engine.Command{Type: engine.CmdAcceptInvite}
	case Decline:
		cmd = engine.Command{Type: engine.CmdDeclineInvite}
	case Select:
		cmd = engine.Command{Type: engine.CmdSelectOption, Option: msg.Option}
	case Exit:
		cmd = engine.Command{Type: engine.CmdExit}

	case Push:
		if msg.Note.GameID != "" && c.state.Game.ID != "" && msg.Note.GameID != c.state.Game.ID {
			c.log.Debug("push for another game ignored", zap.String("game_id", msg.Note.GameID))
			return
		}
		switch msg.Note.Type {
		case push.TypeGameInviteAccepted:
			cmd = engine.Command{Type: engine.CmdPlayerAccepted, PlayerID: msg.Note.AcceptingPlayerID}
		case push.TypeGameInviteRejected:
			cmd = engine.Command{Type: engine.CmdPlayerDeclined, PlayerID: msg.Note.AcceptingPlayerID}
		default:
			return
		}

	case gameCreated:
		cmd = engine.Command{Type: engine.CmdGameCreated, GameID: msg.id}
	case createFailed:
		c.log.Warn("game creation failed", zap.Error(msg.err))
		cmd = engine.Command{Type: engine.CmdCreateFailed}
		notice = "Couldn't start game"

	case inviteResult:
		if msg.err != nil {
			c.log.Warn("invite response failed", zap.String("action", msg.action), zap.Error(msg.err))
			if msg.action == engine.InviteAccepted {
				c.broadcastNotice("Couldn't accept invite")
			} else {
				c.broadcastNotice("Couldn't decline invite")
			}
			return
		}
		if msg.action == engine.InviteAccepted {
			cmd = engine.Command{Type: engine.CmdPlayerAccepted, PlayerID: c.localID}
		} else {
			cmd = engine.Command{Type: engine.CmdPlayerDeclined, PlayerID: c.localID}
		}

	case channelEvent:
		switch msg.name {
		case realtime.EventGameQuestion:
			var q engine.Question
			if err := json.Unmarshal(msg.data, &q); err != nil {
				c.log.Warn("bad game_question payload", zap.Error(err))
				return
			}
			cmd = engine.Command{Type: engine.CmdQuestionReceived, Question: q}
		case realtime.EventGameEnded:
			var p realtime.GameEndedPayload
			if err := json.Unmarshal(msg.data, &p); err != nil {
				c.log.Warn("bad game_ended payload", zap.Error(err))
				return
			}
			cmd = engine.Command{Type: engine.CmdGameEnded, WinnerID: p.GameWinner.WinnerID}
		case realtime.EventPlayerJoined:
			c.log.Info("player joined game room")
			return
		default:
			return
		}

	case channelDown:
		if c.state.Phase != engine.PhaseInProgress {
			return
		}
		// No resume path exists; a drop mid-game aborts to home.
		c.log.Warn("realtime channel lost mid-game", zap.Error(msg.err))
		notice = "Connection lost"
		cmd = engine.Command{Type: engine.CmdExit}

	case timerFired:
		if msg.gen != c.timerGen {
			return
		}
		if msg.kind == timerIntro {
			cmd = engine.Command{Type: engine.CmdIntroElapsed}
		} else {
			cmd = engine.Command{Type: engine.CmdOpenElapsed}
		}

	default:
		return
	}

	effects, next, err := engine.Apply(c.state, cmd)
	if err != nil {
		c.log.Warn("command rejected", zap.String("command", string(cmd.Type)), zap.Error(err))
		return
	}
	changed := len(effects) > 0 || !statesEqual(c.state, next)
	c.state = next
	c.runEffects(effects)
	if changed {
		c.syncStore()
		c.version++
		c.broadcast(Snapshot{Version: c.version, State: c.state, Notice: notice})
	}
}

func (c *Controller) runEffects(effects []engine.Effect) {
	for _, e := range effects {
		switch e.Type {
		case engine.EffCreateGame:
			g := c.state.Game
			go func() {
				id, err := c.deps.Backend.CreateGame(c.ctx, g)
				if err == nil {
					err = c.deps.Backend.InitiateGame(c.ctx, id)
				}
				if err != nil {
					c.post(createFailed{err: err})
					return
				}
				c.post(gameCreated{id: id})
			}()

		case engine.EffSendInviteResponse:
			gameID, action := e.GameID, e.Action
			go func() {
				err := c.deps.Backend.SendInviteResponse(c.ctx, gameID, c.localID, action)
				c.post(inviteResult{action: action, err: err})
			}()

		case engine.EffJoinChannel:
			c.joinChannel(e.GameID)

		case engine.EffStartIntroTimer:
			c.armTimer(timerIntro, c.deps.Timings.Intro)

		case engine.EffStartOpenTimer:
			c.armTimer(timerOpen, c.deps.Timings.Open)

		case engine.EffEmitAnswer:
			ans := e.Answer
			go func() {
				if err := c.deps.Channel.Emit(c.ctx, realtime.EventGameAnswer, ans); err != nil {
					c.log.Warn("answer not sent", zap.Error(err))
				}
			}()

		case engine.EffLeaveChannel:
			c.beginTeardown(e.GameID)

		case engine.EffClearSession:
			c.clearOnTeardown = true

		case engine.EffGoHome:
			c.goHomeOnTeardown = true
		}
	}
}

// joinChannel connects if needed, wires the event subscriptions, and
// announces the local player. Exactly one join is live at a time; the
// subscriptions are cancelled again on teardown.
func (c *Controller) joinChannel(gameID string) {
	for _, ev := range []string{realtime.EventGameQuestion, realtime.EventGameEnded, realtime.EventPlayerJoined} {
		name := ev
		cancel := c.deps.Channel.Subscribe(name, func(data json.RawMessage) {
			c.post(channelEvent{name: name, data: data})
		})
		c.subCancels = append(c.subCancels, cancel)
	}
	c.joined = true
	go func() {
		if err := c.deps.Channel.Connect(c.ctx); err != nil {
			c.log.Warn("realtime connect failed", zap.Error(err))
			c.post(channelDown{err: err})
			return
		}
		if err := c.deps.Channel.Join(c.ctx, gameID, c.localID); err != nil {
			c.log.Warn("join not sent", zap.Error(err))
		}
	}()
}

// armTimer schedules one phase timer. The generation counter makes a fire
// from a superseded timer recognizably stale, so it is dropped instead of
// advancing a question it no longer belongs to.
func (c *Controller) armTimer(kind timerKind, d time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerGen++
	gen := c.timerGen
	c.timer = time.AfterFunc(d, func() {
		c.post(timerFired{kind: kind, gen: gen})
	})
}

// beginTeardown leaves the room in the background, bounded by the teardown
// window, and reports back so the loop can clear state and navigate even if
// the ack never comes.
func (c *Controller) beginTeardown(gameID string) {
	c.cancelSubscriptions()
	joined := c.joined
	username := c.localUsername()
	go func() {
		if joined {
			ctx, cancel := context.WithTimeout(context.Background(), c.deps.Timings.Teardown)
			defer cancel()
			if err := c.deps.Channel.Leave(ctx, gameID, c.localID, username); err != nil {
				c.log.Warn("leave not acknowledged", zap.Error(err))
			}
		}
		c.post(teardownDone{})
	}()
}

func (c *Controller) finishTeardown() {
	if c.clearOnTeardown {
		c.deps.Store.Clear()
		if c.deps.Mirror != nil {
			if err := c.deps.Mirror.Delete(); err != nil {
				c.log.Warn("session mirror not cleared", zap.Error(err))
			}
		}
	}
	c.version++
	c.broadcast(Snapshot{Version: c.version, State: c.state})
	if c.goHomeOnTeardown {
		c.deps.Nav.Home()
	}
	c.shutdown()
}

func (c *Controller) shutdown() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.cancelSubscriptions()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.cancel()
}

func (c *Controller) cancelSubscriptions() {
	for _, cancel := range c.subCancels {
		cancel()
	}
	c.subCancels = nil
}

// post delivers an internal message unless the controller is already gone.
func (c *Controller) post(m Msg) {
	select {
	case c.inbox <- m:
	case <-c.ctx.Done():
	}
}

func (c *Controller) broadcast(snap Snapshot) {
	for id, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Slow subscriber, drop them.
			close(ch)
			delete(c.subs, id)
		}
	}
}

func (c *Controller) broadcastNotice(text string) {
	c.version++
	c.broadcast(Snapshot{Version: c.version, State: c.state, Notice: text})
}

// syncStore writes the session back to the shared store and mirrors it to
// device storage. The store stays authoritative; mirror failures are
// logged, never surfaced.
func (c *Controller) syncStore() {
	if c.state.Phase == engine.PhaseAborted {
		return
	}
	c.deps.Store.Set(c.state.Game)
	if c.deps.Mirror != nil {
		if err := c.deps.Mirror.Save(c.state.Game); err != nil {
			c.log.Warn("session mirror write failed", zap.Error(err))
		}
	}
}

func (c *Controller) localUsername() string {
	for _, p := range c.state.Game.Players {
		if p.ID == c.localID {
			return p.Username
		}
	}
	return ""
}

// statesEqual is a cheap change check over the fields subscribers render.
func statesEqual(a, b engine.State) bool {
	if a.Phase != b.Phase || a.QPhase != b.QPhase || a.WinnerID != b.WinnerID {
		return false
	}
	if a.Game.ID != b.Game.ID || len(a.Game.Players) != len(b.Game.Players) {
		return false
	}
	for i := range a.Game.Players {
		if a.Game.Players[i] != b.Game.Players[i] {
			return false
		}
	}
	return a.Question.ID == b.Question.ID && a.Selected == b.Selected && a.Answered == b.Answered
}
