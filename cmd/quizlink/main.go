// quizlink is a headless demo client: it creates a solo game against the
// configured backend, plays through the questions picking random options,
// and reports the outcome.
package main

import (
	"context"
	"math/rand"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quizlink/quizlink-client/internal/api"
	"github.com/quizlink/quizlink-client/internal/config"
	"github.com/quizlink/quizlink-client/internal/engine"
	"github.com/quizlink/quizlink-client/internal/game"
	"github.com/quizlink/quizlink-client/internal/realtime"
	"github.com/quizlink/quizlink-client/internal/session"
)

type exitNavigator struct{ done chan struct{} }

func (n exitNavigator) Home() { close(n.done) }

func main() {
	log, _ := zap.NewDevelopment()
	defer log.Sync()

	cfg := config.Load()
	ctx := context.Background()

	mirror, err := session.OpenMirror(cfg.MirrorPath)
	if err != nil {
		log.Fatal("session mirror unavailable", zap.Error(err))
	}
	defer mirror.Close()
	recoverSession(mirror, log)

	localID := uuid.NewString()
	store := session.NewStore()
	store.Set(session.Game{
		Creator: localID,
		Topic:   session.Topic{ID: "general", Title: "General Knowledge"},
		Players: []session.Player{{ID: localID, Username: "demo"}},
	})

	nav := exitNavigator{done: make(chan struct{})}
	ctrl, err := game.NewController(ctx, localID, game.Deps{
		Store:   store,
		Mirror:  mirror,
		Backend: api.NewClient(cfg.APIBaseURL, log),
		Channel: game.NewChannel(realtime.NewClient(cfg.SocketURL, log)),
		Nav:     nav,
		Timings: cfg.Timings,
		Log:     log,
	})
	if err != nil {
		log.Fatal("no session to play", zap.Error(err))
	}

	out := make(chan game.Snapshot, 16)
	ctrl.Inbox() <- game.Subscribe{ID: "demo", Outbox: out}
	ctrl.Inbox() <- game.Start{}

	answered := ""
	for snap := range out {
		if snap.Notice != "" {
			log.Warn(snap.Notice)
		}
		s := snap.State
		switch {
		case s.QPhase == engine.QuestionOpen && !s.Answered && s.Question.ID != answered:
			answered = s.Question.ID
			opt := randomOption(s.Question)
			log.Info("answering",
				zap.Int("question", s.Question.Number),
				zap.String("option", opt))
			ctrl.Inbox() <- game.Select{Option: opt}

		case s.Phase == engine.PhaseGameOver:
			if s.Won() {
				log.Info("you won")
			} else {
				log.Info("you lost", zap.String("winner", s.WinnerID))
			}
			ctrl.Inbox() <- game.Exit{}
		}
	}
	<-nav.done
}

// recoverSession reads the mirrored session once at startup. A leftover
// entry means the previous run died mid-game; there is no resume protocol,
// so it is reported and the slot cleared before a fresh game is seeded.
func recoverSession(m *session.Mirror, log *zap.Logger) {
	g, ok, err := m.Load()
	if err != nil {
		log.Warn("session mirror unreadable", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	log.Info("clearing unfinished session from a previous run",
		zap.String("game_id", g.ID),
		zap.Int("players", len(g.Players)))
	if err := m.Delete(); err != nil {
		log.Warn("stale session not cleared", zap.Error(err))
	}
}

func randomOption(q engine.Question) string {
	opts := make([]string, 0, len(q.Options))
	for _, text := range q.Options {
		opts = append(opts, text)
	}
	if len(opts) == 0 {
		return ""
	}
	return opts[rand.Intn(len(opts))]
}
