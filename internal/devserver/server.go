// Package devserver is a small stand-in for the production backend: the
// HTTP endpoints and realtime relay the client core talks to, enough to
// develop against and to drive integration tests. Scoring and question
// authoring stay out; callers script questions in via PushQuestion.
package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quizlink/quizlink-client/internal/engine"
	"github.com/quizlink/quizlink-client/internal/realtime"
	"github.com/quizlink/quizlink-client/internal/session"
)

type Server struct {
	log    *zap.Logger
	router chi.Router

	mu    sync.Mutex
	games map[string]*gameRoom

	// OnInitiate, when set, runs after a game's initiate call; the scripted
	// question loop of cmd/devserver hangs off it.
	OnInitiate func(gameID string)
}

type gameRoom struct {
	game      session.Game
	initiated bool
	clients   map[string]*client // playerID -> connection
	answers   []engine.Answer
	responses map[string]string // playerID -> accepted/rejected
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

func New(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:   log,
		games: make(map[string]*gameRoom),
	}
	r := chi.NewRouter()
	r.Post("/games", s.createGame)
	r.Post("/games/{gameID}/initiate", s.initiateGame)
	r.Post("/games/game-invite-response/{gameID}/{playerID}", s.inviteResponse)
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) createGame(w http.ResponseWriter, r *http.Request) {
	var g session.Game
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		http.Error(w, "bad game", http.StatusBadRequest)
		return
	}
	id := uuid.NewString()
	g.ID = id

	s.mu.Lock()
	s.games[id] = &gameRoom{
		game:      g,
		clients:   make(map[string]*client),
		responses: make(map[string]string),
	}
	s.mu.Unlock()
	s.log.Info("game created", zap.String("game_id", id), zap.Int("players", len(g.Players)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": map[string]string{"id": id},
	})
}

func (s *Server) initiateGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	s.mu.Lock()
	room := s.games[gameID]
	if room != nil {
		room.initiated = true
	}
	hook := s.OnInitiate
	s.mu.Unlock()
	if room == nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if hook != nil {
		go hook(gameID)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) inviteResponse(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	playerID := chi.URLParam(r, "playerID")
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	room := s.games[gameID]
	if room != nil {
		room.responses[playerID] = body.Action
	}
	s.mu.Unlock()
	if room == nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	cl := &client{conn: conn}
	var gameID, playerID string
	defer func() {
		if gameID != "" {
			s.dropClient(gameID, playerID)
		}
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		var env realtime.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Warn("bad frame", zap.Error(err))
			continue
		}

		switch env.Event {
		case realtime.EventJoinGame:
			var p realtime.JoinPayload
			if err := json.Unmarshal(env.Data, &p); err != nil {
				continue
			}
			gameID, playerID = p.GameID, p.PlayerID
			s.addClient(gameID, playerID, cl)

		case realtime.EventLeaveGame:
			_ = cl.send(realtime.EventLeaveAck, nil)
			if gameID != "" {
				s.dropClient(gameID, playerID)
				gameID, playerID = "", ""
			}

		case realtime.EventGameAnswer:
			var a engine.Answer
			if err := json.Unmarshal(env.Data, &a); err != nil {
				continue
			}
			s.mu.Lock()
			if room := s.games[a.GameID]; room != nil {
				room.answers = append(room.answers, a)
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) addClient(gameID, playerID string, cl *client) {
	s.mu.Lock()
	room := s.games[gameID]
	if room == nil {
		// Rooms can be joined before create when the invitee arrives first.
		room = &gameRoom{
			game:      session.Game{ID: gameID},
			clients:   make(map[string]*client),
			responses: make(map[string]string),
		}
		s.games[gameID] = room
	}
	room.clients[playerID] = cl
	others := otherClients(room, playerID)
	s.mu.Unlock()

	joined := realtime.PlayerJoinedPayload{GameID: gameID, PlayerID: playerID}
	for _, other := range others {
		if err := other.send(realtime.EventPlayerJoined, joined); err != nil {
			s.log.Warn("player_joined not delivered", zap.Error(err))
		}
	}
}

func (s *Server) dropClient(gameID, playerID string) {
	s.mu.Lock()
	if room := s.games[gameID]; room != nil {
		delete(room.clients, playerID)
	}
	s.mu.Unlock()
}

// PushQuestion delivers the next question to every player in the game.
func (s *Server) PushQuestion(gameID string, q engine.Question) {
	s.broadcast(gameID, realtime.EventGameQuestion, q)
}

// EndGame announces the winner and closes out the game.
func (s *Server) EndGame(gameID, winnerID string) {
	var p realtime.GameEndedPayload
	p.GameWinner.WinnerID = winnerID
	s.broadcast(gameID, realtime.EventGameEnded, p)
}

// Initiated reports whether the game's initiate call has been made.
func (s *Server) Initiated(gameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.games[gameID]
	return room != nil && room.initiated
}

// Answers returns the submissions recorded so far for a game.
func (s *Server) Answers(gameID string) []engine.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.games[gameID]
	if room == nil {
		return nil
	}
	out := make([]engine.Answer, len(room.answers))
	copy(out, room.answers)
	return out
}

// InviteResponse returns the recorded accept/decline for a player, if any.
func (s *Server) InviteResponse(gameID, playerID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.games[gameID]
	if room == nil {
		return "", false
	}
	action, ok := room.responses[playerID]
	return action, ok
}

// PlayerCount reports how many connections are in the game's room.
func (s *Server) PlayerCount(gameID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.games[gameID]
	if room == nil {
		return 0
	}
	return len(room.clients)
}

func (s *Server) broadcast(gameID, event string, payload any) {
	s.mu.Lock()
	room := s.games[gameID]
	var targets []*client
	if room != nil {
		targets = otherClients(room, "")
	}
	s.mu.Unlock()
	for _, cl := range targets {
		if err := cl.send(event, payload); err != nil {
			s.log.Warn("event not delivered", zap.String("event", event), zap.Error(err))
		}
	}
}

func otherClients(room *gameRoom, except string) []*client {
	out := make([]*client, 0, len(room.clients))
	for id, cl := range room.clients {
		if id == except {
			continue
		}
		out = append(out, cl)
	}
	return out
}

func (cl *client) send(event string, payload any) error {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		data = raw
	}
	frame, err := json.Marshal(realtime.Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.conn.Write(context.Background(), websocket.MessageText, frame)
}
