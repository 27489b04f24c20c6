package engine

import (
	"errors"

	"github.com/quizlink/quizlink-client/internal/session"
)

var ErrNotCreator = errors.New("only the creator can start the game")
var ErrNoSession = errors.New("no active session")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseCreating   Phase = "creating"
	PhaseWaiting    Phase = "waiting_for_players"
	PhaseInProgress Phase = "in_progress"
	PhaseGameOver   Phase = "game_over"
	PhaseAborted    Phase = "aborted"
)

// QuestionPhase is the per-question sub-state while a game is in progress.
type QuestionPhase string

const (
	QuestionNone     QuestionPhase = ""
	QuestionIntro    QuestionPhase = "intro"
	QuestionOpen     QuestionPhase = "open"
	QuestionRevealed QuestionPhase = "revealed"
)

// Question is one quiz question as delivered over the realtime channel.
// Options maps a label ("A".."D") to the option's text; Answer is the label
// of the correct option.
type Question struct {
	ID      string            `json:"id"`
	Text    string            `json:"question_text"`
	Number  int               `json:"currentQuestion"`
	Total   int               `json:"totalQuestions"`
	Topic   string            `json:"topic"`
	Options map[string]string `json:"options"`
	Answer  string            `json:"answer"`
}

// Answer is the submission sent once per question, the moment the player
// locks a choice.
type Answer struct {
	GameID       string `json:"gameId"`
	PlayerID     string `json:"playerId"`
	QuestionID   string `json:"questionId"`
	Correct      bool   `json:"correct"`
	QuestionText string `json:"questionText"`
}

// State is the full client-side game state. Transitions go through Apply;
// the zero Question/QPhase means no question has arrived yet.
type State struct {
	Phase   Phase
	Game    session.Game
	LocalID string

	Question Question
	QPhase   QuestionPhase
	Selected string
	Answered bool

	WinnerID string
}

// NewState builds the lobby state for a freshly selected game. The local
// player and the creator start ready; everyone else must accept the invite.
func NewState(g session.Game, localID string) State {
	for i := range g.Players {
		if g.Players[i].ID == localID || g.Players[i].ID == g.Creator {
			g.Players[i].IsReady = true
		}
	}
	return State{Phase: PhaseLobby, Game: g, LocalID: localID}
}

func (s State) IsCreator() bool { return s.Game.Creator == s.LocalID }

// Won reports the local outcome once the game is over.
func (s State) Won() bool {
	return s.Phase == PhaseGameOver && s.WinnerID == s.LocalID
}

type CommandType string

const (
	CmdStartGame        CommandType = "StartGame"
	CmdGameCreated      CommandType = "GameCreated"
	CmdCreateFailed     CommandType = "CreateFailed"
	CmdAcceptInvite     CommandType = "AcceptInvite"
	CmdDeclineInvite    CommandType = "DeclineInvite"
	CmdPlayerAccepted   CommandType = "PlayerAccepted"
	CmdPlayerDeclined   CommandType = "PlayerDeclined"
	CmdQuestionReceived CommandType = "QuestionReceived"
	CmdIntroElapsed     CommandType = "IntroElapsed"
	CmdSelectOption     CommandType = "SelectOption"
	CmdOpenElapsed      CommandType = "OpenElapsed"
	CmdGameEnded        CommandType = "GameEnded"
	CmdExit             CommandType = "Exit"
)

type Command struct {
	Type     CommandType
	GameID   string
	PlayerID string
	Option   string
	Question Question
	WinnerID string
}

type EffectType string

const (
	EffCreateGame         EffectType = "CreateGame"
	EffSendInviteResponse EffectType = "SendInviteResponse"
	EffJoinChannel        EffectType = "JoinChannel"
	EffStartIntroTimer    EffectType = "StartIntroTimer"
	EffStartOpenTimer     EffectType = "StartOpenTimer"
	EffEmitAnswer         EffectType = "EmitAnswer"
	EffLeaveChannel       EffectType = "LeaveChannel"
	EffClearSession       EffectType = "ClearSession"
	EffGoHome             EffectType = "GoHome"
)

// Invite-response actions carried by SendInviteResponse effects, matching
// the server's invite-response API.
const (
	InviteAccepted = "accepted"
	InviteRejected = "rejected"
)

type Effect struct {
	Type   EffectType
	GameID string
	Action string
	Answer Answer
}

// Apply is the single transition function: it never mutates s, performs no
// IO, and returns the effects the caller must run. Commands that do not
// apply in the current phase are silent no-ops; duplicate and out-of-order
// events are expected, last write wins.
func Apply(s State, cmd Command) ([]Effect, State, error) {
	newState := s
	newState.Game.Players = s.Game.ClonePlayers()

	switch cmd.Type {
	case CmdStartGame:
		// Creator-only, and only once: a second press while creating or
		// after creation must not hit the server again.
		if !s.IsCreator() {
			return nil, s, ErrNotCreator
		}
		if s.Phase != PhaseLobby || s.Game.ID != "" {
			return nil, s, nil
		}
		newState.Phase = PhaseCreating
		return []Effect{{Type: EffCreateGame}}, newState, nil

	case CmdGameCreated:
		if s.Phase != PhaseCreating {
			return nil, s, nil
		}
		newState.Game.ID = cmd.GameID
		newState.Phase = PhaseWaiting
		return maybeStart(newState)

	case CmdCreateFailed:
		// Manual retry: back to the lobby, start button live again.
		if s.Phase != PhaseCreating {
			return nil, s, nil
		}
		newState.Phase = PhaseLobby
		return nil, newState, nil

	case CmdAcceptInvite:
		if s.Game.ID == "" {
			return nil, s, ErrNoSession
		}
		if s.IsCreator() {
			return nil, s, nil
		}
		// State is untouched until the server confirms; the controller
		// feeds PlayerAccepted back in on success.
		return []Effect{{Type: EffSendInviteResponse, GameID: s.Game.ID, Action: InviteAccepted}}, s, nil

	case CmdDeclineInvite:
		if s.Game.ID == "" {
			return nil, s, ErrNoSession
		}
		if s.IsCreator() {
			return nil, s, nil
		}
		return []Effect{{Type: EffSendInviteResponse, GameID: s.Game.ID, Action: InviteRejected}}, s, nil

	case CmdPlayerAccepted:
		if s.Phase != PhaseLobby && s.Phase != PhaseWaiting {
			return nil, s, nil
		}
		newState.Game.SetReady(cmd.PlayerID)
		return maybeStart(newState)

	case CmdPlayerDeclined:
		if s.Phase != PhaseLobby && s.Phase != PhaseWaiting {
			return nil, s, nil
		}
		// The local player's own decline aborts the whole flow instead of
		// leaving a roster without them.
		if cmd.PlayerID == s.LocalID {
			return exit(newState)
		}
		newState.Game.RemovePlayer(cmd.PlayerID)
		// A decline re-evaluates readiness for the remaining roster
		// immediately, so a lobby whose stragglers all bailed still starts.
		return maybeStart(newState)

	case CmdQuestionReceived:
		if s.Phase != PhaseInProgress {
			return nil, s, nil
		}
		// Unconditional reset: a new question supersedes whatever sub-state
		// the previous one was in.
		newState.Question = cmd.Question
		newState.QPhase = QuestionIntro
		newState.Selected = ""
		newState.Answered = false
		return []Effect{{Type: EffStartIntroTimer}}, newState, nil

	case CmdIntroElapsed:
		if s.Phase != PhaseInProgress || s.QPhase != QuestionIntro {
			return nil, s, nil
		}
		newState.QPhase = QuestionOpen
		return []Effect{{Type: EffStartOpenTimer}}, newState, nil

	case CmdSelectOption:
		if s.Phase != PhaseInProgress || s.QPhase != QuestionOpen {
			return nil, s, nil
		}
		if s.Answered {
			// First choice is final.
			return nil, s, nil
		}
		newState.Selected = cmd.Option
		newState.Answered = true
		correct := cmd.Option == s.Question.Options[s.Question.Answer]
		return []Effect{{
			Type: EffEmitAnswer,
			Answer: Answer{
				GameID:       s.Game.ID,
				PlayerID:     s.LocalID,
				QuestionID:   s.Question.ID,
				Correct:      correct,
				QuestionText: s.Question.Text,
			},
		}}, newState, nil

	case CmdOpenElapsed:
		if s.Phase != PhaseInProgress || s.QPhase != QuestionOpen {
			return nil, s, nil
		}
		newState.QPhase = QuestionRevealed
		return nil, newState, nil

	case CmdGameEnded:
		// May race with in-flight requests or arrive duplicated; a second
		// game_ended is a no-op.
		if s.Phase != PhaseInProgress {
			return nil, s, nil
		}
		newState.Phase = PhaseGameOver
		newState.WinnerID = cmd.WinnerID
		newState.QPhase = QuestionNone
		return nil, newState, nil

	case CmdExit:
		if s.Phase == PhaseAborted {
			return nil, s, nil
		}
		return exit(newState)

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// maybeStart moves a lobby into the live game once the roster qualifies: a
// solo roster starts immediately, otherwise every player must be ready. The
// game id must exist first (there is no channel to join without one) and
// the transition fires at most once because the phase leaves the waiting
// states the moment it does.
func maybeStart(s State) ([]Effect, State, error) {
	if s.Phase != PhaseLobby && s.Phase != PhaseWaiting {
		return nil, s, nil
	}
	if s.Game.ID == "" {
		return nil, s, nil
	}
	if len(s.Game.Players) != 1 && !s.Game.AllReady() {
		return nil, s, nil
	}
	s.Phase = PhaseInProgress
	return []Effect{{Type: EffJoinChannel, GameID: s.Game.ID}}, s, nil
}

func exit(s State) ([]Effect, State, error) {
	s.Phase = PhaseAborted
	s.QPhase = QuestionNone
	return []Effect{
		{Type: EffLeaveChannel, GameID: s.Game.ID},
		{Type: EffClearSession},
		{Type: EffGoHome},
	}, s, nil
}
