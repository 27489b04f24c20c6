package realtime

import "encoding/json"

// Event names exchanged with the game server.
const (
	EventJoinGame     = "join_game"
	EventLeaveGame    = "leave_game"
	EventLeaveAck     = "leave_ack"
	EventGameAnswer   = "game_answer"
	EventPlayerJoined = "player_joined"
	EventGameQuestion = "game_question"
	EventGameEnded    = "game_ended"
)

// Envelope is the wire frame for every message on the channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinPayload struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

type LeavePayload struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
}

type PlayerJoinedPayload struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

type GameEndedPayload struct {
	GameWinner struct {
		WinnerID string `json:"winnerId"`
	} `json:"gameWinner"`
}
