// Package push ingests the notification payloads the backend delivers
// outside the realtime channel: game invites, and accept/reject responses
// to invites. Delivery mechanics are the platform's business; this package
// only decodes payloads and routes them.
package push

import (
	"encoding/json"
	"fmt"

	"github.com/quizlink/quizlink-client/internal/session"
)

const (
	TypeGameInvite         = "game_invite"
	TypeGameInviteAccepted = "game_invite_accepted"
	TypeGameInviteRejected = "game_invite_rejected"
)

// Notification is the decoded payload of one push message. GameData is only
// present on game_invite, carrying the session the invitee should load.
type Notification struct {
	Type              string        `json:"type"`
	GameID            string        `json:"game_id"`
	AcceptingPlayerID string        `json:"accepting_player_id,omitempty"`
	GameData          *session.Game `json:"game_data,omitempty"`
}

func Decode(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("decode push payload: %w", err)
	}
	if n.Type == "" {
		return Notification{}, fmt.Errorf("push payload missing type")
	}
	return n, nil
}
