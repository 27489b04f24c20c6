package session

// Topic is the subject the game's questions are drawn from.
type Topic struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Custom      bool   `json:"custom"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Player is one participant in the current game.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	IsReady  bool   `json:"is_ready"`
}

// Game is the client's view of the game being set up or played. ID stays
// empty until the server confirms creation.
type Game struct {
	ID      string   `json:"id,omitempty"`
	Creator string   `json:"creator"`
	Topic   Topic    `json:"topic"`
	Players []Player `json:"players"`
}

// HasPlayer reports whether id is in the roster.
func (g Game) HasPlayer(id string) bool {
	for _, p := range g.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// AddPlayer appends p unless a player with the same id is already present.
// Insertion order is preserved.
func (g *Game) AddPlayer(p Player) {
	if g.HasPlayer(p.ID) {
		return
	}
	g.Players = append(g.Players, p)
}

// RemovePlayer drops the player with the given id, keeping roster order.
func (g *Game) RemovePlayer(id string) {
	for i, p := range g.Players {
		if p.ID == id {
			g.Players = append(g.Players[:i], g.Players[i+1:]...)
			return
		}
	}
}

// SetReady marks the player with the given id ready. Unknown ids are ignored.
func (g *Game) SetReady(id string) {
	for i := range g.Players {
		if g.Players[i].ID == id {
			g.Players[i].IsReady = true
			return
		}
	}
}

// AllReady reports whether every rostered player has readied up. An empty
// roster is not ready.
func (g Game) AllReady() bool {
	if len(g.Players) == 0 {
		return false
	}
	for _, p := range g.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// ClonePlayers returns an independent copy of the roster so callers can hand
// out snapshots without sharing the backing array.
func (g Game) ClonePlayers() []Player {
	out := make([]Player, len(g.Players))
	copy(out, g.Players)
	return out
}
