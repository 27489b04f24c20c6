package session

import "sync"

// Store is the shared cell holding the current game. At most one game is
// active per process; the store does no validation of its own: structural
// invariants (unique players, creator present) are the callers' job.
type Store struct {
	mu      sync.RWMutex
	current Game
	active  bool
}

func NewStore() *Store { return &Store{} }

// Current returns the active game, if any.
func (s *Store) Current() (Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active {
		return Game{}, false
	}
	g := s.current
	g.Players = s.current.ClonePlayers()
	return g, true
}

// Set replaces the active game. Last write wins; concurrent writers are not
// merged.
func (s *Store) Set(g Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = g
	s.active = true
}

// Clear drops the active game.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Game{}
	s.active = false
}
