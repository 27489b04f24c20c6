package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver" // pure-Go sqlite driver
	_ "github.com/ncruces/go-sqlite3/embed"
)

// mirrorKey is the fixed name the current session is stored under, matching
// the single-slot device storage the app has always used.
const mirrorKey = "current_game"

// Mirror persists the current session to local device storage. It is read
// once at startup; during an active session the in-memory Store is
// authoritative and the mirror is only written, never re-read.
type Mirror struct {
	db *sql.DB
}

func OpenMirror(path string) (*Mirror, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open session mirror: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS local_state (
		name  TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init session mirror: %w", err)
	}
	return &Mirror{db: db}, nil
}

func (m *Mirror) Close() error { return m.db.Close() }

// Save writes the game under the fixed key, replacing any previous value.
func (m *Mirror) Save(g Game) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = m.db.Exec(
		`INSERT INTO local_state (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		mirrorKey, string(data),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load returns the mirrored game, if one was saved.
func (m *Mirror) Load() (Game, bool, error) {
	var raw string
	err := m.db.QueryRow(
		`SELECT value FROM local_state WHERE name = ?`, mirrorKey,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Game{}, false, nil
	}
	if err != nil {
		return Game{}, false, fmt.Errorf("load session: %w", err)
	}
	var g Game
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return Game{}, false, fmt.Errorf("decode session: %w", err)
	}
	return g, true, nil
}

// Delete removes the mirrored game.
func (m *Mirror) Delete() error {
	_, err := m.db.Exec(`DELETE FROM local_state WHERE name = ?`, mirrorKey)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
