package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestMirror(t *testing.T) *Mirror {
	t.Helper()
	m, err := OpenMirror(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMirror_RoundTrip(t *testing.T) {
	m := openTestMirror(t)

	_, ok, err := m.Load()
	require.NoError(t, err)
	assert.False(t, ok, "fresh mirror holds no session")

	game := Game{
		ID:      "g1",
		Creator: "p1",
		Topic:   Topic{ID: "t1", Title: "History"},
		Players: []Player{{ID: "p1", Username: "alice", IsReady: true}},
	}
	require.NoError(t, m.Save(game))

	got, ok, err := m.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, game, got)
}

func TestMirror_SaveOverwritesSingleSlot(t *testing.T) {
	m := openTestMirror(t)
	require.NoError(t, m.Save(Game{ID: "g1", Creator: "p1"}))
	require.NoError(t, m.Save(Game{ID: "g2", Creator: "p1"}))

	got, ok, err := m.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "g2", got.ID)
}

func TestMirror_Delete(t *testing.T) {
	m := openTestMirror(t)
	require.NoError(t, m.Save(Game{ID: "g1"}))
	require.NoError(t, m.Delete())

	_, ok, err := m.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}
