package services

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizparty/models"
)

var regTestStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func registryRoom(pin string) *models.Room {
	return models.NewRoom("room-"+pin, pin, "host-conn-"+pin, "host-user", "host-token-"+pin, "quiz-1", regTestStart)
}

func TestRegistrySaveGetDelete(t *testing.T) {
	reg := NewRoomRegistry()
	room := registryRoom("123456")
	reg.Save(room)

	assert.Same(t, room, reg.Get("123456"))
	assert.Equal(t, 1, reg.Count())

	reg.Delete("123456")
	assert.Nil(t, reg.Get("123456"))
	reg.Delete("123456") // idempotent
}

func TestRegistryTokenIndexes(t *testing.T) {
	reg := NewRoomRegistry()
	room := registryRoom("123456")
	player := models.NewPlayer("p1", "conn-1", "Alice", room.PIN, "player-token", regTestStart)
	require.NoError(t, room.AddPlayer(player))
	reg.Save(room)

	assert.Same(t, room, reg.GetByHostToken("host-token-123456"))
	assert.Same(t, room, reg.GetByPlayerToken("player-token"))
	assert.Same(t, room, reg.GetByConnection("conn-1"))
	assert.Same(t, room, reg.GetByConnection("host-conn-123456"))
	assert.Nil(t, reg.GetByHostToken("bogus"))
}

func TestRegistryIndexSelfHeals(t *testing.T) {
	reg := NewRoomRegistry()
	room := registryRoom("123456")
	player := models.NewPlayer("p1", "conn-1", "Alice", room.PIN, "old-token", regTestStart)
	require.NoError(t, room.AddPlayer(player))
	reg.Save(room)

	// Rotate the token behind the index's back; the stale entry must heal
	// on lookup instead of resolving.
	player.Token = "new-token"
	assert.Nil(t, reg.GetByPlayerToken("old-token"))
	assert.Nil(t, reg.GetByPlayerToken("old-token"), "healed entry stays gone")

	reg.Save(room)
	assert.Same(t, room, reg.GetByPlayerToken("new-token"))
}

func TestRegistryDeletePurgesIndexes(t *testing.T) {
	reg := NewRoomRegistry()
	room := registryRoom("123456")
	player := models.NewPlayer("p1", "conn-1", "Alice", room.PIN, "player-token", regTestStart)
	require.NoError(t, room.AddPlayer(player))
	reg.Save(room)

	reg.Delete("123456")
	assert.Nil(t, reg.GetByHostToken("host-token-123456"))
	assert.Nil(t, reg.GetByPlayerToken("player-token"))
	assert.Nil(t, reg.GetByConnection("conn-1"))
}

func TestGeneratePIN(t *testing.T) {
	reg := NewRoomRegistry()
	pattern := regexp.MustCompile(`^\d{6}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		pin, err := reg.GeneratePIN()
		require.NoError(t, err)
		assert.True(t, pattern.MatchString(pin), "pin %q must be 6 zero-padded digits", pin)
		seen[pin] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestSweepExpiredTokens(t *testing.T) {
	reg := NewRoomRegistry()
	room := registryRoom("123456")
	player := models.NewPlayer("p1", "conn-1", "Alice", room.PIN, "old-token", regTestStart)
	require.NoError(t, room.AddPlayer(player))
	reg.Save(room)

	// Rotation leaves the old entry behind; save indexes the new one.
	player.Token = "new-token"
	reg.Save(room)

	removed := reg.SweepExpiredTokens()
	assert.Equal(t, 1, removed)
	assert.Same(t, room, reg.GetByPlayerToken("new-token"))
}
