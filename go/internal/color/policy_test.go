package color

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/drawrelay/go/internal/models"
)

func TestMode(t *testing.T) {
	assert.Equal(t, PolicyFree, Mode(models.GameModeNormal))
	assert.Equal(t, PolicyFree, Mode(models.GameModeItsuDoko))
	assert.Equal(t, PolicyOneColor, Mode(models.GameModeOneColor))
}

func TestShouldPickColor_OnlyActiveOneColorPlayer(t *testing.T) {
	in := Input{GameMode: models.GameModeOneColor, CurrentRound: 1, IsActivePlayer: true}
	assert.True(t, ShouldPickColor(in))

	in.IsActivePlayer = false
	assert.False(t, ShouldPickColor(in))

	in.IsActivePlayer = true
	in.GameMode = models.GameModeNormal
	assert.False(t, ShouldPickColor(in))

	in.GameMode = models.GameModeItsuDoko
	assert.False(t, ShouldPickColor(in))
}

func TestShouldPickColor_StableWithinEpoch(t *testing.T) {
	var lock Lock
	room := models.Room{GameMode: models.GameModeOneColor, Rounds: 3, AllowColorChange: false}

	assert.True(t, ShouldPickColor(lock.Input(room, 1, true)))
	lock.Pick("#22c55e", 1)

	for round := 1; round <= 3; round++ {
		lock.OnTurnChange(round, room.GameMode, room.AllowColorChange)
		for i := 0; i < 5; i++ {
			assert.False(t, ShouldPickColor(lock.Input(room, round, true)), "round %d", round)
		}
	}
	assert.Equal(t, "#22c55e", lock.StrokeColor(room.GameMode, "#ffffff"))
}

func TestShouldPickColor_EpochResetsOnRoundChange(t *testing.T) {
	var lock Lock
	room := models.Room{GameMode: models.GameModeOneColor, Rounds: 2, AllowColorChange: true}

	lock.Pick("#ef4444", 1)
	assert.False(t, ShouldPickColor(lock.Input(room, 1, true)))
	assert.False(t, lock.OnTurnChange(1, room.GameMode, room.AllowColorChange))

	// Without a turn change notification the stale lock still asks for a pick.
	assert.True(t, ShouldPickColor(lock.Input(room, 2, true)))

	assert.True(t, lock.OnTurnChange(2, room.GameMode, room.AllowColorChange))
	assert.False(t, lock.Locked)
	assert.True(t, ShouldPickColor(lock.Input(room, 2, true)))

	lock.Pick("#3b82f6", 2)
	assert.False(t, ShouldPickColor(lock.Input(room, 2, true)))
}

func TestValidColor(t *testing.T) {
	assert.True(t, ValidColor(models.GameModeNormal, "#1E1B4B"))
	assert.True(t, ValidColor(models.GameModeOneColor, "#ffffff"))
	assert.False(t, ValidColor(models.GameModeNormal, "#123456"))
	assert.Len(t, OneColorPalette, 10)
}
