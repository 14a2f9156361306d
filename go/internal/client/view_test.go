package client

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/drawrelay/go/internal/models"
)

func TestView_ApplyRoomIgnoresStalePayloads(t *testing.T) {
	v := NewView()
	r := models.NewRoom("1234")
	r.Status = models.RoomStatusPlaying
	r.CurrentTurn = 3

	assert.True(t, v.ApplyRoom(r))
	assert.False(t, v.ApplyRoom(r))

	stale := r
	stale.CurrentTurn = 2
	assert.False(t, v.ApplyRoom(stale))
	assert.Equal(t, 3, v.Room.CurrentTurn)

	earlier := r
	earlier.Status = models.RoomStatusSettingPrompts
	assert.False(t, v.ApplyRoom(earlier))

	other := models.NewRoom("9999")
	other.CurrentTurn = 10
	assert.False(t, v.ApplyRoom(other))
	assert.Equal(t, r.ID, v.Room.ID)

	next := r
	next.CurrentTurn = 4
	assert.True(t, v.ApplyRoom(next))

	// Same turn, new settings: trusted but not a turn change.
	renamed := next
	renamed.TimeLimit = 30
	assert.False(t, v.ApplyRoom(renamed))
	assert.Equal(t, 30, v.Room.TimeLimit)
}

func TestView_StrokesAreDedupedAndOrdered(t *testing.T) {
	v := NewView()
	a := models.Stroke{ID: uuid.New(), Seq: 2}
	b := models.Stroke{ID: uuid.New(), Seq: 1}

	assert.True(t, v.ApplyStroke(a))
	assert.True(t, v.ApplyStroke(b))
	assert.False(t, v.ApplyStroke(a))

	got := v.Canvas.Strokes()
	assert.Equal(t, []int64{1, 2}, []int64{got[0].Seq, got[1].Seq})
}

func TestView_PromptDrawerUpdate(t *testing.T) {
	v := NewView()
	p := models.Prompt{ID: uuid.New(), TurnIndex: 0}
	assert.True(t, v.ApplyPrompt(p))
	assert.False(t, v.ApplyPrompt(p))

	drawer := uuid.New()
	p.DrawerID = &drawer
	assert.True(t, v.ApplyPrompt(p))
	assert.Equal(t, drawer, *v.Prompts[0].DrawerID)
	assert.Len(t, v.Prompts, 1)
}

func TestView_IsActive(t *testing.T) {
	v := NewView()
	players := []models.Player{{ID: uuid.New(), TurnOrder: 0}, {ID: uuid.New(), TurnOrder: 1}}
	v.SetPlayers(players)

	r := models.NewRoom("1234")
	v.ApplyRoom(r)
	assert.False(t, v.IsActive(players[0].ID))

	r.Status = models.RoomStatusPlaying
	r.CurrentTurn = 1
	v.ApplyRoom(r)
	assert.True(t, v.IsActive(players[1].ID))
	assert.False(t, v.IsActive(players[0].ID))
}
