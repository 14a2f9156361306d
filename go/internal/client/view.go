package client

import (
	"github.com/google/uuid"

	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/stroke"
	"github.com/mcdev12/drawrelay/go/internal/turn"
)

// statusRank orders room statuses along the game flow.
var statusRank = map[models.RoomStatus]int{
	models.RoomStatusWaiting:        0,
	models.RoomStatusSettingPrompts: 1,
	models.RoomStatusPlaying:        2,
	models.RoomStatusFinished:       3,
}

// View is one client's merged copy of a room. Room payloads are trusted
// unless they are older than what is known, the player list is replaced
// wholesale, and strokes and prompts are appended once per id.
type View struct {
	Room    models.Room
	Players []models.Player
	Canvas  *stroke.Canvas
	Prompts []models.Prompt

	hasRoom bool
}

// NewView returns an empty view.
func NewView() *View {
	return &View{Canvas: stroke.NewCanvas()}
}

// ApplyRoom merges a room payload. Payloads for a different room, or with a
// lower turn or an earlier status than the known row, are stale and
// ignored. It reports whether the turn or status changed.
func (v *View) ApplyRoom(r models.Room) bool {
	if v.hasRoom {
		if r.ID != v.Room.ID {
			return false
		}
		if r.CurrentTurn < v.Room.CurrentTurn || statusRank[r.Status] < statusRank[v.Room.Status] {
			return false
		}
	}

	changed := !v.hasRoom || r.CurrentTurn != v.Room.CurrentTurn || r.Status != v.Room.Status
	v.Room = r
	v.hasRoom = true
	return changed
}

// HasRoom reports whether a room row was seen.
func (v *View) HasRoom() bool {
	return v.hasRoom
}

// SetPlayers replaces the player list with a fresh fetch.
func (v *View) SetPlayers(players []models.Player) {
	v.Players = models.SortByTurnOrder(players)
}

// ApplyStroke appends a stroke unless it was seen.
func (v *View) ApplyStroke(s models.Stroke) bool {
	return v.Canvas.Apply(s)
}

// ApplyPrompt appends a new prompt or, for a known id, takes the newer
// drawer assignment.
func (v *View) ApplyPrompt(p models.Prompt) bool {
	for i := range v.Prompts {
		if v.Prompts[i].ID != p.ID {
			continue
		}
		if v.Prompts[i].DrawerID == nil && p.DrawerID != nil {
			v.Prompts[i].DrawerID = p.DrawerID
			return true
		}
		return false
	}
	v.Prompts = append(v.Prompts, p)
	return true
}

// State derives turn state from the view.
func (v *View) State() (turn.State, error) {
	return turn.Derive(v.Room, len(v.Players))
}

// IsActive reports whether id holds the current turn.
func (v *View) IsActive(id uuid.UUID) bool {
	if v.Room.Status != models.RoomStatusPlaying {
		return false
	}
	p, err := turn.ActivePlayer(v.Room, v.Players)
	return err == nil && p.ID == id
}
