package models

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MaxUsernameLength is measured in runes.
const MaxUsernameLength = 12

// Player is a room membership row keyed by the anonymous session id.
// A session belongs to at most one room at a time.
type Player struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	Username  string    `json:"username"`
	TurnOrder int       `json:"turn_order"`
	IsHost    bool      `json:"is_host"`
	CreatedAt time.Time `json:"created_at"`
}

// SortByTurnOrder returns a copy of players ordered by turn order, then
// join time, then id, so every caller agrees even on tied orders.
func SortByTurnOrder(players []Player) []Player {
	sorted := make([]Player, len(players))
	copy(sorted, players)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TurnOrder != b.TurnOrder {
			return a.TurnOrder < b.TurnOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	return sorted
}

// FindPlayer returns the player with the given id.
func FindPlayer(players []Player, id uuid.UUID) (Player, bool) {
	for _, p := range players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// Host returns the room's host, if present.
func Host(players []Player) (Player, bool) {
	for _, p := range players {
		if p.IsHost {
			return p, true
		}
	}
	return Player{}, false
}
