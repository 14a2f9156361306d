package models

import (
	"time"

	"github.com/google/uuid"
)

// Point is one sampled canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is an append-only drawing segment. Seq fixes creation order and is
// assigned by the store.
type Stroke struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	PlayerID  uuid.UUID `json:"player_id"`
	PathData  []Point   `json:"path_data"`
	Color     string    `json:"color"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}
