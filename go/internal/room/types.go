package room

import (
	"github.com/google/uuid"

	"github.com/mcdev12/drawrelay/go/internal/models"
)

// CreateRoomRequest represents the request to create a room and join it as host.
type CreateRoomRequest struct {
	SessionID uuid.UUID `json:"session_id" validate:"required"`
	Username  string    `json:"username"`
}

// JoinRoomRequest represents the request to join a waiting room by code.
type JoinRoomRequest struct {
	SessionID uuid.UUID `json:"session_id" validate:"required"`
	Username  string    `json:"username"`
	RoomCode  string    `json:"room_code" validate:"required,len=4,numeric"`
}

// UpdateSettingsRequest represents a host edit of the lobby configuration.
type UpdateSettingsRequest struct {
	SessionID uuid.UUID           `json:"session_id" validate:"required"`
	RoomID    uuid.UUID           `json:"room_id" validate:"required"`
	Settings  models.RoomSettings `json:"settings"`
}

// StartGameRequest represents the host starting the game with the lobby
// configuration it currently shows.
type StartGameRequest struct {
	SessionID uuid.UUID           `json:"session_id" validate:"required"`
	RoomID    uuid.UUID           `json:"room_id" validate:"required"`
	Settings  models.RoomSettings `json:"settings"`
}

// StartRoomParams is the conditional write that starts a waiting room.
type StartRoomParams struct {
	Status   models.RoomStatus
	Theme    *string
	Settings models.RoomSettings
}

// Membership is a room together with its players in turn order.
type Membership struct {
	Room    models.Room     `json:"room"`
	Players []models.Player `json:"players"`
}

// Difficulty selects a random theme list.
type Difficulty string

const (
	DifficultyEasy Difficulty = "easy"
	DifficultyHard Difficulty = "hard"
)

// Themes are the random theme lists offered in the lobby.
type Themes struct {
	Easy []string `yaml:"easy" json:"easy"`
	Hard []string `yaml:"hard" json:"hard"`
}
