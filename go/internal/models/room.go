package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus defines the coarse state of a room.
type RoomStatus string

const (
	RoomStatusWaiting        RoomStatus = "waiting"
	RoomStatusSettingPrompts RoomStatus = "setting_prompts"
	RoomStatusPlaying        RoomStatus = "playing"
	RoomStatusFinished       RoomStatus = "finished"
)

// GameMode defines how a game is played.
type GameMode string

const (
	GameModeNormal   GameMode = "normal"
	GameModeOneColor GameMode = "one-color"
	GameModeItsuDoko GameMode = "itsu-doko"
)

// RelayTheme is the banner written to rooms started in itsu-doko mode.
const RelayTheme = "いつどこでだれが何をした"

// Room limits and defaults.
const (
	MinPlayers       = 2
	MaxPlayers       = 8
	MinTimeLimit     = 5
	MaxTimeLimit     = 60
	DefaultTimeLimit = 10
	MinRounds        = 1
	MaxRounds        = 5
	RoomCodeLength   = 4
)

// Room is the shared record every client coordinates through.
type Room struct {
	ID               uuid.UUID  `json:"id"`
	RoomCode         string     `json:"room_code"`
	Status           RoomStatus `json:"status"`
	CurrentTurn      int        `json:"current_turn"`
	Theme            *string    `json:"theme"`
	TimeLimit        int        `json:"time_limit"`
	Rounds           int        `json:"rounds"`
	GameMode         GameMode   `json:"game_mode"`
	AllowColorChange bool       `json:"allow_color_change"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewRoom returns a waiting room with the default configuration.
func NewRoom(code string) Room {
	return Room{
		ID:        uuid.New(),
		RoomCode:  code,
		Status:    RoomStatusWaiting,
		TimeLimit: DefaultTimeLimit,
		Rounds:    MinRounds,
		GameMode:  GameModeNormal,
	}
}

// IsRelay reports whether the room runs the hidden-prompt relay mode.
func (r Room) IsRelay() bool {
	return r.GameMode == GameModeItsuDoko
}

// EffectiveRounds is the number of rounds the turn engine counts with.
// Relay games always run a single round.
func (r Room) EffectiveRounds() int {
	if r.IsRelay() || r.Rounds < MinRounds {
		return MinRounds
	}
	return r.Rounds
}

// ThemeText returns the theme or an empty string.
func (r Room) ThemeText() string {
	if r.Theme == nil {
		return ""
	}
	return *r.Theme
}

// RoomSettings holds the host-editable configuration of a room.
type RoomSettings struct {
	Theme            *string  `json:"theme,omitempty" validate:"omitempty,max=30"`
	TimeLimit        int      `json:"time_limit" validate:"min=5,max=60"`
	Rounds           int      `json:"rounds" validate:"min=1,max=5"`
	GameMode         GameMode `json:"game_mode" validate:"oneof=normal one-color itsu-doko"`
	AllowColorChange bool     `json:"allow_color_change"`
}

// Settings extracts the configurable part of the room.
func (r Room) Settings() RoomSettings {
	return RoomSettings{
		Theme:            r.Theme,
		TimeLimit:        r.TimeLimit,
		Rounds:           r.Rounds,
		GameMode:         r.GameMode,
		AllowColorChange: r.AllowColorChange,
	}
}
