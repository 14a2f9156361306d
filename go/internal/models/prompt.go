package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxPromptLength is measured in runes.
const MaxPromptLength = 20

// Prompt is one secret sentence fragment in relay mode. There is exactly one
// prompt per category per room; DrawerID is written once after all prompts
// exist and never equals SetterID.
type Prompt struct {
	ID         uuid.UUID  `json:"id"`
	RoomID     uuid.UUID  `json:"room_id"`
	Category   string     `json:"category"`
	PromptText string     `json:"prompt_text"`
	SetterID   uuid.UUID  `json:"setter_id"`
	TurnIndex  int        `json:"turn_index"`
	DrawerID   *uuid.UUID `json:"drawer_id"`
	CreatedAt  time.Time  `json:"created_at"`
}
