package turn

import (
	"fmt"

	"github.com/mcdev12/drawrelay/go/internal/models"
)

// ValidateTransition checks a room status change against the game flow:
// waiting -> setting_prompts -> playing -> finished for relay rooms and
// waiting -> playing -> finished for every other mode.
func ValidateTransition(mode models.GameMode, from, to models.RoomStatus) error {
	if from == to {
		return nil
	}

	allowed := map[models.RoomStatus][]models.RoomStatus{
		models.RoomStatusWaiting:        {models.RoomStatusPlaying},
		models.RoomStatusSettingPrompts: {models.RoomStatusPlaying},
		models.RoomStatusPlaying:        {models.RoomStatusFinished},
		models.RoomStatusFinished:       {},
	}
	if mode == models.GameModeItsuDoko {
		allowed[models.RoomStatusWaiting] = []models.RoomStatus{models.RoomStatusSettingPrompts}
	}

	next, ok := allowed[from]
	if !ok {
		return fmt.Errorf("unknown room status: %s", from)
	}
	for _, s := range next {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("transition from %s to %s is not allowed in %s mode", from, to, mode)
}

// StartStatus is the status a room enters when the host starts the game.
func StartStatus(mode models.GameMode) models.RoomStatus {
	if mode == models.GameModeItsuDoko {
		return models.RoomStatusSettingPrompts
	}
	return models.RoomStatusPlaying
}
