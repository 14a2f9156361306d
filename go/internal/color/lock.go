package color

import "github.com/mcdev12/drawrelay/go/internal/models"

// Lock is one client's color state in a one-color room. It is local to the
// client and never written to the store.
type Lock struct {
	Color         string
	Locked        bool
	LastPickRound int
}

// Pick locks c for the given round.
func (l *Lock) Pick(c string, round int) {
	l.Color = c
	l.Locked = true
	l.LastPickRound = round
}

// OnTurnChange starts a new color epoch when rounds may change colors and
// the round moved on. It reports whether the lock was cleared.
func (l *Lock) OnTurnChange(newRound int, mode models.GameMode, allowChange bool) bool {
	if Mode(mode) != PolicyOneColor || !allowChange || newRound == l.LastPickRound {
		return false
	}
	l.Color = ""
	l.Locked = false
	l.LastPickRound = newRound
	return true
}

// Input builds the policy input for the current turn.
func (l Lock) Input(room models.Room, currentRound int, isActive bool) Input {
	return Input{
		GameMode:         room.GameMode,
		CurrentRound:     currentRound,
		LastPickRound:    l.LastPickRound,
		Locked:           l.Locked,
		AllowColorChange: room.AllowColorChange,
		IsActivePlayer:   isActive,
	}
}

// StrokeColor is the color a stroke must carry under the lock, or the
// requested color when the mode is free.
func (l Lock) StrokeColor(mode models.GameMode, requested string) string {
	if Mode(mode) == PolicyOneColor && l.Locked {
		return l.Color
	}
	return requested
}
