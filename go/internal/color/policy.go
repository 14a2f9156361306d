package color

import (
	"strings"

	"github.com/mcdev12/drawrelay/go/internal/models"
)

// Policy is how stroke colors are chosen in a game mode.
type Policy string

const (
	// PolicyFree lets the drawer pick any palette color per stroke.
	PolicyFree Policy = "free"
	// PolicyOneColor locks one color per player per color epoch.
	PolicyOneColor Policy = "one_color"
)

// DefaultColor is the pen color selected when nothing else is.
const DefaultColor = "#1e1b4b"

// FreePalette is offered in normal and relay rooms.
var FreePalette = []string{
	"#1e1b4b", "#ef4444", "#f97316", "#eab308", "#22c55e",
	"#06b6d4", "#3b82f6", "#8b5cf6", "#ec4899", "#ffffff",
}

// OneColorPalette is offered when a one-color player picks their color.
var OneColorPalette = []string{
	"#ef4444", "#f97316", "#eab308", "#22c55e", "#06b6d4",
	"#3b82f6", "#8b5cf6", "#ec4899", "#1e1b4b", "#ffffff",
}

// Mode maps a game mode to its color policy. Relay rooms draw like normal ones.
func Mode(mode models.GameMode) Policy {
	if mode == models.GameModeOneColor {
		return PolicyOneColor
	}
	return PolicyFree
}

// Palette returns the colors available under a game mode.
func Palette(mode models.GameMode) []string {
	if Mode(mode) == PolicyOneColor {
		return OneColorPalette
	}
	return FreePalette
}

// ValidColor reports whether c belongs to the palette of the game mode.
// Comparison ignores case.
func ValidColor(mode models.GameMode, c string) bool {
	for _, p := range Palette(mode) {
		if strings.EqualFold(p, c) {
			return true
		}
	}
	return false
}

// Input is everything ShouldPickColor looks at.
type Input struct {
	GameMode         models.GameMode
	CurrentRound     int
	LastPickRound    int
	Locked           bool
	AllowColorChange bool
	IsActivePlayer   bool
}

// ShouldPickColor reports whether the active player has to choose a color
// before the turn countdown may start.
func ShouldPickColor(in Input) bool {
	if Mode(in.GameMode) != PolicyOneColor || !in.IsActivePlayer {
		return false
	}
	if !in.Locked {
		return true
	}
	return in.AllowColorChange && in.CurrentRound != in.LastPickRound
}
