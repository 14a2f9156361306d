package turn

import (
	"errors"
	"fmt"

	"github.com/mcdev12/drawrelay/go/internal/models"
)

var (
	// ErrNoPlayers is returned when turn state is derived for an empty room.
	// A room that loses every player mid-game has no defined transition.
	ErrNoPlayers = errors.New("room has no players")
	// ErrNotPlaying is returned when an advance is requested outside of play.
	ErrNotPlaying = errors.New("room is not playing")
)

// State is everything derivable from a room row and its player count.
// It is never stored.
type State struct {
	ActivePlayerIndex int  `json:"active_player_index"`
	CurrentRound      int  `json:"current_round"`
	TotalTurns        int  `json:"total_turns"`
	TurnsRemaining    int  `json:"turns_remaining"`
	Finished          bool `json:"finished"`
}

// Advance is the conditional write the coordinator performs when a turn
// times out. ExpectedTurn is the current_turn value the write is guarded on.
type Advance struct {
	ExpectedTurn int  `json:"expected_turn"`
	NextTurn     int  `json:"next_turn"`
	Finish       bool `json:"finish"`
}

// TotalTurns is playerCount * rounds, with relay rooms pinned to one round.
func TotalTurns(room models.Room, playerCount int) int {
	return playerCount * room.EffectiveRounds()
}

// Derive computes turn state for a room. It is pure and safe to call on
// every notification.
func Derive(room models.Room, playerCount int) (State, error) {
	if playerCount <= 0 {
		return State{}, ErrNoPlayers
	}

	total := TotalTurns(room, playerCount)
	remaining := total - room.CurrentTurn
	if remaining < 0 {
		remaining = 0
	}

	return State{
		ActivePlayerIndex: room.CurrentTurn % playerCount,
		CurrentRound:      room.CurrentTurn/playerCount + 1,
		TotalTurns:        total,
		TurnsRemaining:    remaining,
		Finished:          room.Status == models.RoomStatusFinished || room.CurrentTurn >= total,
	}, nil
}

// ActivePlayer returns the player whose turn it is. Players are ordered by
// turn order before indexing.
func ActivePlayer(room models.Room, players []models.Player) (models.Player, error) {
	state, err := Derive(room, len(players))
	if err != nil {
		return models.Player{}, err
	}
	if state.Finished {
		return models.Player{}, fmt.Errorf("no active player: game finished at turn %d", room.CurrentTurn)
	}
	return models.SortByTurnOrder(players)[state.ActivePlayerIndex], nil
}

// NextAdvance returns the write intent for the expiry of the current turn.
func NextAdvance(room models.Room, playerCount int) (Advance, error) {
	if room.Status != models.RoomStatusPlaying {
		return Advance{}, fmt.Errorf("%w: status %s", ErrNotPlaying, room.Status)
	}
	state, err := Derive(room, playerCount)
	if err != nil {
		return Advance{}, err
	}

	next := room.CurrentTurn + 1
	return Advance{
		ExpectedTurn: room.CurrentTurn,
		NextTurn:     next,
		Finish:       next >= state.TotalTurns,
	}, nil
}

// Label renders the turn header shown between turns: the round-aware form
// when the room runs more than one round, the flat turn count otherwise.
func Label(room models.Room, playerCount int) string {
	state, err := Derive(room, playerCount)
	if err != nil {
		return ""
	}
	if room.EffectiveRounds() > 1 {
		return fmt.Sprintf("%d周目 - ターン %d/%d", state.CurrentRound, state.ActivePlayerIndex+1, playerCount)
	}
	return fmt.Sprintf("ターン %d/%d", room.CurrentTurn+1, state.TotalTurns)
}
