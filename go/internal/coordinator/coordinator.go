// Package coordinator holds the single-writer role of a room: advancing
// turns on timer expiry and closing prompt setting. The role is isolated
// behind an interface so it can move server-side or gain leader election
// without touching the turn engine.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/turn"
)

// ErrStaleTurn is returned when a conditional turn write lost a race: the
// room had already moved past the expected turn.
var ErrStaleTurn = errors.New("turn already advanced")

// Coordinator performs the writes only one participant per room may make.
type Coordinator interface {
	AdvanceTurn(ctx context.Context, room models.Room, playerCount int) error
	CompletePromptSetting(ctx context.Context, room models.Room, players []models.Player) error
}

// Elector decides which participant holds the coordinator role.
type Elector interface {
	IsCoordinator(self uuid.UUID, players []models.Player) bool
}

// HostElector gives the role to the room creator. It is never re-elected.
type HostElector struct{}

func (HostElector) IsCoordinator(self uuid.UUID, players []models.Player) bool {
	host, ok := models.Host(players)
	return ok && host.ID == self
}

// TurnStore performs the conditional turn write.
type TurnStore interface {
	// AdvanceTurn sets current_turn to adv.NextTurn (and finished status when
	// adv.Finish) only where current_turn = adv.ExpectedTurn and the room is
	// playing. It reports whether a row changed.
	AdvanceTurn(ctx context.Context, roomID uuid.UUID, adv turn.Advance) (bool, error)
}

// PromptFinalizer closes prompt setting once every prompt is in.
type PromptFinalizer interface {
	FinalizeIfComplete(ctx context.Context, room models.Room, players []models.Player) (bool, error)
}

// HostCoordinator is the coordinator run by the host client.
type HostCoordinator struct {
	turns   TurnStore
	prompts PromptFinalizer
}

func NewHostCoordinator(turns TurnStore, prompts PromptFinalizer) *HostCoordinator {
	return &HostCoordinator{turns: turns, prompts: prompts}
}

// AdvanceTurn writes the expiry of the room's current turn. A lost race
// returns ErrStaleTurn.
func (h *HostCoordinator) AdvanceTurn(ctx context.Context, room models.Room, playerCount int) error {
	adv, err := turn.NextAdvance(room, playerCount)
	if err != nil {
		return err
	}

	ok, err := h.turns.AdvanceTurn(ctx, room.ID, adv)
	if err != nil {
		return fmt.Errorf("failed to advance turn: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: expected %d", ErrStaleTurn, adv.ExpectedTurn)
	}

	evt := log.Info().
		Str("room_id", room.ID.String()).
		Int("turn", adv.NextTurn)
	if adv.Finish {
		evt.Msg("game finished")
	} else {
		evt.Msg("turn advanced")
	}
	return nil
}

// CompletePromptSetting assigns drawers and starts relay play when every
// prompt is in. Duplicate triggers are no-ops.
func (h *HostCoordinator) CompletePromptSetting(ctx context.Context, room models.Room, players []models.Player) error {
	if _, err := h.prompts.FinalizeIfComplete(ctx, room, players); err != nil {
		return fmt.Errorf("failed to finalize prompts: %w", err)
	}
	return nil
}

// IgnoreRace drops the errors of a lost coordination race. They are logged
// at debug and never shown to a player.
func IgnoreRace(err error) error {
	if errors.Is(err, ErrStaleTurn) || errors.Is(err, turn.ErrNotPlaying) {
		log.Debug().Err(err).Msg("coordination race ignored")
		return nil
	}
	return err
}
