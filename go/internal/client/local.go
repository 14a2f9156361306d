package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/prompt"
	"github.com/mcdev12/drawrelay/go/internal/room"
	"github.com/mcdev12/drawrelay/go/internal/stroke"
)

// Local is a Backend that calls the app layer in process.
type Local struct {
	Rooms   *room.App
	Strokes *stroke.App
	Prompts *prompt.App
}

var _ Backend = Local{}

func (l Local) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return l.Rooms.GetRoom(ctx, id)
}

func (l Local) ListPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error) {
	return l.Rooms.ListPlayers(ctx, roomID)
}

func (l Local) ListStrokes(ctx context.Context, roomID uuid.UUID) ([]models.Stroke, error) {
	return l.Strokes.ListStrokes(ctx, roomID)
}

func (l Local) ListPrompts(ctx context.Context, roomID uuid.UUID) ([]models.Prompt, error) {
	return l.Prompts.ListPrompts(ctx, roomID)
}

func (l Local) SubmitStroke(ctx context.Context, req stroke.SubmitStrokeRequest) (*models.Stroke, error) {
	return l.Strokes.SubmitStroke(ctx, req)
}

func (l Local) SubmitPrompt(ctx context.Context, r models.Room, players []models.Player, setterID uuid.UUID, text string) (*models.Prompt, error) {
	return l.Prompts.SubmitPrompt(ctx, r, players, setterID, text)
}
