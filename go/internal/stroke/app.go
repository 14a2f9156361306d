// Package stroke stores drawing strokes and rebuilds the canvas from them.
package stroke

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/drawrelay/go/internal/color"
	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/store"
)

// MaxPoints bounds a single stroke's path.
const MaxPoints = 4096

var (
	ErrRoomNotPlaying = errors.New("room is not playing")
	ErrTooFewPoints   = errors.New("a stroke needs at least 2 points")
	ErrTooManyPoints  = fmt.Errorf("a stroke has at most %d points", MaxPoints)
	ErrInvalidColor   = errors.New("color is not in the palette")
	ErrRoomNotFound   = errors.New("room not found")
	ErrInvalidRequest = errors.New("a stroke needs a room and a player")
)

// Repository defines what the stroke app layer needs from storage
type Repository interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	// InsertStroke assigns the stroke's seq.
	InsertStroke(ctx context.Context, s models.Stroke) (*models.Stroke, error)
	// ListStrokes returns strokes ordered by seq.
	ListStrokes(ctx context.Context, roomID uuid.UUID) ([]models.Stroke, error)
}

// SubmitStrokeRequest represents one finished stroke.
type SubmitStrokeRequest struct {
	RoomID   uuid.UUID      `json:"room_id" validate:"required"`
	PlayerID uuid.UUID      `json:"player_id" validate:"required"`
	Points   []models.Point `json:"path_data" validate:"min=2,max=4096"`
	Color    string         `json:"color"`
}

// App handles stroke business logic
type App struct {
	repo     Repository
	validate *validator.Validate
}

// NewApp creates a new stroke App
func NewApp(repo Repository) *App {
	return &App{repo: repo, validate: validator.New()}
}

// SubmitStroke appends a stroke to a playing room. Whether the submitter
// is the active player is left to the client.
func (a *App) SubmitStroke(ctx context.Context, req SubmitStrokeRequest) (*models.Stroke, error) {
	if err := a.validateRequest(req); err != nil {
		return nil, err
	}

	room, err := a.repo.GetRoom(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if room.Status != models.RoomStatusPlaying {
		return nil, ErrRoomNotPlaying
	}
	if !color.ValidColor(room.GameMode, req.Color) {
		return nil, ErrInvalidColor
	}

	s, err := a.repo.InsertStroke(ctx, models.Stroke{
		ID:       uuid.New(),
		RoomID:   req.RoomID,
		PlayerID: req.PlayerID,
		PathData: req.Points,
		Color:    req.Color,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert stroke: %w", err)
	}

	log.Debug().
		Str("room_id", s.RoomID.String()).
		Str("player_id", s.PlayerID.String()).
		Int64("seq", s.Seq).
		Int("points", len(s.PathData)).
		Msg("stroke saved")
	return s, nil
}

func (a *App) validateRequest(req SubmitStrokeRequest) error {
	err := a.validate.Struct(req)
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}
	switch f := fields[0]; {
	case f.StructField() == "Points" && f.Tag() == "min":
		return ErrTooFewPoints
	case f.StructField() == "Points":
		return ErrTooManyPoints
	default:
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
}

// ListStrokes returns the room's strokes in creation order.
func (a *App) ListStrokes(ctx context.Context, roomID uuid.UUID) ([]models.Stroke, error) {
	strokes, err := a.repo.ListStrokes(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list strokes: %w", err)
	}
	return strokes, nil
}

// Canvas replays the room's strokes.
func (a *App) Canvas(ctx context.Context, roomID uuid.UUID) (*Canvas, error) {
	strokes, err := a.ListStrokes(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return Replay(strokes), nil
}
