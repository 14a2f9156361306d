package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/store"
)

var (
	ErrPromptAlreadySubmitted = errors.New("prompt already submitted for this category")
	ErrNotSettingPrompts      = errors.New("room is not collecting prompts")
	ErrNoCategory             = errors.New("player has no category assigned")
	ErrInvalidPrompt          = errors.New("prompt must be 1 to 20 characters")
)

// Repository defines what the prompt app layer needs from storage.
type Repository interface {
	ListPrompts(ctx context.Context, roomID uuid.UUID) ([]models.Prompt, error)
	// InsertPrompt rejects a second prompt for the same room slot with
	// store.ErrDuplicate.
	InsertPrompt(ctx context.Context, p models.Prompt) (*models.Prompt, error)
	// SetDrawer writes drawer_id only where it is still null.
	SetDrawer(ctx context.Context, promptID, drawerID uuid.UUID) error
	// BeginPlay moves the room from setting_prompts to playing at turn 0.
	// It reports false when the room had already left setting_prompts.
	BeginPlay(ctx context.Context, roomID uuid.UUID) (bool, error)
}

// App handles relay prompt business logic
type App struct {
	repo Repository
}

// NewApp creates a new prompt App
func NewApp(repo Repository) *App {
	return &App{repo: repo}
}

// SubmitPrompt stores the setter's prompt for their assigned category.
func (a *App) SubmitPrompt(ctx context.Context, room models.Room, players []models.Player, setterID uuid.UUID, text string) (*models.Prompt, error) {
	if room.Status != models.RoomStatusSettingPrompts {
		return nil, ErrNotSettingPrompts
	}

	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n == 0 || n > models.MaxPromptLength {
		return nil, ErrInvalidPrompt
	}

	slot, ok := CategoryFor(room.RoomCode, players, setterID)
	if !ok {
		return nil, ErrNoCategory
	}

	p, err := a.repo.InsertPrompt(ctx, models.Prompt{
		ID:         uuid.New(),
		RoomID:     room.ID,
		Category:   slot.Category,
		PromptText: text,
		SetterID:   setterID,
		TurnIndex:  slot.TurnIndex,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrPromptAlreadySubmitted
		}
		return nil, fmt.Errorf("failed to insert prompt: %w", err)
	}

	log.Info().
		Str("room_id", room.ID.String()).
		Str("category", slot.Category).
		Int("turn_index", slot.TurnIndex).
		Msg("prompt submitted")
	return p, nil
}

// ListPrompts returns the room's prompts ordered by turn index.
func (a *App) ListPrompts(ctx context.Context, roomID uuid.UUID) ([]models.Prompt, error) {
	prompts, err := a.repo.ListPrompts(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	return prompts, nil
}

// FinalizeIfComplete assigns drawers and starts play once every category
// has a prompt. Running it again, or concurrently, is a no-op: drawers are
// written only where unset and the status change is conditional.
func (a *App) FinalizeIfComplete(ctx context.Context, room models.Room, players []models.Player) (bool, error) {
	if room.Status != models.RoomStatusSettingPrompts {
		return false, nil
	}

	prompts, err := a.repo.ListPrompts(ctx, room.ID)
	if err != nil {
		return false, fmt.Errorf("failed to list prompts: %w", err)
	}
	if !IsComplete(prompts, Categories(len(players))) {
		return false, nil
	}

	assignments, err := AssignDrawers(prompts, players)
	if err != nil {
		return false, err
	}
	for _, as := range assignments {
		if err := a.repo.SetDrawer(ctx, as.PromptID, as.DrawerID); err != nil {
			return false, fmt.Errorf("failed to set drawer for prompt %s: %w", as.PromptID, err)
		}
	}

	started, err := a.repo.BeginPlay(ctx, room.ID)
	if err != nil {
		return false, fmt.Errorf("failed to start play: %w", err)
	}
	if !started {
		log.Debug().Str("room_id", room.ID.String()).Msg("prompt setting already finalized")
		return false, nil
	}

	log.Info().
		Str("room_id", room.ID.String()).
		Int("prompts", len(prompts)).
		Msg("all prompts set, game started")
	return true, nil
}
