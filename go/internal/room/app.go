package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/drawrelay/go/internal/identity"
	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/store"
	"github.com/mcdev12/drawrelay/go/internal/turn"
)

// Repository defines what the room app layer needs from storage
type Repository interface {
	// CreateRoom returns store.ErrDuplicate when the room code is taken.
	CreateRoom(ctx context.Context, room models.Room) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	ListPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error)
	CountPlayers(ctx context.Context, roomID uuid.UUID) (int, error)
	// UpsertPlayer inserts or overwrites the membership row of a session.
	UpsertPlayer(ctx context.Context, p models.Player) (*models.Player, error)
	DeletePlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	CompactTurnOrder(ctx context.Context, roomID uuid.UUID) error
	// UpdateRoomSettings and StartRoom only apply to waiting rooms and
	// return store.ErrConditionFailed otherwise.
	UpdateRoomSettings(ctx context.Context, roomID uuid.UUID, s models.RoomSettings) (*models.Room, error)
	StartRoom(ctx context.Context, roomID uuid.UUID, p StartRoomParams) (*models.Room, error)
}

// App handles room and player directory business logic
type App struct {
	repo     Repository
	themes   Themes
	validate *validator.Validate
	intn     func(n int) int
}

// NewApp creates a new room App
func NewApp(repo Repository, themes Themes) *App {
	if len(themes.Easy) == 0 {
		themes.Easy = DefaultThemes.Easy
	}
	if len(themes.Hard) == 0 {
		themes.Hard = DefaultThemes.Hard
	}
	return &App{
		repo:     repo,
		themes:   themes,
		validate: validator.New(),
		intn:     rand.IntN,
	}
}

// GenerateRoomCode draws a code uniformly from 1000-9999.
func (a *App) GenerateRoomCode() string {
	return strconv.Itoa(1000 + a.intn(9000))
}

// RandomTheme picks a theme from the list for the difficulty.
func (a *App) RandomTheme(d Difficulty) string {
	list := a.themes.Easy
	if d == DifficultyHard {
		list = a.themes.Hard
	}
	return list[a.intn(len(list))]
}

// CreateRoom creates a waiting room and makes the session its host.
// Collisions on the room code are retried once.
func (a *App) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Membership, error) {
	if err := a.validateRequest(req); err != nil {
		return nil, err
	}
	username, err := identity.NormalizeUsername(req.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUsername, err)
	}

	prev, err := a.currentMembership(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	var room *models.Room
	for attempt := 0; attempt < 2; attempt++ {
		room, err = a.repo.CreateRoom(ctx, models.NewRoom(a.GenerateRoomCode()))
		if !errors.Is(err, store.ErrDuplicate) {
			break
		}
		log.Warn().Int("attempt", attempt+1).Msg("room code collision")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	host, err := a.repo.UpsertPlayer(ctx, models.Player{
		ID:        req.SessionID,
		RoomID:    room.ID,
		Username:  username,
		TurnOrder: 0,
		IsHost:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add host: %w", err)
	}
	a.compactAfterMove(ctx, prev, room.ID)

	log.Info().
		Str("room_id", room.ID.String()).
		Str("room_code", room.RoomCode).
		Str("host_id", host.ID.String()).
		Msg("room created")
	return &Membership{Room: *room, Players: []models.Player{*host}}, nil
}

// JoinRoom adds the session to a waiting room. A session that is already a
// member gets the room back unchanged. The capacity check counts rows
// and writes nothing when the room is full.
func (a *App) JoinRoom(ctx context.Context, req JoinRoomRequest) (*Membership, error) {
	req.RoomCode = strings.TrimSpace(req.RoomCode)
	if err := a.validateRequest(req); err != nil {
		return nil, err
	}
	username, err := identity.NormalizeUsername(req.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUsername, err)
	}

	room, err := a.repo.GetRoomByCode(ctx, req.RoomCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to look up room: %w", err)
	}
	if room.Status != models.RoomStatusWaiting {
		return nil, ErrRoomAlreadyStarted
	}

	existing, err := a.currentMembership(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.RoomID == room.ID {
		return a.membership(ctx, *room)
	}

	count, err := a.repo.CountPlayers(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count players: %w", err)
	}
	if count >= models.MaxPlayers {
		return nil, ErrRoomFull
	}

	if _, err := a.repo.UpsertPlayer(ctx, models.Player{
		ID:        req.SessionID,
		RoomID:    room.ID,
		Username:  username,
		TurnOrder: count,
		IsHost:    false,
	}); err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}
	a.compactAfterMove(ctx, existing, room.ID)

	log.Info().
		Str("room_id", room.ID.String()).
		Str("player_id", req.SessionID.String()).
		Int("turn_order", count).
		Msg("player joined room")
	return a.membership(ctx, *room)
}

// LeaveRoom deletes the session's membership row. Remaining players of a
// waiting room are renumbered so turn order stays dense.
func (a *App) LeaveRoom(ctx context.Context, sessionID uuid.UUID) error {
	p, err := a.repo.DeletePlayer(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotInRoom
		}
		return fmt.Errorf("failed to leave room: %w", err)
	}

	if err := a.compactIfWaiting(ctx, p.RoomID); err != nil {
		return err
	}

	log.Info().
		Str("room_id", p.RoomID.String()).
		Str("player_id", sessionID.String()).
		Bool("was_host", p.IsHost).
		Msg("player left room")
	return nil
}

// currentMembership returns the session's membership row, or nil when the
// session is in no room.
func (a *App) currentMembership(ctx context.Context, sessionID uuid.UUID) (*models.Player, error) {
	p, err := a.repo.GetPlayer(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up player: %w", err)
	}
	return p, nil
}

// compactAfterMove renumbers the room a session just moved out of. The new
// membership is already written, so a failure is logged and not returned.
func (a *App) compactAfterMove(ctx context.Context, prev *models.Player, to uuid.UUID) {
	if prev == nil || prev.RoomID == to {
		return
	}
	if err := a.compactIfWaiting(ctx, prev.RoomID); err != nil {
		log.Error().
			Err(err).
			Str("room_id", prev.RoomID.String()).
			Str("player_id", prev.ID.String()).
			Msg("failed to compact room after move")
		return
	}
	log.Info().
		Str("from_room_id", prev.RoomID.String()).
		Str("to_room_id", to.String()).
		Str("player_id", prev.ID.String()).
		Msg("player moved rooms")
}

// compactIfWaiting keeps turn order dense in a lobby. Rooms already in play
// keep their gaps, since turn indices are derived from the order.
func (a *App) compactIfWaiting(ctx context.Context, roomID uuid.UUID) error {
	room, err := a.repo.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get room: %w", err)
	}
	if room.Status != models.RoomStatusWaiting {
		return nil
	}
	if err := a.repo.CompactTurnOrder(ctx, roomID); err != nil {
		return fmt.Errorf("failed to compact turn order: %w", err)
	}
	return nil
}

// UpdateSettings writes the host's lobby configuration.
func (a *App) UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (*models.Room, error) {
	if err := a.validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := a.requireHost(ctx, req.SessionID, req.RoomID); err != nil {
		return nil, err
	}

	room, err := a.repo.UpdateRoomSettings(ctx, req.RoomID, req.Settings)
	if err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return nil, ErrRoomAlreadyStarted
		}
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return room, nil
}

// StartGame moves a waiting room into play. Relay rooms enter prompt
// setting with the relay banner as theme and a single round; every other
// mode starts playing at turn 0 and needs a theme.
func (a *App) StartGame(ctx context.Context, req StartGameRequest) (*models.Room, error) {
	if err := a.validateRequest(req); err != nil {
		return nil, err
	}
	room, err := a.requireHost(ctx, req.SessionID, req.RoomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomStatusWaiting {
		return nil, ErrRoomAlreadyStarted
	}

	count, err := a.repo.CountPlayers(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count players: %w", err)
	}
	if count < models.MinPlayers {
		return nil, ErrNotEnoughPlayers
	}

	settings := req.Settings
	status := turn.StartStatus(settings.GameMode)
	if err := turn.ValidateTransition(settings.GameMode, room.Status, status); err != nil {
		return nil, err
	}

	var theme string
	if settings.GameMode == models.GameModeItsuDoko {
		theme = models.RelayTheme
		settings.Rounds = models.MinRounds
	} else {
		if settings.Theme != nil {
			theme = strings.TrimSpace(*settings.Theme)
		}
		if theme == "" {
			return nil, ErrThemeRequired
		}
	}
	settings.Theme = &theme

	started, err := a.repo.StartRoom(ctx, room.ID, StartRoomParams{
		Status:   status,
		Theme:    &theme,
		Settings: settings,
	})
	if err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return nil, ErrRoomAlreadyStarted
		}
		return nil, fmt.Errorf("failed to start game: %w", err)
	}

	log.Info().
		Str("room_id", room.ID.String()).
		Str("status", string(started.Status)).
		Str("game_mode", string(started.GameMode)).
		Int("players", count).
		Int("rounds", started.Rounds).
		Msg("game started")
	return started, nil
}

// GetRoom returns a room by id.
func (a *App) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// ListPlayers returns the room's players in turn order.
func (a *App) ListPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error) {
	players, err := a.repo.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return models.SortByTurnOrder(players), nil
}

// CountPlayers answers with a counted query.
func (a *App) CountPlayers(ctx context.Context, roomID uuid.UUID) (int, error) {
	n, err := a.repo.CountPlayers(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return n, nil
}

// GetMembership returns the room with its players.
func (a *App) GetMembership(ctx context.Context, roomID uuid.UUID) (*Membership, error) {
	room, err := a.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return a.membership(ctx, *room)
}

func (a *App) membership(ctx context.Context, room models.Room) (*Membership, error) {
	players, err := a.ListPlayers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	return &Membership{Room: room, Players: players}, nil
}

func (a *App) requireHost(ctx context.Context, sessionID, roomID uuid.UUID) (*models.Room, error) {
	room, err := a.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	p, err := a.repo.GetPlayer(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotHost
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	if p.RoomID != room.ID || !p.IsHost {
		return nil, ErrNotHost
	}
	return room, nil
}

// validateRequest runs the request's validate tags, including those of the
// embedded settings. A bad room code wins over a missing id, which wins
// over bad settings.
func (a *App) validateRequest(req any) error {
	err := a.validate.Struct(req)
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}
	if failed(fields, "RoomCode") {
		return fmt.Errorf("%w: %w", ErrInvalidRoomCode, err)
	}
	if failed(fields, "SessionID", "RoomID") {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
}

func failed(fields validator.ValidationErrors, names ...string) bool {
	for _, f := range fields {
		if slices.Contains(names, f.StructField()) {
			return true
		}
	}
	return false
}
