package room_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/room"
	"github.com/mcdev12/drawrelay/go/internal/store"
	"github.com/mcdev12/drawrelay/go/internal/store/memory"
)

func newApp() (*room.App, *memory.Store) {
	s := memory.New(nil, nil)
	return room.NewApp(s, room.Themes{}), s
}

func strPtr(s string) *string { return &s }

func defaultSettings() models.RoomSettings {
	return models.RoomSettings{
		Theme:     strPtr("ネコ"),
		TimeLimit: models.DefaultTimeLimit,
		Rounds:    1,
		GameMode:  models.GameModeNormal,
	}
}

func createWithGuests(t *testing.T, app *room.App, guests int) (*room.Membership, []uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	host := uuid.New()
	m, err := app.CreateRoom(ctx, room.CreateRoomRequest{SessionID: host, Username: "host"})
	require.NoError(t, err)

	ids := []uuid.UUID{host}
	for i := 0; i < guests; i++ {
		id := uuid.New()
		_, err := app.JoinRoom(ctx, room.JoinRoomRequest{SessionID: id, Username: fmt.Sprintf("g%d", i), RoomCode: m.Room.RoomCode})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return m, ids
}

func TestCreateRoom_Defaults(t *testing.T) {
	app, _ := newApp()
	m, _ := createWithGuests(t, app, 0)

	assert.Equal(t, models.RoomStatusWaiting, m.Room.Status)
	assert.Equal(t, 0, m.Room.CurrentTurn)
	assert.Equal(t, 10, m.Room.TimeLimit)
	assert.Equal(t, 1, m.Room.Rounds)
	assert.Equal(t, models.GameModeNormal, m.Room.GameMode)
	assert.False(t, m.Room.AllowColorChange)
	assert.Len(t, m.Room.RoomCode, 4)
	require.Len(t, m.Players, 1)
	assert.True(t, m.Players[0].IsHost)
	assert.Equal(t, 0, m.Players[0].TurnOrder)
}

func TestGenerateRoomCode_Range(t *testing.T) {
	app, _ := newApp()
	for i := 0; i < 500; i++ {
		code := app.GenerateRoomCode()
		require.Len(t, code, 4)
		assert.GreaterOrEqual(t, code, "1000")
		assert.LessOrEqual(t, code, "9999")
	}
}

func TestJoinRoom_TurnOrderIsDense(t *testing.T) {
	app, _ := newApp()
	m, ids := createWithGuests(t, app, 3)

	players, err := app.ListPlayers(context.Background(), m.Room.ID)
	require.NoError(t, err)
	require.Len(t, players, 4)
	for i, p := range players {
		assert.Equal(t, i, p.TurnOrder)
		assert.Equal(t, ids[i], p.ID)
	}
}

func TestJoinRoom_FullRoomWritesNothing(t *testing.T) {
	ctx := context.Background()
	app, s := newApp()
	m, _ := createWithGuests(t, app, models.MaxPlayers-1)

	ninth := uuid.New()
	_, err := app.JoinRoom(ctx, room.JoinRoomRequest{SessionID: ninth, Username: "late", RoomCode: m.Room.RoomCode})
	assert.ErrorIs(t, err, room.ErrRoomFull)
	assert.Equal(t, "この部屋は満員です（最大8人）。", room.UserMessage(err))

	n, err := app.CountPlayers(ctx, m.Room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MaxPlayers, n)

	_, err = s.GetPlayer(ctx, ninth)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJoinRoom_Errors(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp()
	m, ids := createWithGuests(t, app, 1)

	_, err := app.JoinRoom(ctx, room.JoinRoomRequest{SessionID: uuid.New(), Username: "x", RoomCode: "12"})
	assert.ErrorIs(t, err, room.ErrInvalidRoomCode)

	code := "1000"
	if m.Room.RoomCode == code {
		code = "1001"
	}
	_, err = app.JoinRoom(ctx, room.JoinRoomRequest{SessionID: uuid.New(), Username: "x", RoomCode: code})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	_, err = app.JoinRoom(ctx, room.JoinRoomRequest{SessionID: uuid.New(), Username: "  ", RoomCode: m.Room.RoomCode})
	assert.ErrorIs(t, err, room.ErrInvalidUsername)
	assert.True(t, room.IsValidation(err))

	_, err = app.StartGame(ctx, room.StartGameRequest{SessionID: ids[0], RoomID: m.Room.ID, Settings: defaultSettings()})
	require.NoError(t, err)

	_, err = app.JoinRoom(ctx, room.JoinRoomRequest{SessionID: uuid.New(), Username: "x", RoomCode: m.Room.RoomCode})
	assert.ErrorIs(t, err, room.ErrRoomAlreadyStarted)
}

func TestJoinRoom_AlreadyMember(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp()
	m, ids := createWithGuests(t, app, 1)

	again, err := app.JoinRoom(ctx, room.JoinRoomRequest{SessionID: ids[1], Username: "renamed", RoomCode: m.Room.RoomCode})
	require.NoError(t, err)
	require.Len(t, again.Players, 2)
	assert.Equal(t, "g0", again.Players[1].Username)
	assert.Equal(t, 1, again.Players[1].TurnOrder)
}

func TestJoinRoom_MovesMembership(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp()
	a, ids := createWithGuests(t, app, 1)
	b, _ := createWithGuests(t, app, 0)

	_, err := app.JoinRoom(ctx, room.JoinRoomRequest{SessionID: ids[1], Username: "mover", RoomCode: b.Room.RoomCode})
	require.NoError(t, err)

	n, _ := app.CountPlayers(ctx, a.Room.ID)
	assert.Equal(t, 1, n)
	n, _ = app.CountPlayers(ctx, b.Room.ID)
	assert.Equal(t, 2, n)
}

func turnOrders(t *testing.T, app *room.App, roomID uuid.UUID) ([]int, []uuid.UUID) {
	t.Helper()
	players, err := app.ListPlayers(context.Background(), roomID)
	require.NoError(t, err)
	orders := make([]int, len(players))
	ids := make([]uuid.UUID, len(players))
	for i, p := range players {
		orders[i] = p.TurnOrder
		ids[i] = p.ID
	}
	return orders, ids
}

func TestJoinRoom_MoveKeepsSourceOrderDense(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp()
	a, ids := createWithGuests(t, app, 2)
	b, _ := createWithGuests(t, app, 0)

	_, err := app.JoinRoom(ctx, room.JoinRoomRequest{SessionID: ids[1], Username: "mover", RoomCode: b.Room.RoomCode})
	require.NoError(t, err)

	orders, members := turnOrders(t, app, a.Room.ID)
	assert.Equal(t, []int{0, 1}, orders)
	assert.Equal(t, []uuid.UUID{ids[0], ids[2]}, members)

	late := uuid.New()
	_, err = app.JoinRoom(ctx, room.JoinRoomRequest{SessionID: late, Username: "late", RoomCode: a.Room.RoomCode})
	require.NoError(t, err)

	orders, members = turnOrders(t, app, a.Room.ID)
	assert.Equal(t, []int{0, 1, 2}, orders)
	assert.Equal(t, late, members[2])

	orders, _ = turnOrders(t, app, b.Room.ID)
	assert.Equal(t, []int{0, 1}, orders)
}

func TestCreateRoom_MoveKeepsSourceOrderDense(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp()
	a, ids := createWithGuests(t, app, 2)

	m, err := app.CreateRoom(ctx, room.CreateRoomRequest{SessionID: ids[1], Username: "mover"})
	require.NoError(t, err)
	assert.Equal(t, 0, m.Players[0].TurnOrder)

	orders, members := turnOrders(t, app, a.Room.ID)
	assert.Equal(t, []int{0, 1}, orders)
	assert.Equal(t, []uuid.UUID{ids[0], ids[2]}, members)
}

func TestJoinRoom_MoveOutOfStartedRoomKeepsOrder(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp()
	a, ids := createWithGuests(t, app, 2)
	_, err := app.StartGame(ctx, room.StartGameRequest{SessionID: ids[0], RoomID: a.Room.ID, Settings: defaultSettings()})
	require.NoError(t, err)
	b, _ := createWithGuests(t, app, 0)

	_, err = app.JoinRoom(ctx, room.JoinRoomRequest{SessionID: ids[1], Username: "mover", RoomCode: b.Room.RoomCode})
	require.NoError(t, err)

	orders, _ := turnOrders(t, app, a.Room.ID)
	assert.Equal(t, []int{0, 2}, orders)
}

func TestLeaveRoom_CompactsWaitingRoom(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp()
	m, ids := createWithGuests(t, app, 3)

	require.NoError(t, app.LeaveRoom(ctx, ids[1]))

	players, err := app.ListPlayers(ctx, m.Room.ID)
	require.NoError(t, err)
	require.Len(t, players, 3)
	for i, p := range players {
		assert.Equal(t, i, p.TurnOrder)
	}
	assert.Equal(t, []uuid.UUID{ids[0], ids[2], ids[3]}, []uuid.UUID{players[0].ID, players[1].ID, players[2].ID})

	assert.ErrorIs(t, app.LeaveRoom(ctx, ids[1]), room.ErrNotInRoom)
}

func TestStartGame_Validation(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp()
	m, ids := createWithGuests(t, app, 0)

	_, err := app.StartGame(ctx, room.StartGameRequest{SessionID: ids[0], RoomID: m.Room.ID, Settings: defaultSettings()})
	assert.ErrorIs(t, err, room.ErrNotEnoughPlayers)

	guest := uuid.New()
	_, err = app.JoinRoom(ctx, room.JoinRoomRequest{SessionID: guest, Username: "g", RoomCode: m.Room.RoomCode})
	require.NoError(t, err)

	_, err = app.StartGame(ctx, room.StartGameRequest{SessionID: guest, RoomID: m.Room.ID, Settings: defaultSettings()})
	assert.ErrorIs(t, err, room.ErrNotHost)

	noTheme := defaultSettings()
	noTheme.Theme = strPtr("   ")
	_, err = app.StartGame(ctx, room.StartGameRequest{SessionID: ids[0], RoomID: m.Room.ID, Settings: noTheme})
	assert.ErrorIs(t, err, room.ErrThemeRequired)

	bad := defaultSettings()
	bad.TimeLimit = 61
	_, err = app.StartGame(ctx, room.StartGameRequest{SessionID: ids[0], RoomID: m.Room.ID, Settings: bad})
	assert.ErrorIs(t, err, room.ErrInvalidSettings)

	settings := defaultSettings()
	settings.Rounds = 3
	settings.GameMode = models.GameModeOneColor
	settings.AllowColorChange = true
	started, err := app.StartGame(ctx, room.StartGameRequest{SessionID: ids[0], RoomID: m.Room.ID, Settings: settings})
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusPlaying, started.Status)
	assert.Equal(t, 3, started.Rounds)
	assert.Equal(t, "ネコ", started.ThemeText())
	assert.True(t, started.AllowColorChange)

	_, err = app.StartGame(ctx, room.StartGameRequest{SessionID: ids[0], RoomID: m.Room.ID, Settings: settings})
	assert.ErrorIs(t, err, room.ErrRoomAlreadyStarted)
}

func TestStartGame_RelayEntersPromptSetting(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp()
	m, ids := createWithGuests(t, app, 3)

	settings := defaultSettings()
	settings.Theme = nil
	settings.Rounds = 4
	settings.GameMode = models.GameModeItsuDoko
	started, err := app.StartGame(ctx, room.StartGameRequest{SessionID: ids[0], RoomID: m.Room.ID, Settings: settings})
	require.NoError(t, err)

	assert.Equal(t, models.RoomStatusSettingPrompts, started.Status)
	assert.Equal(t, models.RelayTheme, started.ThemeText())
	assert.Equal(t, 1, started.Rounds)
	assert.Equal(t, 0, started.CurrentTurn)
}

func TestUpdateSettings(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp()
	m, ids := createWithGuests(t, app, 1)

	s := defaultSettings()
	s.TimeLimit = 30
	updated, err := app.UpdateSettings(ctx, room.UpdateSettingsRequest{SessionID: ids[0], RoomID: m.Room.ID, Settings: s})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.TimeLimit)
	assert.Equal(t, models.RoomStatusWaiting, updated.Status)

	_, err = app.UpdateSettings(ctx, room.UpdateSettingsRequest{SessionID: ids[1], RoomID: m.Room.ID, Settings: s})
	assert.ErrorIs(t, err, room.ErrNotHost)

	s.GameMode = "speed"
	_, err = app.UpdateSettings(ctx, room.UpdateSettingsRequest{SessionID: ids[0], RoomID: m.Room.ID, Settings: s})
	assert.ErrorIs(t, err, room.ErrInvalidSettings)
}

func TestRandomTheme(t *testing.T) {
	app := room.NewApp(memory.New(nil, nil), room.Themes{Easy: []string{"a"}, Hard: []string{"b"}})
	assert.Equal(t, "a", app.RandomTheme(room.DifficultyEasy))
	assert.Equal(t, "b", app.RandomTheme(room.DifficultyHard))

	app, _ = newApp()
	assert.Contains(t, room.DefaultThemes.Hard, app.RandomTheme(room.DifficultyHard))
}

func TestRequests_RequireSessionAndRoom(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp()
	m, ids := createWithGuests(t, app, 1)

	_, err := app.CreateRoom(ctx, room.CreateRoomRequest{Username: "host"})
	assert.ErrorIs(t, err, room.ErrInvalidRequest)
	assert.True(t, room.IsValidation(err))

	_, err = app.JoinRoom(ctx, room.JoinRoomRequest{Username: "x", RoomCode: m.Room.RoomCode})
	assert.ErrorIs(t, err, room.ErrInvalidRequest)

	_, err = app.JoinRoom(ctx, room.JoinRoomRequest{Username: "x", RoomCode: "12ab"})
	assert.ErrorIs(t, err, room.ErrInvalidRoomCode)

	_, err = app.StartGame(ctx, room.StartGameRequest{SessionID: ids[0], Settings: defaultSettings()})
	assert.ErrorIs(t, err, room.ErrInvalidRequest)
}
