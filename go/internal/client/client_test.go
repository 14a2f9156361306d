package client_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/drawrelay/go/internal/client"
	"github.com/mcdev12/drawrelay/go/internal/coordinator"
	"github.com/mcdev12/drawrelay/go/internal/identity"
	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/prompt"
	"github.com/mcdev12/drawrelay/go/internal/realtime"
	"github.com/mcdev12/drawrelay/go/internal/room"
	"github.com/mcdev12/drawrelay/go/internal/store/memory"
	"github.com/mcdev12/drawrelay/go/internal/stroke"
	"github.com/mcdev12/drawrelay/go/internal/turn"
)

type harness struct {
	clock   *clockwork.FakeClock
	bus     *realtime.Bus
	store   *memory.Store
	rooms   *room.App
	prompts *prompt.App
	backend client.Local
	coord   *coordinator.HostCoordinator
}

func newHarness() *harness {
	clock := clockwork.NewFakeClock()
	bus := realtime.NewBus()
	s := memory.New(clock, bus)
	rooms := room.NewApp(s, room.Themes{})
	prompts := prompt.NewApp(s)
	return &harness{
		clock:   clock,
		bus:     bus,
		store:   s,
		rooms:   rooms,
		prompts: prompts,
		backend: client.Local{Rooms: rooms, Strokes: stroke.NewApp(s), Prompts: prompts},
		coord:   coordinator.NewHostCoordinator(s, prompts),
	}
}

// setup creates a room of n players and starts one client per player.
func (h *harness) setup(t *testing.T, ctx context.Context, n int) (models.Room, []identity.Session, []*client.Client) {
	t.Helper()
	sessions := make([]identity.Session, n)
	for i := range sessions {
		sessions[i] = identity.Session{ID: uuid.New(), Username: fmt.Sprintf("p%d", i)}
	}

	m, err := h.rooms.CreateRoom(ctx, room.CreateRoomRequest{SessionID: sessions[0].ID, Username: sessions[0].Username})
	require.NoError(t, err)
	for _, s := range sessions[1:] {
		_, err := h.rooms.JoinRoom(ctx, room.JoinRoomRequest{SessionID: s.ID, Username: s.Username, RoomCode: m.Room.RoomCode})
		require.NoError(t, err)
	}

	clients := make([]*client.Client, n)
	for i, s := range sessions {
		clients[i] = client.New(client.Config{
			Session:     s,
			RoomID:      m.Room.ID,
			Backend:     h.backend,
			Feed:        h.bus,
			Coordinator: h.coord,
			Clock:       h.clock,
		})
		go func(c *client.Client) {
			assert.NoError(t, c.Run(ctx))
		}(clients[i])
	}
	require.Eventually(t, func() bool { return h.bus.Subscribers() == n }, time.Second, 5*time.Millisecond)
	return m.Room, sessions, clients
}

func (h *harness) advanceWhenTimersSet(t *testing.T, ctx context.Context, timers int, d time.Duration) {
	t.Helper()
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(waitCtx, timers))
	h.clock.Advance(d)
}

func waitSnapshot(t *testing.T, ctx context.Context, c *client.Client, cond func(client.Snapshot) bool) client.Snapshot {
	t.Helper()
	var snap client.Snapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = c.Snapshot(ctx)
		return err == nil && cond(snap)
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestClients_NormalGameFinishesAfterSixExpiries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness()
	r, sessions, clients := h.setup(t, ctx, 3)

	theme := "ネコ"
	_, err := h.rooms.StartGame(ctx, room.StartGameRequest{
		SessionID: sessions[0].ID,
		RoomID:    r.ID,
		Settings:  models.RoomSettings{Theme: &theme, TimeLimit: 10, Rounds: 2, GameMode: models.GameModeNormal},
	})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		h.advanceWhenTimersSet(t, ctx, 3, turn.IntervalDuration)

		active := clients[i%3]
		idle := clients[(i+1)%3]
		waitSnapshot(t, ctx, active, func(s client.Snapshot) bool { return s.Phase == turn.PhaseDrawing })

		_, err := active.Draw(ctx, []models.Point{{X: 10, Y: 10}, {X: 20, Y: float64(20 + i)}}, "#ef4444")
		require.NoError(t, err, "turn %d", i)
		_, err = idle.Draw(ctx, []models.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, "#ef4444")
		assert.ErrorIs(t, err, client.ErrNotYourTurn)

		h.advanceWhenTimersSet(t, ctx, 3, 10*time.Second)
	}

	require.Eventually(t, func() bool {
		got, err := h.store.GetRoom(ctx, r.ID)
		return err == nil && got.Status == models.RoomStatusFinished
	}, 2*time.Second, 5*time.Millisecond)

	got, err := h.store.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.CurrentTurn)

	for _, c := range clients {
		snap := waitSnapshot(t, ctx, c, func(s client.Snapshot) bool {
			return s.Room.Status == models.RoomStatusFinished && s.Strokes == 6
		})
		assert.True(t, snap.State.Finished)
		assert.Equal(t, turn.PhaseFinished, snap.Phase)
	}
}

func TestClients_RelayPromptsThenPlay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness()
	r, sessions, clients := h.setup(t, ctx, 4)

	_, err := h.rooms.StartGame(ctx, room.StartGameRequest{
		SessionID: sessions[0].ID,
		RoomID:    r.ID,
		Settings:  models.RoomSettings{TimeLimit: 10, Rounds: 3, GameMode: models.GameModeItsuDoko},
	})
	require.NoError(t, err)

	for i, c := range clients {
		snap := waitSnapshot(t, ctx, c, func(s client.Snapshot) bool {
			return s.Room.Status == models.RoomStatusSettingPrompts
		})
		require.NotNil(t, snap.MySlot)
		_, err := c.SubmitPrompt(ctx, fmt.Sprintf("お題%d", i))
		require.NoError(t, err)
	}

	for _, c := range clients {
		snap := waitSnapshot(t, ctx, c, func(s client.Snapshot) bool {
			return s.Room.Status == models.RoomStatusPlaying
		})
		assert.Equal(t, 0, snap.Room.CurrentTurn)
		assert.Equal(t, 1, snap.Room.Rounds)
		assert.Equal(t, 4, snap.State.TotalTurns)
		assert.Equal(t, models.RelayTheme, snap.Room.ThemeText())
	}

	prompts, err := h.prompts.ListPrompts(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, prompts, 4)
	cats := make([]string, 0, 4)
	for _, p := range prompts {
		cats = append(cats, p.Category)
		require.NotNil(t, p.DrawerID)
		assert.NotEqual(t, p.SetterID, *p.DrawerID)
	}
	assert.Equal(t, []string{"いつ", "どこで", "だれが", "何をした"}, cats)
}

func TestClients_OneColorPickGatesCountdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness()
	r, sessions, clients := h.setup(t, ctx, 2)

	theme := "虹"
	_, err := h.rooms.StartGame(ctx, room.StartGameRequest{
		SessionID: sessions[0].ID,
		RoomID:    r.ID,
		Settings: models.RoomSettings{
			Theme: &theme, TimeLimit: 5, Rounds: 2,
			GameMode: models.GameModeOneColor, AllowColorChange: true,
		},
	})
	require.NoError(t, err)

	snap := waitSnapshot(t, ctx, clients[0], func(s client.Snapshot) bool { return s.Phase == turn.PhaseColorPick })
	assert.True(t, snap.NeedsColor)
	assert.True(t, snap.IsMyTurn)

	other := waitSnapshot(t, ctx, clients[1], func(s client.Snapshot) bool { return s.Phase == turn.PhaseInterval })
	assert.False(t, other.NeedsColor)

	_, err = clients[0].Draw(ctx, []models.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, "#ef4444")
	assert.ErrorIs(t, err, client.ErrColorNotPicked)

	require.NoError(t, clients[0].PickColor(ctx, "#22c55e"))
	snap = waitSnapshot(t, ctx, clients[0], func(s client.Snapshot) bool { return s.Phase == turn.PhaseInterval })
	assert.False(t, snap.NeedsColor)
	assert.Equal(t, "#22c55e", snap.Color)
}
