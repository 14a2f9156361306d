package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/mcdev12/drawrelay/go/internal/coordinator"
	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/prompt"
	"github.com/mcdev12/drawrelay/go/internal/realtime"
	"github.com/mcdev12/drawrelay/go/internal/room"
	"github.com/mcdev12/drawrelay/go/internal/store"
	"github.com/mcdev12/drawrelay/go/internal/store/memory"
	"github.com/mcdev12/drawrelay/go/internal/stroke"
)

type testServer struct {
	*httptest.Server
	bus *realtime.Bus
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := realtime.NewBus()
	s := memory.New(nil, bus)
	prompts := prompt.NewApp(s)
	svc := NewService(cfg, Deps{
		Rooms:       room.NewApp(s, room.Themes{}),
		Strokes:     stroke.NewApp(s),
		Prompts:     prompts,
		Coordinator: coordinator.NewHostCoordinator(s, prompts),
	}, bus)
	go func() { _ = svc.Start(ctx) }()
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, bus: bus}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// lobby creates a room with n players and returns it with the session ids.
func (ts *testServer) lobby(t *testing.T, n int) (models.Room, []uuid.UUID) {
	t.Helper()
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	var m room.Membership
	status := ts.do(t, http.MethodPost, "/api/rooms", room.CreateRoomRequest{SessionID: ids[0], Username: "host"}, &m)
	require.Equal(t, http.StatusCreated, status)
	for i, id := range ids[1:] {
		status := ts.do(t, http.MethodPost, "/api/rooms/join",
			room.JoinRoomRequest{SessionID: id, Username: fmt.Sprintf("guest%d", i), RoomCode: m.Room.RoomCode}, nil)
		require.Equal(t, http.StatusOK, status)
	}
	return m.Room, ids
}

func TestHandler_RoomLifecycle(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())
	r, ids := ts.lobby(t, 2)
	base := "/api/rooms/" + r.ID.String()

	t.Run("JoinValidation", func(t *testing.T) {
		var e ErrorResponse
		status := ts.do(t, http.MethodPost, "/api/rooms/join",
			room.JoinRoomRequest{SessionID: uuid.New(), Username: "x", RoomCode: "12"}, &e)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "ルームコードを入力してください", e.Message)

		status = ts.do(t, http.MethodPost, "/api/rooms/join",
			room.JoinRoomRequest{SessionID: uuid.New(), Username: "x", RoomCode: "0000"}, &e)
		assert.Equal(t, http.StatusNotFound, status)
	})

	theme := "ネコ"
	settings := models.RoomSettings{Theme: &theme, TimeLimit: 10, Rounds: 1, GameMode: models.GameModeNormal}

	t.Run("StartRequiresHost", func(t *testing.T) {
		status := ts.do(t, http.MethodPost, base+"/start", room.StartGameRequest{SessionID: ids[1], Settings: settings}, nil)
		assert.Equal(t, http.StatusForbidden, status)
	})

	var started models.Room
	status := ts.do(t, http.MethodPost, base+"/start", room.StartGameRequest{SessionID: ids[0], Settings: settings}, &started)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.RoomStatusPlaying, started.Status)

	var state StateResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, base+"/state", nil, &state))
	assert.Equal(t, "ターン 1/2", state.Label)
	require.NotNil(t, state.ActivePlayer)
	assert.Equal(t, ids[0], state.ActivePlayer.ID)

	t.Run("Strokes", func(t *testing.T) {
		body := SubmitStrokeBody{PlayerID: ids[0], Points: []models.Point{{X: 1, Y: 1}, {X: 50, Y: 50}}, Color: "#ef4444"}
		assert.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, base+"/strokes", body, nil))

		body.Points = body.Points[:1]
		assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, base+"/strokes", body, nil))

		var strokes []models.Stroke
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, base+"/strokes", nil, &strokes))
		assert.Len(t, strokes, 1)
	})

	t.Run("Images", func(t *testing.T) {
		for _, path := range []string{base + "/canvas.png?size=100", base + "/qr.png"} {
			resp, err := ts.Client().Get(ts.URL + path)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode, path)
			assert.Equal(t, "image/png", resp.Header.Get("Content-Type"), path)
		}
		assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, base+"/canvas.png?size=0", nil, nil))
	})

	t.Run("Advance", func(t *testing.T) {
		stale := AdvanceRequest{SessionID: ids[0], ExpectedTurn: 5}
		assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, base+"/advance", stale, nil))
		guest := AdvanceRequest{SessionID: ids[1], ExpectedTurn: 0}
		assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, base+"/advance", guest, nil))

		var after models.Room
		ok := AdvanceRequest{SessionID: ids[0], ExpectedTurn: 0}
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/advance", ok, &after))
		assert.Equal(t, 1, after.CurrentTurn)

		ok.ExpectedTurn = 1
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/advance", ok, &after))
		assert.Equal(t, models.RoomStatusFinished, after.Status)
	})

	t.Run("Leave", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, "/api/leave", LeaveRequest{SessionID: ids[1]}, nil))
		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/leave", LeaveRequest{SessionID: ids[1]}, nil))
	})
}

func TestHandler_RelayPrompts(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())
	r, ids := ts.lobby(t, 3)
	base := "/api/rooms/" + r.ID.String()

	var started models.Room
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/start",
		room.StartGameRequest{SessionID: ids[0], Settings: models.RoomSettings{TimeLimit: 10, Rounds: 3, GameMode: models.GameModeItsuDoko}}, &started))
	assert.Equal(t, models.RoomStatusSettingPrompts, started.Status)
	assert.Equal(t, 1, started.Rounds)

	// Finalizing early leaves the room collecting prompts.
	var room0 models.Room
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/prompts/finalize", FinalizeRequest{SessionID: ids[0]}, &room0))
	assert.Equal(t, models.RoomStatusSettingPrompts, room0.Status)

	for i, id := range ids {
		var view PromptsResponse
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, base+"/prompts?player_id="+id.String(), nil, &view))
		require.NotNil(t, view.MySlot)
		assert.Equal(t, 3, view.Total)
		assert.Equal(t, i, view.Submitted)
		assert.Empty(t, view.Revealed)

		body := SubmitPromptBody{SessionID: id, Text: fmt.Sprintf("お題%d", i)}
		require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, base+"/prompts", body, nil))
		assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, base+"/prompts", body, nil))
	}

	var playing models.Room
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/prompts/finalize", FinalizeRequest{SessionID: ids[0]}, &playing))
	assert.Equal(t, models.RoomStatusPlaying, playing.Status)
	assert.Equal(t, 0, playing.CurrentTurn)

	assigned := 0
	for _, id := range ids {
		var view PromptsResponse
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, base+"/prompts?player_id="+id.String(), nil, &view))
		require.Len(t, view.Revealed, 1)
		assert.Equal(t, 0, view.Revealed[0].TurnIndex)
		for _, p := range view.Assigned {
			assert.NotEqual(t, id, p.SetterID)
		}
		assigned += len(view.Assigned)
	}
	assert.Equal(t, 3, assigned)
}

func TestHandler_StrokeRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectionConfig.StrokeRate = rate.Limit(0)
	cfg.ConnectionConfig.StrokeBurst = 1
	ts := newTestServer(t, cfg)
	r, ids := ts.lobby(t, 2)
	base := "/api/rooms/" + r.ID.String()

	theme := "虹"
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/start", room.StartGameRequest{
		SessionID: ids[0], Settings: models.RoomSettings{Theme: &theme, TimeLimit: 10, Rounds: 1, GameMode: models.GameModeNormal},
	}, nil))

	body := SubmitStrokeBody{PlayerID: ids[0], Points: []models.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, Color: "#ef4444"}
	assert.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, base+"/strokes", body, nil))
	assert.Equal(t, http.StatusTooManyRequests, ts.do(t, http.MethodPost, base+"/strokes", body, nil))
}

func TestWebSocket_BroadcastsRoomChanges(t *testing.T) {
	ts := newTestServer(t, DefaultConfig())
	r, ids := ts.lobby(t, 2)
	base := "/api/rooms/" + r.ID.String()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?room_id=" + r.ID.String() + "&player_id="

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+uuid.NewString(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	guest, _, err := websocket.DefaultDialer.Dial(wsURL+ids[1].String(), nil)
	require.NoError(t, err)
	defer guest.Close()
	host, _, err := websocket.DefaultDialer.Dial(wsURL+ids[0].String(), nil)
	require.NoError(t, err)
	defer host.Close()

	theme := "ロケット"
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/start", room.StartGameRequest{
		SessionID: ids[0], Settings: models.RoomSettings{Theme: &theme, TimeLimit: 10, Rounds: 1, GameMode: models.GameModeNormal},
	}, nil))

	readEvent := func(conn *websocket.Conn, want EventType) Event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		for {
			var ev Event
			require.NoError(t, conn.ReadJSON(&ev))
			if ev.Type == want {
				return ev
			}
		}
	}

	ev := readEvent(guest, EventTypeRoomChanged)
	var c realtime.Change
	require.NoError(t, json.Unmarshal(ev.Data, &c))
	var got models.Room
	require.NoError(t, c.Decode(&got))
	assert.Equal(t, models.RoomStatusPlaying, got.Status)

	require.NoError(t, host.WriteJSON(ClientMessage{
		Type: ClientMessageStroke, Points: []models.Point{{X: 3, Y: 3}, {X: 9, Y: 9}}, Color: "#22c55e",
	}))
	ev = readEvent(guest, EventTypeStrokeAdded)
	require.NoError(t, json.Unmarshal(ev.Data, &c))
	var st models.Stroke
	require.NoError(t, c.Decode(&st))
	assert.Equal(t, ids[0], st.PlayerID)
	assert.Equal(t, "#22c55e", st.Color)

	require.NoError(t, host.WriteJSON(ClientMessage{Type: ClientMessageStroke, Points: []models.Point{{X: 1, Y: 1}}, Color: "#22c55e"}))
	ev = readEvent(host, EventTypeError)
	var e ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Data, &e))
	assert.Contains(t, e.Message, stroke.ErrTooFewPoints.Error())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(fmt.Errorf("insert: %w", store.ErrUnavailable)))
	assert.Equal(t, http.StatusConflict, statusFor(room.ErrRoomFull))
	assert.Equal(t, http.StatusBadRequest, statusFor(room.ErrInvalidSettings))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("boom")))
	assert.Equal(t, "操作に失敗しました。もう一度お試しください。", userMessage(fmt.Errorf("boom")))
}
