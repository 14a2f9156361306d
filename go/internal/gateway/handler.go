package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"

	"github.com/mcdev12/drawrelay/go/internal/coordinator"
	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/prompt"
	"github.com/mcdev12/drawrelay/go/internal/room"
	"github.com/mcdev12/drawrelay/go/internal/stroke"
	"github.com/mcdev12/drawrelay/go/internal/turn"
)

const (
	maxBodyBytes = 256 * 1024
	qrSize       = 320
	maxPNGSize   = 2048
	maxLimiters  = 10000
)

// Deps are the application services behind the HTTP API.
type Deps struct {
	Rooms       *room.App
	Strokes     *stroke.App
	Prompts     *prompt.App
	Coordinator coordinator.Coordinator
	Elector     coordinator.Elector
	// PublicURL is the base of join links; derived from the request when empty.
	PublicURL string
}

// Handler serves the room HTTP API.
type Handler struct {
	deps     Deps
	limiters *limiterSet
}

// NewHandler creates the HTTP API handler.
func NewHandler(deps Deps, strokeRate rate.Limit, strokeBurst int) *Handler {
	if deps.Elector == nil {
		deps.Elector = coordinator.HostElector{}
	}
	return &Handler{deps: deps, limiters: newLimiterSet(strokeRate, strokeBurst)}
}

// RegisterRoutes registers the API routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rooms", h.createRoom)
	mux.HandleFunc("POST /api/rooms/join", h.joinRoom)
	mux.HandleFunc("POST /api/leave", h.leaveRoom)
	mux.HandleFunc("GET /api/themes/random", h.randomTheme)
	mux.HandleFunc("GET /api/rooms/{id}", h.getRoom)
	mux.HandleFunc("GET /api/rooms/{id}/state", h.getState)
	mux.HandleFunc("PUT /api/rooms/{id}/settings", h.updateSettings)
	mux.HandleFunc("POST /api/rooms/{id}/start", h.startGame)
	mux.HandleFunc("POST /api/rooms/{id}/advance", h.advanceTurn)
	mux.HandleFunc("GET /api/rooms/{id}/strokes", h.listStrokes)
	mux.HandleFunc("POST /api/rooms/{id}/strokes", h.submitStroke)
	mux.HandleFunc("GET /api/rooms/{id}/prompts", h.listPrompts)
	mux.HandleFunc("POST /api/rooms/{id}/prompts", h.submitPrompt)
	mux.HandleFunc("POST /api/rooms/{id}/prompts/finalize", h.finalizePrompts)
	mux.HandleFunc("GET /api/rooms/{id}/canvas.png", h.canvasPNG)
	mux.HandleFunc("GET /api/rooms/{id}/qr.png", h.qrPNG)
}

func decode(r *http.Request, w http.ResponseWriter, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func pathRoomID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid room id", errBadRequest)
	}
	return id, nil
}

func queryUUID(r *http.Request, key string) (uuid.UUID, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", errBadRequest, key)
	}
	return id, nil
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req room.CreateRoomRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.deps.Rooms.CreateRoom(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req room.JoinRoomRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.deps.Rooms.JoinRoom(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// LeaveRequest is the body of a leave call.
type LeaveRequest struct {
	SessionID uuid.UUID `json:"session_id"`
}

func (h *Handler) leaveRoom(w http.ResponseWriter, r *http.Request) {
	var req LeaveRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.deps.Rooms.LeaveRoom(r.Context(), req.SessionID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) randomTheme(w http.ResponseWriter, r *http.Request) {
	d := room.Difficulty(r.URL.Query().Get("difficulty"))
	if d != room.DifficultyHard {
		d = room.DifficultyEasy
	}
	writeJSON(w, http.StatusOK, map[string]string{"theme": h.deps.Rooms.RandomTheme(d)})
}

func (h *Handler) getRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.deps.Rooms.GetMembership(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// StateResponse is the derived turn state of a room.
type StateResponse struct {
	Room         models.Room     `json:"room"`
	Players      []models.Player `json:"players"`
	State        turn.State      `json:"state"`
	Label        string          `json:"label"`
	ActivePlayer *models.Player  `json:"active_player,omitempty"`
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.deps.Rooms.GetMembership(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := StateResponse{Room: m.Room, Players: m.Players}
	if len(m.Players) > 0 {
		// A state error only means the room has no players yet.
		resp.State, _ = turn.Derive(m.Room, len(m.Players))
		resp.Label = turn.Label(m.Room, len(m.Players))
	}
	if m.Room.Status == models.RoomStatusPlaying {
		if p, err := turn.ActivePlayer(m.Room, m.Players); err == nil {
			resp.ActivePlayer = &p
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req room.UpdateSettingsRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.RoomID = id
	updated, err := h.deps.Rooms.UpdateSettings(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) startGame(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req room.StartGameRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.RoomID = id
	started, err := h.deps.Rooms.StartGame(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, started)
}

// AdvanceRequest is sent by the coordinating client when the drawing
// timer of ExpectedTurn expires.
type AdvanceRequest struct {
	SessionID    uuid.UUID `json:"session_id"`
	ExpectedTurn int       `json:"expected_turn"`
}

// requireCoordinator loads the room and checks the session holds the
// coordinator role.
func (h *Handler) requireCoordinator(ctx context.Context, roomID, sessionID uuid.UUID) (*room.Membership, error) {
	m, err := h.deps.Rooms.GetMembership(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !h.deps.Elector.IsCoordinator(sessionID, m.Players) {
		return nil, room.ErrNotHost
	}
	return m, nil
}

func (h *Handler) advanceTurn(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req AdvanceRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.requireCoordinator(r.Context(), id, req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if m.Room.CurrentTurn != req.ExpectedTurn {
		writeError(w, r, coordinator.ErrStaleTurn)
		return
	}
	if err := h.deps.Coordinator.AdvanceTurn(r.Context(), m.Room, len(m.Players)); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.deps.Rooms.GetRoom(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) listStrokes(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	strokes, err := h.deps.Strokes.ListStrokes(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if strokes == nil {
		strokes = []models.Stroke{}
	}
	writeJSON(w, http.StatusOK, strokes)
}

// SubmitStrokeBody is the body of a stroke submission.
type SubmitStrokeBody struct {
	PlayerID uuid.UUID      `json:"player_id"`
	Points   []models.Point `json:"points"`
	Color    string         `json:"color"`
}

func (h *Handler) submitStroke(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body SubmitStrokeBody
	if err := decode(r, w, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if !h.limiters.allow(body.PlayerID) {
		writeError(w, r, errRateLimited)
		return
	}
	saved, err := h.deps.Strokes.SubmitStroke(r.Context(), stroke.SubmitStrokeRequest{
		RoomID:   id,
		PlayerID: body.PlayerID,
		Points:   body.Points,
		Color:    body.Color,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// PromptsResponse is a player's view of the relay prompts. Texts are only
// included once revealed, or for the prompts the player must draw.
type PromptsResponse struct {
	Submitted int             `json:"submitted"`
	Total     int             `json:"total"`
	MySlot    *prompt.Slot    `json:"my_slot,omitempty"`
	MyMeta    *prompt.Meta    `json:"my_meta,omitempty"`
	Assigned  []models.Prompt `json:"assigned"`
	Revealed  []models.Prompt `json:"revealed"`
}

func (h *Handler) listPrompts(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	playerID, err := queryUUID(r, "player_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.deps.Rooms.GetMembership(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	prompts, err := h.deps.Prompts.ListPrompts(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := PromptsResponse{
		Submitted: prompt.SubmittedCount(prompts),
		Total:     len(prompt.Categories(len(m.Players))),
		Assigned:  []models.Prompt{},
		Revealed:  []models.Prompt{},
	}
	if playerID != uuid.Nil {
		if slot, ok := prompt.CategoryFor(m.Room.RoomCode, m.Players, playerID); ok {
			meta := prompt.MetaFor(slot.Category)
			resp.MySlot, resp.MyMeta = &slot, &meta
		}
		if assigned := prompt.DrawerPrompts(prompts, playerID); assigned != nil {
			resp.Assigned = assigned
		}
	}
	switch m.Room.Status {
	case models.RoomStatusPlaying:
		resp.Revealed = prompt.RevealedPrompts(prompts, m.Room.CurrentTurn)
	case models.RoomStatusFinished:
		resp.Revealed = prompts
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubmitPromptBody is the body of a prompt submission.
type SubmitPromptBody struct {
	SessionID uuid.UUID `json:"session_id"`
	Text      string    `json:"text"`
}

func (h *Handler) submitPrompt(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body SubmitPromptBody
	if err := decode(r, w, &body); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.deps.Rooms.GetMembership(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := h.deps.Prompts.SubmitPrompt(r.Context(), m.Room, m.Players, body.SessionID, body.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// FinalizeRequest is sent by the coordinating client once all prompts are in.
type FinalizeRequest struct {
	SessionID uuid.UUID `json:"session_id"`
}

func (h *Handler) finalizePrompts(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req FinalizeRequest
	if err := decode(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.requireCoordinator(r.Context(), id, req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.deps.Coordinator.CompletePromptSetting(r.Context(), m.Room, m.Players); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.deps.Rooms.GetRoom(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) canvasPNG(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size := stroke.CanvasSize
	if v := r.URL.Query().Get("size"); v != "" {
		size, err = strconv.Atoi(v)
		if err != nil || size <= 0 || size > maxPNGSize {
			writeError(w, r, fmt.Errorf("%w: size must be 1-%d", errBadRequest, maxPNGSize))
			return
		}
	}
	if _, err := h.deps.Rooms.GetRoom(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	canvas, err := h.deps.Strokes.Canvas(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	png, err := canvas.PNG(size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "drawrelay-"+id.String()+".png"))
	_, _ = w.Write(png)
}

// joinURL is the link encoded in a room's QR code.
func (h *Handler) joinURL(r *http.Request, code string) string {
	base := h.deps.PublicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?room=" + url.QueryEscape(code)
}

func (h *Handler) qrPNG(w http.ResponseWriter, r *http.Request) {
	id, err := pathRoomID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rm, err := h.deps.Rooms.GetRoom(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	png, err := qrcode.Encode(h.joinURL(r, rm.RoomCode), qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, r, fmt.Errorf("qr generation failed: %w", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// limiterSet throttles stroke submissions per player.
type limiterSet struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[uuid.UUID]*rate.Limiter
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{limit: limit, burst: burst, limiters: make(map[uuid.UUID]*rate.Limiter)}
}

func (s *limiterSet) allow(id uuid.UUID) bool {
	s.mu.Lock()
	l, ok := s.limiters[id]
	if !ok {
		if len(s.limiters) >= maxLimiters {
			// Forget idle players rather than grow without bound.
			s.limiters = make(map[uuid.UUID]*rate.Limiter)
		}
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[id] = l
	}
	s.mu.Unlock()
	return l.Allow()
}
