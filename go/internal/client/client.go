// Package client runs one participant's reactive loop: it merges change
// notifications into a local view, drives the turn timers and performs the
// coordinator writes when this participant holds the role.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/drawrelay/go/internal/color"
	"github.com/mcdev12/drawrelay/go/internal/coordinator"
	"github.com/mcdev12/drawrelay/go/internal/identity"
	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/prompt"
	"github.com/mcdev12/drawrelay/go/internal/realtime"
	"github.com/mcdev12/drawrelay/go/internal/stroke"
	"github.com/mcdev12/drawrelay/go/internal/turn"
)

var (
	ErrNotYourTurn    = errors.New("not your turn")
	ErrNotDrawing     = errors.New("drawing has not started")
	ErrColorNotPicked = errors.New("pick a color first")
	ErrStopped        = errors.New("client stopped")
)

// Backend is what a client reads and writes.
type Backend interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error)
	ListStrokes(ctx context.Context, roomID uuid.UUID) ([]models.Stroke, error)
	ListPrompts(ctx context.Context, roomID uuid.UUID) ([]models.Prompt, error)
	SubmitStroke(ctx context.Context, req stroke.SubmitStrokeRequest) (*models.Stroke, error)
	SubmitPrompt(ctx context.Context, room models.Room, players []models.Player, setterID uuid.UUID, text string) (*models.Prompt, error)
}

// Config holds the collaborators of a Client.
type Config struct {
	Session     identity.Session
	RoomID      uuid.UUID
	Backend     Backend
	Feed        realtime.Feed
	Coordinator coordinator.Coordinator
	Elector     coordinator.Elector
	Clock       clockwork.Clock
	Interval    time.Duration
}

// Snapshot is what a participant sees at one moment.
type Snapshot struct {
	Room       models.Room     `json:"room"`
	Players    []models.Player `json:"players"`
	State      turn.State      `json:"state"`
	Label      string          `json:"label"`
	Phase      turn.Phase      `json:"phase"`
	Remaining  time.Duration   `json:"remaining"`
	IsMyTurn   bool            `json:"is_my_turn"`
	NeedsColor bool            `json:"needs_color"`
	Color      string          `json:"color,omitempty"`
	Strokes    int             `json:"strokes"`
	MySlot     *prompt.Slot    `json:"my_slot,omitempty"`
	Revealed   []models.Prompt `json:"revealed,omitempty"`
	Submitted  int             `json:"submitted"`
}

// Client is one participant. All state is owned by the Run goroutine;
// actions are handed to it and wait for the result.
type Client struct {
	cfg       Config
	view      *View
	countdown *turn.Countdown
	lock      color.Lock

	lastTurn   int
	lastStatus models.RoomStatus

	cmds    chan func(ctx context.Context)
	updates chan Snapshot
	done    chan struct{}
}

// New creates a client. Run must be called to start it.
func New(cfg Config) *Client {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Elector == nil {
		cfg.Elector = coordinator.HostElector{}
	}
	return &Client{
		cfg:       cfg,
		view:      NewView(),
		countdown: turn.NewCountdown(cfg.Clock, cfg.Interval),
		lastTurn:  -1,
		cmds:      make(chan func(ctx context.Context)),
		updates:   make(chan Snapshot, 1),
		done:      make(chan struct{}),
	}
}

// Updates delivers the latest snapshot after every change. Only the newest
// snapshot is kept for a slow reader.
func (c *Client) Updates() <-chan Snapshot {
	return c.updates
}

// Done is closed when Run returns.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Run subscribes to the room, loads its rows and processes notifications,
// timers and actions until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.done)

	changes, err := c.cfg.Feed.Subscribe(ctx, realtime.RoomFilter(c.cfg.RoomID,
		realtime.TableRooms, realtime.TablePlayers, realtime.TableStrokes, realtime.TablePrompts))
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if err := c.load(ctx); err != nil {
		return err
	}

	log.Info().
		Str("room_id", c.cfg.RoomID.String()).
		Str("player_id", c.cfg.Session.ID.String()).
		Msg("client joined room loop")

	for {
		select {
		case <-ctx.Done():
			c.countdown.Finish()
			return nil
		case ch, ok := <-changes:
			if !ok {
				return nil
			}
			if err := c.handleChange(ctx, ch); err != nil {
				log.Error().Err(err).Str("table", string(ch.Table)).Msg("failed to apply change")
			}
		case <-c.countdown.C():
			c.handleTimer(ctx)
		case cmd := <-c.cmds:
			cmd(ctx)
		}
		c.publish()
	}
}

func (c *Client) load(ctx context.Context) error {
	b := c.cfg.Backend
	r, err := b.GetRoom(ctx, c.cfg.RoomID)
	if err != nil {
		return fmt.Errorf("load room: %w", err)
	}
	if err := c.refreshPlayers(ctx); err != nil {
		return err
	}
	strokes, err := b.ListStrokes(ctx, c.cfg.RoomID)
	if err != nil {
		return fmt.Errorf("load strokes: %w", err)
	}
	for _, s := range strokes {
		c.view.ApplyStroke(s)
	}
	prompts, err := b.ListPrompts(ctx, c.cfg.RoomID)
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	for _, p := range prompts {
		c.view.ApplyPrompt(p)
	}

	c.view.ApplyRoom(*r)
	c.observeRoom(ctx)
	c.publish()
	return nil
}

func (c *Client) refreshPlayers(ctx context.Context) error {
	players, err := c.cfg.Backend.ListPlayers(ctx, c.cfg.RoomID)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	c.view.SetPlayers(players)
	return nil
}

func (c *Client) handleChange(ctx context.Context, ch realtime.Change) error {
	switch ch.Table {
	case realtime.TablePlayers:
		// The list is re-fetched; a diff cannot rebuild turn order.
		if err := c.refreshPlayers(ctx); err != nil {
			return err
		}
		c.maybeFinalizePrompts(ctx)
	case realtime.TableRooms:
		var r models.Room
		if err := ch.Decode(&r); err != nil {
			return err
		}
		if c.view.ApplyRoom(r) {
			c.observeRoom(ctx)
		}
	case realtime.TableStrokes:
		var s models.Stroke
		if err := ch.Decode(&s); err != nil {
			return err
		}
		c.view.ApplyStroke(s)
	case realtime.TablePrompts:
		var p models.Prompt
		if err := ch.Decode(&p); err != nil {
			return err
		}
		if c.view.ApplyPrompt(p) {
			c.maybeFinalizePrompts(ctx)
		}
	}
	return nil
}

// observeRoom reacts to a new turn or status.
func (c *Client) observeRoom(ctx context.Context) {
	r := c.view.Room
	if r.CurrentTurn == c.lastTurn && r.Status == c.lastStatus {
		return
	}
	c.lastTurn, c.lastStatus = r.CurrentTurn, r.Status

	switch r.Status {
	case models.RoomStatusSettingPrompts:
		c.maybeFinalizePrompts(ctx)
	case models.RoomStatusPlaying:
		state, err := c.view.State()
		if err != nil {
			log.Warn().Err(err).Str("room_id", r.ID.String()).Msg("cannot derive turn state")
			return
		}
		if state.Finished {
			c.countdown.Finish()
			return
		}
		c.lock.OnTurnChange(state.CurrentRound, r.GameMode, r.AllowColorChange)
		needsColor := color.ShouldPickColor(c.lock.Input(r, state.CurrentRound, c.view.IsActive(c.cfg.Session.ID)))
		c.countdown.BeginTurn(r.CurrentTurn, time.Duration(r.TimeLimit)*time.Second, needsColor)
		log.Debug().
			Str("player_id", c.cfg.Session.ID.String()).
			Int("turn", r.CurrentTurn).
			Bool("needs_color", needsColor).
			Msg("turn observed")
	case models.RoomStatusFinished:
		c.countdown.Finish()
	}
}

func (c *Client) handleTimer(ctx context.Context) {
	ev := c.countdown.Fire()
	if ev.Phase != turn.PhaseExpired || ev.Turn != c.view.Room.CurrentTurn {
		return
	}
	if !c.isCoordinator() {
		return
	}

	err := c.cfg.Coordinator.AdvanceTurn(ctx, c.view.Room, len(c.view.Players))
	if err = coordinator.IgnoreRace(err); err != nil {
		// Transient failures are not retried; the room stalls like a lost host.
		log.Error().Err(err).Str("room_id", c.cfg.RoomID.String()).Int("turn", ev.Turn).Msg("turn advance failed")
	}
}

func (c *Client) maybeFinalizePrompts(ctx context.Context) {
	r := c.view.Room
	if r.Status != models.RoomStatusSettingPrompts || !c.isCoordinator() {
		return
	}
	if !prompt.IsComplete(c.view.Prompts, prompt.Categories(len(c.view.Players))) {
		return
	}
	if err := c.cfg.Coordinator.CompletePromptSetting(ctx, r, c.view.Players); err != nil {
		log.Error().Err(err).Str("room_id", r.ID.String()).Msg("prompt finalize failed")
	}
}

func (c *Client) isCoordinator() bool {
	return c.cfg.Coordinator != nil && c.cfg.Elector.IsCoordinator(c.cfg.Session.ID, c.view.Players)
}

func (c *Client) snapshot() Snapshot {
	r := c.view.Room
	state, _ := c.view.State()
	isMine := c.view.IsActive(c.cfg.Session.ID)

	snap := Snapshot{
		Room:      r,
		Players:   append([]models.Player(nil), c.view.Players...),
		State:     state,
		Label:     turn.Label(r, len(c.view.Players)),
		Phase:     c.countdown.Phase(),
		Remaining: c.countdown.Remaining(),
		IsMyTurn:  isMine,
		Color:     c.lock.Color,
		Strokes:   c.view.Canvas.Len(),
		Submitted: prompt.SubmittedCount(c.view.Prompts),
	}
	if r.Status == models.RoomStatusPlaying && !state.Finished {
		snap.NeedsColor = color.ShouldPickColor(c.lock.Input(r, state.CurrentRound, isMine))
	}
	if r.IsRelay() {
		if slot, ok := prompt.CategoryFor(r.RoomCode, c.view.Players, c.cfg.Session.ID); ok {
			snap.MySlot = &slot
		}
		if r.Status != models.RoomStatusSettingPrompts {
			snap.Revealed = prompt.RevealedPrompts(c.view.Prompts, r.CurrentTurn)
		}
	}
	return snap
}

func (c *Client) publish() {
	snap := c.snapshot()
	select {
	case c.updates <- snap:
		return
	default:
	}
	// Drop the stale snapshot and retry once.
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- snap:
	default:
	}
}

// do runs fn on the loop goroutine and waits for it.
func (c *Client) do(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)
	select {
	case c.cmds <- func(loopCtx context.Context) { result <- fn(loopCtx) }:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current view.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, func(context.Context) error {
		snap = c.snapshot()
		return nil
	})
	return snap, err
}

// PickColor locks the player's color for the current epoch and releases a
// parked countdown.
func (c *Client) PickColor(ctx context.Context, col string) error {
	return c.do(ctx, func(context.Context) error {
		r := c.view.Room
		if !color.ValidColor(r.GameMode, col) {
			return stroke.ErrInvalidColor
		}
		state, err := c.view.State()
		if err != nil {
			return err
		}
		c.lock.Pick(col, state.CurrentRound)
		c.countdown.ColorPicked()
		return nil
	})
}

// Draw submits a stroke during the player's drawing phase. In one-color
// rooms the locked color replaces the requested one.
func (c *Client) Draw(ctx context.Context, points []models.Point, col string) (*models.Stroke, error) {
	var saved *models.Stroke
	err := c.do(ctx, func(loopCtx context.Context) error {
		r := c.view.Room
		if !c.view.IsActive(c.cfg.Session.ID) {
			return ErrNotYourTurn
		}
		state, err := c.view.State()
		if err != nil {
			return err
		}
		if color.ShouldPickColor(c.lock.Input(r, state.CurrentRound, true)) {
			return ErrColorNotPicked
		}
		if c.countdown.Phase() != turn.PhaseDrawing {
			return ErrNotDrawing
		}

		saved, err = c.cfg.Backend.SubmitStroke(loopCtx, stroke.SubmitStrokeRequest{
			RoomID:   r.ID,
			PlayerID: c.cfg.Session.ID,
			Points:   points,
			Color:    c.lock.StrokeColor(r.GameMode, col),
		})
		if err != nil {
			return err
		}
		c.view.ApplyStroke(*saved)
		return nil
	})
	return saved, err
}

// SubmitPrompt submits the player's relay prompt.
func (c *Client) SubmitPrompt(ctx context.Context, text string) (*models.Prompt, error) {
	var saved *models.Prompt
	err := c.do(ctx, func(loopCtx context.Context) error {
		var err error
		saved, err = c.cfg.Backend.SubmitPrompt(loopCtx, c.view.Room, c.view.Players, c.cfg.Session.ID, text)
		if err != nil {
			return err
		}
		if c.view.ApplyPrompt(*saved) {
			c.maybeFinalizePrompts(loopCtx)
		}
		return nil
	})
	return saved, err
}
