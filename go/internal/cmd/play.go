package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/drawrelay/go/internal/client"
	"github.com/mcdev12/drawrelay/go/internal/color"
	"github.com/mcdev12/drawrelay/go/internal/identity"
	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/prompt"
	"github.com/mcdev12/drawrelay/go/internal/realtime"
	"github.com/mcdev12/drawrelay/go/internal/room"
	"github.com/mcdev12/drawrelay/go/internal/store/memory"
	"github.com/mcdev12/drawrelay/go/internal/stroke"
	"github.com/mcdev12/drawrelay/go/internal/turn"
)

type playOptions struct {
	players    int
	rounds     int
	timeLimit  int
	mode       string
	theme      string
	interval   time.Duration
	out        string
	size       int
	timeout    time.Duration
	sessionDir string
}

func newPlayCmd(root *rootOptions) *cobra.Command {
	opts := &playOptions{}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a whole game in process with bot players.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := root.config()
			if err != nil {
				return err
			}
			opts.defaults(cmd, config.Game)
			if opts.players < models.MinPlayers || opts.players > models.MaxPlayers {
				return fmt.Errorf("players must be between %d and %d", models.MinPlayers, models.MaxPlayers)
			}
			return play(cmd.Context(), config, opts)
		},
	}

	fs := cmd.Flags()
	fs.IntVarP(&opts.players, "players", "n", 3, "number of bot players (env: DRAWRELAY_PLAYERS)")
	fs.IntVar(&opts.rounds, "rounds", 0, "rounds, defaults to game.rounds (env: DRAWRELAY_ROUNDS)")
	fs.IntVar(&opts.timeLimit, "time-limit", 0, "drawing seconds per turn, defaults to game.time_limit (env: DRAWRELAY_TIME_LIMIT)")
	fs.StringVarP(&opts.mode, "mode", "m", "", "normal, one-color or itsu-doko, defaults to game.mode (env: DRAWRELAY_MODE)")
	fs.StringVar(&opts.theme, "theme", "", "theme to draw, random when empty (env: DRAWRELAY_THEME)")
	fs.DurationVar(&opts.interval, "interval", turn.IntervalDuration, "pause before each turn (env: DRAWRELAY_INTERVAL)")
	fs.StringVarP(&opts.out, "out", "o", "", "write the final canvas to this png file (env: DRAWRELAY_OUT)")
	fs.IntVar(&opts.size, "size", 1000, "edge length of the png in pixels (env: DRAWRELAY_SIZE)")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "give up after this long (env: DRAWRELAY_TIMEOUT)")
	fs.StringVar(&opts.sessionDir, "session-dir", "", "keep bot sessions in this directory so ids survive reruns (env: DRAWRELAY_SESSION_DIR)")
	bindEnv(fs)

	return cmd
}

// defaults fills unset game flags from the config file.
func (o *playOptions) defaults(cmd *cobra.Command, game GameConfig) {
	if !cmd.Flags().Changed("rounds") && o.rounds == 0 {
		o.rounds = game.Rounds
	}
	if !cmd.Flags().Changed("time-limit") && o.timeLimit == 0 {
		o.timeLimit = game.TimeLimit
	}
	if o.mode == "" {
		o.mode = string(game.Mode)
	}
}

func play(ctx context.Context, config *Config, opts *playOptions) error {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	bus := realtime.NewBus()
	services := setupServices(memory.New(nil, bus), config)

	sessions := make([]identity.Session, opts.players)
	for i := range sessions {
		name := fmt.Sprintf("bot%d", i+1)
		s, err := identity.Login(opts.sessionKV(name), name)
		if err != nil {
			return fmt.Errorf("failed to log in %s: %w", name, err)
		}
		sessions[i] = s
	}

	m, err := services.Rooms.CreateRoom(ctx, room.CreateRoomRequest{SessionID: sessions[0].ID, Username: sessions[0].Username})
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	for _, s := range sessions[1:] {
		if _, err := services.Rooms.JoinRoom(ctx, room.JoinRoomRequest{SessionID: s.ID, Username: s.Username, RoomCode: m.Room.RoomCode}); err != nil {
			return fmt.Errorf("failed to join room: %w", err)
		}
	}
	roomID := m.Room.ID

	clientCtx, stopClients := context.WithCancel(ctx)
	defer stopClients()
	loops, loopCtx := errgroup.WithContext(clientCtx)

	clients := make([]*client.Client, len(sessions))
	for i, s := range sessions {
		c := client.New(client.Config{
			Session:     s,
			RoomID:      roomID,
			Backend:     services.backend(),
			Feed:        bus,
			Coordinator: services.Coordinator,
			Interval:    opts.interval,
		})
		clients[i] = c
		loops.Go(func() error { return c.Run(loopCtx) })
	}
	if err := waitSubscribers(ctx, bus, len(clients)); err != nil {
		return err
	}

	settings := models.RoomSettings{
		TimeLimit: opts.timeLimit,
		Rounds:    opts.rounds,
		GameMode:  models.GameMode(opts.mode),
	}
	if opts.theme == "" && settings.GameMode != models.GameModeItsuDoko {
		opts.theme = services.Rooms.RandomTheme(room.DifficultyEasy)
	}
	if opts.theme != "" {
		settings.Theme = &opts.theme
	}
	started, err := services.Rooms.StartGame(ctx, room.StartGameRequest{SessionID: sessions[0].ID, RoomID: roomID, Settings: settings})
	if err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}
	log.Info().
		Str("room_code", started.RoomCode).
		Str("mode", string(started.GameMode)).
		Str("theme", started.ThemeText()).
		Int("players", len(sessions)).
		Int("rounds", started.EffectiveRounds()).
		Msg("game started")

	bots, botCtx := errgroup.WithContext(ctx)
	for i, c := range clients {
		b := &bot{client: c, name: sessions[i].Username, rng: rand.New(rand.NewPCG(uint64(i), uint64(time.Now().UnixNano())))}
		bots.Go(func() error { return b.run(botCtx) })
	}
	if err := bots.Wait(); err != nil {
		return err
	}
	stopClients()
	if err := loops.Wait(); err != nil {
		return err
	}

	canvas, err := services.Strokes.Canvas(ctx, roomID)
	if err != nil {
		return err
	}
	log.Info().Int("strokes", canvas.Len()).Msg("game finished")
	for _, s := range sessions {
		log.Info().Str("player", s.Username).Int("strokes", canvas.StrokesBy(s.ID)).Msg("strokes drawn")
	}

	prompts, err := services.Prompts.ListPrompts(ctx, roomID)
	if err != nil {
		return err
	}
	for _, p := range prompts {
		log.Info().Int("turn", p.TurnIndex+1).Str("category", p.Category).Str("prompt", p.PromptText).Msg("prompt")
	}

	if opts.out == "" {
		return nil
	}
	png, err := canvas.PNG(opts.size)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.out, png, 0o644); err != nil {
		return fmt.Errorf("failed to write canvas: %w", err)
	}
	log.Info().Str("path", opts.out).Msg("canvas written")
	return nil
}

// sessionKV is where a bot keeps its session. Without --session-dir every
// run plays with fresh ids.
func (o *playOptions) sessionKV(name string) identity.KV {
	if o.sessionDir == "" {
		return identity.NewMemoryKV()
	}
	return identity.NewFileKV(filepath.Join(o.sessionDir, name+".yaml"))
}

func waitSubscribers(ctx context.Context, bus *realtime.Bus, n int) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for bus.Subscribers() < n {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

var botPrompts = map[string][]string{
	prompt.CategoryWhen:  {"真夜中に", "朝ごはんの前に", "100年後に"},
	prompt.CategoryWhere: {"宇宙で", "海の底で", "コンビニで"},
	prompt.CategoryWho:   {"ネコが", "校長先生が", "ロボットが"},
	prompt.CategoryWhom:  {"友達に", "おばあちゃんに", "宇宙人に"},
	prompt.CategoryWhat:  {"踊った", "ラーメンを食べた", "昼寝した"},
	prompt.CategoryHow:   {"こっそり", "全力で", "笑いながら"},
}

// bot plays one seat: it writes its relay prompt, picks a color when asked
// and draws one scribble per turn.
type bot struct {
	client    *client.Client
	name      string
	rng       *rand.Rand
	prompted  bool
	drawnTurn int
}

func (b *bot) run(ctx context.Context) error {
	b.drawnTurn = -1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.client.Done():
			return errors.New("client stopped before the game finished")
		case snap := <-b.client.Updates():
			done, err := b.step(ctx, snap)
			if err != nil || done {
				return err
			}
		}
	}
}

func (b *bot) step(ctx context.Context, snap client.Snapshot) (bool, error) {
	switch snap.Room.Status {
	case models.RoomStatusFinished:
		return true, nil
	case models.RoomStatusSettingPrompts:
		if b.prompted || snap.MySlot == nil {
			return false, nil
		}
		choices := botPrompts[snap.MySlot.Category]
		if _, err := b.client.SubmitPrompt(ctx, choices[b.rng.IntN(len(choices))]); err != nil {
			return false, fmt.Errorf("%s: submit prompt: %w", b.name, err)
		}
		b.prompted = true
	case models.RoomStatusPlaying:
		if !snap.IsMyTurn || b.drawnTurn == snap.Room.CurrentTurn {
			return false, nil
		}
		palette := color.Palette(snap.Room.GameMode)
		pick := palette[b.rng.IntN(len(palette))]
		if snap.NeedsColor {
			return false, b.client.PickColor(ctx, pick)
		}
		if snap.Phase != turn.PhaseDrawing {
			return false, nil
		}
		_, err := b.client.Draw(ctx, b.scribble(), pick)
		switch {
		case errors.Is(err, client.ErrNotDrawing), errors.Is(err, client.ErrNotYourTurn):
			// The timer beat us to it.
			return false, nil
		case err != nil:
			return false, fmt.Errorf("%s: draw: %w", b.name, err)
		}
		b.drawnTurn = snap.Room.CurrentTurn
		log.Info().Str("player", b.name).Str("turn", snap.Label).Msg("drew a stroke")
	}
	return false, nil
}

func (b *bot) scribble() []models.Point {
	n := 8 + b.rng.IntN(16)
	points := make([]models.Point, n)
	x, y := b.rng.Float64()*stroke.CanvasSize, b.rng.Float64()*stroke.CanvasSize
	for i := range points {
		x = clamp(x + b.rng.NormFloat64()*20)
		y = clamp(y + b.rng.NormFloat64()*20)
		points[i] = models.Point{X: x, Y: y}
	}
	return points
}

func clamp(v float64) float64 {
	return max(0, min(v, stroke.CanvasSize))
}
