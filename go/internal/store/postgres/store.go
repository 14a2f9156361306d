// Package postgres is the shared-database store. Every mutation is recorded
// by table triggers into the changes table and announced with NOTIFY; the
// realtime listener turns those rows into room notifications.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/drawrelay/go/internal/coordinator"
	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/prompt"
	"github.com/mcdev12/drawrelay/go/internal/room"
	"github.com/mcdev12/drawrelay/go/internal/sqlutil"
	"github.com/mcdev12/drawrelay/go/internal/store"
	"github.com/mcdev12/drawrelay/go/internal/stroke"
	"github.com/mcdev12/drawrelay/go/internal/turn"
)

var (
	_ room.Repository       = (*Store)(nil)
	_ prompt.Repository     = (*Store)(nil)
	_ stroke.Repository     = (*Store)(nil)
	_ coordinator.TurnStore = (*Store)(nil)
)

const (
	roomColumns   = `id, room_code, status, current_turn, theme, time_limit, rounds, game_mode, allow_color_change, created_at, updated_at`
	playerColumns = `id, room_id, username, turn_order, is_host, created_at`
	strokeColumns = `id, room_id, player_id, path_data, color, seq, created_at`
	promptColumns = `id, room_id, category, prompt_text, setter_id, turn_index, drawer_id, created_at`
)

// Store implements every repository on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// mapErr translates driver errors into store errors.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return store.ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		// unique_violation
		return store.ErrDuplicate
	case errors.As(err, &pgErr) && pgErr.Code == "23503":
		// foreign_key_violation: the room is gone
		return store.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
}

// Rooms

func scanRoom(row pgx.Row) (*models.Room, error) {
	var (
		r      models.Room
		status string
		mode   string
		theme  sql.NullString
	)
	err := row.Scan(&r.ID, &r.RoomCode, &status, &r.CurrentTurn, &theme,
		&r.TimeLimit, &r.Rounds, &mode, &r.AllowColorChange, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	r.Status = models.RoomStatus(status)
	r.GameMode = models.GameMode(mode)
	r.Theme = sqlutil.FromSqlStringPtr(theme)
	return &r, nil
}

func (s *Store) CreateRoom(ctx context.Context, r models.Room) (*models.Room, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO rooms (id, room_code, status, current_turn, theme, time_limit, rounds, game_mode, allow_color_change)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+roomColumns,
		r.ID, r.RoomCode, string(r.Status), r.CurrentTurn, sqlutil.ToSqlString(r.Theme),
		r.TimeLimit, r.Rounds, string(r.GameMode), r.AllowColorChange)
	return scanRoom(row)
}

func (s *Store) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return scanRoom(s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
}

func (s *Store) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	return scanRoom(s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE room_code = $1`, code))
}

func (s *Store) UpdateRoomSettings(ctx context.Context, roomID uuid.UUID, settings models.RoomSettings) (*models.Room, error) {
	return s.conditionalRoomUpdate(ctx, roomID, `
		UPDATE rooms
		SET theme = $2, time_limit = $3, rounds = $4, game_mode = $5, allow_color_change = $6, updated_at = now()
		WHERE id = $1 AND status = 'waiting'
		RETURNING `+roomColumns,
		roomID, sqlutil.ToSqlString(settings.Theme), settings.TimeLimit, settings.Rounds,
		string(settings.GameMode), settings.AllowColorChange)
}

func (s *Store) StartRoom(ctx context.Context, roomID uuid.UUID, p room.StartRoomParams) (*models.Room, error) {
	return s.conditionalRoomUpdate(ctx, roomID, `
		UPDATE rooms
		SET status = $2, theme = $3, current_turn = 0, time_limit = $4, rounds = $5,
		    game_mode = $6, allow_color_change = $7, updated_at = now()
		WHERE id = $1 AND status = 'waiting'
		RETURNING `+roomColumns,
		roomID, string(p.Status), sqlutil.ToSqlString(p.Theme), p.Settings.TimeLimit, p.Settings.Rounds,
		string(p.Settings.GameMode), p.Settings.AllowColorChange)
}

// conditionalRoomUpdate runs a guarded UPDATE ... RETURNING. When the guard
// matches nothing it tells a missing room from a failed condition.
func (s *Store) conditionalRoomUpdate(ctx context.Context, roomID uuid.UUID, query string, args ...any) (*models.Room, error) {
	var updated *models.Room
	err := sqlutil.Run(ctx, s.pool, func(tx pgx.Tx) error {
		r, err := scanRoom(tx.QueryRow(ctx, query, args...))
		if err == nil {
			updated = r
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, roomID).Scan(&exists); err != nil {
			return mapErr(err)
		}
		if exists {
			return store.ErrConditionFailed
		}
		return store.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) AdvanceTurn(ctx context.Context, roomID uuid.UUID, adv turn.Advance) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE rooms
		SET current_turn = $3,
		    status = CASE WHEN $4 THEN 'finished' ELSE status END,
		    updated_at = now()
		WHERE id = $1 AND current_turn = $2 AND status = 'playing'`,
		roomID, adv.ExpectedTurn, adv.NextTurn, adv.Finish)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) BeginPlay(ctx context.Context, roomID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE rooms
		SET status = 'playing', current_turn = 0, updated_at = now()
		WHERE id = $1 AND status = 'setting_prompts'`, roomID)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

// Players

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	if err := row.Scan(&p.ID, &p.RoomID, &p.Username, &p.TurnOrder, &p.IsHost, &p.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *Store) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	return scanPlayer(s.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id))
}

func (s *Store) ListPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+playerColumns+` FROM players
		WHERE room_id = $1
		ORDER BY turn_order, created_at, id`, roomID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	players := make([]models.Player, 0, models.MaxPlayers)
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, mapErr(rows.Err())
}

func (s *Store) CountPlayers(ctx context.Context, roomID uuid.UUID) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM players WHERE room_id = $1`, roomID).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func (s *Store) UpsertPlayer(ctx context.Context, p models.Player) (*models.Player, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO players (id, room_id, username, turn_order, is_host)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET room_id = EXCLUDED.room_id,
		    username = EXCLUDED.username,
		    turn_order = EXCLUDED.turn_order,
		    is_host = EXCLUDED.is_host
		RETURNING `+playerColumns,
		p.ID, p.RoomID, p.Username, p.TurnOrder, p.IsHost)
	return scanPlayer(row)
}

func (s *Store) DeletePlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	return scanPlayer(s.pool.QueryRow(ctx, `DELETE FROM players WHERE id = $1 RETURNING `+playerColumns, id))
}

func (s *Store) CompactTurnOrder(ctx context.Context, roomID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE players p
		SET turn_order = o.pos
		FROM (
			SELECT id, row_number() OVER (ORDER BY turn_order, created_at, id) - 1 AS pos
			FROM players
			WHERE room_id = $1
		) o
		WHERE p.id = o.id AND p.turn_order <> o.pos`, roomID)
	if err != nil {
		return mapErr(err)
	}
	log.Debug().Str("room_id", roomID.String()).Int64("moved", tag.RowsAffected()).Msg("turn order compacted")
	return nil
}

// Strokes

func scanStroke(row pgx.Row) (*models.Stroke, error) {
	var (
		st   models.Stroke
		path []byte
	)
	if err := row.Scan(&st.ID, &st.RoomID, &st.PlayerID, &path, &st.Color, &st.Seq, &st.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	if err := json.Unmarshal(path, &st.PathData); err != nil {
		return nil, fmt.Errorf("failed to decode path of stroke %s: %w", st.ID, err)
	}
	return &st, nil
}

func (s *Store) InsertStroke(ctx context.Context, st models.Stroke) (*models.Stroke, error) {
	path, err := json.Marshal(st.PathData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode path: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO strokes (id, room_id, player_id, path_data, color)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+strokeColumns,
		st.ID, st.RoomID, st.PlayerID, path, st.Color)
	return scanStroke(row)
}

func (s *Store) ListStrokes(ctx context.Context, roomID uuid.UUID) ([]models.Stroke, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+strokeColumns+` FROM strokes WHERE room_id = $1 ORDER BY seq`, roomID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var strokes []models.Stroke
	for rows.Next() {
		st, err := scanStroke(rows)
		if err != nil {
			return nil, err
		}
		strokes = append(strokes, *st)
	}
	return strokes, mapErr(rows.Err())
}

// Prompts

func scanPrompt(row pgx.Row) (*models.Prompt, error) {
	var (
		p      models.Prompt
		drawer uuid.NullUUID
	)
	if err := row.Scan(&p.ID, &p.RoomID, &p.Category, &p.PromptText, &p.SetterID, &p.TurnIndex, &drawer, &p.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	p.DrawerID = sqlutil.FromNullUUID(drawer)
	return &p, nil
}

func (s *Store) InsertPrompt(ctx context.Context, p models.Prompt) (*models.Prompt, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO prompts (id, room_id, category, prompt_text, setter_id, turn_index, drawer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+promptColumns,
		p.ID, p.RoomID, p.Category, p.PromptText, p.SetterID, p.TurnIndex, sqlutil.ToNullUUID(p.DrawerID))
	return scanPrompt(row)
}

func (s *Store) ListPrompts(ctx context.Context, roomID uuid.UUID) ([]models.Prompt, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+promptColumns+` FROM prompts WHERE room_id = $1 ORDER BY turn_index`, roomID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var prompts []models.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, *p)
	}
	return prompts, mapErr(rows.Err())
}

func (s *Store) SetDrawer(ctx context.Context, promptID, drawerID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE prompts SET drawer_id = $2 WHERE id = $1 AND drawer_id IS NULL`, promptID, drawerID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM prompts WHERE id = $1)`, promptID).Scan(&exists); err != nil {
		return mapErr(err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return nil
}
