// Package memory is an in-process store that satisfies every repository
// and publishes a change for each mutation, the way the Postgres triggers do.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/drawrelay/go/internal/coordinator"
	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/prompt"
	"github.com/mcdev12/drawrelay/go/internal/realtime"
	"github.com/mcdev12/drawrelay/go/internal/room"
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

// Store keeps rooms, players, strokes and prompts in maps. Changes are
// published while the store lock is held so subscribers see them in
// mutation order.
type Store struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	publisher realtime.Publisher

	rooms     map[uuid.UUID]models.Room
	codes     map[string]uuid.UUID
	players   map[uuid.UUID]models.Player
	strokes   map[uuid.UUID][]models.Stroke
	prompts   map[uuid.UUID][]models.Prompt
	strokeSeq int64
}

// New creates an empty store. publisher may be nil.
func New(clock clockwork.Clock, publisher realtime.Publisher) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:     clock,
		publisher: publisher,
		rooms:     make(map[uuid.UUID]models.Room),
		codes:     make(map[string]uuid.UUID),
		players:   make(map[uuid.UUID]models.Player),
		strokes:   make(map[uuid.UUID][]models.Stroke),
		prompts:   make(map[uuid.UUID][]models.Prompt),
	}
}

func (s *Store) publish(ctx context.Context, table realtime.Table, op realtime.Op, roomID, rowID uuid.UUID, row any) {
	if s.publisher == nil {
		return
	}
	c, err := realtime.NewChange(table, op, roomID, rowID, row)
	if err != nil {
		log.Error().Err(err).Str("table", string(table)).Msg("failed to build change")
		return
	}
	c.At = s.clock.Now().UTC()
	if err := s.publisher.Publish(ctx, c); err != nil {
		log.Error().Err(err).Str("table", string(table)).Str("row_id", rowID.String()).Msg("failed to publish change")
	}
}

// Rooms

func (s *Store) CreateRoom(ctx context.Context, r models.Room) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.codes[r.RoomCode]; taken {
		return nil, store.ErrDuplicate
	}
	now := s.clock.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	s.rooms[r.ID] = r
	s.codes[r.RoomCode] = r.ID
	s.publish(ctx, realtime.TableRooms, realtime.OpInsert, r.ID, r.ID, r)
	return &r, nil
}

func (s *Store) GetRoom(_ context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) GetRoomByCode(_ context.Context, code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	r := s.rooms[id]
	return &r, nil
}

func (s *Store) UpdateRoomSettings(ctx context.Context, roomID uuid.UUID, settings models.RoomSettings) (*models.Room, error) {
	return s.updateRoom(ctx, roomID, func(r *models.Room) bool {
		if r.Status != models.RoomStatusWaiting {
			return false
		}
		r.Theme = settings.Theme
		r.TimeLimit = settings.TimeLimit
		r.Rounds = settings.Rounds
		r.GameMode = settings.GameMode
		r.AllowColorChange = settings.AllowColorChange
		return true
	})
}

func (s *Store) StartRoom(ctx context.Context, roomID uuid.UUID, p room.StartRoomParams) (*models.Room, error) {
	return s.updateRoom(ctx, roomID, func(r *models.Room) bool {
		if r.Status != models.RoomStatusWaiting {
			return false
		}
		r.Status = p.Status
		r.Theme = p.Theme
		r.CurrentTurn = 0
		r.TimeLimit = p.Settings.TimeLimit
		r.Rounds = p.Settings.Rounds
		r.GameMode = p.Settings.GameMode
		r.AllowColorChange = p.Settings.AllowColorChange
		return true
	})
}

func (s *Store) AdvanceTurn(ctx context.Context, roomID uuid.UUID, adv turn.Advance) (bool, error) {
	_, err := s.updateRoom(ctx, roomID, func(r *models.Room) bool {
		if r.Status != models.RoomStatusPlaying || r.CurrentTurn != adv.ExpectedTurn {
			return false
		}
		r.CurrentTurn = adv.NextTurn
		if adv.Finish {
			r.Status = models.RoomStatusFinished
		}
		return true
	})
	if errors.Is(err, store.ErrConditionFailed) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) BeginPlay(ctx context.Context, roomID uuid.UUID) (bool, error) {
	_, err := s.updateRoom(ctx, roomID, func(r *models.Room) bool {
		if r.Status != models.RoomStatusSettingPrompts {
			return false
		}
		r.Status = models.RoomStatusPlaying
		r.CurrentTurn = 0
		return true
	})
	if errors.Is(err, store.ErrConditionFailed) {
		return false, nil
	}
	return err == nil, err
}

// updateRoom applies fn under the lock; fn returning false is a failed
// condition and leaves the row untouched.
func (s *Store) updateRoom(ctx context.Context, id uuid.UUID, fn func(r *models.Room) bool) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !fn(&r) {
		return nil, store.ErrConditionFailed
	}
	r.UpdatedAt = s.clock.Now().UTC()
	s.rooms[id] = r
	s.publish(ctx, realtime.TableRooms, realtime.OpUpdate, r.ID, r.ID, r)
	return &r, nil
}

// Players

func (s *Store) GetPlayer(_ context.Context, id uuid.UUID) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListPlayers(_ context.Context, roomID uuid.UUID) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SortByTurnOrder(s.roomPlayers(roomID)), nil
}

func (s *Store) CountPlayers(_ context.Context, roomID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.roomPlayers(roomID)), nil
}

func (s *Store) UpsertPlayer(ctx context.Context, p models.Player) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[p.RoomID]; !ok {
		return nil, store.ErrNotFound
	}
	prev, existed := s.players[p.ID]
	if existed {
		p.CreatedAt = prev.CreatedAt
	} else {
		p.CreatedAt = s.clock.Now().UTC()
	}
	s.players[p.ID] = p

	if existed && prev.RoomID != p.RoomID {
		// The membership moved: the old room sees the row leave.
		s.publish(ctx, realtime.TablePlayers, realtime.OpDelete, prev.RoomID, prev.ID, prev)
	}
	op := realtime.OpInsert
	if existed && prev.RoomID == p.RoomID {
		op = realtime.OpUpdate
	}
	s.publish(ctx, realtime.TablePlayers, op, p.RoomID, p.ID, p)
	return &p, nil
}

func (s *Store) DeletePlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(s.players, id)
	s.publish(ctx, realtime.TablePlayers, realtime.OpDelete, p.RoomID, p.ID, p)
	return &p, nil
}

func (s *Store) CompactTurnOrder(ctx context.Context, roomID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range models.SortByTurnOrder(s.roomPlayers(roomID)) {
		if p.TurnOrder == i {
			continue
		}
		p.TurnOrder = i
		s.players[p.ID] = p
		s.publish(ctx, realtime.TablePlayers, realtime.OpUpdate, roomID, p.ID, p)
	}
	return nil
}

func (s *Store) roomPlayers(roomID uuid.UUID) []models.Player {
	var out []models.Player
	for _, p := range s.players {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	return out
}

// Strokes

func (s *Store) InsertStroke(ctx context.Context, st models.Stroke) (*models.Stroke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[st.RoomID]; !ok {
		return nil, store.ErrNotFound
	}
	s.strokeSeq++
	st.Seq = s.strokeSeq
	st.CreatedAt = s.clock.Now().UTC()
	s.strokes[st.RoomID] = append(s.strokes[st.RoomID], st)
	s.publish(ctx, realtime.TableStrokes, realtime.OpInsert, st.RoomID, st.ID, st)
	return &st, nil
}

func (s *Store) ListStrokes(_ context.Context, roomID uuid.UUID) ([]models.Stroke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Stroke, len(s.strokes[roomID]))
	copy(out, s.strokes[roomID])
	return out, nil
}

// Prompts

func (s *Store) InsertPrompt(ctx context.Context, p models.Prompt) (*models.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[p.RoomID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, existing := range s.prompts[p.RoomID] {
		if existing.TurnIndex == p.TurnIndex {
			return nil, store.ErrDuplicate
		}
	}
	p.CreatedAt = s.clock.Now().UTC()
	s.prompts[p.RoomID] = append(s.prompts[p.RoomID], p)
	s.publish(ctx, realtime.TablePrompts, realtime.OpInsert, p.RoomID, p.ID, p)
	return &p, nil
}

func (s *Store) ListPrompts(_ context.Context, roomID uuid.UUID) ([]models.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Prompt, len(s.prompts[roomID]))
	copy(out, s.prompts[roomID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].TurnIndex < out[j].TurnIndex })
	return out, nil
}

func (s *Store) SetDrawer(ctx context.Context, promptID, drawerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for roomID, list := range s.prompts {
		for i := range list {
			if list[i].ID != promptID {
				continue
			}
			if list[i].DrawerID != nil {
				return nil
			}
			d := drawerID
			list[i].DrawerID = &d
			s.publish(ctx, realtime.TablePrompts, realtime.OpUpdate, roomID, promptID, list[i])
			return nil
		}
	}
	return store.ErrNotFound
}
