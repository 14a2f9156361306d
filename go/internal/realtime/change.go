// Package realtime carries row mutations from the store to every client
// subscribed to a room.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Table names a notifying table.
type Table string

const (
	TableRooms   Table = "rooms"
	TablePlayers Table = "players"
	TableStrokes Table = "strokes"
	TablePrompts Table = "prompts"
)

// Op is the kind of row mutation.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is one row mutation with the new row image (the old one for deletes).
// ID identifies the mutation and is stable across redeliveries.
type Change struct {
	ID     uuid.UUID       `json:"id"`
	Table  Table           `json:"table"`
	Op     Op              `json:"op"`
	RoomID uuid.UUID       `json:"room_id"`
	RowID  uuid.UUID       `json:"row_id"`
	Seq    int64           `json:"seq"`
	Row    json.RawMessage `json:"row,omitempty"`
	At     time.Time       `json:"at"`
}

// NewChange builds a change carrying row as its payload.
func NewChange(table Table, op Op, roomID, rowID uuid.UUID, row any) (Change, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return Change{}, fmt.Errorf("marshal %s row: %w", table, err)
	}
	return Change{
		ID:     uuid.New(),
		Table:  table,
		Op:     op,
		RoomID: roomID,
		RowID:  rowID,
		Row:    data,
		At:     time.Now().UTC(),
	}, nil
}

// Decode unmarshals the row payload into v.
func (c Change) Decode(v any) error {
	if len(c.Row) == 0 {
		return fmt.Errorf("%s change %s has no row", c.Table, c.ID)
	}
	if err := json.Unmarshal(c.Row, v); err != nil {
		return fmt.Errorf("decode %s row: %w", c.Table, err)
	}
	return nil
}

// Filter scopes a subscription. Zero fields match everything.
type Filter struct {
	Tables []Table
	RoomID uuid.UUID
}

// RoomFilter subscribes to the given tables of one room.
func RoomFilter(roomID uuid.UUID, tables ...Table) Filter {
	return Filter{Tables: tables, RoomID: roomID}
}

// Match reports whether c passes the filter.
func (f Filter) Match(c Change) bool {
	if f.RoomID != uuid.Nil && f.RoomID != c.RoomID {
		return false
	}
	if len(f.Tables) == 0 {
		return true
	}
	for _, t := range f.Tables {
		if t == c.Table {
			return true
		}
	}
	return false
}

// Feed delivers changes matching a filter, in publish order per
// subscription, at least once. The channel closes when ctx is done.
type Feed interface {
	Subscribe(ctx context.Context, f Filter) (<-chan Change, error)
}

// Publisher accepts changes for fan-out.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, c Change) error

func (f PublisherFunc) Publish(ctx context.Context, c Change) error {
	return f(ctx, c)
}

// Fanout publishes to every publisher in order and returns the first error.
type Fanout []Publisher

func (fo Fanout) Publish(ctx context.Context, c Change) error {
	for _, p := range fo {
		if err := p.Publish(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
