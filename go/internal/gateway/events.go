package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/realtime"
)

// Event is the envelope pushed to websocket clients.
type Event struct {
	ID        string          `json:"id"`        // Change or event UUID
	RoomID    string          `json:"room_id"`   // Room UUID
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType represents the type of room event
type EventType string

const (
	EventTypeRoomChanged   EventType = "RoomChanged"
	EventTypePlayerChanged EventType = "PlayerChanged"
	EventTypeStrokeAdded   EventType = "StrokeAdded"
	EventTypePromptChanged EventType = "PromptChanged"
	EventTypeError         EventType = "Error"
)

var tableEvents = map[realtime.Table]EventType{
	realtime.TableRooms:   EventTypeRoomChanged,
	realtime.TablePlayers: EventTypePlayerChanged,
	realtime.TableStrokes: EventTypeStrokeAdded,
	realtime.TablePrompts: EventTypePromptChanged,
}

// EventFromChange wraps a row change. The whole change, op and seq
// included, is the payload so clients can run the same reconciliation.
func EventFromChange(c realtime.Change) (*Event, error) {
	typ, ok := tableEvents[c.Table]
	if !ok {
		return nil, fmt.Errorf("unknown table: %s", c.Table)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal change: %w", err)
	}
	return &Event{
		ID:        c.ID.String(),
		RoomID:    c.RoomID.String(),
		Type:      typ,
		Timestamp: c.At,
		Data:      data,
	}, nil
}

// ErrorPayload is sent back to a single connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

func errorEvent(roomID uuid.UUID, msg string) *Event {
	data, _ := json.Marshal(ErrorPayload{Message: msg})
	return &Event{
		ID:        uuid.NewString(),
		RoomID:    roomID.String(),
		Type:      EventTypeError,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// ClientMessageType is the kind of message a websocket client sends.
type ClientMessageType string

const (
	ClientMessageStroke ClientMessageType = "stroke"
)

// ClientMessage is a command received over the websocket.
type ClientMessage struct {
	Type   ClientMessageType `json:"type"`
	Points []models.Point    `json:"points,omitempty"`
	Color  string            `json:"color,omitempty"`
}
