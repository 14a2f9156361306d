package gateway

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/drawrelay/go/internal/realtime"
)

// FeedConsumer forwards row changes from the feed to websocket clients.
type FeedConsumer struct {
	connectionManager *ConnectionManager
	feed              realtime.Feed
}

// NewFeedConsumer creates a consumer over feed.
func NewFeedConsumer(cm *ConnectionManager, feed realtime.Feed) *FeedConsumer {
	return &FeedConsumer{connectionManager: cm, feed: feed}
}

// Start consumes every room's changes until ctx is done.
func (fc *FeedConsumer) Start(ctx context.Context) error {
	changes, err := fc.feed.Subscribe(ctx, realtime.Filter{})
	if err != nil {
		return fmt.Errorf("subscribe to feed: %w", err)
	}
	log.Info().Msg("starting feed consumer")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("feed consumer shutting down")
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if err := fc.processChange(c); err != nil {
				log.Error().
					Err(err).
					Str("change_id", c.ID.String()).
					Str("table", string(c.Table)).
					Msg("failed to process change")
			}
		}
	}
}

func (fc *FeedConsumer) processChange(c realtime.Change) error {
	event, err := EventFromChange(c)
	if err != nil {
		return fmt.Errorf("convert to WebSocket event: %w", err)
	}
	fc.connectionManager.BroadcastToRoom(c.RoomID, event)

	log.Debug().
		Str("change_id", c.ID.String()).
		Str("room_id", c.RoomID.String()).
		Str("event_type", string(event.Type)).
		Msg("change broadcasted to WebSocket clients")
	return nil
}
