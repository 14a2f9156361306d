// Package gateway exposes rooms over HTTP and pushes every row change of a
// room to its websocket connections.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/realtime"
	"github.com/mcdev12/drawrelay/go/internal/room"
	"github.com/mcdev12/drawrelay/go/internal/stroke"
)

// Service is the gateway: HTTP API, websocket connections and the feed
// consumer that fans changes out to them.
type Service struct {
	connectionManager *ConnectionManager
	handler           *Handler
	feedConsumer      *FeedConsumer
	deps              Deps

	// connections outlive the upgrade request and are bound to this context
	baseCtx context.Context
	cancel  context.CancelFunc
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	PublicURL        string
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{ConnectionConfig: DefaultConnectionConfig()}
}

// NewService creates a new gateway service
func NewService(config Config, deps Deps, feed realtime.Feed) *Service {
	if deps.PublicURL == "" {
		deps.PublicURL = config.PublicURL
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Service{
		deps:    deps,
		handler: NewHandler(deps, config.ConnectionConfig.StrokeRate, config.ConnectionConfig.StrokeBurst),
		baseCtx: baseCtx,
		cancel:  cancel,
	}
	s.connectionManager = NewConnectionManager(config.ConnectionConfig, s.handleMessage)
	s.feedConsumer = NewFeedConsumer(s.connectionManager, feed)
	return s
}

// Start runs the connection manager and the feed consumer until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting gateway service")

	go s.connectionManager.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.feedConsumer.Start(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			s.cancel()
			return fmt.Errorf("feed consumer failed: %w", err)
		}
		<-ctx.Done()
	}

	s.cancel()
	log.Info().Msg("gateway service stopped")
	return nil
}

// RegisterRoutes registers the HTTP and WebSocket routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /ws/stats", s.handleStats)
	log.Info().Msg("gateway routes registered")
}

// Stats returns statistics about active connections
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}

// handleWebSocket upgrades a room member's connection.
func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID, err := queryUUID(r, "room_id")
	if err == nil && roomID == uuid.Nil {
		err = fmt.Errorf("%w: room_id is required", errBadRequest)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	playerID, err := queryUUID(r, "player_id")
	if err == nil && playerID == uuid.Nil {
		err = fmt.Errorf("%w: player_id is required", errBadRequest)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	m, err := s.deps.Rooms.GetMembership(r.Context(), roomID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, ok := models.FindPlayer(m.Players, playerID); !ok {
		writeError(w, r, room.ErrNotInRoom)
		return
	}

	if err := s.connectionManager.UpgradeConnection(s.baseCtx, w, r, playerID, roomID); err != nil {
		// The upgrader has already replied to the client.
		log.Error().
			Err(err).
			Str("room_id", roomID.String()).
			Str("player_id", playerID.String()).
			Msg("failed to upgrade WebSocket connection")
	}
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Stats())
}

// handleMessage runs a websocket command. Accepted strokes reach every
// connection, the sender included, through the feed.
func (s *Service) handleMessage(ctx context.Context, conn *Connection, msg ClientMessage) error {
	switch msg.Type {
	case ClientMessageStroke:
		_, err := s.deps.Strokes.SubmitStroke(ctx, stroke.SubmitStrokeRequest{
			RoomID:   conn.RoomID,
			PlayerID: conn.PlayerID,
			Points:   msg.Points,
			Color:    msg.Color,
		})
		return err
	default:
		return fmt.Errorf("%w: unknown message type %q", errBadRequest, msg.Type)
	}
}
