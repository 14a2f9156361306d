package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/drawrelay/go/internal/client"
	"github.com/mcdev12/drawrelay/go/internal/coordinator"
	"github.com/mcdev12/drawrelay/go/internal/gateway"
	"github.com/mcdev12/drawrelay/go/internal/prompt"
	"github.com/mcdev12/drawrelay/go/internal/realtime"
	"github.com/mcdev12/drawrelay/go/internal/room"
	"github.com/mcdev12/drawrelay/go/internal/store/memory"
	"github.com/mcdev12/drawrelay/go/internal/stroke"
)

// repository is what the memory and postgres stores both implement.
type repository interface {
	room.Repository
	stroke.Repository
	prompt.Repository
	coordinator.TurnStore
}

type Services struct {
	Rooms       *room.App
	Strokes     *stroke.App
	Prompts     *prompt.App
	Coordinator *coordinator.HostCoordinator
}

func setupServices(repo repository, config *Config) *Services {
	// Store → App layer → Coordinator
	roomsApp := room.NewApp(repo, config.Themes)
	strokesApp := stroke.NewApp(repo)
	promptsApp := prompt.NewApp(repo)

	return &Services{
		Rooms:       roomsApp,
		Strokes:     strokesApp,
		Prompts:     promptsApp,
		Coordinator: coordinator.NewHostCoordinator(repo, promptsApp),
	}
}

func (s *Services) gatewayDeps(publicURL string) gateway.Deps {
	return gateway.Deps{
		Rooms:       s.Rooms,
		Strokes:     s.Strokes,
		Prompts:     s.Prompts,
		Coordinator: s.Coordinator,
		Elector:     coordinator.HostElector{},
		PublicURL:   publicURL,
	}
}

func (s *Services) backend() client.Local {
	return client.Local{Rooms: s.Rooms, Strokes: s.Strokes, Prompts: s.Prompts}
}

// runtime is a store with the change feed its writes reach.
type runtime struct {
	repo  repository
	feed  realtime.Feed
	start func(ctx context.Context) error
	close func()
}

// setupRuntime builds the store and feed the config selects. Changes go
// to the in-process bus unless NATS is enabled, in which case every
// instance publishes to and consumes from the stream.
func setupRuntime(ctx context.Context, config *Config) (*runtime, error) {
	bus := realtime.NewBus()
	var (
		publisher realtime.Publisher = bus
		feed      realtime.Feed      = bus
		closers   []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if config.Feed.NATS.Enabled {
		js := config.Feed.NATS.jetStream()
		relay, err := realtime.NewNATSRelay(js)
		if err != nil {
			return nil, fmt.Errorf("failed to connect NATS relay: %w", err)
		}
		closers = append(closers, func() { _ = relay.Close() })

		natsFeed, err := realtime.NewNATSFeed(js)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to connect NATS feed: %w", err)
		}
		closers = append(closers, func() { _ = natsFeed.Close() })

		publisher, feed = relay, natsFeed
		log.Info().Str("url", js.URL).Str("stream", js.StreamName).Msg("using NATS change feed")
	}

	rt := &runtime{
		feed:  feed,
		start: func(ctx context.Context) error { <-ctx.Done(); return nil },
		close: closeAll,
	}

	switch config.Feed.Backend {
	case backendPostgres:
		db, err := setupDatabase(ctx)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, db.Close)

		cfg := realtime.DefaultPGListenerConfig()
		cfg.DatabaseURL = db.dsn
		listener, err := realtime.NewPGListener(db.sql, publisher, cfg)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to create change listener: %w", err)
		}
		rt.repo = db.store
		rt.start = listener.Start
	default:
		// The memory store publishes its own changes.
		rt.repo = memory.New(nil, publisher)
	}
	return rt, nil
}
