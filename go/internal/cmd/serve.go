package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/drawrelay/go/internal/gateway"
)

type serveOptions struct {
	bind            string
	port            int
	publicURL       string
	backend         string
	natsURL         string
	shutdownTimeout time.Duration
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the room API, websocket gateway and change feed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := root.config()
			if err != nil {
				return err
			}
			opts.apply(config)
			if err := config.validate(); err != nil {
				return err
			}
			if opts.port < 1 || opts.port > 65535 {
				return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", opts.port)
			}
			return serve(cmd.Context(), config, opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.bind, "bind", "b", "0.0.0.0", "address to bind to (env: DRAWRELAY_BIND)")
	fs.IntVarP(&opts.port, "port", "p", 8080, "port to listen on (env: DRAWRELAY_PORT)")
	fs.StringVar(&opts.publicURL, "public-url", "", "base URL encoded in join QR codes (env: DRAWRELAY_PUBLIC_URL)")
	fs.StringVar(&opts.backend, "backend", "", "store and feed backend: memory or postgres (env: DRAWRELAY_BACKEND)")
	fs.StringVar(&opts.natsURL, "nats-url", "", "fan changes out through this NATS server (env: DRAWRELAY_NATS_URL)")
	fs.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "time to drain requests on shutdown (env: DRAWRELAY_SHUTDOWN_TIMEOUT)")
	bindEnv(fs)

	return cmd
}

// apply lets flags override the config file.
func (o *serveOptions) apply(config *Config) {
	if o.publicURL != "" {
		config.PublicURL = o.publicURL
	}
	if o.backend != "" {
		config.Feed.Backend = o.backend
	}
	if o.natsURL != "" {
		config.Feed.NATS.Enabled = true
		config.Feed.NATS.URL = o.natsURL
	}
}

func serve(parent context.Context, config *Config, opts *serveOptions) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := setupRuntime(ctx, config)
	if err != nil {
		return err
	}
	defer rt.close()

	services := setupServices(rt.repo, config)
	gwConfig := gateway.DefaultConfig()
	gwConfig.PublicURL = config.PublicURL
	gw := gateway.NewService(gwConfig, services.gatewayDeps(config.PublicURL), rt.feed)

	server := setupServer(net.JoinHostPort(opts.bind, strconv.Itoa(opts.port)), gw)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.start(gctx)
	})
	g.Go(func() error {
		return gw.Start(gctx)
	})
	g.Go(func() error {
		log.Info().
			Str("addr", server.Addr).
			Str("backend", config.Feed.Backend).
			Bool("nats", config.Feed.NATS.Enabled).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down server")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
