package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"pursuit-rl-go/internal/config"
	"pursuit-rl-go/internal/engine"
	"pursuit-rl-go/internal/logging"
	"pursuit-rl-go/internal/remote"
	"pursuit-rl-go/internal/render"
)

var serveFrameDelay time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the maze over HTTP and stream greedy rollouts over a websocket",
	RunE:  runServe,
}

func init() {
	d := config.Default()
	serveCmd.Flags().String("addr", d.Serve.Addr, "HTTP listen address")
	serveCmd.Flags().DurationVar(&serveFrameDelay, "frame-delay", 0, "Pause between streamed frames (0 uses render.delay)")
	bindFlags(serveCmd, map[string]string{"serve.addr": "addr"})
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	// The service is the maze authority, so its own rollouts move locally.
	a.cfg.Transport.Mode = config.TransportLocal

	ctx, stop := signalContext()
	defer stop()

	trainer, _, err := a.trainer(ctx)
	if err != nil {
		return err
	}
	logger := logging.Component(a.logger, "server")
	server := remote.NewServer(a.layout.Maze, engine.StaticResetter(config.Starts(a.layout)), logger)

	delay := a.cfg.Render.Delay
	if serveFrameDelay > 0 {
		delay = serveFrameDelay
	}
	var mu sync.Mutex
	policy := trainer.Policy()
	source := func(ctx context.Context) (engine.Episode, error) {
		mu.Lock()
		defer mu.Unlock()
		return trainer.Rollout(ctx, policy)
	}
	server.Handle("/watch", render.StreamHandler(a.layout.Maze, source, delay, logger))

	srv := &http.Server{
		Addr:              a.cfg.Serve.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", a.cfg.Serve.Addr).Msg("maze service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- err
		}
		close(done)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	<-done
	logger.Info().Msg("maze service stopped")
	return nil
}
