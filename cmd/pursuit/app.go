package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pursuit-rl-go/internal/config"
	"pursuit-rl-go/internal/engine"
	"pursuit-rl-go/internal/events"
	"pursuit-rl-go/internal/logging"
	"pursuit-rl-go/internal/remote"
	"pursuit-rl-go/internal/store"
)

// app carries what every subcommand builds from the configuration.
type app struct {
	cfg    *config.Config
	runID  string
	logger zerolog.Logger
	layout engine.Layout

	closers []func()
}

func newApp() (*app, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	layout, err := cfg.Maze.Resolve()
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr).
		With().Str("run_id", runID).Logger()
	w, h := layout.Maze.Bounds()
	logger.Debug().
		Int("width", w).
		Int("height", h).
		Int("open", layout.Maze.OpenCount()).
		Str("police", layout.PoliceStart.String()).
		Str("thief", layout.ThiefStart.String()).
		Str("goal", layout.Goal.String()).
		Msg("maze loaded")
	return &app{cfg: cfg, runID: runID, logger: logger, layout: layout}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// environment wires the movement provider selected by transport.mode.
func (a *app) environment() (*engine.Environment, error) {
	var (
		mover    engine.Mover
		resetter engine.Resetter
	)
	switch a.cfg.Transport.Mode {
	case config.TransportRemote:
		client := remote.NewClient(a.cfg.Transport.Addr, a.layout.Maze, remote.ClientOptions{
			Timeout: a.cfg.Transport.Timeout,
			Retries: a.cfg.Transport.Retries,
		}, logging.Component(a.logger, "remote"))
		mover, resetter = client, client
	default:
		mover = engine.NewLocalMover(a.layout.Maze, logging.Component(a.logger, "maze"))
		resetter = engine.StaticResetter(config.Starts(a.layout))
	}
	return engine.NewEnvironment(a.layout.Maze, mover, resetter, a.cfg.Maze.MaxSteps)
}

// store opens the table store, or returns nil for store.kind none.
func (a *app) store(ctx context.Context) (store.Store, error) {
	switch a.cfg.Store.Kind {
	case config.StoreFile:
		return store.NewFileStore(a.cfg.Store.Path), nil
	case config.StorePostgres:
		pg, err := store.OpenPostgres(ctx, a.cfg.Store.DSN, a.cfg.Store.Name)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { pg.Close() })
		return pg, nil
	}
	return nil, nil
}

func (a *app) publisher() (events.Publisher, error) {
	if a.cfg.Events.NATSURL == "" {
		return events.NoopPublisher{}, nil
	}
	pub, err := events.NewNATSPublisher(a.cfg.Events.NATSURL, a.cfg.Events.Subject, logging.Component(a.logger, "events"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

// trainer builds an environment and a trainer over the stored table.
func (a *app) trainer(ctx context.Context) (*engine.Trainer, store.Store, error) {
	env, err := a.environment()
	if err != nil {
		return nil, nil, err
	}
	s, err := a.store(ctx)
	if err != nil {
		return nil, nil, err
	}
	dims := store.DimsFor(engine.NewStateEncoder(a.layout.Maze))
	table, err := store.LoadOrNew(ctx, s, dims, logging.Component(a.logger, "store"))
	if err != nil {
		return nil, nil, err
	}
	cfg, err := a.cfg.Training.Engine()
	if err != nil {
		return nil, nil, err
	}
	rng := rand.New(rand.NewSource(a.cfg.Training.Seed))
	t, err := engine.NewTrainer(env, table, cfg, rng, logging.Component(a.logger, "trainer"))
	if err != nil {
		return nil, nil, err
	}
	return t, s, nil
}
