package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"pursuit-rl-go/internal/engine"
)

var (
	// ErrNotFound indicates no table has been saved yet.
	ErrNotFound = errors.New("not found")
	// ErrCorrupt indicates the stored bytes do not decode to a table.
	ErrCorrupt = errors.New("corrupt table")
)

// Store persists a value table between runs.
type Store interface {
	Load(ctx context.Context) (*engine.QTable, error)
	Save(ctx context.Context, table *engine.QTable) error
}

// Dims are the expected table dimensions.
type Dims struct {
	Police  int
	Thief   int
	Actions int
}

// DimsFor returns the dimensions a table over encoder's cells must have.
func DimsFor(encoder *engine.StateEncoder) Dims {
	n := encoder.States()
	return Dims{Police: n, Thief: n, Actions: engine.NumActions}
}

func (d Dims) matches(table *engine.QTable) bool {
	p, t, a := table.Dims()
	return p == d.Police && t == d.Thief && a == d.Actions
}

func (d Dims) String() string {
	return fmt.Sprintf("%dx%dx%d", d.Police, d.Thief, d.Actions)
}

// LoadOrNew returns the stored table, or a zero table when nothing usable is stored.
// A missing, corrupt or differently shaped table is logged and replaced; only a
// cancelled context is returned as an error.
func LoadOrNew(ctx context.Context, s Store, dims Dims, logger zerolog.Logger) (*engine.QTable, error) {
	fresh := func() *engine.QTable {
		return engine.NewQTable(dims.Police, dims.Thief, dims.Actions)
	}
	if s == nil {
		return fresh(), nil
	}
	table, err := s.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		logger.Info().Msg("no stored table, starting fresh")
		return fresh(), nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		logger.Warn().Err(err).Msg("stored table unreadable, starting fresh")
		return fresh(), nil
	}
	if !dims.matches(table) {
		p, t, a := table.Dims()
		logger.Warn().
			Str("stored", Dims{Police: p, Thief: t, Actions: a}.String()).
			Str("expected", dims.String()).
			Msg("stored table does not fit the maze, starting fresh")
		return fresh(), nil
	}
	logger.Info().Str("dims", dims.String()).Msg("loaded stored table")
	return table, nil
}
