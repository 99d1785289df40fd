package engine

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Mover resolves a requested unit move into the authoritative resulting position.
type Mover interface {
	Move(ctx context.Context, role Role, from Position, d Direction) (Position, error)
}

// Starts are the positions an episode begins from.
type Starts struct {
	Police Position `json:"police"`
	Thief  Position `json:"thief"`
	Goal   Position `json:"goal"`
}

// Resetter supplies the starting positions of a new episode.
type Resetter interface {
	Reset(ctx context.Context) (Starts, error)
}

// LocalMover resolves moves against a GridMaze in-process.
type LocalMover struct {
	maze   *GridMaze
	logger zerolog.Logger
}

// NewLocalMover returns a Mover backed by maze.
func NewLocalMover(maze *GridMaze, logger zerolog.Logger) *LocalMover {
	return &LocalMover{maze: maze, logger: logger}
}

// Move never fails: an illegal move leaves the agent where it was.
func (m *LocalMover) Move(_ context.Context, role Role, from Position, d Direction) (Position, error) {
	next, err := m.maze.Resolve(from, d)
	if errors.Is(err, ErrInvalidMove) {
		m.logger.Debug().Str("role", role.String()).Str("from", from.String()).Str("dir", d.String()).Msg("move rejected")
		return from, nil
	}
	return next, err
}

// StaticResetter always answers the same starts.
type StaticResetter Starts

// Reset implements Resetter.
func (s StaticResetter) Reset(context.Context) (Starts, error) {
	return Starts(s), nil
}
