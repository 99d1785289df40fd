package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMove describes a move that would leave the grid or enter a wall.
	// The environment absorbs it by leaving the agent in place.
	ErrInvalidMove = errors.New("invalid move")

	// ErrPreconditionViolation is returned when an operation is used outside its contract,
	// e.g. stepping an episode that already terminated.
	ErrPreconditionViolation = errors.New("precondition violation")

	// ErrNumericDegenerate marks an exploitation distribution that had to be repaired.
	ErrNumericDegenerate = errors.New("numerically degenerate action distribution")
)

// TransportError reports a failed call to a movement or reset provider.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceError reports a failed value table load or save.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TrainingError pins a fatal error to the epoch and step where it surfaced.
type TrainingError struct {
	Epoch int
	Step  int
	Err   error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training aborted at epoch %d step %d: %v", e.Epoch, e.Step, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }
