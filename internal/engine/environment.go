package engine

import (
	"context"
	"fmt"
)

// Status is the episode state machine.
type Status int

const (
	StatusRunningEpisode Status = iota
	StatusCaught
	StatusGoalReached
	StatusTruncated
)

func (s Status) String() string {
	switch s {
	case StatusRunningEpisode:
		return "running"
	case StatusCaught:
		return "caught"
	case StatusGoalReached:
		return "goal_reached"
	case StatusTruncated:
		return "truncated"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether s ends the episode.
func (s Status) Terminal() bool {
	return s != StatusRunningEpisode
}

const (
	StepReward = -1.0
	WinReward  = 100.0
)

// Observation is the joint state seen by both agents.
type Observation struct {
	Police Position `json:"police"`
	Thief  Position `json:"thief"`
}

// Environment couples a police agent and a thief agent chasing over a maze toward a goal.
// Only one agent moves per step.
type Environment struct {
	maze     *GridMaze
	resetter Resetter
	police   *Agent
	thief    *Agent
	goal     Position
	maxSteps int
	steps    int
	status   Status
	ready    bool
}

// NewEnvironment wires a maze with its movement and reset providers.
// Reset must be called before the first step.
func NewEnvironment(maze *GridMaze, mover Mover, resetter Resetter, maxSteps int) (*Environment, error) {
	if maze == nil || mover == nil || resetter == nil {
		return nil, fmt.Errorf("%w: environment needs a maze, a mover and a resetter", ErrPreconditionViolation)
	}
	if maxSteps <= 0 {
		return nil, fmt.Errorf("%w: max steps must be positive (got %d)", ErrPreconditionViolation, maxSteps)
	}
	return &Environment{
		maze:     maze,
		resetter: resetter,
		police:   newAgent(RolePolice, Position{}, mover),
		thief:    newAgent(RoleThief, Position{}, mover),
		maxSteps: maxSteps,
	}, nil
}

// Reset places both agents and the goal at the starts given by the resetter,
// zeroes the step counter and returns the episode to running.
func (e *Environment) Reset(ctx context.Context) (Starts, error) {
	starts, err := e.resetter.Reset(ctx)
	if err != nil {
		return Starts{}, err
	}
	for name, p := range map[string]Position{"police": starts.Police, "thief": starts.Thief, "goal": starts.Goal} {
		if !e.maze.IsOpen(p) {
			return Starts{}, fmt.Errorf("%w: %s start %s is not an open cell", ErrPreconditionViolation, name, p)
		}
	}
	if starts.Police == starts.Thief || starts.Thief == starts.Goal {
		return Starts{}, fmt.Errorf("%w: starts %+v end the episode before the first step", ErrPreconditionViolation, starts)
	}
	e.police.place(starts.Police)
	e.thief.place(starts.Thief)
	e.goal = starts.Goal
	e.steps = 0
	e.status = StatusRunningEpisode
	e.ready = true
	return starts, nil
}

// StepThief moves the thief one cell.
func (e *Environment) StepThief(ctx context.Context, d Direction) (Observation, float64, bool, error) {
	return e.Step(ctx, RoleThief, d)
}

// StepPolice moves the police one cell.
func (e *Environment) StepPolice(ctx context.Context, d Direction) (Observation, float64, bool, error) {
	return e.Step(ctx, RolePolice, d)
}

// Step advances the agent playing role by one action. The other agent stays put.
// Rewards are opposed: a catch pays the police +100 and the thief -100, an escape
// pays the thief +100 and the police -100, any other step costs -1.
// Stepping a finished episode fails with ErrPreconditionViolation.
func (e *Environment) Step(ctx context.Context, role Role, d Direction) (Observation, float64, bool, error) {
	if !e.ready {
		return e.Observe(), 0, false, fmt.Errorf("%w: step before reset", ErrPreconditionViolation)
	}
	if e.status.Terminal() {
		return e.Observe(), 0, true, fmt.Errorf("%w: step after episode ended (%s)", ErrPreconditionViolation, e.status)
	}
	agent := e.agent(role)
	if agent == nil {
		return e.Observe(), 0, false, fmt.Errorf("%w: unknown role %s", ErrPreconditionViolation, role)
	}
	if _, err := agent.ApplyMove(ctx, d); err != nil {
		return e.Observe(), 0, false, err
	}
	e.steps++
	e.status = e.evaluate()

	reward := StepReward
	switch e.status {
	case StatusCaught:
		reward = WinReward
		if role == RoleThief {
			reward = -WinReward
		}
	case StatusGoalReached:
		reward = WinReward
		if role == RolePolice {
			reward = -WinReward
		}
	}
	return e.Observe(), reward, e.status.Terminal(), nil
}

// evaluate checks both terminal conditions regardless of who moved.
// A catch on the goal cell counts as a catch.
func (e *Environment) evaluate() Status {
	switch {
	case e.police.pos == e.thief.pos:
		return StatusCaught
	case e.thief.pos == e.goal:
		return StatusGoalReached
	case e.steps >= e.maxSteps:
		return StatusTruncated
	}
	return StatusRunningEpisode
}

func (e *Environment) agent(role Role) *Agent {
	switch role {
	case RolePolice:
		return e.police
	case RoleThief:
		return e.thief
	}
	return nil
}

// Observe returns the current joint positions.
func (e *Environment) Observe() Observation {
	return Observation{Police: e.police.pos, Thief: e.thief.pos}
}

// Done reports whether the current episode has ended.
func (e *Environment) Done() bool { return e.ready && e.status.Terminal() }

func (e *Environment) Status() Status { return e.status }
func (e *Environment) Steps() int { return e.steps }
func (e *Environment) MaxSteps() int { return e.maxSteps }
func (e *Environment) Goal() Position { return e.goal }
func (e *Environment) Maze() *GridMaze { return e.maze }
func (e *Environment) Police() *Agent { return e.police }
func (e *Environment) Thief() *Agent { return e.thief }
