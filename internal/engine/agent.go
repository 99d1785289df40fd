package engine

import (
	"context"
	"fmt"
	"strings"
)

// Role identifies one of the two agents.
type Role int

const (
	RolePolice Role = iota
	RoleThief
)

func (r Role) String() string {
	switch r {
	case RolePolice:
		return "police"
	case RoleThief:
		return "thief"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Other returns the opposing role.
func (r Role) Other() Role {
	if r == RolePolice {
		return RoleThief
	}
	return RolePolice
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole accepts "police" or "thief" (case-insensitive).
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "police":
		return RolePolice, nil
	case "thief":
		return RoleThief, nil
	default:
		return 0, fmt.Errorf("%w: unknown role %q", ErrPreconditionViolation, s)
	}
}

// Direction is one of the four unit moves. Its integer value is the action index.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

// NumActions is the size of the action enumeration.
const NumActions = 4

// Directions lists every action in enumeration order.
var Directions = [NumActions]Direction{Up, Right, Down, Left}

// Valid reports whether d is one of the four unit moves.
func (d Direction) Valid() bool {
	return d >= Up && d <= Left
}

// Delta returns the (dx, dy) unit vector of d.
func (d Direction) Delta() (int, int) {
	switch d {
	case Up:
		return 0, -1
	case Right:
		return 1, 0
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	}
	return 0, 0
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// DirectionFromDelta maps a unit vector back to its Direction.
func DirectionFromDelta(dx, dy int) (Direction, bool) {
	for _, d := range Directions {
		ddx, ddy := d.Delta()
		if ddx == dx && ddy == dy {
			return d, true
		}
	}
	return 0, false
}

// Agent is a role with a position. It never checks legality itself; the mover
// answers with the authoritative position and the agent stores it.
type Agent struct {
	role  Role
	pos   Position
	mover Mover
}

func newAgent(role Role, pos Position, mover Mover) *Agent {
	return &Agent{role: role, pos: pos, mover: mover}
}

// Role returns the agent identity.
func (a *Agent) Role() Role { return a.role }

// Position returns a snapshot of the agent's cell.
func (a *Agent) Position() Position { return a.pos }

// ApplyMove asks the mover to resolve d and replaces the stored position with the answer.
func (a *Agent) ApplyMove(ctx context.Context, d Direction) (Position, error) {
	if !d.Valid() {
		return a.pos, fmt.Errorf("%w: %s is not a unit move", ErrPreconditionViolation, d)
	}
	next, err := a.mover.Move(ctx, a.role, a.pos, d)
	if err != nil {
		return a.pos, err
	}
	a.pos = next
	return next, nil
}

func (a *Agent) place(pos Position) {
	a.pos = pos
}
