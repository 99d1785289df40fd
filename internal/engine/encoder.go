package engine

import "fmt"

// StateIndex is the table key of a joint observation: the linear open-cell
// index of each agent.
type StateIndex struct {
	Police int
	Thief  int
}

// StateEncoder numbers the open cells of a maze in row-major order and keys
// joint observations by the pair of cell numbers. Distinct open-cell pairs
// never share an index.
type StateEncoder struct {
	index map[Position]int
	cells []Position
}

// NewStateEncoder indexes the open cells of maze.
func NewStateEncoder(maze *GridMaze) *StateEncoder {
	cells := maze.OpenCells()
	index := make(map[Position]int, len(cells))
	for i, p := range cells {
		index[p] = i
	}
	return &StateEncoder{index: index, cells: cells}
}

// States is the number of per-agent states.
func (e *StateEncoder) States() int { return len(e.cells) }

// Cell returns the position numbered i.
func (e *StateEncoder) Cell(i int) (Position, bool) {
	if i < 0 || i >= len(e.cells) {
		return Position{}, false
	}
	return e.cells[i], true
}

// CellIndex returns the number of an open cell.
func (e *StateEncoder) CellIndex(p Position) (int, bool) {
	i, ok := e.index[p]
	return i, ok
}

// Encode keys the joint observation. Positions off the open cells cannot be
// reached by any agent and are rejected.
func (e *StateEncoder) Encode(police, thief Position) (StateIndex, error) {
	pi, ok := e.index[police]
	if !ok {
		return StateIndex{}, fmt.Errorf("%w: police at %s is not an open cell", ErrPreconditionViolation, police)
	}
	ti, ok := e.index[thief]
	if !ok {
		return StateIndex{}, fmt.Errorf("%w: thief at %s is not an open cell", ErrPreconditionViolation, thief)
	}
	return StateIndex{Police: pi, Thief: ti}, nil
}

// EncodeObservation is Encode on an Observation.
func (e *StateEncoder) EncodeObservation(obs Observation) (StateIndex, error) {
	return e.Encode(obs.Police, obs.Thief)
}

// Flat folds a StateIndex into a single integer in [0, States()^2).
func (e *StateEncoder) Flat(s StateIndex) int {
	return s.Police*len(e.cells) + s.Thief
}
