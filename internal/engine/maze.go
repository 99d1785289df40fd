package engine

import (
	"fmt"
	"strings"
)

// Position is a grid cell. X grows to the right, Y grows downwards.
type Position struct {
	X int `json:"x" mapstructure:"x"`
	Y int `json:"y" mapstructure:"y"`
}

// Add returns the cell reached by moving p by d. It does not check legality.
func (p Position) Add(d Direction) Position {
	dx, dy := d.Delta()
	return Position{X: p.X + dx, Y: p.Y + dy}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// ManhattanDistance is |ax-bx| + |ay-by|.
func ManhattanDistance(a, b Position) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}

type cellKind uint8

const (
	cellOpen cellKind = iota
	cellWall
)

// GridMaze is an immutable grid of open and wall cells.
type GridMaze struct {
	width  int
	height int
	cells  []cellKind
}

// NewGridMaze builds a maze of the given size with the listed walls.
// Walls outside the bounds are ignored.
func NewGridMaze(width, height int, walls []Position) (*GridMaze, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: maze dimensions %dx%d", ErrPreconditionViolation, width, height)
	}
	m := &GridMaze{width: width, height: height, cells: make([]cellKind, width*height)}
	for _, w := range walls {
		if !m.inBounds(w) {
			continue
		}
		m.cells[w.Y*width+w.X] = cellWall
	}
	if m.OpenCount() == 0 {
		return nil, fmt.Errorf("%w: maze has no open cell", ErrPreconditionViolation)
	}
	return m, nil
}

// Bounds returns the width and height of the grid.
func (m *GridMaze) Bounds() (int, int) {
	return m.width, m.height
}

func (m *GridMaze) inBounds(p Position) bool {
	return p.X >= 0 && p.X < m.width && p.Y >= 0 && p.Y < m.height
}

// IsOpen reports whether p is inside the grid and not a wall.
// Out-of-range positions are simply not open.
func (m *GridMaze) IsOpen(p Position) bool {
	if m == nil || !m.inBounds(p) {
		return false
	}
	return m.cells[p.Y*m.width+p.X] == cellOpen
}

// OpenCount is the number of open cells.
func (m *GridMaze) OpenCount() int {
	n := 0
	for _, c := range m.cells {
		if c == cellOpen {
			n++
		}
	}
	return n
}

// OpenCells lists the open cells in row-major order.
func (m *GridMaze) OpenCells() []Position {
	cells := make([]Position, 0, len(m.cells))
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if m.cells[y*m.width+x] == cellOpen {
				cells = append(cells, Position{X: x, Y: y})
			}
		}
	}
	return cells
}

// Resolve returns from+d when that cell is open, otherwise from together with ErrInvalidMove.
func (m *GridMaze) Resolve(from Position, d Direction) (Position, error) {
	if !d.Valid() {
		return from, fmt.Errorf("%w: unknown direction %d", ErrInvalidMove, d)
	}
	next := from.Add(d)
	if !m.IsOpen(next) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidMove, from, next)
	}
	return next, nil
}

// Reachable returns every open cell reachable from start using unit moves.
func (m *GridMaze) Reachable(start Position) map[Position]bool {
	seen := make(map[Position]bool)
	if !m.IsOpen(start) {
		return seen
	}
	queue := []Position{start}
	seen[start] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range Directions {
			next := cur.Add(d)
			if seen[next] || !m.IsOpen(next) {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	return seen
}

// Layout is a parsed maze with the start markers found in it.
type Layout struct {
	Maze        *GridMaze
	PoliceStart Position
	ThiefStart  Position
	Goal        Position
	HasPolice   bool
	HasThief    bool
	HasGoal     bool
}

// ParseLayout reads ASCII art: '0' or '#' is a wall, '.' or ' ' is open,
// 'P', 'T' and 'G' mark the police start, thief start and goal on open cells.
// Short rows are padded with walls. Blank leading and trailing lines are dropped.
func ParseLayout(text string) (Layout, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return Layout{}, fmt.Errorf("%w: empty layout", ErrPreconditionViolation)
	}
	width := 0
	for _, line := range lines {
		if len(line) > width {
			width = len(line)
		}
	}
	var (
		walls  []Position
		layout Layout
	)
	for y, line := range lines {
		for x := 0; x < width; x++ {
			if x >= len(line) {
				walls = append(walls, Position{X: x, Y: y})
				continue
			}
			p := Position{X: x, Y: y}
			switch line[x] {
			case '0', '#':
				walls = append(walls, p)
			case '.', ' ':
			case 'P', 'p':
				layout.PoliceStart, layout.HasPolice = p, true
			case 'T', 't':
				layout.ThiefStart, layout.HasThief = p, true
			case 'G', 'g':
				layout.Goal, layout.HasGoal = p, true
			default:
				return Layout{}, fmt.Errorf("%w: unexpected %q at %s", ErrPreconditionViolation, line[x], p)
			}
		}
	}
	maze, err := NewGridMaze(width, len(lines), walls)
	if err != nil {
		return Layout{}, err
	}
	layout.Maze = maze
	return layout, nil
}

// String renders the maze back into ASCII art without markers.
func (m *GridMaze) String() string {
	var b strings.Builder
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if m.cells[y*m.width+x] == cellWall {
				b.WriteByte('0')
			} else {
				b.WriteByte('.')
			}
		}
		if y < m.height-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// DefaultLayout is a small maze that trains in seconds.
const DefaultLayout = `
G...0
.0..0
.0.0.
...0.
P0..T
`

// StandardLabyrinth is the 31x31 escape labyrinth.
const StandardLabyrinth = `
0000000000000000000000000000000
G.........0.0...............0.0
0.0000000.0.0.0.00000000000.0.0
0.0...0...0...0.......0.......0
0.000.00000.000000000.0.0000000
0.......0.0...0.0...0.0.0.....0
0000000.0.000.0.0.0.0.000.000.0
0.....0.0...0.0...0.0.....0.0.0
0.000.0.0.000.000.0.00000.0.0.0
0.0...0.0.......0.0.0...0...0.0
0.0.000.0000000.000.0.0.000.0.0
0.0...0.....0.0.0...0.0.0...0.0
0.0.0000000.0.0.0.0.0.0.00000.0
0.0.0.......0.0.0.0.0.0.......0
0.000.0000000.0.0.0.0.0000000.0
0.0...0.......0P..0.0.....0...0
0.0.0000000.0000000.00000.0.000
0.0.......0.0...0...0.....0...0
0.0000000.0.0.0.0.000.000000000
0.......0.0.0.0.....0.........0
0.00000.0.0.0.0000000.0000000.0
0.....0...0.0.0.....0...0.....0
00000.00000.0.0.000.000.0.000.0
0...0.0.......0...0...0.0...0.0
000.0.000000000.0.000.000.0.0.0
0...0.........0.0.0.0...0.0.0.0
0.00000000000.000.0.000.0.0.000
0.....0.....0.0...0.0...0.0...0
0.000.0.000.0.0.000.0.0000000.0
0...0.....0.....0.............T
0000000000000000000000000000000
`

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
