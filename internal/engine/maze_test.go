package engine

import (
	"errors"
	"testing"
)

func TestParseLayoutMarkers(t *testing.T) {
	layout, err := ParseLayout(DefaultLayout)
	if err != nil {
		t.Fatalf("parse default layout: %v", err)
	}
	w, h := layout.Maze.Bounds()
	if w != 5 || h != 5 {
		t.Fatalf("expected 5x5 maze, got %dx%d", w, h)
	}
	if !layout.HasPolice || !layout.HasThief || !layout.HasGoal {
		t.Fatalf("expected all markers, got %+v", layout)
	}
	if layout.Goal != (Position{X: 0, Y: 0}) || layout.PoliceStart != (Position{X: 0, Y: 4}) || layout.ThiefStart != (Position{X: 4, Y: 4}) {
		t.Fatalf("unexpected markers: %+v", layout)
	}
	for _, p := range []Position{layout.Goal, layout.PoliceStart, layout.ThiefStart} {
		if !layout.Maze.IsOpen(p) {
			t.Fatalf("marker %s should be open", p)
		}
	}
	if layout.Maze.IsOpen(Position{X: 4, Y: 0}) {
		t.Fatalf("expected wall at (4,0)")
	}
}

func TestParseStandardLabyrinth(t *testing.T) {
	layout, err := ParseLayout(StandardLabyrinth)
	if err != nil {
		t.Fatalf("parse standard labyrinth: %v", err)
	}
	w, h := layout.Maze.Bounds()
	if w != 31 || h != 31 {
		t.Fatalf("expected 31x31, got %dx%d", w, h)
	}
	if layout.Maze.OpenCount() != 451 {
		t.Fatalf("expected 451 open cells, got %d", layout.Maze.OpenCount())
	}
	if !layout.Maze.Reachable(layout.ThiefStart)[layout.Goal] {
		t.Fatalf("goal should be reachable from the thief start")
	}
}

func TestParseLayoutRejectsBadInput(t *testing.T) {
	for name, text := range map[string]string{
		"empty":     "\n\n",
		"all walls": "000\n0#0",
		"unknown":   "..x",
	} {
		if _, err := ParseLayout(text); !errors.Is(err, ErrPreconditionViolation) {
			t.Fatalf("%s: expected precondition violation, got %v", name, err)
		}
	}
}

func TestParseLayoutPadsShortRows(t *testing.T) {
	layout, err := ParseLayout("...\n.")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if layout.Maze.IsOpen(Position{X: 2, Y: 1}) {
		t.Fatalf("padded cell should be a wall")
	}
	if got := layout.Maze.String(); got != "...\n.00" {
		t.Fatalf("unexpected render %q", got)
	}
}

func TestIsOpenOutOfRange(t *testing.T) {
	layout, err := ParseLayout(DefaultLayout)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, p := range []Position{{X: -1, Y: 0}, {X: 0, Y: -1}, {X: 5, Y: 0}, {X: 0, Y: 5}, {X: 100, Y: 100}} {
		if layout.Maze.IsOpen(p) {
			t.Fatalf("expected %s to be not open", p)
		}
	}
}

func TestResolveMovesOrStays(t *testing.T) {
	layout, err := ParseLayout(DefaultLayout)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	maze := layout.Maze
	for _, p := range maze.OpenCells() {
		for _, d := range Directions {
			target := p.Add(d)
			got, err := maze.Resolve(p, d)
			if maze.IsOpen(target) {
				if err != nil || got != target {
					t.Fatalf("%s %s: expected %s, got %s (%v)", p, d, target, got, err)
				}
				continue
			}
			if got != p || !errors.Is(err, ErrInvalidMove) {
				t.Fatalf("%s %s: expected to stay with ErrInvalidMove, got %s (%v)", p, d, got, err)
			}
		}
	}
}

func TestReachableSkipsWalledOffCells(t *testing.T) {
	layout, err := ParseLayout("..0.\n..0.")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reach := layout.Maze.Reachable(Position{X: 0, Y: 0})
	if len(reach) != 4 {
		t.Fatalf("expected 4 reachable cells, got %d", len(reach))
	}
	if reach[Position{X: 3, Y: 0}] {
		t.Fatalf("cell behind the wall should not be reachable")
	}
	if len(layout.Maze.Reachable(Position{X: 2, Y: 0})) != 0 {
		t.Fatalf("a wall reaches nothing")
	}
}

func TestDirectionFromDelta(t *testing.T) {
	for _, d := range Directions {
		dx, dy := d.Delta()
		got, ok := DirectionFromDelta(dx, dy)
		if !ok || got != d {
			t.Fatalf("expected %s back from (%d,%d), got %s", d, dx, dy, got)
		}
	}
	if _, ok := DirectionFromDelta(1, 1); ok {
		t.Fatalf("diagonal deltas are not moves")
	}
	if _, ok := DirectionFromDelta(0, 0); ok {
		t.Fatalf("null delta is not a move")
	}
}
