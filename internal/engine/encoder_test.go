package engine

import (
	"errors"
	"testing"
)

func TestEncodeIsPureAndCollisionFree(t *testing.T) {
	layout, err := ParseLayout(DefaultLayout)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	enc := NewStateEncoder(layout.Maze)
	if enc.States() != layout.Maze.OpenCount() {
		t.Fatalf("expected %d states, got %d", layout.Maze.OpenCount(), enc.States())
	}
	seen := make(map[int]Observation)
	cells := layout.Maze.OpenCells()
	for _, p := range cells {
		for _, th := range cells {
			first, err := enc.Encode(p, th)
			if err != nil {
				t.Fatalf("encode %s %s: %v", p, th, err)
			}
			second, _ := enc.Encode(p, th)
			if first != second {
				t.Fatalf("encode is not deterministic for %s %s", p, th)
			}
			flat := enc.Flat(first)
			if prev, ok := seen[flat]; ok {
				t.Fatalf("collision: %+v and %+v both map to %d", prev, Observation{Police: p, Thief: th}, flat)
			}
			seen[flat] = Observation{Police: p, Thief: th}
		}
	}
	if len(seen) != len(cells)*len(cells) {
		t.Fatalf("expected %d keys, got %d", len(cells)*len(cells), len(seen))
	}
}

func TestEncodeRejectsWalls(t *testing.T) {
	layout, err := ParseLayout(DefaultLayout)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	enc := NewStateEncoder(layout.Maze)
	if _, err := enc.Encode(Position{X: 4, Y: 0}, layout.ThiefStart); !errors.Is(err, ErrPreconditionViolation) {
		t.Fatalf("expected precondition violation for a wall, got %v", err)
	}
	if _, err := enc.Encode(layout.PoliceStart, Position{X: -1, Y: 0}); !errors.Is(err, ErrPreconditionViolation) {
		t.Fatalf("expected precondition violation outside the grid, got %v", err)
	}
}

func TestCellRoundTrip(t *testing.T) {
	layout, err := ParseLayout(DefaultLayout)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	enc := NewStateEncoder(layout.Maze)
	for i := 0; i < enc.States(); i++ {
		cell, ok := enc.Cell(i)
		if !ok {
			t.Fatalf("cell %d missing", i)
		}
		j, ok := enc.CellIndex(cell)
		if !ok || j != i {
			t.Fatalf("expected index %d for %s, got %d", i, cell, j)
		}
	}
	if _, ok := enc.Cell(enc.States()); ok {
		t.Fatalf("index past the end should not resolve")
	}
}
