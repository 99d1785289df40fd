package engine

import (
	"fmt"
	"strings"
)

// StateValues maps every cell to max_a Q for role standing there while the other
// agent holds the position it had at the last reset. Walls and the other agent's
// cell read as zero.
func (t *Trainer) StateValues(role Role) [][]float64 {
	width, height := t.env.Maze().Bounds()
	values := make([][]float64, height)
	for y := range values {
		values[y] = make([]float64, width)
	}
	other := t.starts.Thief
	if role == RoleThief {
		other = t.starts.Police
	}
	otherIdx, ok := t.encoder.CellIndex(other)
	if !ok {
		return values
	}
	for i := 0; i < t.encoder.States(); i++ {
		if i == otherIdx {
			continue
		}
		cell, _ := t.encoder.Cell(i)
		s := StateIndex{Police: otherIdx, Thief: i}
		if role == RolePolice {
			s = StateIndex{Police: i, Thief: otherIdx}
		}
		values[cell.Y][cell.X] = t.table.MaxValue(s)
	}
	return values
}

// FormatValues renders a value map as fixed-width text.
func FormatValues(values [][]float64) string {
	var b strings.Builder
	for _, row := range values {
		for _, v := range row {
			fmt.Fprintf(&b, "%8.2f ", v)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
