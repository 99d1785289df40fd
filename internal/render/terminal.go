package render

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/logrusorgru/aurora"

	"pursuit-rl-go/internal/engine"
)

const clearScreen = "\033[H\033[2J"

// Terminal draws a maze and the agents as text, coloured when enabled.
type Terminal struct {
	maze  *engine.GridMaze
	au    aurora.Aurora
	color bool
}

func NewTerminal(maze *engine.GridMaze, color bool) *Terminal {
	return &Terminal{maze: maze, au: aurora.NewAurora(color), color: color}
}

// Glyph returns the character drawn at p for frame: X for a catch, then P, T, G,
// '#' for walls and '.' for open cells.
func Glyph(maze *engine.GridMaze, frame engine.Frame, p engine.Position) byte {
	obs := frame.Observation
	switch {
	case obs.Police == obs.Thief && p == obs.Police:
		return 'X'
	case p == obs.Police:
		return 'P'
	case p == obs.Thief:
		return 'T'
	case p == frame.Goal:
		return 'G'
	case !maze.IsOpen(p):
		return '#'
	}
	return '.'
}

func (t *Terminal) paint(g byte) string {
	s := string(g)
	switch g {
	case 'X':
		return t.au.Bold(t.au.Red(s)).String()
	case 'P':
		return t.au.Blue(s).String()
	case 'T':
		return t.au.Yellow(s).String()
	case 'G':
		return t.au.Green(s).String()
	case '#':
		return t.au.BrightBlack(s).String()
	}
	return s
}

// Draw writes one frame followed by a status line.
func (t *Terminal) Draw(w io.Writer, frame engine.Frame) error {
	width, height := t.maze.Bounds()
	var b strings.Builder
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			b.WriteString(t.paint(Glyph(t.maze, frame, engine.Position{X: x, Y: y})))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "step %d", frame.Step)
	if frame.Action != "" {
		fmt.Fprintf(&b, "  action %s  reward %.0f", frame.Action, frame.Reward)
	}
	fmt.Fprintf(&b, "  %s\n", frame.Status)
	_, err := io.WriteString(w, b.String())
	return err
}

// Animate draws frames one after another, delay apart. With colour enabled the
// screen is cleared before each frame.
func (t *Terminal) Animate(ctx context.Context, w io.Writer, frames []engine.Frame, delay time.Duration) error {
	for i, frame := range frames {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if t.color {
			if _, err := io.WriteString(w, clearScreen); err != nil {
				return err
			}
		} else if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := t.Draw(w, frame); err != nil {
			return err
		}
	}
	return nil
}
