package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

const openThreeByThree = `
P..
...
G.T
`

func newTestEnv(t testing.TB, layoutText string, maxSteps int) *Environment {
	t.Helper()
	layout, err := ParseLayout(layoutText)
	if err != nil {
		t.Fatalf("parse layout: %v", err)
	}
	starts := StaticResetter{Police: layout.PoliceStart, Thief: layout.ThiefStart, Goal: layout.Goal}
	env, err := NewEnvironment(layout.Maze, NewLocalMover(layout.Maze, zerolog.Nop()), starts, maxSteps)
	if err != nil {
		t.Fatalf("new environment: %v", err)
	}
	if _, err := env.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return env
}
