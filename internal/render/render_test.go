package render

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pursuit-rl-go/internal/engine"
)

func testMaze(t *testing.T) *engine.GridMaze {
	t.Helper()
	layout, err := engine.ParseLayout("...\n.0.\n...")
	require.NoError(t, err)
	return layout.Maze
}

func TestDrawPlain(t *testing.T) {
	term := NewTerminal(testMaze(t), false)
	frame := engine.Frame{
		Step:        3,
		Observation: engine.Observation{Police: engine.Position{X: 0, Y: 0}, Thief: engine.Position{X: 2, Y: 2}},
		Goal:        engine.Position{X: 0, Y: 2},
		Action:      "left",
		Reward:      -1,
		Status:      "running",
	}
	var buf bytes.Buffer
	require.NoError(t, term.Draw(&buf, frame))
	assert.Equal(t, "P..\n.#.\nG.T\nstep 3  action left  reward -1  running\n", buf.String())
}

func TestGlyphCaught(t *testing.T) {
	maze := testMaze(t)
	same := engine.Position{X: 2, Y: 0}
	frame := engine.Frame{Observation: engine.Observation{Police: same, Thief: same}, Goal: engine.Position{X: 0, Y: 2}}
	assert.Equal(t, byte('X'), Glyph(maze, frame, same))
	assert.Equal(t, byte('G'), Glyph(maze, frame, engine.Position{X: 0, Y: 2}))
	assert.Equal(t, byte('#'), Glyph(maze, frame, engine.Position{X: 1, Y: 1}))
}

func TestDrawColourUsesEscapes(t *testing.T) {
	term := NewTerminal(testMaze(t), true)
	var buf bytes.Buffer
	require.NoError(t, term.Draw(&buf, engine.Frame{Goal: engine.Position{X: 0, Y: 2}}))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestAnimate(t *testing.T) {
	term := NewTerminal(testMaze(t), false)
	frames := []engine.Frame{{Step: 0, Status: "running"}, {Step: 1, Status: "running"}, {Step: 2, Status: "caught"}}

	var buf bytes.Buffer
	require.NoError(t, term.Animate(context.Background(), &buf, frames, time.Millisecond))
	assert.Equal(t, 3, strings.Count(buf.String(), "step "))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	buf.Reset()
	err := term.Animate(ctx, &buf, frames, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, strings.Count(buf.String(), "step "), "first frame is drawn without waiting")
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	assert.Equal(t, []float64{2, 3, 5, 7}, got)
	assert.Equal(t, []float64{1, 3}, MovingAverage([]float64{1, 3}, 0), "window below one behaves as one")
	assert.Empty(t, MovingAverage(nil, 5))
}

func TestWriteRewardChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRewardChart(&buf, []float64{-10, -5, 20, 90}, 2))
	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "moving average")
	assert.Contains(t, html, "Episode reward")
}

func TestStreamHandler(t *testing.T) {
	maze := testMaze(t)
	episode := engine.Episode{
		Frames: []engine.Frame{
			{Step: 0, Status: "running"},
			{Step: 1, Action: "up", Reward: 100, Status: "goal_reached"},
		},
		Reward: 100,
		Steps:  1,
		Status: engine.StatusGoalReached,
	}
	source := func(ctx context.Context) (engine.Episode, error) { return episode, nil }

	ts := httptest.NewServer(StreamHandler(maze, source, time.Millisecond, zerolog.Nop()))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "maze", msg.Type)
	assert.Equal(t, []string{"...", ".0.", "..."}, msg.Rows)

	for want := 0; want < 2; want++ {
		msg = StreamMessage{}
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "frame", msg.Type)
		require.NotNil(t, msg.Frame)
		assert.Equal(t, want, msg.Frame.Step)
		assert.Equal(t, 1, msg.Episode)
	}

	msg = StreamMessage{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "episode", msg.Type)
	assert.Equal(t, 100.0, msg.Reward)
	assert.Equal(t, "goal_reached", msg.Status)

	msg = StreamMessage{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, 2, msg.Episode, "streaming continues with the next rollout")
}
