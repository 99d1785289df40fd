package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pursuit-rl-go/internal/engine"
)

type message struct {
	subject string
	data    []byte
}

type recordingConn struct {
	messages []message
	err      error
}

func (r *recordingConn) Publish(subject string, data []byte) error {
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, message{subject: subject, data: data})
	return nil
}

func TestNATSPublisherSubjects(t *testing.T) {
	rc := &recordingConn{}
	pub := newPublisher(rc, "pursuit", zerolog.Nop())
	ctx := context.Background()

	snap := engine.Snapshot{
		Epoch:         7,
		EpisodeSteps:  12,
		EpisodeReward: 89,
		LearningRate:  0.85,
		Outcome:       "goal_reached",
		Escapes:       3,
		Config:        engine.Config{Role: engine.RoleThief},
	}
	require.NoError(t, pub.PublishEpoch(ctx, EpochFromSnapshot("run-1", snap)))
	require.NoError(t, pub.PublishRun(ctx, RunEvent{RunID: "run-1", Role: "thief", State: "done", Epochs: 8}))

	require.Len(t, rc.messages, 2)
	assert.Equal(t, "pursuit.epochs", rc.messages[0].subject)
	assert.Equal(t, "pursuit.runs", rc.messages[1].subject)

	var got EpochEvent
	require.NoError(t, json.Unmarshal(rc.messages[0].data, &got))
	assert.Equal(t, "thief", got.Role)
	assert.Equal(t, 7, got.Epoch)
	assert.Equal(t, 3, got.Escapes)
	assert.Equal(t, "goal_reached", got.Outcome)
}

func TestNATSPublisherErrors(t *testing.T) {
	boom := errors.New("broker gone")
	pub := newPublisher(&recordingConn{err: boom}, "pursuit", zerolog.Nop())
	assert.ErrorIs(t, pub.PublishRun(context.Background(), RunEvent{}), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rc := &recordingConn{}
	pub = newPublisher(rc, "pursuit", zerolog.Nop())
	assert.ErrorIs(t, pub.PublishEpoch(ctx, EpochEvent{}), context.Canceled)
	assert.Empty(t, rc.messages)
}

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = NoopPublisher{}
	assert.NoError(t, pub.PublishEpoch(context.Background(), EpochEvent{}))
	assert.NoError(t, pub.PublishRun(context.Background(), RunEvent{}))
}
