package events

import (
	"context"

	"pursuit-rl-go/internal/engine"
)

// Publisher is implemented by downstream fan-out mechanisms.
type Publisher interface {
	PublishEpoch(ctx context.Context, event EpochEvent) error
	PublishRun(ctx context.Context, event RunEvent) error
}

// EpochEvent is emitted after every completed training episode.
type EpochEvent struct {
	RunID        string  `json:"run_id"`
	Role         string  `json:"role"`
	Epoch        int     `json:"epoch"`
	Steps        int     `json:"steps"`
	Reward       float64 `json:"reward"`
	LearningRate float64 `json:"learning_rate"`
	Outcome      string  `json:"outcome"`
	Catches      int     `json:"catches"`
	Escapes      int     `json:"escapes"`
	Truncations  int     `json:"truncations"`
}

// RunEvent tracks the lifecycle of a training run.
type RunEvent struct {
	RunID      string  `json:"run_id"`
	Role       string  `json:"role"`
	State      string  `json:"state"`
	Epochs     int     `json:"epochs"`
	MeanReward float64 `json:"mean_reward,omitempty"`
	ElapsedMS  int64   `json:"elapsed_ms,omitempty"`
	LastError  string  `json:"last_error,omitempty"`
}

// EpochFromSnapshot converts a trainer snapshot.
func EpochFromSnapshot(runID string, snap engine.Snapshot) EpochEvent {
	return EpochEvent{
		RunID:        runID,
		Role:         snap.Config.Role.String(),
		Epoch:        snap.Epoch,
		Steps:        snap.EpisodeSteps,
		Reward:       snap.EpisodeReward,
		LearningRate: snap.LearningRate,
		Outcome:      snap.Outcome,
		Catches:      snap.Catches,
		Escapes:      snap.Escapes,
		Truncations:  snap.Truncations,
	}
}

// NoopPublisher drops everything; used when no broker is configured.
type NoopPublisher struct{}

// PublishEpoch satisfies Publisher.
func (NoopPublisher) PublishEpoch(context.Context, EpochEvent) error { return nil }

// PublishRun satisfies Publisher.
func (NoopPublisher) PublishRun(context.Context, RunEvent) error { return nil }
