package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pursuit-rl-go/internal/config"
	"pursuit-rl-go/internal/engine"
	"pursuit-rl-go/internal/events"
	"pursuit-rl-go/internal/render"
)

const progressEvery = 100

var trainWatch bool

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the configured role and save the value table",
	RunE:  runTrain,
}

func init() {
	d := config.Default()
	f := trainCmd.Flags()
	f.Int("epochs", d.Training.Epochs, "Training episodes")
	f.Int("episode-steps", d.Training.MaxSteps, "Step cap per training episode (0 uses --max-steps)")
	f.Float64("initial-lr", d.Training.InitialLR, "Learning rate of the first decay block")
	f.Float64("min-lr", d.Training.MinLR, "Learning rate floor")
	f.Float64("decay-rate", d.Training.DecayRate, "Learning rate factor per decay block")
	f.Int("decay-block", d.Training.DecayBlock, "Epochs per decay block")
	f.Float64("gamma", d.Training.Gamma, "Discount factor")
	f.Float64("epsilon", d.Training.Epsilon, "Probability of a uniformly random action")
	f.Int("eval-episodes", d.Training.EvalEpisodes, "Episodes used to evaluate the trained policy")
	f.String("chart", d.Render.Chart, "Write an HTML reward chart to this path")
	f.BoolVar(&trainWatch, "watch", false, "Animate one greedy episode after training")

	bindFlags(trainCmd, map[string]string{
		"training.epochs":        "epochs",
		"training.max_steps":     "episode-steps",
		"training.initial_lr":    "initial-lr",
		"training.min_lr":        "min-lr",
		"training.decay_rate":    "decay-rate",
		"training.decay_block":   "decay-block",
		"training.gamma":         "gamma",
		"training.epsilon":       "epsilon",
		"training.eval_episodes": "eval-episodes",
		"render.chart":           "chart",
	})
}

func runTrain(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	trainer, s, err := a.trainer(ctx)
	if err != nil {
		return err
	}
	pub, err := a.publisher()
	if err != nil {
		return err
	}
	role := trainer.Config().Role.String()
	publishRun(ctx, a, pub, events.RunEvent{RunID: a.runID, Role: role, State: "started", Epochs: trainer.Config().Epochs})

	rewards := make([]float64, 0, trainer.Config().Epochs)
	var last engine.Snapshot
	for snap := range trainer.Run(ctx) {
		last = snap
		if snap.Status != engine.SnapshotEpisodeComplete {
			continue
		}
		rewards = append(rewards, snap.EpisodeReward)
		if err := pub.PublishEpoch(ctx, events.EpochFromSnapshot(a.runID, snap)); err != nil {
			a.logger.Warn().Err(err).Int("epoch", snap.Epoch).Msg("epoch event not published")
		}
		if (snap.Epoch+1)%progressEvery == 0 {
			a.logger.Info().
				Int("epoch", snap.Epoch+1).
				Float64("lr", snap.LearningRate).
				Float64("mean_reward", meanTail(rewards, progressEvery)).
				Int("catches", snap.Catches).
				Int("escapes", snap.Escapes).
				Int("truncations", snap.Truncations).
				Msg("training progress")
		}
	}

	// Save whatever was learned, including after a cancel or a transport failure.
	saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if s != nil {
		if err := s.Save(saveCtx, trainer.Table()); err != nil {
			a.logger.Error().Err(err).Msg("value table not saved")
			publishRun(saveCtx, a, pub, events.RunEvent{RunID: a.runID, Role: role, State: engine.SnapshotFailed, LastError: err.Error()})
			return err
		}
		a.logger.Info().Str("store", a.cfg.Store.Kind).Msg("value table saved")
	}

	result := events.RunEvent{
		RunID:      a.runID,
		Role:       role,
		State:      last.Status,
		Epochs:     last.EpisodesCompleted,
		MeanReward: meanTail(rewards, 0),
		ElapsedMS:  last.Elapsed.Milliseconds(),
	}
	if last.Err != nil {
		result.LastError = last.Err.Error()
	}
	publishRun(saveCtx, a, pub, result)
	if last.Status != engine.SnapshotDone {
		return last.Err
	}

	if a.cfg.Render.Chart != "" {
		if err := writeChart(a.cfg.Render.Chart, rewards); err != nil {
			return err
		}
		a.logger.Info().Str("path", a.cfg.Render.Chart).Msg("reward chart written")
	}

	if err := evaluate(ctx, cmd, a, trainer); err != nil {
		return err
	}
	if trainWatch {
		ep, err := trainer.Rollout(ctx, trainer.Policy())
		if err != nil {
			return err
		}
		term := render.NewTerminal(a.layout.Maze, a.cfg.Render.Color)
		return term.Animate(ctx, cmd.OutOrStdout(), ep.Frames, a.cfg.Render.Delay)
	}
	return nil
}

// evaluate compares the greedy policy with a uniformly random one.
func evaluate(ctx context.Context, cmd *cobra.Command, a *app, trainer *engine.Trainer) error {
	episodes := trainer.Config().EvalEpisodes
	trained, err := trainer.Evaluate(ctx, trainer.Policy(), episodes)
	if err != nil {
		return fmt.Errorf("evaluate trained policy: %w", err)
	}
	random, err := trainer.Evaluate(ctx, engine.NewRandomPolicy(rand.New(rand.NewSource(a.cfg.Training.Seed+1))), episodes)
	if err != nil {
		return fmt.Errorf("evaluate random policy: %w", err)
	}
	a.logger.Info().
		Int("episodes", episodes).
		Float64("trained", trained).
		Float64("random", random).
		Msg("evaluation finished")
	fmt.Fprintf(cmd.OutOrStdout(), "%s over %d episodes: trained %.2f, random %.2f\n",
		trainer.Config().Role, episodes, trained, random)
	return nil
}

func publishRun(ctx context.Context, a *app, pub events.Publisher, event events.RunEvent) {
	if err := pub.PublishRun(ctx, event); err != nil {
		a.logger.Warn().Err(err).Str("state", event.State).Msg("run event not published")
	}
}

func writeChart(path string, rewards []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.WriteRewardChart(f, rewards, progressEvery); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// meanTail averages the last n values, or all of them when n <= 0.
func meanTail(values []float64, n int) float64 {
	return engine.Summary{Rewards: values}.MeanReward(n)
}
