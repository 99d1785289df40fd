package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

const (
	SnapshotRunning         = "running"
	SnapshotEpisodeComplete = "episode_complete"
	SnapshotDone            = "done"
	SnapshotCancelled       = "cancelled"
	SnapshotFailed          = "failed"
)

const (
	DefaultEpochs       = 1000
	DefaultInitialLR    = 1.0
	DefaultMinLR        = 0.003
	DefaultDecayRate    = 0.85
	DefaultDecayBlock   = 100
	DefaultGamma        = 1.0
	DefaultEpsilon      = 0.02
	DefaultEvalEpisodes = 100
)

// Config holds the training hyperparameters. Zero fields take the defaults above,
// except MinLR where zero is a valid floor and Epsilon where zero disables
// random exploration. MaxSteps defaults to the environment's step budget.
type Config struct {
	Epochs       int     `json:"epochs"`
	MaxSteps     int     `json:"maxSteps"`
	InitialLR    float64 `json:"initialLr"`
	MinLR        float64 `json:"minLr"`
	DecayRate    float64 `json:"decayRate"`
	DecayBlock   int     `json:"decayBlock"`
	Gamma        float64 `json:"gamma"`
	Epsilon      float64 `json:"epsilon"`
	Role         Role    `json:"role"`
	EvalEpisodes int     `json:"evalEpisodes"`
}

// DefaultConfig returns every hyperparameter at its default value.
func DefaultConfig() Config {
	return Config{
		Epochs:       DefaultEpochs,
		InitialLR:    DefaultInitialLR,
		MinLR:        DefaultMinLR,
		DecayRate:    DefaultDecayRate,
		DecayBlock:   DefaultDecayBlock,
		Gamma:        DefaultGamma,
		Epsilon:      DefaultEpsilon,
		Role:         RoleThief,
		EvalEpisodes: DefaultEvalEpisodes,
	}
}

func (c Config) withDefaults(envSteps int) Config {
	if c.Epochs <= 0 {
		c.Epochs = DefaultEpochs
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = envSteps
	}
	if c.InitialLR <= 0 {
		c.InitialLR = DefaultInitialLR
	}
	if c.MinLR < 0 {
		c.MinLR = 0
	}
	if c.MinLR > c.InitialLR {
		c.MinLR = c.InitialLR
	}
	if c.DecayRate <= 0 || c.DecayRate > 1 {
		c.DecayRate = DefaultDecayRate
	}
	if c.DecayBlock <= 0 {
		c.DecayBlock = DefaultDecayBlock
	}
	if c.Gamma <= 0 || c.Gamma > 1 {
		c.Gamma = DefaultGamma
	}
	c.Epsilon = math.Min(math.Max(c.Epsilon, 0), 1)
	if c.Role != RolePolice && c.Role != RoleThief {
		c.Role = RoleThief
	}
	if c.EvalEpisodes <= 0 {
		c.EvalEpisodes = DefaultEvalEpisodes
	}
	return c
}

// LearningRate is max(MinLR, InitialLR * DecayRate^(epoch / DecayBlock)).
func (c Config) LearningRate(epoch int) float64 {
	block := c.DecayBlock
	if block <= 0 {
		block = DefaultDecayBlock
	}
	return math.Max(c.MinLR, c.InitialLR*math.Pow(c.DecayRate, float64(epoch/block)))
}

// Snapshot reports training progress after each epoch.
type Snapshot struct {
	Epoch             int           `json:"epoch"`
	EpisodeSteps      int           `json:"episodeSteps"`
	EpisodeReward     float64       `json:"episodeReward"`
	LearningRate      float64       `json:"learningRate"`
	Outcome           string        `json:"outcome"`
	Observation       Observation   `json:"observation"`
	Goal              Position      `json:"goal"`
	ValueMap          [][]float64   `json:"valueMap,omitempty"`
	Catches           int           `json:"catches"`
	Escapes           int           `json:"escapes"`
	Truncations       int           `json:"truncations"`
	EpisodesCompleted int           `json:"episodesCompleted"`
	TotalReward       float64       `json:"totalReward"`
	TotalSteps        int           `json:"totalSteps"`
	Degenerate        int           `json:"degenerate"`
	Elapsed           time.Duration `json:"elapsed"`
	Config            Config        `json:"config"`
	Status            string        `json:"status"`
	Err               error         `json:"-"`
}

// Summary is the outcome of a complete training run.
type Summary struct {
	Epochs      int
	Rewards     []float64
	Catches     int
	Escapes     int
	Truncations int
	TotalSteps  int
	Degenerate  int
	FinalLR     float64
	Elapsed     time.Duration
}

// MeanReward averages the per-epoch rewards of the last n epochs (all when n <= 0).
func (s Summary) MeanReward(n int) float64 {
	rewards := s.Rewards
	if n > 0 && n < len(rewards) {
		rewards = rewards[len(rewards)-n:]
	}
	if len(rewards) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range rewards {
		total += r
	}
	return total / float64(len(rewards))
}

// Trainer runs tabular Q-learning for one role of an Environment.
type Trainer struct {
	cfg     Config
	env     *Environment
	encoder *StateEncoder
	table   *QTable
	rng     *rand.Rand
	logger  zerolog.Logger

	values            []float64
	probs             []float64
	starts            Starts
	catches           int
	escapes           int
	truncations       int
	episodesCompleted int
	totalReward       float64
	totalSteps        int
	degenerate        int
	started           time.Time
}

// NewTrainer binds env, table and the caller's random source. A nil table starts
// from zero; a table whose shape does not match the maze is rejected.
func NewTrainer(env *Environment, table *QTable, cfg Config, rng *rand.Rand, logger zerolog.Logger) (*Trainer, error) {
	if env == nil || rng == nil {
		return nil, fmt.Errorf("%w: trainer needs an environment and a random source", ErrPreconditionViolation)
	}
	encoder := NewStateEncoder(env.Maze())
	n := encoder.States()
	if table == nil {
		table = NewQTable(n, n, NumActions)
	}
	if p, t, a := table.Dims(); p != n || t != n || a != NumActions {
		return nil, fmt.Errorf("%w: table is %dx%dx%d, maze needs %dx%dx%d", ErrPreconditionViolation, p, t, a, n, n, NumActions)
	}
	return &Trainer{
		cfg:     cfg.withDefaults(env.MaxSteps()),
		env:     env,
		encoder: encoder,
		table:   table,
		rng:     rng,
		logger:  logger,
		values:  make([]float64, 0, NumActions),
		probs:   make([]float64, NumActions),
	}, nil
}

func (t *Trainer) Config() Config { return t.cfg }
func (t *Trainer) Table() *QTable { return t.table }
func (t *Trainer) Encoder() *StateEncoder { return t.encoder }
func (t *Trainer) Environment() *Environment { return t.env }

// Run trains for cfg.Epochs episodes and streams one snapshot per epoch.
// The channel closes after a done, cancelled or failed snapshot.
func (t *Trainer) Run(ctx context.Context) <-chan Snapshot {
	out := make(chan Snapshot)
	go func() {
		defer close(out)
		t.started = time.Now()
		t.logger.Info().
			Str("role", t.cfg.Role.String()).
			Int("epochs", t.cfg.Epochs).
			Int("states", t.encoder.States()).
			Float64("epsilon", t.cfg.Epsilon).
			Float64("gamma", t.cfg.Gamma).
			Msg("training started")
		for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
			select {
			case <-ctx.Done():
				t.logger.Warn().Int("epoch", epoch).Msg("training cancelled")
				out <- t.snapshot(SnapshotCancelled, epoch, episodeResult{}, ctx.Err())
				return
			default:
			}
			eta := t.cfg.LearningRate(epoch)
			result, err := t.runEpisode(ctx, epoch, eta)
			if err != nil && ctx.Err() != nil {
				t.logger.Warn().Int("epoch", epoch).Int("step", result.steps).Msg("training cancelled")
				out <- t.snapshot(SnapshotCancelled, epoch, result, ctx.Err())
				return
			}
			if err != nil {
				t.logger.Error().Err(err).Int("epoch", epoch).Int("step", result.steps).Msg("training failed")
				out <- t.snapshot(SnapshotFailed, epoch, result, &TrainingError{Epoch: epoch, Step: result.steps, Err: err})
				return
			}
			t.record(result)
			t.logger.Debug().
				Int("epoch", epoch).
				Float64("eta", eta).
				Float64("reward", result.reward).
				Int("steps", result.steps).
				Str("outcome", result.outcome.String()).
				Msg("epoch complete")
			snap := t.snapshot(SnapshotEpisodeComplete, epoch, result, nil)
			select {
			case out <- snap:
			case <-ctx.Done():
				t.logger.Warn().Int("epoch", epoch).Msg("training cancelled")
				out <- t.snapshot(SnapshotCancelled, epoch, result, ctx.Err())
				return
			}
		}
		final := t.snapshot(SnapshotDone, t.cfg.Epochs-1, episodeResult{}, nil)
		final.ValueMap = t.StateValues(t.cfg.Role)
		t.logger.Info().
			Int("episodes", t.episodesCompleted).
			Int("catches", t.catches).
			Int("escapes", t.escapes).
			Int("truncations", t.truncations).
			Int("degenerate", t.degenerate).
			Dur("elapsed", time.Since(t.started)).
			Msg("training finished")
		out <- final
	}()
	return out
}

// Train drains Run and returns the run summary, or the error that aborted it.
func (t *Trainer) Train(ctx context.Context) (Summary, error) {
	summary := Summary{Rewards: make([]float64, 0, t.cfg.Epochs)}
	var err error
	for snap := range t.Run(ctx) {
		switch snap.Status {
		case SnapshotEpisodeComplete:
			summary.Rewards = append(summary.Rewards, snap.EpisodeReward)
			summary.FinalLR = snap.LearningRate
		case SnapshotCancelled, SnapshotFailed:
			err = snap.Err
		}
		summary.Epochs = snap.EpisodesCompleted
		summary.Catches = snap.Catches
		summary.Escapes = snap.Escapes
		summary.Truncations = snap.Truncations
		summary.TotalSteps = snap.TotalSteps
		summary.Degenerate = snap.Degenerate
		summary.Elapsed = snap.Elapsed
	}
	return summary, err
}

type episodeResult struct {
	steps       int
	reward      float64
	outcome     Status
	observation Observation
}

func (t *Trainer) runEpisode(ctx context.Context, epoch int, eta float64) (episodeResult, error) {
	var result episodeResult
	starts, err := t.env.Reset(ctx)
	if err != nil {
		return result, fmt.Errorf("reset: %w", err)
	}
	t.starts = starts
	state, err := t.encoder.EncodeObservation(t.env.Observe())
	if err != nil {
		return result, err
	}
	for step := 0; step < t.cfg.MaxSteps; step++ {
		action := t.selectAction(state, epoch, step)
		obs, reward, done, err := t.env.Step(ctx, t.cfg.Role, action)
		if err != nil {
			return result, err
		}
		next, err := t.encoder.EncodeObservation(obs)
		if err != nil {
			return result, err
		}
		t.table.Update(state, int(action), reward, next, eta, t.cfg.Gamma)
		result.steps++
		result.reward += reward
		result.observation = obs
		state = next
		if done {
			break
		}
	}
	result.outcome = t.env.Status()
	if !result.outcome.Terminal() {
		result.outcome = StatusTruncated
	}
	return result, nil
}

// selectAction explores with probability epsilon and otherwise samples the
// softmax of the state's action values.
func (t *Trainer) selectAction(s StateIndex, epoch, step int) Direction {
	if t.rng.Float64() < t.cfg.Epsilon {
		return Directions[t.rng.Intn(NumActions)]
	}
	t.values = t.table.Values(s, t.values)
	if softmax(t.values, t.probs) {
		t.degenerate++
		t.logger.Warn().
			Err(ErrNumericDegenerate).
			Int("epoch", epoch).
			Int("step", step).
			Floats64("values", t.values).
			Msg("softmax fell back to uniform")
	}
	return Directions[sample(t.rng, t.probs)]
}

func (t *Trainer) record(result episodeResult) {
	switch result.outcome {
	case StatusCaught:
		t.catches++
	case StatusGoalReached:
		t.escapes++
	default:
		t.truncations++
	}
	t.episodesCompleted++
	t.totalReward += result.reward
	t.totalSteps += result.steps
}

func (t *Trainer) snapshot(status string, epoch int, result episodeResult, err error) Snapshot {
	elapsed := time.Duration(0)
	if !t.started.IsZero() {
		elapsed = time.Since(t.started)
	}
	return Snapshot{
		Epoch:             epoch,
		EpisodeSteps:      result.steps,
		EpisodeReward:     result.reward,
		LearningRate:      t.cfg.LearningRate(epoch),
		Outcome:           result.outcome.String(),
		Observation:       result.observation,
		Goal:              t.starts.Goal,
		Catches:           t.catches,
		Escapes:           t.escapes,
		Truncations:       t.truncations,
		EpisodesCompleted: t.episodesCompleted,
		TotalReward:       t.totalReward,
		TotalSteps:        t.totalSteps,
		Degenerate:        t.degenerate,
		Elapsed:           elapsed,
		Config:            t.cfg,
		Status:            status,
		Err:               err,
	}
}

// Frame is one recorded step of a rollout.
type Frame struct {
	Step        int         `json:"step"`
	Observation Observation `json:"observation"`
	Goal        Position    `json:"goal"`
	Action      string      `json:"action,omitempty"`
	Reward      float64     `json:"reward"`
	Status      string      `json:"status"`
}

// Episode is a recorded rollout.
type Episode struct {
	Frames []Frame
	Reward float64
	Steps  int
	Status Status
}

// Rollout plays one episode for the trained role under selector. The value
// table is not read or written.
func (t *Trainer) Rollout(ctx context.Context, selector ActionSelector) (Episode, error) {
	var ep Episode
	starts, err := t.env.Reset(ctx)
	if err != nil {
		return ep, fmt.Errorf("reset: %w", err)
	}
	obs := t.env.Observe()
	ep.Frames = append(ep.Frames, Frame{Observation: obs, Goal: starts.Goal, Status: t.env.Status().String()})
	for step := 0; step < t.cfg.MaxSteps; step++ {
		state, err := t.encoder.EncodeObservation(obs)
		if err != nil {
			return ep, err
		}
		action := selector.SelectAction(state)
		var (
			reward float64
			done   bool
		)
		obs, reward, done, err = t.env.Step(ctx, t.cfg.Role, action)
		if err != nil {
			return ep, fmt.Errorf("rollout step %d: %w", step, err)
		}
		ep.Reward += reward
		ep.Steps++
		ep.Frames = append(ep.Frames, Frame{
			Step:        step + 1,
			Observation: obs,
			Goal:        starts.Goal,
			Action:      action.String(),
			Reward:      reward,
			Status:      t.env.Status().String(),
		})
		if done {
			break
		}
	}
	ep.Status = t.env.Status()
	if !ep.Status.Terminal() {
		ep.Status = StatusTruncated
	}
	return ep, nil
}

// Evaluate averages the total reward of episodes rollouts under selector.
func (t *Trainer) Evaluate(ctx context.Context, selector ActionSelector, episodes int) (float64, error) {
	if episodes <= 0 {
		episodes = t.cfg.EvalEpisodes
	}
	total := 0.0
	for i := 0; i < episodes; i++ {
		ep, err := t.Rollout(ctx, selector)
		if err != nil {
			return 0, err
		}
		total += ep.Reward
	}
	return total / float64(episodes), nil
}

// Policy extracts the greedy policy from the current table.
func (t *Trainer) Policy() Policy {
	return ExtractPolicy(t.table)
}
