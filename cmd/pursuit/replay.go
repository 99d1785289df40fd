package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"pursuit-rl-go/internal/config"
	"pursuit-rl-go/internal/engine"
	"pursuit-rl-go/internal/render"
)

var (
	replayRandom bool
	replayValues bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Animate one episode of the stored greedy policy in the terminal",
	RunE:  runReplay,
}

func init() {
	d := config.Default()
	f := replayCmd.Flags()
	f.Duration("delay", d.Render.Delay, "Pause between frames")
	f.Bool("color", d.Render.Color, "Colour the maze")
	f.BoolVar(&replayRandom, "random", false, "Replay a uniformly random policy instead")
	f.BoolVar(&replayValues, "values", false, "Print the state value map after the episode")
	bindFlags(replayCmd, map[string]string{
		"render.delay": "delay",
		"render.color": "color",
	})
}

func runReplay(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	trainer, _, err := a.trainer(ctx)
	if err != nil {
		return err
	}
	var selector engine.ActionSelector = trainer.Policy()
	if replayRandom {
		selector = engine.NewRandomPolicy(rand.New(rand.NewSource(a.cfg.Training.Seed)))
	}
	ep, err := trainer.Rollout(ctx, selector)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	term := render.NewTerminal(a.layout.Maze, a.cfg.Render.Color)
	if err := term.Animate(ctx, out, ep.Frames, a.cfg.Render.Delay); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s after %d steps, reward %.0f\n", ep.Status, ep.Steps, ep.Reward)
	if replayValues {
		fmt.Fprint(out, engine.FormatValues(trainer.StateValues(trainer.Config().Role)))
	}
	return nil
}
