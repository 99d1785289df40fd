package main

import (
	"github.com/spf13/cobra"
)

var evalEpisodes int

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Compare the stored greedy policy with a random policy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if evalEpisodes > 0 {
			a.cfg.Training.EvalEpisodes = evalEpisodes
		}

		ctx, stop := signalContext()
		defer stop()

		trainer, _, err := a.trainer(ctx)
		if err != nil {
			return err
		}
		return evaluate(ctx, cmd, a, trainer)
	},
}

func init() {
	evalCmd.Flags().IntVar(&evalEpisodes, "episodes", 0, "Evaluation episodes (0 uses training.eval_episodes)")
}
