package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pursuit-rl-go/internal/config"
)

var (
	v       = viper.New()
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "pursuit",
	Short: "Police and thief pursuit in a grid maze, learned with tabular Q-learning",
	Long: `pursuit trains one agent of a police/thief pair by tabular Q-learning.

The thief tries to reach the goal cell, the police tries to catch the thief.
Value tables are persisted between runs so training can be resumed, replayed
and evaluated. Every flag can also be set in a config file or through a
PURSUIT_* environment variable (training.epochs becomes PURSUIT_TRAINING_EPOCHS).`,
	SilenceUsage: true,
}

func init() {
	d := config.Default()
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")

	// Logging
	f.String("log-level", d.Log.Level, "Log level (debug, info, warn, error)")
	f.String("log-format", d.Log.Format, "Log format (text or json)")

	// Maze
	f.String("maze-preset", d.Maze.Preset, "Built-in maze (default or standard)")
	f.String("maze-file", d.Maze.File, "Maze layout file, overrides the preset")
	f.Int("max-steps", d.Maze.MaxSteps, "Step budget of one episode")
	f.String("police", d.Maze.Police, "Police start as x,y")
	f.String("thief", d.Maze.Thief, "Thief start as x,y")
	f.String("goal", d.Maze.Goal, "Goal cell as x,y")

	// Training role and randomness shared by every command
	f.String("role", d.Training.Role, "Agent that learns (police or thief)")
	f.Int64("seed", d.Training.Seed, "Random seed")

	// Value table store
	f.String("store", d.Store.Kind, "Table store (none, file, postgres)")
	f.String("store-path", d.Store.Path, "Table file for the file store")
	f.String("store-dsn", d.Store.DSN, "PostgreSQL DSN for the postgres store")
	f.String("store-name", d.Store.Name, "Table name for the postgres store")

	// Movement transport
	f.String("transport", d.Transport.Mode, "Movement provider (local or remote)")
	f.String("maze-addr", d.Transport.Addr, "Base URL of the remote maze service")
	f.Duration("maze-timeout", d.Transport.Timeout, "Timeout per maze service call")
	f.Int("maze-retries", d.Transport.Retries, "Retries per maze service call")

	// Events
	f.String("nats-url", d.Events.NATSURL, "NATS server URL; empty disables events")
	f.String("nats-subject", d.Events.Subject, "NATS subject prefix")

	bindFlags(rootCmd, map[string]string{
		"log.level":         "log-level",
		"log.format":        "log-format",
		"maze.preset":       "maze-preset",
		"maze.file":         "maze-file",
		"maze.max_steps":    "max-steps",
		"maze.police":       "police",
		"maze.thief":        "thief",
		"maze.goal":         "goal",
		"training.role":     "role",
		"training.seed":     "seed",
		"store.kind":        "store",
		"store.path":        "store-path",
		"store.dsn":         "store-dsn",
		"store.name":        "store-name",
		"transport.mode":    "transport",
		"transport.addr":    "maze-addr",
		"transport.timeout": "maze-timeout",
		"transport.retries": "maze-retries",
		"events.nats_url":   "nats-url",
		"events.subject":    "nats-subject",
	})

	rootCmd.AddCommand(trainCmd, evalCmd, replayCmd, serveCmd)
}

// bindFlags maps config keys to flags of cmd so a set flag wins over file and environment.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		flag := cmd.PersistentFlags().Lookup(name)
		if flag == nil {
			flag = cmd.Flags().Lookup(name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
