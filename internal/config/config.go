package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pursuit-rl-go/internal/engine"
)

// Config holds the whole runtime configuration.
type Config struct {
	Maze      MazeConfig      `mapstructure:"maze"`
	Training  TrainingConfig  `mapstructure:"training"`
	Transport TransportConfig `mapstructure:"transport"`
	Store     StoreConfig     `mapstructure:"store"`
	Events    EventsConfig    `mapstructure:"events"`
	Log       LogConfig       `mapstructure:"log"`
	Render    RenderConfig    `mapstructure:"render"`
	Serve     ServeConfig     `mapstructure:"serve"`
}

// MazeConfig selects the layout. File wins over Layout, Layout over Preset.
// Police, Thief and Goal ("x,y") override the layout markers.
type MazeConfig struct {
	Preset   string `mapstructure:"preset"`
	Layout   string `mapstructure:"layout"`
	File     string `mapstructure:"file"`
	Police   string `mapstructure:"police"`
	Thief    string `mapstructure:"thief"`
	Goal     string `mapstructure:"goal"`
	MaxSteps int    `mapstructure:"max_steps"`
}

// TrainingConfig mirrors engine.Config plus the seed of the random source.
type TrainingConfig struct {
	Epochs       int     `mapstructure:"epochs"`
	MaxSteps     int     `mapstructure:"max_steps"`
	InitialLR    float64 `mapstructure:"initial_lr"`
	MinLR        float64 `mapstructure:"min_lr"`
	DecayRate    float64 `mapstructure:"decay_rate"`
	DecayBlock   int     `mapstructure:"decay_block"`
	Gamma        float64 `mapstructure:"gamma"`
	Epsilon      float64 `mapstructure:"epsilon"`
	Seed         int64   `mapstructure:"seed"`
	Role         string  `mapstructure:"role"`
	EvalEpisodes int     `mapstructure:"eval_episodes"`
}

// TransportConfig picks local maze lookups or the remote maze service.
type TransportConfig struct {
	Mode    string        `mapstructure:"mode"`
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// StoreConfig picks where the value table lives between runs.
type StoreConfig struct {
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
	DSN  string `mapstructure:"dsn"`
	Name string `mapstructure:"name"`
}

// EventsConfig enables NATS progress events when NATSURL is set.
type EventsConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RenderConfig struct {
	Delay time.Duration `mapstructure:"delay"`
	Color bool          `mapstructure:"color"`
	Chart string        `mapstructure:"chart"`
}

type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

const (
	TransportLocal  = "local"
	TransportRemote = "remote"

	StoreNone     = "none"
	StoreFile     = "file"
	StorePostgres = "postgres"

	PresetDefault  = "default"
	PresetStandard = "standard"
)

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Maze: MazeConfig{
			Preset:   PresetDefault,
			MaxSteps: 200,
		},
		Training: TrainingConfig{
			Epochs:       engine.DefaultEpochs,
			InitialLR:    engine.DefaultInitialLR,
			MinLR:        engine.DefaultMinLR,
			DecayRate:    engine.DefaultDecayRate,
			DecayBlock:   engine.DefaultDecayBlock,
			Gamma:        engine.DefaultGamma,
			Epsilon:      engine.DefaultEpsilon,
			Seed:         1,
			Role:         "thief",
			EvalEpisodes: engine.DefaultEvalEpisodes,
		},
		Transport: TransportConfig{
			Mode:    TransportLocal,
			Addr:    "http://localhost:8090",
			Timeout: 2 * time.Second,
			Retries: 3,
		},
		Store: StoreConfig{
			Kind: StoreFile,
			Path: "qtable.bin",
			Name: "default",
		},
		Events: EventsConfig{
			Subject: "pursuit",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Render: RenderConfig{
			Delay: 150 * time.Millisecond,
			Color: true,
		},
		Serve: ServeConfig{
			Addr: ":8090",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	t := c.Training
	switch {
	case t.Epochs <= 0:
		return fmt.Errorf("training.epochs must be positive (got %d)", t.Epochs)
	case t.Epsilon < 0 || t.Epsilon > 1:
		return fmt.Errorf("training.epsilon must be between 0 and 1 (got %.2f)", t.Epsilon)
	case t.Gamma <= 0 || t.Gamma > 1:
		return fmt.Errorf("training.gamma must be in (0, 1] (got %.2f)", t.Gamma)
	case t.InitialLR <= 0:
		return fmt.Errorf("training.initial_lr must be positive (got %g)", t.InitialLR)
	case t.MinLR < 0 || t.MinLR > t.InitialLR:
		return fmt.Errorf("training.min_lr must be in [0, initial_lr] (got %g)", t.MinLR)
	case t.DecayRate <= 0 || t.DecayRate > 1:
		return fmt.Errorf("training.decay_rate must be in (0, 1] (got %g)", t.DecayRate)
	case t.DecayBlock <= 0:
		return fmt.Errorf("training.decay_block must be positive (got %d)", t.DecayBlock)
	case t.MaxSteps < 0:
		return fmt.Errorf("training.max_steps must not be negative (got %d)", t.MaxSteps)
	case c.Maze.MaxSteps <= 0:
		return fmt.Errorf("maze.max_steps must be positive (got %d)", c.Maze.MaxSteps)
	}
	if _, err := engine.ParseRole(t.Role); err != nil {
		return fmt.Errorf("training.role: %w", err)
	}
	switch c.Transport.Mode {
	case TransportLocal:
	case TransportRemote:
		if c.Transport.Addr == "" {
			return errors.New("transport.addr is required in remote mode")
		}
		if c.Transport.Timeout <= 0 {
			return errors.New("transport.timeout must be positive")
		}
		if c.Transport.Retries < 0 {
			return errors.New("transport.retries must not be negative")
		}
	default:
		return fmt.Errorf("transport.mode must be %q or %q (got %q)", TransportLocal, TransportRemote, c.Transport.Mode)
	}
	switch c.Store.Kind {
	case StoreNone:
	case StoreFile:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the file store")
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres store")
		}
		if c.Store.Name == "" {
			return errors.New("store.name is required for the postgres store")
		}
	default:
		return fmt.Errorf("store.kind must be one of none, file, postgres (got %q)", c.Store.Kind)
	}

	layout, err := c.Maze.Resolve()
	if err != nil {
		return err
	}
	if !layout.Maze.Reachable(layout.ThiefStart)[layout.Goal] {
		return fmt.Errorf("maze: goal %s is unreachable from thief start %s", layout.Goal, layout.ThiefStart)
	}
	return nil
}

// Engine converts the training section into the trainer configuration.
func (t TrainingConfig) Engine() (engine.Config, error) {
	role, err := engine.ParseRole(t.Role)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Epochs:       t.Epochs,
		MaxSteps:     t.MaxSteps,
		InitialLR:    t.InitialLR,
		MinLR:        t.MinLR,
		DecayRate:    t.DecayRate,
		DecayBlock:   t.DecayBlock,
		Gamma:        t.Gamma,
		Epsilon:      t.Epsilon,
		Role:         role,
		EvalEpisodes: t.EvalEpisodes,
	}, nil
}

// Resolve parses the selected layout and applies the start overrides. All three
// of police, thief and goal must end up defined on open cells.
func (m MazeConfig) Resolve() (engine.Layout, error) {
	text, err := m.layoutText()
	if err != nil {
		return engine.Layout{}, err
	}
	layout, err := engine.ParseLayout(text)
	if err != nil {
		return engine.Layout{}, fmt.Errorf("maze: %w", err)
	}
	overrides := []struct {
		name  string
		value string
		pos   *engine.Position
		has   *bool
	}{
		{"police", m.Police, &layout.PoliceStart, &layout.HasPolice},
		{"thief", m.Thief, &layout.ThiefStart, &layout.HasThief},
		{"goal", m.Goal, &layout.Goal, &layout.HasGoal},
	}
	for _, o := range overrides {
		if o.value != "" {
			p, err := ParsePosition(o.value)
			if err != nil {
				return engine.Layout{}, fmt.Errorf("maze.%s: %w", o.name, err)
			}
			*o.pos, *o.has = p, true
		}
		if !*o.has {
			return engine.Layout{}, fmt.Errorf("maze: no %s position in layout or config", o.name)
		}
		if !layout.Maze.IsOpen(*o.pos) {
			return engine.Layout{}, fmt.Errorf("maze.%s: %s is not an open cell", o.name, *o.pos)
		}
	}
	return layout, nil
}

// Starts returns the episode starts described by the layout.
func Starts(layout engine.Layout) engine.Starts {
	return engine.Starts{Police: layout.PoliceStart, Thief: layout.ThiefStart, Goal: layout.Goal}
}

func (m MazeConfig) layoutText() (string, error) {
	if m.File != "" {
		data, err := os.ReadFile(m.File)
		if err != nil {
			return "", fmt.Errorf("maze.file: %w", err)
		}
		return string(data), nil
	}
	if strings.TrimSpace(m.Layout) != "" {
		return m.Layout, nil
	}
	switch strings.ToLower(m.Preset) {
	case "", PresetDefault:
		return engine.DefaultLayout, nil
	case PresetStandard:
		return engine.StandardLabyrinth, nil
	}
	return "", fmt.Errorf("maze.preset must be %q or %q (got %q)", PresetDefault, PresetStandard, m.Preset)
}

// ParsePosition reads "x,y".
func ParsePosition(s string) (engine.Position, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return engine.Position{}, fmt.Errorf("position %q must be x,y", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return engine.Position{}, fmt.Errorf("position %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return engine.Position{}, fmt.Errorf("position %q: %w", s, err)
	}
	return engine.Position{X: x, Y: y}, nil
}

// Load layers defaults, the optional config file at path and PURSUIT_* environment
// variables (maze.max_steps becomes PURSUIT_MAZE_MAX_STEPS) onto v, then
// decodes and validates the result. Flags bound to v before Load win over all three.
func Load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v, Default())
	v.SetEnvPrefix("PURSUIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	defaults := map[string]interface{}{
		"maze.preset":            d.Maze.Preset,
		"maze.layout":            d.Maze.Layout,
		"maze.file":              d.Maze.File,
		"maze.police":            d.Maze.Police,
		"maze.thief":             d.Maze.Thief,
		"maze.goal":              d.Maze.Goal,
		"maze.max_steps":         d.Maze.MaxSteps,
		"training.epochs":        d.Training.Epochs,
		"training.max_steps":     d.Training.MaxSteps,
		"training.initial_lr":    d.Training.InitialLR,
		"training.min_lr":        d.Training.MinLR,
		"training.decay_rate":    d.Training.DecayRate,
		"training.decay_block":   d.Training.DecayBlock,
		"training.gamma":         d.Training.Gamma,
		"training.epsilon":       d.Training.Epsilon,
		"training.seed":          d.Training.Seed,
		"training.role":          d.Training.Role,
		"training.eval_episodes": d.Training.EvalEpisodes,
		"transport.mode":         d.Transport.Mode,
		"transport.addr":         d.Transport.Addr,
		"transport.timeout":      d.Transport.Timeout,
		"transport.retries":      d.Transport.Retries,
		"store.kind":             d.Store.Kind,
		"store.path":             d.Store.Path,
		"store.dsn":              d.Store.DSN,
		"store.name":             d.Store.Name,
		"events.nats_url":        d.Events.NATSURL,
		"events.subject":         d.Events.Subject,
		"log.level":              d.Log.Level,
		"log.format":             d.Log.Format,
		"render.delay":           d.Render.Delay,
		"render.color":           d.Render.Color,
		"render.chart":           d.Render.Chart,
		"serve.addr":             d.Serve.Addr,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
