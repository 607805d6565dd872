package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/glidesim/internal/control"
	"github.com/san-kum/glidesim/internal/dynamo"
	"github.com/san-kum/glidesim/internal/physics"
	"github.com/san-kum/glidesim/internal/sim"
	"github.com/san-kum/glidesim/internal/sweep"
)

const (
	DefaultR              = 10.0
	DefaultTEnd           = 600.0
	DefaultEpsAbs         = 1e-8
	DefaultEpsRel         = 0.0
	DefaultInitialStep    = 1e-6
	DefaultMinStep        = 1e-14
	DefaultMaxRetries     = 64
	DefaultSpeed          = 2.0
	DefaultTheta          = -math.Pi / 3
	DefaultY              = 2.0
	DefaultCount          = 20
	DefaultAngleIncrement = 0.1
	DefaultDataDir        = ".glidesim"

	EnvConfig   = "GLIDESIM_CONFIG"
	DefaultFile = "glidesim.yaml"
)

type Config struct {
	Model        ModelConfig       `yaml:"model"`
	Integration  IntegrationConfig `yaml:"integration"`
	InitialState InitStateConfig   `yaml:"initial_state"`
	Sweep        SweepConfig       `yaml:"sweep"`
	Output       OutputConfig      `yaml:"output"`
	Storage      StorageConfig     `yaml:"storage"`
	Metrics      MetricsConfig     `yaml:"metrics"`
	Log          LogConfig         `yaml:"log"`
}

type ModelConfig struct {
	R        float64 `yaml:"r"`
	MinSpeed float64 `yaml:"min_speed"`
}

type IntegrationConfig struct {
	TStart           float64       `yaml:"t_start"`
	TEnd             float64       `yaml:"t_end"`
	EpsAbs           float64       `yaml:"eps_abs"`
	EpsRel           float64       `yaml:"eps_rel"`
	InitialStep      float64       `yaml:"initial_step"`
	MinStep          float64       `yaml:"min_step"`
	MaxStep          float64       `yaml:"max_step"`
	Safety           float64       `yaml:"safety"`
	MinShrink        float64       `yaml:"min_shrink"`
	MaxGrowth        float64       `yaml:"max_growth"`
	MaxRetries       int           `yaml:"max_retries"`
	MaxSteps         int           `yaml:"max_steps"`
	IterationTimeout time.Duration `yaml:"iteration_timeout"`
}

type InitStateConfig struct {
	V     float64 `yaml:"v"`
	Theta float64 `yaml:"theta"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
}

type SweepConfig struct {
	Count          int     `yaml:"count"`
	AngleIncrement float64 `yaml:"angle_increment"`
	Workers        int     `yaml:"workers"`
}

type OutputConfig struct {
	Format string `yaml:"format"`
	Plot   bool   `yaml:"plot"`
}

type StorageConfig struct {
	Type     string         `yaml:"type"`
	Dir      string         `yaml:"dir"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	MaxConns       int32  `yaml:"max_conns"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			R:        DefaultR,
			MinSpeed: physics.DefaultMinSpeed,
		},
		Integration: IntegrationConfig{
			TEnd:        DefaultTEnd,
			EpsAbs:      DefaultEpsAbs,
			EpsRel:      DefaultEpsRel,
			InitialStep: DefaultInitialStep,
			MinStep:     DefaultMinStep,
			Safety:      control.DefaultSafety,
			MinShrink:   control.DefaultMinShrink,
			MaxGrowth:   control.DefaultMaxGrowth,
			MaxRetries:  DefaultMaxRetries,
		},
		InitialState: InitStateConfig{
			V:     DefaultSpeed,
			Theta: DefaultTheta,
			Y:     DefaultY,
		},
		Sweep: SweepConfig{
			Count:          DefaultCount,
			AngleIncrement: DefaultAngleIncrement,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Storage: StorageConfig{
			Type: "file",
			Dir:  DefaultDataDir,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a yaml file on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFile merges a yaml file into c without validating.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Discover finds the config file: the explicit path, then GLIDESIM_CONFIG,
// then ./glidesim.yaml. It returns "" when there is none.
func Discover(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}
	return ""
}

// Validate reports every problem at once. Each one wraps
// dynamo.ErrConfiguration.
func (c *Config) Validate() error {
	errs := []error{
		c.Glider().Validate(),
		c.Controller().Validate(),
		c.EvolverConfig().Validate(),
		c.Spec().Validate(),
	}

	if c.Sweep.Workers < 0 {
		errs = append(errs, dynamo.ConfigError("sweep.workers must be >= 0, got %d", c.Sweep.Workers))
	}
	if c.Integration.IterationTimeout < 0 {
		errs = append(errs, dynamo.ConfigError("integration.iteration_timeout must be >= 0, got %s", c.Integration.IterationTimeout))
	}

	switch c.Output.Format {
	case "text", "csv", "json", "table":
	default:
		errs = append(errs, dynamo.ConfigError("output.format must be text, csv, json or table, got %q", c.Output.Format))
	}

	switch c.Storage.Type {
	case "none":
	case "file":
		if c.Storage.Dir == "" {
			errs = append(errs, dynamo.ConfigError("storage.dir is required when storage.type is \"file\""))
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, dynamo.ConfigError("storage.postgres.dsn is required when storage.type is \"postgres\""))
		}
	default:
		errs = append(errs, dynamo.ConfigError("storage.type must be none, file or postgres, got %q", c.Storage.Type))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		errs = append(errs, dynamo.ConfigError("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, dynamo.ConfigError("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

func (c *Config) Glider() *physics.Glider {
	return &physics.Glider{
		R:        c.Model.R,
		MinSpeed: c.Model.MinSpeed,
	}
}

func (c *Config) Controller() *control.Standard {
	return &control.Standard{
		EpsAbs:    c.Integration.EpsAbs,
		EpsRel:    c.Integration.EpsRel,
		Safety:    c.Integration.Safety,
		MinShrink: c.Integration.MinShrink,
		MaxGrowth: c.Integration.MaxGrowth,
		Order:     control.DefaultOrder,
	}
}

func (c *Config) EvolverConfig() sim.Config {
	return sim.Config{
		TStart:      c.Integration.TStart,
		TEnd:        c.Integration.TEnd,
		InitialStep: c.Integration.InitialStep,
		MinStep:     c.Integration.MinStep,
		MaxStep:     c.Integration.MaxStep,
		MaxRetries:  c.Integration.MaxRetries,
		MaxSteps:    c.Integration.MaxSteps,
	}
}

func (c *Config) BaseState() dynamo.State {
	return dynamo.State{c.InitialState.V, c.InitialState.Theta, c.InitialState.X, c.InitialState.Y}
}

func (c *Config) Spec() sweep.Spec {
	return sweep.Spec{
		Count:          c.Sweep.Count,
		AngleIncrement: c.Sweep.AngleIncrement,
		Base:           c.BaseState(),
	}
}

// LogLevel assumes a validated config.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.Log.Level))
	return level
}

// SweepOptions wires the configuration into runner options. Hooks and the
// logger are left to the caller.
func (c *Config) SweepOptions() sweep.Options {
	return sweep.Options{
		Spec:             c.Spec(),
		Evolver:          c.EvolverConfig(),
		NewSystem:        func() dynamo.System { return c.Glider() },
		NewController:    func() dynamo.Controller { return c.Controller() },
		Workers:          c.Sweep.Workers,
		IterationTimeout: c.Integration.IterationTimeout,
	}
}

// Params flattens the numeric settings for run metadata.
func (c *Config) Params() map[string]float64 {
	params := c.Glider().GetParams()
	for k, v := range map[string]float64{
		"t_start":         c.Integration.TStart,
		"t_end":           c.Integration.TEnd,
		"eps_abs":         c.Integration.EpsAbs,
		"eps_rel":         c.Integration.EpsRel,
		"initial_step":    c.Integration.InitialStep,
		"v0":              c.InitialState.V,
		"theta0":          c.InitialState.Theta,
		"x0":              c.InitialState.X,
		"y0":              c.InitialState.Y,
		"count":           float64(c.Sweep.Count),
		"angle_increment": c.Sweep.AngleIncrement,
	} {
		params[k] = v
	}
	return params
}
