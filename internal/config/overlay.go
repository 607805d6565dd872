package config

import (
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "GLIDESIM"

// NewViper returns a viper instance reading GLIDESIM_* variables, with
// dotted keys mapped to underscores (integration.eps_abs ->
// GLIDESIM_INTEGRATION_EPS_ABS).
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

type setting struct {
	key   string
	apply func(c *Config, v *viper.Viper, key string)
}

func float(field func(*Config) *float64) func(*Config, *viper.Viper, string) {
	return func(c *Config, v *viper.Viper, key string) { *field(c) = v.GetFloat64(key) }
}

func integer(field func(*Config) *int) func(*Config, *viper.Viper, string) {
	return func(c *Config, v *viper.Viper, key string) { *field(c) = v.GetInt(key) }
}

func str(field func(*Config) *string) func(*Config, *viper.Viper, string) {
	return func(c *Config, v *viper.Viper, key string) { *field(c) = v.GetString(key) }
}

var settings = []setting{
	{"model.r", float(func(c *Config) *float64 { return &c.Model.R })},
	{"model.min_speed", float(func(c *Config) *float64 { return &c.Model.MinSpeed })},

	{"integration.t_start", float(func(c *Config) *float64 { return &c.Integration.TStart })},
	{"integration.t_end", float(func(c *Config) *float64 { return &c.Integration.TEnd })},
	{"integration.eps_abs", float(func(c *Config) *float64 { return &c.Integration.EpsAbs })},
	{"integration.eps_rel", float(func(c *Config) *float64 { return &c.Integration.EpsRel })},
	{"integration.initial_step", float(func(c *Config) *float64 { return &c.Integration.InitialStep })},
	{"integration.min_step", float(func(c *Config) *float64 { return &c.Integration.MinStep })},
	{"integration.max_step", float(func(c *Config) *float64 { return &c.Integration.MaxStep })},
	{"integration.safety", float(func(c *Config) *float64 { return &c.Integration.Safety })},
	{"integration.min_shrink", float(func(c *Config) *float64 { return &c.Integration.MinShrink })},
	{"integration.max_growth", float(func(c *Config) *float64 { return &c.Integration.MaxGrowth })},
	{"integration.max_retries", integer(func(c *Config) *int { return &c.Integration.MaxRetries })},
	{"integration.max_steps", integer(func(c *Config) *int { return &c.Integration.MaxSteps })},
	{"integration.iteration_timeout", func(c *Config, v *viper.Viper, key string) {
		c.Integration.IterationTimeout = v.GetDuration(key)
	}},

	{"initial_state.v", float(func(c *Config) *float64 { return &c.InitialState.V })},
	{"initial_state.theta", float(func(c *Config) *float64 { return &c.InitialState.Theta })},
	{"initial_state.x", float(func(c *Config) *float64 { return &c.InitialState.X })},
	{"initial_state.y", float(func(c *Config) *float64 { return &c.InitialState.Y })},

	{"sweep.count", integer(func(c *Config) *int { return &c.Sweep.Count })},
	{"sweep.angle_increment", float(func(c *Config) *float64 { return &c.Sweep.AngleIncrement })},
	{"sweep.workers", integer(func(c *Config) *int { return &c.Sweep.Workers })},

	{"output.format", str(func(c *Config) *string { return &c.Output.Format })},
	{"output.plot", func(c *Config, v *viper.Viper, key string) { c.Output.Plot = v.GetBool(key) }},

	{"storage.type", str(func(c *Config) *string { return &c.Storage.Type })},
	{"storage.dir", str(func(c *Config) *string { return &c.Storage.Dir })},
	{"storage.postgres.dsn", str(func(c *Config) *string { return &c.Storage.Postgres.DSN })},
	{"storage.postgres.max_conns", func(c *Config, v *viper.Viper, key string) {
		c.Storage.Postgres.MaxConns = v.GetInt32(key)
	}},
	{"storage.postgres.migrate_on_start", func(c *Config, v *viper.Viper, key string) {
		c.Storage.Postgres.MigrateOnStart = v.GetBool(key)
	}},

	{"metrics.textfile", str(func(c *Config) *string { return &c.Metrics.Textfile })},
	{"log.level", str(func(c *Config) *string { return &c.Log.Level })},
	{"log.format", str(func(c *Config) *string { return &c.Log.Format })},
}

// Keys lists every overridable key in dotted form.
func Keys() []string {
	keys := make([]string, len(settings))
	for i, s := range settings {
		keys[i] = s.key
	}
	return keys
}

// Overlay copies into cfg every key that v reports as set: an environment
// variable, a changed bound flag or an explicit v.Set. Unset keys keep the
// value already in cfg.
func Overlay(cfg *Config, v *viper.Viper) {
	for _, s := range settings {
		if v.IsSet(s.key) {
			s.apply(cfg, v, s.key)
		}
	}
}
