package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/san-kum/glidesim/internal/config"
	"github.com/san-kum/glidesim/internal/storage"
	"github.com/san-kum/glidesim/internal/storage/postgres"
)

const configAnnotation = "glidesim_config_key"

// bindKey marks a flag as the command-line source for a config key. The
// binding to viper happens only for the command that runs.
func bindKey(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, configAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[configAnnotation]
		if len(keys) == 0 || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(keys[0], f)
	})
	return bindErr
}

// loadConfig layers defaults, preset, file, environment and changed flags,
// then validates the result.
func loadConfig(presetName, path string, v *viper.Viper) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if presetName != "" {
		cfg = config.GetPreset(presetName)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %v)", presetName, config.ListPresets())
		}
	}

	if path = config.Discover(path); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	config.Overlay(cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openSink returns the configured run store. Reading commands fall back to
// the file store when storage is disabled.
func openSink(ctx context.Context, cfg *config.Config) (storage.Sink, error) {
	switch cfg.Storage.Type {
	case "postgres":
		st, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		st := storage.New(cfg.Storage.Dir)
		if err := st.Init(); err != nil {
			return nil, err
		}
		return st, nil
	}
}
