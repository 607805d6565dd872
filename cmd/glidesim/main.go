package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/san-kum/glidesim/internal/config"
)

var (
	configFile string
	preset     string

	cfg    *config.Config
	logger *slog.Logger
	v      *viper.Viper

	noSave      bool
	showPath    bool
	exportPath  string
	force       bool
	benchTols   []float64
	plotWidth   int
	plotHeight  int
	showSummary bool
)

func newRootCmd() *cobra.Command {
	v = config.NewViper()

	rootCmd := &cobra.Command{
		Use:           "glidesim",
		Short:         "adaptive RKF45 glider flight sweeps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			var err error
			cfg, err = loadConfig(preset, configFile, v)
			if err != nil {
				return err
			}
			logger = newLogger(os.Stderr, cfg)
			slog.SetDefault(logger)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml); defaults to $GLIDESIM_CONFIG or ./glidesim.yaml")
	pf.StringVar(&preset, "preset", "", "start from a named preset")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("storage", "file", "run storage (none, file, postgres)")
	pf.String("data", config.DefaultDataDir, "data directory for the file store")
	pf.String("dsn", "", "postgres connection string")
	bindKey(pf, "log-level", "log.level")
	bindKey(pf, "log-format", "log.format")
	bindKey(pf, "storage", "storage.type")
	bindKey(pf, "data", "storage.dir")
	bindKey(pf, "dsn", "storage.postgres.dsn")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the launch-angle sweep",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addModelFlags(runCmd)
	runCmd.Flags().Int("count", config.DefaultCount, "number of launch angles")
	runCmd.Flags().Float64("increment", config.DefaultAngleIncrement, "launch angle increment (rad)")
	runCmd.Flags().Int("workers", 0, "parallel iterations (0 = GOMAXPROCS)")
	runCmd.Flags().Bool("plot", false, "plot final x against launch angle")
	runCmd.Flags().String("metrics-textfile", "", "write prometheus metrics to this file")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the run")
	runCmd.Flags().BoolVar(&showSummary, "summary", false, "print a summary to stderr")
	bindKey(runCmd.Flags(), "count", "sweep.count")
	bindKey(runCmd.Flags(), "increment", "sweep.angle_increment")
	bindKey(runCmd.Flags(), "workers", "sweep.workers")
	bindKey(runCmd.Flags(), "plot", "output.plot")
	bindKey(runCmd.Flags(), "metrics-textfile", "metrics.textfile")

	oneCmd := &cobra.Command{
		Use:   "one <index>",
		Short: "run a single launch angle (1-based index)",
		Args:  cobra.ExactArgs(1),
		RunE:  runOne,
	}
	addModelFlags(oneCmd)
	oneCmd.Flags().Float64("increment", config.DefaultAngleIncrement, "launch angle increment (rad)")
	oneCmd.Flags().Int("count", config.DefaultCount, "number of launch angles")
	oneCmd.Flags().BoolVar(&showPath, "path", false, "draw the flight path")
	bindKey(oneCmd.Flags(), "increment", "sweep.angle_increment")
	bindKey(oneCmd.Flags(), "count", "sweep.count")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show <run_id>",
		Short: "print the records of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().String("format", "text", "output format (text, csv, json, table)")
	showCmd.Flags().StringVar(&exportPath, "export", "", "also write the run as JSON to this path")
	bindKey(showCmd.Flags(), "format", "output.format")

	plotCmd := &cobra.Command{
		Use:   "plot <run_id>",
		Short: "plot final x against launch angle for a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 15, "plot height")

	rmCmd := &cobra.Command{
		Use:   "rm <run_id>",
		Short: "delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init-config <path>",
		Short: "write the effective configuration as yaml",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time the sweep across tolerances",
		Args:  cobra.NoArgs,
		RunE:  benchSweep,
	}
	benchCmd.Flags().Float64SliceVar(&benchTols, "tols", []float64{1e-6, 1e-8, 1e-10, 1e-12}, "absolute tolerances to compare")

	rootCmd.AddCommand(runCmd, oneCmd, listCmd, showCmd, plotCmd, rmCmd, presetsCmd, initCmd, benchCmd)
	return rootCmd
}

// addModelFlags registers the physics and integration flags shared by run
// and one.
func addModelFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64("r", config.DefaultR, "aerodynamic efficiency (lift/drag)")
	fs.Float64("t-end", config.DefaultTEnd, "end of the integration interval")
	fs.Float64("eps-abs", config.DefaultEpsAbs, "absolute error tolerance")
	fs.Float64("eps-rel", config.DefaultEpsRel, "relative error tolerance")
	fs.Float64("initial-step", config.DefaultInitialStep, "initial step size")
	fs.Float64("max-step", 0, "largest step size (0 = unbounded)")
	fs.Int("max-steps", 0, "accepted-step budget per iteration (0 = unlimited)")
	fs.Duration("timeout", 0, "wall-clock budget per iteration (0 = none)")
	fs.Float64("v0", config.DefaultSpeed, "launch speed")
	fs.Float64("theta0", config.DefaultTheta, "base launch angle (rad)")
	fs.Float64("y0", config.DefaultY, "launch height")
	fs.String("format", "text", "output format (text, csv, json, table)")

	for name, key := range map[string]string{
		"r":            "model.r",
		"t-end":        "integration.t_end",
		"eps-abs":      "integration.eps_abs",
		"eps-rel":      "integration.eps_rel",
		"initial-step": "integration.initial_step",
		"max-step":     "integration.max_step",
		"max-steps":    "integration.max_steps",
		"timeout":      "integration.iteration_timeout",
		"v0":           "initial_state.v",
		"theta0":       "initial_state.theta",
		"y0":           "initial_state.y",
		"format":       "output.format",
	} {
		bindKey(fs, name, key)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
