package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/glidesim/internal/analysis"
	"github.com/san-kum/glidesim/internal/config"
	"github.com/san-kum/glidesim/internal/observability"
	"github.com/san-kum/glidesim/internal/sim"
	"github.com/san-kum/glidesim/internal/storage"
	"github.com/san-kum/glidesim/internal/sweep"
	"github.com/san-kum/glidesim/internal/viz"
)

const (
	xIndex = 2
	yIndex = 3
)

func newRunner(c *config.Config, observers func(int) []sim.Observer) (*sweep.Runner, error) {
	opts := c.SweepOptions()
	opts.Logger = logger
	opts.Observers = observers
	opts.OnRecord = observability.RecordIteration
	return sweep.NewRunner(opts)
}

func metricsObservers(int) []sim.Observer {
	return []sim.Observer{observability.StepObserver}
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, err := viz.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	runner, err := newRunner(cfg, metricsObservers)
	if err != nil {
		return err
	}

	logger.Info("sweep started",
		"count", runner.Count(),
		"r", cfg.Model.R,
		"eps_abs", cfg.Integration.EpsAbs,
		"eps_rel", cfg.Integration.EpsRel,
		"workers", cfg.Sweep.Workers,
	)

	start := time.Now()
	records, runErr := runner.Run(ctx)
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	if err := viz.WriteRecords(out, format, records); err != nil {
		return err
	}
	if cfg.Output.Plot {
		fmt.Fprintln(out, viz.RangePlot(records, 80, 15))
	}

	summary := analysis.Summarize(records)
	if showSummary {
		viz.WriteSummary(cmd.ErrOrStderr(), summary, records)
	}
	logger.Info("sweep finished",
		"landed", summary.Landed,
		"failed", summary.Failed,
		"steps", summary.Steps,
		"rejected", summary.Rejected,
		"elapsed", elapsed,
	)

	if cfg.Metrics.Textfile != "" {
		if err := observability.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("failed to write metrics", "path", cfg.Metrics.Textfile, "err", err)
		}
	}

	if runErr != nil {
		logger.Warn("sweep interrupted, run not saved", "err", runErr)
		return runErr
	}
	if noSave || cfg.Storage.Type == "none" {
		return nil
	}

	sink, err := openSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer sink.Close()

	name := preset
	if name == "" {
		name = "sweep"
	}
	runID, err := sink.SaveRun(ctx, &storage.RunMetadata{
		Name:    name,
		Params:  cfg.Params(),
		Summary: summary.Map(),
	}, records)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	logger.Info("run saved", "id", runID, "storage", cfg.Storage.Type)
	return nil
}

func runOne(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[0], err)
	}

	format, err := viz.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	spec := cfg.Spec()
	if index < 1 || index > spec.Count {
		return fmt.Errorf("index %d outside 1..%d", index, spec.Count)
	}
	x0 := spec.Initial(index)
	glider := cfg.Glider()
	tr := analysis.NewTrajectory(x0, cfg.Integration.TStart, xIndex, yIndex).WithEnergy(x0, glider.Energy)

	runner, err := newRunner(cfg, func(int) []sim.Observer {
		return []sim.Observer{observability.StepObserver, tr}
	})
	if err != nil {
		return err
	}

	rec, err := runner.RunOne(cmd.Context(), index)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := viz.WriteRecords(out, format, []sweep.Record{rec}); err != nil {
		return err
	}

	if showPath {
		fmt.Fprintln(out)
		fmt.Fprintln(out, analysis.PathToASCII(tr, 72, 20))
	}
	apex := tr.Apex()
	fmt.Fprintf(cmd.ErrOrStderr(), "points: %d  apex: (%.4g, %.4g)  energy loss: %.4g\n",
		len(tr.Points), apex.X, apex.Y, tr.EnergyLoss())

	return cmd.Context().Err()
}

func listRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	runs, err := sink.ListRuns(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tCOUNT\tLANDED\tFAILED\tR\tEPS_ABS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.0f\t%.0f\t%g\t%g\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Count,
			run.Summary["landed"],
			run.Summary["failed"],
			run.Params["r"],
			run.Params["eps_abs"],
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, err := viz.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	sink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	meta, err := sink.LoadRun(ctx, args[0])
	if err != nil {
		return err
	}
	records, err := sink.LoadRecords(ctx, args[0])
	if err != nil {
		return err
	}

	if err := viz.WriteRecords(cmd.OutOrStdout(), format, records); err != nil {
		return err
	}

	if exportPath != "" {
		if err := storage.ExportJSON(exportPath, meta, records); err != nil {
			return err
		}
		logger.Info("run exported", "id", meta.ID, "path", exportPath)
	}
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	meta, err := sink.LoadRun(ctx, args[0])
	if err != nil {
		return err
	}
	records, err := sink.LoadRecords(ctx, args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no data to plot")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run: %s\n", meta.ID)
	fmt.Fprintf(out, "iterations: %d\n\n", len(records))
	fmt.Fprintln(out, viz.RangePlot(records, plotWidth, plotHeight))
	fmt.Fprintln(out)
	viz.WriteSummary(out, analysis.Summarize(records), records)
	return nil
}

func deleteRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	if err := sink.DeleteRun(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, name := range config.ListPresets() {
		fmt.Fprintf(w, "%s\t%s\n", name, config.PresetDescription(name))
	}
	return w.Flush()
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

// benchSweep reruns the configured sweep once per tolerance and reports the
// cost of each.
func benchSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EPS_ABS\tSTEPS\tREJECTED\tEVALS\tFAILED\tBEST_RANGE\tTIME\tSTEPS/SEC")

	for _, tol := range benchTols {
		c := *cfg
		c.Integration.EpsAbs = tol

		runner, err := newRunner(&c, nil)
		if err != nil {
			return err
		}

		start := time.Now()
		records, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		s := analysis.Summarize(records)
		best := "-"
		if s.BestRange.OK {
			best = fmt.Sprintf("%.6g", s.BestRange.Value)
		}
		fmt.Fprintf(w, "%g\t%d\t%d\t%d\t%d\t%s\t%v\t%.0f\n",
			tol, s.Steps, s.Rejected, s.Evaluations, s.Failed, best,
			elapsed.Round(time.Microsecond), float64(s.Steps)/elapsed.Seconds())
	}

	return w.Flush()
}
