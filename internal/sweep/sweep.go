// Package sweep runs the glider integration over a family of launch angles.
//
// Every iteration gets its own system, stepper, controller and evolver, so
// iterations share no mutable state and may run on any number of workers.
// The record slice always has one entry per configured iteration, in
// iteration order, whether or not the iteration faulted.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/glidesim/internal/dynamo"
	"github.com/san-kum/glidesim/internal/integrators"
	"github.com/san-kum/glidesim/internal/sim"
)

// Spec describes the launch-angle variants: variant i (1-based) starts from
// Base with its angle component raised by i*AngleIncrement.
type Spec struct {
	Count          int
	AngleIncrement float64
	Base           dynamo.State
}

const angleIndex = 1

func (s Spec) LaunchAngle(i int) float64 {
	return s.Base[angleIndex] + float64(i)*s.AngleIncrement
}

func (s Spec) Initial(i int) dynamo.State {
	x := s.Base.Clone()
	x[angleIndex] = s.LaunchAngle(i)
	return x
}

func (s Spec) Validate() error {
	if s.Count < 1 {
		return dynamo.ConfigError("sweep count must be at least 1, got %d", s.Count)
	}
	if math.IsNaN(s.AngleIncrement) || math.IsInf(s.AngleIncrement, 0) {
		return dynamo.ConfigError("angle increment must be finite, got %g", s.AngleIncrement)
	}
	if len(s.Base) <= angleIndex {
		return dynamo.ConfigError("base state has no angle component: %v", s.Base)
	}
	if !s.Base.IsValid() {
		return dynamo.ConfigError("base state %v is not finite", s.Base)
	}
	return nil
}

// Record is the outcome of one iteration. State is the final state, or the
// last valid state when Status is Failed.
type Record struct {
	Index       int
	LaunchAngle float64
	Time        float64
	State       dynamo.State
	Status      dynamo.Status
	Steps       int
	Rejected    int
	Evaluations int
	Elapsed     time.Duration
	Err         error
}

func (r Record) Speed() float64 { return r.State[0] }
func (r Record) Theta() float64 { return r.State[1] }
func (r Record) X() float64     { return r.State[2] }
func (r Record) Y() float64     { return r.State[3] }

// Landed reports a completed iteration that ended on the ground.
func (r Record) Landed() bool {
	return r.Status == dynamo.Done && r.Y() <= 0
}

type Options struct {
	Spec             Spec
	Evolver          sim.Config
	NewSystem        func() dynamo.System
	NewController    func() dynamo.Controller
	Workers          int           // 0 uses GOMAXPROCS
	IterationTimeout time.Duration // 0 disables the wall-clock budget

	// Observers, when set, is called once per iteration; the returned
	// observers are owned by that iteration.
	Observers func(index int) []sim.Observer
	// OnRecord is called from the iteration's goroutine once it finishes.
	OnRecord func(Record)
	Logger   *slog.Logger
}

type Runner struct {
	opts Options
}

type validator interface {
	Validate() error
}

// NewRunner checks the whole configuration up front so that a systemic
// misconfiguration aborts the sweep before any iteration runs.
func NewRunner(opts Options) (*Runner, error) {
	if opts.NewSystem == nil || opts.NewController == nil {
		return nil, dynamo.ConfigError("system and controller factories are required")
	}
	if opts.Workers < 0 {
		return nil, dynamo.ConfigError("workers must be non-negative, got %d", opts.Workers)
	}
	if opts.IterationTimeout < 0 {
		return nil, dynamo.ConfigError("iteration timeout must be non-negative, got %s", opts.IterationTimeout)
	}

	errs := []error{opts.Spec.Validate(), opts.Evolver.Validate()}
	sys := opts.NewSystem()
	if v, ok := sys.(validator); ok {
		errs = append(errs, v.Validate())
	}
	if v, ok := opts.NewController().(validator); ok {
		errs = append(errs, v.Validate())
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if len(opts.Spec.Base) != sys.StateDim() {
		return nil, dynamo.ConfigError("base state has %d components, system expects %d", len(opts.Spec.Base), sys.StateDim())
	}

	if opts.Workers == 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{opts: opts}, nil
}

func (r *Runner) Count() int { return r.opts.Spec.Count }

// Run executes every iteration and returns their records in order. The
// error is non-nil only when ctx ended before the sweep completed; the
// records are still complete, with interrupted iterations marked Failed.
func (r *Runner) Run(ctx context.Context) ([]Record, error) {
	n := r.opts.Spec.Count
	records := make([]Record, n)

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i := 1; i <= n; i++ {
		g.Go(func() error {
			records[i-1] = r.iterate(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	return records, ctx.Err()
}

// RunOne executes iteration i (1-based) on its own.
func (r *Runner) RunOne(ctx context.Context, i int) (Record, error) {
	if i < 1 || i > r.opts.Spec.Count {
		return Record{}, dynamo.ConfigError("iteration %d outside 1..%d", i, r.opts.Spec.Count)
	}
	return r.iterate(ctx, i), nil
}

func (r *Runner) iterate(ctx context.Context, i int) Record {
	x0 := r.opts.Spec.Initial(i)
	rec := Record{
		Index:       i,
		LaunchAngle: x0[angleIndex],
		Time:        r.opts.Evolver.TStart,
		State:       x0,
		Status:      dynamo.Failed,
	}

	if r.opts.IterationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.IterationTimeout)
		defer cancel()
	}

	ev := sim.New(r.opts.NewSystem(), integrators.NewRKF45(), r.opts.NewController(), r.opts.Evolver)
	if r.opts.Observers != nil {
		for _, obs := range r.opts.Observers(i) {
			ev.AddObserver(obs)
		}
	}

	log := r.opts.Logger.With("index", i, "launch_angle", rec.LaunchAngle)
	log.Debug("iteration started")

	start := time.Now()
	res, err := ev.Run(ctx, x0)
	rec.Elapsed = time.Since(start)

	if res != nil {
		rec.Time = res.Time
		rec.State = res.State
		rec.Status = res.Status
		rec.Steps = res.Steps
		rec.Rejected = res.Rejected
		rec.Evaluations = res.Evaluations
	}
	rec.Err = err

	if err != nil {
		log.Warn("iteration failed", "t", rec.Time, "steps", rec.Steps, "err", err)
	} else {
		log.Debug("iteration finished", "t", rec.Time, "steps", rec.Steps, "rejected", rec.Rejected, "elapsed", rec.Elapsed)
	}

	if r.opts.OnRecord != nil {
		r.opts.OnRecord(rec)
	}
	return rec
}
