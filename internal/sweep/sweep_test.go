package sweep_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/glidesim/internal/control"
	"github.com/san-kum/glidesim/internal/dynamo"
	"github.com/san-kum/glidesim/internal/physics"
	"github.com/san-kum/glidesim/internal/sim"
	"github.com/san-kum/glidesim/internal/sweep"
)

func referenceOptions() sweep.Options {
	return sweep.Options{
		Spec: sweep.Spec{
			Count:          20,
			AngleIncrement: 0.1,
			Base:           dynamo.State{2, -math.Pi / 3, 0, 2},
		},
		Evolver:       sim.DefaultConfig(),
		NewSystem:     func() dynamo.System { return physics.NewGlider(10) },
		NewController: func() dynamo.Controller { return control.NewStandard(1e-8, 0) },
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func sameOutcome(a, b sweep.Record) {
	Expect(a.Index).To(Equal(b.Index))
	Expect(math.Float64bits(a.LaunchAngle)).To(Equal(math.Float64bits(b.LaunchAngle)))
	Expect(math.Float64bits(a.Time)).To(Equal(math.Float64bits(b.Time)))
	Expect(a.State.Equal(b.State)).To(BeTrue(), "states %v and %v differ", a.State, b.State)
	Expect(a.Status).To(Equal(b.Status))
	Expect(a.Steps).To(Equal(b.Steps))
	Expect(a.Rejected).To(Equal(b.Rejected))
}

var _ = Describe("Runner", func() {
	var (
		ctx  context.Context
		opts sweep.Options
	)

	BeforeEach(func() {
		ctx = context.Background()
		opts = referenceOptions()
	})

	Describe("the reference sweep", func() {
		var records []sweep.Record

		BeforeEach(func() {
			runner, err := sweep.NewRunner(opts)
			Expect(err).NotTo(HaveOccurred())
			records, err = runner.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
		})

		It("emits one record per iteration in order", func() {
			Expect(records).To(HaveLen(20))
			for i, rec := range records {
				Expect(rec.Index).To(Equal(i + 1))
				Expect(rec.LaunchAngle).To(BeNumerically("~", -math.Pi/3+float64(i+1)*0.1, 1e-15))
			}
		})

		It("lands the first variant after a positive flight time", func() {
			first := records[0]
			Expect(first.Status).To(Equal(dynamo.Done))
			Expect(first.Err).NotTo(HaveOccurred())
			Expect(first.Time).To(BeNumerically(">", 0))
			Expect(first.Y() <= 0 || first.Time == 600).To(BeTrue())
		})

		It("lands every reference variant", func() {
			for _, rec := range records {
				Expect(rec.Err).NotTo(HaveOccurred(), "iteration %d", rec.Index)
				Expect(rec.Status).To(Equal(dynamo.Done), "iteration %d", rec.Index)
				Expect(rec.Landed()).To(BeTrue(), "iteration %d ended at y=%g", rec.Index, rec.Y())
			}
		})

		It("never integrates past t_end", func() {
			for _, rec := range records {
				Expect(rec.Time).To(BeNumerically("<=", 600))
				Expect(rec.State.IsValid()).To(BeTrue())
			}
		})

		It("matches single-iteration runs", func() {
			runner, err := sweep.NewRunner(opts)
			Expect(err).NotTo(HaveOccurred())

			for _, i := range []int{1, 7, 20} {
				rec, err := runner.RunOne(ctx, i)
				Expect(err).NotTo(HaveOccurred())
				sameOutcome(rec, records[i-1])
			}
		})

		It("does not depend on the worker count", func() {
			opts.Workers = 1
			runner, err := sweep.NewRunner(opts)
			Expect(err).NotTo(HaveOccurred())

			sequential, err := runner.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			for i := range sequential {
				sameOutcome(sequential[i], records[i])
			}
		})
	})

	Describe("configuration errors", func() {
		It("rejects a degenerate tolerance before running anything", func() {
			var built atomic.Int32
			opts.NewController = func() dynamo.Controller { return control.NewStandard(0, 0) }
			opts.OnRecord = func(sweep.Record) { built.Add(1) }

			runner, err := sweep.NewRunner(opts)
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
			Expect(runner).To(BeNil())
			Expect(built.Load()).To(BeZero())
		})

		DescribeTable("invalid options",
			func(mutate func(o *sweep.Options)) {
				mutate(&opts)
				_, err := sweep.NewRunner(opts)
				Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue(), "got %v", err)
			},
			Entry("non-positive initial step", func(o *sweep.Options) { o.Evolver.InitialStep = 0 }),
			Entry("zero count", func(o *sweep.Options) { o.Spec.Count = 0 }),
			Entry("infinite increment", func(o *sweep.Options) { o.Spec.AngleIncrement = math.Inf(1) }),
			Entry("short base state", func(o *sweep.Options) { o.Spec.Base = dynamo.State{2} }),
			Entry("base state of wrong size", func(o *sweep.Options) { o.Spec.Base = dynamo.State{2, 0, 0} }),
			Entry("negative workers", func(o *sweep.Options) { o.Workers = -1 }),
			Entry("missing factory", func(o *sweep.Options) { o.NewSystem = nil }),
			Entry("bad efficiency", func(o *sweep.Options) {
				o.NewSystem = func() dynamo.System { return physics.NewGlider(-1) }
			}),
		)

		It("rejects an out of range single iteration", func() {
			runner, err := sweep.NewRunner(opts)
			Expect(err).NotTo(HaveOccurred())

			_, err = runner.RunOne(ctx, 0)
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
			_, err = runner.RunOne(ctx, 21)
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		})
	})

	Describe("faulting iterations", func() {
		It("records the fault and keeps sweeping", func() {
			opts.NewSystem = func() dynamo.System {
				g := physics.NewGlider(10)
				g.MinSpeed = 1.5
				return g
			}
			runner, err := sweep.NewRunner(opts)
			Expect(err).NotTo(HaveOccurred())

			records, err := runner.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(20))

			last := records[19]
			Expect(last.Status).To(Equal(dynamo.Failed))
			Expect(dynamo.IsNumericalFault(last.Err)).To(BeTrue())
			Expect(last.LaunchAngle).To(BeNumerically("~", -math.Pi/3+2, 1e-12))

			for _, rec := range records {
				if rec.Status == dynamo.Failed {
					Expect(rec.Err).To(HaveOccurred())
				} else {
					Expect(rec.Err).NotTo(HaveOccurred())
				}
			}
		})

		It("fails every iteration of a stationary launch without aborting", func() {
			opts.Spec.Base = dynamo.State{0, -math.Pi / 3, 0, 2}
			runner, err := sweep.NewRunner(opts)
			Expect(err).NotTo(HaveOccurred())

			records, err := runner.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(20))
			for _, rec := range records {
				Expect(rec.Status).To(Equal(dynamo.Failed))
				Expect(rec.Err).To(MatchError(dynamo.ErrSingularity))
				Expect(rec.Time).To(BeZero())
			}
		})
	})

	Describe("cancellation", func() {
		It("still returns a record per iteration", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()

			runner, err := sweep.NewRunner(opts)
			Expect(err).NotTo(HaveOccurred())

			records, err := runner.Run(canceled)
			Expect(err).To(MatchError(context.Canceled))
			Expect(records).To(HaveLen(20))
			for _, rec := range records {
				Expect(rec.Status).To(Equal(dynamo.Failed))
				Expect(rec.Err).To(MatchError(dynamo.ErrCanceled))
			}
		})
	})

	Describe("hooks", func() {
		It("gives each iteration its own observers and reports every record", func() {
			opts.Spec.Count = 4
			counts := make([]int, 5)
			var reported atomic.Int32

			opts.Observers = func(index int) []sim.Observer {
				return []sim.Observer{sim.ObserverFunc(func(sim.StepEvent) { counts[index]++ })}
			}
			opts.OnRecord = func(sweep.Record) { reported.Add(1) }

			runner, err := sweep.NewRunner(opts)
			Expect(err).NotTo(HaveOccurred())
			records, err := runner.Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(reported.Load()).To(BeEquivalentTo(4))
			for _, rec := range records {
				Expect(counts[rec.Index]).To(Equal(rec.Steps + rec.Rejected))
			}
		})
	})
})
