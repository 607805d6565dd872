package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/glidesim/internal/dynamo"
)

type validator interface {
	Validate() error
}

// Evolver drives one adaptive integration run from an initial state until
// TEnd, a domain stopping condition, or a fault. An Evolver and its stepper
// belong to a single run at a time.
type Evolver struct {
	sys        dynamo.System
	stepper    dynamo.Stepper
	controller dynamo.Controller
	cfg        Config
	observers  []Observer
}

func New(sys dynamo.System, stepper dynamo.Stepper, controller dynamo.Controller, cfg Config) *Evolver {
	return &Evolver{
		sys:        sys,
		stepper:    stepper,
		controller: controller,
		cfg:        cfg,
		observers:  make([]Observer, 0),
	}
}

func (e *Evolver) AddObserver(o Observer) { e.observers = append(e.observers, o) }

// Run integrates from x0. A configuration problem returns a nil result and
// an error wrapping dynamo.ErrConfiguration. Otherwise the result is always
// non-nil; a Failed result is returned together with its *dynamo.FaultError.
func (e *Evolver) Run(ctx context.Context, x0 dynamo.State) (*Result, error) {
	if err := e.validate(x0); err != nil {
		return nil, err
	}

	cfg := e.cfg
	x := x0.Clone()
	t := cfg.TStart
	h := cfg.InitialStep
	evals := e.stepper.Evaluations()

	result := &Result{
		Status: dynamo.Advancing,
		Time:   t,
		State:  x,
	}

	finish := func(status dynamo.Status, err error) (*Result, error) {
		result.Status = status
		result.Time = t
		result.State = x.Clone()
		result.Evaluations = e.stepper.Evaluations() - evals
		if err != nil {
			result.Err = &dynamo.FaultError{
				Step:    result.Steps,
				Time:    t,
				State:   x.Clone(),
				Wrapped: err,
			}
		}
		return result, result.Err
	}

	if t >= cfg.TEnd || e.terminated(x, t) {
		return finish(dynamo.Done, nil)
	}

	retries := 0
	for {
		select {
		case <-ctx.Done():
			return finish(dynamo.Failed, fmt.Errorf("%w: %w", dynamo.ErrCanceled, ctx.Err()))
		default:
		}

		if cfg.MaxSteps > 0 && result.Steps >= cfg.MaxSteps {
			return finish(dynamo.Failed, fmt.Errorf("%w: %d steps without reaching t=%g", dynamo.ErrStepBudget, result.Steps, cfg.TEnd))
		}

		hUsed := h
		if cfg.MaxStep > 0 && hUsed > cfg.MaxStep {
			hUsed = cfg.MaxStep
		}
		last := false
		if remaining := cfg.TEnd - t; hUsed >= remaining {
			hUsed = remaining
			last = true
		}

		var d dynamo.Decision
		trial, errEst, err := e.stepper.Step(e.sys, x, t, hUsed)
		switch {
		case dynamo.IsTrialFault(err):
			// An unbounded error estimate makes the controller reject with
			// its strongest shrink.
			d = e.controller.Adjust(x, x, unboundedError(len(x)), hUsed)
		case err != nil:
			return finish(dynamo.Failed, err)
		case !trial.IsValid() || !errEst.IsValid():
			return finish(dynamo.Failed, fmt.Errorf("%w: trial step from t=%g with h=%g", dynamo.ErrInvalidState, t, hUsed))
		default:
			d = e.controller.Adjust(x, trial, errEst, hUsed)
		}

		if !d.Accept {
			result.Rejected++
			retries++
			e.notify(StepEvent{Time: t, Step: hUsed, NextStep: d.NextH, Norm: d.Norm, State: x})

			h = d.NextH
			if retries > cfg.MaxRetries {
				return finish(dynamo.Failed, fmt.Errorf("%w: %d consecutive rejections at h=%g", dynamo.ErrRetryLimit, retries, hUsed))
			}
			if h < cfg.MinStep || t+h == t {
				return finish(dynamo.Failed, fmt.Errorf("%w: h=%g at t=%g", dynamo.ErrStalled, h, t))
			}
			continue
		}

		retries = 0
		if last {
			t = cfg.TEnd
		} else {
			t = math.Min(t+hUsed, cfg.TEnd)
		}
		x = trial
		h = d.NextH
		result.Steps++
		result.LastStep = hUsed
		e.notify(StepEvent{Time: t, Step: hUsed, NextStep: d.NextH, Norm: d.Norm, Accepted: true, State: x})

		if t >= cfg.TEnd || e.terminated(x, t) {
			return finish(dynamo.Done, nil)
		}
	}
}

func unboundedError(n int) dynamo.State {
	errEst := make(dynamo.State, n)
	for i := range errEst {
		errEst[i] = math.Inf(1)
	}
	return errEst
}

func (e *Evolver) validate(x0 dynamo.State) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	if v, ok := e.controller.(validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if v, ok := e.sys.(validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if len(x0) != e.sys.StateDim() {
		return dynamo.ConfigError("initial state has %d components, system expects %d", len(x0), e.sys.StateDim())
	}
	if !x0.IsValid() {
		return dynamo.ConfigError("initial state %v is not finite", x0)
	}
	return nil
}

func (e *Evolver) terminated(x dynamo.State, t float64) bool {
	if term, ok := e.sys.(dynamo.Terminator); ok {
		return term.Terminated(x, t)
	}
	return false
}

func (e *Evolver) notify(ev StepEvent) {
	for _, obs := range e.observers {
		obs.OnStep(ev)
	}
}
