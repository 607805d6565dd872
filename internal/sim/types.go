package sim

import (
	"math"

	"github.com/san-kum/glidesim/internal/dynamo"
)

// StepEvent describes one attempted step. Rejected attempts carry the
// unchanged Time and State.
type StepEvent struct {
	Time     float64
	Step     float64 // step size used by the attempt
	NextStep float64
	Norm     float64
	Accepted bool
	State    dynamo.State
}

type Observer interface {
	OnStep(ev StepEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev StepEvent)

func (f ObserverFunc) OnStep(ev StepEvent) { f(ev) }

type Config struct {
	TStart      float64
	TEnd        float64
	InitialStep float64
	MinStep     float64 // a rejected step shrinking below this stalls the run
	MaxStep     float64 // 0 disables the cap
	MaxRetries  int     // consecutive rejections tolerated per step
	MaxSteps    int     // accepted steps per run, 0 is unlimited
}

func DefaultConfig() Config {
	return Config{
		TStart:      0,
		TEnd:        600,
		InitialStep: 1e-6,
		MinStep:     1e-14,
		MaxRetries:  64,
	}
}

func (c Config) Validate() error {
	if math.IsNaN(c.TStart) || math.IsNaN(c.TEnd) || math.IsInf(c.TStart, 0) || math.IsInf(c.TEnd, 0) {
		return dynamo.ConfigError("time interval must be finite, got [%g, %g]", c.TStart, c.TEnd)
	}
	if c.TEnd < c.TStart {
		return dynamo.ConfigError("t_end %g precedes t_start %g", c.TEnd, c.TStart)
	}
	if !(c.InitialStep > 0) || math.IsInf(c.InitialStep, 0) {
		return dynamo.ConfigError("initial step must be positive, got %g", c.InitialStep)
	}
	if c.MinStep < 0 {
		return dynamo.ConfigError("min step must be non-negative, got %g", c.MinStep)
	}
	if c.MaxStep < 0 {
		return dynamo.ConfigError("max step must be non-negative, got %g", c.MaxStep)
	}
	if c.MaxStep > 0 && c.MaxStep < c.MinStep {
		return dynamo.ConfigError("max step %g below min step %g", c.MaxStep, c.MinStep)
	}
	if c.MaxRetries < 0 {
		return dynamo.ConfigError("max retries must be non-negative, got %d", c.MaxRetries)
	}
	if c.MaxSteps < 0 {
		return dynamo.ConfigError("max steps must be non-negative, got %d", c.MaxSteps)
	}
	return nil
}

// Result is the terminal record of one run. On failure Time and State are
// the last accepted values.
type Result struct {
	Status      dynamo.Status
	Time        float64
	State       dynamo.State
	Steps       int
	Rejected    int
	Evaluations int
	LastStep    float64
	Err         error
}
