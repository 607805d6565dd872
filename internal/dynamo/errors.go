package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration runs.
var (
	// ErrInvalidState indicates a state or derivative with NaN or Inf components.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrSingularity indicates the derivative is undefined at the current state.
	ErrSingularity = errors.New("dynamo: derivative singular at state")

	// ErrStalled indicates the adaptive step shrank below the minimum.
	ErrStalled = errors.New("dynamo: adaptive timestep below minimum")

	// ErrRetryLimit indicates too many consecutive step rejections.
	ErrRetryLimit = errors.New("dynamo: step rejected too many times")

	// ErrStepBudget indicates the accepted-step budget was exhausted.
	ErrStepBudget = errors.New("dynamo: step budget exhausted")

	// ErrCanceled indicates the run was interrupted by its context.
	ErrCanceled = errors.New("dynamo: integration canceled by context")

	// ErrConfiguration indicates a systemic misconfiguration.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrDimensionMismatch indicates mismatched state dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")
)

// IsNumericalFault reports whether err stems from the numerics of a run
// rather than from a budget or cancellation.
func IsNumericalFault(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrSingularity) ||
		errors.Is(err, ErrStalled) ||
		errors.Is(err, ErrRetryLimit)
}

// StageError reports a derivative failure at one stage of a multi-stage
// step. Stage 1 is evaluated at the starting state; later stages sit at
// trial points that depend on the step size.
type StageError struct {
	Stage int
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %d: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// IsTrialFault reports a numerical fault at an intermediate stage. The
// starting state is sound, so a shorter step may avoid the fault.
func IsTrialFault(err error) bool {
	var se *StageError
	if !errors.As(err, &se) || se.Stage < 2 {
		return false
	}
	return errors.Is(se.Err, ErrSingularity) || errors.Is(se.Err, ErrInvalidState)
}

var faultKinds = []struct {
	name string
	err  error
}{
	{"invalid_state", ErrInvalidState},
	{"singularity", ErrSingularity},
	{"stalled", ErrStalled},
	{"retry_limit", ErrRetryLimit},
	{"step_budget", ErrStepBudget},
	{"canceled", ErrCanceled},
	{"dimension_mismatch", ErrDimensionMismatch},
}

// FaultKind names the run error sentinel err wraps. It returns "" for nil
// and "other" for anything else.
func FaultKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range faultKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}

// FaultSentinel is the inverse of FaultKind, or nil for an unknown name.
func FaultSentinel(kind string) error {
	for _, k := range faultKinds {
		if k.name == kind {
			return k.err
		}
	}
	return nil
}

// ConfigError builds an error wrapping ErrConfiguration.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// FaultError wraps an error with the last valid integration context.
type FaultError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *FaultError) Unwrap() error {
	return e.Wrapped
}
