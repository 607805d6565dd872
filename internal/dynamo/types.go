package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Equal reports bit-for-bit equality.
func (s State) Equal(other State) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if math.Float64bits(s[i]) != math.Float64bits(other[i]) {
			return false
		}
	}
	return true
}

type System interface {
	Derive(x State, t float64) (State, error)
	StateDim() int
}

// Terminator is implemented by systems with a state-dependent stopping
// condition.
type Terminator interface {
	Terminated(x State, t float64) bool
}

// Stepper advances a state by one embedded step and returns the higher
// order solution together with the per-component local error estimate.
type Stepper interface {
	Step(sys System, x State, t, h float64) (trial State, errEst State, err error)
	Order() int
	Evaluations() int
}

// Status is the terminal state of one integration run.
type Status int

const (
	Advancing Status = iota
	Done
	Failed
)

func (s Status) String() string {
	switch s {
	case Advancing:
		return "advancing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "advancing":
		return Advancing, true
	case "done":
		return Done, true
	case "failed":
		return Failed, true
	}
	return Advancing, false
}

// Decision is a step-size controller verdict on one trial step.
type Decision struct {
	Accept bool
	Norm   float64 // normalized local error, <= 1 on acceptance
	Factor float64 // NextH / h
	NextH  float64
}

// Controller decides whether a trial step is accepted and proposes the
// next step size.
type Controller interface {
	Adjust(x, trial, errEst State, h float64) Decision
}
