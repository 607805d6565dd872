package integrators

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/glidesim/internal/dynamo"
)

const rkf45Stages = 6

// Runge-Kutta-Fehlberg 4(5) tableau.
var (
	rkf45C = [rkf45Stages]float64{0, 1.0 / 4.0, 3.0 / 8.0, 12.0 / 13.0, 1, 1.0 / 2.0}

	rkf45A = [rkf45Stages][rkf45Stages - 1]float64{
		{},
		{1.0 / 4.0},
		{3.0 / 32.0, 9.0 / 32.0},
		{1932.0 / 2197.0, -7200.0 / 2197.0, 7296.0 / 2197.0},
		{439.0 / 216.0, -8.0, 3680.0 / 513.0, -845.0 / 4104.0},
		{-8.0 / 27.0, 2.0, -3544.0 / 2565.0, 1859.0 / 4104.0, -11.0 / 40.0},
	}

	// fifth order weights
	rkf45B = [rkf45Stages]float64{16.0 / 135.0, 0, 6656.0 / 12825.0, 28561.0 / 56430.0, -9.0 / 50.0, 2.0 / 55.0}

	// fifth minus fourth order weights
	rkf45E = [rkf45Stages]float64{1.0 / 360.0, 0, -128.0 / 4275.0, -2197.0 / 75240.0, 1.0 / 50.0, 2.0 / 55.0}
)

// RKF45 is the embedded Fehlberg 4(5) pair. It propagates the fifth order
// solution and reports the difference to the fourth order one as the local
// error estimate. Stage buffers make a value unsafe for concurrent use.
type RKF45 struct {
	k       [rkf45Stages]dynamo.State
	scratch dynamo.State
	evals   int
}

func NewRKF45() *RKF45 {
	return &RKF45{}
}

func (r *RKF45) Order() int { return 5 }

// Evaluations returns the number of derivative evaluations so far.
func (r *RKF45) Evaluations() int { return r.evals }

func (r *RKF45) ensureScratch(n int) {
	if len(r.scratch) != n {
		r.scratch = make(dynamo.State, n)
	}
}

func (r *RKF45) Step(sys dynamo.System, x dynamo.State, t, h float64) (dynamo.State, dynamo.State, error) {
	n := len(x)
	if n != sys.StateDim() {
		return nil, nil, fmt.Errorf("%w: state has %d components, system expects %d", dynamo.ErrDimensionMismatch, n, sys.StateDim())
	}
	r.ensureScratch(n)

	for s := 0; s < rkf45Stages; s++ {
		copy(r.scratch, x)
		for j := 0; j < s; j++ {
			if a := rkf45A[s][j]; a != 0 {
				floats.AddScaled(r.scratch, h*a, r.k[j])
			}
		}

		k, err := sys.Derive(r.scratch, t+rkf45C[s]*h)
		r.evals++
		if err != nil {
			return nil, nil, &dynamo.StageError{Stage: s + 1, Err: err}
		}
		if len(k) != n {
			return nil, nil, fmt.Errorf("%w: derivative has %d components", dynamo.ErrDimensionMismatch, len(k))
		}
		r.k[s] = k
	}

	trial := x.Clone()
	errEst := make(dynamo.State, n)
	for s := 0; s < rkf45Stages; s++ {
		if b := rkf45B[s]; b != 0 {
			floats.AddScaled(trial, h*b, r.k[s])
		}
		if e := rkf45E[s]; e != 0 {
			floats.AddScaled(errEst, h*e, r.k[s])
		}
	}

	return trial, errEst, nil
}
