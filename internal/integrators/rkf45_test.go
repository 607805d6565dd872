package integrators

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/san-kum/glidesim/internal/dynamo"
)

type decay struct{}

func (d *decay) StateDim() int { return 1 }
func (d *decay) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	return dynamo.State{-x[0]}, nil
}

type harmonicOscillator struct{}

func (h *harmonicOscillator) StateDim() int { return 2 }
func (h *harmonicOscillator) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	return dynamo.State{x[1], -x[0]}, nil
}

type constantRate struct{}

func (c *constantRate) StateDim() int { return 1 }
func (c *constantRate) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	return dynamo.State{1}, nil
}

var errBoom = errors.New("boom")

type failingSystem struct{ after int }

func (f *failingSystem) StateDim() int { return 1 }
func (f *failingSystem) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	if f.after == 0 {
		return nil, errBoom
	}
	f.after--
	return dynamo.State{0}, nil
}

func TestRKF45_SingleStepAccuracy(t *testing.T) {
	r := NewRKF45()

	trial, errEst, err := r.Step(&decay{}, dynamo.State{1}, 0, 0.1)
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}

	if !scalar.EqualWithinAbs(trial[0], math.Exp(-0.1), 1e-8) {
		t.Errorf("expected %.12f, got %.12f", math.Exp(-0.1), trial[0])
	}

	if errEst[0] == 0 || math.Abs(errEst[0]) > 1e-5 {
		t.Errorf("unexpected error estimate: %e", errEst[0])
	}
}

func TestRKF45_ErrorEstimateOrder(t *testing.T) {
	r := NewRKF45()

	_, e1, err := r.Step(&decay{}, dynamo.State{1}, 0, 0.1)
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}
	_, e2, err := r.Step(&decay{}, dynamo.State{1}, 0, 0.05)
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}

	// the embedded estimate is O(h^5), so halving h divides it by ~32
	ratio := math.Abs(e1[0] / e2[0])
	if ratio < 25 || ratio > 40 {
		t.Errorf("expected error ratio near 32, got %f", ratio)
	}
}

func TestRKF45_ExactForConstantRate(t *testing.T) {
	r := NewRKF45()

	trial, errEst, err := r.Step(&constantRate{}, dynamo.State{2}, 0, 0.5)
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}

	if !scalar.EqualWithinAbs(trial[0], 2.5, 1e-14) {
		t.Errorf("expected 2.5, got %.16f", trial[0])
	}
	if math.Abs(errEst[0]) > 1e-15 {
		t.Errorf("expected zero error estimate, got %e", errEst[0])
	}
}

func TestRKF45_HarmonicOscillator(t *testing.T) {
	r := NewRKF45()
	x := dynamo.State{1, 0}
	dt := 0.01

	for i := 0; i < 1000; i++ {
		next, _, err := r.Step(&harmonicOscillator{}, x, float64(i)*dt, dt)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		x = next
	}

	if !x.IsValid() {
		t.Fatal("RKF45 produced invalid state")
	}
	if !scalar.EqualWithinAbs(x[0], math.Cos(10), 1e-8) {
		t.Errorf("position error too large: got %.10f, expected %.10f", x[0], math.Cos(10))
	}
	if !scalar.EqualWithinAbs(x[1], -math.Sin(10), 1e-8) {
		t.Errorf("velocity error too large: got %.10f, expected %.10f", x[1], -math.Sin(10))
	}
}

func TestRKF45_DoesNotMutateInput(t *testing.T) {
	r := NewRKF45()
	x := dynamo.State{1, 0}

	if _, _, err := r.Step(&harmonicOscillator{}, x, 0, 0.1); err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if x[0] != 1 || x[1] != 0 {
		t.Errorf("input state mutated: %v", x)
	}
}

func TestRKF45_StageError(t *testing.T) {
	tests := []struct {
		name  string
		after int
	}{
		{"first stage", 0},
		{"fourth stage", 3},
		{"last stage", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRKF45()
			_, _, err := r.Step(&failingSystem{after: tt.after}, dynamo.State{1}, 0, 0.1)
			if !errors.Is(err, errBoom) {
				t.Errorf("expected wrapped stage error, got %v", err)
			}
			var stage *dynamo.StageError
			if !errors.As(err, &stage) || stage.Stage != tt.after+1 {
				t.Errorf("expected failure at stage %d, got %v", tt.after+1, err)
			}
			if r.Evaluations() != tt.after+1 {
				t.Errorf("expected %d evaluations, got %d", tt.after+1, r.Evaluations())
			}
		})
	}
}

func TestRKF45_DimensionMismatch(t *testing.T) {
	r := NewRKF45()
	_, _, err := r.Step(&decay{}, dynamo.State{1, 2}, 0, 0.1)
	if !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRKF45_Evaluations(t *testing.T) {
	r := NewRKF45()
	for i := 0; i < 3; i++ {
		if _, _, err := r.Step(&decay{}, dynamo.State{1}, 0, 0.1); err != nil {
			t.Fatalf("step failed: %v", err)
		}
	}
	if r.Evaluations() != 18 {
		t.Errorf("expected 18 evaluations, got %d", r.Evaluations())
	}
	if r.Order() != 5 {
		t.Errorf("expected order 5, got %d", r.Order())
	}
}
