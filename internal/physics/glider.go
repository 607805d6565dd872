package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/glidesim/internal/dynamo"
)

const (
	DefaultEfficiency = 10.0
	DefaultMinSpeed   = 1e-10
)

// Glider implements the dimensionless phugoid model of an unpowered glider.
// State: [v, theta, x, y]
// Equations:
//
//	dv/dt     = -sin(theta) - v²/R
//	dtheta/dt = -cos(theta)/v + v
//	dx/dt     = v cos(theta)
//	dy/dt     = v sin(theta)
//
// R is the aerodynamic efficiency (lift to drag ratio).
type Glider struct {
	R float64
	// MinSpeed is the singular speed floor. A trial stage at or below it
	// makes the step be rejected and retried shorter; an accepted state at
	// or below it faults the run.
	MinSpeed float64
}

func NewGlider(r float64) *Glider {
	return &Glider{
		R:        r,
		MinSpeed: DefaultMinSpeed,
	}
}

func (g *Glider) StateDim() int { return 4 }

func (g *Glider) Derive(x dynamo.State, _ float64) (dynamo.State, error) {
	if len(x) != 4 {
		return nil, fmt.Errorf("%w: glider state has %d components", dynamo.ErrDimensionMismatch, len(x))
	}
	v, theta := x[0], x[1]
	if v <= g.MinSpeed {
		return nil, fmt.Errorf("%w: speed %g at or below %g", dynamo.ErrSingularity, v, g.MinSpeed)
	}

	sin, cos := math.Sincos(theta)
	dx := dynamo.State{
		-sin - v*v/g.R,
		-cos/v + v,
		v * cos,
		v * sin,
	}
	if !dx.IsValid() {
		return nil, fmt.Errorf("%w: derivative at v=%g theta=%g", dynamo.ErrInvalidState, v, theta)
	}
	return dx, nil
}

// Terminated reports that the glider has reached the ground.
func (g *Glider) Terminated(x dynamo.State, _ float64) bool {
	return x[3] <= 0
}

// Energy is the dimensionless specific energy v²/2 + y. Drag makes it
// decrease monotonically along a trajectory.
func (g *Glider) Energy(x dynamo.State) float64 {
	return 0.5*x[0]*x[0] + x[3]
}

func (g *Glider) GetParams() map[string]float64 {
	return map[string]float64{
		"r":         g.R,
		"min_speed": g.MinSpeed,
	}
}

func (g *Glider) Validate() error {
	if g.R <= 0 || math.IsNaN(g.R) || math.IsInf(g.R, 0) {
		return dynamo.ConfigError("efficiency R must be positive and finite, got %g", g.R)
	}
	if g.MinSpeed < 0 {
		return dynamo.ConfigError("min speed must be non-negative, got %g", g.MinSpeed)
	}
	return nil
}
