package control

import (
	"math"

	"github.com/san-kum/glidesim/internal/dynamo"
)

const (
	DefaultSafety    = 0.9
	DefaultMinShrink = 0.2
	DefaultMaxGrowth = 5.0
	DefaultOrder     = 5
)

// Standard scales each error component by
//
//	scale_i = EpsAbs + EpsRel*max(|x_i|, |trial_i|)
//
// and takes the max norm of err_i/scale_i. The step is accepted when the
// norm is at most one; the next step is h*clamp(Safety*norm^(-1/Order)).
type Standard struct {
	EpsAbs    float64
	EpsRel    float64
	Safety    float64
	MinShrink float64
	MaxGrowth float64
	Order     int
}

func NewStandard(epsAbs, epsRel float64) *Standard {
	return &Standard{
		EpsAbs:    epsAbs,
		EpsRel:    epsRel,
		Safety:    DefaultSafety,
		MinShrink: DefaultMinShrink,
		MaxGrowth: DefaultMaxGrowth,
		Order:     DefaultOrder,
	}
}

func (c *Standard) Validate() error {
	if c.EpsAbs < 0 || c.EpsRel < 0 {
		return dynamo.ConfigError("tolerances must be non-negative, got eps_abs=%g eps_rel=%g", c.EpsAbs, c.EpsRel)
	}
	if c.EpsAbs == 0 && c.EpsRel == 0 {
		return dynamo.ConfigError("eps_abs and eps_rel cannot both be zero")
	}
	if math.IsNaN(c.EpsAbs) || math.IsNaN(c.EpsRel) {
		return dynamo.ConfigError("tolerances must be numbers")
	}
	if c.Safety <= 0 || c.Safety > 1 {
		return dynamo.ConfigError("safety must be in (0, 1], got %g", c.Safety)
	}
	if c.MinShrink <= 0 || c.MinShrink >= 1 {
		return dynamo.ConfigError("min shrink must be in (0, 1), got %g", c.MinShrink)
	}
	if c.MaxGrowth <= 1 {
		return dynamo.ConfigError("max growth must exceed 1, got %g", c.MaxGrowth)
	}
	if c.Order < 1 {
		return dynamo.ConfigError("order must be positive, got %d", c.Order)
	}
	return nil
}

// Norm returns the normalized max error. A zero scale only tolerates a
// zero error.
func (c *Standard) Norm(x, trial, errEst dynamo.State) float64 {
	norm := 0.0
	for i := range errEst {
		e := math.Abs(errEst[i])
		if math.IsNaN(e) {
			return math.NaN()
		}
		scale := c.EpsAbs + c.EpsRel*math.Max(math.Abs(x[i]), math.Abs(trial[i]))
		if scale == 0 {
			if e == 0 {
				continue
			}
			return math.Inf(1)
		}
		norm = math.Max(norm, e/scale)
	}
	return norm
}

func (c *Standard) Adjust(x, trial, errEst dynamo.State, h float64) dynamo.Decision {
	norm := c.Norm(x, trial, errEst)

	var factor float64
	switch {
	case math.IsNaN(norm):
		factor = c.MinShrink
	case norm == 0:
		factor = c.MaxGrowth
	default:
		factor = c.Safety * math.Pow(norm, -1/float64(c.Order))
	}
	factor = math.Max(c.MinShrink, math.Min(c.MaxGrowth, factor))

	return dynamo.Decision{
		Accept: norm <= 1,
		Norm:   norm,
		Factor: factor,
		NextH:  h * factor,
	}
}
