package analysis

import (
	"math"
	"strings"

	"github.com/san-kum/glidesim/internal/dynamo"
	"github.com/san-kum/glidesim/internal/sim"
)

type Point struct{ X, Y float64 }

// Trajectory records two state components at the start and after every
// accepted step. It implements sim.Observer and belongs to one iteration.
type Trajectory struct {
	XIndex, YIndex int
	Points         []Point
	Times          []float64

	// Energy, when set, is sampled alongside each point.
	Energy   func(dynamo.State) float64
	Energies []float64
}

func NewTrajectory(x0 dynamo.State, t0 float64, xIdx, yIdx int) *Trajectory {
	if xIdx >= len(x0) || yIdx >= len(x0) || xIdx < 0 || yIdx < 0 {
		return nil
	}
	return &Trajectory{
		XIndex: xIdx,
		YIndex: yIdx,
		Points: []Point{{X: x0[xIdx], Y: x0[yIdx]}},
		Times:  []float64{t0},
	}
}

// WithEnergy samples energy at every point, including the initial one.
func (tr *Trajectory) WithEnergy(x0 dynamo.State, energy func(dynamo.State) float64) *Trajectory {
	tr.Energy = energy
	tr.Energies = []float64{energy(x0)}
	return tr
}

func (tr *Trajectory) OnStep(ev sim.StepEvent) {
	if !ev.Accepted {
		return
	}
	tr.Points = append(tr.Points, Point{X: ev.State[tr.XIndex], Y: ev.State[tr.YIndex]})
	tr.Times = append(tr.Times, ev.Time)
	if tr.Energy != nil {
		tr.Energies = append(tr.Energies, tr.Energy(ev.State))
	}
}

// Apex is the recorded point with the largest Y.
func (tr *Trajectory) Apex() Point {
	apex := tr.Points[0]
	for _, p := range tr.Points[1:] {
		if p.Y > apex.Y {
			apex = p
		}
	}
	return apex
}

// EnergyLoss is the drop in sampled energy from the first to the last point.
func (tr *Trajectory) EnergyLoss() float64 {
	if len(tr.Energies) < 2 {
		return 0
	}
	return tr.Energies[0] - tr.Energies[len(tr.Energies)-1]
}

// PathToASCII draws the recorded path on a width x height character canvas
// with axes where they fall inside the view.
func PathToASCII(tr *Trajectory, width, height int) string {
	if tr == nil || len(tr.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := tr.Points[0].X, tr.Points[0].X
	minY, maxY := tr.Points[0].Y, tr.Points[0].Y
	for _, p := range tr.Points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.05
	maxX += rangeX * 0.05
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	col := func(x float64) int { return int((x - minX) / rangeX * float64(width-1)) }
	row := func(y float64) int { return height - 1 - int((y-minY)/rangeY*float64(height-1)) }

	for _, p := range tr.Points {
		r, c := row(p.Y), col(p.X)
		if r >= 0 && r < height && c >= 0 && c < width {
			canvas[r][c] = '•'
		}
	}

	// ground line, then the launch column
	if minY <= 0 && maxY >= 0 {
		r := row(0)
		for c := 0; c < width; c++ {
			if canvas[r][c] == ' ' {
				canvas[r][c] = '─'
			}
		}
	}
	if minX <= 0 && maxX >= 0 {
		c := col(0)
		for r := 0; r < height; r++ {
			if canvas[r][c] == ' ' {
				canvas[r][c] = '│'
			}
		}
	}

	var sb strings.Builder
	for _, r := range canvas {
		sb.WriteString(string(r))
		sb.WriteRune('\n')
	}
	return sb.String()
}
