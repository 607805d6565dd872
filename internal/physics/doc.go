// Package physics provides the glider flight model.
//
// [Glider] implements [dynamo.System] and [dynamo.Terminator]: the run ends
// once the glider touches the ground (y <= 0), and the derivative fails
// with [dynamo.ErrSingularity] when the speed collapses to zero.
//
//	g := physics.NewGlider(10)
//	dx, err := g.Derive(dynamo.State{2, -math.Pi / 3, 0, 2}, 0)
//
// Energy gives the dimensionless kinetic plus potential energy, which drag
// makes strictly decreasing along a flight.
package physics
