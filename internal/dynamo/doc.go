// Package dynamo provides core simulation primitives for the glider sweep.
//
// The package defines the fundamental interfaces and types shared by the
// integration engine:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Terminator]: optional domain stopping condition
//   - [Stepper]: embedded integrator producing a trial state and error estimate
//   - [FaultError]: a failed run with its last valid state
//
// # Example
//
//	g := physics.NewGlider(10)
//	ev := sim.New(g, integrators.NewRKF45(), control.NewStandard(1e-8, 0), cfg)
//	res, err := ev.Run(ctx, dynamo.State{2, -math.Pi / 3, 0, 2})
//
// # Thread Safety
//
// Steppers keep stage buffers and are NOT thread-safe. Every sweep iteration
// builds its own system, stepper and evolver.
package dynamo
