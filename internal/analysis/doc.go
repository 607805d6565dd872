// Package analysis summarises sweep outcomes and single flights.
//
//   - [Summarize]: landed, reached-t_end and failed counts, the best range
//     and the longest flight across a sweep
//   - [Trajectory]: an observer that records the flight path of one
//     iteration, with [PathToASCII] for terminal display
//
// Trajectories live in memory only; nothing here is persisted.
//
//	traj := analysis.NewTrajectory(x0, 0, 2, 3)
//	ev.AddObserver(traj)
//	ev.Run(ctx, x0)
//	fmt.Print(analysis.PathToASCII(traj, 72, 20))
package analysis
