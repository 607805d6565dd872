// Package control provides adaptive step-size controllers.
//
// Controllers implement the [dynamo.Controller] interface and turn the
// embedded error estimate of a trial step into an accept/reject verdict
// and the next step size:
//
//   - [Standard]: mixed absolute/relative tolerance on the state, max norm
//
// # Usage
//
//	ctl := control.NewStandard(1e-8, 0) // eps_abs, eps_rel
//	d := ctl.Adjust(x, trial, errEst, h)
//	if !d.Accept {
//	    h = d.NextH // retry from x
//	}
package control
