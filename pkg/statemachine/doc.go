// Package statemachine provides a generic, stateless finite-state-machine.
//
// A Definition is a transition table keyed by state and event. The current state
// lives with the caller's entity (for example an order status column) and is
// passed to Fire, which runs guards and actions and returns the next state:
//
//	def := statemachine.New(
//	    statemachine.Transition[Status, Event, *Order]{From: Pending, To: Paid, Event: Pay,
//	        Actions: []statemachine.Action[Status, Event, *Order]{enqueueCommit}},
//	)
//	next, err := def.Fire(ctx, order.Status, Pay, order)
//
// Errors can be classified with IsNoTransitionAvailableError and
// IsTransitionRejectedError.
package statemachine
