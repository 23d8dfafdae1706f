package statemachine

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// Action runs a side effect during a transition. Returning an error prevents the transition.
type Action[S, E comparable, D any] func(ctx context.Context, from, to S, event E, data D) error

// Guard decides whether a transition may proceed.
type Guard[S, E comparable, D any] func(ctx context.Context, from S, event E, data D) bool

// Transition is a state change triggered by an event.
type Transition[S, E comparable, D any] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E, D]  // all must pass
	Actions []Action[S, E, D] // run in order before the state changes
}

// Definition is an immutable-after-build transition table.
// It holds no current state: callers pass the state stored with their entity,
// so one Definition serves every entity of a kind.
type Definition[S, E comparable, D any] struct {
	transitions map[S]map[E][]Transition[S, E, D]
}

// New builds a definition from transitions.
// Several transitions for the same state and event are tried in order; the first
// one whose guards pass wins.
func New[S, E comparable, D any](transitions ...Transition[S, E, D]) *Definition[S, E, D] {
	d := &Definition[S, E, D]{transitions: make(map[S]map[E][]Transition[S, E, D])}
	for _, t := range transitions {
		byEvent, ok := d.transitions[t.From]
		if !ok {
			byEvent = make(map[E][]Transition[S, E, D])
			d.transitions[t.From] = byEvent
		}
		byEvent[t.Event] = append(byEvent[t.Event], t)
	}
	return d
}

// Fire applies event to the current state and returns the new state.
func (d *Definition[S, E, D]) Fire(ctx context.Context, current S, event E, data D) (S, error) {
	candidates := d.transitions[current][event]
	if len(candidates) == 0 {
		return current, &ErrNoTransitionAvailable{StateName: fmt.Sprint(current), EventName: fmt.Sprint(event)}
	}
	t, ok := d.match(ctx, candidates, current, event, data)
	if !ok {
		return current, &ErrTransitionRejected{StateName: fmt.Sprint(current), EventName: fmt.Sprint(event)}
	}
	for _, action := range t.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, current, t.To, event, data); err != nil {
			return current, fmt.Errorf("action failed: %w", err)
		}
	}
	return t.To, nil
}

// CanFire reports whether Fire would find a transition whose guards pass.
func (d *Definition[S, E, D]) CanFire(ctx context.Context, current S, event E, data D) bool {
	_, ok := d.match(ctx, d.transitions[current][event], current, event, data)
	return ok
}

// Events lists the events defined for a state.
func (d *Definition[S, E, D]) Events(current S) []E {
	var events []E
	for e := range d.transitions[current] {
		events = append(events, e)
	}
	slices.SortFunc(events, func(a, b E) int {
		return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
	})
	return events
}

func (d *Definition[S, E, D]) match(ctx context.Context, candidates []Transition[S, E, D], current S, event E, data D) (Transition[S, E, D], bool) {
	for _, t := range candidates {
		passed := true
		for _, guard := range t.Guards {
			if guard != nil && !guard(ctx, current, event, data) {
				passed = false
				break
			}
		}
		if passed {
			return t, true
		}
	}
	return Transition[S, E, D]{}, false
}
