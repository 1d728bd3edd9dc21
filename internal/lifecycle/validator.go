// internal/lifecycle/validator.go
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	loopfsm "github.com/looplab/fsm"

	"github.com/channelgrid/partner-portal/internal/models"
)

// TransitionError is returned when an event is not legal from the
// license's current state.
type TransitionError struct {
	Event   models.Event
	Current models.LicenseState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("operation %q is not valid for a license in state %q", e.Event, e.Current)
}

// events converts models.Transitions into looplab/fsm EventDesc format,
// consolidating transitions that share event+destination into a single
// EventDesc with multiple source states.
var events = buildEvents()

func buildEvents() []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range models.Transitions {
		k := key{event: string(t.Event), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// Validator checks lifecycle operations against the transition table
// using looplab/fsm. A short-lived FSM instance is created per Apply call
// because the library tracks current state internally.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Apply checks whether event is valid from current and returns the
// destination state. In-place events (split, reassign) report a
// NoTransitionError from the library; the state is unchanged and the
// operation is legal, so that case succeeds.
func (v *Validator) Apply(ctx context.Context, current models.LicenseState, event models.Event) (models.LicenseState, error) {
	machine := loopfsm.NewFSM(string(current), events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var noTransition loopfsm.NoTransitionError
		switch {
		case errors.As(err, &noTransition):
			return current, nil
		case errors.As(err, &invalidEvent):
			return "", &TransitionError{Event: event, Current: current}
		default:
			return "", err
		}
	}

	return models.LicenseState(machine.Current()), nil
}
