package proposal

import (
	"errors"
	"fmt"
	"time"
)

// Phase is the progress of one proposal run.
type Phase string

const (
	PhaseStart          Phase = "start"
	PhaseBaseResolved   Phase = "base-resolved"
	PhaseBranchCreated  Phase = "branch-created"
	PhaseModeDetermined Phase = "mode-determined"
	PhaseContentWritten Phase = "content-written"
	PhasePRCreated      Phase = "pr-created"
	PhaseFailed         Phase = "failed"
)

// validTransitions defines the allowed from→to phase transitions.
var validTransitions = map[Phase]map[Phase]bool{
	PhaseStart:          {PhaseBaseResolved: true, PhaseFailed: true},
	PhaseBaseResolved:   {PhaseBranchCreated: true, PhaseFailed: true},
	PhaseBranchCreated:  {PhaseModeDetermined: true, PhaseFailed: true},
	PhaseModeDetermined: {PhaseContentWritten: true, PhaseFailed: true},
	PhaseContentWritten: {PhasePRCreated: true, PhaseFailed: true},
	// PhasePRCreated and PhaseFailed have no outgoing transitions.
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhasePRCreated || p == PhaseFailed
}

// ErrInvalidTransition is returned when a phase transition is not allowed.
var ErrInvalidTransition = errors.New("invalid phase transition")

// Event records one phase transition of a run.
type Event struct {
	Phase   Phase     `json:"phase"`
	Step    Step      `json:"step,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// run tracks the phase of a single Propose call.
type run struct {
	phase  Phase
	events []Event
	now    func() time.Time
}

func newRun(now func() time.Time) *run {
	return &run{phase: PhaseStart, now: now}
}

// Transition validates and applies a phase transition, recording an event.
func (r *run) Transition(to Phase, step Step, message string) error {
	from := r.phase
	if from.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}

	allowed, ok := validTransitions[from]
	if !ok || !allowed[to] {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}

	r.phase = to
	r.events = append(r.events, Event{Phase: to, Step: step, Message: message, At: r.now().UTC()})
	return nil
}
