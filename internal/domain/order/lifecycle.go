package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Status is a fulfillment state. Values are the persisted wire strings.
type Status string

const (
	StatusPending        Status = "pendiente"
	StatusProcessing     Status = "en_proceso"
	StatusOutForDelivery Status = "en_camino"
	StatusDelivered      Status = "entregado"
	StatusCancelled      Status = "cancelado"
)

// Statuses lists every known state in fulfillment order.
var Statuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// Terminal reports whether no further transition is expected from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// ErrInvalidState is the sentinel for rejected lifecycle targets.
var ErrInvalidState = errors.New("invalid order state")

// InvalidStateError reports an unknown target state, or a transition rejected
// by the strict graph.
type InvalidStateError struct {
	From   Status
	Target string
}

func (e *InvalidStateError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("unknown order state %q, expected one of %s", e.Target, joinStatuses())
	}
	return fmt.Sprintf("transition from %s to %s is not allowed", e.From, e.Target)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

func joinStatuses() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// ParseStatus maps a wire value to a known Status.
func ParseStatus(v string) (Status, error) {
	for _, s := range Statuses {
		if string(s) == v {
			return s, nil
		}
	}
	return "", &InvalidStateError{Target: v}
}

// forward holds the only forward step allowed from each non-terminal state
// under the strict graph.
var forward = map[Status]Status{
	StatusPending:        StatusProcessing,
	StatusProcessing:     StatusOutForDelivery,
	StatusOutForDelivery: StatusDelivered,
}

// Lifecycle governs status transitions. The default graph is permissive: any
// known state is reachable from any other. Strict restricts it to the forward
// chain plus cancellation from non-terminal states.
type Lifecycle struct {
	Strict bool
}

// Allowed reports whether from -> to is a legal transition.
func (l Lifecycle) Allowed(from, to Status) bool {
	if !l.Strict {
		return true
	}
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return forward[from] == to
}

// Transition moves o to target, stamping UpdatedAt and appending notes. On
// rejection o is left untouched.
func (l Lifecycle) Transition(o *Order, target, notes string, now time.Time) error {
	to, err := ParseStatus(target)
	if err != nil {
		return err
	}
	if !l.Allowed(o.Status, to) {
		return &InvalidStateError{From: o.Status, Target: target}
	}

	o.Status = to
	o.UpdatedAt = now
	if notes = strings.TrimSpace(notes); notes != "" {
		if o.Notes == "" {
			o.Notes = notes
		} else {
			o.Notes = o.Notes + "\n" + notes
		}
	}
	return nil
}
