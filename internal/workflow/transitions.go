// internal/workflow/transitions.go
package workflow

import (
	"errors"
	"fmt"
)

// Event is an action that moves an application between statuses.
type Event string

const (
	EventAccept        Event = "accept"
	EventReject        Event = "reject"
	EventComplete      Event = "complete"
	EventApprove       Event = "approve"
	EventRejectCredits Event = "reject_credits"
	EventMarkException Event = "mark_exception"
)

func Events() []Event {
	return []Event{
		EventAccept,
		EventReject,
		EventComplete,
		EventApprove,
		EventRejectCredits,
		EventMarkException,
	}
}

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrForbidden         = errors.New("forbidden")
	ErrUnknownEvent      = errors.New("unknown event")
)

// Rule is a single row of the transition table.
type Rule struct {
	Event          Event
	Actor          Role
	From           Status
	To             Status
	RequiresReason bool
	RequiresHours  bool
}

// RuleFor returns the table row for e. The switch is exhaustive over Event;
// adding an event without a row fails TestEveryEventHasRule.
func RuleFor(e Event) (Rule, error) {
	switch e {
	case EventAccept:
		return Rule{Event: e, Actor: RoleCompany, From: StatusApplied, To: StatusAccepted}, nil
	case EventReject:
		return Rule{Event: e, Actor: RoleCompany, From: StatusApplied, To: StatusRejected, RequiresReason: true}, nil
	case EventComplete:
		return Rule{Event: e, Actor: RoleCompany, From: StatusAccepted, To: StatusInstituteReview, RequiresHours: true}, nil
	case EventApprove:
		return Rule{Event: e, Actor: RoleInstitute, From: StatusInstituteReview, To: StatusCompleted}, nil
	case EventRejectCredits:
		return Rule{Event: e, Actor: RoleInstitute, From: StatusInstituteReview, To: StatusRejected, RequiresReason: true}, nil
	case EventMarkException:
		return Rule{Event: e, Actor: RoleInstitute, From: StatusInstituteReview, To: StatusException, RequiresReason: true}, nil
	}
	return Rule{}, fmt.Errorf("%w: %q", ErrUnknownEvent, string(e))
}

// Authorize checks only the role half of the table. Ownership is checked by
// the caller, which has the persisted application at hand.
func Authorize(e Event, role Role) (Rule, error) {
	rule, err := RuleFor(e)
	if err != nil {
		return Rule{}, err
	}
	if !role.CanWrite() || role != rule.Actor {
		return Rule{}, fmt.Errorf("%w: %s cannot %s", ErrForbidden, role, e)
	}
	return rule, nil
}

// Next returns the status reached by applying e from status from as role.
// Role mismatches are reported before state mismatches.
func Next(from Status, e Event, role Role) (Status, error) {
	rule, err := Authorize(e, role)
	if err != nil {
		return "", err
	}
	if from != rule.From {
		return "", fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, e, from)
	}
	return rule.To, nil
}

// Allowed lists the events role may trigger from status from.
func Allowed(from Status, role Role) []Event {
	var out []Event
	for _, e := range Events() {
		if _, err := Next(from, e, role); err == nil {
			out = append(out, e)
		}
	}
	return out
}
