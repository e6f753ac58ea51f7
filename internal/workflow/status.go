// internal/workflow/status.go
package workflow

import (
	"database/sql/driver"
	"fmt"
)

// Status is the lifecycle state of an application.
type Status string

const (
	StatusApplied         Status = "applied"
	StatusAccepted        Status = "accepted"
	StatusInstituteReview Status = "institute_review"
	StatusCompleted       Status = "completed"
	StatusRejected        Status = "rejected"
	StatusException       Status = "exception"
)

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusApplied,
		StatusAccepted,
		StatusInstituteReview,
		StatusCompleted,
		StatusRejected,
		StatusException,
	}
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusApplied, StatusAccepted, StatusInstituteReview,
		StatusCompleted, StatusRejected, StatusException:
		return true
	}
	return false
}

// Terminal reports whether no event leaves s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusException:
		return true
	}
	return false
}

// HasCredits reports whether credits_awarded must be populated in s.
func (s Status) HasCredits() bool {
	switch s {
	case StatusInstituteReview, StatusCompleted, StatusException:
		return true
	}
	return false
}

// HasReason reports whether a rejection or exception reason must be stored in s.
func (s Status) HasReason() bool {
	return s == StatusRejected || s == StatusException
}

func (s Status) String() string { return string(s) }

// Value stores the status as its string form.
func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %q", string(s))
	}
	return string(s), nil
}

// Scan rejects values outside the enumeration so that an unknown status can
// never be loaded into memory.
func (s *Status) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Status", value)
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
