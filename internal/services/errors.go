// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/abc-portal/internship-credits/internal/credits"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

// ErrorKind classifies failures so transports can map them without string matching.
type ErrorKind string

const (
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindInvalidHours      ErrorKind = "INVALID_HOURS"
	KindInvalidPolicy     ErrorKind = "INVALID_POLICY"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindConflict          ErrorKind = "CONFLICT"
	KindUnauthorized      ErrorKind = "UNAUTHORIZED"
	KindUpstream          ErrorKind = "UPSTREAM_ERROR"
	KindInternal          ErrorKind = "INTERNAL_ERROR"
)

// Sentinels for errors.Is; a *ServiceError matches the sentinel of its kind.
var (
	ErrInvalidTransition = &ServiceError{Kind: KindInvalidTransition}
	ErrForbidden         = &ServiceError{Kind: KindForbidden}
	ErrInvalidHours      = &ServiceError{Kind: KindInvalidHours}
	ErrInvalidPolicy     = &ServiceError{Kind: KindInvalidPolicy}
	ErrNotFound          = &ServiceError{Kind: KindNotFound}
	ErrValidation        = &ServiceError{Kind: KindValidation}
	ErrConflict          = &ServiceError{Kind: KindConflict}
	ErrUnauthorized      = &ServiceError{Kind: KindUnauthorized}
	ErrUpstream          = &ServiceError{Kind: KindUpstream}
	ErrInternal          = &ServiceError{Kind: KindInternal}
)

type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func newError(kind ErrorKind, msg string, cause error) *ServiceError {
	return &ServiceError{Kind: kind, Message: msg, Err: cause}
}

func notFound(resource string) *ServiceError {
	return newError(KindNotFound, resource+" not found", nil)
}

func forbidden(msg string) *ServiceError {
	return newError(KindForbidden, msg, nil)
}

func invalidTransition(msg string) *ServiceError {
	return newError(KindInvalidTransition, msg, nil)
}

func validationError(msg string) *ServiceError {
	return newError(KindValidation, msg, nil)
}

func internalError(msg string, cause error) *ServiceError {
	return newError(KindInternal, msg, cause)
}

// KindOf returns the kind carried by err, or KindInternal when err did not
// originate from this package.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// translate maps domain and storage errors onto service errors.
func translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound(resource)
	case errors.Is(err, workflow.ErrForbidden):
		return newError(KindForbidden, err.Error(), err)
	case errors.Is(err, workflow.ErrInvalidTransition):
		return newError(KindInvalidTransition, err.Error(), err)
	case errors.Is(err, credits.ErrInvalidHours):
		return newError(KindInvalidHours, err.Error(), err)
	case errors.Is(err, credits.ErrInvalidPolicy):
		return newError(KindInvalidPolicy, err.Error(), err)
	case isDuplicateKey(err):
		return newError(KindConflict, resource+" already exists", err)
	}
	return internalError("database error", err)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
