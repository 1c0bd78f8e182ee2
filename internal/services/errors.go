package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks permanent input problems (malformed reference,
	// unsupported format). Never retried.
	ErrValidation = errors.New("validation error")
	// ErrUnsupportedFormat marks an input category with no translation
	// profile. Matches ErrValidation too, so generic handling keeps
	// treating it as a permanent input problem.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrValidation)
	// ErrTransient marks provider timeouts, connection resets, and
	// 5xx-equivalent responses. Retryable within the budget.
	ErrTransient = errors.New("transient failure")
	// ErrUnauthorized marks authentication and integrity failures at the
	// boundary (webhook signature, reference verification).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRejected marks a submission the provider refused outright.
	ErrRejected = errors.New("dispatch rejected")
	// ErrCircuitOpen marks calls short-circuited by the provider circuit
	// breaker. Fails fast without consuming retry budget.
	ErrCircuitOpen = errors.New("provider circuit open")
	// ErrStateViolation marks an invalid job state transition request.
	ErrStateViolation = errors.New("state violation")
	// ErrDuplicateActiveJob marks an attempt to start a second concurrent
	// job for the same input reference.
	ErrDuplicateActiveJob = errors.New("duplicate active job")
	// ErrNotRetryable marks a retry request against a job that is not in a
	// retryable terminal state.
	ErrNotRetryable = errors.New("not retryable")
	// ErrNotReady marks manifest or metadata access before the job reached
	// terminal success.
	ErrNotReady = errors.New("not ready")
	// ErrNotFound marks a missing job or resource.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks invalid or missing configuration.
	ErrConfiguration = errors.New("configuration error")
)

// ErrorKind labels the failure taxonomy persisted on terminal jobs and
// forwarded with notifications.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindTransient   ErrorKind = "transient"
	KindAuth        ErrorKind = "auth"
	KindRejected    ErrorKind = "rejected"
	KindCircuitOpen ErrorKind = "circuit_open"
	KindState       ErrorKind = "state"
	KindInternal    ErrorKind = "internal"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its taxonomy kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotRetryable):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindAuth
	case errors.Is(err, ErrRejected):
		return KindRejected
	case errors.Is(err, ErrCircuitOpen):
		return KindCircuitOpen
	case errors.Is(err, ErrStateViolation), errors.Is(err, ErrDuplicateActiveJob), errors.Is(err, ErrNotReady):
		return KindState
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindInternal
	}
}

// IsRetryable reports whether an error may consume retry budget. Only
// transient provider failures qualify; circuit-open short circuits and
// validation-class errors never do.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	return errors.Is(err, ErrTransient)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
