package preferences

import (
	"errors"
	"fmt"
)

// ErrInvalidField is returned for unknown fields and out-of-range values.
var ErrInvalidField = errors.New("invalid preference field")

// ErrInvalidOrigin is returned when a write carries no recognised origin.
var ErrInvalidOrigin = errors.New("invalid update origin")

// RejectReason explains why a write was refused without mutating state.
type RejectReason int

const (
	AllFieldsProtected RejectReason = iota + 1
	ReentrantWriteSuppressed
)

func (r RejectReason) String() string {
	switch r {
	case AllFieldsProtected:
		return "all_fields_protected"
	case ReentrantWriteSuppressed:
		return "reentrant_write_suppressed"
	default:
		return "unknown"
	}
}

// RejectedError is a policy rejection. It is returned to the caller and never escalated.
type RejectedError struct {
	Reason RejectReason
	Fields []string
}

func (e *RejectedError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("write rejected: %s", e.Reason)
	}
	return fmt.Sprintf("write rejected: %s %v", e.Reason, e.Fields)
}

// Is matches any RejectedError carrying the same reason.
func (e *RejectedError) Is(target error) bool {
	t, ok := target.(*RejectedError)
	return ok && t.Reason == e.Reason
}

// Sentinels for errors.Is
var (
	ErrAllFieldsProtected       = &RejectedError{Reason: AllFieldsProtected}
	ErrReentrantWriteSuppressed = &RejectedError{Reason: ReentrantWriteSuppressed}
)

// Rejected builds a rejection for the given fields.
func Rejected(reason RejectReason, fields ...string) error {
	return &RejectedError{Reason: reason, Fields: fields}
}

// RejectionReason extracts the reason from err when it is a rejection.
func RejectionReason(err error) (RejectReason, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Reason, true
	}
	return 0, false
}
