package annotation

import "errors"

// FailureKind classifies why a parsed response was rejected. Every kind except FailureExhausted
// is recovered locally by another attempt.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureParse
	FailureIdentity
	FailureInvalidRole
	FailureExhausted
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "ok"
	case FailureParse:
		return "parse_failure"
	case FailureIdentity:
		return "identity_mismatch"
	case FailureInvalidRole:
		return "invalid_role"
	case FailureExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// ErrValidation is wrapped by the error an attempt returns when the model output was rejected.
var ErrValidation = errors.New("response rejected")

// ValidationError carries the failure kind and the diagnostic written to the error records.
type ValidationError struct {
	Kind    FailureKind
	Message string
}

func (e *ValidationError) Error() string { return e.Kind.String() + ": " + e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }
