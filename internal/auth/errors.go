package auth

import (
	"errors"
	"fmt"
)

var (
	ErrFieldNotFillable   = errors.New("field not fillable")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMfaTimeout         = errors.New("two-factor verification timed out")
)

// Kind classifies an authentication failure
type Kind int

const (
	FieldNotFillable Kind = iota + 1
	InvalidCredentials
	MfaTimeout
)

func (k Kind) String() string {
	switch k {
	case FieldNotFillable:
		return "FieldNotFillable"
	case InvalidCredentials:
		return "InvalidCredentials"
	case MfaTimeout:
		return "MfaTimeout"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a failed login. It is fatal to a run.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "authentication failed: " + e.Unwrap().Error()
	}
	return fmt.Sprintf("authentication failed: %s: %s", e.Unwrap(), e.Detail)
}

// Unwrap maps the kind to its sentinel so callers can use errors.Is
func (e *Error) Unwrap() error {
	switch e.Kind {
	case FieldNotFillable:
		return ErrFieldNotFillable
	case InvalidCredentials:
		return ErrInvalidCredentials
	case MfaTimeout:
		return ErrMfaTimeout
	default:
		return errors.New("unknown authentication failure")
	}
}
