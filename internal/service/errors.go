package service

import (
	"errors"
	"fmt"

	"projecthub/internal/models"
	"projecthub/internal/policy"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
)

var (
	ErrTokenRevoked = fmt.Errorf("%w: token revoked", ErrUnauthorized)
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthorized)
)

// PolicyError is returned when the access policy denies an action. It
// matches ErrForbidden.
type PolicyError struct {
	Action policy.Action
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("forbidden: %s (%s)", e.Action, e.Reason)
}

func (e *PolicyError) Unwrap() error { return ErrForbidden }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func authorize(identity models.Identity, action policy.Action, resource policy.Resource) error {
	decision := policy.Authorize(identity, action, resource)
	if !decision.Allowed {
		return &PolicyError{Action: action, Reason: decision.Reason}
	}
	return nil
}
