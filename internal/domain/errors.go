package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotEligible    = errors.New("account has not completed verification")
	ErrCooldownActive = errors.New("claim cooldown active")
	ErrClaimRejected  = errors.New("claim rejected")
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrTransient      = errors.New("transient failure")
)

// NotEligibleError lists the verification steps still missing
type NotEligibleError struct {
	MissingSteps []VerificationStep
}

func (e *NotEligibleError) Error() string {
	steps := make([]string, len(e.MissingSteps))
	for i, s := range e.MissingSteps {
		steps[i] = string(s)
	}
	return fmt.Sprintf("%s: missing %s", ErrNotEligible, strings.Join(steps, ", "))
}

func (e *NotEligibleError) Unwrap() error { return ErrNotEligible }

// CooldownError carries the time left until the next claim. Reason holds
// the store's decline message when the store enforced the cooldown.
type CooldownError struct {
	Remaining time.Duration
	Reason    string
}

func (e *CooldownError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s remaining", ErrCooldownActive, e.Remaining.Truncate(time.Second))
}

func (e *CooldownError) Unwrap() error { return ErrCooldownActive }

// RejectedError carries the store's decline message, surfaced verbatim
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return e.Reason }

func (e *RejectedError) Unwrap() error { return ErrClaimRejected }

// ValidationError names the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a ValidationError
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Transient wraps err so errors.Is(err, ErrTransient) holds
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
