package domain

import (
	"errors"
	"strings"
)

var (
	ErrRecordNotFound        = errors.New("record not found")
	ErrNothingToSave         = errors.New("no changes to save")
	ErrStaleSnapshot         = errors.New("record was modified since the snapshot was loaded")
	ErrValidationFailed      = errors.New("record failed validation")
	ErrConfirmationRequired  = errors.New("warnings require explicit confirmation")
	ErrFieldNotPropagatable  = errors.New("field cannot be propagated to child units")
	ErrFieldNotEditable      = errors.New("field is not editable in this editor")
	ErrUnknownField          = errors.New("unknown field")
	ErrInvalidRecord         = errors.New("invalid record data")
	ErrRatesUnavailable      = errors.New("exchange rates unavailable")
	ErrActorRequired         = errors.New("actor identity is required")
	ErrUnknownQuotingRegime  = errors.New("unknown quoting regime")
	ErrUnknownInclusionState = errors.New("unknown inclusion state")
)

// ValidationError несет результат проверки вместе с причиной отказа.
// Unwrap возвращает ErrValidationFailed или ErrConfirmationRequired.
type ValidationError struct {
	Result ValidationResult
	reason error
}

func NewValidationError(result ValidationResult) *ValidationError {
	reason := ErrConfirmationRequired
	if result.Blocked() {
		reason = ErrValidationFailed
	}
	return &ValidationError{Result: result, reason: reason}
}

func (e *ValidationError) Error() string {
	msgs := e.Result.Errors
	if !e.Result.Blocked() {
		msgs = e.Result.Warnings
	}
	return e.reason.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.reason
}
