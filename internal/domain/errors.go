package domain

import "fmt"

// Error types for consistent error handling across the engine.

// ErrNotFound indicates a resource was not found (or belongs to a
// different owner, which is indistinguishable to the caller).
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrAlreadyComplete indicates an advance was attempted on an entity
// that has already reached its final slice.
type ErrAlreadyComplete struct {
	Resource string
	ID       string
}

func (e *ErrAlreadyComplete) Error() string {
	return fmt.Sprintf("%s already complete: %s", e.Resource, e.ID)
}

// ErrInvalidTransition indicates a status change the state machine
// does not allow.
type ErrInvalidTransition struct {
	Resource string
	From     Status
	To       Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Resource, e.From, e.To)
}

// ErrConflict indicates a conditional update lost the race: another
// invocation already advanced the entity past the expected state.
type ErrConflict struct {
	Resource string
	ID       string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("%s concurrently modified: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in the persistence layer or
// another external collaborator.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
