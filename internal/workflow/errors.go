package workflow

import "errors"

var (
	// ErrNotFound is returned when a ticket, step, or history row is missing
	ErrNotFound = errors.New("not found")

	// ErrAlreadyCompleted is returned when an operation targets a terminal ticket
	ErrAlreadyCompleted = errors.New("ticket already completed")

	// ErrAlreadyProcessed is returned when a step already has a history row
	ErrAlreadyProcessed = errors.New("step already processed")

	// ErrUnauthorized is returned when the actor's role or assignment does
	// not satisfy the step's requirement
	ErrUnauthorized = errors.New("actor not authorized for this step")

	// ErrValidation is returned when mandatory input is missing or invalid
	ErrValidation = errors.New("validation failed")
)
