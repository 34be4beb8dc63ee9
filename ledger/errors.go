package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when no owner identity is attached to the context
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotFound covers records that do not exist and records owned by someone else
	ErrNotFound = errors.New("not found")
	// ErrSessionExpired is raised by the authentication collaborator when the caller
	// must log in again
	ErrSessionExpired = errors.New("session expired, reauthentication required")
	// ErrDuplicatePlate is returned when an owner already has a truck with the plate
	ErrDuplicatePlate = errors.New("a truck with this plate already exists")
	// ErrUnknownEventKind is returned for cost event kinds outside models.ValidCostEventKinds
	ErrUnknownEventKind = errors.New("unknown cost event kind")
	// ErrAmountOutOfRange is returned when a cost or total cannot be stored as a float64
	ErrAmountOutOfRange = errors.New("amount out of range")
)

// CreateError is returned when a trip was written but one of its child writes failed.
// The trip has been deleted again unless CompensationErr is set.
type CreateError struct {
	Err             error
	CompensationErr error
}

func (e *CreateError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("failed to create trip: %v (rollback failed: %v)", e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("failed to create trip: %v", e.Err)
}

func (e *CreateError) Unwrap() error {
	return e.Err
}
