package types

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSession is returned when a confirmation references a
	// payment session that was never opened here.
	ErrUnknownSession = errors.New("unknown payment session")

	// ErrNotPaid is returned when a confirmation carries a non-paid
	// gateway status. Benign for webhook and poll callers.
	ErrNotPaid = errors.New("payment session is not paid")
)

// InsufficientCapacityError reports a reservation that would oversell a
// ticket type. The whole purchase is rolled back when it occurs.
type InsufficientCapacityError struct {
	TicketTypeID uint
	Requested    uint
	Available    uint
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("ticket type %d has insufficient capacity: requested %d, available %d", e.TicketTypeID, e.Requested, e.Available)
}

// ValidationError rejects a malformed purchase request before any
// capacity is reserved.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// FulfillmentConflictError marks a paid session whose fulfillment could
// not complete (for example capacity sold elsewhere between session-open
// and payment). It requires operator reconciliation and is never retried
// automatically into a second ticket set.
type FulfillmentConflictError struct {
	SessionID string
	Reason    string
}

func (e *FulfillmentConflictError) Error() string {
	return fmt.Sprintf("payment session %s is paid but could not be fulfilled: %s", e.SessionID, e.Reason)
}

// StorageFaultError wraps a transaction abort. The unit of work was
// rolled back fully and the purchase call is safe to retry.
type StorageFaultError struct {
	Err error
}

func (e *StorageFaultError) Error() string {
	return fmt.Sprintf("storage fault: %s", e.Err.Error())
}

func (e *StorageFaultError) Unwrap() error {
	return e.Err
}
