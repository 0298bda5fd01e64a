package domain

import "errors"

// Domain errors
var (
	// Event errors
	ErrEventNotFound        = errors.New("event not found")
	ErrInsufficientCapacity = errors.New("insufficient capacity available")
	ErrVersionConflict      = errors.New("capacity version conflict")
	// ErrCapacityContention surfaces after the retry budget is exhausted
	ErrCapacityContention = errors.New("capacity contention, please retry")

	// Booking errors
	ErrBookingNotFound         = errors.New("booking not found")
	ErrBookingAlreadyCancelled = errors.New("booking already cancelled")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// Seat errors
	ErrSeatNotFound   = errors.New("seat not found")
	ErrSeatBlocked    = errors.New("seat is administratively blocked")
	ErrSeatBooked     = errors.New("seat is already booked")
	ErrSeatsContested = errors.New("seats are locked by another reservation")

	// Job errors
	ErrJobNotFound       = errors.New("job not found")
	ErrJobNotCancellable = errors.New("job can no longer be cancelled")

	// Transient errors, safe to retry
	ErrSerializationFailure = errors.New("transaction serialization failure")
	ErrLockNotAcquired      = errors.New("could not acquire lock")

	// Infrastructure is unreachable; bounded retries only
	ErrUnavailable = errors.New("service unavailable")

	// Validation errors
	ErrInvalidUserID         = errors.New("invalid user id")
	ErrInvalidEventID        = errors.New("invalid event id")
	ErrInvalidBookingID      = errors.New("invalid booking id")
	ErrInvalidJobID          = errors.New("invalid job id")
	ErrInvalidQuantity       = errors.New("quantity must be greater than zero")
	ErrNoSeatsRequested      = errors.New("at least one seat is required")
	ErrDuplicateSeatIDs      = errors.New("duplicate seat ids in request")
	ErrInvalidIdempotencyKey = errors.New("invalid idempotency key")
)

// IsRetryable checks if the error is transient and the operation may
// succeed when attempted again
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrSerializationFailure) ||
		errors.Is(err, ErrUnavailable)
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrSeatNotFound) ||
		errors.Is(err, ErrJobNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidEventID) ||
		errors.Is(err, ErrInvalidBookingID) ||
		errors.Is(err, ErrInvalidJobID) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrNoSeatsRequested) ||
		errors.Is(err, ErrDuplicateSeatIDs) ||
		errors.Is(err, ErrInvalidIdempotencyKey)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrInsufficientCapacity) ||
		errors.Is(err, ErrCapacityContention) ||
		errors.Is(err, ErrSeatBooked) ||
		errors.Is(err, ErrSeatBlocked) ||
		errors.Is(err, ErrBookingAlreadyCancelled) ||
		errors.Is(err, ErrJobNotCancellable)
}

// IsUnavailableError checks if the error means the caller should retry later
func IsUnavailableError(err error) bool {
	return errors.Is(err, ErrSeatsContested) ||
		errors.Is(err, ErrLockNotAcquired) ||
		errors.Is(err, ErrUnavailable)
}
