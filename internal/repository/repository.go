package repository

import (
	"context"
	"time"

	"github.com/seatrush/reservation-engine/internal/domain"
)

// EventRepository defines read access to events
type EventRepository interface {
	// GetByID retrieves an event by its ID
	GetByID(ctx context.Context, id string) (*domain.Event, error)

	// Create inserts a new event (administrative seeding)
	Create(ctx context.Context, event *domain.Event) error

	// CountConfirmedBookings counts bookings confirmed since the given time
	CountConfirmedBookings(ctx context.Context, since time.Time) (int64, error)
}

// BookingRepository defines transactional booking persistence
type BookingRepository interface {
	// GetByID retrieves a booking by its ID
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetByIdempotencyKey retrieves the CONFIRMED booking with the given
	// idempotency key, or domain.ErrBookingNotFound
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Booking, error)

	// ReserveCapacity atomically decrements event capacity and inserts a
	// CONFIRMED booking in one transaction. The capacity decrement is
	// gated on the event version read inside the transaction. Returns
	// domain.ErrVersionConflict when the gate fails,
	// domain.ErrInsufficientCapacity when the quantity cannot be
	// satisfied, and domain.ErrDuplicateIdempotencyKey on a key collision.
	// On success the booking's TotalPrice and timestamps are populated.
	ReserveCapacity(ctx context.Context, booking *domain.Booking) error

	// CancelWithCapacityRestore flips a CONFIRMED booking to CANCELLED and
	// restores the event's available capacity in one transaction
	CancelWithCapacityRestore(ctx context.Context, bookingID string) (*domain.Booking, error)
}

// SeatRepository defines transactional seat reservation persistence
type SeatRepository interface {
	// ReserveSeats re-checks every requested seat against the latest
	// committed state inside a REPEATABLE READ transaction and, when all
	// are free, inserts the CONFIRMED booking plus one seat_bookings row
	// per seat and decrements event capacity under the version gate.
	// Business rejections come back as a typed result with per-seat
	// reasons, not as an error.
	ReserveSeats(ctx context.Context, booking *domain.Booking, seatIDs []string) (*domain.SeatReservationResult, error)

	// ListByEvent lists the event's seats with derived booking state
	ListByEvent(ctx context.Context, eventID string) ([]*domain.SeatView, error)
}

// JobRepository defines the durable reservation job queue
type JobRepository interface {
	// LoadScripts pre-loads the queue Lua scripts into Redis
	LoadScripts(ctx context.Context) error

	// Enqueue adds a job to the queue. When a job with the same
	// idempotency key already exists its ID is returned with
	// deduped=true and nothing is enqueued.
	Enqueue(ctx context.Context, job *domain.ReservationJob) (jobID string, deduped bool, err error)

	// Claim atomically pops the oldest queued job and flips it to
	// PROCESSING. Returns nil when the queue is empty.
	Claim(ctx context.Context) (*domain.ReservationJob, error)

	// Complete records the terminal result of a processed job
	Complete(ctx context.Context, jobID string, resultJSON string, attempts int) error

	// Fail records a terminal failure after attempts were exhausted
	Fail(ctx context.Context, jobID string, lastError string, attempts int) error

	// Cancel removes a job from the queue. Returns true only if the job
	// was still QUEUED.
	Cancel(ctx context.Context, jobID string) (bool, error)

	// GetByID retrieves a job record
	GetByID(ctx context.Context, jobID string) (*domain.ReservationJob, error)

	// Stats returns a snapshot of queue counters
	Stats(ctx context.Context) (*domain.QueueStats, error)
}
