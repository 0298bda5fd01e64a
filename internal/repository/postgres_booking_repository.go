package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/seatrush/reservation-engine/internal/domain"
	"github.com/seatrush/reservation-engine/pkg/telemetry"
)

// PostgresBookingRepository implements BookingRepository using PostgreSQL with pgxpool
type PostgresBookingRepository struct {
	pool *pgxpool.Pool
}

var _ BookingRepository = (*PostgresBookingRepository)(nil)

// NewPostgresBookingRepository creates a new PostgresBookingRepository
func NewPostgresBookingRepository(pool *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{pool: pool}
}

const selectBookingColumns = `
	SELECT id, user_id, event_id, quantity, total_price, status,
	       COALESCE(idempotency_key, ''), created_at, updated_at
	FROM bookings
`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	booking := &domain.Booking{}
	var status string

	err := row.Scan(
		&booking.ID,
		&booking.UserID,
		&booking.EventID,
		&booking.Quantity,
		&booking.TotalPrice,
		&status,
		&booking.IdempotencyKey,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	booking.Status = domain.BookingStatus(status)
	return booking, nil
}

// GetByID retrieves a booking by its ID
func (r *PostgresBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", id))

	booking, err := scanBooking(r.pool.QueryRow(ctx, selectBookingColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "not found")
			return nil, domain.ErrBookingNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// GetByIdempotencyKey retrieves the CONFIRMED booking with the given key
func (r *PostgresBookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.get_by_idempotency_key")
	defer span.End()

	query := selectBookingColumns + ` WHERE idempotency_key = $1 AND status = $2`

	booking, err := scanBooking(r.pool.QueryRow(ctx, query, key, domain.BookingStatusConfirmed.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "not found")
			return nil, domain.ErrBookingNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get booking by idempotency key: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// ReserveCapacity atomically decrements event capacity and inserts a
// CONFIRMED booking in one transaction
func (r *PostgresBookingRepository) ReserveCapacity(ctx context.Context, booking *domain.Booking) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.reserve_capacity")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", booking.EventID),
		attribute.String("user_id", booking.UserID),
		attribute.Int("quantity", booking.Quantity),
	)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Read capacity and version inside the transaction
	var available int
	var version int64
	var basePrice float64
	err = tx.QueryRow(ctx,
		`SELECT available_capacity, version, base_price FROM events WHERE id = $1`,
		booking.EventID,
	).Scan(&available, &version, &basePrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "event not found")
			return domain.ErrEventNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to read event capacity: %w", classifyPgError(err))
	}

	if booking.Quantity > available {
		span.SetStatus(codes.Ok, "insufficient capacity")
		return domain.ErrInsufficientCapacity
	}

	// Conditional decrement gated on the version just read. Zero rows
	// means another transaction committed first.
	tag, err := tx.Exec(ctx,
		`UPDATE events
		 SET available_capacity = available_capacity - $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2 AND version = $3`,
		booking.Quantity, booking.EventID, version,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to decrement capacity: %w", classifyPgError(err))
	}

	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Ok, "version conflict")
		return domain.ErrVersionConflict
	}

	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	booking.Status = domain.BookingStatusConfirmed
	booking.TotalPrice = float64(booking.Quantity) * basePrice
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	_, err = tx.Exec(ctx,
		`INSERT INTO bookings (
			id, user_id, event_id, quantity, total_price, status,
			idempotency_key, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		booking.ID,
		booking.UserID,
		booking.EventID,
		booking.Quantity,
		booking.TotalPrice,
		booking.Status.String(),
		booking.IdempotencyKey,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			span.SetStatus(codes.Ok, "duplicate idempotency key")
			return domain.ErrDuplicateIdempotencyKey
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to insert booking: %w", classifyPgError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to commit reservation: %w", classifyPgError(err))
	}

	span.SetAttributes(attribute.String("booking_id", booking.ID))
	span.SetStatus(codes.Ok, "")
	return nil
}

// CancelWithCapacityRestore flips a CONFIRMED booking to CANCELLED and
// restores the event's available capacity in one transaction
func (r *PostgresBookingRepository) CancelWithCapacityRestore(ctx context.Context, bookingID string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.cancel")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", bookingID))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	booking, err := scanBooking(tx.QueryRow(ctx, selectBookingColumns+` WHERE id = $1 FOR UPDATE`, bookingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "not found")
			return nil, domain.ErrBookingNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to lock booking: %w", classifyPgError(err))
	}

	if booking.IsCancelled() {
		span.SetStatus(codes.Ok, "already cancelled")
		return nil, domain.ErrBookingAlreadyCancelled
	}

	now := time.Now()
	_, err = tx.Exec(ctx,
		`UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3`,
		domain.BookingStatusCancelled.String(), now, bookingID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to cancel booking: %w", classifyPgError(err))
	}

	// Seat bookings derive their state from the parent booking status,
	// so flipping it releases the seats. Capacity is restored here with
	// the version bump the capacity invariant requires.
	_, err = tx.Exec(ctx,
		`UPDATE events
		 SET available_capacity = available_capacity + $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2`,
		booking.Quantity, booking.EventID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to restore capacity: %w", classifyPgError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to commit cancellation: %w", classifyPgError(err))
	}

	booking.Status = domain.BookingStatusCancelled
	booking.UpdatedAt = now

	span.SetStatus(codes.Ok, "")
	return booking, nil
}
